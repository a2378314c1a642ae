package twitter

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dghubble/go-twitter/twitter"
	"github.com/dghubble/oauth1"
	"tweetcollector/pkg/config"
	errs "tweetcollector/pkg/errors"
	"tweetcollector/pkg/logger"
	"tweetcollector/pkg/ratelimit"
	"tweetcollector/pkg/retry"
)

const (
	// TimelineEndpoint names the endpoint in logs
	TimelineEndpoint = "statuses/user_timeline"
	// FollowersEndpoint names the follower id endpoint in logs
	FollowersEndpoint = "followers/ids"

	headerRemaining = "X-Rate-Limit-Remaining"
	headerReset     = "X-Rate-Limit-Reset"
)

// Credentials are the OAuth1 application and user tokens
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// NewOAuthHTTPClient returns an HTTP client that signs every request
func NewOAuthHTTPClient(creds Credentials, timeout time.Duration) *http.Client {
	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	httpClient := cfg.Client(oauth1.NoContext, oauth1.NewToken(creds.AccessToken, creds.AccessSecret))
	httpClient.Timeout = timeout
	return httpClient
}

// PageRequest describes one bounded timeline request. Zero MaxID and SinceID
// mean "unset".
type PageRequest struct {
	UserID  int64
	MaxID   int64
	SinceID int64
	Count   int
}

// Client is a rate-limited timeline client. Rate-limit responses are absorbed
// by waiting for the window to reset; every other failure is returned as a
// typed *errors.Error.
type Client struct {
	api    *twitter.Client
	bucket *ratelimit.TokenBucket
	window *ratelimit.ResetWindow
	// limiters are waited on in order before every request
	limiters []ratelimit.Limiter
	backoff  retry.BackoffStrategy
	clock    ratelimit.Clock
	onWait   func(wait time.Duration, resetAt time.Time)
	logger   logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithClock replaces the wall clock used for rate-limit waits
func WithClock(clock ratelimit.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithBackoff replaces the backoff applied between rate-limited attempts
func WithBackoff(b retry.BackoffStrategy) Option {
	return func(c *Client) { c.backoff = b }
}

// WithWaitHook is called before every rate-limit wait, after logging it
func WithWaitHook(fn func(wait time.Duration, resetAt time.Time)) Option {
	return func(c *Client) { c.onWait = fn }
}

// WithLogger sets the client logger
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.logger = log }
}

// NewClient creates a client over an already authenticated HTTP client
func NewClient(httpClient *http.Client, cfg config.RateLimitConfig, opts ...Option) *Client {
	c := &Client{
		api:     twitter.NewClient(httpClient),
		backoff: retry.DefaultExponentialBackoff(),
		clock:   ratelimit.SystemClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.GetLogger()
	}

	c.bucket = ratelimit.NewTokenBucketWithClock(cfg.RequestsPerWindow, cfg.Window, c.clock)
	c.window = ratelimit.NewResetWindow(cfg.FallbackWait, c.clock)

	notify := func(wait time.Duration, resetAt time.Time) {
		logger.LogRateLimit(c.logger, TimelineEndpoint, wait, resetAt)
		if c.onWait != nil {
			c.onWait(wait, resetAt)
		}
	}
	c.bucket.OnWait(notify)
	c.window.OnWait(notify)
	c.limiters = []ratelimit.Limiter{c.bucket, c.window}

	return c
}

// FetchPage returns one page of the user's timeline, newest first. It blocks
// while the request budget is exhausted and never returns a rate-limit error.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) ([]twitter.Tweet, error) {
	return retry.DoWithResult(func() ([]twitter.Tweet, error) {
		return c.fetchOnce(ctx, req)
	}, c.rateLimitRetry(ctx))
}

func (c *Client) rateLimitRetry(ctx context.Context) *retry.Config {
	return &retry.Config{
		MaxAttempts: 0,
		Backoff:     c.backoff,
		RetryIf:     retry.IsRateLimited,
		Context:     ctx,
		Logger:      c.logger,
		Sleep:       c.clock.Sleep,
	}
}

func (c *Client) fetchOnce(ctx context.Context, req PageRequest) ([]twitter.Tweet, error) {
	if err := c.awaitBudget(ctx); err != nil {
		return nil, err
	}

	params := &twitter.UserTimelineParams{
		UserID:          req.UserID,
		Count:           req.Count,
		SinceID:         req.SinceID,
		MaxID:           req.MaxID,
		TweetMode:       "extended",
		IncludeRetweets: twitter.Bool(true),
	}

	start := c.clock.Now()
	tweets, resp, err := c.api.Timelines.UserTimeline(params)
	c.logger.DebugWithFields("timeline request completed", map[string]interface{}{
		"user_id":  req.UserID,
		"max_id":   req.MaxID,
		"since_id": req.SinceID,
		"status":   statusCode(resp),
		"duration": c.clock.Now().Sub(start),
	})

	if apiErr := c.inspect(req.UserID, resp, err); apiErr != nil {
		return nil, apiErr
	}
	return tweets, nil
}

// FollowerIDs returns up to limit follower ids of the user, paging through
// cursors. A limit of zero or less returns every follower.
func (c *Client) FollowerIDs(ctx context.Context, userID int64, limit int) ([]int64, error) {
	var ids []int64
	cursor := int64(-1)

	for cursor != 0 {
		page, err := retry.DoWithResult(func() (*twitter.FollowerIDs, error) {
			if err := c.awaitBudget(ctx); err != nil {
				return nil, err
			}
			out, resp, err := c.api.Followers.IDs(&twitter.FollowerIDParams{
				UserID: userID,
				Cursor: cursor,
				Count:  5000,
			})
			if apiErr := c.inspect(userID, resp, err); apiErr != nil {
				return nil, apiErr
			}
			return out, nil
		}, c.rateLimitRetry(ctx))
		if err != nil {
			return ids, err
		}

		for _, id := range page.IDs {
			ids = append(ids, id)
			if limit > 0 && len(ids) >= limit {
				return ids, nil
			}
		}
		c.logger.DebugWithFields("fetched follower ids", map[string]interface{}{
			"endpoint": FollowersEndpoint,
			"user_id":  userID,
			"total":    len(ids),
		})
		cursor = page.NextCursor
	}

	return ids, nil
}

func (c *Client) awaitBudget(ctx context.Context) error {
	for _, l := range c.limiters {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// inspect records rate-limit headers and converts the response into a typed
// error. A rate-limit response also exhausts the local window.
func (c *Client) inspect(userID int64, resp *http.Response, err error) error {
	remaining, resetAt, ok := rateLimitHeaders(resp)
	if ok {
		c.window.Update(remaining, resetAt)
	}

	apiErr := classifyResponse(userID, resp, err)
	if apiErr != nil && apiErr.Type == errs.ErrorTypeRateLimit {
		c.window.Exhaust(resetAt)
	}
	if apiErr == nil {
		return nil
	}
	return apiErr
}

func rateLimitHeaders(resp *http.Response) (int, time.Time, bool) {
	if resp == nil {
		return 0, time.Time{}, false
	}

	var resetAt time.Time
	if v := resp.Header.Get(headerReset); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			resetAt = time.Unix(epoch, 0)
		}
	}

	v := resp.Header.Get(headerRemaining)
	if v == "" {
		return 0, resetAt, false
	}
	remaining, err := strconv.Atoi(v)
	if err != nil {
		return 0, resetAt, false
	}
	return remaining, resetAt, true
}

func statusCode(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
