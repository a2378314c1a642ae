package twitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tweetcollector/pkg/config"
	errs "tweetcollector/pkg/errors"
	"tweetcollector/pkg/logger"
	"tweetcollector/pkg/ratelimit"
	"tweetcollector/pkg/retry"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newMockHTTPClient(handler func(req *http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{Transport: &mockRoundTripper{handler: handler}}
}

func newResponse(req *http.Request, statusCode int, body string) *http.Response {
	resp := &http.Response{
		StatusCode:    statusCode,
		Body:          io.NopCloser(bytes.NewBufferString(body)),
		ContentLength: int64(len(body)),
		Header:        make(http.Header),
		Request:       req,
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

func tweetJSON(ids ...int64) string {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, id := range ids {
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf, `{"id":%d,"id_str":"%d","full_text":"tweet %d","lang":"en","created_at":"Mon Jan 02 15:04:05 +0000 2006"}`, id, id, id)
	}
	buf.WriteString("]")
	return buf.String()
}

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(handler func(req *http.Request) (*http.Response, error)) (*Client, *ratelimit.ManualClock, *logger.TestLogger) {
	clock := ratelimit.NewManualClock(testStart)
	log := logger.NewTestLogger()
	cfg := config.DefaultConfig().RateLimit
	c := NewClient(newMockHTTPClient(handler), cfg,
		WithClock(clock),
		WithLogger(log),
		WithBackoff(&retry.ConstantBackoff{}),
	)
	return c, clock, log
}

func nonZero(d []time.Duration) []time.Duration {
	var out []time.Duration
	for _, v := range d {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

func TestFetchPageEncodesRequest(t *testing.T) {
	var seen *http.Request
	c, _, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		seen = req
		return newResponse(req, http.StatusOK, tweetJSON(30, 20, 10)), nil
	})

	tweets, err := c.FetchPage(context.Background(), PageRequest{UserID: 42, SinceID: 5, MaxID: 99, Count: 200})
	require.NoError(t, err)
	require.Len(t, tweets, 3)
	assert.Equal(t, int64(30), tweets[0].ID)
	assert.Equal(t, "tweet 30", tweets[0].FullText)

	require.NotNil(t, seen)
	assert.Contains(t, seen.URL.Path, "statuses/user_timeline.json")
	q := seen.URL.Query()
	assert.Equal(t, "42", q.Get("user_id"))
	assert.Equal(t, "200", q.Get("count"))
	assert.Equal(t, "5", q.Get("since_id"))
	assert.Equal(t, "99", q.Get("max_id"))
	assert.Equal(t, "extended", q.Get("tweet_mode"))
	assert.Equal(t, "true", q.Get("include_rts"))
}

func TestFetchPageOmitsUnsetBounds(t *testing.T) {
	var seen *http.Request
	c, _, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		seen = req
		return newResponse(req, http.StatusOK, "[]"), nil
	})

	tweets, err := c.FetchPage(context.Background(), PageRequest{UserID: 1, Count: 200})
	require.NoError(t, err)
	assert.Empty(t, tweets)

	q := seen.URL.Query()
	assert.False(t, q.Has("max_id"))
	assert.False(t, q.Has("since_id"))
}

func TestFetchPageWaitsOutRateLimit(t *testing.T) {
	calls := 0
	reset := testStart.Add(7 * time.Minute)

	c, clock, log := newTestClient(func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			resp := newResponse(req, http.StatusTooManyRequests, `{"errors":[{"message":"Rate limit exceeded","code":88}]}`)
			resp.Header.Set(headerRemaining, "0")
			resp.Header.Set(headerReset, strconv.FormatInt(reset.Unix(), 10))
			return resp, nil
		}
		return newResponse(req, http.StatusOK, tweetJSON(3, 2, 1)), nil
	})

	tweets, err := c.FetchPage(context.Background(), PageRequest{UserID: 7, Count: 200})
	require.NoError(t, err, "rate limits are never surfaced")
	assert.Len(t, tweets, 3)
	assert.Equal(t, 2, calls)

	assert.Equal(t, []time.Duration{7*time.Minute + time.Second}, nonZero(clock.Sleeps()))
	assert.False(t, clock.Now().Before(reset))
	assert.NotEmpty(t, log.GetMessagesByLevel("WARN"))
}

func TestFetchPageRateLimitWithoutResetUsesFallback(t *testing.T) {
	calls := 0
	c, clock, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		calls++
		if calls <= 2 {
			return newResponse(req, http.StatusTooManyRequests, `{}`), nil
		}
		return newResponse(req, http.StatusOK, tweetJSON(1)), nil
	})

	tweets, err := c.FetchPage(context.Background(), PageRequest{UserID: 7, Count: 200})
	require.NoError(t, err)
	assert.Len(t, tweets, 1)
	assert.Equal(t, 3, calls)

	waits := nonZero(clock.Sleeps())
	require.Len(t, waits, 2)
	for _, w := range waits {
		assert.Equal(t, 15*time.Minute+time.Second, w)
	}
}

func TestWaitHookSeesEveryWait(t *testing.T) {
	calls := 0
	handler := func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return newResponse(req, http.StatusTooManyRequests, `{}`), nil
		}
		return newResponse(req, http.StatusOK, tweetJSON(1)), nil
	}

	var waits []time.Duration
	clock := ratelimit.NewManualClock(testStart)
	c := NewClient(newMockHTTPClient(handler), config.DefaultConfig().RateLimit,
		WithClock(clock),
		WithLogger(logger.NewTestLogger()),
		WithBackoff(&retry.ConstantBackoff{}),
		WithWaitHook(func(wait time.Duration, _ time.Time) { waits = append(waits, wait) }),
	)

	_, err := c.FetchPage(context.Background(), PageRequest{UserID: 7, Count: 200})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{15*time.Minute + time.Second}, waits)
}

func TestFetchPageBlocksWhenHeadersReportExhaustion(t *testing.T) {
	calls := 0
	reset := testStart.Add(2 * time.Minute)

	c, clock, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		calls++
		resp := newResponse(req, http.StatusOK, tweetJSON(int64(calls)))
		if calls == 1 {
			resp.Header.Set(headerRemaining, "0")
			resp.Header.Set(headerReset, strconv.FormatInt(reset.Unix(), 10))
		}
		return resp, nil
	})

	_, err := c.FetchPage(context.Background(), PageRequest{UserID: 1, Count: 200})
	require.NoError(t, err)
	assert.Empty(t, nonZero(clock.Sleeps()))

	_, err = c.FetchPage(context.Background(), PageRequest{UserID: 1, Count: 200})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2*time.Minute + time.Second}, nonZero(clock.Sleeps()))
}

func TestFetchPageLocalBudget(t *testing.T) {
	clock := ratelimit.NewManualClock(testStart)
	cfg := config.RateLimitConfig{RequestsPerWindow: 2, Window: 15 * time.Minute, FallbackWait: 15 * time.Minute}
	c := NewClient(newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return newResponse(req, http.StatusOK, "[]"), nil
	}), cfg, WithClock(clock), WithLogger(logger.NewNopLogger()))

	for i := 0; i < 3; i++ {
		_, err := c.FetchPage(context.Background(), PageRequest{UserID: 1, Count: 200})
		require.NoError(t, err)
	}
	assert.Equal(t, []time.Duration{15 * time.Minute}, nonZero(clock.Sleeps()))
}

func TestFetchPageErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType errs.ErrorType
		wantCode int
		wantKind errs.FailureKind
	}{
		{
			name:     "protected account bare 401",
			status:   http.StatusUnauthorized,
			body:     `{"request":"/1.1/statuses/user_timeline.json","error":"Not authorized."}`,
			wantType: errs.ErrorTypeProtected,
			wantCode: 401,
			wantKind: errs.KindProtectedOrUnavailable,
		},
		{
			name:     "not authorized code 179",
			status:   http.StatusForbidden,
			body:     `{"errors":[{"message":"Sorry, you are not authorized to see this status.","code":179}]}`,
			wantType: errs.ErrorTypeProtected,
			wantCode: 179,
			wantKind: errs.KindProtectedOrUnavailable,
		},
		{
			name:     "bad credentials",
			status:   http.StatusUnauthorized,
			body:     `{"errors":[{"message":"Could not authenticate you.","code":32}]}`,
			wantType: errs.ErrorTypeAuth,
			wantCode: 32,
			wantKind: errs.KindProtectedOrUnavailable,
		},
		{
			name:     "deleted account",
			status:   http.StatusNotFound,
			body:     `{"errors":[{"message":"Sorry, that page does not exist.","code":34}]}`,
			wantType: errs.ErrorTypeNotFound,
			wantCode: 34,
			wantKind: errs.KindProtectedOrUnavailable,
		},
		{
			name:     "suspended account",
			status:   http.StatusForbidden,
			body:     `{"errors":[{"message":"User has been suspended.","code":63}]}`,
			wantType: errs.ErrorTypeSuspended,
			wantCode: 63,
			wantKind: errs.KindProtectedOrUnavailable,
		},
		{
			name:     "over capacity",
			status:   http.StatusServiceUnavailable,
			body:     `{"errors":[{"message":"Over capacity","code":130}]}`,
			wantType: errs.ErrorTypeServerError,
			wantCode: 130,
			wantKind: errs.KindTransient,
		},
		{
			name:     "gateway error page",
			status:   http.StatusBadGateway,
			body:     `<html>bad gateway</html>`,
			wantType: errs.ErrorTypeServerError,
			wantCode: 502,
			wantKind: errs.KindTransient,
		},
		{
			name:     "malformed success body",
			status:   http.StatusOK,
			body:     `{"not":"a list"`,
			wantType: errs.ErrorTypeParsing,
			wantCode: 200,
			wantKind: errs.KindUnclassified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			c, _, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
				calls++
				return newResponse(req, tt.status, tt.body), nil
			})

			tweets, err := c.FetchPage(context.Background(), PageRequest{UserID: 55, Count: 200})
			require.Error(t, err)
			assert.Nil(t, tweets)
			assert.Equal(t, 1, calls, "only rate limits are repeated")

			var apiErr *errs.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantType, apiErr.Type)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, int64(55), apiErr.UserID)
			assert.Equal(t, tt.wantKind, errs.Classify(err))
		})
	}
}

func TestFetchPageNetworkError(t *testing.T) {
	c, _, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection reset by peer")
	})

	_, err := c.FetchPage(context.Background(), PageRequest{UserID: 9, Count: 200})
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))
	assert.Equal(t, errs.KindTransient, errs.Classify(err))
}

func TestFollowerIDsPagesThroughCursors(t *testing.T) {
	c, _, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		switch req.URL.Query().Get("cursor") {
		case "-1":
			return newResponse(req, http.StatusOK, `{"ids":[1,2,3],"next_cursor":77,"next_cursor_str":"77"}`), nil
		case "77":
			return newResponse(req, http.StatusOK, `{"ids":[4,5],"next_cursor":0,"next_cursor_str":"0"}`), nil
		}
		return newResponse(req, http.StatusNotFound, `{}`), nil
	})

	ids, err := c.FollowerIDs(context.Background(), 100, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)

	limited, err := c.FollowerIDs(context.Background(), 100, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, limited)
}

func TestNewOAuthHTTPClient(t *testing.T) {
	httpClient := NewOAuthHTTPClient(Credentials{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		AccessToken:    "at",
		AccessSecret:   "as",
	}, 20*time.Second)

	require.NotNil(t, httpClient)
	assert.Equal(t, 20*time.Second, httpClient.Timeout)
	assert.NotNil(t, httpClient.Transport)
}
