package timeline

import (
	"context"
	"fmt"

	"github.com/dghubble/go-twitter/twitter"
	"tweetcollector/pkg/config"
	"tweetcollector/pkg/logger"
	tw "tweetcollector/pkg/twitter"
)

// PageFetcher fetches one bounded page of a user's timeline, newest first
type PageFetcher interface {
	FetchPage(ctx context.Context, req tw.PageRequest) ([]twitter.Tweet, error)
}

// Options controls pagination
type Options struct {
	// PageSize is the count requested per page, at most config.MaxPageSize
	PageSize int
	// ContinueThreshold is the minimum first-page length that triggers
	// fetching older pages
	ContinueThreshold int
	// StrictFullPages continues only when the first page is full
	StrictFullPages bool
}

// OptionsFromConfig builds paginator options from the collection config
func OptionsFromConfig(cfg config.CollectionConfig) Options {
	return Options{
		PageSize:          cfg.PageSize,
		ContinueThreshold: cfg.ContinueThreshold,
		StrictFullPages:   cfg.StrictFullPages,
	}
}

// Paginator retrieves every timeline entry newer than a watermark by walking
// pages backwards from the newest entry.
type Paginator struct {
	fetcher PageFetcher
	opts    Options
	logger  logger.Logger
}

// NewPaginator creates a paginator. Out-of-range options fall back to the
// API maximum page size and half of it as the continue threshold.
func NewPaginator(fetcher PageFetcher, opts Options, log logger.Logger) *Paginator {
	if opts.PageSize <= 0 || opts.PageSize > config.MaxPageSize {
		opts.PageSize = config.MaxPageSize
	}
	if opts.ContinueThreshold <= 0 {
		opts.ContinueThreshold = config.DefaultContinueThreshold
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Paginator{fetcher: fetcher, opts: opts, logger: log}
}

// Collect returns all entries of the user's timeline with id > sinceID,
// ordered newest to oldest, without duplicates. A sinceID of zero collects
// everything the API will serve. Fetch errors are returned unchanged apart
// from wrapping.
func (p *Paginator) Collect(ctx context.Context, userID, sinceID int64) ([]twitter.Tweet, error) {
	log := p.logger.WithField("user_id", userID)
	log.Info("Grabbing timeline")

	req := tw.PageRequest{
		UserID:  userID,
		SinceID: sinceID,
		Count:   p.opts.PageSize,
	}

	first, err := p.fetcher.FetchPage(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch first page for user %d: %w", userID, err)
	}
	logger.LogPage(log, userID, 1, len(first), 0)

	seen := make(map[int64]struct{}, len(first))
	out, oldest := appendNew(nil, first, sinceID, seen)
	if len(first) == 0 {
		log.Warn("Got 0 tweets in 1 batches")
		return out, nil
	}

	batches := 1
	if oldest > 0 && p.shouldContinue(len(first)) {
		for {
			maxID := oldest - 1
			if maxID <= sinceID || maxID <= 0 {
				break
			}

			req.MaxID = maxID
			page, err := p.fetcher.FetchPage(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("fetch page %d for user %d: %w", batches+1, userID, err)
			}
			batches++
			logger.LogPage(log, userID, batches, len(page), maxID)

			if len(page) == 0 {
				break
			}

			var next int64
			out, next = appendNew(out, page, sinceID, seen)
			if next == 0 || next >= oldest {
				log.WarnWithFields("Page did not move past previous oldest id", map[string]interface{}{
					"oldest": oldest,
					"next":   next,
				})
				break
			}
			oldest = next
		}
	}

	log.InfoWithFields(fmt.Sprintf("Got %d tweets in %d batches", len(out), batches), map[string]interface{}{
		"tweets":  len(out),
		"batches": batches,
	})
	return out, nil
}

func (p *Paginator) shouldContinue(firstLen int) bool {
	if p.opts.StrictFullPages {
		return firstLen >= p.opts.PageSize
	}
	return firstLen >= p.opts.ContinueThreshold
}

// appendNew appends the entries that are newer than sinceID and not yet seen,
// keeping the order received. It also returns the lowest id above sinceID in
// the page, or 0 when the page has none.
func appendNew(out, page []twitter.Tweet, sinceID int64, seen map[int64]struct{}) ([]twitter.Tweet, int64) {
	if out == nil {
		out = make([]twitter.Tweet, 0, len(page))
	}
	var oldest int64
	for _, t := range page {
		if t.ID <= sinceID {
			continue
		}
		if oldest == 0 || t.ID < oldest {
			oldest = t.ID
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out, oldest
}
