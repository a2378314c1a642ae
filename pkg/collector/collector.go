package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/dghubble/go-twitter/twitter"
	"github.com/google/uuid"
	"tweetcollector/pkg/checkpoint"
	errs "tweetcollector/pkg/errors"
	"tweetcollector/pkg/logger"
	"tweetcollector/pkg/models"
	"tweetcollector/pkg/ratelimit"
	"tweetcollector/pkg/timeline"
)

// Timeline collects every entry of a user's timeline above a watermark
type Timeline interface {
	Collect(ctx context.Context, userID, sinceID int64) ([]twitter.Tweet, error)
}

// Store persists collected entries and run records
type Store interface {
	SaveTimeline(ctx context.Context, userID int64, tweets []models.Tweet, newestID int64) error
	RecordRun(ctx context.Context, summary *models.RunSummary) error
}

// CountTable is the historical per-date count table
type CountTable interface {
	Merge(date string, counts map[int64]int)
	Save() error
}

// CheckpointStore opens the checkpoint of a run date
type CheckpointStore func(date string) (*checkpoint.Manager, error)

// Observer is told about every attempt as it happens. Calls are made from
// the goroutine running Run.
type Observer interface {
	RunStarted(runID string, users int)
	UserStarted(userID int64, attempt int)
	UserFinished(outcome models.Outcome)
	RunFinished(summary *models.RunSummary)
}

type pass int

const (
	firstPass pass = iota + 1
	retryPass
)

// Collector runs collection over a cohort
type Collector struct {
	timeline    Timeline
	store       Store
	counts      CountTable
	checkpoints CheckpointStore
	resume      bool
	language    string
	clock       ratelimit.Clock
	newRunID    func() string
	observer    Observer
	logger      logger.Logger
}

// Option configures a Collector
type Option func(*Collector)

// WithLanguage keeps only entries in lang. Empty keeps everything.
func WithLanguage(lang string) Option {
	return func(c *Collector) { c.language = lang }
}

// WithCountTable merges every run summary into table
func WithCountTable(table CountTable) Option {
	return func(c *Collector) { c.counts = table }
}

// WithCheckpoints saves progress after every user. With resume set, a
// checkpoint left by an interrupted run on the same date is picked up.
func WithCheckpoints(open CheckpointStore, resume bool) Option {
	return func(c *Collector) {
		c.checkpoints = open
		c.resume = resume
	}
}

// WithClock replaces the clock used for run dates and elapsed time
func WithClock(clock ratelimit.Clock) Option {
	return func(c *Collector) { c.clock = clock }
}

// WithRunIDs replaces the run id generator
func WithRunIDs(fn func() string) Option {
	return func(c *Collector) { c.newRunID = fn }
}

// WithObserver reports progress to obs
func WithObserver(obs Observer) Option {
	return func(c *Collector) { c.observer = obs }
}

// WithLogger sets the collector logger
func WithLogger(log logger.Logger) Option {
	return func(c *Collector) { c.logger = log }
}

// New creates a collector. The default language filter is "en".
func New(tl Timeline, store Store, opts ...Option) *Collector {
	c := &Collector{
		timeline: tl,
		store:    store,
		language: "en",
		clock:    ratelimit.SystemClock,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.GetLogger()
	}
	return c
}

// Run collects every cohort member once, then retries the members that
// failed with a transient error once more. Per-user failures are recorded in
// the summary and never stop the run. The returned error only reports
// bookkeeping that could not be written (run record, count table); the
// summary is valid either way.
func (c *Collector) Run(ctx context.Context, cohort []models.CohortMember) (*models.RunSummary, error) {
	started := c.clock.Now()
	date := started.Format(models.DateFormat)

	cp, cpMgr := c.openCheckpoint(date)
	runID := c.newRunID()
	if cp != nil && cp.RunID != "" {
		runID = cp.RunID
	}

	log := c.logger.WithField("run_id", runID)
	logger.LogComponentStart(log, "collector", map[string]interface{}{
		"users":    len(cohort),
		"language": c.language,
		"date":     date,
	})

	st := newRunState(runID, date, started, cohort)
	if c.observer != nil {
		c.observer.RunStarted(runID, len(st.order))
	}
	if cp == nil && cpMgr != nil {
		var err error
		if cp, err = cpMgr.Create(date, runID); err != nil {
			log.WithError(err).Warn("Failed to create checkpoint, continuing without one")
			cpMgr = nil
		}
	}

	for _, m := range cohort {
		if cp != nil {
			if saved, ok := cp.Outcomes[m.UserID]; ok && saved.State != models.StatePending && saved.State != models.StateAttempted {
				st.restore(saved, m)
				if c.observer != nil && saved.State.Terminal() {
					c.observer.UserFinished(*saved)
				}
				log.DebugWithFields("Restored outcome from checkpoint", map[string]interface{}{
					"user_id": m.UserID,
					"state":   saved.State.String(),
				})
				continue
			}
		}
		if st.outcomes[m.UserID].State != models.StatePending {
			continue
		}
		c.attempt(ctx, st, m, firstPass, log, cpMgr, cp)
	}

	deferred := st.takeDeferred()
	if len(deferred) > 0 {
		log.InfoWithFields("Retrying deferred users", map[string]interface{}{
			"deferred": len(deferred),
		})
		if cpMgr != nil {
			ids := make([]int64, len(deferred))
			for i, m := range deferred {
				ids[i] = m.UserID
			}
			if err := cpMgr.RecordDeferred(cp, ids); err != nil {
				log.WithError(err).Warn("Failed to save checkpoint")
			}
		}
	}
	for _, m := range deferred {
		c.attempt(ctx, st, m, retryPass, log, cpMgr, cp)
	}

	summary := st.summary(c.clock.Now())
	logger.LogRunSummary(log, summary.RunID, summary.Elapsed, summary.Succeeded, summary.Failed, summary.Collected())
	if c.observer != nil {
		c.observer.RunFinished(summary)
	}

	var bookkeeping []error
	if err := c.store.RecordRun(ctx, summary); err != nil {
		log.WithError(err).Error("Failed to record run")
		bookkeeping = append(bookkeeping, fmt.Errorf("record run %s: %w", runID, err))
	}
	if c.counts != nil {
		c.counts.Merge(summary.Date, summary.Counts)
		if err := c.counts.Save(); err != nil {
			log.WithError(err).Error("Failed to save count table")
			bookkeeping = append(bookkeeping, fmt.Errorf("save count table: %w", err))
		}
	}

	if cpMgr != nil && len(bookkeeping) == 0 {
		if err := cpMgr.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	return summary, errors.Join(bookkeeping...)
}

// attempt runs one user through Attempted to a resulting state. Both passes
// use it; only a transient failure in the first pass is deferred.
func (c *Collector) attempt(ctx context.Context, st *runState, m models.CohortMember, p pass, log logger.Logger, cpMgr *checkpoint.Manager, cp *checkpoint.Checkpoint) {
	o := st.begin(m.UserID)
	if c.observer != nil {
		c.observer.UserStarted(m.UserID, o.Attempts)
	}

	count, err := c.collectUser(ctx, m)
	kind := errs.Classify(err)

	switch {
	case err == nil:
		st.persist(o, count)
	case kind == errs.KindTransient && p == firstPass:
		st.deferUser(o, m, err)
	default:
		st.fail(o, kind, err)
	}

	logger.LogUserOutcome(log.WithFields(map[string]interface{}{
		"pass":         int(p),
		"failure_kind": o.Kind.String(),
	}), m.UserID, o.State.String(), o.Count, err)

	if c.observer != nil {
		c.observer.UserFinished(*o)
	}

	if cpMgr != nil {
		if err := cpMgr.RecordOutcome(cp, *o); err != nil {
			log.WithError(err).Warn("Failed to save checkpoint")
		}
	}
}

// collectUser fetches, filters and persists one user's new entries. A panic
// anywhere below is turned into an unclassified error.
func (c *Collector) collectUser(ctx context.Context, m models.CohortMember) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			count = 0
			err = fmt.Errorf("panic collecting user %d: %v", m.UserID, r)
		}
	}()

	raw, err := c.timeline.Collect(ctx, m.UserID, m.Watermark)
	if err != nil {
		return 0, err
	}

	tweets := timeline.FilterLanguage(raw, m.UserID, c.language)
	if err := c.store.SaveTimeline(ctx, m.UserID, tweets, timeline.NewestID(raw)); err != nil {
		return 0, fmt.Errorf("persist timeline for user %d: %w", m.UserID, err)
	}
	return len(tweets), nil
}

func (c *Collector) openCheckpoint(date string) (*checkpoint.Checkpoint, *checkpoint.Manager) {
	if c.checkpoints == nil {
		return nil, nil
	}

	mgr, err := c.checkpoints(date)
	if err != nil {
		c.logger.WithError(err).Warn("Checkpoints unavailable, continuing without them")
		return nil, nil
	}
	if !c.resume {
		return nil, mgr
	}

	cp, err := mgr.Load()
	if err != nil {
		c.logger.WithError(err).Warn("Ignoring unreadable checkpoint")
		return nil, mgr
	}
	if cp != nil && cp.Date != date {
		return nil, mgr
	}
	return cp, mgr
}
