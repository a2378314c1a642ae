package collector_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dghubble/go-twitter/twitter"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tweetcollector/pkg/checkpoint"
	"tweetcollector/pkg/collector"
	"tweetcollector/pkg/config"
	"tweetcollector/pkg/database"
	errs "tweetcollector/pkg/errors"
	"tweetcollector/pkg/logger"
	"tweetcollector/pkg/models"
	"tweetcollector/pkg/ratelimit"
	"tweetcollector/pkg/storage"
	"tweetcollector/pkg/timeline"
	tw "tweetcollector/pkg/twitter"
)

var runDay = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// step is one scripted reply of the fake timeline
type step struct {
	ids   []int64
	lang  map[int64]string
	err   error
	panic bool
}

// scriptedTimeline replays a script per user and records every call
type scriptedTimeline struct {
	script map[int64][]step
	calls  []int64
}

func (s *scriptedTimeline) Collect(ctx context.Context, userID, sinceID int64) ([]twitter.Tweet, error) {
	n := 0
	for _, id := range s.calls {
		if id == userID {
			n++
		}
	}
	s.calls = append(s.calls, userID)

	steps := s.script[userID]
	if n >= len(steps) {
		return nil, nil
	}
	st := steps[n]
	if st.panic {
		panic("unexpected payload")
	}
	if st.err != nil {
		return nil, st.err
	}

	out := make([]twitter.Tweet, 0, len(st.ids))
	for _, id := range st.ids {
		if id <= sinceID {
			continue
		}
		lang := "en"
		if l, ok := st.lang[id]; ok {
			lang = l
		}
		out = append(out, twitter.Tweet{ID: id, FullText: fmt.Sprintf("tweet %d", id), Lang: lang})
	}
	return out, nil
}

func (s *scriptedTimeline) callsFor(userID int64) int {
	n := 0
	for _, id := range s.calls {
		if id == userID {
			n++
		}
	}
	return n
}

// staticPages serves a fixed set of timelines page by page, like the API
type staticPages struct {
	timelines map[int64][]int64 // newest first
}

func (s *staticPages) FetchPage(ctx context.Context, req tw.PageRequest) ([]twitter.Tweet, error) {
	var page []twitter.Tweet
	for _, id := range s.timelines[req.UserID] {
		if id <= req.SinceID || (req.MaxID != 0 && id > req.MaxID) {
			continue
		}
		page = append(page, twitter.Tweet{ID: id, FullText: "x", Lang: "en"})
		if len(page) == req.Count {
			break
		}
	}
	return page, nil
}

// failingStore fails SaveTimeline for selected users and RecordRun when
// recordErr is set
type failingStore struct {
	collector.Store
	failFor   map[int64]error
	recordErr error
}

func (f *failingStore) RecordRun(ctx context.Context, summary *models.RunSummary) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	return f.Store.RecordRun(ctx, summary)
}

// flakyTable fails the next failSaves calls to Save
type flakyTable struct {
	*storage.CountTable
	failSaves int
}

func (f *flakyTable) Save() error {
	if f.failSaves > 0 {
		f.failSaves--
		return errors.New("disk full")
	}
	return f.CountTable.Save()
}

func (f *failingStore) SaveTimeline(ctx context.Context, userID int64, tweets []models.Tweet, newestID int64) error {
	if err, ok := f.failFor[userID]; ok {
		return err
	}
	return f.Store.SaveTimeline(ctx, userID, tweets, newestID)
}

func openDB() *database.DB {
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:", MaxOpenConns: 1})
	Expect(err).NotTo(HaveOccurred())
	Expect(db.EnsureSchema(context.Background())).To(Succeed())
	DeferCleanup(db.Close)
	return db
}

func descending(top int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = top - int64(i)
	}
	return out
}

func cohortOf(ids ...int64) []models.CohortMember {
	out := make([]models.CohortMember, len(ids))
	for i, id := range ids {
		out[i] = models.CohortMember{UserID: id}
	}
	return out
}

var (
	protectedErr = errs.New(errs.ErrorTypeProtected, 179, "Sorry, you are not authorized to see this status.")
	transientErr = errs.Wrap(errs.ErrorTypeNetwork, errors.New("connection reset by peer"), "request failed")
)

var _ = Describe("Collector", func() {
	var (
		ctx   context.Context
		db    *database.DB
		tl    *scriptedTimeline
		clock *ratelimit.ManualClock
		log   *logger.TestLogger
	)

	newCollector := func(store collector.Store, opts ...collector.Option) *collector.Collector {
		base := []collector.Option{
			collector.WithClock(clock),
			collector.WithLogger(log),
		}
		return collector.New(tl, store, append(base, opts...)...)
	}

	BeforeEach(func() {
		ctx = context.Background()
		db = openDB()
		tl = &scriptedTimeline{script: map[int64][]step{}}
		clock = ratelimit.NewManualClock(runDay)
		log = logger.NewTestLogger()
	})

	Context("when an account is protected", func() {
		It("fails the user with a zero count and does not retry", func() {
			tl.script[1] = []step{{err: protectedErr}}

			summary, err := newCollector(db).Run(ctx, cohortOf(1))
			Expect(err).NotTo(HaveOccurred())

			o := summary.Outcomes[1]
			Expect(o.State).To(Equal(models.StateFailed))
			Expect(o.Count).To(Equal(0))
			Expect(o.Kind).To(Equal(errs.KindProtectedOrUnavailable))
			Expect(o.Attempts).To(Equal(1))
			Expect(tl.callsFor(1)).To(Equal(1))
			Expect(summary.Failed).To(Equal(1))
			Expect(summary.Counts).To(HaveKeyWithValue(int64(1), 0))
		})
	})

	Context("when a connection fails", func() {
		It("persists the user when the retry succeeds", func() {
			tl.script[2] = []step{{err: transientErr}, {ids: []int64{30, 20, 10}}}

			summary, err := newCollector(db).Run(ctx, cohortOf(2))
			Expect(err).NotTo(HaveOccurred())

			o := summary.Outcomes[2]
			Expect(o.State).To(Equal(models.StatePersisted))
			Expect(o.Count).To(Equal(3))
			Expect(o.Attempts).To(Equal(2))
			Expect(summary.Succeeded).To(Equal(1))

			ids, err := db.TweetIDs(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]int64{30, 20, 10}))
		})

		It("fails the user when the retry also fails", func() {
			tl.script[3] = []step{{err: transientErr}, {err: transientErr}}

			summary, err := newCollector(db).Run(ctx, cohortOf(3))
			Expect(err).NotTo(HaveOccurred())

			o := summary.Outcomes[3]
			Expect(o.State).To(Equal(models.StateFailed))
			Expect(o.Count).To(Equal(0))
			Expect(o.Kind).To(Equal(errs.KindTransient))
			Expect(tl.callsFor(3)).To(Equal(2), "no third attempt")
		})

		It("retries deferred users only after the whole cohort has been tried", func() {
			tl.script[1] = []step{{err: transientErr}, {ids: []int64{5}}}
			tl.script[2] = []step{{ids: []int64{7}}}
			tl.script[3] = []step{{ids: []int64{9}}}

			_, err := newCollector(db).Run(ctx, cohortOf(1, 2, 3))
			Expect(err).NotTo(HaveOccurred())
			Expect(tl.calls).To(Equal([]int64{1, 2, 3, 1}))
		})

		It("classifies a deadline as transient", func() {
			tl.script[4] = []step{{err: fmt.Errorf("fetch first page for user 4: %w", context.DeadlineExceeded)}, {ids: []int64{1}}}

			summary, err := newCollector(db).Run(ctx, cohortOf(4))
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Outcomes[4].State).To(Equal(models.StatePersisted))
		})
	})

	Context("when an unexpected error happens", func() {
		It("fails the user without retrying and keeps going", func() {
			tl.script[1] = []step{{err: errors.New("something odd")}}
			tl.script[2] = []step{{panic: true}}
			tl.script[3] = []step{{ids: []int64{11, 12}}}

			summary, err := newCollector(db).Run(ctx, cohortOf(1, 2, 3))
			Expect(err).NotTo(HaveOccurred())

			Expect(summary.Outcomes[1].State).To(Equal(models.StateFailed))
			Expect(summary.Outcomes[1].Kind).To(Equal(errs.KindUnclassified))
			Expect(summary.Outcomes[2].State).To(Equal(models.StateFailed))
			Expect(summary.Outcomes[2].Err).To(ContainSubstring("panic"))
			Expect(summary.Outcomes[3].State).To(Equal(models.StatePersisted))
			Expect(summary.Outcomes[3].Count).To(Equal(2))
			Expect(tl.callsFor(1)).To(Equal(1))
			Expect(tl.callsFor(2)).To(Equal(1))
			Expect(summary.Succeeded).To(Equal(1))
			Expect(summary.Failed).To(Equal(2))
		})

		It("fails the user when persistence fails", func() {
			tl.script[1] = []step{{ids: []int64{3, 2, 1}}}
			store := &failingStore{Store: db, failFor: map[int64]error{1: errors.New("disk I/O error")}}

			summary, err := newCollector(store).Run(ctx, cohortOf(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Outcomes[1].State).To(Equal(models.StateFailed))
			Expect(summary.Outcomes[1].Kind).To(Equal(errs.KindUnclassified))
			Expect(summary.Counts[1]).To(Equal(0))

			n, err := db.CountTweets(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))
		})
	})

	Context("language filtering", func() {
		It("counts only entries in the configured language", func() {
			tl.script[1] = []step{{
				ids:  []int64{50, 40, 30, 20, 10},
				lang: map[int64]string{50: "fr", 20: "es"},
			}}

			summary, err := newCollector(db).Run(ctx, cohortOf(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Counts[1]).To(Equal(3))

			ids, err := db.TweetIDs(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]int64{40, 30, 10}))

			cohort, err := db.Cohort(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cohort).To(Equal([]models.CohortMember{{UserID: 1, Watermark: 50}}))
		})

		It("keeps everything when the filter is disabled", func() {
			tl.script[1] = []step{{ids: []int64{2, 1}, lang: map[int64]string{2: "fr"}}}

			summary, err := newCollector(db, collector.WithLanguage("")).Run(ctx, cohortOf(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Counts[1]).To(Equal(2))
		})
	})

	Context("idempotence", func() {
		It("collects nothing on a second run without new entries", func() {
			pages := &staticPages{timelines: map[int64][]int64{
				1: descending(5000, 450),
				2: descending(900, 3),
			}}
			paginator := timeline.NewPaginator(pages, timeline.Options{PageSize: 200, ContinueThreshold: 100}, logger.NewNopLogger())
			c := collector.New(paginator, db, collector.WithClock(clock), collector.WithLogger(log))

			_, err := db.AddUsers(ctx, []int64{1, 2})
			Expect(err).NotTo(HaveOccurred())

			cohort, err := db.Cohort(ctx)
			Expect(err).NotTo(HaveOccurred())
			first, err := c.Run(ctx, cohort)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Counts).To(Equal(map[int64]int{1: 450, 2: 3}))

			before, err := db.CountTweets(ctx)
			Expect(err).NotTo(HaveOccurred())

			cohort, err = db.Cohort(ctx)
			Expect(err).NotTo(HaveOccurred())
			second, err := c.Run(ctx, cohort)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Counts).To(Equal(map[int64]int{1: 0, 2: 0}))
			Expect(second.Succeeded).To(Equal(2))

			after, err := db.CountTweets(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))
		})
	})

	Context("bookkeeping", func() {
		It("records the run and merges counts under the run date", func() {
			tl.script[1] = []step{{ids: []int64{3, 2, 1}}}
			tl.script[2] = []step{{err: protectedErr}}

			table := storage.NewCountTable(filepath.Join(GinkgoT().TempDir(), "tweet_count.csv"))
			c := newCollector(db,
				collector.WithCountTable(table),
				collector.WithRunIDs(func() string { return "run-42" }),
			)

			summary, err := c.Run(ctx, cohortOf(1, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.RunID).To(Equal("run-42"))
			Expect(summary.Date).To(Equal("2024-05-01"))

			run, err := db.GetRun(ctx, "run-42")
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Succeeded).To(Equal(1))
			Expect(run.Failed).To(Equal(1))

			outcomes, err := db.RunOutcomes(ctx, "run-42")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcomes).To(HaveLen(2))

			n, ok := table.Get(1, "2024-05-01")
			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(3))
			n, ok = table.Get(2, "2024-05-01")
			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(0))

			reloaded, err := storage.LoadCountTable(table.Path())
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Dates()).To(Equal([]string{"2024-05-01"}))
		})

		It("logs one summary line", func() {
			tl.script[1] = []step{{ids: []int64{1}}}

			_, err := newCollector(db).Run(ctx, cohortOf(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(log.HasMessage("Collection run complete")).To(BeTrue())
		})

		It("reports a run record that cannot be written", func() {
			tl.script[1] = []step{{ids: []int64{1}}}
			store := &failingStore{Store: db, recordErr: errors.New("database is locked")}

			summary, err := newCollector(store).Run(ctx, cohortOf(1))
			Expect(err).To(MatchError(ContainSubstring("database is locked")))
			Expect(summary).NotTo(BeNil())
			Expect(summary.Counts[1]).To(Equal(1))
		})
	})

	Context("resuming", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		open := func(date string) (*checkpoint.Manager, error) {
			return checkpoint.NewManager(dir, date, logger.NewNopLogger())
		}

		It("skips users finished by an interrupted run", func() {
			mgr, err := open("2024-05-01")
			Expect(err).NotTo(HaveOccurred())
			cp, err := mgr.Create("2024-05-01", "interrupted")
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.RecordOutcome(cp, models.Outcome{UserID: 1, State: models.StatePersisted, Count: 5, Attempts: 1})).To(Succeed())
			Expect(mgr.RecordOutcome(cp, models.Outcome{UserID: 2, State: models.StateDeferred, Kind: errs.KindTransient, Attempts: 1})).To(Succeed())

			tl.script[2] = []step{{ids: []int64{8}}}
			tl.script[3] = []step{{ids: []int64{9, 7}}}

			summary, err := newCollector(db, collector.WithCheckpoints(open, true)).Run(ctx, cohortOf(1, 2, 3))
			Expect(err).NotTo(HaveOccurred())

			Expect(summary.RunID).To(Equal("interrupted"))
			Expect(tl.callsFor(1)).To(Equal(0))
			Expect(tl.callsFor(2)).To(Equal(1), "a deferred user only gets its retry")
			Expect(summary.Counts).To(Equal(map[int64]int{1: 5, 2: 1, 3: 2}))
			Expect(summary.Outcomes[2].Attempts).To(Equal(2))
			Expect(mgr.Exists()).To(BeFalse(), "checkpoint is removed after a complete run")
		})

		It("finishes a resumed run whose record was already written", func() {
			tl.script[1] = []step{{ids: []int64{3, 2, 1}}}
			table := &flakyTable{
				CountTable: storage.NewCountTable(filepath.Join(dir, "tweet_count.csv")),
				failSaves:  1,
			}
			newRun := func() *collector.Collector {
				return newCollector(db,
					collector.WithCountTable(table),
					collector.WithCheckpoints(open, true),
				)
			}

			first, err := newRun().Run(ctx, cohortOf(1))
			Expect(err).To(MatchError(ContainSubstring("disk full")))
			mgr, err := open("2024-05-01")
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.Exists()).To(BeTrue(), "checkpoint is kept after failed bookkeeping")

			second, err := newRun().Run(ctx, cohortOf(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(second.RunID).To(Equal(first.RunID))
			Expect(second.Counts[1]).To(Equal(3))
			Expect(tl.callsFor(1)).To(Equal(1), "the finished user is not collected again")
			Expect(mgr.Exists()).To(BeFalse())

			runs, err := db.ListRuns(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(1))

			n, ok := table.Get(1, "2024-05-01")
			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(3))
			reloaded, err := storage.LoadCountTable(table.Path())
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Dates()).To(Equal([]string{"2024-05-01"}))
		})

		It("starts over when resume is off", func() {
			mgr, err := open("2024-05-01")
			Expect(err).NotTo(HaveOccurred())
			cp, err := mgr.Create("2024-05-01", "old")
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.RecordOutcome(cp, models.Outcome{UserID: 1, State: models.StatePersisted, Count: 5})).To(Succeed())

			tl.script[1] = []step{{ids: []int64{4}}}

			summary, err := newCollector(db, collector.WithCheckpoints(open, false)).Run(ctx, cohortOf(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.RunID).NotTo(Equal("old"))
			Expect(tl.callsFor(1)).To(Equal(1))
			Expect(summary.Counts[1]).To(Equal(1))
		})
	})
})
