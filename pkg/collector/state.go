package collector

import (
	"time"

	errs "tweetcollector/pkg/errors"
	"tweetcollector/pkg/models"
)

// runState accumulates the outcomes of one run. Each Run owns its own.
type runState struct {
	runID    string
	date     string
	started  time.Time
	order    []int64
	outcomes map[int64]*models.Outcome
	deferred []models.CohortMember
}

func newRunState(runID, date string, started time.Time, cohort []models.CohortMember) *runState {
	st := &runState{
		runID:    runID,
		date:     date,
		started:  started,
		order:    make([]int64, 0, len(cohort)),
		outcomes: make(map[int64]*models.Outcome, len(cohort)),
	}
	for _, m := range cohort {
		if _, dup := st.outcomes[m.UserID]; dup {
			continue
		}
		st.order = append(st.order, m.UserID)
		st.outcomes[m.UserID] = &models.Outcome{UserID: m.UserID, State: models.StatePending}
	}
	return st
}

// begin moves a user to Attempted
func (st *runState) begin(userID int64) *models.Outcome {
	o := st.outcomes[userID]
	o.State = models.StateAttempted
	o.Attempts++
	return o
}

func (st *runState) persist(o *models.Outcome, count int) {
	o.State = models.StatePersisted
	o.Count = count
	o.Kind = errs.KindNone
	o.Err = ""
}

func (st *runState) fail(o *models.Outcome, kind errs.FailureKind, err error) {
	o.State = models.StateFailed
	o.Count = 0
	o.Kind = kind
	if err != nil {
		o.Err = err.Error()
	}
}

func (st *runState) deferUser(o *models.Outcome, m models.CohortMember, err error) {
	o.State = models.StateDeferred
	o.Count = 0
	o.Kind = errs.KindTransient
	o.Err = err.Error()
	st.deferred = append(st.deferred, m)
}

// restore takes over an outcome recorded by an earlier, interrupted run
func (st *runState) restore(saved *models.Outcome, m models.CohortMember) {
	o := st.outcomes[m.UserID]
	*o = *saved
	o.UserID = m.UserID
	if o.State == models.StateDeferred {
		st.deferred = append(st.deferred, m)
	}
}

// takeDeferred returns the users queued for the second pass and clears the
// queue
func (st *runState) takeDeferred() []models.CohortMember {
	d := st.deferred
	st.deferred = nil
	return d
}

func (st *runState) summary(now time.Time) *models.RunSummary {
	s := &models.RunSummary{
		RunID:     st.runID,
		Date:      st.date,
		StartedAt: st.started,
		Elapsed:   now.Sub(st.started),
		Counts:    make(map[int64]int, len(st.order)),
		Outcomes:  make(map[int64]*models.Outcome, len(st.order)),
	}
	for _, id := range st.order {
		o := st.outcomes[id]
		s.Outcomes[id] = o
		switch o.State {
		case models.StatePersisted:
			s.Succeeded++
			s.Counts[id] = o.Count
		case models.StateFailed:
			s.Failed++
			s.Counts[id] = 0
		default:
			s.Counts[id] = 0
		}
	}
	return s
}
