package models

import (
	"time"

	errs "tweetcollector/pkg/errors"
)

// Tweet is one persisted timeline entry
type Tweet struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Text      string    `json:"text"`
	UserID    int64     `json:"user_id"`
	IsRetweet bool      `json:"is_retweet"`
	Lang      string    `json:"lang"`
}

// CohortMember is a user to collect, with the highest tweet id already stored.
// A zero Watermark means nothing is stored yet.
type CohortMember struct {
	UserID    int64 `json:"user_id"`
	Watermark int64 `json:"watermark"`
}

// State is the position of a user in a collection run
type State int

const (
	StatePending State = iota
	StateAttempted
	StatePersisted
	StateFailed
	StateDeferred
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempted:
		return "attempted"
	case StatePersisted:
		return "persisted"
	case StateFailed:
		return "failed"
	case StateDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// ParseState is the inverse of State.String
func ParseState(s string) State {
	switch s {
	case "attempted":
		return StateAttempted
	case "persisted":
		return StatePersisted
	case "failed":
		return StateFailed
	case "deferred":
		return StateDeferred
	default:
		return StatePending
	}
}

// Terminal reports whether no further work is scheduled for the state
func (s State) Terminal() bool {
	return s == StatePersisted || s == StateFailed
}

// Outcome is the per-user result of a run
type Outcome struct {
	UserID   int64            `json:"user_id"`
	State    State            `json:"state"`
	Count    int              `json:"count"`
	Kind     errs.FailureKind `json:"failure_kind"`
	Attempts int              `json:"attempts"`
	Err      string           `json:"error,omitempty"`
}

// RunSummary aggregates one collection run
type RunSummary struct {
	RunID     string             `json:"run_id"`
	Date      string             `json:"date"`
	StartedAt time.Time          `json:"started_at"`
	Elapsed   time.Duration      `json:"elapsed"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Counts    map[int64]int      `json:"counts"`
	Outcomes  map[int64]*Outcome `json:"outcomes"`
}

// Collected returns the total number of entries persisted in the run
func (s *RunSummary) Collected() int {
	total := 0
	for _, c := range s.Counts {
		total += c
	}
	return total
}

// DateFormat is the layout of RunSummary.Date and count table columns
const DateFormat = "2006-01-02"
