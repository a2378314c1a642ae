package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tweetcollector/pkg/models"
)

const defaultMaxEvents = 12

// Event is one line of the monitor's event log
type Event struct {
	Time    time.Time
	UserID  int64
	State   models.State
	Count   int
	Message string
}

// Model is the bubbletea model of a running collection
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	runID   string
	total   int
	started time.Time

	// last known state per user, so a deferred user that later settles is
	// only counted once
	states    map[int64]models.State
	persisted int
	failed    int
	deferred  int
	collected int

	current int64
	attempt int

	waitUntil time.Time

	events    []Event
	maxEvents int

	summary  *models.RunSummary
	detached bool

	width    int
	height   int
	showHelp bool

	now func() time.Time
}

// NewModel creates an empty monitor model
func NewModel() *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	return &Model{
		spinner:   s,
		bar:       progress.New(progress.WithDefaultGradient()),
		states:    make(map[int64]models.State),
		maxEvents: defaultMaxEvents,
		now:       time.Now,
	}
}

// Init starts the spinner
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Done is the number of users in a terminal state
func (m *Model) Done() int {
	return m.persisted + m.failed
}

// Percent is the share of users that reached a terminal state
func (m *Model) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.Done()) / float64(m.total)
}

// Counts returns persisted, failed and deferred users
func (m *Model) Counts() (persisted, failed, deferred int) {
	return m.persisted, m.failed, m.deferred
}

// Collected is the number of entries persisted so far
func (m *Model) Collected() int {
	return m.collected
}

// Events returns the retained event log, oldest first
func (m *Model) Events() []Event {
	return m.events
}

// Finished reports whether the run summary has arrived
func (m *Model) Finished() bool {
	return m.summary != nil
}

// Detached reports whether the user closed the monitor before the run ended
func (m *Model) Detached() bool {
	return m.detached
}

func (m *Model) start(runID string, users int) {
	m.runID = runID
	m.total = users
	m.started = m.now()
}

func (m *Model) begin(userID int64, attempt int) {
	m.current = userID
	m.attempt = attempt
}

func (m *Model) settle(o models.Outcome) {
	switch m.states[o.UserID] {
	case models.StateDeferred:
		m.deferred--
	case models.StatePersisted, models.StateFailed:
		// terminal states are final
		return
	}
	m.states[o.UserID] = o.State

	switch o.State {
	case models.StatePersisted:
		m.persisted++
		m.collected += o.Count
	case models.StateFailed:
		m.failed++
	case models.StateDeferred:
		m.deferred++
	}
	if m.current == o.UserID {
		m.current = 0
	}

	msg := o.State.String()
	if o.Err != "" {
		msg = o.Kind.String() + ": " + o.Err
	}
	m.record(Event{Time: m.now(), UserID: o.UserID, State: o.State, Count: o.Count, Message: msg})
}

func (m *Model) record(e Event) {
	m.events = append(m.events, e)
	if len(m.events) > m.maxEvents {
		m.events = m.events[len(m.events)-m.maxEvents:]
	}
}
