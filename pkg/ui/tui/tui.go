// Package tui is a full-screen monitor for a running collection.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tweetcollector/pkg/collector"
	"tweetcollector/pkg/models"
)

var _ collector.Observer = (*Monitor)(nil)

// Monitor drives a bubbletea program from collector callbacks
type Monitor struct {
	program *tea.Program
	model   *Model
}

// NewMonitor creates a monitor. Extra options are passed to the program;
// the alternate screen is used by default.
func NewMonitor(opts ...tea.ProgramOption) *Monitor {
	model := NewModel()
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &Monitor{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Run blocks until the run finishes or the user closes the monitor
func (m *Monitor) Run() error {
	_, err := m.program.Run()
	return err
}

// Detached reports whether the user closed the monitor early
func (m *Monitor) Detached() bool {
	return m.model.Detached()
}

// RunStarted sets the run id and the number of users to expect
func (m *Monitor) RunStarted(runID string, users int) {
	m.program.Send(RunStartedMsg{RunID: runID, Users: users})
}

// UserStarted shows the user being collected and its attempt number
func (m *Monitor) UserStarted(userID int64, attempt int) {
	m.program.Send(UserStartedMsg{UserID: userID, Attempt: attempt})
}

// UserFinished counts an outcome and adds it to the event log
func (m *Monitor) UserFinished(outcome models.Outcome) {
	m.program.Send(OutcomeMsg{Outcome: outcome})
}

// RunFinished stores the summary and closes the monitor
func (m *Monitor) RunFinished(summary *models.RunSummary) {
	m.program.Send(RunFinishedMsg{Summary: summary})
}

// RateLimited matches the twitter client's wait hook
func (m *Monitor) RateLimited(wait time.Duration, resetAt time.Time) {
	m.program.Send(WaitMsg{Wait: wait, ResetAt: resetAt})
}
