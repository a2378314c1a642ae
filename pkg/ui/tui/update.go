package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"tweetcollector/pkg/models"
)

// RunStartedMsg announces the run id and cohort size
type RunStartedMsg struct {
	RunID string
	Users int
}

// UserStartedMsg is sent when an attempt for a user begins
type UserStartedMsg struct {
	UserID  int64
	Attempt int
}

// OutcomeMsg carries the result of one attempt
type OutcomeMsg struct {
	Outcome models.Outcome
}

// WaitMsg is sent when the client sleeps for the rate-limit window
type WaitMsg struct {
	Wait    time.Duration
	ResetAt time.Time
}

// RunFinishedMsg carries the final summary and closes the monitor
type RunFinishedMsg struct {
	Summary *models.RunSummary
}

// Update applies a message to the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-24, 10)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case RunStartedMsg:
		m.start(msg.RunID, msg.Users)
		return m, nil

	case UserStartedMsg:
		m.begin(msg.UserID, msg.Attempt)
		return m, nil

	case OutcomeMsg:
		m.settle(msg.Outcome)
		return m, nil

	case WaitMsg:
		m.waitUntil = m.now().Add(msg.Wait)
		m.record(Event{Time: m.now(), Message: "rate limited until " + msg.ResetAt.Local().Format("15:04:05")})
		return m, nil

	case RunFinishedMsg:
		m.summary = msg.Summary
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		m.detached = true
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	}

	return m, nil
}
