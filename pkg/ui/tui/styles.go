package tui

import (
	"github.com/charmbracelet/lipgloss"

	"tweetcollector/pkg/models"
)

var (
	accent  = lipgloss.Color("#1DA1F2")
	green   = lipgloss.Color("#39D353")
	orange  = lipgloss.Color("#FF8C1A")
	red     = lipgloss.Color("#F85149")
	dim     = lipgloss.Color("#8B949E")
	panelBg = lipgloss.Color("#161B22")

	headerStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Background(panelBg).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
			Background(accent).
			Foreground(lipgloss.Color("#0D1117")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E6EDF3"))

	dimStyle = lipgloss.NewStyle().Foreground(dim)

	successStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(orange).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(red).Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(dim).
			Padding(1, 0, 0, 1)
)

// stateStyle colours a user state the way the event log shows it
func stateStyle(s models.State) lipgloss.Style {
	switch s {
	case models.StatePersisted:
		return successStyle
	case models.StateDeferred:
		return warningStyle
	case models.StateFailed:
		return errorStyle
	default:
		return dimStyle
	}
}
