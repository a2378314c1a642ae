package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the monitor
func (m *Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	sections := []string{
		headerStyle.Render("tweetcollector  " + dimStyle.Render(m.runID)),
		m.renderProgress(),
		lipgloss.JoinHorizontal(lipgloss.Top, m.renderStats(), "  ", m.renderCurrent()),
		m.renderEvents(),
	}

	if m.showHelp {
		sections = append(sections, helpStyle.Render("q  close the monitor (collection keeps running)\n?  toggle this help"))
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderProgress() string {
	label := fmt.Sprintf("%d/%d users", m.Done(), m.total)
	return lipgloss.JoinHorizontal(lipgloss.Center, " ", m.bar.ViewAs(m.Percent()), "  ", valueStyle.Render(label))
}

func (m *Model) renderStats() string {
	elapsed := time.Duration(0)
	if !m.started.IsZero() {
		elapsed = m.now().Sub(m.started)
	}

	rows := []string{
		titleStyle.Render(" RUN "),
		row("Elapsed", formatDuration(elapsed)),
		row("Persisted", successStyle.Render(fmt.Sprint(m.persisted))),
		row("Failed", errorStyle.Render(fmt.Sprint(m.failed))),
		row("Deferred", warningStyle.Render(fmt.Sprint(m.deferred))),
		row("Collected", fmt.Sprint(m.collected)),
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderCurrent() string {
	rows := []string{titleStyle.Render(" NOW ")}

	switch {
	case m.summary != nil:
		rows = append(rows, successStyle.Render("run complete"))
	case m.waitUntil.After(m.now()):
		rows = append(rows,
			warningStyle.Render("rate limited"),
			row("Resumes in", formatDuration(m.waitUntil.Sub(m.now()))),
		)
	case m.current != 0:
		rows = append(rows,
			m.spinner.View()+" "+valueStyle.Render(fmt.Sprintf("user %d", m.current)),
			row("Attempt", fmt.Sprint(m.attempt)),
		)
	default:
		rows = append(rows, dimStyle.Render("idle"))
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderEvents() string {
	lines := []string{titleStyle.Render(" EVENTS ")}
	if len(m.events) == 0 {
		lines = append(lines, dimStyle.Render("No events yet..."))
	}

	maxLen := m.width - 30
	for _, e := range m.events {
		msg := e.Message
		if maxLen > 3 && len(msg) > maxLen {
			msg = msg[:maxLen-3] + "..."
		}

		who := "       "
		if e.UserID != 0 {
			who = fmt.Sprintf("%d", e.UserID)
		}
		line := fmt.Sprintf("%s %s %s",
			dimStyle.Render(e.Time.Format("15:04:05")),
			valueStyle.Render(who),
			stateStyle(e.State).Render(msg),
		)
		if e.Count > 0 {
			line += dimStyle.Render(fmt.Sprintf(" (+%d)", e.Count))
		}
		lines = append(lines, line)
	}

	return panelStyle.Width(max(m.width-2, 20)).Render(strings.Join(lines, "\n"))
}

func row(label, value string) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
