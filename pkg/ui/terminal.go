// Package ui holds the plain terminal output of the CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"tweetcollector/pkg/models"
)

// ASCIILogo is printed by commands that talk to the user
const ASCIILogo = `
  ╔════════════════════════════════════════════════════╗
  ║  ▀█▀ █ █ █ █▀▀ █▀▀ ▀█▀   █▀▀ █▀█ █   █   █▀▀ █▀▀ ▀█▀ ║
  ║   █  ▀▄▀▄▀ ██▄ ██▄  █    █▄▄ █▄█ █▄▄ █▄▄ ██▄ █▄▄  █  ║
  ║            timeline collection for research          ║
  ╚════════════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

var out io.Writer = os.Stdout

// SetOutput redirects every Print helper
func SetOutput(w io.Writer) {
	out = w
}

func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	fmt.Fprint(out, Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(out, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	fmt.Fprintf(out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(out, Magenta(msg))
}

var (
	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#1DA1F2")).
			Padding(0, 2)
	summaryLabel = lipgloss.NewStyle().Bold(true).Width(12)
)

// RenderRunSummary formats a run summary. Failed users are listed with
// their failure kind, at most maxFailures of them.
func RenderRunSummary(s *models.RunSummary, maxFailures int) string {
	line := func(label, value string) string {
		return summaryLabel.Render(label) + value
	}

	lines := []string{
		line("Run", s.RunID),
		line("Date", s.Date),
		line("Elapsed", s.Elapsed.Round(time.Second).String()),
		line("Users", fmt.Sprint(len(s.Outcomes))),
		line("Succeeded", fmt.Sprint(s.Succeeded)),
		line("Failed", fmt.Sprint(s.Failed)),
		line("Collected", fmt.Sprint(s.Collected())),
	}

	var failed []*models.Outcome
	for _, o := range s.Outcomes {
		if o.State == models.StateFailed {
			failed = append(failed, o)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].UserID < failed[j].UserID })

	if len(failed) > 0 {
		lines = append(lines, "")
		for i, o := range failed {
			if i == maxFailures {
				lines = append(lines, fmt.Sprintf("... and %d more", len(failed)-maxFailures))
				break
			}
			lines = append(lines, fmt.Sprintf("%d  %s", o.UserID, o.Kind))
		}
	}

	return summaryBox.Render(strings.Join(lines, "\n"))
}

// PrintRunSummary prints RenderRunSummary with up to ten failures
func PrintRunSummary(s *models.RunSummary) {
	fmt.Fprintln(out, RenderRunSummary(s, 10))
}
