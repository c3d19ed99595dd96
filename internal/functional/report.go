package functional

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Faint(true)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// Render formats the summary as a bordered panel.
func Render(s Summary) string {
	lines := []string{
		titleStyle.Render("Functional tests") + " " +
			mutedStyle.Render(fmt.Sprintf("(%s driver, %s)", s.Driver, s.BaseURL)),
		"",
	}

	width := 0
	for _, r := range s.Results {
		if len(r.Scenario) > width {
			width = len(r.Scenario)
		}
	}

	for _, r := range s.Results {
		name := r.Scenario + strings.Repeat(" ", width-len(r.Scenario))
		dur := mutedStyle.Render(r.Duration.Round(time.Millisecond).String())
		if r.Passed {
			lines = append(lines, passStyle.Render("✔ "+name)+"  "+dur)
			continue
		}
		lines = append(lines, failStyle.Render("✖ "+name)+"  "+dur)
		if r.Err != nil {
			lines = append(lines, mutedStyle.Render("    "+r.Err.Error()))
		}
	}

	lines = append(lines, "")
	total := len(s.Results)
	failed := s.Failed()
	tally := fmt.Sprintf("%d/%d passed in %s", total-failed, total, s.Elapsed.Round(time.Millisecond))
	if failed > 0 {
		lines = append(lines, failStyle.Render(tally))
	} else {
		lines = append(lines, passStyle.Render(tally))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// WriteReport writes the rendered summary followed by a newline.
func WriteReport(w io.Writer, s Summary) error {
	_, err := fmt.Fprintln(w, Render(s))
	return err
}
