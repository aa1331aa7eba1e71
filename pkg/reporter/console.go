package reporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/probitas/probitas/pkg/definitions"
)

// ConsoleReporter is the CLI's default Reporter (spec.md treats concrete
// reporter formats as external, but the CLI needs *a* default to run
// out of the box): one line per finished Scenario, the wrapped
// scenario-level error beneath it when there is one, and a final
// pass/fail/skip summary table.
//
// Scenarios run concurrently across workers, so every write goes through
// mu to keep lines from interleaving mid-write.
type ConsoleReporter struct {
	Base

	mu    sync.Mutex
	out   io.Writer
	color bool
	width int

	passed  lipgloss.Style
	failed  lipgloss.Style
	skipped lipgloss.Style
	dim     lipgloss.Style
}

var _ Reporter = (*ConsoleReporter)(nil)

// NewConsoleReporter builds a ConsoleReporter writing to out. Color is
// used only when out is a real terminal and NO_COLOR is unset; noColor
// forces it off regardless.
func NewConsoleReporter(out io.Writer, noColor bool) *ConsoleReporter {
	color := !noColor && os.Getenv("NO_COLOR") == "" && isTerminal(out)

	width := 100
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	return &ConsoleReporter{
		out:     out,
		color:   color,
		width:   width,
		passed:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		skipped: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		dim:     lipgloss.NewStyle().Faint(true),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *ConsoleReporter) render(style lipgloss.Style, text string) string {
	if !c.color {
		return text
	}
	return style.Render(text)
}

// OnScenarioEnd prints a single result line per finished scenario and,
// on failure, the wrapped error beneath it.
func (c *ConsoleReporter) OnScenarioEnd(ctx context.Context, scenario definitions.ScenarioMetadata, result definitions.ScenarioResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	label, style := c.statusLabelStyle(result.Status)
	fmt.Fprintf(c.out, "%s  %s  (%dms)\n", c.render(style, label), scenario.Name, result.DurationMS)

	if result.Error != nil {
		for _, line := range wrap(fmt.Sprintf("%s: %s", result.Error.Name, result.Error.Message), c.width-4) {
			fmt.Fprintf(c.out, "    %s\n", c.render(c.dim, line))
		}
	}
	return nil
}

// OnScenarioSkip prints a single skip line with the reason. The Engine
// still calls OnScenarioEnd for a skipped scenario afterwards, which
// prints its result line as well.
func (c *ConsoleReporter) OnScenarioSkip(ctx context.Context, scenario definitions.ScenarioMetadata, reason string, durationMS int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "%s  %s  (%s)\n", c.render(c.skipped, "SKIP"), scenario.Name, reason)
	return nil
}

// OnStepError prints the failing step's name inline with the scenario it
// belongs to, ahead of the scenario-level summary line OnScenarioEnd
// prints once that scenario finishes.
func (c *ConsoleReporter) OnStepError(ctx context.Context, scenario definitions.ScenarioMetadata, step definitions.StepMetadata, err *definitions.ErrorObject, durationMS int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "  %s %s > %s: %s\n", c.render(c.failed, "x"), scenario.Name, step.Name, err.Message)
	return nil
}

// OnRunEnd renders the final pass/fail/skip table plus a one-line
// total, using the same summary the Aggregator produces.
func (c *ConsoleReporter) OnRunEnd(ctx context.Context, summary definitions.RunSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.AppendHeader(table.Row{"Scenario", "Status", "Duration (ms)"})
	for _, result := range summary.Scenarios {
		label, style := c.statusLabelStyle(result.Status)
		t.AppendRow(table.Row{result.Metadata.Name, c.render(style, label), result.DurationMS})
	}
	t.Render()

	fmt.Fprintf(c.out, "\n%d total, %d passed, %d failed, %d skipped (%dms)\n",
		summary.Total, summary.Passed, summary.Failed, summary.Skipped, summary.DurationMS)
	return nil
}

func (c *ConsoleReporter) statusLabelStyle(status definitions.Status) (string, lipgloss.Style) {
	switch status {
	case definitions.StatusPassed:
		return "PASS", c.passed
	case definitions.StatusFailed:
		return "FAIL", c.failed
	case definitions.StatusSkipped:
		return "SKIP", c.skipped
	default:
		return strings.ToUpper(string(status)), c.dim
	}
}

// wrap breaks s into lines no longer than width, breaking on word
// boundaries where possible. width <= 0 disables wrapping.
func wrap(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}

	var lines []string
	for _, paragraph := range strings.Split(s, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		line := words[0]
		for _, word := range words[1:] {
			if len(line)+1+len(word) > width {
				lines = append(lines, line)
				line = word
				continue
			}
			line += " " + word
		}
		lines = append(lines, line)
	}
	return lines
}
