package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/pilot/internal/engine"
	"github.com/vinayprograms/pilot/internal/policy"
	"github.com/vinayprograms/pilot/internal/runner"
)

var (
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // Blue
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // Green
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // Red
	cautionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // Yellow
	faintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // Gray
)

// consoleEvents renders run progress to stderr, one line per event.
type consoleEvents struct {
	out io.Writer
}

func (c *consoleEvents) StepStart(index, total int, description string) {
	fmt.Fprintf(c.out, "▶ [%d/%d] %s\n", index+1, total, stepStyle.Render(description))
}

func (c *consoleEvents) StepEnd(index, total int, status, detail string) {
	switch status {
	case runner.StatusSuccess:
		fmt.Fprintf(c.out, "✓ [%d/%d] %s\n", index+1, total, okStyle.Render(status))
	case runner.StatusDryRun:
		fmt.Fprintf(c.out, "✓ [%d/%d] %s %s\n", index+1, total,
			cautionStyle.Render(status), faintStyle.Render(trimDetail(detail)))
	default:
		fmt.Fprintf(c.out, "✗ [%d/%d] %s %s\n", index+1, total,
			failStyle.Render(status), faintStyle.Render(trimDetail(detail)))
	}
}

func (c *consoleEvents) Recovery(index int, failure string) {
	fmt.Fprintf(c.out, "  ↻ recovery: %s\n", faintStyle.Render(trimDetail(failure)))
}

func (c *consoleEvents) Reassess(count, remaining int) {
	fmt.Fprintf(c.out, "  ⟳ reassessment #%d (%d steps remaining)\n", count, remaining)
}

// trimDetail keeps progress lines to a single readable row; full detail
// is always on the audit trail.
func trimDetail(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}

// promptApprover asks y/N for each requires-approval command. Wired only
// when stdin is a terminal; headless runs withhold approval rather than
// hang on a prompt nobody will answer.
func promptApprover(in io.Reader, out io.Writer) engine.Approver {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, command string, verdict policy.Verdict) bool {
		fmt.Fprintf(out, "%s %s\n  %s\n  approve? [y/N] ",
			cautionStyle.Render("⚠ approval required:"), command,
			faintStyle.Render(verdict.Reason))
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
