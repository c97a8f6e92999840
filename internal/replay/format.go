package replay

import (
	"fmt"
	"strings"

	"github.com/vinayprograms/pilot/internal/audit"
	"github.com/vinayprograms/pilot/internal/runner"
)

// formatRecord formats a single trail record for display.
func (r *Replayer) formatRecord(rec *audit.Record, lastStep *string) {
	// Show step transitions
	if rec.StepID != "" && rec.StepID != *lastStep {
		fmt.Fprintf(r.output, "      │          │ %s\n", dimStyle.Render("step "+rec.StepID))
		*lastStep = rec.StepID
	}

	ts := timeStyle.Render(rec.Timestamp.Format("15:04:05"))
	seqNum := seqStyle.Render(fmt.Sprintf("%d", rec.Seq))

	// Planner notes have no command to run.
	if rec.Command == "" && rec.Message != "" {
		r.fmtNote(seqNum, ts, rec)
		return
	}

	switch rec.Status {
	case runner.StatusSuccess:
		r.fmtSuccess(seqNum, ts, rec)
	case runner.StatusError:
		r.fmtError(seqNum, ts, rec)
	case runner.StatusTimeout:
		r.fmtTimeout(seqNum, ts, rec)
	case runner.StatusBlocked:
		r.fmtRefusal(seqNum, ts, rec, policyBoldStyle.Render("BLOCKED"))
	case runner.StatusDenied:
		r.fmtRefusal(seqNum, ts, rec, warnStyle.Render("DENIED"))
	case runner.StatusDryRun:
		r.fmtDryRun(seqNum, ts, rec)
	default:
		fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
			dimStyle.Render(strings.ToUpper(rec.Status)),
			commandStyle.Render(rec.Command))
	}
}

func (r *Replayer) fmtSuccess(seqNum, ts string, rec *audit.Record) {
	fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
		successStyle.Render("EXEC"),
		commandStyle.Render(rec.Command),
		dimStyle.Render(r.execInfo(rec)))
	if r.verbosity >= 1 && rec.Stdout != "" {
		r.printBlock("── STDOUT ──", rec.Stdout)
	}
	if r.verbosity >= 2 && rec.Stderr != "" {
		r.printBlock("── STDERR ──", rec.Stderr)
	}
}

func (r *Replayer) fmtError(seqNum, ts string, rec *audit.Record) {
	fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
		errorStyle.Render("FAIL"),
		commandStyle.Render(rec.Command),
		dimStyle.Render(r.execInfo(rec)))
	if rec.Stderr != "" {
		r.printBlock("── STDERR ──", rec.Stderr)
	} else if rec.Message != "" {
		r.printGutter(errorStyle.Render(rec.Message))
	}
	if r.verbosity >= 1 && rec.Stdout != "" {
		r.printBlock("── STDOUT ──", rec.Stdout)
	}
}

func (r *Replayer) fmtTimeout(seqNum, ts string, rec *audit.Record) {
	fmt.Fprintf(r.output, "%s │ %s │ %s %s %s\n", seqNum, ts,
		errorStyle.Render("TIMEOUT"),
		commandStyle.Render(rec.Command),
		dimStyle.Render(fmt.Sprintf("(after %s)", formatDuration(rec.DurationMs))))
	if r.verbosity >= 1 && rec.Stderr != "" {
		r.printBlock("── STDERR ──", rec.Stderr)
	}
}

func (r *Replayer) fmtRefusal(seqNum, ts string, rec *audit.Record, verb string) {
	fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
		verb, commandStyle.Render(rec.Command))

	if rec.Verdict != nil {
		detail := rec.Verdict.Reason
		if rec.Verdict.RuleID != "" {
			detail = fmt.Sprintf("rule %s: %s", rec.Verdict.RuleID, detail)
		}
		r.printGutter(policyStyle.Render(detail))
	} else if rec.Message != "" {
		r.printGutter(policyStyle.Render(rec.Message))
	}
}

func (r *Replayer) fmtDryRun(seqNum, ts string, rec *audit.Record) {
	fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
		warnStyle.Render("DRY-RUN"),
		commandStyle.Render(rec.Command))
}

func (r *Replayer) fmtNote(seqNum, ts string, rec *audit.Record) {
	first, rest, _ := strings.Cut(rec.Message, "\n")
	fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts,
		noteStyle.Render("NOTE"),
		valueStyle.Render(first))
	if r.verbosity >= 1 && rest != "" {
		r.printContent(rest)
	}
}

// execInfo summarizes exit code and duration for the timeline line.
func (r *Replayer) execInfo(rec *audit.Record) string {
	parts := []string{}
	if rec.ExitCode != nil {
		parts = append(parts, fmt.Sprintf("exit %d", *rec.ExitCode))
	}
	if rec.DurationMs > 0 {
		parts = append(parts, formatDuration(rec.DurationMs))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// printBlock prints a labeled content block in the timeline gutter.
func (r *Replayer) printBlock(header, content string) {
	if r.maxOutputSize > 0 && len(content) > r.maxOutputSize {
		content = content[:r.maxOutputSize] +
			fmt.Sprintf("\n... [truncated, %d bytes total]", len(content))
	}

	fmt.Fprintf(r.output, "      │          │\n")
	fmt.Fprintf(r.output, "      │          │   %s\n", blockHeaderStyle.Render(header))
	r.printContent(content)
}

// printContent prints verbose content with timeline indentation.
func (r *Replayer) printContent(content string) {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	maxLines := 10
	if r.verbosity >= 1 {
		maxLines = 50
	}
	if r.verbosity >= 2 {
		maxLines = len(lines)
	}

	for i, line := range lines {
		if i >= maxLines {
			remaining := len(lines) - maxLines
			fmt.Fprintf(r.output, "      │          │   %s\n",
				dimStyle.Render(fmt.Sprintf("... (%d more lines)", remaining)))
			break
		}
		fmt.Fprintf(r.output, "      │          │   %s\n", line)
	}
}

// printGutter prints a single detail line in the timeline gutter.
func (r *Replayer) printGutter(text string) {
	fmt.Fprintf(r.output, "      │          │   %s\n", text)
}

// truncateHint truncates a string to maxLen, adding ... if needed.
func truncateHint(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
