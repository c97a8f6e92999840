package replay

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vinayprograms/pilot/internal/audit"
	"github.com/vinayprograms/pilot/internal/runner"
)

// Stats holds aggregate statistics for a trail.
type Stats struct {
	// Wall clock between first and last record
	TotalDurationMs int64

	// Record counts by outcome
	Commands  int
	Succeeded int
	Failed    int
	TimedOut  int
	Blocked   int
	Denied    int
	DryRun    int
	Notes     int

	// Command execution times
	ExecTotalMs int64
	ExecAvgMs   int64

	SlowestMs      int64
	SlowestCommand string
}

// ComputeStats calculates aggregate statistics from trail records.
func ComputeStats(data *audit.TrailData) *Stats {
	stats := &Stats{}

	var firstRec, lastRec time.Time
	executed := 0

	for i := range data.Records {
		rec := &data.Records[i]

		// Track overall duration
		if firstRec.IsZero() || rec.Timestamp.Before(firstRec) {
			firstRec = rec.Timestamp
		}
		if lastRec.IsZero() || rec.Timestamp.After(lastRec) {
			lastRec = rec.Timestamp
		}

		if rec.Command == "" && rec.Message != "" {
			stats.Notes++
			continue
		}

		stats.Commands++
		switch rec.Status {
		case runner.StatusSuccess:
			stats.Succeeded++
		case runner.StatusError:
			stats.Failed++
		case runner.StatusTimeout:
			stats.TimedOut++
		case runner.StatusBlocked:
			stats.Blocked++
		case runner.StatusDenied:
			stats.Denied++
		case runner.StatusDryRun:
			stats.DryRun++
		}

		// Only spawned commands contribute execution time
		switch rec.Status {
		case runner.StatusSuccess, runner.StatusError, runner.StatusTimeout:
			executed++
			stats.ExecTotalMs += rec.DurationMs
			if rec.DurationMs > stats.SlowestMs {
				stats.SlowestMs = rec.DurationMs
				stats.SlowestCommand = rec.Command
			}
		}
	}

	if !firstRec.IsZero() && !lastRec.IsZero() {
		stats.TotalDurationMs = lastRec.Sub(firstRec).Milliseconds()
	}
	if executed > 0 {
		stats.ExecAvgMs = stats.ExecTotalMs / int64(executed)
	}

	return stats
}

// PrintStats outputs the statistics to the writer.
func PrintStats(w io.Writer, stats *Stats) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("═══════════════════════════════════════════════════════════════════"))
	fmt.Fprintln(w, headerStyle.Render("                           RUN STATISTICS                           "))
	fmt.Fprintln(w, headerStyle.Render("═══════════════════════════════════════════════════════════════════"))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s %s\n",
		labelStyle.Render("Total Duration:"),
		valueStyle.Render(formatDuration(stats.TotalDurationMs)))
	fmt.Fprintln(w)

	if stats.Commands > 0 {
		fmt.Fprintln(w, headerStyle.Render("Commands:"))
		fmt.Fprintf(w, "  %s %s\n",
			labelStyle.Render("Total:    "),
			valueStyle.Render(fmt.Sprintf("%d", stats.Commands)))
		fmt.Fprintf(w, "  %s %s\n",
			labelStyle.Render("Succeeded:"),
			valueStyle.Render(fmt.Sprintf("%d", stats.Succeeded)))
		if stats.Failed > 0 {
			fmt.Fprintf(w, "  %s %s\n",
				labelStyle.Render("Failed:   "),
				valueStyle.Render(fmt.Sprintf("%d", stats.Failed)))
		}
		if stats.TimedOut > 0 {
			fmt.Fprintf(w, "  %s %s\n",
				labelStyle.Render("Timed out:"),
				valueStyle.Render(fmt.Sprintf("%d", stats.TimedOut)))
		}
		if stats.Blocked > 0 {
			fmt.Fprintf(w, "  %s %s\n",
				labelStyle.Render("Blocked:  "),
				valueStyle.Render(fmt.Sprintf("%d", stats.Blocked)))
		}
		if stats.Denied > 0 {
			fmt.Fprintf(w, "  %s %s\n",
				labelStyle.Render("Denied:   "),
				valueStyle.Render(fmt.Sprintf("%d", stats.Denied)))
		}
		if stats.DryRun > 0 {
			fmt.Fprintf(w, "  %s %s\n",
				labelStyle.Render("Dry-run:  "),
				valueStyle.Render(fmt.Sprintf("%d", stats.DryRun)))
		}
		fmt.Fprintln(w)
	}

	if stats.Notes > 0 {
		fmt.Fprintf(w, "%s %s\n",
			labelStyle.Render("Planner Notes:"),
			valueStyle.Render(fmt.Sprintf("%d", stats.Notes)))
		fmt.Fprintln(w)
	}

	if stats.ExecTotalMs > 0 {
		fmt.Fprintln(w, headerStyle.Render("Execution Times:"))
		fmt.Fprintf(w, "  %s %s\n",
			labelStyle.Render("Total:  "),
			valueStyle.Render(formatDuration(stats.ExecTotalMs)))
		fmt.Fprintf(w, "  %s %s\n",
			labelStyle.Render("Average:"),
			valueStyle.Render(formatDuration(stats.ExecAvgMs)))
		if stats.SlowestCommand != "" {
			fmt.Fprintf(w, "  %s %s %s\n",
				labelStyle.Render("Slowest:"),
				valueStyle.Render(formatDuration(stats.SlowestMs)),
				labelStyle.Render(fmt.Sprintf("(%s)", truncateHint(stats.SlowestCommand, 50))))
		}
		fmt.Fprintln(w)
	}
}

// formatDuration formats milliseconds as human-readable duration.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.2fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm%ds", mins, secs)
}
