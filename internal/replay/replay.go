// Package replay provides audit trail replay and visualization.
package replay

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vinayprograms/pilot/internal/audit"
)

// Replayer reads and formats audit trail records for forensic review.
type Replayer struct {
	output        io.Writer
	verbosity     int // 0=normal, 1=verbose (-v), 2=very verbose (-vv)
	maxOutputSize int // Maximum bytes of stdout/stderr shown per record (0 = unlimited)
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithMaxOutputSize limits displayed command output to avoid flooding the
// terminal on trails with large captures.
func WithMaxOutputSize(size int) ReplayerOption {
	return func(r *Replayer) {
		r.maxOutputSize = size
	}
}

// New creates a new Replayer.
// verbosity: 0=normal, 1=verbose (-v), 2=very verbose (-vv)
func New(output io.Writer, verbosity int, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		output:        output,
		verbosity:     verbosity,
		maxOutputSize: 50 * 1024, // Default: 50KB per output field
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplayFile loads and replays a trail from a file.
func (r *Replayer) ReplayFile(path string) error {
	data, err := audit.LoadTrail(path)
	if err != nil {
		return err
	}
	return r.Replay(data)
}

// ReplayFileInteractive loads and replays with an interactive pager.
func (r *Replayer) ReplayFileInteractive(path string) error {
	data, err := audit.LoadTrail(path)
	if err != nil {
		return err
	}

	var buf strings.Builder
	oldOutput := r.output
	r.output = &buf
	err = r.Replay(data)
	r.output = oldOutput
	if err != nil {
		return err
	}

	title := fmt.Sprintf("Run: %s", data.Header.RunID)
	return RunPager(title, buf.String())
}

// ReplayFileLive replays an in-progress trail, re-rendering on every write.
func (r *Replayer) ReplayFileLive(path string) error {
	renderFunc := func() (string, error) {
		data, err := audit.LoadTrail(path)
		if err != nil {
			return "", err
		}

		var buf strings.Builder
		oldOutput := r.output
		r.output = &buf
		err = r.Replay(data)
		r.output = oldOutput

		if err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	data, err := audit.LoadTrail(path)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("Run: %s (LIVE)", data.Header.RunID)
	return RunPagerLive(title, path, renderFunc)
}

// Replay outputs a formatted timeline of trail records.
func (r *Replayer) Replay(data *audit.TrailData) error {
	r.printHeader(data)
	r.printTimeline(data)
	r.printSummary(data)
	return nil
}

func (r *Replayer) printHeader(data *audit.TrailData) {
	h := data.Header
	mode := "live"
	if h.DryRun {
		mode = "dry-run"
	}

	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("RUN"), valueStyle.Render(h.RunID))
	fmt.Fprintln(r.output, divider)
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Started:"), valueStyle.Render(h.StartedAt.Format(time.RFC3339)))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Steps:  "), valueStyle.Render(fmt.Sprintf("%d", h.PlanSteps)))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Mode:   "), r.modeStyle(mode).Render(mode))
	fmt.Fprintln(r.output)
}

func (r *Replayer) printTimeline(data *audit.TrailData) {
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TIMELINE"), dimStyle.Render(fmt.Sprintf("(%d records)", len(data.Records))))
	fmt.Fprintln(r.output, divider)

	var lastStep string
	for i := range data.Records {
		r.formatRecord(&data.Records[i], &lastStep)
	}
}

func (r *Replayer) printSummary(data *audit.TrailData) {
	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, divider)

	if data.Footer == nil {
		fmt.Fprintln(r.output, warnStyle.Render("IN PROGRESS"))
	} else {
		switch data.Footer.Result {
		case "completed":
			fmt.Fprintln(r.output, successStyle.Render("COMPLETED"))
		case "aborted":
			fmt.Fprintln(r.output, warnStyle.Render("ABORTED"))
		default:
			fmt.Fprintf(r.output, "%s %s\n", errorStyle.Render("FAILED:"), valueStyle.Render(data.Footer.Result))
		}
	}

	PrintStats(r.output, ComputeStats(data))
}

// modeStyle returns the style for the run mode.
func (r *Replayer) modeStyle(mode string) lipgloss.Style {
	if mode == "dry-run" {
		return warnStyle
	}
	return valueStyle
}
