package replay

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vinayprograms/pilot/internal/audit"
)

// MultiReplayer handles multiple trail files.
type MultiReplayer struct {
	output    io.Writer
	verbosity int
}

// NewMulti creates a new MultiReplayer.
func NewMulti(output io.Writer, verbosity int) *MultiReplayer {
	return &MultiReplayer{
		output:    output,
		verbosity: verbosity,
	}
}

// trailInfo holds a parsed trail with source info.
type trailInfo struct {
	Data   *audit.TrailData
	Source string // Original file path
	Name   string // Run ID or filename fallback
}

// ReplayFiles outputs multiple trails to the writer.
func (m *MultiReplayer) ReplayFiles(paths []string) error {
	trails, err := m.loadTrails(paths)
	if err != nil {
		return err
	}

	return m.replayAll(trails)
}

// ReplayFilesInteractive shows multiple trails in the interactive pager.
func (m *MultiReplayer) ReplayFilesInteractive(paths []string) error {
	trails, err := m.loadTrails(paths)
	if err != nil {
		return err
	}

	// Render to string
	var buf strings.Builder
	oldOutput := m.output
	m.output = &buf

	if err := m.replayAll(trails); err != nil {
		m.output = oldOutput
		return err
	}
	m.output = oldOutput

	// Build title
	title := fmt.Sprintf("%d run(s)", len(trails))
	if len(trails) == 1 {
		title = trails[0].Name
	}

	return RunPager(title, buf.String())
}

// loadTrails loads and parses all trail files.
func (m *MultiReplayer) loadTrails(paths []string) ([]trailInfo, error) {
	var trails []trailInfo

	for _, path := range paths {
		data, err := audit.LoadTrail(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}

		name := data.Header.RunID
		if name == "" {
			base := filepath.Base(path)
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}

		trails = append(trails, trailInfo{
			Data:   data,
			Source: path,
			Name:   name,
		})
	}

	// Sort by start time
	sort.Slice(trails, func(i, j int) bool {
		return trails[i].Data.Header.StartedAt.Before(trails[j].Data.Header.StartedAt)
	})

	return trails, nil
}

// replayAll renders all trails.
func (m *MultiReplayer) replayAll(trails []trailInfo) error {
	r := New(m.output, m.verbosity)

	for i, info := range trails {
		if len(trails) > 1 {
			m.printTrailHeader(info, i+1, len(trails))
		}

		if err := r.Replay(info.Data); err != nil {
			return fmt.Errorf("failed to replay %s: %w", info.Source, err)
		}

		// Add spacing between runs
		if i < len(trails)-1 {
			fmt.Fprintln(m.output)
		}
	}

	return nil
}

// Trail header styles
var (
	trailHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("6")) // Cyan background

	trailDividerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("6")) // Cyan
)

// printTrailHeader prints a distinctive header for each run.
func (m *MultiReplayer) printTrailHeader(info trailInfo, num, total int) {
	// Short run ID (first 12 chars)
	shortID := info.Data.Header.RunID
	if len(shortID) > 12 {
		shortID = shortID[:12]
	}

	header := fmt.Sprintf(" %s │ %s ",
		shortID,
		info.Data.Header.StartedAt.Format("2006-01-02 15:04:05"))

	if total > 1 {
		header = fmt.Sprintf(" [%d/%d] %s", num, total, header)
	}

	fmt.Fprintln(m.output)
	fmt.Fprintln(m.output, trailDividerStyle.Render(strings.Repeat("━", 70)))
	fmt.Fprintln(m.output, trailHeaderStyle.Render(header))
	fmt.Fprintln(m.output, trailDividerStyle.Render(strings.Repeat("━", 70)))
}
