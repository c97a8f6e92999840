// Package replay provides audit trail replay and visualization.
package replay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Component color scheme - each record kind has a distinct, consistent color.
var (
	// Structural / metadata
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - timestamps, metadata

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - labels

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")) // White - values

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")) // White bold - headers

	// Commands - Blue
	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")) // Blue

	// Policy gate - Cyan
	policyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")) // Cyan

	policyBoldStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14")) // Cyan bold

	// Notes from the planner - Magenta
	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")) // Magenta

	// Outcomes
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // Green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // Red

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")) // Yellow

	// Timeline
	seqStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(5).
			Align(lipgloss.Right)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	// Content blocks
	blockHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8")).
				Italic(true)

	divider = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Render(strings.Repeat("━", 60))
)
