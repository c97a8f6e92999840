package replay

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
)

// pagerStyle for the header/footer
var (
	pagerTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	pagerInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	pagerHelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// RunPager shows content in an interactive full-screen pager.
func RunPager(title, content string) error {
	prog := tea.NewProgram(
		&pagerModel{
			title:   title,
			content: content,
		},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err := prog.Run()
	return err
}

// RunPagerLive shows content that re-renders whenever the backing file
// changes, for following an in-progress run.
func RunPagerLive(title, filePath string, renderFunc func() (string, error)) error {
	content, err := renderFunc()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filePath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch file: %w", err)
	}

	prog := tea.NewProgram(
		&pagerModel{
			title:      title,
			content:    content,
			live:       true,
			renderFunc: renderFunc,
			watcher:    watcher,
		},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err = prog.Run()
	watcher.Close()
	return err
}

// fileChangedMsg is sent when the watched file changes.
type fileChangedMsg struct{}

// pagerModel is the Bubble Tea model for the pager.
type pagerModel struct {
	viewport       viewport.Model
	title          string
	content        string
	wrappedContent string // Wrapped content for accurate line searching
	ready          bool
	live           bool
	renderFunc     func() (string, error)
	watcher        *fsnotify.Watcher
	lastUpdate     time.Time

	// Search state
	searching    bool
	searchInput  textinput.Model
	searchQuery  string
	searchLines  []int // Line numbers matching search (in wrapped content)
	searchIndex  int   // Current match index
	searchFailed bool  // No matches found
}

func (m *pagerModel) Init() tea.Cmd {
	if m.live && m.watcher != nil {
		return m.watchFile()
	}
	return nil
}

// watchFile returns a command that waits for file changes.
func (m *pagerModel) watchFile() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					// Debounce: wait a bit for writes to settle
					time.Sleep(100 * time.Millisecond)
					return fileChangedMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
				// Ignore errors, keep watching
			}
		}
	}
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	// Handle search input mode
	if m.searching {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "enter":
				m.searchQuery = m.searchInput.Value()
				m.searching = false
				m.executeSearch()
				if len(m.searchLines) > 0 {
					m.jumpToMatch(0)
				}
				return m, nil
			case "esc", "ctrl+c":
				m.searching = false
				m.searchQuery = ""
				m.searchLines = nil
				m.searchFailed = false
				return m, nil
			}
		}
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case fileChangedMsg:
		// File changed - reload content but preserve scroll position
		if m.renderFunc != nil {
			if newContent, err := m.renderFunc(); err == nil {
				oldOffset := m.viewport.YOffset
				oldLineCount := m.viewport.TotalLineCount()

				m.content = newContent
				m.wrappedContent = wrapContent(m.content, m.viewport.Width)
				m.viewport.SetContent(m.wrappedContent)
				m.lastUpdate = time.Now()

				// Try to preserve position
				newLineCount := m.viewport.TotalLineCount()
				if oldOffset <= newLineCount-m.viewport.Height {
					m.viewport.YOffset = oldOffset
				} else if oldOffset > 0 && newLineCount > oldLineCount {
					// Content grew - stay at same position
					m.viewport.YOffset = oldOffset
				}

				// Re-run search if active
				if m.searchQuery != "" {
					m.executeSearch()
				}
			}
		}
		// Continue watching
		cmds = append(cmds, m.watchFile())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			// Clear search highlight if searching, otherwise quit
			if m.searchQuery != "" {
				m.searchQuery = ""
				m.searchLines = nil
				m.searchFailed = false
			} else {
				return m, tea.Quit
			}
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		case "f", "F":
			// Follow mode - jump to bottom (useful in live mode)
			if m.live {
				m.viewport.GotoBottom()
			}
		case "/":
			m.searching = true
			m.searchInput = textinput.New()
			m.searchInput.Placeholder = "Search..."
			m.searchInput.Focus()
			m.searchInput.CharLimit = 100
			m.searchInput.Width = 40
			if m.searchQuery != "" {
				m.searchInput.SetValue(m.searchQuery)
			}
			return m, textinput.Blink
		case "n":
			if len(m.searchLines) > 0 {
				m.searchIndex = (m.searchIndex + 1) % len(m.searchLines)
				m.jumpToMatch(m.searchIndex)
			}
		case "N":
			if len(m.searchLines) > 0 {
				m.searchIndex--
				if m.searchIndex < 0 {
					m.searchIndex = len(m.searchLines) - 1
				}
				m.jumpToMatch(m.searchIndex)
			}
		}

	case tea.WindowSizeMsg:
		headerHeight := 1
		footerHeight := 1

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			// Wrap content to terminal width
			m.wrappedContent = wrapContent(m.content, msg.Width)
			m.viewport.SetContent(m.wrappedContent)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
			// Re-wrap on resize
			m.wrappedContent = wrapContent(m.content, msg.Width)
			m.viewport.SetContent(m.wrappedContent)
			// Re-run search if active (line numbers may have changed)
			if m.searchQuery != "" {
				m.executeSearch()
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// executeSearch finds all lines matching the search query in wrapped content.
func (m *pagerModel) executeSearch() {
	m.searchLines = nil
	m.searchIndex = 0
	m.searchFailed = false

	if m.searchQuery == "" {
		return
	}

	query := strings.ToLower(m.searchQuery)

	// Search the wrapped content (what's actually displayed)
	contentLines := strings.Split(m.wrappedContent, "\n")

	for i, line := range contentLines {
		if strings.Contains(strings.ToLower(line), query) {
			m.searchLines = append(m.searchLines, i)
		}
	}

	if len(m.searchLines) == 0 {
		m.searchFailed = true
	}
}

// jumpToMatch scrolls to the given match index.
func (m *pagerModel) jumpToMatch(index int) {
	if index < 0 || index >= len(m.searchLines) {
		return
	}

	lineNum := m.searchLines[index]
	// Center the match on screen if possible
	targetOffset := lineNum - m.viewport.Height/2
	if targetOffset < 0 {
		targetOffset = 0
	}
	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	if targetOffset > maxOffset {
		targetOffset = maxOffset
	}
	if maxOffset < 0 {
		targetOffset = 0
	}
	m.viewport.YOffset = targetOffset
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	// Header
	title := pagerTitleStyle.Render(m.title)
	line := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, pagerInfoStyle.Render(line))

	// Footer with scroll position and help
	percent := 0
	if m.viewport.TotalLineCount() > 0 {
		percent = int(float64(m.viewport.YOffset) / float64(max(1, m.viewport.TotalLineCount()-m.viewport.Height)) * 100)
	}
	if percent > 100 {
		percent = 100
	}
	if m.viewport.TotalLineCount() <= m.viewport.Height {
		percent = 100
	}

	info := fmt.Sprintf(" %d%% ", percent)

	var footer string

	if m.searching {
		searchPrompt := lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Render("/")
		footer = searchPrompt + m.searchInput.View()
	} else {
		var help string

		if m.searchFailed {
			notFound := lipgloss.NewStyle().
				Foreground(lipgloss.Color("9")).
				Render("Pattern not found")
			help = fmt.Sprintf(" %s │ /: search ", notFound)
		} else if len(m.searchLines) > 0 {
			matchInfo := lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Render(fmt.Sprintf("[%d/%d]", m.searchIndex+1, len(m.searchLines)))
			help = fmt.Sprintf(" %s │ n/N: next/prev │ /: search │ esc: clear ", matchInfo)
		} else if m.live {
			liveIndicator := lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("10")).
				Render("● LIVE")
			help = fmt.Sprintf(" %s │ q: quit │ /: search │ f: follow │ g/G: top/bottom ", liveIndicator)
		} else {
			help = " q: quit │ /: search │ n/N: next/prev │ g/G: top/bottom "
		}

		footer = pagerHelpStyle.Render(help) + pagerInfoStyle.Render(strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))) + pagerInfoStyle.Render(info)
	}

	return header + "\n" + m.viewport.View() + "\n" + footer
}

// wrapContent wraps each line to fit within the given width.
// Preserves ANSI escape codes and maintains timeline column alignment.
func wrapContent(content string, width int) string {
	if width <= 0 {
		return content
	}

	lines := strings.Split(content, "\n")
	var result []string

	for _, line := range lines {
		if lipgloss.Width(line) <= width {
			result = append(result, line)
			continue
		}

		// Timeline rows ("  seq │ timestamp │ content") wrap with a
		// continuation indent that keeps the content column aligned.
		if strings.Contains(line, "│") {
			lastPipe := strings.LastIndex(line, "│")
			if lastPipe > 0 && lastPipe < len(line)-1 {
				prefix := line[:lastPipe+1]
				prefixWidth := lipgloss.Width(prefix) + 1 // +1 for space after │

				contentWidth := width - prefixWidth
				if contentWidth < 20 {
					contentWidth = 20 // Minimum content width
				}

				contentStart := lastPipe + 1
				for contentStart < len(line) && line[contentStart] == ' ' {
					contentStart++
				}
				contentPart := line[contentStart:]

				wrapped := wordwrap.String(contentPart, contentWidth)
				wrappedLines := strings.Split(wrapped, "\n")

				contIndent := strings.Repeat(" ", prefixWidth)

				// First line keeps original prefix
				result = append(result, line[:contentStart]+wrappedLines[0])

				for i := 1; i < len(wrappedLines); i++ {
					result = append(result, contIndent+wrappedLines[i])
				}
				continue
			}
		}

		// Non-timeline line: simple wrap
		wrapped := wordwrap.String(line, width)
		result = append(result, strings.Split(wrapped, "\n")...)
	}

	return strings.Join(result, "\n")
}
