// Package preview shows rendered output lines in a scrollable terminal view.
package preview

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#333333")).
			Bold(true).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// chrome is the number of rows taken by the title and help lines.
const chrome = 2

// Model is a Bubble Tea model listing lines under a title.
type Model struct {
	title    string
	lines    []string
	viewport viewport.Model
	width    int
	height   int
}

// New creates a preview of lines.
func New(title string, lines []string) Model {
	return Model{
		title:    title,
		lines:    lines,
		viewport: viewport.New(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(max(msg.Height-chrome, 1))
		m.setContent()
		return m, nil

	case tea.KeyPressMsg:
		if msg.Key().Code == tea.KeyEscape {
			return m, tea.Quit
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g", "home":
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// setContent truncates each line to the view width so terminal wrapping
// does not change the visible height. Line breaks inside a quoted field
// are shown as separate rows.
func (m *Model) setContent() {
	text := strings.Join(m.lines, "\n")
	if m.width <= 0 {
		m.viewport.SetContent(text)
		return
	}
	rows := strings.Split(text, "\n")
	for i, row := range rows {
		rows[i] = ansi.Truncate(row, m.width, "")
	}
	m.viewport.SetContent(strings.Join(rows, "\n"))
}

// View implements tea.Model.
func (m Model) View() tea.View {
	if m.width == 0 || m.height == 0 {
		return tea.NewView("Loading...")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(ansi.Truncate(m.title, max(m.width-2, 0), "…")))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%d lines  %3.f%%  ↑/↓ scroll  q quit", len(m.lines), m.viewport.ScrollPercent()*100)))

	v := tea.NewView(b.String())
	v.AltScreen = true
	return v
}

// Run shows the preview until the user quits.
func Run(title string, lines []string) error {
	if _, err := tea.NewProgram(New(title, lines)).Run(); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	return nil
}
