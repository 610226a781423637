package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/loopdash/pkg/tui"
	"github.com/go-go-golems/loopdash/pkg/tui/styles"
	"github.com/go-go-golems/loopdash/pkg/tui/widgets"
)

const defaultEventLogMax = 500

// EventLogModel is the notification feed: iteration results, status changes,
// server notifications and connectivity changes across all projects.
type EventLogModel struct {
	max     int
	entries []tui.EventLogEntry

	width  int
	height int

	showDebug bool
	searching bool
	search    textinput.Model
	filter    string

	vp viewport.Model
}

func NewEventLogModel() EventLogModel {
	search := textinput.New()
	search.Placeholder = "filter…"
	search.Prompt = "/ "
	search.CharLimit = 200

	return EventLogModel{max: defaultEventLogMax, search: search, vp: viewport.New(0, 0)}
}

func (m EventLogModel) Len() int { return len(m.entries) }

// InputActive reports whether the filter input has focus.
func (m EventLogModel) InputActive() bool { return m.searching }

func (m EventLogModel) WithSize(width, height int) EventLogModel {
	m.width, m.height = width, height
	m.vp.Width = max(0, width-2)
	m.vp.Height = max(3, height-4)
	return m.refreshViewportContent(false)
}

func (m EventLogModel) Update(msg tea.Msg) (EventLogModel, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		return m.WithSize(v.Width, v.Height), nil
	case tea.KeyMsg:
		if m.searching {
			switch v.String() {
			case "esc":
				m.searching = false
				m.search.Blur()
				return m, nil
			case "enter":
				m.filter = strings.TrimSpace(m.search.Value())
				m.searching = false
				m.search.Blur()
				return m.refreshViewportContent(true), nil
			}
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(v)
			return m, cmd
		}

		switch v.String() {
		case "/":
			m.searching = true
			m.search.SetValue(m.filter)
			m.search.CursorEnd()
			m.search.Focus()
			return m, nil
		case "ctrl+l":
			m.filter = ""
			m.search.SetValue("")
			return m.refreshViewportContent(true), nil
		case "d":
			m.showDebug = !m.showDebug
			return m.refreshViewportContent(true), nil
		case "c":
			m.entries = nil
			return m.refreshViewportContent(true), nil
		}

		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(v)
		return m, cmd
	}
	return m, nil
}

func (m EventLogModel) Append(e tui.EventLogEntry) EventLogModel {
	m.entries = append(m.entries, e)
	if m.max > 0 && len(m.entries) > m.max {
		m.entries = append([]tui.EventLogEntry{}, m.entries[len(m.entries)-m.max:]...)
	}
	return m.refreshViewportContent(m.vp.AtBottom() || len(m.entries) == 1)
}

func (m EventLogModel) View() string {
	theme := styles.DefaultTheme()

	titleRight := "[/] filter  [d] debug  [c] clear"
	if m.filter != "" {
		titleRight = fmt.Sprintf("filter=%q  %s", m.filter, titleRight)
	}

	var sections []string
	if m.searching {
		sections = append(sections, m.search.View())
	}

	box := widgets.NewBox(fmt.Sprintf("Events (%d)", len(m.entries))).WithTitleRight(titleRight)
	if len(m.entries) == 0 {
		box = box.WithContent(theme.TitleMuted.Render("(no events yet)")).WithSize(m.width, 5)
	} else {
		box = box.WithContent(m.vp.View()).WithSize(m.width, m.vp.Height+3)
	}
	sections = append(sections, box.Render())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m EventLogModel) visible(e tui.EventLogEntry) bool {
	if e.Level == tui.LogLevelDebug && !m.showDebug {
		return false
	}
	if m.filter == "" {
		return true
	}
	f := strings.ToLower(m.filter)
	return strings.Contains(strings.ToLower(e.Text), f) || strings.Contains(strings.ToLower(e.Project), f)
}

// RenderEntry formats one feed line.
func RenderEntry(e tui.EventLogEntry, theme styles.Theme) string {
	level := e.Level
	if level == "" {
		level = tui.LogLevelInfo
	}
	style := theme.LevelStyle(string(level))
	parts := []string{
		style.Render(styles.LogLevelIcon(string(level))),
		" ",
		theme.TitleMuted.Render(e.At.Local().Format("15:04:05")),
	}
	if e.Project != "" {
		parts = append(parts, " ", theme.TitleMuted.Render("["+e.Project+"]"))
	}
	parts = append(parts, "  ", style.Render(e.Text))
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

func (m EventLogModel) refreshViewportContent(gotoBottom bool) EventLogModel {
	theme := styles.DefaultTheme()
	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		if m.visible(e) {
			lines = append(lines, RenderEntry(e, theme))
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if gotoBottom {
		m.vp.GotoBottom()
	}
	return m
}
