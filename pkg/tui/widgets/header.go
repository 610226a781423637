package widgets

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/loopdash/pkg/tui/styles"
)

// Keybind represents a keybinding hint.
type Keybind struct {
	Key   string
	Label string
}

// Header renders the title bar: app name, active view, and the push channel
// indicator on the right.
type Header struct {
	Title      string
	View       string
	Connection string
	Attempt    int
	NextRetry  time.Duration
	Width      int
	theme      styles.Theme
}

func NewHeader(title string) Header {
	return Header{
		Title: title,
		theme: styles.DefaultTheme(),
	}
}

func (h Header) WithView(view string) Header {
	h.View = view
	return h
}

// WithConnection sets the indicator. attempt and next only show while
// reconnecting.
func (h Header) WithConnection(state string, attempt int, next time.Duration) Header {
	h.Connection = state
	h.Attempt = attempt
	h.NextRetry = next
	return h
}

func (h Header) WithWidth(w int) Header {
	h.Width = w
	return h
}

func (h Header) Render() string {
	theme := h.theme

	titlePart := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Text).
		Background(theme.Primary).
		Padding(0, 1).
		Render(h.Title)
	left := titlePart
	if h.View != "" {
		left = lipgloss.JoinHorizontal(lipgloss.Center, left, "  ", theme.Title.Render(h.View))
	}

	right := ConnectionIndicator(h.Connection, h.Attempt, h.NextRetry, theme)

	spacing := h.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if spacing < 1 {
		spacing = 1
	}
	line := left + strings.Repeat(" ", spacing) + right
	return lipgloss.JoinVertical(lipgloss.Left, line, Separator(h.Width, theme))
}

// ConnectionIndicator renders e.g. "● subscribed" or
// "○ reconnecting (attempt 3, retry in 4s)".
func ConnectionIndicator(state string, attempt int, next time.Duration, theme styles.Theme) string {
	label := state
	if label == "" {
		label = "offline"
	}
	label = strings.ReplaceAll(label, "-", " ")
	if state == "reconnecting" && attempt > 0 {
		label = fmt.Sprintf("%s (attempt %d", label, attempt)
		if next > 0 {
			label += fmt.Sprintf(", retry in %s", next.Round(time.Second))
		}
		label += ")"
	}
	style := theme.ConnectionStyle(state)
	return style.Render(styles.ConnectionIcon(state)) + " " + theme.TitleMuted.Render(label)
}

// Separator is a full-width rule.
func Separator(width int, theme styles.Theme) string {
	if width <= 0 {
		width = 80
	}
	return lipgloss.NewStyle().Foreground(theme.Muted).Render(strings.Repeat("━", width))
}

// RenderKeybinds renders a list of keybindings.
func RenderKeybinds(keybinds []Keybind, theme styles.Theme) string {
	parts := make([]string, 0, len(keybinds)*2)
	for i, kb := range keybinds {
		if i > 0 {
			parts = append(parts, " ")
		}
		parts = append(parts, theme.KeybindKey.Render("["+kb.Key+"]"))
		parts = append(parts, theme.Keybind.Render(" "+kb.Label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}
