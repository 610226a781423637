package widgets

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/loopdash/pkg/tui/styles"
)

// Footer renders the keybinding bar under a separator.
type Footer struct {
	Keybinds []Keybind
	Status   string
	Width    int
	theme    styles.Theme
}

func NewFooter(keybinds []Keybind) Footer {
	return Footer{
		Keybinds: keybinds,
		theme:    styles.DefaultTheme(),
	}
}

func (f Footer) WithWidth(w int) Footer {
	f.Width = w
	return f
}

// WithStatus shows a short message left of the keybinds.
func (f Footer) WithStatus(s string) Footer {
	f.Status = s
	return f
}

func (f Footer) Render() string {
	line := RenderKeybinds(f.Keybinds, f.theme)
	if f.Status != "" {
		line = lipgloss.JoinHorizontal(lipgloss.Center, f.theme.Invalid.Render(f.Status), "  ", line)
	}
	padding := (f.Width - lipgloss.Width(line)) / 2
	if padding < 0 {
		padding = 0
	}
	line = lipgloss.NewStyle().PaddingLeft(padding).Render(line)
	return lipgloss.JoinVertical(lipgloss.Left, Separator(f.Width, f.theme), line)
}
