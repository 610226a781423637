package widgets

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/loopdash/pkg/tui/styles"
)

// Box renders a bordered container with a title line.
type Box struct {
	Title      string
	TitleRight string
	Content    string
	Width      int
	Height     int
	theme      styles.Theme
}

func NewBox(title string) Box {
	return Box{Title: title, theme: styles.DefaultTheme()}
}

func (b Box) WithContent(content string) Box {
	b.Content = content
	return b
}

// WithTitleRight sets right-aligned title text, usually keybind hints.
func (b Box) WithTitleRight(text string) Box {
	b.TitleRight = text
	return b
}

// WithSize sets the outer size including borders. Zero means unbounded.
func (b Box) WithSize(width, height int) Box {
	b.Width = width
	b.Height = height
	return b
}

// InnerHeight is the number of content lines that fit under the title.
func (b Box) InnerHeight() int {
	h := b.Height - 2
	if b.Title != "" || b.TitleRight != "" {
		h--
	}
	if h < 0 {
		return 0
	}
	return h
}

func (b Box) Render() string {
	contentWidth := b.Width - 2
	if contentWidth < 0 {
		contentWidth = 0
	}

	full := b.Content
	if b.Title != "" || b.TitleRight != "" {
		left := b.theme.Title.Render(b.Title)
		right := b.theme.TitleMuted.Render(b.TitleRight)
		spacing := contentWidth - lipgloss.Width(left) - lipgloss.Width(right)
		if spacing < 1 {
			spacing = 1
		}
		header := lipgloss.JoinHorizontal(lipgloss.Top, left, lipgloss.NewStyle().Width(spacing).Render(""), right)
		full = header + "\n" + b.Content
	}

	style := b.theme.Border
	if b.Width > 0 {
		style = style.Width(contentWidth)
	}
	if b.Height > 0 {
		inner := b.Height - 2
		if inner < 0 {
			inner = 0
		}
		style = style.Height(inner)
	}
	return style.Render(full)
}
