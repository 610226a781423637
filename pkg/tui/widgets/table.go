package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/go-go-golems/loopdash/pkg/tui/styles"
)

type TableColumn struct {
	Header string
	Width  int
	Align  lipgloss.Position
}

// TableRow cells may already carry styling; widths are measured ANSI-aware.
type TableRow struct {
	Icon      string
	IconStyle lipgloss.Style
	Cells     []string
}

// Table renders a header line and rows with a cursor.
type Table struct {
	Columns []TableColumn
	Rows    []TableRow
	Cursor  int
	Width   int
	theme   styles.Theme
}

func NewTable(cols []TableColumn) Table {
	return Table{Columns: cols, theme: styles.DefaultTheme()}
}

func (t Table) WithRows(rows []TableRow) Table {
	t.Rows = rows
	return t
}

func (t Table) WithCursor(idx int) Table {
	t.Cursor = idx
	return t
}

func (t Table) WithWidth(width int) Table {
	t.Width = width
	return t
}

func (t Table) Render() string {
	theme := t.theme
	if len(t.Rows) == 0 {
		return theme.TitleMuted.Render("(no projects)")
	}

	lines := make([]string, 0, len(t.Rows)+1)
	header := []string{"    "}
	for _, c := range t.Columns {
		header = append(header, cell(c, c.Header, theme.TitleMuted))
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, header...))

	for i, row := range t.Rows {
		selected := i == t.Cursor
		parts := make([]string, 0, len(row.Cells)+2)
		if selected {
			parts = append(parts, theme.KeybindKey.Render("> "))
		} else {
			parts = append(parts, "  ")
		}
		icon := row.Icon
		if icon == "" {
			icon = " "
		}
		parts = append(parts, row.IconStyle.Render(icon)+" ")

		textStyle := lipgloss.NewStyle().Foreground(theme.TextDim)
		if selected {
			textStyle = lipgloss.NewStyle().Bold(true).Foreground(theme.Text)
		}
		for j, v := range row.Cells {
			col := TableColumn{Width: 16}
			if j < len(t.Columns) {
				col = t.Columns[j]
			}
			parts = append(parts, cell(col, v, textStyle))
		}
		line := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
		if selected && t.Width > 0 {
			line = theme.Selected.Width(t.Width).Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func cell(c TableColumn, v string, style lipgloss.Style) string {
	w := c.Width
	if w <= 0 {
		w = 16
	}
	if ansi.StringWidth(v) > w-1 {
		v = ansi.Truncate(v, w-1, "…")
	}
	return style.Width(w).Align(c.Align).Render(v)
}
