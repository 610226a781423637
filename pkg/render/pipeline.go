// Package render turns the aggregated log buffer into the handful of styled
// terminal lines that are actually on screen.
//
// Filtering runs when the buffer or the criteria change, never per frame.
// Style parsing runs per frame but only for the materialized window.
package render

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/go-go-golems/loopdash/pkg/ansistyle"
	"github.com/go-go-golems/loopdash/pkg/logfilter"
	"github.com/go-go-golems/loopdash/pkg/virtualize"
)

const DefaultOverscan = 20

type Option func(*Pipeline)

func WithOverscan(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.overscan = n
		}
	}
}

func WithFilterOptions(opts ...logfilter.Option) Option {
	return func(p *Pipeline) { p.filterOpts = append(p.filterOpts, opts...) }
}

type Pipeline struct {
	overscan   int
	filterOpts []logfilter.Option

	primed   bool
	version  uint64
	criteria logfilter.Criteria
	lines    []string
	invalid  error

	// recomputes counts filter passes; tests use it to check memoization
	recomputes int
	styles     map[styleKey]lipgloss.Style
}

type styleKey struct {
	color int
	bold  bool
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		overscan: DefaultOverscan,
		styles:   map[styleKey]lipgloss.Style{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Update feeds the current buffer and criteria. It reports whether the
// filtered line list was recomputed.
func (p *Pipeline) Update(version uint64, text string, c logfilter.Criteria) bool {
	if p.primed && version == p.version && c.Equal(p.criteria) {
		return false
	}
	p.primed = true
	p.version = version
	p.criteria = c
	p.recomputes++

	if err := c.Validate(); err != nil {
		p.invalid = err
		p.lines = nil
		return true
	}
	p.invalid = nil
	p.lines = logfilter.ApplyLines(SplitLines(text), c, p.filterOpts...)
	return true
}

// Invalid is the validation error of the current criteria, if any.
func (p *Pipeline) Invalid() error { return p.invalid }

func (p *Pipeline) LineCount() int { return len(p.lines) }

// Line returns the raw filtered line i.
func (p *Pipeline) Line(i int) string { return p.lines[i] }

type Frame struct {
	Window    virtualize.Window
	ScrollTop int
	Lines     []string
}

// Visible returns the rendered lines that fall inside a viewport of height
// rows starting at ScrollTop.
func (f Frame) Visible(height int) []string {
	from := min(max(0, f.ScrollTop-f.Window.OffsetY), len(f.Lines))
	to := min(from+max(0, height), len(f.Lines))
	return f.Lines[from:to]
}

// Frame materializes the window for a terminal viewport: one row per line.
func (p *Pipeline) Frame(scrollTop, height, width int) Frame {
	top := min(max(0, scrollTop), virtualize.MaxScroll(len(p.lines), height, 1))
	w := virtualize.Compute(virtualize.Params{
		TotalLines:     len(p.lines),
		ScrollTop:      top,
		ViewportHeight: height,
		LineHeight:     1,
		Overscan:       p.overscan,
	})
	out := make([]string, 0, w.Len())
	for _, l := range p.lines[w.Start:w.End] {
		out = append(out, p.RenderLine(l, width))
	}
	return Frame{Window: w, ScrollTop: top, Lines: out}
}

// RenderLine restyles one raw line with lipgloss and truncates it to width
// display cells (no truncation when width <= 0).
func (p *Pipeline) RenderLine(line string, width int) string {
	line = strings.ReplaceAll(line, "\t", "    ")
	line = strings.TrimRight(line, "\r")
	var b strings.Builder
	for _, seg := range ansistyle.Parse(line) {
		if seg.Style.IsDefault() {
			b.WriteString(seg.Text)
			continue
		}
		b.WriteString(p.styleFor(seg.Style).Render(seg.Text))
	}
	s := b.String()
	if width > 0 && ansi.StringWidth(s) > width {
		s = ansi.Truncate(s, width, "…")
	}
	return s
}

func (p *Pipeline) styleFor(st ansistyle.Style) lipgloss.Style {
	key := styleKey{color: -1, bold: st.Bold}
	if st.Color != nil {
		key.color = *st.Color
	}
	if s, ok := p.styles[key]; ok {
		return s
	}
	s := lipgloss.NewStyle().Bold(st.Bold)
	if c, ok := TerminalColor(key.color); ok {
		s = s.Foreground(c)
	}
	p.styles[key] = s
	return s
}

// TerminalColor maps an SGR foreground code to the terminal's 16-color
// palette index.
func TerminalColor(code int) (lipgloss.Color, bool) {
	switch {
	case code >= 30 && code <= 37:
		return lipgloss.Color(strconv.Itoa(code - 30)), true
	case code >= 90 && code <= 97:
		return lipgloss.Color(strconv.Itoa(code - 90 + 8)), true
	}
	return "", false
}

// SplitLines splits a buffer into lines. A trailing newline does not open an
// extra empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
