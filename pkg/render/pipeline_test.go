package render

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/go-go-golems/loopdash/pkg/logfilter"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.ANSI)
	os.Exit(m.Run())
}

func numbered(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i%100 == 1 {
			fmt.Fprintf(&b, "[Iteration %d]\n", i/100+1)
		}
		fmt.Fprintf(&b, "line %d\n", i)
	}
	return b.String()
}

func TestPipeline_FiltersOnlyOnChange(t *testing.T) {
	p := New()
	text := numbered(10)
	require.True(t, p.Update(1, text, logfilter.Criteria{}))
	require.False(t, p.Update(1, text, logfilter.Criteria{}))
	require.False(t, p.Update(1, text, logfilter.Criteria{Mode: logfilter.ModeAll}))
	require.Equal(t, 1, p.recomputes)

	require.True(t, p.Update(1, text, logfilter.Criteria{Search: "line 1"}))
	require.True(t, p.Update(2, text+"line 11\n", logfilter.Criteria{Search: "line 1"}))
	require.Equal(t, 3, p.recomputes)
	require.Equal(t, 3, p.LineCount(), "line 1, line 10, line 11")
}

func TestPipeline_FrameMaterializesOnlyTheWindow(t *testing.T) {
	p := New(WithOverscan(3))
	p.Update(1, numbered(10000), logfilter.Criteria{})
	require.Equal(t, 10100, p.LineCount())

	f := p.Frame(5000, 20, 80)
	require.Equal(t, 5000-3, f.Window.Start)
	require.Equal(t, 5020+3, f.Window.End)
	require.Len(t, f.Lines, 26)

	vis := f.Visible(20)
	require.Len(t, vis, 20)
	require.Equal(t, p.Line(5000), vis[0])
}

func TestPipeline_FrameClampsScroll(t *testing.T) {
	p := New(WithOverscan(0))
	p.Update(1, "a\nb\nc\n", logfilter.Criteria{})
	require.Equal(t, 3, p.LineCount())

	f := p.Frame(100, 2, 0)
	require.Equal(t, 1, f.ScrollTop)
	require.Equal(t, []string{"b", "c"}, f.Visible(2))

	f = p.Frame(0, 10, 0)
	require.Equal(t, []string{"a", "b", "c"}, f.Visible(10))
}

func TestPipeline_InvertedRangeIsEmptyWithMessage(t *testing.T) {
	from, to := 5, 2
	p := New()
	p.Update(1, numbered(10), logfilter.Criteria{IterationFrom: &from, IterationTo: &to})
	require.Error(t, p.Invalid())
	require.Zero(t, p.LineCount())
	require.Empty(t, p.Frame(0, 10, 80).Lines)

	p.Update(1, numbered(10), logfilter.Criteria{})
	require.NoError(t, p.Invalid())
}

func TestPipeline_RenderLineRestylesAndTruncates(t *testing.T) {
	p := New()
	out := p.RenderLine("\x1b[1;31mFAIL\x1b[0m tests\tdone", 0)
	require.Equal(t, "FAIL tests    done", ansi.Strip(out))
	require.Contains(t, out, "\x1b[")

	plain := p.RenderLine("no style here", 0)
	require.Equal(t, "no style here", plain)

	cut := p.RenderLine("\x1b[32m"+strings.Repeat("x", 50)+"\x1b[0m", 10)
	require.Equal(t, 10, ansi.StringWidth(cut))
	controls := p.RenderLine("\x1b[2K\x1b[?25lstep 3\x1b[1A", 0)
	require.Equal(t, "step 3", controls)
}

func TestTerminalColor(t *testing.T) {
	c, ok := TerminalColor(31)
	require.True(t, ok)
	require.Equal(t, lipgloss.Color("1"), c)
	c, ok = TerminalColor(97)
	require.True(t, ok)
	require.Equal(t, lipgloss.Color("15"), c)
	_, ok = TerminalColor(42)
	require.False(t, ok)
}

func TestSplitLines(t *testing.T) {
	require.Nil(t, SplitLines(""))
	require.Equal(t, []string{"a"}, SplitLines("a\n"))
	require.Equal(t, []string{"a", "", "b"}, SplitLines("a\n\nb"))
}
