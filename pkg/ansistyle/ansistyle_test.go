package ansistyle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func color(c int) *int { return &c }

func TestParse_PlainInputIsOneDefaultSegment(t *testing.T) {
	for _, in := range []string{"", "hello", "no escapes\nat all"} {
		segs := Parse(in)
		require.Len(t, segs, 1, "input %q", in)
		require.Equal(t, in, segs[0].Text)
		require.True(t, segs[0].Style.IsDefault())
	}
}

func TestParse_ColorAndReset(t *testing.T) {
	segs := Parse("\x1b[31mred\x1b[0m plain")
	require.Len(t, segs, 2)
	require.Equal(t, "red", segs[0].Text)
	require.Equal(t, color(31), segs[0].Style.Color)
	require.False(t, segs[0].Style.Bold)
	require.Equal(t, " plain", segs[1].Text)
	require.True(t, segs[1].Style.IsDefault())
}

func TestParse_BoldIsAdditive(t *testing.T) {
	segs := Parse("\x1b[1mbold\x1b[32mgreen bold\x1b[mdone")
	require.Len(t, segs, 3)
	require.True(t, segs[0].Style.Bold)
	require.Nil(t, segs[0].Style.Color)
	require.True(t, segs[1].Style.Equal(Style{Bold: true, Color: color(32)}))
	require.True(t, segs[2].Style.IsDefault())
}

func TestParse_CombinedParamsAndBrightColors(t *testing.T) {
	segs := Parse("\x1b[1;94mINFO\x1b[0m")
	require.Len(t, segs, 1)
	require.Equal(t, "INFO", segs[0].Text)
	require.True(t, segs[0].Style.Equal(Style{Bold: true, Color: color(94)}))
}

func TestParse_UnknownCodesAreIgnored(t *testing.T) {
	segs := Parse("\x1b[33mwarn\x1b[4;42munderlined\x1b[0m")
	require.Len(t, segs, 2)
	require.Equal(t, color(33), segs[1].Style.Color, "underline and background must not change style")
	require.Equal(t, "underlined", segs[1].Text)
}

func TestParse_AdjacentSequencesProduceNoEmptySegments(t *testing.T) {
	segs := Parse("\x1b[31m\x1b[1m\x1b[0mx")
	require.Len(t, segs, 1)
	require.Equal(t, "x", segs[0].Text)
	for _, s := range Parse("\x1b[31m\x1b[0m") {
		require.NotEmpty(t, s.Text)
	}
}

func TestStrip_MatchesConcatenatedSegments(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"\x1b[31mred\x1b[0m",
		"a\x1b[1;32mb\x1b[0mc\x1b[m",
		"\x1b[90m[12:00:01]\x1b[0m === Iteration 3/10 ===",
		// removing the inner sequence must not leave a new one behind
		"a\x1b[\x1b[31m31mb",
		"\x1b\x1b[31m[0mx",
		"trailing escape\x1b",
		"\x1b[2K\x1b[?25lprogress\x1b]0;title\x07 42%",
	}
	for _, in := range inputs {
		var b strings.Builder
		for _, s := range Parse(in) {
			b.WriteString(s.Text)
		}
		require.Equal(t, Strip(in), b.String(), "input %q", in)

		stripped := Strip(in)
		require.NotContains(t, stripped, "\x1b", "input %q", in)
		plain := Parse(stripped)
		require.Len(t, plain, 1, "input %q", in)
		require.True(t, plain[0].Style.IsDefault())
		require.Equal(t, stripped, plain[0].Text)
	}
}

func TestParse_NonStyleSequencesAreDropped(t *testing.T) {
	segs := Parse("\x1b[2K\x1b[1Gbuilding\x1b[?25l...")
	require.Len(t, segs, 1)
	require.Equal(t, "building...", segs[0].Text)
	require.True(t, segs[0].Style.IsDefault())

	segs = Parse("\x1b[31mred\x1b[K still red\x1b[0m")
	require.Len(t, segs, 1)
	require.Equal(t, "red still red", segs[0].Text)
	require.Equal(t, color(31), segs[0].Style.Color)

	require.Equal(t, "a[31mb", Strip("a\x1b[\x1b[31m31mb"))
}
