package logfilter

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

const sample = `[Iteration 1]
starting up
all good
[Iteration 2]
` + "\x1b[31mError: build failed\x1b[0m" + `
retrying
[Iteration 3]
Traceback (most recent call last):
done`

func TestApply_ZeroCriteriaReturnsInput(t *testing.T) {
	require.Equal(t, sample, Apply(sample, Criteria{}))
	require.Equal(t, sample, Apply(sample, Criteria{Mode: ModeAll}))
}

func TestApply_IterationRange(t *testing.T) {
	out := Apply(sample, Criteria{IterationFrom: intp(2), IterationTo: intp(2)})
	require.Equal(t, "[Iteration 2]\n\x1b[31mError: build failed\x1b[0m\nretrying", out)

	open := Apply(sample, Criteria{IterationFrom: intp(3)})
	require.Equal(t, "[Iteration 3]\nTraceback (most recent call last):\ndone", open)

	upTo := ApplyLines(strings.Split(sample, "\n"), Criteria{IterationTo: intp(1)})
	require.Equal(t, []string{"[Iteration 1]", "starting up", "all good"}, upTo)
}

func TestApply_LinesBeforeFirstMarkerExcludedWithRange(t *testing.T) {
	text := "preamble\n=== Iteration 4/10 ===\nwork"
	require.Equal(t, "=== Iteration 4/10 ===\nwork", Apply(text, Criteria{IterationFrom: intp(1)}))
	// without a range the preamble is kept
	require.Equal(t, "preamble", Apply(text, Criteria{Search: "PRE"}))
}

func TestApply_BannerForms(t *testing.T) {
	text := strings.Join([]string{
		"\x1b[36m[12:00:01]\x1b[0m === Iteration 5/50 ===",
		"five",
		"=== Iteration 8 (loop 1/50) ===",
		"eight",
	}, "\n")
	require.Equal(t, "five", Apply(text, Criteria{IterationTo: intp(5), Search: "five"}))
	require.Equal(t, "=== Iteration 8 (loop 1/50) ===\neight", Apply(text, Criteria{IterationFrom: intp(6)}))
}

func TestApply_ErrorMode(t *testing.T) {
	out := ApplyLines(strings.Split(sample, "\n"), Criteria{Mode: ModeErrors})
	require.Equal(t, []string{"\x1b[31mError: build failed\x1b[0m", "Traceback (most recent call last):"}, out)

	require.True(t, DefaultErrors.IsError("❌ tests"))
	require.True(t, DefaultErrors.IsError("app CRASH detected"))
	require.False(t, DefaultErrors.IsError("errors-free"), "word boundary must hold")
	require.False(t, DefaultErrors.IsError("terrorist"))
}

func TestApply_SearchIsCaseInsensitiveOnStrippedText(t *testing.T) {
	out := Apply(sample, Criteria{Search: "error: BUILD"})
	require.Equal(t, "\x1b[31mError: build failed\x1b[0m", out)

	// the escape sequence bytes are not searchable
	require.Equal(t, "", Apply(sample, Criteria{Search: "[31m"}))
}

func TestApply_PredicatesCombine(t *testing.T) {
	c := Criteria{Mode: ModeErrors, IterationFrom: intp(3), Search: "traceback"}
	require.Equal(t, "Traceback (most recent call last):", Apply(sample, c))
}

func TestApply_InvertedRangeIsEmpty(t *testing.T) {
	c := Criteria{IterationFrom: intp(5), IterationTo: intp(2)}
	require.True(t, errors.Is(c.Validate(), ErrInvertedRange))
	require.Equal(t, "", Apply(sample, c))
	require.Empty(t, ApplyLines(strings.Split(sample, "\n"), c))
	require.False(t, NewEngine(c).Keep("[Iteration 3]"))
}

func TestEngine_StreamingMatchesBatch(t *testing.T) {
	c := Criteria{IterationFrom: intp(2)}
	e := NewEngine(c)
	var kept []string
	for _, l := range strings.Split(sample, "\n") {
		if e.Keep(l) {
			kept = append(kept, l)
		}
	}
	require.Equal(t, ApplyLines(strings.Split(sample, "\n"), c), kept)
	cur, seen := e.Current()
	require.True(t, seen)
	require.Equal(t, 3, cur)
}

func TestEngine_ExtraMarkers(t *testing.T) {
	m, err := NewRegexpMarker(`^--- round (\d+) ---$`)
	require.NoError(t, err)

	text := "--- round 1 ---\na\n--- round 2 ---\nb"
	require.Equal(t, "", Apply(text, Criteria{IterationFrom: intp(2)}))
	require.Equal(t, "--- round 2 ---\nb", Apply(text, Criteria{IterationFrom: intp(2)}, WithExtraMarkers(m)))

	_, err = NewRegexpMarker(`no group`)
	require.Error(t, err)
}

func TestParseRange(t *testing.T) {
	lo, hi, err := ParseRange("3-5")
	require.NoError(t, err)
	require.Equal(t, 3, *lo)
	require.Equal(t, 5, *hi)

	lo, hi, err = ParseRange(" -7 ")
	require.NoError(t, err)
	require.Nil(t, lo)
	require.Equal(t, 7, *hi)

	lo, hi, err = ParseRange("4")
	require.NoError(t, err)
	require.Equal(t, 4, *lo)
	require.Equal(t, 4, *hi)

	lo, hi, err = ParseRange("")
	require.NoError(t, err)
	require.Nil(t, lo)
	require.Nil(t, hi)

	_, _, err = ParseRange("x-2")
	require.Error(t, err)
}

func TestCriteria_Equal(t *testing.T) {
	a := Criteria{Search: "x", IterationFrom: intp(1)}
	b := Criteria{Search: "x", Mode: ModeAll, IterationFrom: intp(1)}
	require.True(t, a.Equal(b))
	b.IterationTo = intp(2)
	require.False(t, a.Equal(b))
}
