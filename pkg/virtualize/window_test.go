package virtualize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompute_Table(t *testing.T) {
	cases := []struct {
		name string
		p    Params
		want Window
	}{
		{
			name: "top of list",
			p:    Params{TotalLines: 1000, ScrollTop: 0, ViewportHeight: 400, LineHeight: 20, Overscan: 5},
			want: Window{Start: 0, End: 25, OffsetY: 0, TotalHeight: 20000},
		},
		{
			name: "middle",
			p:    Params{TotalLines: 1000, ScrollTop: 2010, ViewportHeight: 400, LineHeight: 20, Overscan: 5},
			want: Window{Start: 95, End: 126, OffsetY: 1900, TotalHeight: 20000},
		},
		{
			name: "bottom clamps to total",
			p:    Params{TotalLines: 100, ScrollTop: 1600, ViewportHeight: 400, LineHeight: 20, Overscan: 10},
			want: Window{Start: 70, End: 100, OffsetY: 1400, TotalHeight: 2000},
		},
		{
			name: "scroll past end is clamped",
			p:    Params{TotalLines: 100, ScrollTop: 99999, ViewportHeight: 400, LineHeight: 20, Overscan: 0},
			want: Window{Start: 80, End: 100, OffsetY: 1600, TotalHeight: 2000},
		},
		{
			name: "fewer lines than viewport",
			p:    Params{TotalLines: 3, ScrollTop: 50, ViewportHeight: 400, LineHeight: 20, Overscan: 5},
			want: Window{Start: 0, End: 3, OffsetY: 0, TotalHeight: 60},
		},
		{
			name: "empty",
			p:    Params{TotalLines: 0, ScrollTop: 10, ViewportHeight: 400, LineHeight: 20, Overscan: 5},
			want: Window{Start: 0, End: 0, OffsetY: 0, TotalHeight: 0},
		},
		{
			name: "terminal rows",
			p:    Params{TotalLines: 50, ScrollTop: 10, ViewportHeight: 5, LineHeight: 1, Overscan: 0},
			want: Window{Start: 10, End: 15, OffsetY: 10, TotalHeight: 50},
		},
		{
			name: "zero line height treated as one",
			p:    Params{TotalLines: 50, ScrollTop: 10, ViewportHeight: 5, LineHeight: 0},
			want: Window{Start: 10, End: 15, OffsetY: 10, TotalHeight: 50},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Compute(tc.p))
		})
	}
}

func TestCompute_InvariantsHoldAcrossScrollPositions(t *testing.T) {
	const total, vh, lh, overscan = 237, 300, 17, 4
	for top := 0; top <= total*lh; top += 7 {
		w := Compute(Params{TotalLines: total, ScrollTop: top, ViewportHeight: vh, LineHeight: lh, Overscan: overscan})
		require.GreaterOrEqual(t, w.Start, 0)
		require.LessOrEqual(t, w.End, total)
		require.LessOrEqual(t, w.Start, w.End)
		require.Equal(t, w.Start*lh, w.OffsetY)
		require.Equal(t, total*lh, w.TotalHeight)

		clamped := min(top, MaxScroll(total, vh, lh))
		first := clamped / lh
		require.LessOrEqual(t, w.Start, first, "top=%d", top)
		require.Greater(t, w.End, first, "top=%d", top)
	}

	// zero-height viewport, scroll top on a line boundary, no overscan
	for top := 0; top < 100; top += 10 {
		w := Compute(Params{TotalLines: 10, ScrollTop: top, ViewportHeight: 0, LineHeight: 10})
		require.LessOrEqual(t, w.Start, top/10, "top=%d", top)
		require.Greater(t, w.End, top/10, "top=%d", top)
		require.LessOrEqual(t, w.End, 10)
	}
}

func TestFollow(t *testing.T) {
	f := NewFollow(DefaultFollowThreshold)
	require.True(t, f.Pinned)

	// within threshold of the bottom keeps pinned
	f.OnScroll(79, 20, 100)
	require.True(t, f.Pinned)

	f.OnScroll(50, 20, 100)
	require.False(t, f.Pinned)

	// scrolling back to the bottom does not re-pin on its own
	f.OnScroll(80, 20, 100)
	require.False(t, f.Pinned)

	top := f.Enable(20, 100)
	require.True(t, f.Pinned)
	require.Equal(t, 80, top)

	_, pinned := f.Toggle(20, 100)
	require.False(t, pinned)
	top, pinned = f.Toggle(20, 10)
	require.True(t, pinned)
	require.Equal(t, 0, top)
}
