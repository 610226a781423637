// Package virtualize computes which slice of a long line list has to be
// materialized for a scroll position, and tracks the follow-the-tail flag.
package virtualize

// Params describe the scroll container. Units are whatever the caller uses for
// heights (pixels in a browser, rows in a terminal).
type Params struct {
	TotalLines     int
	ScrollTop      int
	ViewportHeight int
	LineHeight     int
	Overscan       int
}

// Window is the half-open index range [Start, End) to render, positioned at
// OffsetY inside a container of TotalHeight.
type Window struct {
	Start       int
	End         int
	OffsetY     int
	TotalHeight int
}

func (w Window) Len() int { return w.End - w.Start }

// MaxScroll is the largest meaningful scroll top.
func MaxScroll(totalLines, viewportHeight, lineHeight int) int {
	if lineHeight <= 0 {
		lineHeight = 1
	}
	return max(0, totalLines*lineHeight-max(0, viewportHeight))
}

func Compute(p Params) Window {
	lh := p.LineHeight
	if lh <= 0 {
		lh = 1
	}
	total := max(0, p.TotalLines)
	vh := max(0, p.ViewportHeight)
	overscan := max(0, p.Overscan)

	top := min(max(0, p.ScrollTop), MaxScroll(total, vh, lh))

	first := top / lh
	// the line under the scroll top is always part of the window, even for an
	// empty viewport
	last := max(first+1, (top+vh+lh-1)/lh)

	start := max(0, first-overscan)
	end := min(total, last+overscan)
	if start > end {
		start = end
	}
	return Window{
		Start:       start,
		End:         end,
		OffsetY:     start * lh,
		TotalHeight: total * lh,
	}
}
