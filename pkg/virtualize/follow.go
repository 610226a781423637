package virtualize

// DefaultFollowThreshold is how close to the bottom (in height units) a scroll
// position still counts as "at the end".
const DefaultFollowThreshold = 2

// Follow is the pinned-to-bottom flag of a log view.
type Follow struct {
	Pinned    bool
	Threshold int
}

func NewFollow(threshold int) Follow {
	if threshold < 0 {
		threshold = 0
	}
	return Follow{Pinned: true, Threshold: threshold}
}

// AtBottom reports whether top lies within Threshold of the end.
func (f Follow) AtBottom(top, viewportHeight, totalHeight int) bool {
	return totalHeight-(top+viewportHeight) <= f.Threshold
}

// OnScroll clears Pinned when the user moved away from the bottom. It never
// re-pins; that only happens through Enable.
func (f *Follow) OnScroll(top, viewportHeight, totalHeight int) {
	if f.Pinned && !f.AtBottom(top, viewportHeight, totalHeight) {
		f.Pinned = false
	}
}

// Enable pins the view and returns the scroll top of the end of the content.
func (f *Follow) Enable(viewportHeight, totalHeight int) int {
	f.Pinned = true
	return max(0, totalHeight-viewportHeight)
}

func (f *Follow) Disable() {
	f.Pinned = false
}

// Toggle flips the flag. The returned scroll top is only meaningful when the
// flag ended up pinned.
func (f *Follow) Toggle(viewportHeight, totalHeight int) (int, bool) {
	if f.Pinned {
		f.Disable()
		return 0, false
	}
	return f.Enable(viewportHeight, totalHeight), true
}
