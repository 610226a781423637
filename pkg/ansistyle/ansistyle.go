// Package ansistyle splits terminal output into styled text segments.
//
// Only SGR sequences ("ESC [ params m") are interpreted. The style model is
// intentionally small: a foreground color and a bold flag. Other CSI
// sequences (cursor moves, erase line, mode switches), OSC strings and stray
// ESC bytes are removed so that they never reach the visible text.
package ansistyle

import (
	"regexp"
	"strconv"
	"strings"
)

// Style is the accumulated presentation state for a segment.
// Color is nil for the default foreground, otherwise one of 30-37 or 90-97.
type Style struct {
	Color *int
	Bold  bool
}

func (s Style) IsDefault() bool {
	return s.Color == nil && !s.Bold
}

func (s Style) Equal(o Style) bool {
	if s.Bold != o.Bold {
		return false
	}
	if s.Color == nil || o.Color == nil {
		return s.Color == nil && o.Color == nil
	}
	return *s.Color == *o.Color
}

// Segment is a run of visible text sharing one style.
type Segment struct {
	Text  string
	Style Style
}

// escRe matches, in order of preference, a complete CSI sequence, an OSC
// string, or a lone ESC. Every ESC byte is consumed by one of them, so the
// stripped text can never contain an escape sequence.
var escRe = regexp.MustCompile(`\x1b\[([0-?]*)[ -/]*([@-~])|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)?|\x1b`)

// IsForeground reports whether code is one of the foreground colors the
// parser tracks (standard 30-37 and bright 90-97).
func IsForeground(code int) bool {
	return (code >= 30 && code <= 37) || (code >= 90 && code <= 97)
}

// Parse splits s into ordered styled segments.
//
// Input without any SGR sequence returns exactly one segment carrying the
// stripped text and the default style, even when it is empty. Otherwise empty
// text runs between sequences produce no segment.
func Parse(s string) []Segment {
	if strings.IndexByte(s, '\x1b') < 0 {
		return []Segment{{Text: s}}
	}
	locs := escRe.FindAllStringSubmatchIndex(s, -1)

	var segments []Segment
	var cur Style
	sawSGR := false
	// merge is false right after an SGR, so runs split by a style change stay
	// separate even when the resulting style is the same
	merge := false
	last := 0
	emit := func(text string) {
		if text == "" {
			return
		}
		if n := len(segments); merge && n > 0 && segments[n-1].Style.Equal(cur) {
			segments[n-1].Text += text
		} else {
			segments = append(segments, Segment{Text: text, Style: cur})
		}
		merge = true
	}
	for _, loc := range locs {
		emit(s[last:loc[0]])
		last = loc[1]
		if loc[4] >= 0 && s[loc[4]:loc[5]] == "m" {
			cur = apply(cur, s[loc[2]:loc[3]])
			sawSGR = true
			merge = false
		}
	}
	emit(s[last:])

	if !sawSGR {
		return []Segment{{Text: Strip(s)}}
	}
	return segments
}

// Strip returns the visible text of s with every escape sequence removed.
func Strip(s string) string {
	if strings.IndexByte(s, '\x1b') < 0 {
		return s
	}
	return escRe.ReplaceAllString(s, "")
}

func apply(st Style, params string) Style {
	if params == "" {
		return Style{}
	}
	for _, p := range strings.Split(params, ";") {
		if p == "" {
			// "ESC[;1m" treats the empty slot as a reset, like terminals do.
			st = Style{}
			continue
		}
		code, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		switch {
		case code == 0:
			st = Style{}
		case code == 1:
			st.Bold = true
		case IsForeground(code):
			c := code
			st.Color = &c
		}
	}
	return st
}
