package logfilter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MarkerMatcher recognizes a line that opens a new iteration. Lines are passed
// with styling already stripped.
type MarkerMatcher interface {
	MatchIteration(line string) (int, bool)
}

// ErrorMatcher decides whether a style-stripped line is error-like.
type ErrorMatcher interface {
	IsError(line string) bool
}

// MarkerFunc adapts a plain function to MarkerMatcher.
type MarkerFunc func(line string) (int, bool)

func (f MarkerFunc) MatchIteration(line string) (int, bool) { return f(line) }

// ErrorFunc adapts a plain function to ErrorMatcher.
type ErrorFunc func(line string) bool

func (f ErrorFunc) IsError(line string) bool { return f(line) }

var (
	// written by the log aggregator in front of each hydrated iteration block
	headerRe = regexp.MustCompile(`^\[Iteration (\d+)\]`)
	// printed by the loop runner itself: "[12:00:01] === Iteration 5/50 ===" or "=== Iteration 8 (loop 1/50) ==="
	bannerRe = regexp.MustCompile(`^(?:\[\d{2}:\d{2}:\d{2}\]\s+)?=== Iteration (\d+)(?:/\d+| \(loop \d+/\d+\)) ===\s*$`)

	errorRe = regexp.MustCompile(`(?i)(⚠️|❌|\berror\b|\bexception\b|\bfailed\b|\btraceback\b|\bcrash\b)`)
)

// RegexpMarker matches lines against a pattern whose first capture group is
// the iteration number.
type RegexpMarker struct {
	re *regexp.Regexp
}

func NewRegexpMarker(pattern string) (*RegexpMarker, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "compile marker pattern %q", pattern)
	}
	if re.NumSubexp() < 1 {
		return nil, errors.Errorf("marker pattern %q needs a capture group for the iteration number", pattern)
	}
	return &RegexpMarker{re: re}, nil
}

func (m *RegexpMarker) MatchIteration(line string) (int, bool) {
	return matchNumber(m.re, line)
}

// HeaderMarker matches the "[Iteration N]" block header.
var HeaderMarker MarkerMatcher = MarkerFunc(func(line string) (int, bool) {
	return matchNumber(headerRe, line)
})

// BannerMarker matches the in-stream "=== Iteration N/M ===" banner.
var BannerMarker MarkerMatcher = MarkerFunc(func(line string) (int, bool) {
	return matchNumber(bannerRe, strings.TrimRight(line, "\r"))
})

// DefaultErrors is the built-in error heuristic.
var DefaultErrors ErrorMatcher = ErrorFunc(func(line string) bool {
	return errorRe.MatchString(line)
})

// DefaultMarkers returns the built-in marker matchers in evaluation order.
func DefaultMarkers() []MarkerMatcher {
	return []MarkerMatcher{HeaderMarker, BannerMarker}
}

func matchNumber(re *regexp.Regexp, line string) (int, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
