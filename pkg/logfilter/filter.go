// Package logfilter narrows a log buffer down to the lines an operator asked for.
//
// Three predicates combine with AND: an iteration range tracked by scanning for
// iteration markers, an error-only mode, and a case-insensitive substring search.
// All predicates look at the style-stripped text of each line.
package logfilter

import (
	"strconv"
	"strings"

	"github.com/go-go-golems/loopdash/pkg/ansistyle"
	"github.com/pkg/errors"
)

type Mode string

const (
	ModeAll    Mode = "all"
	ModeErrors Mode = "errors"
)

var ErrInvertedRange = errors.New("iteration range start is after its end")

// Criteria is derived from view controls and never persisted.
type Criteria struct {
	Search        string
	Mode          Mode
	IterationFrom *int
	IterationTo   *int
}

func (c Criteria) HasRange() bool {
	return c.IterationFrom != nil || c.IterationTo != nil
}

func (c Criteria) IsZero() bool {
	return c.Search == "" && c.Mode != ModeErrors && !c.HasRange()
}

func (c Criteria) Validate() error {
	if c.IterationFrom != nil && c.IterationTo != nil && *c.IterationFrom > *c.IterationTo {
		return errors.Wrapf(ErrInvertedRange, "%d > %d", *c.IterationFrom, *c.IterationTo)
	}
	switch c.Mode {
	case "", ModeAll, ModeErrors:
	default:
		return errors.Errorf("unknown filter mode %q", c.Mode)
	}
	return nil
}

// Equal compares criteria by value, including the range bounds.
func (c Criteria) Equal(o Criteria) bool {
	return c.Search == o.Search && c.mode() == o.mode() &&
		intPtrEqual(c.IterationFrom, o.IterationFrom) && intPtrEqual(c.IterationTo, o.IterationTo)
}

func (c Criteria) mode() Mode {
	if c.Mode == "" {
		return ModeAll
	}
	return c.Mode
}

func (c Criteria) inRange(iter int) bool {
	if c.IterationFrom != nil && iter < *c.IterationFrom {
		return false
	}
	if c.IterationTo != nil && iter > *c.IterationTo {
		return false
	}
	return true
}

// ParseRange reads "3-5", "3-", "-5", "3" or "" into optional bounds.
func ParseRange(s string) (*int, *int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil, nil
	}
	parse := func(part string) (*int, error) {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, errors.Errorf("invalid iteration %q", part)
		}
		return &n, nil
	}
	from, to, found := strings.Cut(s, "-")
	lo, err := parse(from)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return lo, lo, nil
	}
	hi, err := parse(to)
	if err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}

type Option func(*Engine)

// WithMarkers replaces the marker matchers. Matchers are tried in order and
// the first match wins.
func WithMarkers(ms ...MarkerMatcher) Option {
	return func(e *Engine) { e.markers = ms }
}

// WithExtraMarkers appends matchers after the built-in ones.
func WithExtraMarkers(ms ...MarkerMatcher) Option {
	return func(e *Engine) { e.markers = append(e.markers, ms...) }
}

func WithErrorMatcher(m ErrorMatcher) Option {
	return func(e *Engine) {
		if m != nil {
			e.errMatcher = m
		}
	}
}

// Engine is the streaming form of the filter: it keeps the current iteration
// between calls so lines can be fed as they arrive.
type Engine struct {
	criteria Criteria
	search   string
	invalid  bool

	markers    []MarkerMatcher
	errMatcher ErrorMatcher

	current int
	seen    bool
}

func NewEngine(c Criteria, opts ...Option) *Engine {
	e := &Engine{
		criteria:   c,
		search:     strings.ToLower(c.Search),
		invalid:    c.Validate() != nil,
		markers:    DefaultMarkers(),
		errMatcher: DefaultErrors,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Current returns the iteration in effect and whether any marker was seen.
func (e *Engine) Current() (int, bool) {
	return e.current, e.seen
}

// Keep advances the scan state with line and reports whether it passes every
// predicate.
func (e *Engine) Keep(line string) bool {
	if e.invalid {
		return false
	}
	plain := ansistyle.Strip(line)

	for _, m := range e.markers {
		if n, ok := m.MatchIteration(plain); ok {
			e.current = n
			e.seen = true
			break
		}
	}

	if e.criteria.HasRange() {
		if !e.seen || !e.criteria.inRange(e.current) {
			return false
		}
	}
	if e.criteria.Mode == ModeErrors && !e.errMatcher.IsError(plain) {
		return false
	}
	if e.search != "" && !strings.Contains(strings.ToLower(plain), e.search) {
		return false
	}
	return true
}

// ApplyLines filters a slice of lines in order.
func ApplyLines(lines []string, c Criteria, opts ...Option) []string {
	if c.Validate() != nil {
		return nil
	}
	if c.IsZero() {
		return lines
	}
	e := NewEngine(c, opts...)
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if e.Keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// Apply filters a whole buffer and joins the retained lines with "\n".
func Apply(text string, c Criteria, opts ...Option) string {
	if c.Validate() != nil {
		return ""
	}
	if c.IsZero() {
		return text
	}
	return strings.Join(ApplyLines(strings.Split(text, "\n"), c, opts...), "\n")
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
