package logjs

import (
	"context"
	"strings"

	"github.com/go-go-golems/loopdash/pkg/logfilter"
	"github.com/pkg/errors"
)

// Fanout consults several modules in load order. The first module whose
// marker hook matches wins; a line is an error if any module with an isError
// hook says so.
type Fanout struct {
	Modules []*Module
}

var (
	_ logfilter.MarkerMatcher = (*Fanout)(nil)
	_ logfilter.ErrorMatcher  = (*Fanout)(nil)
)

func LoadFanoutFromFiles(ctx context.Context, scriptPaths []string, opts Options) (*Fanout, error) {
	out := &Fanout{Modules: make([]*Module, 0, len(scriptPaths))}
	for _, p := range scriptPaths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		m, err := LoadFromFile(ctx, p, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", p)
		}
		out.Modules = append(out.Modules, m)
	}
	if len(out.Modules) == 0 {
		return nil, errors.New("logjs: at least one module script is required")
	}
	return out, nil
}

func (f *Fanout) MatchIteration(line string) (int, bool) {
	for _, m := range f.Modules {
		if n, ok := m.MatchIteration(line); ok {
			return n, true
		}
	}
	return 0, false
}

func (f *Fanout) IsError(line string) bool {
	consulted := false
	for _, m := range f.Modules {
		if m.isErrorFn == nil {
			continue
		}
		consulted = true
		if m.IsError(line) {
			return true
		}
	}
	if !consulted {
		return logfilter.DefaultErrors.IsError(line)
	}
	return false
}

// FilterOptions wires the modules into a filter engine: markers are tried
// after the built-in ones, and the error hook replaces the built-in heuristic
// only when some module defines one.
func (f *Fanout) FilterOptions() []logfilter.Option {
	opts := []logfilter.Option{logfilter.WithExtraMarkers(f)}
	for _, m := range f.Modules {
		if m.isErrorFn != nil {
			opts = append(opts, logfilter.WithErrorMatcher(f))
			break
		}
	}
	return opts
}
