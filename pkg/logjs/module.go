package logjs

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dop251/goja"
	"github.com/go-go-golems/loopdash/pkg/logfilter"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrNoRegister = errors.New("logjs: script did not call register()")
var ErrHookTimeout = errors.New("logjs: js hook timeout")

// Module is one user script that teaches the filter engine about extra
// iteration markers or error lines:
//
//	register({
//	  name: "my-runner",
//	  marker(line, ctx) { return log.iteration(line, /^--- round (\d+) ---$/); },
//	  isError(line, ctx) { return line.includes("PANIC"); },
//	});
//
// Hooks receive style-stripped lines. A goja runtime is single-threaded, so
// every hook call is serialized.
type Module struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	opts   options
	config *goja.Object

	scriptPath string
	name       string

	markerFn  goja.Callable
	isErrorFn goja.Callable
	initFn    goja.Callable
	onErrorFn goja.Callable

	state *goja.Object
	stats Stats
}

var (
	_ logfilter.MarkerMatcher = (*Module)(nil)
	_ logfilter.ErrorMatcher  = (*Module)(nil)
)

type options struct {
	hookTimeout time.Duration
}

func ParseOptions(opts Options) (options, error) {
	var out options
	if opts.HookTimeout != "" {
		d, err := time.ParseDuration(opts.HookTimeout)
		if err != nil {
			return options{}, errors.Wrap(err, "parse --js-timeout")
		}
		out.hookTimeout = d
	}
	return out, nil
}

func LoadFromFile(ctx context.Context, scriptPath string, opts Options) (*Module, error) {
	b, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, errors.Wrap(err, "read script")
	}
	return Load(ctx, scriptPath, string(b), opts)
}

// Load compiles and runs src. name is used for error positions.
func Load(ctx context.Context, name, src string, opts Options) (*Module, error) {
	_ = ctx

	parsedOpts, err := ParseOptions(opts)
	if err != nil {
		return nil, err
	}

	m := &Module{
		vm:         goja.New(),
		opts:       parsedOpts,
		scriptPath: name,
	}
	enableConsole(m.vm, name)
	m.state = m.vm.NewObject()

	if err := m.vm.Set("register", func(config goja.Value) error {
		if m.config != nil {
			return errors.New("register() called more than once")
		}
		if goja.IsNull(config) || goja.IsUndefined(config) {
			return errors.New("register(config) requires a config object")
		}
		m.config = config.ToObject(m.vm)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "set register")
	}

	if _, err := m.vm.RunScript("logjs:helpers", helpersJS); err != nil {
		return nil, errors.Wrap(err, "load helpers")
	}
	if err := injectGoHelpers(m); err != nil {
		return nil, err
	}

	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, errors.Wrap(err, "compile script")
	}
	if _, err := m.vm.RunProgram(prog); err != nil {
		return nil, errors.Wrap(err, "run script")
	}
	if m.config == nil {
		return nil, ErrNoRegister
	}

	nameVal := m.config.Get("name")
	if isNullish(nameVal) || strings.TrimSpace(nameVal.String()) == "" {
		return nil, errors.New("register({ name: string, ... }): name is required")
	}
	m.name = nameVal.String()

	if fn, ok := goja.AssertFunction(m.config.Get("marker")); ok {
		m.markerFn = fn
	}
	if fn, ok := goja.AssertFunction(m.config.Get("isError")); ok {
		m.isErrorFn = fn
	}
	if m.markerFn == nil && m.isErrorFn == nil {
		return nil, errors.New("register({ marker?, isError? }): at least one hook is required")
	}
	if fn, ok := goja.AssertFunction(m.config.Get("init")); ok {
		m.initFn = fn
	}
	if fn, ok := goja.AssertFunction(m.config.Get("onError")); ok {
		m.onErrorFn = fn
	}

	if m.initFn != nil {
		ctxObj := m.buildContext("init")
		if _, err := m.callHook(m.initFn, ctxObj); err != nil {
			m.stats.HookErrors++
			m.callOnError("init", err, goja.Undefined(), ctxObj)
		}
	}

	return m, nil
}

func (m *Module) Name() string { return m.name }

func (m *Module) ScriptPath() string { return m.scriptPath }

func (m *Module) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Module) Info() ModuleInfo {
	return ModuleInfo{
		Name:       m.name,
		HasMarker:  m.markerFn != nil,
		HasIsError: m.isErrorFn != nil,
		HasInit:    m.initFn != nil,
		HasOnError: m.onErrorFn != nil,
	}
}

// MatchIteration calls marker(line, ctx). A finite non-negative number is an
// iteration; anything else (null, undefined, false, a string) is no match.
// Hook failures count as no match.
func (m *Module) MatchIteration(line string) (int, bool) {
	if m.markerFn == nil {
		return 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.MarkerCalls++

	ctxObj := m.buildContext("marker")
	v, err := m.callHook(m.markerFn, m.vm.ToValue(line), ctxObj)
	if err != nil {
		m.stats.HookErrors++
		m.callOnError("marker", err, m.vm.ToValue(line), ctxObj)
		return 0, false
	}
	if isNullish(v) {
		return 0, false
	}
	switch n := v.Export().(type) {
	case int64:
		if n >= 0 {
			m.stats.MarkersMatched++
			return int(n), true
		}
	case float64:
		if !math.IsNaN(n) && !math.IsInf(n, 0) && n >= 0 {
			m.stats.MarkersMatched++
			return int(n), true
		}
	}
	return 0, false
}

// IsError calls isError(line, ctx). Without the hook, or on failure, the
// built-in heuristic decides.
func (m *Module) IsError(line string) bool {
	if m.isErrorFn == nil {
		return logfilter.DefaultErrors.IsError(line)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ctxObj := m.buildContext("isError")
	v, err := m.callHook(m.isErrorFn, m.vm.ToValue(line), ctxObj)
	if err != nil {
		m.stats.HookErrors++
		m.callOnError("isError", err, m.vm.ToValue(line), ctxObj)
		return logfilter.DefaultErrors.IsError(line)
	}
	return v.ToBoolean()
}

func (m *Module) buildContext(hook string) *goja.Object {
	obj := m.vm.NewObject()
	_ = obj.Set("hook", hook)
	_ = obj.Set("script", m.scriptPath)
	_ = obj.Set("state", m.state)
	_ = obj.Set("now", m.newDate(time.Now().UTC()))
	return obj
}

func (m *Module) newDate(t time.Time) goja.Value {
	ctor := m.vm.Get("Date")
	o, err := m.vm.New(ctor, m.vm.ToValue(t.UnixMilli()))
	if err != nil {
		return goja.Undefined()
	}
	return o
}

func (m *Module) callHook(fn goja.Callable, args ...goja.Value) (goja.Value, error) {
	if fn == nil {
		return goja.Undefined(), nil
	}

	if timeout := m.opts.hookTimeout; timeout > 0 {
		timer := time.AfterFunc(timeout, func() {
			m.vm.Interrupt(ErrHookTimeout)
		})
		defer timer.Stop()
		defer m.vm.ClearInterrupt()
	}

	v, err := fn(goja.Undefined(), args...)
	if err != nil {
		if isInterruptedByTimeout(err) {
			m.stats.HookTimeouts++
		}
		return nil, err
	}
	return v, nil
}

func (m *Module) callOnError(hook string, err error, payload goja.Value, ctxObj *goja.Object) {
	log.Debug().Err(err).Str("module", m.name).Str("hook", hook).Msg("js hook failed")
	if m.onErrorFn == nil {
		return
	}
	_ = ctxObj.Set("hook", hook)
	_, _ = m.onErrorFn(goja.Undefined(), m.vm.ToValue(err.Error()), payload, ctxObj)
}

// console output goes to the structured log; stdout belongs to the TUI.
func enableConsole(vm *goja.Runtime, script string) {
	obj := vm.NewObject()
	logAt := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			msg := fmt.Sprint(joinArgs(call.Arguments)...)
			switch level {
			case "warn":
				log.Warn().Str("script", script).Msg(msg)
			case "error":
				log.Error().Str("script", script).Msg(msg)
			default:
				log.Info().Str("script", script).Msg(msg)
			}
			return goja.Undefined()
		}
	}
	_ = obj.Set("log", logAt("info"))
	_ = obj.Set("warn", logAt("warn"))
	_ = obj.Set("error", logAt("error"))
	_ = vm.Set("console", obj)
}

func joinArgs(args []goja.Value) []any {
	out := make([]any, 0, len(args))
	for i, a := range args {
		if i > 0 {
			out = append(out, " ")
		}
		out = append(out, a.Export())
	}
	return out
}

func isNullish(v goja.Value) bool {
	if v == nil {
		return true
	}
	return goja.IsUndefined(v) || goja.IsNull(v)
}

func isInterruptedByTimeout(err error) bool {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if v, ok := interrupted.Value().(error); ok && errors.Is(v, ErrHookTimeout) {
			return true
		}
	}
	return errors.Is(err, ErrHookTimeout)
}

func injectGoHelpers(m *Module) error {
	logVal := m.vm.Get("log")
	if isNullish(logVal) {
		return errors.New("logjs: helpers did not define globalThis.log")
	}
	logObj := logVal.ToObject(m.vm)

	// log.parseTimestamp(value) -> Date | null, best effort via dateparse.
	if err := logObj.Set("parseTimestamp", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 || isNullish(call.Arguments[0]) {
			return goja.Null()
		}
		s := strings.TrimSpace(call.Arguments[0].String())
		if s == "" {
			return goja.Null()
		}
		t, err := dateparse.ParseAny(s)
		if err != nil {
			return goja.Null()
		}
		return m.newDate(t.UTC())
	}); err != nil {
		return errors.Wrap(err, "set log.parseTimestamp")
	}

	// log.isDefaultError(line) exposes the built-in heuristic so scripts can
	// extend rather than replace it.
	if err := logObj.Set("isDefaultError", func(line string) bool {
		return logfilter.DefaultErrors.IsError(line)
	}); err != nil {
		return errors.Wrap(err, "set log.isDefaultError")
	}

	// log.defaultMarker(line) -> number | null
	if err := logObj.Set("defaultMarker", func(line string) goja.Value {
		for _, mm := range logfilter.DefaultMarkers() {
			if n, ok := mm.MatchIteration(line); ok {
				return m.vm.ToValue(n)
			}
		}
		return goja.Null()
	}); err != nil {
		return errors.Wrap(err, "set log.defaultMarker")
	}

	return nil
}
