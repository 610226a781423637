package logjs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/loopdash/pkg/logfilter"
	"github.com/stretchr/testify/require"
)

func writeTempScript(t *testing.T, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	return p
}

func TestModule_MarkerAndIsError(t *testing.T) {
	scriptPath := writeTempScript(t, t.TempDir(), "rounds.js", `
register({
  name: "rounds",
  init(ctx) { ctx.state.seen = 0; },
  marker(line, ctx) {
    const n = log.iteration(line, /^--- round (\d+) ---$/);
    if (n !== null) ctx.state.seen++;
    return n;
  },
  isError(line, ctx) { return log.isDefaultError(line) || log.containsAny(line, ["PANIC"]); },
});
`)

	m, err := LoadFromFile(context.Background(), scriptPath, Options{})
	require.NoError(t, err)
	require.Equal(t, "rounds", m.Name())
	require.True(t, m.Info().HasMarker)

	n, ok := m.MatchIteration("--- round 12 ---")
	require.True(t, ok)
	require.Equal(t, 12, n)
	_, ok = m.MatchIteration("nothing here")
	require.False(t, ok)

	require.True(t, m.IsError("goroutine PANIC"))
	require.True(t, m.IsError("build failed"))
	require.False(t, m.IsError("all green"))

	st := m.Stats()
	require.Equal(t, int64(2), st.MarkerCalls)
	require.Equal(t, int64(1), st.MarkersMatched)
}

func TestModule_DrivesFilterEngine(t *testing.T) {
	m, err := Load(context.Background(), "inline.js", `
register({
  name: "steps",
  marker(line) { return log.iteration(line, /^Step (\d+):/); },
});
`, Options{})
	require.NoError(t, err)

	text := "Step 1: plan\nthinking\nStep 2: code\nwriting"
	from := 2
	out := logfilter.Apply(text, logfilter.Criteria{IterationFrom: &from}, logfilter.WithExtraMarkers(m))
	require.Equal(t, "Step 2: code\nwriting", out)

	// without isError the built-in heuristic applies
	require.True(t, m.IsError("Traceback"))
}

func TestModule_HookErrorsAreNoMatch(t *testing.T) {
	m, err := Load(context.Background(), "bad.js", `
var errors = [];
register({
  name: "bad",
  marker(line) { throw new Error("nope"); },
  onError(err, payload, ctx) { errors.push(err); },
});
`, Options{})
	require.NoError(t, err)

	_, ok := m.MatchIteration("[Iteration 1]")
	require.False(t, ok)
	require.Equal(t, int64(1), m.Stats().HookErrors)
}

func TestModule_HookTimeout(t *testing.T) {
	m, err := Load(context.Background(), "slow.js", `
register({ name: "slow", marker(line) { while (true) {} } });
`, Options{HookTimeout: "20ms"})
	require.NoError(t, err)

	_, ok := m.MatchIteration("x")
	require.False(t, ok)
	st := m.Stats()
	require.Equal(t, int64(1), st.HookTimeouts)

	// the runtime is usable again after the interrupt
	_, ok = m.MatchIteration("y")
	require.False(t, ok)
}

func TestModule_RegistrationErrors(t *testing.T) {
	_, err := Load(context.Background(), "none.js", `var x = 1;`, Options{})
	require.ErrorIs(t, err, ErrNoRegister)

	_, err = Load(context.Background(), "noname.js", `register({ marker() { return 1; } });`, Options{})
	require.Error(t, err)

	_, err = Load(context.Background(), "nohooks.js", `register({ name: "x" });`, Options{})
	require.Error(t, err)

	_, err = Load(context.Background(), "twice.js", `register({ name: "a", marker(){} }); register({ name: "b", marker(){} });`, Options{})
	require.Error(t, err)

	_, err = Load(context.Background(), "x.js", `register({ name: "a", marker(){} });`, Options{HookTimeout: "soon"})
	require.Error(t, err)
}

func TestModule_Helpers(t *testing.T) {
	m, err := Load(context.Background(), "helpers.js", `
register({
  name: "helpers",
  marker(line) {
    if (line === "ts") {
      const d = log.parseTimestamp("2026-01-02 03:04:05");
      return d ? d.getUTCFullYear() : null;
    }
    return log.defaultMarker(line);
  },
});
`, Options{})
	require.NoError(t, err)

	n, ok := m.MatchIteration("ts")
	require.True(t, ok)
	require.Equal(t, 2026, n)

	n, ok = m.MatchIteration("[10:00:00] === Iteration 4/9 ===")
	require.True(t, ok)
	require.Equal(t, 4, n)
}
