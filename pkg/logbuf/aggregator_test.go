package logbuf

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/loopdash/pkg/api"
	"github.com/go-go-golems/loopdash/pkg/protocol"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	mu      sync.Mutex
	outputs map[string]map[int]string
	order   map[string][]int
	failGet bool
	// gate, when set, blocks AllIterations until closed
	gate chan struct{}
}

var _ HistorySource = (*fakeHistory)(nil)

func (f *fakeHistory) AllIterations(ctx context.Context, project string) ([]api.IterationSummary, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []api.IterationSummary
	for _, n := range f.order[project] {
		out = append(out, api.IterationSummary{Number: n})
	}
	return out, nil
}

func (f *fakeHistory) GetIteration(_ context.Context, project string, number int) (*api.IterationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, errors.New("backend down")
	}
	return &api.IterationDetail{IterationSummary: api.IterationSummary{Number: number}, LogOutput: f.outputs[project][number]}, nil
}

func chunk(seq uint64, lines string) protocol.LogChunk {
	return protocol.LogChunk{Project: "p", SequenceID: seq, Lines: lines}
}

func TestAppendText(t *testing.T) {
	cases := []struct{ b, c, want string }{
		{"", "x", "x"},
		{"", "", ""},
		{"a\n", "b", "a\nb"},
		{"a", "\nb", "a\nb"},
		{"a", "b", "a\nb"},
		{"a\n", "\nb", "a\n\nb"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, AppendText(tc.b, tc.c), "%q + %q", tc.b, tc.c)
	}
}

func TestRenderHistory(t *testing.T) {
	got := RenderHistory([]IterationOutput{{1, "one\n"}, {2, "two"}})
	require.Equal(t, "[Iteration 1]\none\n\n\n[Iteration 2]\ntwo", got)
	require.Equal(t, "", RenderHistory(nil))
}

func TestAggregator_ChunksDuringHydrateAreFlushedInOrder(t *testing.T) {
	a := New(nil)
	tk := a.Reset("p")

	require.True(t, a.Append(chunk(1, "c1")))
	require.True(t, a.Append(chunk(2, "c2")))
	require.Equal(t, "", a.Text(), "nothing is visible before hydration")
	require.Equal(t, 2, a.Snapshot().Pending)

	require.True(t, a.Complete(tk, "H", nil))
	require.True(t, a.Append(chunk(3, "c3")))

	want := AppendText(AppendText(AppendText("H", "c1"), "c2"), "c3")
	require.Equal(t, want, a.Text())
	s := a.Snapshot()
	require.True(t, s.Hydrated)
	require.False(t, s.Hydrating)
	require.Zero(t, s.Pending)
}

func TestAggregator_AppendSemantics(t *testing.T) {
	a := New(nil)
	tk := a.Reset("p")
	require.True(t, a.Complete(tk, "", nil))

	a.Append(chunk(1, "first"))
	require.Equal(t, "first", a.Text())
	a.Append(chunk(2, "second\n"))
	require.Equal(t, "first\nsecond\n", a.Text())
	a.Append(chunk(3, "third"))
	require.Equal(t, "first\nsecond\nthird", a.Text())
	a.Append(chunk(4, "\nfourth"))
	require.Equal(t, "first\nsecond\nthird\nfourth", a.Text())
}

func TestAggregator_ChunksConsumedOnce(t *testing.T) {
	a := New(nil)
	tk := a.Reset("p")
	require.True(t, a.Append(chunk(5, "x")))
	require.False(t, a.Append(chunk(5, "x")), "redelivered chunk")
	require.False(t, a.Append(chunk(4, "old")))
	require.True(t, a.Complete(tk, "", nil))
	require.Equal(t, "x", a.Text())
}

func TestAggregator_OtherProjectsIgnored(t *testing.T) {
	a := New(nil)
	require.False(t, a.Append(chunk(1, "before any reset")))
	tk := a.Reset("p")
	require.True(t, a.Complete(tk, "H", nil))
	require.False(t, a.Append(protocol.LogChunk{Project: "q", SequenceID: 2, Lines: "nope"}))
	require.Equal(t, "H", a.Text())
}

func TestAggregator_ResetDiscardsStaleHydrate(t *testing.T) {
	a := New(nil)
	old := a.Reset("a")
	a.Append(protocol.LogChunk{Project: "a", SequenceID: 1, Lines: "a-chunk"})

	fresh := a.Reset("b")
	require.False(t, a.Complete(old, "history of a", nil))
	require.Equal(t, "", a.Text())
	require.Equal(t, 0, a.Snapshot().Pending, "pending chunks of the old project are dropped")

	a.Append(protocol.LogChunk{Project: "b", SequenceID: 2, Lines: "b-chunk"})
	require.True(t, a.Complete(fresh, "history of b", nil))
	require.Equal(t, "history of b\nb-chunk", a.Text())
}

func TestAggregator_FailedHydrateKeepsBufferingAndRetries(t *testing.T) {
	a := New(nil)
	tk := a.Reset("p")
	a.Append(chunk(1, "c1"))
	require.True(t, a.Complete(tk, "", errors.New("boom")))

	s := a.Snapshot()
	require.Error(t, s.Err)
	require.False(t, s.Hydrated)
	require.False(t, s.Hydrating)

	a.Append(chunk(2, "c2"))
	require.Equal(t, 2, a.Snapshot().Pending)

	retry, ok := a.Retry()
	require.True(t, ok)
	require.False(t, a.Complete(tk, "late", nil), "the failed ticket cannot commit after a retry")
	require.True(t, a.Complete(retry, "H", nil))
	require.Equal(t, "H\nc1\nc2", a.Text())

	_, ok = a.Retry()
	require.False(t, ok, "no retry once hydrated")
}

func TestAggregator_HydrateFetchesInOrder(t *testing.T) {
	src := &fakeHistory{
		order: map[string][]int{"p": {1, 2, 3}},
		outputs: map[string]map[int]string{"p": {
			1: "\x1b[36m[10:00:00]\x1b[0m === Iteration 1/3 ===\nwork 1",
			2: "work 2\n",
			3: "work 3",
		}},
	}
	a := New(src, WithFetchConcurrency(2))
	tk := a.Reset("p")
	require.NoError(t, a.Hydrate(context.Background(), tk))

	text := a.Text()
	require.True(t, strings.HasPrefix(text, "[Iteration 1]\n"))
	i1 := strings.Index(text, "[Iteration 1]")
	i2 := strings.Index(text, "[Iteration 2]")
	i3 := strings.Index(text, "[Iteration 3]")
	require.True(t, i1 < i2 && i2 < i3)
	require.True(t, strings.HasSuffix(text, "work 3"))
}

func TestAggregator_HydrateRacesLiveChunks(t *testing.T) {
	src := &fakeHistory{
		order:   map[string][]int{"p": {1}},
		outputs: map[string]map[int]string{"p": {1: "past"}},
		gate:    make(chan struct{}),
	}
	a := New(src)
	tk := a.Reset("p")

	done := make(chan error, 1)
	go func() { done <- a.Hydrate(context.Background(), tk) }()

	a.Append(chunk(1, "live-1"))
	a.Append(chunk(2, "live-2"))
	close(src.gate)
	require.NoError(t, <-done)
	a.Append(chunk(3, "live-3"))

	require.Equal(t, "[Iteration 1]\npast\nlive-1\nlive-2\nlive-3", a.Text())
}

func TestAggregator_HydrateFailureAndStaleness(t *testing.T) {
	src := &fakeHistory{order: map[string][]int{"p": {1}}, failGet: true}
	a := New(src)
	tk := a.Reset("p")
	err := a.Hydrate(context.Background(), tk)
	require.Error(t, err)
	require.Error(t, a.Snapshot().Err)

	src.gate = make(chan struct{})
	retry, ok := a.Retry()
	require.True(t, ok)
	done := make(chan error, 1)
	go func() { done <- a.Hydrate(context.Background(), retry) }()
	a.Reset("q")
	close(src.gate)
	require.ErrorIs(t, <-done, ErrStale)
}

func TestAggregator_VersionMovesOnEveryMutation(t *testing.T) {
	a := New(nil)
	v0 := a.Snapshot().Version
	tk := a.Reset("p")
	v1 := a.Snapshot().Version
	require.Greater(t, v1, v0)
	a.Complete(tk, "x", nil)
	_, v2 := a.View()
	require.Greater(t, v2, v1)
	a.Append(chunk(1, "y"))
	_, v3 := a.View()
	require.Greater(t, v3, v2)
}
