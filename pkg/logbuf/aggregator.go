// Package logbuf keeps the per-view log buffer: historical output fetched over
// REST, followed by live chunks from the push channel, merged without losing
// or duplicating either side.
package logbuf

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/loopdash/pkg/api"
	"github.com/go-go-golems/loopdash/pkg/protocol"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrStale is returned when a hydrate finished after the aggregator moved on
// to another project (or another hydrate).
var ErrStale = errors.New("hydrate result is stale")

// DefaultFetchConcurrency bounds concurrent detail requests during hydrate.
const DefaultFetchConcurrency = 8

type HistorySource interface {
	AllIterations(ctx context.Context, project string) ([]api.IterationSummary, error)
	GetIteration(ctx context.Context, project string, number int) (*api.IterationDetail, error)
}

// Ticket identifies one hydrate. Only the newest ticket may commit.
type Ticket struct {
	Project string
	gen     uint64
}

type Snapshot struct {
	Project   string
	Hydrated  bool
	Hydrating bool
	Err       error
	Pending   int
	Version   uint64
	Bytes     int
}

type Aggregator struct {
	src         HistorySource
	concurrency int

	mu        sync.Mutex
	project   string
	gen       uint64
	buf       strings.Builder
	hydrated  bool
	hydrating bool
	err       error
	pending   []protocol.LogChunk
	lastSeq   uint64
	version   uint64
}

type Option func(*Aggregator)

func WithFetchConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func New(src HistorySource, opts ...Option) *Aggregator {
	a := &Aggregator{src: src, concurrency: DefaultFetchConcurrency}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Reset switches the aggregator to project, discarding the buffer and pending
// chunks. In-flight hydrates for the previous project become stale.
func (a *Aggregator) Reset(project string) Ticket {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	a.project = project
	a.buf.Reset()
	a.hydrated = false
	a.hydrating = true
	a.err = nil
	a.pending = nil
	a.lastSeq = 0
	a.version++
	return Ticket{Project: project, gen: a.gen}
}

// Retry starts a new hydrate for the current project after a failure. Pending
// chunks are kept. It does nothing once the buffer is hydrated.
func (a *Aggregator) Retry() (Ticket, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hydrated || a.project == "" {
		return Ticket{}, false
	}
	a.gen++
	a.hydrating = true
	a.err = nil
	a.version++
	return Ticket{Project: a.project, gen: a.gen}, true
}

// Hydrate fetches the history for t and commits it. The fetch runs without
// holding the lock so chunks keep arriving meanwhile.
func (a *Aggregator) Hydrate(ctx context.Context, t Ticket) error {
	history, err := a.fetch(ctx, t.Project)
	if !a.Complete(t, history, err) {
		return ErrStale
	}
	return err
}

func (a *Aggregator) fetch(ctx context.Context, project string) (string, error) {
	if a.src == nil {
		return "", errors.New("no history source")
	}
	summaries, err := a.src.AllIterations(ctx, project)
	if err != nil {
		return "", errors.Wrapf(err, "list iterations of %s", project)
	}

	outputs := make([]IterationOutput, len(summaries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, s := range summaries {
		g.Go(func() error {
			d, err := a.src.GetIteration(gctx, project, s.Number)
			if err != nil {
				return errors.Wrapf(err, "get iteration %d of %s", s.Number, project)
			}
			outputs[i] = IterationOutput{Number: s.Number, Output: d.LogOutput}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return RenderHistory(outputs), nil
}

// Complete commits a hydrate result. It reports false, changing nothing, when
// t is stale. On success the pending chunks are flushed in arrival order.
func (a *Aggregator) Complete(t Ticket, history string, err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t.gen != a.gen || t.Project != a.project {
		log.Debug().Str("project", t.Project).Msg("discarding stale hydrate")
		return false
	}
	a.hydrating = false
	if err != nil {
		log.Warn().Err(err).Str("project", t.Project).Msg("hydrate failed")
		a.err = err
		a.version++
		return true
	}

	a.err = nil
	a.buf.Reset()
	a.buf.WriteString(history)
	for _, c := range a.pending {
		a.appendLocked(c.Lines)
	}
	a.pending = nil
	a.hydrated = true
	a.version++
	return true
}

// Append takes one live chunk. Chunks for another project or with a sequence
// id already consumed are ignored. Before hydration completes chunks are
// parked, afterwards they go straight into the buffer.
func (a *Aggregator) Append(c protocol.LogChunk) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.project == "" || (c.Project != "" && c.Project != a.project) {
		return false
	}
	if c.SequenceID != 0 {
		if c.SequenceID <= a.lastSeq {
			return false
		}
		a.lastSeq = c.SequenceID
	}
	if !a.hydrated {
		a.pending = append(a.pending, c)
		return true
	}
	a.appendLocked(c.Lines)
	a.version++
	return true
}

func (a *Aggregator) appendLocked(c string) {
	if a.buf.Len() > 0 {
		s := a.buf.String()
		if needsSeparator(s[len(s)-1], c) {
			a.buf.WriteByte('\n')
		}
	}
	a.buf.WriteString(c)
}

// Text returns the committed buffer. Pending chunks are not included.
func (a *Aggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// View returns the text together with the version it belongs to.
func (a *Aggregator) View() (string, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String(), a.version
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Project:   a.project,
		Hydrated:  a.hydrated,
		Hydrating: a.hydrating,
		Err:       a.err,
		Pending:   len(a.pending),
		Version:   a.version,
		Bytes:     a.buf.Len(),
	}
}
