// Package events fans push envelopes out to the single active consumer of a
// view, turning log_append payloads into sequenced chunks on the way.
package events

import (
	"sync"

	"github.com/go-go-golems/loopdash/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// Event is what consumers see. Chunk is set only for log_append envelopes
// whose lines decoded as a string.
type Event struct {
	Envelope protocol.Envelope  `json:"envelope"`
	Chunk    *protocol.LogChunk `json:"chunk,omitempty"`
}

type Handler func(Event)

// Router delivers every dispatched envelope, synchronously and in order, to at
// most one handler.
type Router struct {
	mu      sync.Mutex
	handler Handler
	token   uint64
	seq     uint64
}

func NewRouter() *Router {
	return &Router{}
}

// Subscribe installs h, replacing any previous handler. The returned func
// removes h; calling it after another Subscribe is a no-op.
func (r *Router) Subscribe(h Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token++
	token := r.token
	r.handler = h
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.token == token {
			r.handler = nil
		}
	}
}

// Dispatch is safe to call from the connection's read goroutine. The handler
// runs without the router lock held.
func (r *Router) Dispatch(env protocol.Envelope) {
	ev := Event{Envelope: env}

	r.mu.Lock()
	if env.Type == protocol.EventLogAppend {
		var la protocol.LogAppend
		if err := env.DecodeData(&la); err != nil {
			log.Debug().Err(err).Str("project", env.Project).Msg("log_append without string lines")
		} else {
			r.seq++
			ev.Chunk = &protocol.LogChunk{Project: env.Project, SequenceID: r.seq, Lines: la.Lines}
		}
	}
	h := r.handler
	r.mu.Unlock()

	if h != nil {
		h(ev)
	}
}
