package tui

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/loopdash/pkg/connection"
	"github.com/go-go-golems/loopdash/pkg/events"
	"github.com/go-go-golems/loopdash/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// LogSink receives the sequenced log chunks of the active view.
type LogSink interface {
	Append(protocol.LogChunk) bool
}

// Pump is the one consumer the event router delivers to while the TUI runs.
// It feeds log chunks into the active buffer and republishes everything on
// the bus so that the UI side never touches the connection goroutine.
type Pump struct {
	Pub  message.Publisher
	Logs LogSink
	// Schedule is used to report the next retry delay. Defaults to
	// connection.DefaultSchedule.
	Schedule []time.Duration
	Now      func() time.Time
}

// Attach subscribes p to r and returns the unsubscribe func.
func (p *Pump) Attach(r *events.Router) func() {
	return r.Subscribe(p.HandleEvent)
}

func (p *Pump) HandleEvent(ev events.Event) {
	appended := false
	if ev.Chunk != nil && p.Logs != nil {
		appended = p.Logs.Append(*ev.Chunk)
	}
	err := publish(p.Pub, TopicPushEvents, DomainTypePushEvent, PushEvent{Envelope: ev.Envelope, Appended: appended})
	if err != nil {
		log.Debug().Err(err).Str("type", string(ev.Envelope.Type)).Msg("dropping push event")
	}
}

// ConnectionChanged is meant for connection.Options.OnStateChange.
func (p *Pump) ConnectionChanged(s connection.State, attempt int) {
	cs := ConnectionState{State: s.String(), Attempt: attempt, At: p.now()}
	if s == connection.StateReconnecting && attempt > 0 {
		cs.NextRetry = connection.ReconnectDelay(p.Schedule, attempt-1)
	}
	if err := publish(p.Pub, TopicPushEvents, DomainTypeConnectionState, cs); err != nil {
		log.Debug().Err(err).Str("state", cs.State).Msg("dropping connection state")
	}
}

func (p *Pump) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
