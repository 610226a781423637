package tui

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type ActionKind string

const (
	// ActionReconnect redials the push channel now instead of waiting out the
	// back-off.
	ActionReconnect ActionKind = "reconnect"
)

type ActionRequest struct {
	Kind ActionKind `json:"kind"`
	At   time.Time  `json:"at"`
}

// Reconnector is the part of the connection manager UI actions drive.
type Reconnector interface {
	Reconnect()
}

// PublishAction blocks until the action runner took the request.
func PublishAction(pub message.Publisher, req ActionRequest) error {
	if req.Kind == "" {
		return errors.New("missing action kind")
	}
	if req.At.IsZero() {
		req.At = time.Now()
	}
	return publish(pub, TopicUIActions, UITypeActionRequest, req)
}

func RegisterUIActionRunner(bus *Bus, conn Reconnector) {
	bus.AddHandler("loopdash-ui-actions", TopicUIActions, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := decodeEnvelope(msg)
		if err != nil {
			log.Debug().Err(err).Msg("dropping action")
			return nil
		}
		if env.Type != UITypeActionRequest {
			return nil
		}
		var req ActionRequest
		if err := env.Decode(&req); err != nil {
			log.Debug().Err(err).Msg("dropping action")
			return nil
		}

		entry := EventLogEntry{At: time.Now(), Source: "action", Level: LogLevelInfo}
		switch req.Kind {
		case ActionReconnect:
			if conn != nil {
				conn.Reconnect()
			}
			entry.Text = "manual reconnect requested"
		default:
			entry.Level = LogLevelWarn
			entry.Text = "unknown action: " + string(req.Kind)
		}
		if err := publish(bus.Publisher, TopicUIMessages, UITypeEventAppend, entry); err != nil {
			log.Debug().Err(err).Str("kind", string(req.Kind)).Msg("dropping action log")
		}
		return nil
	})
}
