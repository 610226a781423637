package tui

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

// Envelope wraps every bus payload with its type tag.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(typ string, payload any) (Envelope, error) {
	if typ == "" {
		return Envelope{}, errors.New("empty envelope type")
	}
	if payload == nil {
		return Envelope{Type: typ}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "marshal %s payload", typ)
	}
	return Envelope{Type: typ, Payload: b}, nil
}

func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return errors.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errors.Wrapf(err, "unmarshal %s payload", e.Type)
	}
	return nil
}

func decodeEnvelope(msg *message.Message) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return Envelope{}, errors.Wrap(err, "unmarshal bus envelope")
	}
	return env, nil
}

// publish wraps payload in an Envelope and publishes it on topic.
func publish(pub message.Publisher, topic, typ string, payload any) error {
	if pub == nil {
		return errors.New("missing publisher")
	}
	env, err := NewEnvelope(typ, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	if err := pub.Publish(topic, message.NewMessage(watermill.NewUUID(), b)); err != nil {
		return errors.Wrapf(err, "publish %s", typ)
	}
	return nil
}
