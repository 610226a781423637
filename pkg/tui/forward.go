package tui

import (
	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(tea.Msg)
}

func RegisterUIForwarder(bus *Bus, p Sender) {
	bus.AddHandler("loopdash-ui-forward", TopicUIMessages, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := decodeEnvelope(msg)
		if err != nil {
			log.Debug().Err(err).Msg("dropping ui message")
			return nil
		}
		m, err := uiMsg(env)
		if err != nil {
			log.Debug().Err(err).Str("type", env.Type).Msg("dropping ui message")
			return nil
		}
		if m != nil && p != nil {
			p.Send(m)
		}
		return nil
	})
}

func uiMsg(env Envelope) (tea.Msg, error) {
	switch env.Type {
	case UITypeConnectionState:
		var v ConnectionState
		if err := env.Decode(&v); err != nil {
			return nil, err
		}
		return ConnectionStateMsg{State: v}, nil
	case UITypeEventAppend:
		var v EventLogEntry
		if err := env.Decode(&v); err != nil {
			return nil, err
		}
		return EventLogAppendMsg{Entry: v}, nil
	case UITypeLogUpdated:
		var v LogUpdated
		if err := env.Decode(&v); err != nil {
			return nil, err
		}
		return LogUpdatedMsg{Project: v.Project}, nil
	case UITypeIterationStarted:
		var v IterationStarted
		if err := env.Decode(&v); err != nil {
			return nil, err
		}
		return IterationStartedMsg{Event: v}, nil
	case UITypeIterationFinished:
		var v IterationFinished
		if err := env.Decode(&v); err != nil {
			return nil, err
		}
		return IterationFinishedMsg{Event: v}, nil
	case UITypePlanUpdated:
		var v PlanUpdated
		if err := env.Decode(&v); err != nil {
			return nil, err
		}
		return PlanUpdatedMsg{Event: v}, nil
	case UITypeStatusChanged:
		var v StatusChanged
		if err := env.Decode(&v); err != nil {
			return nil, err
		}
		return StatusChangedMsg{Event: v}, nil
	}
	return nil, nil
}
