package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/loopdash/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// RegisterDomainToUITransformer turns push envelopes into the typed UI
// messages the models consume, plus a feed entry for anything an operator
// should see in the event log.
func RegisterDomainToUITransformer(bus *Bus) {
	bus.AddHandler("loopdash-push-to-ui", TopicPushEvents, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := decodeEnvelope(msg)
		if err != nil {
			log.Debug().Err(err).Msg("dropping bus message")
			return nil
		}

		switch env.Type {
		case DomainTypeConnectionState:
			var cs ConnectionState
			if err := env.Decode(&cs); err != nil {
				log.Debug().Err(err).Msg("dropping connection state")
				return nil
			}
			return publishUI(bus, UITypeConnectionState, cs)
		case DomainTypePushEvent:
			var pe PushEvent
			if err := env.Decode(&pe); err != nil {
				log.Debug().Err(err).Msg("dropping push event")
				return nil
			}
			if err := transformPushEvent(bus, pe); err != nil {
				// a bad payload must not stall the handler
				log.Debug().Err(err).Str("type", string(pe.Envelope.Type)).Msg("push event not shown")
			}
			return nil
		default:
			return nil
		}
	})
}

func publishUI(bus *Bus, typ string, payload any) error {
	return publish(bus.Publisher, TopicUIMessages, typ, payload)
}

func transformPushEvent(bus *Bus, pe PushEvent) error {
	e := pe.Envelope
	at, ok := e.Time()
	if !ok {
		at = time.Now()
	}
	entry := func(level LogLevel, text string) error {
		return publishUI(bus, UITypeEventAppend, EventLogEntry{
			At:      at,
			Project: e.Project,
			Source:  string(e.Type),
			Level:   level,
			Text:    text,
		})
	}

	switch e.Type {
	case protocol.EventLogAppend:
		if !pe.Appended {
			return nil
		}
		return publishUI(bus, UITypeLogUpdated, LogUpdated{Project: e.Project})

	case protocol.EventIterationStarted:
		var d protocol.IterationStarted
		if err := e.DecodeData(&d); err != nil {
			return err
		}
		if err := publishUI(bus, UITypeIterationStarted, IterationStarted{Project: e.Project, Iteration: d.Iteration, Max: d.Max}); err != nil {
			return err
		}
		return entry(LogLevelInfo, fmt.Sprintf("iteration %s started", iterationLabel(d.Iteration, d.Max)))

	case protocol.EventIterationCompleted:
		var d protocol.IterationCompleted
		if err := e.DecodeData(&d); err != nil {
			return err
		}
		if err := publishUI(bus, UITypeIterationFinished, IterationFinished{Project: e.Project, Completed: d}); err != nil {
			return err
		}
		level := LogLevelInfo
		text := fmt.Sprintf("iteration %s %s", iterationLabel(d.Iteration, d.Max), nonEmpty(d.Status, "completed"))
		if len(d.Errors) > 0 {
			level = LogLevelError
			text = fmt.Sprintf("%s: %s", text, strings.Join(d.Errors, "; "))
		}
		return entry(level, text)

	case protocol.EventPlanUpdated:
		var d protocol.PlanUpdated
		if err := e.DecodeData(&d); err != nil {
			return err
		}
		return publishUI(bus, UITypePlanUpdated, PlanUpdated{Project: e.Project, Plan: d})

	case protocol.EventStatusChanged:
		var d protocol.StatusChanged
		if err := e.DecodeData(&d); err != nil {
			return err
		}
		if err := publishUI(bus, UITypeStatusChanged, StatusChanged{Project: e.Project, Status: d.Status, Previous: d.Previous}); err != nil {
			return err
		}
		text := "status " + d.Status
		if d.Previous != "" {
			text = fmt.Sprintf("status %s -> %s", d.Previous, d.Status)
		}
		return entry(LogLevelInfo, text)

	case protocol.EventNotification:
		var d protocol.Notification
		if err := e.DecodeData(&d); err != nil {
			return err
		}
		text := strings.TrimSpace(strings.Join([]string{d.Prefix, d.Message}, " "))
		if d.Details != "" {
			text = fmt.Sprintf("%s (%s)", text, d.Details)
		}
		return entry(notificationLevel(d), text)

	case protocol.EventFileChanged:
		var d protocol.FileChanged
		if err := e.DecodeData(&d); err != nil {
			return err
		}
		return entry(LogLevelDebug, "changed "+d.File)

	case protocol.EventError:
		return entry(LogLevelError, nonEmpty(e.Message, "server error"))
	}
	return nil
}

func notificationLevel(n protocol.Notification) LogLevel {
	s := strings.ToLower(n.Status + " " + n.Prefix)
	switch {
	case strings.Contains(s, "error"), strings.Contains(s, "fail"), strings.Contains(s, "❌"):
		return LogLevelError
	case strings.Contains(s, "warn"), strings.Contains(s, "⚠"):
		return LogLevelWarn
	default:
		return LogLevelInfo
	}
}

func iterationLabel(n, max int) string {
	if max > 0 {
		return fmt.Sprintf("%d/%d", n, max)
	}
	return fmt.Sprintf("%d", n)
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
