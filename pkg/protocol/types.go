// Package protocol holds the wire types of the push channel: the JSON envelope
// the server sends, the client actions, and the typed event payloads.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
)

type EventType string

const (
	EventAuthOK             EventType = "auth_ok"
	EventError              EventType = "error"
	EventPong               EventType = "pong"
	EventLogAppend          EventType = "log_append"
	EventIterationStarted   EventType = "iteration_started"
	EventIterationCompleted EventType = "iteration_completed"
	EventPlanUpdated        EventType = "plan_updated"
	EventNotification       EventType = "notification"
	EventStatusChanged      EventType = "status_changed"
	EventFileChanged        EventType = "file_changed"
)

// Known reports whether t is one of the kinds this client understands.
// Consumers must ignore unknown kinds rather than reject them.
func (t EventType) Known() bool {
	switch t {
	case EventAuthOK, EventError, EventPong, EventLogAppend, EventIterationStarted,
		EventIterationCompleted, EventPlanUpdated, EventNotification, EventStatusChanged, EventFileChanged:
		return true
	}
	return false
}

// Envelope is one server frame. Data stays raw so that unknown kinds survive
// forwarding untouched.
type Envelope struct {
	Type      EventType       `json:"type"`
	Project   string          `json:"project,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Time parses Timestamp. The server sends ISO-8601 but older builds wrote
// naive local times, so parsing is lenient.
func (e Envelope) Time() (time.Time, bool) {
	if e.Timestamp == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsAuthRejection matches the server's reply to a bad or expired token.
func (e Envelope) IsAuthRejection() bool {
	return e.Type == EventError && e.Message == MessageInvalidToken
}

// DecodeData unmarshals Data into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return errors.Errorf("%s: %s envelope has no data", ErrInvalidPayload, e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.Wrapf(err, "%s: decode %s data", ErrInvalidPayload, e.Type)
	}
	return nil
}

// DecodeEnvelope parses one inbound text frame.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, errors.Wrap(err, ErrInvalidJSON)
	}
	if err := ValidateEnvelope(env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

type Action string

const (
	ActionAuth        Action = "auth"
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
	ActionPing        Action = "ping"
)

// ClientMessage is every frame the client sends.
type ClientMessage struct {
	Action   Action   `json:"action"`
	Token    string   `json:"token,omitempty"`
	Projects []string `json:"projects,omitempty"`
}

func Auth(token string) ClientMessage {
	return ClientMessage{Action: ActionAuth, Token: token}
}

func Subscribe(projects []string) ClientMessage {
	return ClientMessage{Action: ActionSubscribe, Projects: projects}
}

func Unsubscribe(projects []string) ClientMessage {
	return ClientMessage{Action: ActionUnsubscribe, Projects: projects}
}

func Ping() ClientMessage {
	return ClientMessage{Action: ActionPing}
}

// LogChunk is an ordered fragment of new output for one project. SequenceID is
// assigned by the receiving client and is strictly increasing per router.
type LogChunk struct {
	Project    string `json:"project,omitempty"`
	SequenceID uint64 `json:"sequence_id"`
	Lines      string `json:"lines"`
}

type LogAppend struct {
	Lines string `json:"lines"`
}

type IterationStarted struct {
	Iteration int `json:"iteration"`
	Max       int `json:"max"`
}

type IterationCompleted struct {
	Iteration int      `json:"iteration"`
	Max       int      `json:"max"`
	Start     string   `json:"start,omitempty"`
	End       string   `json:"end,omitempty"`
	Tokens    *float64 `json:"tokens,omitempty"`
	Status    string   `json:"status"`
	Errors    []string `json:"errors,omitempty"`
}

type PlanPhase struct {
	Name   string `json:"name"`
	Done   int    `json:"done"`
	Total  int    `json:"total"`
	Status string `json:"status"`
}

type PlanUpdated struct {
	TasksDone  int         `json:"tasks_done"`
	TasksTotal int         `json:"tasks_total"`
	Phases     []PlanPhase `json:"phases,omitempty"`
	Status     string      `json:"status,omitempty"`
}

type Notification struct {
	Prefix    string `json:"prefix"`
	Message   string `json:"message"`
	Iteration *int   `json:"iteration,omitempty"`
	Details   string `json:"details,omitempty"`
	Status    string `json:"status,omitempty"`
	Source    string `json:"source,omitempty"`
}

type StatusChanged struct {
	Status   string `json:"status"`
	Previous string `json:"previous,omitempty"`
}

type FileChanged struct {
	File string `json:"file"`
}
