package tui

import (
	"time"

	"github.com/go-go-golems/loopdash/pkg/protocol"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// EventLogEntry is one line of the notification feed.
type EventLogEntry struct {
	At      time.Time `json:"at"`
	Project string    `json:"project,omitempty"`
	Source  string    `json:"source,omitempty"`
	Level   LogLevel  `json:"level,omitempty"`
	Text    string    `json:"text"`
}

// PushEvent is a push envelope as it crosses the bus. Appended is set for
// log_append envelopes the log buffer accepted.
type PushEvent struct {
	Envelope protocol.Envelope `json:"envelope"`
	Appended bool              `json:"appended,omitempty"`
}

type ConnectionState struct {
	State string `json:"state"`
	// Attempt counts reconnect cycles since the last successful auth.
	Attempt int `json:"attempt"`
	// NextRetry is the back-off delay while reconnecting.
	NextRetry time.Duration `json:"next_retry,omitempty"`
	At        time.Time     `json:"at"`
}

type LogUpdated struct {
	Project string `json:"project"`
}

type IterationStarted struct {
	Project   string `json:"project"`
	Iteration int    `json:"iteration"`
	Max       int    `json:"max"`
}

type IterationFinished struct {
	Project   string                      `json:"project"`
	Completed protocol.IterationCompleted `json:"completed"`
}

type PlanUpdated struct {
	Project string               `json:"project"`
	Plan    protocol.PlanUpdated `json:"plan"`
}

type StatusChanged struct {
	Project  string `json:"project"`
	Status   string `json:"status"`
	Previous string `json:"previous,omitempty"`
}
