package connection

import "time"

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthPending
	StateSubscribed
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthPending:
		return "auth-pending"
	case StateSubscribed:
		return "subscribed"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Open reports whether a transport is up (authenticated or not).
func (s State) Open() bool {
	return s == StateAuthPending || s == StateSubscribed
}

// DefaultSchedule is the reconnect back-off. The last entry repeats.
var DefaultSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
	30 * time.Second,
}

// ReconnectDelay picks the delay for the given zero-based attempt.
func ReconnectDelay(schedule []time.Duration, attempt int) time.Duration {
	if len(schedule) == 0 {
		schedule = DefaultSchedule
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(schedule) {
		return schedule[len(schedule)-1]
	}
	return schedule[attempt]
}
