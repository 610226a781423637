package tui

import "github.com/go-go-golems/loopdash/pkg/api"

type ConnectionStateMsg struct {
	State ConnectionState
}

type EventLogAppendMsg struct {
	Entry EventLogEntry
}

// LogUpdatedMsg tells the log view its buffer changed.
type LogUpdatedMsg struct {
	Project string
}

type IterationStartedMsg struct {
	Event IterationStarted
}

type IterationFinishedMsg struct {
	Event IterationFinished
}

type PlanUpdatedMsg struct {
	Event PlanUpdated
}

type StatusChangedMsg struct {
	Event StatusChanged
}

type ProjectsLoadedMsg struct {
	Projects []api.Project
	Err      error
}

type PlanLoadedMsg struct {
	Project string
	Plan    *api.Plan
	Err     error
}

// HydrateDoneMsg is returned by the hydrate command. Stale results carry
// logbuf.ErrStale and are ignored.
type HydrateDoneMsg struct {
	Project string
	Err     error
}

type NavigateToLogsMsg struct {
	Project string
}

type NavigateBackMsg struct{}
