package tui

const (
	TopicPushEvents = "loopdash.push"
	TopicUIMessages = "loopdash.ui.msgs"
	TopicUIActions  = "loopdash.ui.actions"
)

// Domain types travel on TopicPushEvents.
const (
	DomainTypePushEvent       = "push.event"
	DomainTypeConnectionState = "connection.state"
)

// UI types travel on TopicUIMessages and map one-to-one onto tea messages.
const (
	UITypeConnectionState   = "tui.connection.state"
	UITypeEventAppend       = "tui.event.append"
	UITypeLogUpdated        = "tui.log.updated"
	UITypeIterationStarted  = "tui.iteration.started"
	UITypeIterationFinished = "tui.iteration.completed"
	UITypePlanUpdated       = "tui.plan.updated"
	UITypeStatusChanged     = "tui.status.changed"
	UITypeActionRequest     = "tui.action.request"
)
