package styles

const (
	IconSuccess      = "✓"
	IconError        = "✗"
	IconWarning      = "⚠"
	IconInfo         = "ℹ"
	IconRunning      = "▶"
	IconPaused       = "⏸"
	IconPending      = "○"
	IconConnected    = "●"
	IconDisconnected = "○"
	IconBullet       = "•"
)

// LogLevelIcon returns the feed icon for a log level.
func LogLevelIcon(level string) string {
	switch level {
	case "error", "ERROR":
		return IconError
	case "warn", "WARN", "warning", "WARNING":
		return IconWarning
	case "info", "INFO":
		return IconInfo
	default:
		return IconBullet
	}
}

// ProjectStatusIcon maps a loop status to its table icon.
func ProjectStatusIcon(status string) string {
	switch status {
	case "running":
		return IconRunning
	case "paused":
		return IconPaused
	case "complete":
		return IconSuccess
	case "stopped":
		return IconPending
	default:
		return IconPending
	}
}

// ConnectionIcon is filled only while subscribed.
func ConnectionIcon(state string) string {
	if state == "subscribed" {
		return IconConnected
	}
	return IconDisconnected
}
