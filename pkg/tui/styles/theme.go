package styles

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette and base styles for the dashboard.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
	Text      lipgloss.Color
	TextDim   lipgloss.Color

	Border        lipgloss.Style
	Title         lipgloss.Style
	TitleMuted    lipgloss.Style
	Selected      lipgloss.Style
	Keybind       lipgloss.Style
	KeybindKey    lipgloss.Style
	StatusRunning lipgloss.Style
	StatusDead    lipgloss.Style
	StatusPending lipgloss.Style
	StatusWarn    lipgloss.Style
	// Invalid is used for inline validation messages.
	Invalid lipgloss.Style
}

func DefaultTheme() Theme {
	primary := lipgloss.Color("#2563EB")   // Blue
	secondary := lipgloss.Color("#06B6D4") // Cyan
	success := lipgloss.Color("#22C55E")   // Green
	warning := lipgloss.Color("#EAB308")   // Yellow
	errorC := lipgloss.Color("#EF4444")    // Red
	muted := lipgloss.Color("#6B7280")     // Gray
	text := lipgloss.Color("#F9FAFB")
	textDim := lipgloss.Color("#9CA3AF")

	return Theme{
		Primary:   primary,
		Secondary: secondary,
		Success:   success,
		Warning:   warning,
		Error:     errorC,
		Muted:     muted,
		Text:      text,
		TextDim:   textDim,

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted),
		Title:      lipgloss.NewStyle().Bold(true).Foreground(text),
		TitleMuted: lipgloss.NewStyle().Foreground(textDim),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(text).
			Background(lipgloss.Color("#374151")),
		Keybind:       lipgloss.NewStyle().Foreground(textDim),
		KeybindKey:    lipgloss.NewStyle().Bold(true).Foreground(secondary),
		StatusRunning: lipgloss.NewStyle().Foreground(success),
		StatusDead:    lipgloss.NewStyle().Foreground(errorC),
		StatusPending: lipgloss.NewStyle().Foreground(muted),
		StatusWarn:    lipgloss.NewStyle().Foreground(warning),
		Invalid:       lipgloss.NewStyle().Italic(true).Foreground(warning),
	}
}

// LevelStyle picks the feed style for a log level.
func (t Theme) LevelStyle(level string) lipgloss.Style {
	switch level {
	case "error":
		return t.StatusDead
	case "warn":
		return t.StatusWarn
	default:
		return t.TitleMuted
	}
}

// ConnectionStyle picks the header style for a push channel state name.
func (t Theme) ConnectionStyle(state string) lipgloss.Style {
	switch state {
	case "subscribed":
		return t.StatusRunning
	case "connecting", "auth-pending", "reconnecting":
		return t.StatusWarn
	case "":
		return t.StatusPending
	default:
		return t.StatusDead
	}
}

// ProjectStatusStyle picks the style for a loop status reported by the server.
func (t Theme) ProjectStatusStyle(status string) lipgloss.Style {
	switch status {
	case "running":
		return t.StatusRunning
	case "paused":
		return t.StatusWarn
	case "complete":
		return lipgloss.NewStyle().Foreground(t.Secondary)
	default:
		return t.StatusPending
	}
}
