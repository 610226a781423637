package models

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/loopdash/pkg/logbuf"
	"github.com/go-go-golems/loopdash/pkg/logfilter"
	"github.com/go-go-golems/loopdash/pkg/render"
	"github.com/go-go-golems/loopdash/pkg/tui"
	"github.com/go-go-golems/loopdash/pkg/tui/styles"
	"github.com/go-go-golems/loopdash/pkg/virtualize"
)

type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputRange
)

// LogViewModel shows the aggregated log of one project through the filter and
// render pipeline, following the tail until the user scrolls away.
type LogViewModel struct {
	width  int
	height int

	agg      *logbuf.Aggregator
	pipe     *render.Pipeline
	timeout  time.Duration
	project  string
	criteria logfilter.Criteria
	// rangeText is what the user typed; criteria holds the parsed bounds.
	rangeText string
	rangeErr  string

	mode   inputMode
	search textinput.Model
	rng    textinput.Model

	follow    virtualize.Follow
	threshold int
	scrollTop int

	spin spinner.Model
}

type LogViewOptions struct {
	Aggregator      *logbuf.Aggregator
	Pipeline        *render.Pipeline
	HydrateTimeout  time.Duration
	FollowThreshold int
}

func NewLogViewModel(opts LogViewOptions) LogViewModel {
	search := textinput.New()
	search.Placeholder = "search…"
	search.Prompt = "/ "
	search.CharLimit = 200

	rng := textinput.New()
	rng.Placeholder = "3-5, 3-, -5 or 4"
	rng.Prompt = "iterations: "
	rng.CharLimit = 32

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	pipe := opts.Pipeline
	if pipe == nil {
		pipe = render.New()
	}
	timeout := opts.HydrateTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return LogViewModel{
		agg:       opts.Aggregator,
		pipe:      pipe,
		timeout:   timeout,
		search:    search,
		rng:       rng,
		threshold: opts.FollowThreshold,
		follow:    virtualize.NewFollow(opts.FollowThreshold),
		spin:      sp,
	}
}

func (m LogViewModel) Project() string { return m.project }

func (m LogViewModel) Criteria() logfilter.Criteria { return m.criteria }

func (m LogViewModel) Following() bool { return m.follow.Pinned }

func (m LogViewModel) ScrollTop() int { return m.scrollTop }

// InputActive reports whether keystrokes currently go to a text input.
func (m LogViewModel) InputActive() bool { return m.mode != inputNone }

func (m LogViewModel) WithSize(width, height int) LogViewModel {
	m.width, m.height = width, height
	return m.refresh()
}

// WithProject points the view at project, resetting the buffer and starting
// a hydrate. Filter criteria survive the switch.
func (m LogViewModel) WithProject(project string) (LogViewModel, tea.Cmd) {
	if m.agg == nil {
		return m, nil
	}
	m.project = project
	m.scrollTop = 0
	m.follow = virtualize.NewFollow(m.threshold)
	t := m.agg.Reset(project)
	m = m.refresh()
	return m, tea.Batch(m.hydrateCmd(t), m.spin.Tick)
}

func (m LogViewModel) hydrateCmd(t logbuf.Ticket) tea.Cmd {
	agg, timeout := m.agg, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return tui.HydrateDoneMsg{Project: t.Project, Err: agg.Hydrate(ctx, t)}
	}
}

func (m LogViewModel) Update(msg tea.Msg) (LogViewModel, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		return m.WithSize(v.Width, v.Height), nil
	case tui.HydrateDoneMsg:
		if stderrors.Is(v.Err, logbuf.ErrStale) || v.Project != m.project {
			return m, nil
		}
		return m.refresh(), nil
	case tui.LogUpdatedMsg:
		if v.Project != "" && v.Project != m.project {
			return m, nil
		}
		return m.refresh(), nil
	case spinner.TickMsg:
		if m.agg == nil || !m.agg.Snapshot().Hydrating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(v)
		return m, cmd
	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(v)
		}
		return m.updateKeys(v)
	}
	return m, nil
}

func (m LogViewModel) updateInput(v tea.KeyMsg) (LogViewModel, tea.Cmd) {
	switch v.String() {
	case "esc":
		m.mode = inputNone
		m.search.Blur()
		m.rng.Blur()
		return m, nil
	case "enter":
		if m.mode == inputSearch {
			m.criteria.Search = m.search.Value()
			m.search.Blur()
		} else {
			m = m.applyRange(strings.TrimSpace(m.rng.Value()))
			m.rng.Blur()
		}
		m.mode = inputNone
		return m.refresh(), nil
	}

	var cmd tea.Cmd
	if m.mode == inputSearch {
		m.search, cmd = m.search.Update(v)
	} else {
		m.rng, cmd = m.rng.Update(v)
	}
	return m, cmd
}

// applyRange keeps the typed text even when it does not parse so the user
// sees what was rejected.
func (m LogViewModel) applyRange(s string) LogViewModel {
	m.rangeText = s
	m.rangeErr = ""
	from, to, err := logfilter.ParseRange(s)
	if err != nil {
		m.rangeErr = err.Error()
		return m
	}
	m.criteria.IterationFrom, m.criteria.IterationTo = from, to
	return m
}

func (m LogViewModel) updateKeys(v tea.KeyMsg) (LogViewModel, tea.Cmd) {
	vh := m.viewportHeight()
	switch v.String() {
	case "esc", "backspace":
		return m, func() tea.Msg { return tui.NavigateBackMsg{} }
	case "/":
		m.mode = inputSearch
		m.search.SetValue(m.criteria.Search)
		m.search.CursorEnd()
		m.search.Focus()
		return m, nil
	case "i":
		m.mode = inputRange
		m.rng.SetValue(m.rangeText)
		m.rng.CursorEnd()
		m.rng.Focus()
		return m, nil
	case "e":
		if m.criteria.Mode == logfilter.ModeErrors {
			m.criteria.Mode = logfilter.ModeAll
		} else {
			m.criteria.Mode = logfilter.ModeErrors
		}
		return m.refresh(), nil
	case "ctrl+l":
		m.criteria = logfilter.Criteria{}
		m.rangeText = ""
		m.rangeErr = ""
		m.search.SetValue("")
		m.rng.SetValue("")
		return m.refresh(), nil
	case "f":
		if top, pinned := m.follow.Toggle(vh, m.pipe.LineCount()); pinned {
			m.scrollTop = top
		}
		return m, nil
	case "r":
		if m.agg == nil {
			return m, nil
		}
		t, ok := m.agg.Retry()
		if !ok {
			return m, nil
		}
		return m.refresh(), tea.Batch(m.hydrateCmd(t), m.spin.Tick)
	case "up", "k":
		return m.scrollBy(-1), nil
	case "down", "j":
		return m.scrollBy(1), nil
	case "pgup", "ctrl+u":
		return m.scrollBy(-max(1, vh-1)), nil
	case "pgdown", "ctrl+d", " ":
		return m.scrollBy(max(1, vh-1)), nil
	case "home", "g":
		return m.scrollTo(0), nil
	case "end", "G":
		m.scrollTop = m.follow.Enable(vh, m.pipe.LineCount())
		return m, nil
	}
	return m, nil
}

func (m LogViewModel) scrollBy(delta int) LogViewModel {
	return m.scrollTo(m.scrollTop + delta)
}

func (m LogViewModel) scrollTo(top int) LogViewModel {
	vh := m.viewportHeight()
	total := m.pipe.LineCount()
	m.scrollTop = min(max(0, top), virtualize.MaxScroll(total, vh, 1))
	m.follow.OnScroll(m.scrollTop, vh, total)
	return m
}

// refresh pulls the buffer through the pipeline and keeps the scroll position
// valid, snapping to the end while following.
func (m LogViewModel) refresh() LogViewModel {
	if m.agg == nil {
		return m
	}
	text, version := m.agg.View()
	m.pipe.Update(version, text, m.criteria)

	vh := m.viewportHeight()
	total := m.pipe.LineCount()
	if m.follow.Pinned {
		m.scrollTop = virtualize.MaxScroll(total, vh, 1)
	} else {
		m.scrollTop = min(m.scrollTop, virtualize.MaxScroll(total, vh, 1))
	}
	return m
}

// title, status and one input line
func (m LogViewModel) reservedLines() int {
	return 3
}

func (m LogViewModel) viewportHeight() int {
	return max(1, m.height-m.reservedLines())
}

func (m LogViewModel) View() string {
	theme := styles.DefaultTheme()
	if m.project == "" {
		return theme.TitleMuted.Render("No project selected.") + "\n"
	}

	var b strings.Builder
	b.WriteString(m.titleLine(theme))
	b.WriteString("\n")
	b.WriteString(m.statusLine(theme))
	b.WriteString("\n")

	switch m.mode {
	case inputSearch:
		b.WriteString(m.search.View())
	case inputRange:
		b.WriteString(m.rng.View())
	default:
		if msg := m.Validation(); msg != "" {
			b.WriteString(theme.Invalid.Render(msg))
		} else {
			b.WriteString(theme.TitleMuted.Render(m.filterSummary()))
		}
	}
	b.WriteString("\n")

	vh := m.viewportHeight()
	if m.pipe.Invalid() != nil {
		return b.String()
	}
	if m.pipe.LineCount() == 0 {
		b.WriteString(theme.TitleMuted.Render(m.emptyText()))
		return b.String()
	}
	frame := m.pipe.Frame(m.scrollTop, vh, m.width)
	b.WriteString(strings.Join(frame.Visible(vh), "\n"))
	return b.String()
}

// Validation is the inline message for criteria the filter cannot apply.
func (m LogViewModel) Validation() string {
	if m.rangeErr != "" {
		return m.rangeErr
	}
	if err := m.pipe.Invalid(); err != nil {
		return err.Error()
	}
	return ""
}

func (m LogViewModel) titleLine(theme styles.Theme) string {
	follow := theme.StatusPending.Render("follow off")
	if m.follow.Pinned {
		follow = theme.StatusRunning.Render("follow on")
	}
	return lipgloss.JoinHorizontal(lipgloss.Center,
		theme.Title.Render(m.project),
		"  ",
		follow,
		"  ",
		theme.TitleMuted.Render(fmt.Sprintf("%d lines", m.pipe.LineCount())),
	)
}

func (m LogViewModel) statusLine(theme styles.Theme) string {
	if m.agg == nil {
		return ""
	}
	snap := m.agg.Snapshot()
	switch {
	case snap.Hydrating:
		text := "loading history…"
		if snap.Pending > 0 {
			text = fmt.Sprintf("loading history… (%d live chunks buffered)", snap.Pending)
		}
		return m.spin.View() + " " + theme.TitleMuted.Render(text)
	case snap.Err != nil:
		return theme.StatusDead.Render("history failed: "+snap.Err.Error()) + theme.TitleMuted.Render("  [r] retry")
	default:
		return theme.TitleMuted.Render(fmt.Sprintf("%d bytes", snap.Bytes))
	}
}

func (m LogViewModel) filterSummary() string {
	parts := []string{}
	if m.criteria.Search != "" {
		parts = append(parts, fmt.Sprintf("search=%q", m.criteria.Search))
	}
	if m.criteria.Mode == logfilter.ModeErrors {
		parts = append(parts, "errors only")
	}
	if m.criteria.HasRange() {
		parts = append(parts, "iterations "+m.rangeText)
	}
	if len(parts) == 0 {
		return "no filter"
	}
	return strings.Join(parts, "  ")
}

func (m LogViewModel) emptyText() string {
	if !m.criteria.IsZero() {
		return "(no matching lines)"
	}
	return "(no log output yet)"
}
