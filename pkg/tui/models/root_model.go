package models

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/loopdash/pkg/api"
	"github.com/go-go-golems/loopdash/pkg/tui"
	"github.com/go-go-golems/loopdash/pkg/tui/widgets"
)

type ViewID string

const (
	ViewDashboard ViewID = "dashboard"
	ViewLogs      ViewID = "logs"
	ViewEvents    ViewID = "events"
)

// Backend is the slice of the REST client the dashboard reads from.
type Backend interface {
	ListProjects(ctx context.Context) ([]api.Project, error)
	GetPlan(ctx context.Context, project string) (*api.Plan, error)
}

// Subscriptions receives the project set the push channel should carry.
type Subscriptions interface {
	SetSubscriptions(ids []string)
}

type RootOptions struct {
	Backend       Backend
	Subscriptions Subscriptions
	// Projects pins the dashboard to these ids. Empty means every project
	// the server lists.
	Projects       []string
	RequestTimeout time.Duration
	LogView        LogViewOptions
	// PublishAction hands UI actions (manual reconnect) to the action runner.
	PublishAction func(tui.ActionRequest) error
}

type RootModel struct {
	width  int
	height int

	active ViewID

	backend  Backend
	subs     Subscriptions
	pinned   map[string]bool
	pinOrder []string
	timeout  time.Duration
	actions  func(tui.ActionRequest) error

	conn tui.ConnectionState

	dashboard DashboardModel
	logs      LogViewModel
	events    EventLogModel
}

func NewRootModel(opts RootOptions) RootModel {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pinned := map[string]bool{}
	for _, p := range opts.Projects {
		pinned[p] = true
	}
	if opts.LogView.HydrateTimeout <= 0 {
		opts.LogView.HydrateTimeout = timeout
	}
	return RootModel{
		active:    ViewDashboard,
		backend:   opts.Backend,
		subs:      opts.Subscriptions,
		pinned:    pinned,
		pinOrder:  opts.Projects,
		timeout:   timeout,
		actions:   opts.PublishAction,
		dashboard: NewDashboardModel(),
		logs:      NewLogViewModel(opts.LogView),
		events:    NewEventLogModel(),
	}
}

func (m RootModel) Active() ViewID { return m.active }

func (m RootModel) Init() tea.Cmd {
	return m.loadProjectsCmd()
}

func (m RootModel) loadProjectsCmd() tea.Cmd {
	if m.backend == nil {
		return nil
	}
	backend, timeout := m.backend, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ps, err := backend.ListProjects(ctx)
		return tui.ProjectsLoadedMsg{Projects: ps, Err: err}
	}
}

func (m RootModel) loadPlanCmd(project string) tea.Cmd {
	backend, timeout := m.backend, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		plan, err := backend.GetPlan(ctx, project)
		return tui.PlanLoadedMsg{Project: project, Plan: plan, Err: err}
	}
}

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = v.Width, v.Height
		bodyHeight := max(3, m.height-4)
		m.dashboard = m.dashboard.WithSize(m.width, bodyHeight)
		m.logs = m.logs.WithSize(m.width, bodyHeight)
		m.events = m.events.WithSize(m.width, bodyHeight)
		return m, nil

	case tui.ConnectionStateMsg:
		m.conn = v.State
		if entry, ok := connectionEntry(v.State); ok {
			m.events = m.events.Append(entry)
		}
		return m, nil

	case tui.EventLogAppendMsg:
		m.events = m.events.Append(v.Entry)
		return m, nil

	case tui.ProjectsLoadedMsg:
		ps := m.filterPinned(v.Projects)
		m.dashboard = m.dashboard.WithProjects(ps, v.Err)
		if v.Err != nil {
			return m, nil
		}
		ids := m.dashboard.ProjectIDs()
		if m.subs != nil {
			m.subs.SetSubscriptions(ids)
		}
		cmds := make([]tea.Cmd, 0, len(ids))
		for _, id := range ids {
			cmds = append(cmds, m.loadPlanCmd(id))
		}
		return m, tea.Batch(cmds...)

	case tui.PlanLoadedMsg:
		if v.Err == nil {
			m.dashboard = m.dashboard.WithPlan(v.Project, v.Plan)
		}
		return m, nil

	case tui.NavigateToLogsMsg:
		m.active = ViewLogs
		if v.Project == m.logs.Project() {
			return m, nil
		}
		var cmd tea.Cmd
		m.logs, cmd = m.logs.WithProject(v.Project)
		return m, cmd

	case tui.NavigateBackMsg:
		m.active = ViewDashboard
		return m, nil

	case tui.HydrateDoneMsg, tui.LogUpdatedMsg, spinner.TickMsg:
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd

	case tui.IterationStartedMsg, tui.IterationFinishedMsg, tui.PlanUpdatedMsg, tui.StatusChangedMsg:
		var cmd tea.Cmd
		m.dashboard, cmd = m.dashboard.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.updateKeys(v)
	}
	return m, nil
}

func (m RootModel) updateKeys(v tea.KeyMsg) (tea.Model, tea.Cmd) {
	if v.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if !m.inputActive() {
		switch v.String() {
		case "q":
			return m, tea.Quit
		case "tab":
			m.active = m.nextView()
			return m, nil
		case "1":
			m.active = ViewDashboard
			return m, nil
		case "2":
			if m.logs.Project() != "" {
				m.active = ViewLogs
			}
			return m, nil
		case "3":
			m.active = ViewEvents
			return m, nil
		case "R":
			return m, m.actionCmd(tui.ActionReconnect)
		}
	}

	var cmd tea.Cmd
	switch m.active {
	case ViewLogs:
		m.logs, cmd = m.logs.Update(v)
	case ViewEvents:
		m.events, cmd = m.events.Update(v)
	default:
		m.dashboard, cmd = m.dashboard.Update(v)
	}
	return m, cmd
}

func (m RootModel) actionCmd(kind tui.ActionKind) tea.Cmd {
	if m.actions == nil {
		return nil
	}
	publish := m.actions
	return func() tea.Msg {
		req := tui.ActionRequest{Kind: kind, At: time.Now()}
		if err := publish(req); err != nil {
			return tui.EventLogAppendMsg{Entry: tui.EventLogEntry{
				At: time.Now(), Source: "action", Level: tui.LogLevelError,
				Text: "action " + string(kind) + " failed: " + err.Error(),
			}}
		}
		return nil
	}
}

func (m RootModel) inputActive() bool {
	switch m.active {
	case ViewLogs:
		return m.logs.InputActive()
	case ViewEvents:
		return m.events.InputActive()
	}
	return false
}

func (m RootModel) nextView() ViewID {
	switch m.active {
	case ViewDashboard:
		if m.logs.Project() != "" {
			return ViewLogs
		}
		return ViewEvents
	case ViewLogs:
		return ViewEvents
	default:
		return ViewDashboard
	}
}

func (m RootModel) filterPinned(ps []api.Project) []api.Project {
	if len(m.pinned) == 0 {
		return ps
	}
	seen := map[string]bool{}
	out := make([]api.Project, 0, len(m.pinned))
	for _, p := range ps {
		if m.pinned[p.ID] {
			out = append(out, p)
			seen[p.ID] = true
		}
	}
	// pinned projects the server did not list still get a row
	for _, id := range m.pinOrder {
		if !seen[id] {
			out = append(out, api.Project{ID: id, Name: id})
			seen[id] = true
		}
	}
	return out
}

func connectionEntry(cs tui.ConnectionState) (tui.EventLogEntry, bool) {
	e := tui.EventLogEntry{At: cs.At, Source: "connection", Level: tui.LogLevelInfo}
	switch cs.State {
	case "subscribed":
		e.Text = "push channel subscribed"
	case "reconnecting":
		e.Level = tui.LogLevelWarn
		e.Text = "push channel lost, reconnecting in " + cs.NextRetry.Round(time.Second).String()
	case "disconnected":
		e.Level = tui.LogLevelWarn
		e.Text = "push channel disconnected"
	default:
		return e, false
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return e, true
}

func (m RootModel) keybinds() []widgets.Keybind {
	common := []widgets.Keybind{{Key: "tab", Label: "switch"}, {Key: "R", Label: "reconnect"}, {Key: "q", Label: "quit"}}
	switch m.active {
	case ViewLogs:
		return append([]widgets.Keybind{
			{Key: "/", Label: "search"},
			{Key: "e", Label: "errors"},
			{Key: "i", Label: "iterations"},
			{Key: "f", Label: "follow"},
			{Key: "r", Label: "retry"},
			{Key: "esc", Label: "back"},
		}, common...)
	case ViewEvents:
		return append([]widgets.Keybind{{Key: "/", Label: "filter"}, {Key: "d", Label: "debug"}}, common...)
	default:
		return append([]widgets.Keybind{{Key: "↑/↓", Label: "select"}, {Key: "enter", Label: "logs"}}, common...)
	}
}

func (m RootModel) View() string {
	header := widgets.NewHeader("loopdash").
		WithView(string(m.active)).
		WithConnection(m.conn.State, m.conn.Attempt, m.conn.NextRetry).
		WithWidth(m.width).
		Render()

	var body string
	switch m.active {
	case ViewLogs:
		body = m.logs.View()
	case ViewEvents:
		body = m.events.View()
	default:
		body = m.dashboard.View()
	}
	bodyHeight := max(3, m.height-4)
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)

	footer := widgets.NewFooter(m.keybinds()).WithWidth(m.width).Render()
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}
