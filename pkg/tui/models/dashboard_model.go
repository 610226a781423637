package models

import (
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/loopdash/pkg/api"
	"github.com/go-go-golems/loopdash/pkg/tui"
	"github.com/go-go-golems/loopdash/pkg/tui/styles"
	"github.com/go-go-golems/loopdash/pkg/tui/widgets"
)

// projectRow is what the dashboard knows about one loop, merged from the
// REST listing and live push events.
type projectRow struct {
	ID         string
	Name       string
	Status     string
	Iteration  int
	Max        int
	LastResult string
	TasksDone  int
	TasksTotal int
	HasPlan    bool
}

type DashboardModel struct {
	width  int
	height int

	rows    []projectRow
	cursor  int
	loading bool
	err     error
}

func NewDashboardModel() DashboardModel {
	return DashboardModel{loading: true}
}

func (m DashboardModel) WithSize(width, height int) DashboardModel {
	m.width, m.height = width, height
	return m
}

// ProjectIDs lists the known projects in display order.
func (m DashboardModel) ProjectIDs() []string {
	out := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r.ID)
	}
	return out
}

// Selected is the project under the cursor, if any.
func (m DashboardModel) Selected() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return "", false
	}
	return m.rows[m.cursor].ID, true
}

// WithProjects merges a REST listing. Live fields of known rows are kept.
func (m DashboardModel) WithProjects(ps []api.Project, err error) DashboardModel {
	m.loading = false
	m.err = err
	if err != nil {
		return m
	}
	// capture before merging: new rows must not move the cursor
	sel, selected := m.Selected()
	for _, p := range ps {
		i := m.ensure(p.ID)
		if p.Name != "" {
			m.rows[i].Name = p.Name
		}
		if p.Status != "" {
			m.rows[i].Status = string(p.Status)
		}
	}
	m.sortRows(sel, selected)
	return m
}

func (m DashboardModel) WithPlan(project string, plan *api.Plan) DashboardModel {
	if plan == nil {
		return m
	}
	i := m.ensure(project)
	m.rows[i].TasksDone = plan.TasksDone
	m.rows[i].TasksTotal = plan.TasksTotal
	m.rows[i].HasPlan = true
	return m
}

func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = v.Width, v.Height
		return m, nil
	case tui.IterationStartedMsg:
		i := m.ensure(v.Event.Project)
		m.rows[i].Iteration = v.Event.Iteration
		if v.Event.Max > 0 {
			m.rows[i].Max = v.Event.Max
		}
		m.rows[i].Status = string(api.ProjectRunning)
		return m, nil
	case tui.IterationFinishedMsg:
		i := m.ensure(v.Event.Project)
		c := v.Event.Completed
		m.rows[i].Iteration = c.Iteration
		if c.Max > 0 {
			m.rows[i].Max = c.Max
		}
		m.rows[i].LastResult = c.Status
		if len(c.Errors) > 0 {
			m.rows[i].LastResult = fmt.Sprintf("%d errors", len(c.Errors))
		}
		return m, nil
	case tui.PlanUpdatedMsg:
		i := m.ensure(v.Event.Project)
		m.rows[i].TasksDone = v.Event.Plan.TasksDone
		m.rows[i].TasksTotal = v.Event.Plan.TasksTotal
		m.rows[i].HasPlan = true
		return m, nil
	case tui.StatusChangedMsg:
		i := m.ensure(v.Event.Project)
		m.rows[i].Status = v.Event.Status
		return m, nil
	case tea.KeyMsg:
		switch v.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case "enter", "l":
			if id, ok := m.Selected(); ok {
				return m, func() tea.Msg { return tui.NavigateToLogsMsg{Project: id} }
			}
		}
	}
	return m, nil
}

// ensure returns the index of the row for id, adding it when a push event
// names a project the listing did not.
func (m *DashboardModel) ensure(id string) int {
	for i, r := range m.rows {
		if r.ID == id {
			return i
		}
	}
	m.rows = append(m.rows, projectRow{ID: id, Name: id})
	return len(m.rows) - 1
}

// sortRows orders by name and keeps the cursor on sel when ok, otherwise at
// the top.
func (m *DashboardModel) sortRows(sel string, ok bool) {
	sort.SliceStable(m.rows, func(i, j int) bool { return m.rows[i].Name < m.rows[j].Name })
	if !ok {
		m.cursor = 0
		return
	}
	for i, r := range m.rows {
		if r.ID == sel {
			m.cursor = i
			return
		}
	}
}

func (m DashboardModel) View() string {
	theme := styles.DefaultTheme()
	switch {
	case m.err != nil:
		return theme.StatusDead.Render("failed to list projects: "+m.err.Error()) + "\n"
	case m.loading && len(m.rows) == 0:
		return theme.TitleMuted.Render("Loading projects…") + "\n"
	}

	planWidth := 16
	cols := []widgets.TableColumn{
		{Header: "PROJECT", Width: 24},
		{Header: "STATUS", Width: 12},
		{Header: "ITERATION", Width: 12},
		{Header: "LAST", Width: 14},
		{Header: "PLAN", Width: planWidth + 10},
	}
	rows := make([]widgets.TableRow, 0, len(m.rows))
	for _, r := range m.rows {
		status := r.Status
		if status == "" {
			status = "unknown"
		}
		plan := "-"
		if r.HasPlan {
			plan = widgets.NewProgressBar(r.TasksDone, r.TasksTotal).
				WithWidth(planWidth).
				WithStyle(theme.StatusRunning).
				Render()
		}
		rows = append(rows, widgets.TableRow{
			Icon:      styles.ProjectStatusIcon(r.Status),
			IconStyle: theme.ProjectStatusStyle(r.Status),
			Cells:     []string{r.Name, status, iterationCell(r.Iteration, r.Max), nonEmpty(r.LastResult, "-"), plan},
		})
	}
	table := widgets.NewTable(cols).WithRows(rows).WithCursor(m.cursor).WithWidth(m.width)

	return table.Render() + "\n"
}

func iterationCell(n, max int) string {
	switch {
	case n == 0:
		return "-"
	case max > 0:
		return fmt.Sprintf("%d/%d", n, max)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
