package api

type ProjectStatus string

const (
	ProjectRunning  ProjectStatus = "running"
	ProjectPaused   ProjectStatus = "paused"
	ProjectStopped  ProjectStatus = "stopped"
	ProjectComplete ProjectStatus = "complete"
)

type Project struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Path   string        `json:"path"`
	Status ProjectStatus `json:"status"`
}

type IterationSummary struct {
	Number          int      `json:"number"`
	MaxIterations   *int     `json:"max_iterations,omitempty"`
	StartTimestamp  string   `json:"start_timestamp,omitempty"`
	EndTimestamp    string   `json:"end_timestamp,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	TokensUsed      *float64 `json:"tokens_used,omitempty"`
	Status          string   `json:"status,omitempty"`
	HasErrors       bool     `json:"has_errors"`
	Errors          []string `json:"errors,omitempty"`
	TasksCompleted  []string `json:"tasks_completed,omitempty"`
	Commit          string   `json:"commit,omitempty"`
	TestPassed      *bool    `json:"test_passed,omitempty"`
}

type IterationDetail struct {
	IterationSummary
	LogOutput string `json:"log_output"`
}

type IterationList struct {
	Iterations []IterationSummary `json:"iterations"`
	Total      int                `json:"total"`
}

// StatusFilter narrows iteration listings.
type StatusFilter string

const (
	StatusAll     StatusFilter = "all"
	StatusSuccess StatusFilter = "success"
	StatusFailed  StatusFilter = "error"
)

type ListIterationsOptions struct {
	Status StatusFilter
	Limit  int
	Offset int
}

type PlanTask struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description"`
	Done        bool   `json:"done"`
	Indent      int    `json:"indent"`
}

type PlanPhase struct {
	Name       string     `json:"name"`
	Tasks      []PlanTask `json:"tasks"`
	DoneCount  int        `json:"done_count"`
	TotalCount int        `json:"total_count"`
	Status     string     `json:"status"`
}

type Plan struct {
	Status     string      `json:"status,omitempty"`
	Phases     []PlanPhase `json:"phases"`
	TasksDone  int         `json:"tasks_done"`
	TasksTotal int         `json:"tasks_total"`
	Raw        string      `json:"raw"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type accessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// errorBody is the server's error shape.
type errorBody struct {
	Detail any `json:"detail"`
}
