package queue

import (
	"slices"
	"time"
)

// Status represents the lifecycle of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusCancelling Status = "cancelling"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// ShutdownReason is recorded on tasks that were running when the daemon stopped.
const ShutdownReason = "interrupted by shutdown"

// RestartReason is recorded on tasks found running when the daemon starts.
const RestartReason = "interrupted by restart"

// DefaultLogLines bounds a task's activity log when no limit is configured.
const DefaultLogLines = 50

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCancelling,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// transitions lists the allowed status changes. Staying in the same
// non-terminal status is always allowed (progress updates).
var transitions = map[Status][]Status{
	StatusPending:    {StatusRunning, StatusCancelled},
	StatusRunning:    {StatusCompleted, StatusFailed, StatusCancelling},
	StatusCancelling: {StatusCancelled, StatusFailed},
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return slices.Clone(allStatuses)
}

// ParseStatus reports whether value names a known status.
func ParseStatus(value string) (Status, bool) {
	for _, status := range allStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the state machine allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return !s.IsTerminal()
	}
	return slices.Contains(transitions[s], next)
}

// Task is one request to analyze one company.
type Task struct {
	ID             string    `json:"id"`
	CompanyName    string    `json:"company_name"`
	Website        string    `json:"website,omitempty"`
	IRURL          string    `json:"ir_url,omitempty"`
	Country        string    `json:"country,omitempty"`
	Status         Status    `json:"status"`
	Progress       float64   `json:"progress"`
	CurrentStep    string    `json:"current_step,omitempty"`
	StepsCompleted []string  `json:"steps_completed"`
	Companies      []string  `json:"companies"`
	Documents      []string  `json:"documents"`
	Error          string    `json:"error,omitempty"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	Log            []string  `json:"log"`
	CreatedAt      time.Time `json:"created_at"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	FinishedAt     time.Time `json:"finished_at,omitzero"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (t Task) Clone() Task {
	out := t
	out.StepsCompleted = cloneStrings(t.StepsCompleted)
	out.Companies = cloneStrings(t.Companies)
	out.Documents = cloneStrings(t.Documents)
	out.Log = cloneStrings(t.Log)
	return out
}

// Duration reports how long the task has been (or was) running.
func (t Task) Duration(now time.Time) time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	end := t.FinishedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(t.StartedAt)
}

// AddCompanies appends ids that are not already recorded.
func (t *Task) AddCompanies(ids ...string) {
	t.Companies = appendUnique(t.Companies, ids...)
}

// AddDocuments appends ids that are not already recorded.
func (t *Task) AddDocuments(ids ...string) {
	t.Documents = appendUnique(t.Documents, ids...)
}

// LogLine renders an activity log entry in the same shape as the task
// logger's lines.
func LogLine(at time.Time, level, message string) string {
	return at.UTC().Format("15:04:05") + " " + level + " " + message
}

// Finish moves the task into a terminal status and stamps the finish time.
func (t *Task) Finish(status Status, at time.Time) {
	t.Status = status
	t.FinishedAt = at
	t.CurrentStep = ""
	if status == StatusCompleted {
		t.Progress = 1
	}
}

func appendUnique(dst []string, values ...string) []string {
	for _, value := range values {
		if value == "" || slices.Contains(dst, value) {
			continue
		}
		dst = append(dst, value)
	}
	return dst
}

func cloneStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return slices.Clone(values)
}
