package api

import (
	"sort"
	"time"

	"dealradar/internal/queue"
	"dealradar/internal/stage"
	"dealradar/internal/workflow"
)

// FromTask converts a task snapshot to its API representation.
func FromTask(task queue.Task) TaskView {
	task = task.Clone()
	return TaskView{
		ID:             task.ID,
		CompanyName:    task.CompanyName,
		Website:        task.Website,
		IRURL:          task.IRURL,
		Country:        task.Country,
		Status:         string(task.Status),
		Progress:       task.Progress,
		CurrentStep:    task.CurrentStep,
		StepsCompleted: task.StepsCompleted,
		Companies:      task.Companies,
		Documents:      task.Documents,
		Error:          task.Error,
		ErrorKind:      task.ErrorKind,
		Log:            task.Log,
		CreatedAt:      formatTime(task.CreatedAt),
		StartedAt:      formatTime(task.StartedAt),
		FinishedAt:     formatTime(task.FinishedAt),
		UpdatedAt:      formatTime(task.UpdatedAt),
	}
}

// FromTasks converts a slice of task snapshots.
func FromTasks(tasks []queue.Task) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out
}

// FromStatusSummary converts the workflow summary.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:     summary.Running,
		Workers:     summary.Workers,
		Busy:        summary.Busy,
		LastError:   summary.LastError,
		TaskCounts:  make(map[string]int, len(summary.TaskCounts)),
		Stages:      summary.Stages,
		StageHealth: StageHealthSlice(summary.StageHealth, summary.Stages),
	}
	for _, s := range queue.AllStatuses() {
		status.TaskCounts[string(s)] = summary.TaskCounts[s]
	}
	if summary.LastTask != nil {
		view := FromTask(*summary.LastTask)
		status.LastTask = &view
	}
	return status
}

// StageHealthSlice lists stage health in pipeline order; stages missing
// from order follow by name.
func StageHealthSlice(health map[string]stage.Health, order []string) []stage.Health {
	position := make(map[string]int, len(order))
	for i, name := range order {
		position[name] = i
	}
	out := make([]stage.Health, 0, len(health))
	for name, h := range health {
		if h.Name == "" {
			h.Name = name
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, iok := position[out[i].Name]
		pj, jok := position[out[j].Name]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return out[i].Name < out[j].Name
		}
	})
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime reads a timestamp produced by the API. Empty or malformed values
// yield the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
