package workflow

import (
	"context"

	"dealradar/internal/queue"
	"dealradar/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool                    `json:"running"`
	Workers     int                     `json:"workers"`
	Busy        int                     `json:"busy"`
	LastError   string                  `json:"last_error,omitempty"`
	LastTask    *queue.Task             `json:"last_task,omitempty"`
	TaskCounts  map[queue.Status]int    `json:"task_counts"`
	Stages      []string                `json:"stages"`
	StageHealth map[string]stage.Health `json:"stage_health"`
}

// Status returns the latest workflow information, including a health check of
// every configured stage.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	var lastTask *queue.Task
	if m.lastTask != nil {
		snapshot := m.lastTask.Clone()
		lastTask = &snapshot
	}
	stages := append([]stage.Handler(nil), m.stages...)
	m.mu.RUnlock()

	health := make(map[string]stage.Health, len(stages))
	names := make([]string, 0, len(stages))
	for _, handler := range stages {
		names = append(names, handler.Name())
		health[handler.Name()] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:     running,
		Workers:     cap(m.sem),
		Busy:        len(m.sem),
		LastTask:    lastTask,
		TaskCounts:  m.registry.Counts(),
		Stages:      names,
		StageHealth: health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}
