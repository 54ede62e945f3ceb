package workflow

import (
	"context"
	"errors"

	"dealradar/internal/logging"
)

// Start reloads persisted tasks and begins executing queued work. Tasks a
// previous process left running are failed with queue.RestartReason; pending
// tasks are queued again, oldest first.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	m.mu.Unlock()

	restored, err := m.registry.Restore(ctx)
	if err != nil {
		m.logger.Warn("task history unavailable; continuing with an empty queue",
			logging.Error(err),
			logging.EventType("task_restore_failed"),
			logging.ErrorHint("check the database file or delete it to start over"),
		)
	}

	m.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel
	m.running = true
	queued := make([]string, 0, len(restored)+len(m.backlog))
	seen := make(map[string]struct{})
	for _, task := range restored {
		queued = append(queued, task.ID)
		seen[task.ID] = struct{}{}
	}
	for _, id := range m.backlog {
		if _, ok := seen[id]; !ok {
			queued = append(queued, id)
		}
	}
	m.backlog = nil
	m.mu.Unlock()

	if len(restored) > 0 {
		m.logger.Info("requeued pending tasks",
			logging.Int("count", len(restored)),
			logging.EventType("tasks_requeued"),
		)
	}
	for _, id := range queued {
		m.dispatch(id)
	}
	return nil
}

// Stop cancels in-flight work and waits for every worker to return. Running
// tasks are failed with queue.ShutdownReason; tasks still waiting for a
// worker slot stay pending.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether Start has been called without a matching Stop.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// dispatch starts a worker goroutine for the task, or parks the id until
// Start when the manager is not running yet.
func (m *Manager) dispatch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		m.backlog = append(m.backlog, id)
		return
	}
	m.wg.Add(1)
	go m.runTask(m.runCtx, id)
}
