package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dealradar/internal/config"
	"dealradar/internal/logging"
	"dealradar/internal/queue"
	"dealradar/internal/stage"
)

// Manager coordinates task execution using registered stage handlers.
type Manager struct {
	cfg      *config.Config
	registry *queue.Registry
	logger   *slog.Logger
	now      func() time.Time

	stages []stage.Handler
	sem    chan struct{}

	mu       sync.RWMutex
	running  bool
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	backlog  []string
	lastErr  error
	lastTask *queue.Task
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock overrides the time source used for task timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a workflow manager over registry.
func NewManager(cfg *config.Config, registry *queue.Registry, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Pipeline.MaxConcurrentTasks
	if workers <= 0 {
		workers = 1
	}
	m := &Manager{
		cfg:      cfg,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		now:      func() time.Time { return time.Now().UTC() },
		sem:      make(chan struct{}, workers),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConfigureStages sets the ordered stage list. Every dependency a stage
// declares must name a stage earlier in the list.
func (m *Manager) ConfigureStages(handlers ...stage.Handler) error {
	seen := make(map[string]struct{}, len(handlers))
	for i, handler := range handlers {
		if handler == nil {
			return fmt.Errorf("stage %d is nil", i)
		}
		name := handler.Name()
		if name == "" {
			return fmt.Errorf("stage %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("stage %q configured twice", name)
		}
		if dependent, ok := handler.(stage.Dependent); ok {
			for _, dep := range dependent.DependsOn() {
				if _, ok := seen[dep]; !ok {
					return fmt.Errorf("stage %q depends on %q, which does not run before it", name, dep)
				}
			}
		}
		seen[name] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("cannot change stages while the workflow is running")
	}
	m.stages = append([]stage.Handler(nil), handlers...)
	return nil
}

// Stages returns the configured stage names in execution order.
func (m *Manager) Stages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.stages))
	for i, handler := range m.stages {
		names[i] = handler.Name()
	}
	return names
}

func (m *Manager) stageList() []stage.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]stage.Handler(nil), m.stages...)
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastTask(task queue.Task) {
	m.mu.Lock()
	snapshot := task.Clone()
	m.lastTask = &snapshot
	m.mu.Unlock()
}
