package queue

import (
	"context"
	"sync"
)

// MemoryPersister keeps snapshots in a map. It is used by tests and by the
// offline CLI paths that do not need durable task history.
type MemoryPersister struct {
	mu    sync.Mutex
	tasks map[string]Task
	saves int
}

// NewMemoryPersister returns an empty persister.
func NewMemoryPersister(seed ...Task) *MemoryPersister {
	p := &MemoryPersister{tasks: make(map[string]Task)}
	for _, task := range seed {
		p.tasks[task.ID] = task.Clone()
	}
	return p
}

func (p *MemoryPersister) SaveTask(_ context.Context, task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[task.ID] = task.Clone()
	p.saves++
	return nil
}

func (p *MemoryPersister) LoadTasks(_ context.Context) ([]Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Task, 0, len(p.tasks))
	for _, task := range p.tasks {
		out = append(out, task.Clone())
	}
	return out, nil
}

func (p *MemoryPersister) DeleteTasks(_ context.Context, ids ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.tasks, id)
	}
	return nil
}

// Saved returns the last persisted snapshot for id.
func (p *MemoryPersister) Saved(id string) (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	task, ok := p.tasks[id]
	return task.Clone(), ok
}

// Saves counts SaveTask calls.
func (p *MemoryPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}
