package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Persister stores task snapshots outside the process.
type Persister interface {
	SaveTask(ctx context.Context, task Task) error
	LoadTasks(ctx context.Context) ([]Task, error)
	DeleteTasks(ctx context.Context, ids ...string) error
}

// Token is the cancellation latch of one task. It satisfies stage.CancelToken.
type Token struct {
	requested atomic.Bool
}

// Requested reports whether cancellation was asked for.
func (t *Token) Requested() bool {
	return t != nil && t.requested.Load()
}

func (t *Token) set() { t.requested.Store(true) }

type entry struct {
	mu    sync.Mutex
	seq   uint64
	task  Task
	token Token
}

// Registry owns the id -> task map.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	seq       uint64
	persister Persister
	logLines  int
	keep      int
	now       func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithPersister sets where snapshots are saved after each accepted change.
func WithPersister(p Persister) Option {
	return func(r *Registry) {
		r.persister = p
	}
}

// WithLogLines bounds each task's activity log.
func WithLogLines(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.logLines = n
		}
	}
}

// WithRetention keeps at most n tasks; older finished tasks are pruned.
// Zero keeps every task.
func WithRetention(n int) Option {
	return func(r *Registry) {
		if n >= 0 {
			r.keep = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry builds an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries:  make(map[string]*entry),
		logLines: DefaultLogLines,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new pending task copying the request fields of the given task.
// ID, status and timestamps are assigned here.
func (r *Registry) Create(ctx context.Context, request Task) (Task, error) {
	now := r.now()
	task := Task{
		ID:          uuid.NewString(),
		CompanyName: request.CompanyName,
		Website:     request.Website,
		IRURL:       request.IRURL,
		Country:     request.Country,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	task = task.Clone()

	e := &entry{task: task}
	r.mu.Lock()
	r.seq++
	e.seq = r.seq
	r.entries[task.ID] = e
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := e.task.Clone()
	return snapshot, r.persist(ctx, snapshot)
}

// Get returns a snapshot of the task.
func (r *Registry) Get(id string) (Task, error) {
	e := r.lookup(id)
	if e == nil {
		return Task{}, notFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task.Clone(), nil
}

// Token returns the cancellation latch for id, or nil when unknown.
func (r *Registry) Token(id string) *Token {
	e := r.lookup(id)
	if e == nil {
		return nil
	}
	return &e.token
}

// List returns snapshots, most recently created first. A non-positive limit
// returns every task.
func (r *Registry) List(limit int) []Task {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]Task, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.task.Clone())
		e.mu.Unlock()
	}
	return out
}

// Counts returns the number of tasks per status.
func (r *Registry) Counts() map[Status]int {
	counts := make(map[Status]int, len(allStatuses))
	for _, status := range allStatuses {
		counts[status] = 0
	}
	for _, task := range r.List(0) {
		counts[task.Status]++
	}
	return counts
}

// Update applies fn to a working copy of the task. When fn returns nil and the
// resulting status change is allowed, the copy replaces the stored task and is
// persisted. A persistence failure leaves the in-memory change in place and is
// reported wrapped in ErrPersist.
func (r *Registry) Update(ctx context.Context, id string, fn func(*Task) error) (Task, error) {
	e := r.lookup(id)
	if e == nil {
		return Task{}, notFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.task.Clone()
	if err := fn(&working); err != nil {
		return e.task.Clone(), err
	}
	working.ID = e.task.ID
	if working.Status != e.task.Status && !e.task.Status.CanTransition(working.Status) {
		return e.task.Clone(), invalidTransition(id, e.task.Status, working.Status)
	}
	if e.task.Status.IsTerminal() {
		return e.task.Clone(), invalidTransition(id, e.task.Status, working.Status)
	}
	working.Log = r.trimLog(working.Log)
	working.UpdatedAt = r.now()
	e.task = working

	snapshot := e.task.Clone()
	return snapshot, r.persist(ctx, snapshot)
}

// RequestCancel applies the cancel rules: a pending task is cancelled at once,
// a running task moves to cancelling and its token is set. Tasks that are
// already cancelling or terminal are returned unchanged.
func (r *Registry) RequestCancel(ctx context.Context, id string) (Task, error) {
	e := r.lookup(id)
	if e == nil {
		return Task{}, notFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := r.now()
	switch e.task.Status {
	case StatusPending:
		e.token.set()
		e.task.Finish(StatusCancelled, now)
		e.task.Progress = 0
	case StatusRunning:
		e.token.set()
		e.task.Status = StatusCancelling
	default:
		return e.task.Clone(), nil
	}
	e.task.Log = r.trimLog(append(e.task.Log, LogLine(now, "INFO", "cancel requested")))
	e.task.UpdatedAt = now
	snapshot := e.task.Clone()
	return snapshot, r.persist(ctx, snapshot)
}

// AppendLog adds a line to the task's bounded activity log. The line is saved
// with the next persisted update. Finished tasks are frozen, so lines that
// arrive after the terminal update are dropped.
func (r *Registry) AppendLog(id, line string) {
	e := r.lookup(id)
	if e == nil || line == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.task.Status.IsTerminal() {
		return
	}
	e.task.Log = r.trimLog(append(e.task.Log, line))
}

// Prune forgets finished tasks beyond the retention limit, oldest first, and
// deletes them from the persister. Pending and active tasks are never pruned.
// It returns the number of tasks removed.
func (r *Registry) Prune(ctx context.Context) (int, error) {
	if r.keep <= 0 {
		return 0, nil
	}
	tasks := r.List(0)
	if len(tasks) <= r.keep {
		return 0, nil
	}
	var drop []string
	for _, task := range tasks[r.keep:] {
		if task.Status.IsTerminal() {
			drop = append(drop, task.ID)
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}
	r.mu.Lock()
	for _, id := range drop {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if r.persister != nil {
		if err := r.persister.DeleteTasks(ctx, drop...); err != nil {
			return len(drop), fmt.Errorf("%w prune: %w", ErrPersist, err)
		}
	}
	return len(drop), nil
}

// Restore loads persisted tasks into an empty registry. Tasks that were
// running or cancelling are failed with RestartReason; pending tasks are
// returned oldest first so the caller can queue them again.
func (r *Registry) Restore(ctx context.Context) ([]Task, error) {
	if r.persister == nil {
		return nil, nil
	}
	tasks, err := r.persister.LoadTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })

	now := r.now()
	var pending []Task
	var reclaimed []Task
	r.mu.Lock()
	for _, task := range tasks {
		if _, exists := r.entries[task.ID]; exists {
			continue
		}
		task = task.Clone()
		switch task.Status {
		case StatusRunning, StatusCancelling:
			task.Finish(StatusFailed, now)
			task.Error = RestartReason
			task.UpdatedAt = now
			reclaimed = append(reclaimed, task.Clone())
		case StatusPending:
			pending = append(pending, task.Clone())
		}
		r.seq++
		r.entries[task.ID] = &entry{seq: r.seq, task: task}
	}
	r.mu.Unlock()

	for _, task := range reclaimed {
		if err := r.persist(ctx, task); err != nil {
			return pending, err
		}
	}
	if _, err := r.Prune(ctx); err != nil {
		return pending, err
	}
	return pending, nil
}

func (r *Registry) lookup(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}

func (r *Registry) trimLog(lines []string) []string {
	if over := len(lines) - r.logLines; over > 0 {
		lines = append([]string(nil), lines[over:]...)
	}
	return lines
}

func (r *Registry) persist(ctx context.Context, task Task) error {
	if r.persister == nil {
		return nil
	}
	if err := r.persister.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("%w %s: %w", ErrPersist, task.ID, err)
	}
	return nil
}
