package docstore

import (
	"context"
	"sync"
)

// Locks serializes work per company. Entries are released once no holder or
// waiter remains.
type Locks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// NewLocks returns an empty lock table.
func NewLocks() *Locks {
	return &Locks{entries: make(map[string]*lockEntry)}
}

// Acquire blocks until the lock for companyID is held or ctx is done.
func (l *Locks) Acquire(ctx context.Context, companyID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[companyID]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		l.entries[companyID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(companyID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			l.release(companyID, entry)
		})
	}, nil
}

func (l *Locks) release(companyID string, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, companyID)
	}
}
