// Package queue holds the Task model, its lifecycle state machine, and the
// in-process Registry that owns every Task the daemon knows about.
//
// The Registry keeps one entry per Task, each guarded by its own mutex, behind
// a read/write locked index. All mutations flow through Registry.Update so the
// state machine is enforced in one place and every accepted change is handed
// to the Persister before the lock is released. Snapshots returned to callers
// are deep copies; holding one never blocks a running stage.
//
// Persistence is pluggable. The SQLite store in internal/store implements
// Persister; tests use the in-memory MemoryPersister.
package queue
