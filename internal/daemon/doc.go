// Package daemon coordinates the long-running dealradar process.
//
// It wires the workflow manager and the HTTP JSON API into a single
// lifecycle with flock-based locking to prevent multiple instances against
// the same data directory. Stopping the daemon shuts the API down first,
// then stops the manager so running tasks are failed with the shutdown
// reason, then releases the lock.
//
// Keep orchestration logic here: pipeline stages live in their own packages
// and request semantics live in internal/api.
package daemon
