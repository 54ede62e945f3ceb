// Package workflow runs analysis tasks through the configured pipeline
// stages.
//
// The Manager accepts submissions, admits at most
// pipeline.max_concurrent_tasks tasks at a time, and walks each admitted task
// through its ordered stage list (discover, collect, download, extract, scan,
// score, index). Every stage runs under its own deadline; the manager waits on
// either the stage result or that deadline, so a stage that ignores its
// context still fails the task instead of hanging a worker.
//
// Cancellation is cooperative: Cancel latches the task into cancelling and
// the manager stops at the next stage boundary. Shutdown fails running tasks
// with queue.ShutdownReason; Start reclaims tasks left running by a previous
// process and re-queues pending ones.
//
// All task mutations go through queue.Registry.Update, which enforces the
// state machine and persists each snapshot.
package workflow
