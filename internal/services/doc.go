// Package services defines shared utilities consumed by the pipeline stages,
// the scoring engine and the service boundary.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, company IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the kinds reported on tasks and API responses.
//
// Use these helpers when wiring new stage logic so error classification stays
// uniform across the pipeline and the HTTP surface.
package services
