// Package preflight provides readiness checks for the filesystem paths,
// external binaries and services dealradar depends on.
//
// `dealradar doctor` runs RunAll and, when a daemon answers, CheckDaemon.
// Checks for optional features are skipped when the feature is not
// configured; a missing LLM key is reported but does not fail the run.
package preflight
