// Package api defines the wire-format types shared by the HTTP daemon, the
// CLI and the MCP server, plus the Service facade that answers them.
//
// # Key Types
//
// TaskView: transport representation of a task with progress, steps and the
// bounded activity log.
//
// CompanyDetail / EvidenceResponse: a company's stored score result and its
// evidence grouped per signal category.
//
// StatsResponse / WorkflowStatus: store counters and orchestrator state with
// stage health.
//
// # Backends
//
// Backend is implemented twice: Service works in-process against the
// workflow manager and the store, Client talks to a running daemon over
// HTTP. The CLI and the MCP server accept either.
//
// # Errors
//
// Failures travel as ErrorResponse{error, kind, hint}. Client turns them back
// into errors carrying the matching services marker, so callers classify
// remote and local errors the same way.
package api
