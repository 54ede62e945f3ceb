// Package logging assembles structured slog loggers and formatting helpers used
// across dealradar.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code automatically tags
// log lines with task IDs, company IDs, stages, and correlation IDs. The line
// handler renders compact records for per-task activity logs, and TeeLogger
// fans one record out to several handlers.
package logging
