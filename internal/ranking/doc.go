// Package ranking holds the scan and score pipeline stages and the ranked
// company list served to clients.
//
// The scan stage runs the scoring engine over a company's active documents
// and keeps the result on the task's Run. The score stage persists that
// result, replacing whatever was stored before. Both hold the per-company
// lock so two tasks for the same company never interleave scan and persist.
package ranking
