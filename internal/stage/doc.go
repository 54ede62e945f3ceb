// Package stage defines the contract between the workflow manager and the
// pipeline stages (discover, collect, download, extract, scan, score, index):
// the Handler interface, the Run context that carries partial results from
// one stage to the next, and stage health reporting.
package stage
