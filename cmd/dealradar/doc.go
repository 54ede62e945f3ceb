// Package main hosts the dealradar CLI entrypoint and command graph.
//
// `dealradar serve` runs the daemon: the workflow manager with every pipeline
// stage wired, the HTTP API and the single-instance lock. The remaining
// commands are thin HTTP clients of that daemon, except `rescan` and
// `config`, which work directly against local state.
package main
