// Package fileutil holds the atomic file writes used for downloaded
// documents.
package fileutil
