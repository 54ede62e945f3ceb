// Package download implements the download stage. Each collected link is
// fetched through the shared rate-limited client, checked for type and
// size, written under downloads/<company>/<year>/ and recorded as an
// immutable docstore.Document.
package download
