package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a company or document does not exist.
var ErrNotFound = errors.New("docstore: not found")

// Reader exposes the read side used by the scoring engine and the insight
// features.
type Reader interface {
	Company(ctx context.Context, id string) (Company, error)
	Companies(ctx context.Context) ([]Company, error)
	// Documents returns the active (non-superseded) documents of a company
	// ordered by fiscal year descending, then creation time.
	Documents(ctx context.Context, companyID string) ([]Document, error)
	Chunks(ctx context.Context, documentID string) ([]TextChunk, error)
}

// Writer is the append-only write side used by the ingestion stages.
type Writer interface {
	UpsertCompany(ctx context.Context, company Company) error
	// RecordDocument stores doc. Recording an existing id is a no-op that
	// returns the stored document. Recording a new id for a source URL that
	// already has an active document supersedes the older one.
	RecordDocument(ctx context.Context, doc Document) (Document, error)
	// SaveChunks stores the chunks of a document once; later calls for the
	// same document are ignored.
	SaveChunks(ctx context.Context, documentID string, chunks []TextChunk) error
}

// Store combines both sides.
type Store interface {
	Reader
	Writer
}
