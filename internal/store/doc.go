// Package store persists dealradar state in SQLite: task snapshots, companies,
// downloaded documents with their text chunks, the current score result of
// each company, and an FTS5 full-text index over the chunks.
//
// Store implements docstore.Store for the ingestion stages and the scoring
// engine, and queue.Persister for the task registry. Writes retry briefly when
// SQLite reports the database as busy. Score results are replaced inside a
// single transaction so readers never observe a partial result.
//
// Schema changes bump schemaVersion in schema.go; an existing database with a
// different version is rejected with ErrSchemaMismatch.
package store
