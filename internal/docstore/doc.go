// Package docstore holds the ingestion data model (companies, links,
// documents, text chunks), the read/write interfaces the pipeline and the
// scoring engine program against, an in-memory implementation, and the
// per-company lock table that serializes scan-and-persist work.
package docstore
