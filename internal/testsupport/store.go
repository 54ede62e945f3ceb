package testsupport

import (
	"context"
	"testing"

	"dealradar/internal/config"
	"dealradar/internal/docstore"
	"dealradar/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedDocument records a company, one document and its text as a single chunk.
func SeedDocument(t testing.TB, st docstore.Store, companyID, year, text string) docstore.Document {
	t.Helper()

	ctx := context.Background()
	if err := st.UpsertCompany(ctx, docstore.Company{ID: companyID, Name: companyID}); err != nil {
		t.Fatalf("UpsertCompany: %v", err)
	}
	id := docstore.DocumentID(companyID, []byte(year+text))
	doc, err := st.RecordDocument(ctx, docstore.Document{
		ID:         id,
		CompanyID:  companyID,
		FiscalYear: year,
		Filename:   docstore.DocumentFilename(companyID, year, id, "pdf"),
		SizeBytes:  int64(len(text)),
		SourceURL:  "https://example.com/" + companyID + "/" + year + "/" + id + ".pdf",
	})
	if err != nil {
		t.Fatalf("RecordDocument: %v", err)
	}
	if err := st.SaveChunks(ctx, doc.ID, []docstore.TextChunk{{Position: 0, Offset: 0, Content: text}}); err != nil {
		t.Fatalf("SaveChunks: %v", err)
	}
	return doc
}
