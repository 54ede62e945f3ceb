package searchindex

import (
	"context"
	"fmt"

	"dealradar/internal/docstore"
	"dealradar/internal/logging"
	"dealradar/internal/services"
	"dealradar/internal/stage"
	"dealradar/internal/store"
)

// StageName is the identifier recorded in task steps.
const StageName = "index"

// Index is the write side of the full-text index.
type Index interface {
	ReplaceIndex(ctx context.Context, companyID string, entries []store.IndexEntry) error
}

// Stage rebuilds the company's index rows.
type Stage struct {
	docs  docstore.Reader
	index Index
}

// NewStage builds the index stage.
func NewStage(docs docstore.Reader, index Index) *Stage {
	return &Stage{docs: docs, index: index}
}

func (s *Stage) Name() string        { return StageName }
func (s *Stage) Label() string       { return "Building search index" }
func (s *Stage) DependsOn() []string { return []string{"extract"} }

// Execute replaces the indexed rows of the company. Superseded documents
// drop out of the index with the replace.
func (s *Stage) Execute(ctx context.Context, run *stage.Run) (stage.Artifacts, error) {
	companyID := run.Company.ID
	if companyID == "" {
		return stage.Artifacts{}, services.Wrap(services.ErrInvalidInput, StageName, "index", "company not resolved", nil)
	}
	entries, documents, err := Entries(ctx, s.docs, companyID)
	if err != nil {
		return stage.Artifacts{}, stage.Fail(StageName, "entries", "collect chunks", err)
	}
	if run.CancelRequested() {
		return stage.Artifacts{}, stage.ErrCancelled
	}
	if err := s.index.ReplaceIndex(ctx, companyID, entries); err != nil {
		return stage.Artifacts{}, stage.Fail(StageName, "replace", "update search index", err)
	}
	run.Log().Info("search index updated",
		logging.Int("documents", documents),
		logging.Int("chunks", len(entries)),
		logging.EventType("index_replaced"),
	)
	return stage.Artifacts{
		Message: fmt.Sprintf("%d chunks from %d documents indexed", len(entries), documents),
	}, nil
}

// Entries lists the index rows of a company's active documents and the
// number of documents they came from.
func Entries(ctx context.Context, docs docstore.Reader, companyID string) ([]store.IndexEntry, int, error) {
	documents, err := docs.Documents(ctx, companyID)
	if err != nil {
		return nil, 0, err
	}
	var entries []store.IndexEntry
	for _, doc := range documents {
		chunks, err := docs.Chunks(ctx, doc.ID)
		if err != nil {
			return nil, 0, err
		}
		for _, chunk := range chunks {
			entries = append(entries, store.IndexEntry{
				CompanyID:  companyID,
				DocumentID: doc.ID,
				FiscalYear: doc.FiscalYear,
				Filename:   doc.Filename,
				Position:   chunk.Position,
				Content:    chunk.Content,
			})
		}
	}
	return entries, len(documents), nil
}

func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.index == nil {
		return stage.Unhealthy(StageName, "search index not configured")
	}
	return stage.Healthy(StageName)
}
