package extract

import (
	"context"
	"errors"
	"fmt"

	"dealradar/internal/config"
	"dealradar/internal/deps"
	"dealradar/internal/docstore"
	"dealradar/internal/logging"
	"dealradar/internal/services"
	"dealradar/internal/stage"
)

// StageName is the identifier recorded in task steps.
const StageName = "extract"

// Stage extracts and chunks the company's active documents.
type Stage struct {
	cfg       *config.Config
	docs      docstore.Store
	extractor Extractor
	chunker   Chunker
}

// NewStage builds the extract stage. A nil extractor reads local files with
// the configured pdftotext binary.
func NewStage(cfg *config.Config, docs docstore.Store, extractor Extractor) *Stage {
	if extractor == nil {
		extractor = FileExtractor{PDFToText: cfg.Extract.PDFToTextBinary}
	}
	return &Stage{
		cfg:       cfg,
		docs:      docs,
		extractor: extractor,
		chunker: Chunker{
			Size:     cfg.Extract.ChunkSize,
			Overlap:  cfg.Extract.ChunkOverlap,
			MinChars: cfg.Extract.MinChunkChars,
		},
	}
}

func (s *Stage) Name() string        { return StageName }
func (s *Stage) Label() string       { return "Extracting text" }
func (s *Stage) DependsOn() []string { return []string{"download"} }

// Execute chunks every active document of the company that has no chunks
// yet. It fails only when no document ends up with text.
func (s *Stage) Execute(ctx context.Context, run *stage.Run) (stage.Artifacts, error) {
	logger := run.Log()
	companyID := run.Company.ID
	documents, err := s.docs.Documents(ctx, companyID)
	if err != nil {
		return stage.Artifacts{}, stage.Fail(StageName, "documents", "list documents", err)
	}
	if len(documents) == 0 {
		return stage.Artifacts{}, services.Wrap(services.ErrNotFound, StageName, "documents",
			fmt.Sprintf("no documents for %s", companyID), nil)
	}

	var withText, extracted, chunkCount int
	var firstErr error
	for _, doc := range documents {
		if run.CancelRequested() {
			return stage.Artifacts{}, stage.ErrCancelled
		}
		existing, err := s.docs.Chunks(ctx, doc.ID)
		if err != nil {
			return stage.Artifacts{}, stage.Fail(StageName, "chunks", "read chunks", err)
		}
		if len(existing) > 0 {
			withText++
			continue
		}

		chunks, err := s.extractOne(ctx, doc)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stage.Artifacts{}, err
			}
			if firstErr == nil {
				firstErr = err
			}
			logger.Warn("document text unavailable",
				logging.String("document_id", doc.ID),
				logging.String("filename", doc.Filename),
				logging.Error(err),
				logging.EventType("extract_skipped"),
			)
			continue
		}
		if err := s.docs.SaveChunks(ctx, doc.ID, chunks); err != nil {
			return stage.Artifacts{}, stage.Fail(StageName, "save", "store chunks", err)
		}
		logger.Info("document chunked",
			logging.String("document_id", doc.ID),
			logging.Int("chunks", len(chunks)),
		)
		withText++
		extracted++
		chunkCount += len(chunks)
	}

	if withText == 0 {
		if firstErr == nil {
			firstErr = services.Wrap(services.ErrCorruptInput, StageName, "extract", "documents contain no text", nil)
		}
		return stage.Artifacts{}, stage.Fail(StageName, "extract",
			fmt.Sprintf("no text extracted from %d documents", len(documents)), firstErr)
	}
	return stage.Artifacts{
		Message: fmt.Sprintf("%d documents extracted, %d chunks", extracted, chunkCount),
	}, nil
}

func (s *Stage) extractOne(ctx context.Context, doc docstore.Document) ([]docstore.TextChunk, error) {
	text, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	chunks := s.chunker.Split(doc.ID, text)
	if len(chunks) == 0 {
		return nil, services.Wrap(services.ErrCorruptInput, StageName, "chunk",
			fmt.Sprintf("%s yielded no usable text", doc.Filename), nil)
	}
	return chunks, nil
}

// HealthCheck reports whether pdftotext is installed.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if _, ok := s.extractor.(FileExtractor); !ok {
		return stage.Healthy(StageName)
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(s.cfg)) {
		if !status.Available && !status.Optional {
			return stage.Unhealthy(StageName, status.Name+": "+status.Detail)
		}
	}
	return stage.Healthy(StageName)
}
