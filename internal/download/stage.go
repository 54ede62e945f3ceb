package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"dealradar/internal/config"
	"dealradar/internal/docstore"
	"dealradar/internal/fetch"
	"dealradar/internal/fileutil"
	"dealradar/internal/logging"
	"dealradar/internal/services"
	"dealradar/internal/stage"
	"dealradar/internal/textutil"
)

// StageName is the identifier recorded in task steps.
const StageName = "download"

var pdfMagic = []byte("%PDF-")

// Stage downloads the run's links.
type Stage struct {
	cfg     *config.Config
	fetcher *fetch.Client
	docs    docstore.Writer
	now     func() time.Time
}

// NewStage builds the download stage.
func NewStage(cfg *config.Config, fetcher *fetch.Client, docs docstore.Writer) *Stage {
	return &Stage{cfg: cfg, fetcher: fetcher, docs: docs, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Stage) Name() string        { return StageName }
func (s *Stage) Label() string       { return "Downloading PDFs" }
func (s *Stage) DependsOn() []string { return []string{"collect"} }

// Execute downloads every link, tolerating individual failures.
func (s *Stage) Execute(ctx context.Context, run *stage.Run) (stage.Artifacts, error) {
	logger := run.Log()
	if len(run.Links) == 0 {
		return stage.Artifacts{}, services.Wrap(services.ErrInvalidInput, StageName, "download", "no links to download", nil)
	}

	var (
		ids      []string
		total    int64
		firstErr error
	)
	for i, link := range run.Links {
		if run.CancelRequested() {
			return stage.Artifacts{Documents: ids}, stage.ErrCancelled
		}
		doc, err := s.downloadOne(ctx, run.Company.ID, link)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stage.Artifacts{Documents: ids}, err
			}
			if firstErr == nil {
				firstErr = err
			}
			logger.Warn("document skipped",
				logging.String("url", link.URL),
				logging.Int("index", i+1),
				logging.Error(err),
				logging.EventType("download_skipped"),
			)
			continue
		}
		logger.Info("document downloaded",
			logging.String("document_id", doc.ID),
			logging.String("year", doc.FiscalYear),
			logging.String("size", humanize.Bytes(uint64(doc.SizeBytes))),
		)
		run.Documents = append(run.Documents, doc)
		ids = append(ids, doc.ID)
		total += doc.SizeBytes
	}

	if len(ids) == 0 {
		return stage.Artifacts{}, stage.Fail(StageName, "download",
			fmt.Sprintf("all %d downloads failed", len(run.Links)), firstErr)
	}
	return stage.Artifacts{
		Documents: ids,
		Message: fmt.Sprintf("%d of %d documents (%s)", len(ids), len(run.Links),
			humanize.Bytes(uint64(total))),
	}, nil
}

func (s *Stage) downloadOne(ctx context.Context, companyID string, link docstore.Link) (docstore.Document, error) {
	file, err := s.fetcher.Download(ctx, link.URL, s.cfg.Download.MaxBytes)
	if err != nil {
		return docstore.Document{}, err
	}
	if err := s.validate(file); err != nil {
		return docstore.Document{}, err
	}

	year := link.Year
	if year == "" {
		year = docstore.YearUnknown
	}
	id := docstore.DocumentID(companyID, file.Body)
	filename := docstore.DocumentFilename(companyID, year, id, "pdf")
	path := filepath.Join(s.cfg.Paths.DownloadDir, textutil.SanitizeToken(companyID), textutil.SanitizeToken(year), filename)
	if _, err := fileutil.EnsureFile(path, file.Body, 0o644); err != nil {
		return docstore.Document{}, services.Wrap(services.ErrStageFailure, StageName, "write", path, err)
	}

	return s.docs.RecordDocument(ctx, docstore.Document{
		ID:          id,
		CompanyID:   companyID,
		FiscalYear:  year,
		Filename:    filename,
		SizeBytes:   int64(len(file.Body)),
		SourceURL:   link.URL,
		ContentType: file.ContentType,
		LocalPath:   path,
		CreatedAt:   s.now(),
	})
}

// validate accepts PDF content types, and generic binary types whose bytes
// start with the PDF header.
func (s *Stage) validate(file fetch.File) error {
	contentType := strings.ToLower(file.ContentType)
	isPDF := bytes.HasPrefix(file.Body, pdfMagic)
	switch {
	case strings.Contains(contentType, "pdf"):
	case strings.Contains(contentType, "octet-stream") || contentType == "":
		if !isPDF {
			return services.Wrap(services.ErrCorruptInput, StageName, "validate", "response is not a PDF", nil)
		}
	default:
		return services.Wrap(services.ErrCorruptInput, StageName, "validate",
			fmt.Sprintf("unexpected content type %q", file.ContentType), nil)
	}
	if size := int64(len(file.Body)); size < s.cfg.Download.MinBytes {
		return services.Wrap(services.ErrCorruptInput, StageName, "validate",
			fmt.Sprintf("only %s", humanize.Bytes(uint64(size))), nil)
	}
	return nil
}

// HealthCheck reports whether the download directory is configured.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if strings.TrimSpace(s.cfg.Paths.DownloadDir) == "" {
		return stage.Unhealthy(StageName, "paths.download_dir not set")
	}
	return stage.Healthy(StageName)
}
