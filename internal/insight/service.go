package insight

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"dealradar/internal/catalog"
	"dealradar/internal/docstore"
	"dealradar/internal/llm"
	"dealradar/internal/logging"
	"dealradar/internal/scoring"
	"dealradar/internal/services"
	"dealradar/internal/store"
)

// Completer is the chat model surface used by the service.
type Completer interface {
	Complete(ctx context.Context, messages ...llm.Message) (string, error)
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ResultReader loads the stored score result of a company.
type ResultReader interface {
	Result(ctx context.Context, companyID string) (*scoring.ScoreResult, error)
}

// Searcher runs full-text queries over indexed chunks.
type Searcher interface {
	Search(ctx context.Context, text, companyID string, limit int) ([]store.SearchHit, error)
}

const (
	relevancePerCategory = 4
	reportPerCategory    = 3
	chatPassages         = 8
	// Snippets at or above this similarity count as the same quote.
	duplicateThreshold = 0.8
)

// Service answers relevance, report and chat requests.
type Service struct {
	model   Completer
	catalog *catalog.Catalog
	docs    docstore.Reader
	results ResultReader
	search  Searcher
	logger  *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger used for model failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires the service. A nil model makes every method fail with
// services.ErrUpstreamUnavailable.
func NewService(model Completer, cat *catalog.Catalog, docs docstore.Reader, results ResultReader, search Searcher, opts ...Option) *Service {
	s := &Service{
		model:   model,
		catalog: cat,
		docs:    docs,
		results: results,
		search:  search,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) label(category string) string {
	if s.catalog != nil {
		if signal, ok := s.catalog.Signal(category); ok && signal.Label != "" {
			return signal.Label
		}
	}
	return category
}

// categories lists the categories of result in catalog order, followed by
// any the catalog no longer knows.
func (s *Service) categories(grouped map[string][]scoring.Evidence) []string {
	var order []string
	seen := make(map[string]struct{})
	if s.catalog != nil {
		for _, id := range s.catalog.IDs() {
			if len(grouped[id]) > 0 {
				order = append(order, id)
				seen[id] = struct{}{}
			}
		}
	}
	var rest []string
	for id, items := range grouped {
		if _, ok := seen[id]; !ok && len(items) > 0 {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func (s *Service) modelReady(op string) error {
	if s.model == nil {
		return services.WithHint(
			services.Wrap(services.ErrUpstreamUnavailable, "insight", op, "language model not configured", nil),
			"set llm.api_key or DEALRADAR_LLM_API_KEY",
		)
	}
	return nil
}

// upstream marks model failures as upstream outages unless they already
// carry a marker or come from the caller's context.
func (s *Service) upstream(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Warn("language model request failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.EventType("insight_upstream_failed"),
	)
	if errors.Is(err, services.ErrUpstreamUnavailable) {
		return err
	}
	return services.Wrap(services.ErrUpstreamUnavailable, "insight", op, "language model request failed", err)
}
