package scoring

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"dealradar/internal/catalog"
	"dealradar/internal/docstore"
	"dealradar/internal/logging"
	"dealradar/internal/services"
)

// SnippetWindow is the number of bytes of context kept on each side of a
// match.
const SnippetWindow = 300

// Engine scans a company's stored text against the signal catalog.
type Engine struct {
	catalog *catalog.Catalog
	docs    docstore.Reader
	logger  *slog.Logger
	now     func() time.Time

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.NewComponentLogger(logger, "scoring")
	}
}

// NewEngine builds an engine over a validated catalog and a document reader.
func NewEngine(cat *catalog.Catalog, docs docstore.Reader, opts ...Option) *Engine {
	e := &Engine{
		catalog: cat,
		docs:    docs,
		logger:  logging.NewComponentLogger(nil, "scoring"),
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine scores against.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

type hitKey struct {
	category string
	document string
	pattern  string
	offset   int
}

type yearTally struct {
	hits       map[string]int
	suppressed bool
}

// Scan recomputes the ScoreResult of a company from its active documents.
// It fails with services.ErrNotFound when the company has no documents and
// with services.ErrCorruptInput when stored text is not valid UTF-8; no
// partial result is returned in either case.
func (e *Engine) Scan(ctx context.Context, companyID string) (*ScoreResult, error) {
	docs, err := e.docs.Documents(ctx, companyID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, services.Wrap(services.ErrNotFound, "scoring", "scan", fmt.Sprintf("company %q", companyID), err)
		}
		return nil, services.Wrap(services.ErrStageFailure, "scoring", "load documents", companyID, err)
	}
	if len(docs) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "scoring", "scan", fmt.Sprintf("no documents for company %q", companyID), nil)
	}

	policy := e.catalog.Policy
	result := &ScoreResult{
		CompanyID:      companyID,
		CatalogVersion: e.catalog.Version,
	}
	hits := make(map[string]int, len(e.catalog.Signals))
	years := make(map[string]*yearTally)
	suppressorHits := make(map[string]struct{})
	seen := make(map[hitKey]struct{})

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := e.docs.Chunks(ctx, doc.ID)
		if err != nil {
			return nil, services.Wrap(services.ErrStageFailure, "scoring", "load chunks", doc.ID, err)
		}
		for _, chunk := range chunks {
			if !utf8.ValidString(chunk.Content) {
				return nil, services.Wrap(services.ErrCorruptInput, "scoring", "scan",
					fmt.Sprintf("document %s chunk %d is not valid UTF-8", doc.ID, chunk.Position), nil)
			}
		}

		docHits := 0
		docSuppressed := false
		perMatcher := make(map[string]int)
		for _, sig := range e.catalog.Signals {
			for _, m := range sig.Matchers {
				for _, chunk := range chunks {
					for _, match := range m.FindAll(chunk.Content, 0) {
						key := hitKey{category: sig.ID, document: doc.ID, pattern: m.Pattern, offset: chunk.Offset + match.Start}
						if _, dup := seen[key]; dup {
							continue
						}
						if policy.MaxHitsPerKeyword > 0 && perMatcher[sig.ID+"\x00"+m.Pattern] >= policy.MaxHitsPerKeyword {
							continue
						}
						seen[key] = struct{}{}
						perMatcher[sig.ID+"\x00"+m.Pattern]++
						keyword := collapseSpace(chunk.Content[match.Start:match.End])
						result.Evidence = append(result.Evidence, Evidence{
							Category:   sig.ID,
							Keyword:    keyword,
							Pattern:    m.Pattern,
							Snippet:    Snippet(chunk.Content, match.Start, match.End, SnippetWindow),
							DocumentID: doc.ID,
							Filename:   doc.Filename,
							SourceURL:  doc.SourceURL,
							Year:       doc.FiscalYear,
							Offset:     key.offset,
						})
						hits[sig.ID]++
						docHits++
						if doc.FiscalYear != docstore.YearUnknown {
							tally := years[doc.FiscalYear]
							if tally == nil {
								tally = &yearTally{hits: make(map[string]int)}
								years[doc.FiscalYear] = tally
							}
							tally.hits[sig.ID]++
						}
					}
				}
			}
		}
		for _, m := range e.catalog.Suppressors.Matchers {
			for _, chunk := range chunks {
				if m.Contains(chunk.Content) {
					suppressorHits[m.Pattern] = struct{}{}
					docSuppressed = true
					break
				}
			}
		}
		if docSuppressed && doc.FiscalYear != docstore.YearUnknown {
			if tally := years[doc.FiscalYear]; tally != nil {
				tally.suppressed = true
			} else {
				years[doc.FiscalYear] = &yearTally{hits: make(map[string]int), suppressed: true}
			}
		}
		result.Documents = append(result.Documents, DocumentRef{
			ID:        doc.ID,
			Filename:  doc.Filename,
			Year:      doc.FiscalYear,
			SourceURL: doc.SourceURL,
			Hits:      docHits,
		})
	}

	sortEvidence(result.Evidence, docs, e.catalog)

	for _, sig := range e.catalog.Signals {
		counted := min(hits[sig.ID], policy.CapPerCategory)
		result.Categories = append(result.Categories, CategoryScore{
			Category:     sig.ID,
			Label:        sig.Label,
			Hits:         hits[sig.ID],
			Counted:      counted,
			Weight:       sig.Weight,
			Contribution: counted * sig.Weight,
		})
	}
	result.Raw = Raw(e.catalog, hits)
	if len(suppressorHits) > 0 {
		result.Penalty = e.catalog.Suppressors.Penalty
		for term := range suppressorHits {
			result.Suppressors = append(result.Suppressors, term)
		}
		sort.Strings(result.Suppressors)
	}
	result.Score = Normalize(policy, result.Raw, result.Penalty)

	for year, tally := range years {
		total := 0
		for _, n := range tally.hits {
			total += n
		}
		if total == 0 {
			continue
		}
		penalty := 0
		if tally.suppressed {
			penalty = e.catalog.Suppressors.Penalty
		}
		raw := Raw(e.catalog, tally.hits)
		result.Years = append(result.Years, YearScore{
			Year:    year,
			Hits:    total,
			Raw:     raw,
			Penalty: penalty,
			Score:   Normalize(policy, raw, penalty),
		})
	}
	sort.Slice(result.Years, func(i, j int) bool { return result.Years[i].Year < result.Years[j].Year })

	result.ComputedAt = e.now().UTC()
	result.RunID = e.newRunID(result.ComputedAt)

	e.logger.Debug("scan complete",
		logging.String(logging.FieldCompanyID, companyID),
		logging.Int("documents", len(docs)),
		logging.Int("evidence", len(result.Evidence)),
		logging.Int("raw", result.Raw),
		logging.Int("score", result.Score),
	)
	return result, nil
}

func (e *Engine) newRunID(at time.Time) string {
	e.idMu.Lock()
	defer e.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), e.entropy).String()
}

func sortEvidence(evidence []Evidence, docs []docstore.Document, cat *catalog.Catalog) {
	docOrder := make(map[string]int, len(docs))
	for i, d := range docs {
		docOrder[d.ID] = i
	}
	catOrder := make(map[string]int, len(cat.Signals))
	for i, s := range cat.Signals {
		catOrder[s.ID] = i
	}
	sort.SliceStable(evidence, func(i, j int) bool {
		a, b := evidence[i], evidence[j]
		if docOrder[a.DocumentID] != docOrder[b.DocumentID] {
			return docOrder[a.DocumentID] < docOrder[b.DocumentID]
		}
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		if catOrder[a.Category] != catOrder[b.Category] {
			return catOrder[a.Category] < catOrder[b.Category]
		}
		return a.Pattern < b.Pattern
	})
}
