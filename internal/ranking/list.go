package ranking

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"dealradar/internal/docstore"
	"dealradar/internal/scoring"
)

// ResultReader lists stored score results.
type ResultReader interface {
	Results(ctx context.Context, minScore, limit int) ([]*scoring.ScoreResult, error)
}

// Entry is one row of the ranked company list.
type Entry struct {
	Rank        int       `json:"rank"`
	CompanyID   string    `json:"company_id"`
	Name        string    `json:"name"`
	Country     string    `json:"country,omitempty"`
	Score       int       `json:"score"`
	Raw         int       `json:"raw"`
	Penalty     int       `json:"penalty,omitempty"`
	Hits        int       `json:"hits"`
	Documents   int       `json:"documents"`
	LatestYear  string    `json:"latest_year,omitempty"`
	TopCategory string    `json:"top_category,omitempty"`
	ComputedAt  time.Time `json:"computed_at"`
}

// Options filter the ranked list.
type Options struct {
	MinScore int
	Limit    int
}

// List joins stored results with company records, ordered by score
// descending, then company name. Results whose company record is missing
// fall back to the company id as name.
func List(ctx context.Context, companies docstore.Reader, results ResultReader, opts Options) ([]Entry, error) {
	stored, err := results.Results(ctx, opts.MinScore, 0)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(stored))
	for _, result := range stored {
		entry := entryFor(result)
		company, err := companies.Company(ctx, result.CompanyID)
		switch {
		case err == nil:
			entry.Name = company.Name
			entry.Country = company.Country
		case errors.Is(err, docstore.ErrNotFound):
			entry.Name = result.CompanyID
		default:
			return nil, err
		}
		if entry.Name == "" {
			entry.Name = result.CompanyID
		}
		entries = append(entries, entry)
	}

	names := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if c := names.CompareString(a.Name, b.Name); c != 0 {
			return c < 0
		}
		return a.CompanyID < b.CompanyID
	})
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func entryFor(result *scoring.ScoreResult) Entry {
	entry := Entry{
		CompanyID:  result.CompanyID,
		Score:      result.Score,
		Raw:        result.Raw,
		Penalty:    result.Penalty,
		Hits:       result.TotalHits(),
		Documents:  len(result.Documents),
		LatestYear: result.LatestYear(),
		ComputedAt: result.ComputedAt,
	}
	best := 0
	for _, category := range result.Categories {
		if category.Contribution > best {
			best = category.Contribution
			entry.TopCategory = category.Category
		}
	}
	return entry
}
