package scoring

import (
	"sort"
	"time"
)

// Evidence is one matched occurrence of a signal in a document.
type Evidence struct {
	Category   string `json:"category"`
	Keyword    string `json:"keyword"`
	Pattern    string `json:"pattern"`
	Snippet    string `json:"snippet"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	SourceURL  string `json:"source_url,omitempty"`
	Year       string `json:"year"`
	Offset     int    `json:"offset"`
}

// CategoryScore is the company-level breakdown for one signal category.
// Hits always equals the number of Evidence records of the category.
type CategoryScore struct {
	Category     string `json:"category"`
	Label        string `json:"label"`
	Hits         int    `json:"hits"`
	Counted      int    `json:"counted"`
	Weight       int    `json:"weight"`
	Contribution int    `json:"contribution"`
}

// YearScore is the score restricted to documents of one fiscal year.
type YearScore struct {
	Year    string `json:"year"`
	Hits    int    `json:"hits"`
	Raw     int    `json:"raw"`
	Penalty int    `json:"penalty"`
	Score   int    `json:"score"`
}

// DocumentRef lists a document that took part in a scan.
type DocumentRef struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Year      string `json:"year"`
	SourceURL string `json:"source_url,omitempty"`
	Hits      int    `json:"hits"`
}

// ScoreResult is the complete, explainable outcome of one scan.
type ScoreResult struct {
	CompanyID      string          `json:"company_id"`
	RunID          string          `json:"run_id"`
	CatalogVersion string          `json:"catalog_version"`
	ComputedAt     time.Time       `json:"computed_at"`
	Raw            int             `json:"raw"`
	Penalty        int             `json:"penalty"`
	Suppressors    []string        `json:"suppressors,omitempty"`
	Score          int             `json:"score"`
	Categories     []CategoryScore `json:"categories"`
	Years          []YearScore     `json:"years"`
	Documents      []DocumentRef   `json:"documents"`
	Evidence       []Evidence      `json:"evidence"`
}

// TotalHits sums hits across categories.
func (r *ScoreResult) TotalHits() int {
	total := 0
	for _, c := range r.Categories {
		total += c.Hits
	}
	return total
}

// LatestYear returns the newest fiscal year in the trend, or "" when the
// trend is empty.
func (r *ScoreResult) LatestYear() string {
	if len(r.Years) == 0 {
		return ""
	}
	return r.Years[len(r.Years)-1].Year
}

// EvidenceByCategory groups evidence by category. Each group keeps scan order
// (newest year first, then document, then offset). A positive limit bounds
// each group.
func EvidenceByCategory(r *ScoreResult, limit int) map[string][]Evidence {
	out := make(map[string][]Evidence)
	if r == nil {
		return out
	}
	for _, ev := range r.Evidence {
		group := out[ev.Category]
		if limit > 0 && len(group) >= limit {
			continue
		}
		out[ev.Category] = append(group, ev)
	}
	return out
}

// Rank orders results by score descending, then raw score, then company id.
func Rank(results []*ScoreResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Raw != b.Raw {
			return a.Raw > b.Raw
		}
		return a.CompanyID < b.CompanyID
	})
}
