package insight

import (
	"context"
	"fmt"
	"strings"

	"dealradar/internal/llm"
	"dealradar/internal/scoring"
	"dealradar/internal/services"
	"dealradar/internal/textutil"
)

// Each false positive lowers the adjusted score by one, at most by this.
const maxFalsePositivePenalty = 4

const relevanceSystemPrompt = `You are an M&A analyst. For every signal decide whether it is a REAL distress signal (an actual sale of business units, real losses, a real restructuring) or a FALSE POSITIVE (a purely accounting mention, a reference to accounting standards, routine reporting without any stress).
Respond with JSON only: {"signals": [{"id": "...", "relevant": true or false, "reason": "short justification"}]}`

// Verdict is the model's judgement of one evidence item.
type Verdict struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Label      string `json:"label"`
	Keyword    string `json:"keyword"`
	Snippet    string `json:"snippet"`
	Year       string `json:"year"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
	Relevant   bool   `json:"relevant"`
	Reason     string `json:"reason,omitempty"`
}

// Relevance is a model-refined view of a company's score. The stored score
// result is left untouched.
type Relevance struct {
	CompanyID      string    `json:"company_id"`
	OriginalScore  int       `json:"original_score"`
	AdjustedScore  int       `json:"adjusted_score"`
	Total          int       `json:"total_signals"`
	Real           int       `json:"real_signals"`
	FalsePositives int       `json:"false_positives"`
	Signals        []Verdict `json:"signals"`
}

type modelVerdict struct {
	ID       string `json:"id"`
	Relevant *bool  `json:"relevant"`
	Reason   string `json:"reason"`
}

// Relevance asks the model which evidence items are genuine signals and
// lowers the score by the number of false positives, capped.
func (s *Service) Relevance(ctx context.Context, companyID string) (Relevance, error) {
	result, err := s.results.Result(ctx, companyID)
	if err != nil {
		return Relevance{}, err
	}
	out := Relevance{
		CompanyID:     companyID,
		OriginalScore: result.Score,
		AdjustedScore: result.Score,
	}
	items := s.pickEvidence(result, relevancePerCategory)
	if len(items) == 0 {
		return out, nil
	}
	if err := s.modelReady("relevance"); err != nil {
		return Relevance{}, err
	}

	var prompt strings.Builder
	prompt.WriteString("Signals:\n\n")
	for _, item := range items {
		fmt.Fprintf(&prompt, "[%s] Type: %s | Keyword: %q | Quote: %q\n", item.ID, item.Label, item.Keyword, item.Snippet)
	}
	content, err := s.model.CompleteJSON(ctx, relevanceSystemPrompt, prompt.String())
	if err != nil {
		return Relevance{}, s.upstream("relevance", err)
	}
	verdicts, err := decodeVerdicts(content)
	if err != nil {
		return Relevance{}, s.upstream("relevance", err)
	}

	byID := make(map[string]modelVerdict, len(verdicts))
	for _, v := range verdicts {
		byID[strings.TrimSpace(v.ID)] = v
	}
	for _, item := range items {
		item.Relevant = true
		if v, ok := byID[item.ID]; ok {
			if v.Relevant != nil {
				item.Relevant = *v.Relevant
			}
			item.Reason = strings.TrimSpace(v.Reason)
		}
		if item.Relevant {
			out.Real++
		} else {
			out.FalsePositives++
		}
		out.Signals = append(out.Signals, item)
	}
	out.Total = len(out.Signals)
	out.AdjustedScore = AdjustScore(result.Score, out.FalsePositives)
	return out, nil
}

// AdjustScore lowers score by the false positive count, at most by four,
// never below zero.
func AdjustScore(score, falsePositives int) int {
	penalty := min(falsePositives, maxFalsePositivePenalty)
	return max(0, score-penalty)
}

// pickEvidence selects up to perCategory distinct quotes per category.
func (s *Service) pickEvidence(result *scoring.ScoreResult, perCategory int) []Verdict {
	grouped := scoring.EvidenceByCategory(result, 0)
	var items []Verdict
	for _, category := range s.categories(grouped) {
		evidence := grouped[category]
		snippets := make([]string, len(evidence))
		for i, ev := range evidence {
			snippets[i] = ev.Snippet
		}
		for n, i := range textutil.Diverse(snippets, perCategory, duplicateThreshold) {
			ev := evidence[i]
			items = append(items, Verdict{
				ID:         fmt.Sprintf("%s_%d", category, n),
				Category:   category,
				Label:      s.label(category),
				Keyword:    ev.Keyword,
				Snippet:    textutil.Truncate(ev.Snippet, 400),
				Year:       ev.Year,
				DocumentID: ev.DocumentID,
				Filename:   ev.Filename,
				SourceURL:  ev.SourceURL,
			})
		}
	}
	return items
}

func decodeVerdicts(content string) ([]modelVerdict, error) {
	var wrapped struct {
		Signals []modelVerdict `json:"signals"`
	}
	if err := llm.DecodeJSON(content, &wrapped); err == nil {
		return wrapped.Signals, nil
	}
	var bare []modelVerdict
	if err := llm.DecodeJSON(content, &bare); err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "insight", "relevance", "unparseable verdicts", err)
	}
	return bare, nil
}
