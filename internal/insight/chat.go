package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dealradar/internal/llm"
	"dealradar/internal/services"
	"dealradar/internal/textutil"
)

const chatSystemPrompt = "You are an M&A analyst. Quote ONLY the passages supplied. Back every statement with [company, year, file]. Do NOT make anything up."

// NoPassagesAnswer is returned when the index holds nothing related to the
// question.
const NoPassagesAnswer = "No indexed report passages match the question."

// Answer is a model answer with the passages it was given.
type Answer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
}

// Chat answers a question from the eight best matching indexed passages. A
// non-empty companyID restricts retrieval to that company.
func (s *Service) Chat(ctx context.Context, question, companyID string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, services.Wrap(services.ErrInvalidInput, "insight", "chat", "message is required", nil)
	}
	out := Answer{Question: question}
	if s.search == nil {
		return Answer{}, services.Wrap(services.ErrUpstreamUnavailable, "insight", "chat", "search index not configured", nil)
	}
	hits, err := s.search.Search(ctx, question, strings.TrimSpace(companyID), chatPassages)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Answer{}, err
		}
		return Answer{}, services.Wrap(services.ErrUpstreamUnavailable, "insight", "chat", "search index unavailable", err)
	}
	if len(hits) == 0 {
		out.Answer = NoPassagesAnswer
		return out, nil
	}
	if err := s.modelReady("chat"); err != nil {
		return Answer{}, err
	}

	names := make(map[string]string)
	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		name, ok := names[hit.CompanyID]
		if !ok {
			name = s.companyName(ctx, hit.CompanyID)
			names[hit.CompanyID] = name
		}
		parts = append(parts, fmt.Sprintf("[%s, %s, %s]: %s", name, hit.FiscalYear, hit.Filename, textutil.Truncate(hit.Content, 600)))
		out.Sources = append(out.Sources, Source{
			CompanyID:  hit.CompanyID,
			Company:    name,
			DocumentID: hit.DocumentID,
			Filename:   hit.Filename,
			Year:       hit.FiscalYear,
			Excerpt:    textutil.Truncate(hit.Content, 200),
		})
	}
	prompt := "Original passages:\n\n" + strings.Join(parts, "\n\n") +
		"\n\nQuestion: " + question + "\n\nAnswer precisely and cite your sources."
	text, err := s.model.Complete(ctx, llm.System(chatSystemPrompt), llm.User(prompt))
	if err != nil {
		return Answer{}, s.upstream("chat", err)
	}
	out.Answer = strings.TrimSpace(text)
	return out, nil
}
