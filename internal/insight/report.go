package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dealradar/internal/docstore"
	"dealradar/internal/llm"
	"dealradar/internal/logging"
	"dealradar/internal/textutil"
)

const reportSystemPrompt = "You are an M&A analyst. You write reports based only on the original quotes supplied. You do NOT make anything up. Every statement cites its exact source as [file, year]."

const reportUserPrompt = `Write a structured analysis of distress signals at %s.

RULES:
- Quote ONLY the passages below. Invent NOTHING.
- Every statement MUST cite [file, year].
- Structure: 1) Executive summary 2) Identified signals 3) Assessment
- When something is unclear, say so.

ORIGINAL PASSAGES:

%s`

// NoSignalsReport is the report text of a company without evidence.
const NoSignalsReport = "No distress signals found."

// Source is one quote a report or answer rests on.
type Source struct {
	CompanyID  string `json:"company_id,omitempty"`
	Company    string `json:"company,omitempty"`
	Label      string `json:"label,omitempty"`
	Keyword    string `json:"keyword,omitempty"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Year       string `json:"year"`
	SourceURL  string `json:"source_url,omitempty"`
	Excerpt    string `json:"excerpt"`
}

// Report is a model-written analysis grounded on stored evidence.
type Report struct {
	CompanyID string   `json:"company_id"`
	Company   string   `json:"company"`
	Report    string   `json:"report"`
	Sources   []Source `json:"sources"`
}

// Report writes an analyst report from up to three quotes per category.
func (s *Service) Report(ctx context.Context, companyID string) (Report, error) {
	result, err := s.results.Result(ctx, companyID)
	if err != nil {
		return Report{}, err
	}
	out := Report{CompanyID: companyID, Company: s.companyName(ctx, companyID)}

	var quotes []string
	for _, item := range s.pickEvidence(result, reportPerCategory) {
		quotes = append(quotes, fmt.Sprintf("[%s] Keyword: %q | Source: %s (%s)\nQuote: %q",
			item.Label, item.Keyword, item.Filename, item.Year, item.Snippet))
		out.Sources = append(out.Sources, Source{
			Label:      item.Label,
			Keyword:    item.Keyword,
			DocumentID: item.DocumentID,
			Filename:   item.Filename,
			Year:       item.Year,
			SourceURL:  item.SourceURL,
			Excerpt:    textutil.Truncate(item.Snippet, 250),
		})
	}
	if len(quotes) == 0 {
		out.Report = NoSignalsReport
		return out, nil
	}
	if err := s.modelReady("report"); err != nil {
		return Report{}, err
	}
	text, err := s.model.Complete(ctx,
		llm.System(reportSystemPrompt),
		llm.User(fmt.Sprintf(reportUserPrompt, out.Company, strings.Join(quotes, "\n\n"))),
	)
	if err != nil {
		return Report{}, s.upstream("report", err)
	}
	out.Report = strings.TrimSpace(text)
	return out, nil
}

func (s *Service) companyName(ctx context.Context, companyID string) string {
	if s.docs == nil {
		return companyID
	}
	company, err := s.docs.Company(ctx, companyID)
	if err != nil || company.Name == "" {
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			s.logger.Debug("company lookup failed",
				logging.String("company_id", companyID),
				logging.Error(err),
			)
		}
		return companyID
	}
	return company.Name
}
