package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"dealradar/internal/config"
	"dealradar/internal/docstore"
	"dealradar/internal/fetch"
	"dealradar/internal/logging"
	"dealradar/internal/services"
	"dealradar/internal/stage"
)

// StageName is the identifier recorded in task steps.
const StageName = "discover"

// Stage resolves the company and its IR page.
type Stage struct {
	cfg        *config.Config
	fetcher    *fetch.Client
	docs       docstore.Writer
	recognizer Recognizer
}

// NewStage builds the discover stage. recognizer may be nil.
func NewStage(cfg *config.Config, fetcher *fetch.Client, docs docstore.Writer, recognizer Recognizer) *Stage {
	return &Stage{cfg: cfg, fetcher: fetcher, docs: docs, recognizer: recognizer}
}

func (s *Stage) Name() string  { return StageName }
func (s *Stage) Label() string { return "Discovering IR URLs" }

// Execute resolves the company and stores it.
func (s *Stage) Execute(ctx context.Context, run *stage.Run) (stage.Artifacts, error) {
	logger := run.Log()
	req := run.Request
	company := docstore.Company{
		ID:      docstore.CompanySlug(req.CompanyName),
		Name:    strings.TrimSpace(req.CompanyName),
		Country: req.Country,
		Website: req.Website,
		IRURL:   req.IRURL,
	}
	if company.ID == "" {
		return stage.Artifacts{}, services.Wrap(services.ErrInvalidInput, StageName, "slug",
			fmt.Sprintf("company name %q has no letters or digits", req.CompanyName), nil)
	}

	if company.Website == "" && company.IRURL == "" {
		if s.recognizer == nil {
			return stage.Artifacts{}, services.WithHint(
				services.Wrap(services.ErrInvalidInput, StageName, "recognize",
					fmt.Sprintf("no website known for %q", company.Name), nil),
				"submit with a website or IR url, or configure llm.api_key",
			)
		}
		recognized, err := s.recognizer.Recognize(ctx, company.Name)
		if err != nil {
			return stage.Artifacts{}, stage.Fail(StageName, "recognize", "company recognition failed", err)
		}
		company.Website = recognized.Website
		if company.IRURL == "" {
			company.IRURL = recognized.IRURL
		}
		if company.Country == "" {
			company.Country = recognized.Country
		}
		logger.Info("company recognized",
			logging.String("website", company.Website),
			logging.String("ir_url", company.IRURL),
			logging.String("official_name", recognized.Name),
		)
	}

	if company.IRURL == "" {
		irURL, err := s.findIRPage(ctx, run, company.Website)
		if err != nil {
			return stage.Artifacts{}, err
		}
		if irURL == "" {
			logger.Warn("no investor relations page found; using website",
				logging.String("website", company.Website),
				logging.EventType("ir_page_miss"),
			)
			irURL = company.Website
		}
		company.IRURL = irURL
	}
	if company.Website == "" {
		company.Website = siteRoot(company.IRURL)
	}

	if err := s.docs.UpsertCompany(ctx, company); err != nil {
		return stage.Artifacts{}, stage.Fail(StageName, "upsert", "store company", err)
	}
	run.Company = company
	return stage.Artifacts{
		Companies: []string{company.ID},
		Message:   "IR page " + company.IRURL,
	}, nil
}

// findIRPage returns the first IR path under website whose page text contains an
// IR keyword, or "" when none does.
func (s *Stage) findIRPage(ctx context.Context, run *stage.Run, website string) (string, error) {
	base := strings.TrimRight(website, "/")
	logger := run.Log()
	for _, path := range s.cfg.Discovery.IRPaths {
		if run.CancelRequested() {
			return "", stage.ErrCancelled
		}
		candidate := base + "/" + strings.TrimLeft(path, "/")
		page, err := s.fetcher.Page(ctx, candidate)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", err
			}
			logger.Debug("ir candidate failed", logging.String("url", candidate), logging.Error(err))
			continue
		}
		if containsAny(page.Text(), s.cfg.Discovery.IRKeywords) {
			logger.Info("investor relations page found", logging.String("url", page.URL.String()))
			return page.URL.String(), nil
		}
	}
	return "", nil
}

// HealthCheck reports whether websites can be discovered without hints.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.fetcher == nil || s.docs == nil {
		return stage.Unhealthy(StageName, "stage not wired")
	}
	if s.recognizer == nil {
		return stage.Degraded(StageName, "company recognition disabled; submissions need a website")
	}
	return stage.Healthy(StageName)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if keyword = strings.ToLower(strings.TrimSpace(keyword)); keyword != "" && strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func siteRoot(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
