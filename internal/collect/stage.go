package collect

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dealradar/internal/config"
	"dealradar/internal/docstore"
	"dealradar/internal/fetch"
	"dealradar/internal/logging"
	"dealradar/internal/services"
	"dealradar/internal/stage"
)

// StageName is the identifier recorded in task steps.
const StageName = "collect"

const maxLinkText = 200

// Stage gathers report links for the run's company.
type Stage struct {
	cfg     *config.Config
	fetcher *fetch.Client
}

// NewStage builds the collect stage.
func NewStage(cfg *config.Config, fetcher *fetch.Client) *Stage {
	return &Stage{cfg: cfg, fetcher: fetcher}
}

func (s *Stage) Name() string        { return StageName }
func (s *Stage) Label() string       { return "Collecting PDF links" }
func (s *Stage) DependsOn() []string { return []string{"discover"} }

type anchor struct {
	text string
	href string
}

// Execute fills run.Links.
func (s *Stage) Execute(ctx context.Context, run *stage.Run) (stage.Artifacts, error) {
	logger := run.Log()
	company := run.Company
	if company.IRURL == "" {
		return stage.Artifacts{}, services.Wrap(services.ErrInvalidInput, StageName, "collect",
			fmt.Sprintf("company %q has no IR url", company.ID), nil)
	}

	page, err := s.fetcher.Page(ctx, company.IRURL)
	if err != nil {
		return stage.Artifacts{}, stage.Fail(StageName, "fetch", "read IR page "+company.IRURL, err)
	}
	anchors := pageAnchors(page)

	for _, sub := range s.subPages(page) {
		if run.CancelRequested() {
			return stage.Artifacts{}, stage.ErrCancelled
		}
		subPage, err := s.fetcher.Page(ctx, sub)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stage.Artifacts{}, err
			}
			logger.Debug("sub page skipped", logging.String("url", sub), logging.Error(err))
			continue
		}
		found := pageAnchors(subPage)
		logger.Debug("sub page read", logging.String("url", sub), logging.Int("links", len(found)))
		anchors = append(anchors, found...)
	}

	links := s.selectLinks(company.ID, anchors)
	if len(links) == 0 {
		return stage.Artifacts{}, services.WithHint(
			services.Wrap(services.ErrStageFailure, StageName, "collect",
				fmt.Sprintf("no report PDFs found on %s", company.IRURL), nil),
			"submit again with --ir-url pointing at the reports page",
		)
	}
	run.Links = links
	logger.Info("report links collected",
		logging.Int("links", len(links)),
		logging.Int("anchors", len(anchors)),
		logging.String("top_year", links[0].Year),
	)
	return stage.Artifacts{Message: fmt.Sprintf("%d report links", len(links))}, nil
}

// subPages returns same-host, non-PDF links whose text or URL mention a sub
// page keyword, in page order, capped at collect.max_sub_pages.
func (s *Stage) subPages(page *fetch.Page) []string {
	limit := s.cfg.Collect.MaxSubPages
	if limit <= 0 {
		return nil
	}
	seen := map[string]struct{}{page.URL.String(): {}}
	var out []string
	for _, a := range pageAnchors(page) {
		parsed, err := url.Parse(a.href)
		if err != nil || parsed.Host != page.URL.Host || IsPDFURL(a.href) {
			continue
		}
		parsed.Fragment = ""
		full := parsed.String()
		if _, ok := seen[full]; ok {
			continue
		}
		if !containsAny(describe(a.text, full), s.cfg.Collect.SubPageKeywords) {
			continue
		}
		seen[full] = struct{}{}
		out = append(out, full)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (s *Stage) selectLinks(companyID string, anchors []anchor) []docstore.Link {
	seen := make(map[string]struct{})
	var candidates []candidate
	for _, a := range anchors {
		if _, ok := seen[a.href]; ok || !IsPDFURL(a.href) {
			continue
		}
		combined := describe(a.text, a.href)
		if !containsAny(combined, s.cfg.Collect.PriorityKeywords) {
			continue
		}
		seen[a.href] = struct{}{}
		candidates = append(candidates, candidate{
			link: docstore.Link{
				CompanyID: companyID,
				URL:       a.href,
				Text:      a.text,
				Year:      GuessYear(yearSource(a.text, a.href)),
				Annual:    !containsAny(combined, partialKeywords),
			},
			strong: containsAny(combined, annualKeywords),
			order:  len(candidates),
		})
	}
	rank(candidates)

	limit := s.cfg.Download.MaxDocuments
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	links := make([]docstore.Link, len(candidates))
	for i, c := range candidates {
		links[i] = c.link
	}
	return links
}

// pageAnchors resolves every <a href> on the page against its final URL.
func pageAnchors(page *fetch.Page) []anchor {
	var out []anchor
	page.Doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := page.URL.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if runes := []rune(text); len(runes) > maxLinkText {
			text = string(runes[:maxLinkText])
		}
		out = append(out, anchor{text: text, href: resolved.String()})
	})
	return out
}

// HealthCheck reports whether the stage is wired.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.fetcher == nil {
		return stage.Unhealthy(StageName, "http client not configured")
	}
	return stage.Healthy(StageName)
}
