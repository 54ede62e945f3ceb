package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"dealradar/internal/config"
	"dealradar/internal/services"
)

const maxPageBytes = 8 << 20

// ErrTooLarge is returned when a response body exceeds the caller's limit.
var ErrTooLarge = errors.New("response exceeds size limit")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: http %d", e.URL, e.Code)
}

// Client issues rate-limited GET requests with the crawler's identity.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLimiter overrides the request limiter.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// New builds a client from the http config section.
func New(cfg *config.Config, opts ...Option) *Client {
	limit := rate.Inf
	burst := 1
	timeout := 30 * time.Second
	userAgent := ""
	if cfg != nil {
		if cfg.HTTP.RequestsPerSecond > 0 {
			limit = rate.Limit(cfg.HTTP.RequestsPerSecond)
		}
		if cfg.HTTP.Burst > 0 {
			burst = cfg.HTTP.Burst
		}
		if d := cfg.HTTPTimeout(); d > 0 {
			timeout = d
		}
		userAgent = cfg.HTTP.UserAgent
	}
	client := &Client{
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: strings.TrimSpace(userAgent),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Page is a parsed HTML response. URL is the final address after
// redirects.
type Page struct {
	URL *url.URL
	Doc *goquery.Document
}

// Text returns the page's visible body text, lowercased.
func (p *Page) Text() string {
	if p == nil || p.Doc == nil {
		return ""
	}
	body := p.Doc.Find("body")
	if body.Length() == 0 {
		return strings.ToLower(p.Doc.Text())
	}
	body.Find("script, style, noscript").Remove()
	return strings.ToLower(body.Text())
}

// Page fetches and parses an HTML page.
func (c *Client) Page(ctx context.Context, rawURL string) (*Page, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "fetch", "page",
			fmt.Sprintf("parse %s", rawURL), err)
	}
	return &Page{URL: resp.Request.URL, Doc: doc}, nil
}

// File is a downloaded response body.
type File struct {
	URL         string
	ContentType string
	Body        []byte
}

// Download fetches rawURL and reads at most maxBytes of its body. Larger
// bodies fail with ErrTooLarge, checked against Content-Length first.
func (c *Client) Download(ctx context.Context, rawURL string, maxBytes int64) (File, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return File{}, err
	}
	defer resp.Body.Close()

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return File{}, fmt.Errorf("GET %s: %d bytes: %w", rawURL, resp.ContentLength, ErrTooLarge)
	}
	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return File{}, services.Wrap(services.ErrUpstreamUnavailable, "fetch", "download",
			fmt.Sprintf("read %s", rawURL), err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return File{}, fmt.Errorf("GET %s: %w", rawURL, ErrTooLarge)
	}
	return File{
		URL:         resp.Request.URL.String(),
		ContentType: MediaType(resp.Header.Get("Content-Type")),
		Body:        body,
	}, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, "fetch", "get", fmt.Sprintf("bad url %q", rawURL), err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "fetch", "get", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	return resp, nil
}

// MediaType strips parameters from a Content-Type header value.
func MediaType(header string) string {
	if header == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0]))
	}
	return mediaType
}
