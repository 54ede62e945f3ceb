package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dealradar/internal/config"
	"dealradar/internal/ranking"
	"dealradar/internal/services"
)

// Client talks to a running daemon over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ Backend = (*Client)(nil)

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// NewClient targets baseURL, such as http://127.0.0.1:7488. A bare host:port
// is treated as http.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		baseURL: baseURL,
		// Report and chat wait on the language model.
		http: &http.Client{Timeout: 3 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig targets the daemon configured in cfg.
func NewClientFromConfig(cfg *config.Config, opts ...ClientOption) *Client {
	return NewClient(cfg.Paths.APIBind, append([]ClientOption{WithToken(cfg.Paths.APIToken)}, opts...)...)
}

func (c *Client) Submit(ctx context.Context, req SubmitRequest) (TaskView, error) {
	var resp TaskResponse
	err := c.do(ctx, http.MethodPost, "/api/tasks", nil, req, &resp)
	return resp.Task, err
}

func (c *Client) SubmitCSV(ctx context.Context, content string) (BatchResponse, error) {
	var resp BatchResponse
	err := c.do(ctx, http.MethodPost, "/api/tasks/csv", nil, rawBody{contentType: "text/csv", data: []byte(content)}, &resp)
	return resp, err
}

func (c *Client) Tasks(ctx context.Context, limit int) ([]TaskView, error) {
	var resp TaskListResponse
	err := c.do(ctx, http.MethodGet, "/api/tasks", limitQuery(limit), nil, &resp)
	return resp.Tasks, err
}

func (c *Client) Task(ctx context.Context, id string) (TaskView, error) {
	var resp TaskResponse
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, nil, &resp)
	return resp.Task, err
}

func (c *Client) CancelTask(ctx context.Context, id string) (TaskView, error) {
	var resp TaskResponse
	err := c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/cancel", nil, nil, &resp)
	return resp.Task, err
}

func (c *Client) Companies(ctx context.Context, minScore, limit int) ([]ranking.Entry, error) {
	query := limitQuery(limit)
	if minScore > 0 {
		query.Set("min_score", strconv.Itoa(minScore))
	}
	var resp CompanyListResponse
	err := c.do(ctx, http.MethodGet, "/api/companies", query, nil, &resp)
	return resp.Companies, err
}

func (c *Client) Company(ctx context.Context, id string) (CompanyDetail, error) {
	var resp CompanyDetail
	err := c.do(ctx, http.MethodGet, "/api/companies/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) Evidence(ctx context.Context, id string, limit int) (EvidenceResponse, error) {
	var resp EvidenceResponse
	err := c.do(ctx, http.MethodGet, "/api/companies/"+url.PathEscape(id)+"/evidence", limitQuery(limit), nil, &resp)
	return resp, err
}

func (c *Client) Relevance(ctx context.Context, id string) (RelevanceResponse, error) {
	var resp RelevanceResponse
	err := c.do(ctx, http.MethodGet, "/api/companies/"+url.PathEscape(id)+"/relevance", nil, nil, &resp)
	return resp, err
}

func (c *Client) Report(ctx context.Context, id string) (ReportResponse, error) {
	var resp ReportResponse
	err := c.do(ctx, http.MethodGet, "/api/companies/"+url.PathEscape(id)+"/report", nil, nil, &resp)
	return resp, err
}

func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var resp ChatResponse
	err := c.do(ctx, http.MethodPost, "/api/chat", nil, req, &resp)
	return resp, err
}

func (c *Client) Stats(ctx context.Context) (StatsResponse, error) {
	var resp StatsResponse
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, nil, &resp)
	return resp, err
}

func (c *Client) Status(ctx context.Context) (WorkflowStatus, error) {
	var resp WorkflowStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &resp)
	return resp, err
}

// rawBody is sent as is instead of being JSON encoded.
type rawBody struct {
	contentType string
	data        []byte
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case rawBody:
		reader, contentType = bytes.NewReader(b.data), b.contentType
	default:
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader, contentType = bytes.NewReader(payload), "application/json"
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return services.Wrap(services.ErrInvalidInput, "api-client", "request", target, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return services.WithHint(
			services.Wrap(services.ErrUpstreamUnavailable, "api-client", "request", "daemon unreachable at "+c.baseURL, err),
			"start the daemon with `dealradar serve`",
		)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return services.Wrap(services.ErrUpstreamUnavailable, "api-client", "read", "read response", err)
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeError rebuilds a classified error from an error body.
func decodeError(status int, data []byte) error {
	var body ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
		if body.Error == "" {
			body.Error = http.StatusText(status)
		}
	}
	kind := services.Kind(body.Kind)
	if kind == "" {
		kind = kindForStatus(status)
	}
	marker := services.MarkerFor(kind)
	var err error
	if marker == nil {
		err = fmt.Errorf("daemon: %s (HTTP %d)", body.Error, status)
	} else {
		message := strings.TrimPrefix(body.Error, marker.Error()+": ")
		err = fmt.Errorf("%w: %s", marker, message)
	}
	return services.WithHint(err, body.Hint)
}

func kindForStatus(status int) services.Kind {
	switch status {
	case http.StatusBadRequest:
		return services.KindInvalidInput
	case http.StatusUnauthorized:
		return services.KindConfiguration
	case http.StatusNotFound:
		return services.KindNotFound
	case http.StatusUnprocessableEntity:
		return services.KindCorruptInput
	case http.StatusServiceUnavailable:
		return services.KindUpstreamUnavailable
	default:
		return services.KindInternal
	}
}

func limitQuery(limit int) url.Values {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return query
}
