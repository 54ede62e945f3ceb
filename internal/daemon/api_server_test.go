package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dealradar/internal/api"
	"dealradar/internal/logging"
	"dealradar/internal/ranking"
	"dealradar/internal/services"
)

type backendStub struct {
	api.Backend
	submitted api.SubmitRequest
	csv       string
	lastLimit int
}

func (b *backendStub) Submit(_ context.Context, req api.SubmitRequest) (api.TaskView, error) {
	if strings.TrimSpace(req.CompanyName) == "" {
		return api.TaskView{}, services.Wrap(services.ErrInvalidInput, "workflow", "submit", "company name is required", nil)
	}
	b.submitted = req
	return api.TaskView{ID: "t1", CompanyName: req.CompanyName, Status: "pending"}, nil
}

func (b *backendStub) SubmitCSV(_ context.Context, content string) (api.BatchResponse, error) {
	if strings.TrimSpace(content) == "" {
		return api.BatchResponse{}, services.Wrap(services.ErrInvalidInput, "workflow", "parse_csv", "no companies found", nil)
	}
	b.csv = content
	return api.BatchResponse{Tasks: []api.TaskView{{ID: "t1"}, {ID: "t2"}}, Count: 2}, nil
}

func (b *backendStub) Task(_ context.Context, id string) (api.TaskView, error) {
	if id != "t1" {
		return api.TaskView{}, services.Wrap(services.ErrNotFound, "queue", "lookup", "task "+id, nil)
	}
	return api.TaskView{ID: id, Status: "running"}, nil
}

func (b *backendStub) CancelTask(_ context.Context, id string) (api.TaskView, error) {
	return api.TaskView{ID: id, Status: "cancelling"}, nil
}

func (b *backendStub) Companies(_ context.Context, _, limit int) ([]ranking.Entry, error) {
	b.lastLimit = limit
	return []ranking.Entry{{Rank: 1, CompanyID: "acme", Name: "Acme", Score: 7}}, nil
}

func (b *backendStub) Evidence(_ context.Context, id string, limit int) (api.EvidenceResponse, error) {
	b.lastLimit = limit
	return api.EvidenceResponse{CompanyID: id, Limit: limit}, nil
}

func (b *backendStub) Report(context.Context, string) (api.ReportResponse, error) {
	return api.ReportResponse{}, services.WithHint(
		services.Wrap(services.ErrUpstreamUnavailable, "llm", "complete", "api key not configured", nil),
		"set llm.api_key",
	)
}

func (b *backendStub) Relevance(context.Context, string) (api.RelevanceResponse, error) {
	return api.RelevanceResponse{}, services.Wrap(services.ErrCorruptInput, "scoring", "scan", "invalid utf-8", nil)
}

func newTestHandler(token string, backend api.Backend) http.Handler {
	srv := newAPIServer("127.0.0.1:0", token, backend, logging.NewNop())
	return srv.server.Handler
}

func serve(t *testing.T, h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestSubmitReturnsAccepted(t *testing.T) {
	backend := &backendStub{}
	h := newTestHandler("", backend)

	w := serve(t, h, http.MethodPost, "/api/tasks", `{"company_name":"Acme","ir_url":"https://acme.example/ir"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.TaskResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Task.ID != "t1" || backend.submitted.IRURL != "https://acme.example/ir" {
		t.Fatalf("unexpected submit: %+v / %+v", resp, backend.submitted)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestSubmitCSVPassesRawBody(t *testing.T) {
	backend := &backendStub{}
	h := newTestHandler("", backend)

	body := "company_name;website\nAcme;acme.example\nGlobex;\n"
	w := serve(t, h, http.MethodPost, "/api/tasks/csv", body, "Content-Type", "text/csv")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || backend.csv != body {
		t.Fatalf("unexpected batch: %+v / %q", resp, backend.csv)
	}

	w = serve(t, h, http.MethodPost, "/api/tasks/csv", "")
	if w.Code != http.StatusBadRequest || decodeError(t, w).Kind != string(services.KindInvalidInput) {
		t.Fatalf("expected empty body to be rejected, got %d: %s", w.Code, w.Body.String())
	}

	w = serve(t, h, http.MethodPost, "/api/tasks/csv", strings.Repeat("a", maxRequestBody+1))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected oversized body to be rejected, got %d", w.Code)
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	h := newTestHandler("", &backendStub{})

	cases := []struct {
		method, target, body string
		status               int
		kind                 services.Kind
	}{
		{http.MethodPost, "/api/tasks", `{"company_name":"  "}`, http.StatusBadRequest, services.KindInvalidInput},
		{http.MethodPost, "/api/tasks", `{not json`, http.StatusBadRequest, services.KindInvalidInput},
		{http.MethodGet, "/api/tasks/missing", "", http.StatusNotFound, services.KindNotFound},
		{http.MethodGet, "/api/companies/acme/report", "", http.StatusServiceUnavailable, services.KindUpstreamUnavailable},
		{http.MethodGet, "/api/companies/acme/relevance", "", http.StatusUnprocessableEntity, services.KindCorruptInput},
		{http.MethodGet, "/api/companies?limit=abc", "", http.StatusBadRequest, services.KindInvalidInput},
	}
	for _, tc := range cases {
		w := serve(t, h, tc.method, tc.target, tc.body)
		if w.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.target, tc.status, w.Code)
		}
		if got := decodeError(t, w); got.Kind != string(tc.kind) || got.Error == "" {
			t.Fatalf("%s %s: unexpected body %+v", tc.method, tc.target, got)
		}
	}

	w := serve(t, h, http.MethodGet, "/api/companies/acme/report", "")
	if hint := decodeError(t, w).Hint; hint != "set llm.api_key" {
		t.Fatalf("hint not forwarded: %q", hint)
	}
}

func TestRoutesPassPathAndQuery(t *testing.T) {
	backend := &backendStub{}
	h := newTestHandler("", backend)

	w := serve(t, h, http.MethodPost, "/api/tasks/t9/cancel", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"t9"`) {
		t.Fatalf("unexpected cancel response %d %s", w.Code, w.Body.String())
	}

	w = serve(t, h, http.MethodGet, "/api/companies/acme/evidence?limit=3", "")
	if w.Code != http.StatusOK || backend.lastLimit != 3 {
		t.Fatalf("limit not forwarded: %d %d", w.Code, backend.lastLimit)
	}

	w = serve(t, h, http.MethodGet, "/api/companies", "")
	var list api.CompanyListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list.Companies) != 1 {
		t.Fatalf("unexpected companies body %s (%v)", w.Body.String(), err)
	}

	w = serve(t, h, http.MethodDelete, "/api/tasks/t1", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestBearerTokenRequired(t *testing.T) {
	h := newTestHandler("secret", &backendStub{})

	w := serve(t, h, http.MethodGet, "/api/tasks/t1", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	w = serve(t, h, http.MethodGet, "/api/tasks/t1", "", "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	w = serve(t, h, http.MethodGet, "/api/tasks/t1", "", "Authorization", "Bearer secret")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}
