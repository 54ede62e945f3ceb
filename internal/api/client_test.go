package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dealradar/internal/services"
)

func TestClientSendsTokenAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		if r.Method != http.MethodPost || r.URL.Path != "/api/tasks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TaskResponse{Task: TaskView{ID: "t1", CompanyName: req.CompanyName, Status: "pending"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithToken("secret"))
	view, err := client.Submit(context.Background(), SubmitRequest{CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if view.ID != "t1" || view.CompanyName != "Acme" {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestClientSubmitCSVSendsRawBody(t *testing.T) {
	const content = "company_name\nAcme\nGlobex\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tasks/csv" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "text/csv" {
			t.Errorf("unexpected content type %q", got)
		}
		data, _ := io.ReadAll(r.Body)
		if string(data) != content {
			t.Errorf("body was re-encoded: %q", data)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(BatchResponse{
			Tasks: []TaskView{{ID: "t1", CompanyName: "Acme"}, {ID: "t2", CompanyName: "Globex"}},
			Count: 2,
		})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).SubmitCSV(context.Background(), content)
	if err != nil {
		t.Fatalf("SubmitCSV: %v", err)
	}
	if resp.Count != 2 || resp.Tasks[1].ID != "t2" {
		t.Fatalf("unexpected batch: %+v", resp)
	}
}

func TestClientRebuildsErrorKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{
			Error: `not found: queue: lookup: task "x"`,
			Kind:  string(services.KindNotFound),
			Hint:  "list tasks first",
		})
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Task(context.Background(), "x")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if strings.Count(err.Error(), "not found") != 1 {
		t.Fatalf("marker repeated in %q", err.Error())
	}
	if services.Details(err).Hint != "list tasks first" {
		t.Fatalf("hint lost: %+v", services.Details(err))
	}
}

func TestClientStatusWithoutKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(strings.TrimPrefix(server.URL, "http://")).Stats(context.Background())
	if services.KindOf(err) != services.KindUpstreamUnavailable {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestClientUnreachableDaemon(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	_, err := NewClient(addr).Status(context.Background())
	details := services.Details(err)
	if details.Kind != services.KindUpstreamUnavailable || details.Hint == "" {
		t.Fatalf("unexpected details: %+v", details)
	}
}
