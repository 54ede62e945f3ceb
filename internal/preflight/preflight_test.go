package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dealradar/internal/api"
	"dealradar/internal/stage"
	"dealradar/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDatabaseNotCreatedYet(t *testing.T) {
	result := CheckDatabase(filepath.Join(t.TempDir(), "dealradar.db"))
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "will be created") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckCatalog(t *testing.T) {
	if result := CheckCatalog(""); !result.Passed {
		t.Fatalf("built-in catalog should load: %s", result.Detail)
	}
	bad := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(bad, []byte("signals: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckCatalog(bad); result.Passed {
		t.Fatal("expected failure for malformed catalog")
	}
}

func TestCheckLLMWithoutKeyIsOptional(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LLM.APIKey = ""

	result := CheckLLM(context.Background(), cfg)
	if result.Passed || !result.Optional {
		t.Fatalf("expected optional failure, got %+v", result)
	}
	if Failed([]Result{result}) {
		t.Fatal("optional failure should not fail the run")
	}
}

func TestCheckLLMHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithLLM(srv.URL))
	result := CheckLLM(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLMRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithLLM(srv.URL))
	result := CheckLLM(context.Background(), cfg)
	if result.Passed || result.Optional {
		t.Fatalf("expected required failure, got %+v", result)
	}
}

func TestRunAllAfterEnsureDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinary("pdftotext", "#!/bin/sh\nexit 0\n"))
	cfg.Extract.PDFToTextBinary = "pdftotext"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if Failed(results) {
		t.Fatalf("expected no required failures: %+v", results)
	}
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Data directory", "Database", "Signal catalog", "pdftotext", "LLM"} {
		if !names[want] {
			t.Fatalf("missing check %q in %+v", want, results)
		}
	}
}

type statusStub struct {
	status api.WorkflowStatus
	err    error
}

func (s statusStub) Status(context.Context) (api.WorkflowStatus, error) {
	return s.status, s.err
}

func TestCheckDaemon(t *testing.T) {
	ctx := context.Background()

	down := CheckDaemon(ctx, statusStub{err: errors.New("connection refused")})
	if down.Passed || !down.Optional {
		t.Fatalf("unreachable daemon should be optional, got %+v", down)
	}

	degraded := CheckDaemon(ctx, statusStub{status: api.WorkflowStatus{
		Running:     true,
		StageHealth: []stage.Health{stage.Healthy("scan"), stage.Unhealthy("extract", "pdftotext missing")},
	}})
	if degraded.Passed || !strings.Contains(degraded.Detail, "pdftotext missing") {
		t.Fatalf("expected unhealthy stage detail, got %+v", degraded)
	}

	healthy := CheckDaemon(ctx, statusStub{status: api.WorkflowStatus{Running: true, Workers: 2, Busy: 1}})
	if !healthy.Passed {
		t.Fatalf("expected pass, got %+v", healthy)
	}
}
