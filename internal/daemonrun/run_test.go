package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"dealradar/internal/api"
	"dealradar/internal/logging"
	"dealradar/internal/testsupport"
)

func TestBuildWiresPipelineInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	runtime, err := Build(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer runtime.Close()

	want := []string{"discover", "collect", "download", "extract", "scan", "score", "index"}
	if got := runtime.Manager.Stages(); !reflect.DeepEqual(got, want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	if runtime.Catalog == nil || len(runtime.Catalog.Signals) == 0 {
		t.Fatal("expected the built-in catalog to load")
	}
}

func TestBuildRejectsMissingCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := Build(cfg, nil); err == nil {
		t.Fatal("expected error for missing catalog file")
	}
}

func TestRuntimeServesAPI(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runtime, err := Build(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer runtime.Close()

	ctx := context.Background()
	if err := runtime.Daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client := api.NewClient(runtime.Daemon.Address())
	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected workflow to report running")
	}
	if len(status.StageHealth) != 7 {
		t.Fatalf("expected 7 stage health entries, got %d", len(status.StageHealth))
	}

	stats, err := client.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Companies != 0 || stats.Signals == 0 {
		t.Fatalf("unexpected stats for empty store: %+v", stats)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dealradar.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		t.Fatalf("unexpected pid file content %q", data)
	}
	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
}
