package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"dealradar/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("DEALRADAR_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantDB := filepath.Join(tempHome, ".local", "share", "dealradar", "dealradar.db")
	if cfg.Paths.DatabasePath != wantDB {
		t.Fatalf("unexpected database path: got %q want %q", cfg.Paths.DatabasePath, wantDB)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Pipeline.MaxCompanyNameLength != 120 {
		t.Fatalf("unexpected name length limit: %d", cfg.Pipeline.MaxCompanyNameLength)
	}
	if cfg.Extract.ChunkSize != 1000 || cfg.Extract.ChunkOverlap != 200 {
		t.Fatalf("unexpected chunking defaults: %+v", cfg.Extract)
	}
	if cfg.LLMEnabled() {
		t.Fatal("expected LLM disabled without api key")
	}
}

func TestLoadReadsFileAndEnvFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DEALRADAR_LLM_API_KEY", "env-key")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[pipeline]
max_concurrent_tasks = 4
stage_timeout_seconds = 120

[pipeline.stage_timeouts]
Download = 30

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q %v", resolved, exists)
	}
	if cfg.Pipeline.MaxConcurrentTasks != 4 {
		t.Fatalf("expected max concurrent tasks 4, got %d", cfg.Pipeline.MaxConcurrentTasks)
	}
	if got := cfg.StageTimeout("download"); got != 30*time.Second {
		t.Fatalf("expected download override, got %s", got)
	}
	if got := cfg.StageTimeout("extract"); got != 120*time.Second {
		t.Fatalf("expected pipeline default, got %s", got)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized format, got %q", cfg.Logging.Format)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected env api key, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[pipeline]\nmystery = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"concurrency":   func(c *config.Config) { c.Pipeline.MaxConcurrentTasks = 0 },
		"overlap":       func(c *config.Config) { c.Extract.ChunkOverlap = c.Extract.ChunkSize },
		"size limits":   func(c *config.Config) { c.Download.MaxBytes = c.Download.MinBytes },
		"ir path":       func(c *config.Config) { c.Discovery.IRPaths = []string{"investors"} },
		"log format":    func(c *config.Config) { c.Logging.Format = "xml" },
		"stage timeout": func(c *config.Config) { c.Pipeline.StageTimeouts = map[string]int{"scan": -1} },
		"keep tasks":    func(c *config.Config) { c.Pipeline.KeepTasks = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", name)
			}
		})
	}
}

func TestSampleConfigParsesAndMatchesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	cfg := config.Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	def := config.Default()
	if cfg.Pipeline.MaxCompanyNameLength != def.Pipeline.MaxCompanyNameLength {
		t.Fatalf("sample diverges from defaults: %d", cfg.Pipeline.MaxCompanyNameLength)
	}
	if cfg.Download.MaxBytes != def.Download.MaxBytes {
		t.Fatalf("sample max bytes %d != default %d", cfg.Download.MaxBytes, def.Download.MaxBytes)
	}
}

func TestEncodeRedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "sk-secret"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Fatal("expected api key to be redacted")
	}
}
