package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, database and bind address configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	DownloadDir  string `toml:"download_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`
	LockPath     string `toml:"lock_path"`
	CatalogPath  string `toml:"catalog_path"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// Pipeline contains task orchestration limits.
type Pipeline struct {
	MaxConcurrentTasks   int            `toml:"max_concurrent_tasks"`
	MaxCompanyNameLength int            `toml:"max_company_name_length"`
	StageTimeoutSeconds  int            `toml:"stage_timeout_seconds"`
	StageTimeouts        map[string]int `toml:"stage_timeouts"`
	TaskLogLines         int            `toml:"task_log_lines"`
	KeepTasks            int            `toml:"keep_tasks"`
}

// HTTP contains the outbound crawler settings shared by the fetching stages.
type HTTP struct {
	UserAgent         string  `toml:"user_agent"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// Discovery contains investor relations page probing settings.
type Discovery struct {
	IRPaths    []string `toml:"ir_paths"`
	IRKeywords []string `toml:"ir_keywords"`
}

// Collect contains report link collection settings.
type Collect struct {
	PriorityKeywords []string `toml:"priority_keywords"`
	SubPageKeywords  []string `toml:"sub_page_keywords"`
	MaxSubPages      int      `toml:"max_sub_pages"`
}

// Download contains document download limits.
type Download struct {
	MaxDocuments int   `toml:"max_documents"`
	MinBytes     int64 `toml:"min_bytes"`
	MaxBytes     int64 `toml:"max_bytes"`
}

// Extract contains text extraction and chunking settings.
type Extract struct {
	PDFToTextBinary string `toml:"pdftotext_binary"`
	ChunkSize       int    `toml:"chunk_size"`
	ChunkOverlap    int    `toml:"chunk_overlap"`
	MinChunkChars   int    `toml:"min_chunk_chars"`
}

// Scoring contains evidence presentation settings.
type Scoring struct {
	EvidencePerCategory int `toml:"evidence_per_category"`
}

// LLM contains chat completion connection settings used by company
// recognition, relevance refinement, reports and chat.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dealradar.
//
// Configuration sections by subsystem:
//   - Paths: directories, database, lock file and API bind address
//   - Pipeline: concurrency, name limits and stage deadlines
//   - HTTP: crawler identity and rate limiting
//   - Discovery, Collect, Download, Extract: per-stage settings
//   - Scoring: evidence presentation
//   - LLM: chat completion settings for the insight features
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Pipeline  Pipeline  `toml:"pipeline"`
	HTTP      HTTP      `toml:"http"`
	Discovery Discovery `toml:"discovery"`
	Collect   Collect   `toml:"collect"`
	Download  Download  `toml:"download"`
	Extract   Extract   `toml:"extract"`
	Scoring   Scoring   `toml:"scoring"`
	LLM       LLM       `toml:"llm"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dealradar/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dealradar.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.DownloadDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.DatabasePath),
		filepath.Dir(c.Paths.LockPath),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StageTimeout returns the deadline for the named stage, falling back to the
// pipeline-wide default.
func (c *Config) StageTimeout(stage string) time.Duration {
	if seconds, ok := c.Pipeline.StageTimeouts[stage]; ok && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return time.Duration(c.Pipeline.StageTimeoutSeconds) * time.Second
}

// HTTPTimeout returns the per-request crawler timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// LLMEnabled reports whether an LLM API key is configured.
func (c *Config) LLMEnabled() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML with secrets redacted.
func (c *Config) Encode() ([]byte, error) {
	clone := *c
	if clone.LLM.APIKey != "" {
		clone.LLM.APIKey = "<redacted>"
	}
	if clone.Paths.APIToken != "" {
		clone.Paths.APIToken = "<redacted>"
	}
	return toml.Marshal(clone)
}
