package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateHTTP(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validateExtract(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxConcurrentTasks <= 0 {
		return errors.New("pipeline.max_concurrent_tasks must be positive")
	}
	if c.Pipeline.MaxCompanyNameLength <= 0 {
		return errors.New("pipeline.max_company_name_length must be positive")
	}
	if c.Pipeline.StageTimeoutSeconds <= 0 {
		return errors.New("pipeline.stage_timeout_seconds must be positive")
	}
	for stage, seconds := range c.Pipeline.StageTimeouts {
		if seconds <= 0 {
			return fmt.Errorf("pipeline.stage_timeouts.%s must be positive", stage)
		}
	}
	if c.Pipeline.TaskLogLines <= 0 {
		return errors.New("pipeline.task_log_lines must be positive")
	}
	if c.Pipeline.KeepTasks < 0 {
		return errors.New("pipeline.keep_tasks must not be negative")
	}
	return nil
}

func (c *Config) validateHTTP() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return errors.New("http.timeout_seconds must be positive")
	}
	if c.HTTP.RequestsPerSecond <= 0 {
		return errors.New("http.requests_per_second must be positive")
	}
	return nil
}

func (c *Config) validateStages() error {
	if len(c.Discovery.IRPaths) == 0 {
		return errors.New("discovery.ir_paths must list at least one path")
	}
	for _, path := range c.Discovery.IRPaths {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("discovery.ir_paths entry %q must start with /", path)
		}
	}
	if len(c.Collect.PriorityKeywords) == 0 {
		return errors.New("collect.priority_keywords must list at least one keyword")
	}
	if c.Collect.MaxSubPages < 0 {
		return errors.New("collect.max_sub_pages must not be negative")
	}
	if c.Download.MaxDocuments <= 0 {
		return errors.New("download.max_documents must be positive")
	}
	if c.Download.MinBytes < 0 || c.Download.MaxBytes <= c.Download.MinBytes {
		return errors.New("download.max_bytes must exceed download.min_bytes")
	}
	if c.Scoring.EvidencePerCategory <= 0 {
		return errors.New("scoring.evidence_per_category must be positive")
	}
	return nil
}

func (c *Config) validateExtract() error {
	if c.Extract.ChunkSize <= 0 {
		return errors.New("extract.chunk_size must be positive")
	}
	if c.Extract.ChunkOverlap < 0 || c.Extract.ChunkOverlap >= c.Extract.ChunkSize {
		return errors.New("extract.chunk_overlap must be between 0 and chunk_size")
	}
	if c.Extract.MinChunkChars < 0 {
		return errors.New("extract.min_chunk_chars must not be negative")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
