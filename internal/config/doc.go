// Package config loads, normalizes, and validates dealradar configuration.
//
// Configuration is read from TOML (~/.config/dealradar/config.toml or
// ./dealradar.toml), layered over Default(), with ~ expansion for paths and
// environment fallbacks for secrets (DEALRADAR_LLM_API_KEY, OPENAI_API_KEY,
// DEALRADAR_API_TOKEN). CreateSample writes the embedded annotated sample used
// by `dealradar config init`.
package config
