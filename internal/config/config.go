// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for teams-export.
//
// Settings resolve in order of precedence:
//   - TEAMS_EXPORT_* environment variables (a .env file is honored)
//   - ~/.teams-export/config.toml
//   - Built-in defaults
//
// The access token is environment-only; it is never read from or written
// to the config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/teams-export/internal/util"
)

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// Config holds every tunable setting for an export run.
type Config struct {
	// GraphBaseURL is the Microsoft Graph endpoint.
	GraphBaseURL string `toml:"graph_base_url"`

	// OutputDir is where export files are written.
	OutputDir string `toml:"output_dir"`

	// Format is the default output format: json, csv, markdown, html.
	Format string `toml:"format"`

	// Theme selects the HTML color scheme, "light" or "dark".
	Theme string `toml:"theme"`

	// DownloadAttachments enables local attachment download for formats
	// that render them.
	DownloadAttachments bool `toml:"download_attachments"`

	// CacheTTLHours is how long the chat list cache stays fresh.
	CacheTTLHours int `toml:"cache_ttl_hours"`

	// Concurrency is the worker pool size for multi-chat exports.
	Concurrency int `toml:"concurrency"`

	// Token is the Graph access token. Environment-only, never persisted.
	Token string `toml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GraphBaseURL:        "https://graph.microsoft.com/v1.0",
		OutputDir:           "exports",
		Format:              "markdown",
		Theme:               "light",
		DownloadAttachments: true,
		CacheTTLHours:       24,
		Concurrency:         3,
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the teams-export configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".teams-export"), nil
}

// ConfigPath returns the TOML config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from the default path, applying defaults
// and environment overrides. A missing config file is not an error.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from an explicit TOML file. A
// missing file yields the defaults; a malformed file is an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	// A .env in the working directory feeds the overrides below. Absence
	// is the common case and not an error.
	_ = godotenv.Load()

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies TEAMS_EXPORT_* environment variables on top of
// the loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TEAMS_EXPORT_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("TEAMS_EXPORT_GRAPH_URL"); v != "" {
		c.GraphBaseURL = v
	}
	if v := os.Getenv("TEAMS_EXPORT_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("TEAMS_EXPORT_FORMAT"); v != "" {
		c.Format = v
	}
	if v := os.Getenv("TEAMS_EXPORT_THEME"); v != "" {
		c.Theme = v
	}
	if v := os.Getenv("TEAMS_EXPORT_ATTACHMENTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.DownloadAttachments = b
		}
	}
	if v := os.Getenv("TEAMS_EXPORT_CACHE_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CacheTTLHours = n
		}
	}
	if v := os.Getenv("TEAMS_EXPORT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Concurrency = n
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

var validFormats = map[string]bool{
	"json":     true,
	"csv":      true,
	"markdown": true,
	"md":       true,
	"html":     true,
}

// Validate checks the configuration for invalid values, clamping the ones
// with safe bounds.
func (c *Config) Validate() error {
	if !validFormats[strings.ToLower(c.Format)] {
		return fmt.Errorf("invalid format %q (expected json, csv, markdown, or html)", c.Format)
	}
	if c.Theme != "light" && c.Theme != "dark" {
		return fmt.Errorf("invalid theme %q (expected light or dark)", c.Theme)
	}
	if c.GraphBaseURL == "" {
		return fmt.Errorf("graph_base_url must not be empty")
	}

	if c.CacheTTLHours < 0 {
		c.CacheTTLHours = 0
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Concurrency > 8 {
		c.Concurrency = 8
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default path, creating the config
// directory as needed.
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# teams-export configuration\n\n")
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return util.AtomicWriteFile(filepath.Join(dir, "config.toml"), []byte(sb.String()), 0600)
}
