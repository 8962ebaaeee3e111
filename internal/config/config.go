// Package config provides configuration loading and structs for the
// omnisearch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MessageIndexSQLite and MessageIndexBleve select the text-matching backend
// for the message source.
const (
	MessageIndexSQLite = "sqlite"
	MessageIndexBleve  = "bleve"
)

// StorageConfig holds the database path and message index settings.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	// MessageIndex selects how message bodies are matched: "sqlite"
	// (substring over the messages table) or "bleve" (external index).
	MessageIndex   string `yaml:"message_index"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// SearchConfig holds search, ranking, and suggestion tunables. These fields
// are safe to change via config hot reload.
type SearchConfig struct {
	DefaultLimit       int `yaml:"default_limit"`
	MaxLimit           int `yaml:"max_limit"`
	PerSourceLimit     int `yaml:"per_source_limit"`
	SourceTimeoutMs    int `yaml:"source_timeout_ms"`
	SuggestionLimit    int `yaml:"suggestion_limit"`
	FrequentWindowDays int `yaml:"frequent_window_days"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Storage.MessageIndex {
	case MessageIndexSQLite, MessageIndexBleve:
	default:
		return fmt.Errorf("storage.message_index must be %q or %q, got %q",
			MessageIndexSQLite, MessageIndexBleve, c.Storage.MessageIndex)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit (%d) exceeds search.max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
