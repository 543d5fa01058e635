// Package config provides configuration management for the risk calculator.
// This file contains the lightweight configuration for the standalone MCP server.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/imwg-risk-calculator/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the SQLite databases and exports

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".imwg-risk-calculator")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      5 * time.Minute,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("IMWG_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("IMWG_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("IMWG_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("IMWG_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("IMWG_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// AssessmentsDBPath returns the path to the assessments SQLite database.
func (c *LiteConfig) AssessmentsDBPath() string {
	return filepath.Join(c.DataDir, "assessments.db")
}

// HistoryDBPath returns the path to the audit history SQLite database.
func (c *LiteConfig) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// Logging returns the logger settings. Stdout carries the MCP protocol, so logs go
// to stderr.
func (c *LiteConfig) Logging() domain.LoggingConfig {
	return domain.LoggingConfig{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		Output: "stderr",
	}
}

// Cache returns the in-memory cache settings.
func (c *LiteConfig) Cache() domain.CacheConfig {
	return domain.CacheConfig{
		Driver:     domain.CacheDriverMemory,
		MaxItems:   c.CacheMaxItems,
		DefaultTTL: c.CacheTTL,
	}
}
