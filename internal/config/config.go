// Package config loads client settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime settings for the client. Every field can be
// set through a CODEMATE_* environment variable.
type Config struct {
	// BackendURL is the base URL of the CodeMate assistant backend.
	BackendURL string `envconfig:"BACKEND_URL" default:"http://localhost:8000"`

	// DataDir holds the snapshot database and log files. Empty means
	// ~/.codemate.
	DataDir string `envconfig:"DATA_DIR"`

	// ConnectTimeout bounds establishing the HTTP connection to the
	// backend. It does not bound the stream itself, which stays open for
	// the duration of a response.
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT" default:"10s"`

	// Debug enables debug-level logging.
	Debug bool `envconfig:"DEBUG" default:"false"`
}

// Load reads configuration from the environment and resolves the data
// directory, creating it if needed.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("codemate", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if cfg.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(homeDir, ".codemate")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &cfg, nil
}

// SnapshotPath returns the path of the DuckDB snapshot database.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, "sessions.db")
}

// LogPath returns the path of the log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "codemate.log")
}
