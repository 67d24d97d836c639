// ABOUTME: Environment-driven configuration with validation and defaults
// ABOUTME: Reads .env via godotenv, falls back to XDG paths for local state
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// Config holds everything the process needs to run. Remote credentials are
// required for sync workflows; local-only commands work without them.
type Config struct {
	APIURL   string
	APIToken string
	DBPath   string

	BatchSize         int
	Workers           int
	RequestsPerSecond float64
	CacheTTL          time.Duration
	HTTPTimeout       time.Duration
}

// DefaultDBPath returns the XDG-compliant location of the contacts database.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "copain", "contacts.db")
}

// Load reads configuration from the environment, after best-effort loading a
// local .env file. Environment variables:
// - COPAIN_API_URL
// - COPAIN_API_TOKEN
// - COPAIN_DB_PATH
// - COPAIN_BATCH_SIZE
// - COPAIN_WORKERS
// - COPAIN_RATE_LIMIT (requests per second)
// - COPAIN_CACHE_TTL (Go duration, e.g. "5m")
// - COPAIN_HTTP_TIMEOUT (Go duration).
func Load() (*Config, error) {
	// Missing .env is the common case, not an error.
	_ = godotenv.Load()

	cfg := &Config{
		APIURL:            os.Getenv("COPAIN_API_URL"),
		APIToken:          os.Getenv("COPAIN_API_TOKEN"),
		DBPath:            DefaultDBPath(),
		BatchSize:         20,
		Workers:           4,
		RequestsPerSecond: 5,
		CacheTTL:          5 * time.Minute,
		HTTPTimeout:       30 * time.Second,
	}

	if path := os.Getenv("COPAIN_DB_PATH"); path != "" {
		cfg.DBPath = path
	}
	if err := applyIntVar(&cfg.BatchSize, "COPAIN_BATCH_SIZE"); err != nil {
		return nil, err
	}
	if err := applyIntVar(&cfg.Workers, "COPAIN_WORKERS"); err != nil {
		return nil, err
	}
	if raw := os.Getenv("COPAIN_RATE_LIMIT"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid COPAIN_RATE_LIMIT: %q", raw)
		}
		cfg.RequestsPerSecond = v
	}
	if err := applyDurationVar(&cfg.CacheTTL, "COPAIN_CACHE_TTL"); err != nil {
		return nil, err
	}
	if err := applyDurationVar(&cfg.HTTPTimeout, "COPAIN_HTTP_TIMEOUT"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireRemote validates the fields remote-facing commands depend on.
func (c *Config) RequireRemote() error {
	if c.APIURL == "" {
		return fmt.Errorf("COPAIN_API_URL is not set")
	}
	if c.APIToken == "" {
		return fmt.Errorf("COPAIN_API_TOKEN is not set")
	}
	return nil
}

func applyIntVar(dst *int, name string) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fmt.Errorf("invalid %s: %q", name, raw)
	}
	*dst = v
	return nil
}

func applyDurationVar(dst *time.Duration, name string) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return fmt.Errorf("invalid %s: %q", name, raw)
	}
	*dst = v
	return nil
}
