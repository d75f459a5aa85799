// Package config loads the orchestrator's configuration.
//
// Configuration is a JSON file (default ./orchestrator.json, overridden
// with --config). Secrets may be left out of the file and supplied via
// environment variables instead.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const defaultFileName = "orchestrator.json"

// pathOverride, when non-empty, replaces the default config file path.
// Intended for testing. Use SetPath / ResetPath to manage.
var pathOverride string

// SetPath overrides the config file path. Intended for testing.
func SetPath(p string) { pathOverride = p }

// ResetPath clears the path override. Intended for testing.
func ResetPath() { pathOverride = "" }

// HostycareConfig holds credentials for the Hostycare reseller API.
type HostycareConfig struct {
	BaseURL  string `json:"base_url"`
	Username string `json:"username"`
	APIKey   string `json:"api_key,omitempty"`
}

// PanelConfig describes one Virtualizor panel instance. File order is
// the resolver's search order.
type PanelConfig struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	APIPass string `json:"api_pass"`
}

// Config holds the orchestrator's runtime settings.
type Config struct {
	ListenAddr   string `json:"listen_addr,omitempty"`
	DatabasePath string `json:"database_path,omitempty"`
	LogLevel     string `json:"log_level,omitempty"`

	// BulkWorkers bounds the bulk coordinator's concurrency so upstream
	// rate limits survive a big batch.
	BulkWorkers int `json:"bulk_workers,omitempty"`

	// SyncIntervalSec is the state-sync period; zero disables the loop.
	SyncIntervalSec int `json:"sync_interval_sec,omitempty"`

	Hostycare    HostycareConfig `json:"hostycare"`
	Panels       []PanelConfig   `json:"panels"`
	HetznerToken string          `json:"hetzner_token,omitempty"`
}

// Load reads the config file, applies environment fallbacks for secrets
// and defaults for the rest. A missing file yields a default config so
// tests and first runs work without one.
func Load(path string) (*Config, error) {
	if pathOverride != "" {
		path = pathOverride
	}
	if path == "" {
		path = defaultFileName
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// fall through to defaults
	case err != nil:
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HOSTYCARE_API_KEY"); v != "" {
		c.Hostycare.APIKey = v
	}
	if v := os.Getenv("HOSTYCARE_USERNAME"); v != "" {
		c.Hostycare.Username = v
	}
	if v := os.Getenv("HETZNER_TOKEN"); v != "" {
		c.HetznerToken = v
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "orchestrator.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.BulkWorkers <= 0 {
		c.BulkWorkers = 4
	}
	if c.SyncIntervalSec < 0 {
		c.SyncIntervalSec = 0
	}
}

func (c *Config) validate() error {
	seen := map[string]bool{}
	for _, p := range c.Panels {
		if p.Name == "" || p.BaseURL == "" {
			return fmt.Errorf("config: panel entries need name and base_url")
		}
		if seen[p.Name] {
			return fmt.Errorf("config: duplicate panel name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}
