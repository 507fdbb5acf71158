package app

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sentineltk/sentinel/internal/engine"
	"github.com/sentineltk/sentinel/internal/reputation"
	"github.com/sentineltk/sentinel/internal/storage"
)

// Config aggregates the runtime configuration of all internal modules. The
// server's listen address lives here directly rather than in the server
// package, which sits above app in the import graph.
type Config struct {
	// DatabasePath is the SQLite file. Empty means in-memory only.
	DatabasePath string `yaml:"database_path"`

	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string `yaml:"listen_addr"`

	Storage    storage.Config    `yaml:"storage"`
	Weights    engine.Weights    `yaml:"weights"`
	Reputation reputation.Config `yaml:"reputation"`
}

// DefaultConfig returns a Config populated with the production defaults.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath: defaultDatabasePath(),
		ListenAddr:   ":8090",
		Storage:      storage.DefaultConfig(),
		Weights:      engine.DefaultWeights(),
		Reputation:   reputation.DefaultConfig(),
	}
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sentinel", "sentinel.db")
}

// LoadConfig loads configuration from a YAML file. Empty path or a missing
// file returns defaults; invalid YAML returns an error. YAML overwrites only
// the fields it specifies.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
