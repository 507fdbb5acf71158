package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sentineltk/sentinel/internal/app"
)

func TestLoadConfig_MissingFileFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := app.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Storage.CacheMaxEntries != 200 {
		t.Errorf("cache max = %d, want default 200", cfg.Storage.CacheMaxEntries)
	}
	if cfg.Weights.Typosquat != 20 {
		t.Errorf("typosquat weight = %d, want default 20", cfg.Weights.Typosquat)
	}
}

func TestLoadConfig_YAMLOverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
listen_addr: ":9191"
storage:
  cache_ttl: 4h
weights:
  typosquat: 30
reputation:
  base_url: "https://rep.example"
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := app.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":9191" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Storage.CacheTTL != 4*time.Hour {
		t.Errorf("cache ttl = %v, want 4h", cfg.Storage.CacheTTL)
	}
	if cfg.Weights.Typosquat != 30 {
		t.Errorf("typosquat weight = %d, want 30", cfg.Weights.Typosquat)
	}
	// Unspecified fields keep their defaults.
	if cfg.Weights.Homograph != 15 {
		t.Errorf("homograph weight = %d, want default 15", cfg.Weights.Homograph)
	}
	if cfg.Reputation.Timeout != 3*time.Second {
		t.Errorf("reputation timeout = %v, want default 3s", cfg.Reputation.Timeout)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := app.LoadConfig(path); err == nil {
		t.Error("invalid YAML should error")
	}
}
