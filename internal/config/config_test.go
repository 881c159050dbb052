package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.HTTPPort != 4444 {
		t.Errorf("HTTPPort = %d, want 4444", cfg.Server.HTTPPort)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Cache.ContentTTL != 24*time.Hour {
		t.Errorf("ContentTTL = %v, want 24h", cfg.Cache.ContentTTL)
	}
	if cfg.Cache.SearchTTL != 30*time.Minute {
		t.Errorf("SearchTTL = %v, want 30m", cfg.Cache.SearchTTL)
	}
	if cfg.Limits.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.Limits.RetryAttempts)
	}
	if cfg.Limits.MaxSubtitleSize != 5*1024*1024 {
		t.Errorf("MaxSubtitleSize = %d, want 5MiB", cfg.Limits.MaxSubtitleSize)
	}
	if len(cfg.Subtitles.PriorityLanguages) != 10 {
		t.Errorf("PriorityLanguages = %v, want 10 entries", cfg.Subtitles.PriorityLanguages)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 4444 {
		t.Errorf("HTTPPort = %d, want default 4444", cfg.Server.HTTPPort)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  http_port: 8080
cache:
  metadata_ttl: 2h
limits:
  api_calls_per_minute: 10
providers:
  opensubtitles:
    api_key: test-key
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.Server.HTTPPort)
	}
	if cfg.Cache.MetadataTTL != 2*time.Hour {
		t.Errorf("MetadataTTL = %v, want 2h", cfg.Cache.MetadataTTL)
	}
	if cfg.Limits.APICallsPerMinute != 10 {
		t.Errorf("APICallsPerMinute = %d, want 10", cfg.Limits.APICallsPerMinute)
	}
	if cfg.Providers.OpenSubtitles.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want test-key", cfg.Providers.OpenSubtitles.APIKey)
	}
	// Untouched values keep defaults.
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Database.Driver)
	}
}

func TestLoadRejectsBadDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted unsupported driver")
	}
}

func TestLoadRejectsPostgresWithoutDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: postgres\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted postgres driver without dsn")
	}
}
