package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jawa-analysis/heapsum/internal/config"
)

func TestDefault_FillsAllDefaults(t *testing.T) {
	cfg := config.Default()
	if cfg.Timeout != 60*time.Second {
		t.Fatalf("expected default timeout 60s, got %v", cfg.Timeout)
	}
	if cfg.Workers != 4 {
		t.Fatalf("expected default workers 4, got %d", cfg.Workers)
	}
	if cfg.CacheBackend != config.CacheMemory {
		t.Fatalf("expected default cache backend %q, got %q", config.CacheMemory, cfg.CacheBackend)
	}
	if cfg.ContextLength != 0 {
		t.Fatalf("expected ContextLength 0, got %d", cfg.ContextLength)
	}
}

func TestParse_FillsDefaultsForOmittedFields(t *testing.T) {
	cfg, err := config.Parse([]byte(`workers: 8`), "test.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Workers != 8 {
		t.Fatalf("expected workers 8, got %d", cfg.Workers)
	}
	if cfg.Timeout != 60*time.Second {
		t.Fatalf("expected default timeout to still apply, got %v", cfg.Timeout)
	}
	if cfg.CacheBackend != config.CacheMemory {
		t.Fatalf("expected default cache backend, got %q", cfg.CacheBackend)
	}
}

func TestParse_DurationString(t *testing.T) {
	cfg, err := config.Parse([]byte(`timeout: "2m"`), "test.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Fatalf("expected 2m, got %v", cfg.Timeout)
	}
}

func TestParse_InvalidDurationRejected(t *testing.T) {
	_, err := config.Parse([]byte(`timeout: "not-a-duration"`), "test.yaml")
	if err == nil {
		t.Fatalf("expected an error for an unparsable timeout string")
	}
}

func TestParse_NonzeroContextLengthRejected(t *testing.T) {
	_, err := config.Parse([]byte(`context_length: 1`), "test.yaml")
	if err == nil {
		t.Fatalf("expected an error for a nonzero context_length")
	}
}

func TestParse_SqliteBackendRequiresCachePath(t *testing.T) {
	_, err := config.Parse([]byte(`cache_backend: sqlite`), "test.yaml")
	if err == nil {
		t.Fatalf("expected an error when cache_backend is sqlite with no cache_path")
	}

	cfg, err := config.Parse([]byte("cache_backend: sqlite\ncache_path: /tmp/cache.db"), "test.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.CacheBackend != config.CacheSQLite || cfg.CachePath != "/tmp/cache.db" {
		t.Fatalf("expected sqlite backend with cache path set, got %+v", cfg)
	}
}

func TestParse_UnknownCacheBackendRejected(t *testing.T) {
	_, err := config.Parse([]byte(`cache_backend: redis`), "test.yaml")
	if err == nil {
		t.Fatalf("expected an error for an unrecognized cache_backend")
	}
}

func TestParse_NegativeWorkersRejected(t *testing.T) {
	_, err := config.Parse([]byte(`workers: -1`), "test.yaml")
	if err == nil {
		t.Fatalf("expected an error for negative workers")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestLoad_ReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	content := "workers: 2\ntimeout: \"30s\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 2 || cfg.Timeout != 30*time.Second {
		t.Fatalf("unexpected config from disk: %+v", cfg)
	}
}
