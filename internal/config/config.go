// Package config loads the engine-wide EngineConfig from YAML, using the
// familiar gopkg.in/yaml.v3-based "unmarshal into a typed struct, validate,
// fill defaults" shape, scaled down to the handful of knobs the engine
// needs. EngineConfig is a value threaded explicitly into each work unit
// rather than a package-level mutable global — the opposite of a
// package-level constants table approach.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheBackend selects the summary manager's optional persistent cache.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheSQLite CacheBackend = "sqlite"
)

// EngineConfig is the engine-wide configuration a driver loads once and
// threads into the scheduler, which in turn threads the relevant knobs
// into every work unit it dispatches.
type EngineConfig struct {
	// ContextLength is carried for documentation/compatibility with a
	// future context-sensitive mode; this engine only ever runs at 0
	// (context.Context.Length() always returns 0), and a nonzero value is
	// rejected by validate rather than silently ignored.
	ContextLength int `yaml:"context_length"`

	// Timeout bounds each work unit's reaching-facts fixpoint. Defaults
	// to 60s. Accepts a Go duration string in YAML (e.g. "60s", "2m").
	Timeout time.Duration `yaml:"timeout"`

	// Workers bounds the scheduler's concurrent work-unit fan-out
	// (errgroup-bounded dispatch). Defaults to defaultWorkers (4) via
	// setDefaults if omitted (0).
	Workers int `yaml:"workers"`

	// CacheBackend selects the summary manager's persistence layer.
	CacheBackend CacheBackend `yaml:"cache_backend"`

	// CachePath is the sqlite database path, required when CacheBackend
	// is "sqlite".
	CachePath string `yaml:"cache_path"`
}

// defaultTimeout is the default wall-clock bound on a work unit's fixpoint.
const defaultTimeout = 60 * time.Second

// defaultWorkers is a conservative default fan-out width for the
// scheduler when the config omits one explicitly.
const defaultWorkers = 4

// Load reads and parses an EngineConfig from a YAML file at path.
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses EngineConfig content from bytes. path is used only for
// error messages.
func Parse(data []byte, path string) (*EngineConfig, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg := EngineConfig{
		ContextLength: raw.ContextLength,
		Workers:       raw.Workers,
		CacheBackend:  raw.CacheBackend,
		CachePath:     raw.CachePath,
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%s: timeout: %w", path, err)
		}
		cfg.Timeout = d
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// rawConfig mirrors EngineConfig's YAML shape with Timeout as a plain
// Go-duration string ("60s", "2m"), since time.Duration has no built-in
// YAML text decoding.
type rawConfig struct {
	ContextLength int          `yaml:"context_length"`
	Timeout       string       `yaml:"timeout"`
	Workers       int          `yaml:"workers"`
	CacheBackend  CacheBackend `yaml:"cache_backend"`
	CachePath     string       `yaml:"cache_path"`
}

func (c *EngineConfig) validate(path string) error {
	if c.ContextLength != 0 {
		return fmt.Errorf("%s: context_length must be 0 — call-string sensitivity is deliberately flattened", path)
	}
	if c.CacheBackend != "" && c.CacheBackend != CacheMemory && c.CacheBackend != CacheSQLite {
		return fmt.Errorf("%s: cache_backend must be %q or %q, got %q", path, CacheMemory, CacheSQLite, c.CacheBackend)
	}
	if c.CacheBackend == CacheSQLite && c.CachePath == "" {
		return fmt.Errorf("%s: cache_path is required when cache_backend is %q", path, CacheSQLite)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%s: workers must be >= 0", path)
	}
	return nil
}

func (c *EngineConfig) setDefaults() {
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}
	if c.CacheBackend == "" {
		c.CacheBackend = CacheMemory
	}
}

// Default returns an EngineConfig with every field set to its default,
// for callers (tests, cmd/heapsum's fixture driver) that want sane
// behavior without a config file on disk.
func Default() *EngineConfig {
	cfg := &EngineConfig{}
	cfg.setDefaults()
	return cfg
}
