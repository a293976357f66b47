// Package config provides configuration types for the model catalog and retry engine.
package config

import (
	"fmt"
	"time"
)

// Config represents the main configuration.
type Config struct {
	Catalog  CatalogConfig  `toml:"catalog"`
	Retry    RetryConfig    `toml:"retry"`
	Trackers TrackersConfig `toml:"trackers"`
	Params   ParamsConfig   `toml:"params"`
	Logging  LoggingConfig  `toml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// CatalogConfig controls catalog acquisition and caching.
type CatalogConfig struct {
	CacheMode        string   `toml:"cache_mode"`         // FILE, MEMORY, SQLITE, NONE
	CacheDir         string   `toml:"cache_dir"`          // Primary cache directory
	FallbackCacheDir string   `toml:"fallback_cache_dir"` // Used when the primary cannot be written
	SQLitePath       string   `toml:"sqlite_path"`        // Database file for SQLITE mode
	MaxAge           Duration `toml:"max_age"`
	ForceRefresh     bool     `toml:"force_refresh"`
	Workers          int      `toml:"workers"`
	BundledFallback  bool     `toml:"bundled_fallback"`
	Regions          []string `toml:"regions"`
	CallTimeout      Duration `toml:"call_timeout"`
	FetchAttempts    int      `toml:"fetch_attempts"`
}

// RetryConfig controls the request retry engine.
type RetryConfig struct {
	MaxAttempts      int      `toml:"max_attempts"`      // Attempt slots per request
	TransientRetries int      `toml:"transient_retries"` // Same-candidate retries for transient faults
	InitialDelay     Duration `toml:"initial_delay"`
	MaxDelay         Duration `toml:"max_delay"`
	Strategy         string   `toml:"strategy"` // region_first, model_first
	CallTimeout      Duration `toml:"call_timeout"`
	BatchConcurrency int      `toml:"batch_concurrency"` // Parallel requests in a batch
}

// TrackersConfig bounds the learned compatibility caches.
type TrackersConfig struct {
	Capacity int `toml:"capacity"`
}

// ParamsConfig configures request parameter building.
type ParamsConfig struct {
	ExtendedContextModels []string `toml:"extended_context_models"` // Overrides the built-in allow-list
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // console, json
	File   string `toml:"file"`   // Optional log file; stderr when empty
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// CacheMode selects where acquired catalogs are persisted.
type CacheMode string

const (
	CacheModeFile   CacheMode = "FILE"
	CacheModeMemory CacheMode = "MEMORY"
	CacheModeSQLite CacheMode = "SQLITE"
	CacheModeNone   CacheMode = "NONE"
)

// Strategy orders the (model, region) candidates of a request.
type Strategy string

const (
	StrategyRegionFirst Strategy = "region_first" // All regions of a model before the next model
	StrategyModelFirst  Strategy = "model_first"  // All models in a region before the next region
)

// Duration is a time.Duration that reads and writes TOML strings such as "24h".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
