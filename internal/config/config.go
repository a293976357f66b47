// Package config handles configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
)

// DefaultRegions are queried when no region list is configured.
var DefaultRegions = []string{
	"us-east-1", "us-east-2", "us-west-2",
	"eu-west-1", "eu-west-3", "eu-central-1", "eu-north-1",
	"ap-northeast-1", "ap-southeast-1", "ap-southeast-2", "ap-south-1",
	"ca-central-1", "sa-east-1",
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".llmmanager")

	return &Config{
		Catalog: CatalogConfig{
			CacheMode:        string(CacheModeFile),
			CacheDir:         filepath.Join(dataDir, "cache"),
			FallbackCacheDir: filepath.Join(os.TempDir(), "llmmanager-cache"),
			SQLitePath:       filepath.Join(dataDir, "catalog.db"),
			MaxAge:           Duration{24 * time.Hour},
			ForceRefresh:     false,
			Workers:          10,
			BundledFallback:  true,
			Regions:          append([]string(nil), DefaultRegions...),
			CallTimeout:      Duration{30 * time.Second},
			FetchAttempts:    3,
		},
		Retry: RetryConfig{
			MaxAttempts:      3,
			TransientRetries: 2,
			InitialDelay:     Duration{1 * time.Second},
			MaxDelay:         Duration{10 * time.Second},
			Strategy:         string(StrategyRegionFirst),
			CallTimeout:      Duration{120 * time.Second},
			BatchConcurrency: 4,
		},
		Trackers: TrackersConfig{
			Capacity: 4096,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "llmmanager",
		},
	}
}

// Load loads the configuration from the given path.
// If the file doesn't exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "parse "+configPath, apperrors.CategoryUser)
	}

	cfg = expandPaths(cfg)
	cfg.Catalog.CacheMode = strings.ToUpper(cfg.Catalog.CacheMode)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to the given path.
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(c)
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	switch CacheMode(c.Catalog.CacheMode) {
	case CacheModeFile, CacheModeMemory, CacheModeSQLite, CacheModeNone:
	default:
		return invalid("unknown cache_mode %q", c.Catalog.CacheMode)
	}
	if c.Catalog.Workers < 1 {
		return invalid("catalog.workers must be positive, got %d", c.Catalog.Workers)
	}
	if len(c.Catalog.Regions) == 0 {
		return invalid("catalog.regions must not be empty")
	}
	if c.Catalog.MaxAge.Duration <= 0 {
		return invalid("catalog.max_age must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return invalid("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.TransientRetries < 0 {
		return invalid("retry.transient_retries must not be negative")
	}
	if c.Retry.BatchConcurrency < 1 {
		return invalid("retry.batch_concurrency must be positive, got %d", c.Retry.BatchConcurrency)
	}
	switch Strategy(c.Retry.Strategy) {
	case StrategyRegionFirst, StrategyModelFirst:
	default:
		return invalid("unknown retry.strategy %q", c.Retry.Strategy)
	}
	if c.Trackers.Capacity < 1 {
		return invalid("trackers.capacity must be positive")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return apperrors.User(apperrors.CodeConfigInvalid, fmt.Sprintf(format, args...))
}

// expandPaths expands a leading ~ in paths.
func expandPaths(cfg *Config) *Config {
	cfg.Catalog.CacheDir = expandHome(cfg.Catalog.CacheDir)
	cfg.Catalog.FallbackCacheDir = expandHome(cfg.Catalog.FallbackCacheDir)
	cfg.Catalog.SQLitePath = expandHome(cfg.Catalog.SQLitePath)
	cfg.Logging.File = expandHome(cfg.Logging.File)
	return cfg
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, path[1:])
}
