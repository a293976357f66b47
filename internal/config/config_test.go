package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, string(CacheModeFile), cfg.Catalog.CacheMode)
	assert.Equal(t, 10, cfg.Catalog.Workers)
	assert.Equal(t, 24*time.Hour, cfg.Catalog.MaxAge.Duration)
	assert.True(t, cfg.Catalog.BundledFallback)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[catalog]
cache_mode = "memory"
max_age = "2h"
workers = 4
regions = ["us-east-1", "eu-west-1"]
bundled_fallback = false

[retry]
max_attempts = 5
strategy = "model_first"
initial_delay = "250ms"

[logging]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, string(CacheModeMemory), cfg.Catalog.CacheMode)
	assert.Equal(t, 2*time.Hour, cfg.Catalog.MaxAge.Duration)
	assert.Equal(t, 4, cfg.Catalog.Workers)
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, cfg.Catalog.Regions)
	assert.False(t, cfg.Catalog.BundledFallback)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, string(StrategyModelFirst), cfg.Retry.Strategy)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay.Duration)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"cache mode": "[catalog]\ncache_mode = \"disk\"\n",
		"workers":    "[catalog]\nworkers = 0\n",
		"strategy":   "[retry]\nstrategy = \"random\"\n",
		"duration":   "[catalog]\nmax_age = \"one day\"\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Equal(t, apperrors.CategoryUser, apperrors.GetCategory(err))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Catalog.Workers = 7
	cfg.Catalog.MaxAge = Duration{90 * time.Minute}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Catalog.Workers)
	assert.Equal(t, 90*time.Minute, loaded.Catalog.MaxAge.Duration)
	assert.Equal(t, cfg.Catalog.Regions, loaded.Catalog.Regions)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "cache"), expandHome("~/cache"))
	assert.Equal(t, "/var/cache", expandHome("/var/cache"))
	assert.Equal(t, "", expandHome(""))
}
