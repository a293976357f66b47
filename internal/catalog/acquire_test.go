package catalog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

func newTestFetcher(plane ControlPlane, regions ...string) *Fetcher {
	return NewFetcher(plane, FetcherConfig{
		Regions: regions,
		Workers: 2,
		Policy:  noRetry(),
		Logger:  zerolog.Nop(),
	})
}

func countingBundled(calls *int) BundledLoader {
	return func() (*UnifiedCatalog, error) {
		*calls++
		return LoadBundled()
	}
}

func TestAcquireUsesCacheFirst(t *testing.T) {
	mem := NewMemoryLocation()
	cache := NewCache(CacheConfig{Locations: []Location{mem}, MaxAge: time.Hour, Logger: zerolog.Nop()})
	cache.Save(context.Background(), testCatalog(t))

	plane := standardPlane()
	a := NewAcquirer(AcquirerConfig{Cache: cache, Fetcher: newTestFetcher(plane, "us-east-1"), Logger: zerolog.Nop()})

	cat, err := a.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceCache, cat.Metadata().Source)
	assert.Zero(t, plane.callCount("us-east-1"), "no live fetch on cache hit")
}

func TestRetrievedDataUsedWhenEveryCacheWriteFails(t *testing.T) {
	var order []string
	cache := NewCache(CacheConfig{
		Locations: []Location{
			failingLocation{name: "primary", order: &order},
			failingLocation{name: "fallback", order: &order},
		},
		Logger: zerolog.Nop(),
	})

	bundledCalls := 0
	a := NewAcquirer(AcquirerConfig{
		Cache:   cache,
		Fetcher: newTestFetcher(standardPlane(), "us-east-1", "us-west-2"),
		Bundled: countingBundled(&bundledCalls),
		Logger:  zerolog.Nop(),
	})

	cat, err := a.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, protocol.SourceAPI, cat.Metadata().Source)
	assert.Equal(t, 2, cat.Len())
	assert.Zero(t, bundledCalls, "bundled loader is never invoked after a successful fetch")
	assert.Contains(t, order, "write:fallback")
}

func TestReadOnlyPrimaryWritesFallback(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	primary := NewFileLocation(filepath.Join(blocker, "cache"))
	fallback := NewFileLocation(filepath.Join(dir, "fallback"))

	var buf bytes.Buffer
	log := zerolog.New(&buf)
	cache := NewCache(CacheConfig{Locations: []Location{primary, fallback}, Logger: log})
	a := NewAcquirer(AcquirerConfig{
		Cache:   cache,
		Fetcher: newTestFetcher(standardPlane(), "us-east-1", "us-west-2"),
		Logger:  log,
	})

	cat, err := a.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceAPI, cat.Metadata().Source)
	assert.Equal(t, 2, cat.Len())

	_, err = os.Stat(fallback.Path())
	require.NoError(t, err, "fallback received the write")
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), fallback.Path())
}

func TestAcquireFallsBackToBundled(t *testing.T) {
	plane := standardPlane()
	plane.fail["us-east-1"] = errors.New("connection refused")

	var buf bytes.Buffer
	bundledCalls := 0
	a := NewAcquirer(AcquirerConfig{
		Fetcher: newTestFetcher(plane, "us-east-1"),
		Bundled: countingBundled(&bundledCalls),
		Logger:  zerolog.New(&buf),
	})

	cat, err := a.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, bundledCalls)
	assert.Equal(t, protocol.SourceBundled, cat.Metadata().Source)
	assert.Contains(t, buf.String(), "stale")
}

func TestAcquireReportsEveryStage(t *testing.T) {
	plane := standardPlane()
	plane.fail["us-east-1"] = errors.New("connection refused")

	a := NewAcquirer(AcquirerConfig{
		Cache:   NewCache(CacheConfig{Locations: []Location{NewMemoryLocation()}, Logger: zerolog.Nop()}),
		Fetcher: newTestFetcher(plane, "us-east-1"),
		Bundled: func() (*UnifiedCatalog, error) { return nil, errors.New("snapshot missing") },
		Logger:  zerolog.Nop(),
	})

	_, err := a.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCatalogUnavailable)

	var unavailable *apperrors.CatalogUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Len(t, unavailable.Reasons, 3)
	assert.ErrorIs(t, unavailable.Reasons[apperrors.StageCache], apperrors.ErrNoCache)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "snapshot missing")
}

func TestRefreshSkipsCache(t *testing.T) {
	mem := NewMemoryLocation()
	cache := NewCache(CacheConfig{Locations: []Location{mem}, Logger: zerolog.Nop()})
	cache.Save(context.Background(), testCatalog(t))

	plane := standardPlane()
	a := NewAcquirer(AcquirerConfig{Cache: cache, Fetcher: newTestFetcher(plane, "us-east-1"), Logger: zerolog.Nop()})

	cat, err := a.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceAPI, cat.Metadata().Source)
	assert.Equal(t, 1, plane.callCount("us-east-1"))
}

func TestFetcherExcludesFailedRegions(t *testing.T) {
	plane := standardPlane()
	plane.fail["eu-west-1"] = errors.New("access denied")

	res, err := newTestFetcher(plane, "us-east-1", "us-west-2", "eu-west-1").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"us-east-1", "us-west-2"}, res.Succeeded())
	assert.Contains(t, res.Failed, "eu-west-1")
}

func TestFetcherRetriesTransientFailures(t *testing.T) {
	plane := &flakyPlane{fakePlane: standardPlane(), failures: 2}
	policy := apperrors.FetchPolicy()
	policy.InitialDelay = time.Millisecond
	policy.MaxDelay = time.Millisecond

	f := NewFetcher(plane, FetcherConfig{Regions: []string{"us-east-1"}, Policy: policy, Logger: zerolog.Nop()})
	res, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"us-east-1"}, res.Succeeded())
	assert.Equal(t, 3, plane.callCount("us-east-1"))
}

func TestFetcherFailsWhenEveryRegionFails(t *testing.T) {
	plane := newFakePlane()
	plane.fail["us-east-1"] = errors.New("boom")
	plane.fail["us-west-2"] = errors.New("bang")

	_, err := newTestFetcher(plane, "us-east-1", "us-west-2").Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "bang")
}

func TestFetcherHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(standardPlane(), "us-east-1").Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// flakyPlane fails the first N model listings with a throttling error.
type flakyPlane struct {
	*fakePlane
	failures int
}

func (f *flakyPlane) ListFoundationModels(ctx context.Context, region string) ([]FoundationModel, error) {
	models, _ := f.fakePlane.ListFoundationModels(ctx, region)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, apperrors.Transient(apperrors.CodeThrottled, "rate exceeded")
	}
	return models, nil
}

func TestLoadBundled(t *testing.T) {
	cat, err := LoadBundled()
	require.NoError(t, err)
	assert.Equal(t, protocol.SourceBundled, cat.Metadata().Source)
	assert.Positive(t, cat.Len())

	store := NewStore(cat)
	assert.True(t, store.IsAvailable("Claude Sonnet 4", "us-east-1"))
	info, ok := store.AccessInfo("Claude Sonnet 4", "us-east-1")
	require.True(t, ok)
	assert.False(t, info.Direct)
	assert.True(t, info.GlobalProfile)

	_, err = loadBundled([]byte(`{"metadata":{}}`))
	assert.Error(t, err)
}
