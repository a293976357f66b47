package catalog

import (
	"bytes"
	"context"
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

func TestSaveTriesPrimaryBeforeFallback(t *testing.T) {
	var order []string
	primary := recordingLocation{MemoryLocation: NewMemoryLocation(), name: "primary", order: &order}
	fallback := recordingLocation{MemoryLocation: NewMemoryLocation(), name: "fallback", order: &order}

	c := NewCache(CacheConfig{Locations: []Location{primary, fallback}, Logger: zerolog.Nop()})
	res := c.Save(context.Background(), testCatalog(t))

	assert.Equal(t, []string{"write:primary"}, order, "fallback is not touched when primary succeeds")
	assert.Equal(t, "primary", res.Path)
	assert.False(t, res.Fallback)
	assert.Empty(t, res.Failures)
}

func TestSaveFallsBackAfterPrimaryFails(t *testing.T) {
	var order []string
	primary := failingLocation{name: "primary", order: &order}
	fallback := recordingLocation{MemoryLocation: NewMemoryLocation(), name: "fallback", order: &order}

	var buf bytes.Buffer
	c := NewCache(CacheConfig{Locations: []Location{primary, fallback}, Logger: zerolog.New(&buf)})
	res := c.Save(context.Background(), testCatalog(t))

	assert.Equal(t, []string{"write:primary", "write:fallback"}, order)
	assert.Equal(t, "fallback", res.Path)
	assert.True(t, res.Fallback)
	require.Len(t, res.Failures, 1)

	var cacheErr *apperrors.CacheError
	require.ErrorAs(t, res.Failures[0], &cacheErr)
	assert.Equal(t, "primary", cacheErr.Path)

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"fallback":"fallback"`)
}

func TestSaveNeverFails(t *testing.T) {
	var order []string
	var buf bytes.Buffer
	c := NewCache(CacheConfig{
		Locations: []Location{
			failingLocation{name: "a", order: &order},
			failingLocation{name: "b", order: &order},
		},
		Logger: zerolog.New(&buf),
	})

	res := c.Save(context.Background(), testCatalog(t))

	assert.True(t, res.MemoryOnly())
	assert.Len(t, res.Failures, 2)
	assert.Equal(t, []string{"write:a", "write:b"}, order)
	assert.Contains(t, buf.String(), "memory only")
}

func TestLoadReturnsNoCacheWhenEveryLocationMisses(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt")
	require.NoError(t, os.MkdirAll(corrupt, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(corrupt, CacheFileName), []byte("{not json"), 0644))

	var order []string
	c := NewCache(CacheConfig{
		Locations: []Location{
			NewFileLocation(filepath.Join(dir, "missing")),
			NewFileLocation(corrupt),
			failingLocation{name: "broken", order: &order},
			NewMemoryLocation(),
		},
		Logger: zerolog.Nop(),
	})

	cat, ok := c.Load(context.Background())
	assert.False(t, ok)
	assert.Nil(t, cat)
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(CacheConfig{
		Locations: []Location{NewFileLocation(dir)},
		MaxAge:    time.Hour,
		Logger:    zerolog.Nop(),
	})

	original := testCatalog(t)
	res := c.Save(context.Background(), original)
	require.Equal(t, filepath.Join(dir, CacheFileName), res.Path)

	loaded, ok := c.Load(context.Background())
	require.True(t, ok)

	assert.Equal(t, original.Models(), loaded.Models())
	got, want := loaded.Metadata(), original.Metadata()
	assert.Equal(t, protocol.SourceCache, got.Source)
	assert.Equal(t, res.Path, got.CachePath)
	assert.True(t, want.RetrievedAt.Equal(got.RetrievedAt))
	assert.Equal(t, want.RegionsQueried, got.RegionsQueried)
	assert.Equal(t, PackageVersion, got.PackageVersion)
}

func TestLoadRejectsExpiredAndIncompatible(t *testing.T) {
	mem := NewMemoryLocation()
	c := NewCache(CacheConfig{Locations: []Location{mem}, MaxAge: time.Hour, Logger: zerolog.Nop()})
	c.Save(context.Background(), testCatalog(t))

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, ok := c.Load(context.Background())
	assert.False(t, ok, "expired documents are skipped")

	c.now = time.Now
	_, ok = c.Load(context.Background())
	require.True(t, ok)

	data, err := mem.Read(context.Background())
	require.NoError(t, err)
	data = bytes.Replace(data, []byte(`"package_version": "`+PackageVersion+`"`), []byte(`"package_version": "2.0.0"`), 1)
	require.NoError(t, mem.Write(context.Background(), data))

	_, ok = c.Load(context.Background())
	assert.False(t, ok, "incompatible versions are skipped")
}

func TestLoadPrefersFirstValidLocation(t *testing.T) {
	first, second := NewMemoryLocation(), NewMemoryLocation()
	c := NewCache(CacheConfig{Locations: []Location{first, second}, Logger: zerolog.Nop()})

	other := NewCache(CacheConfig{Locations: []Location{second}, Logger: zerolog.Nop()})
	other.Save(context.Background(), testCatalog(t))

	cat, ok := c.Load(context.Background())
	require.True(t, ok, "falls through to the second location")
	assert.Equal(t, 2, cat.Len())
}

func TestSQLiteLocationRoundTrip(t *testing.T) {
	loc := NewSQLiteLocation(filepath.Join(t.TempDir(), "db", "catalog.db"))
	defer loc.Close()

	_, err := loc.Read(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	c := NewCache(CacheConfig{Locations: []Location{loc}, Logger: zerolog.Nop()})
	res := c.Save(context.Background(), testCatalog(t))
	require.False(t, res.MemoryOnly())

	cat, ok := c.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, loc.Path(), cat.Metadata().CachePath)
	assert.Equal(t, testCatalog(t).Models(), cat.Models())
}

func TestCompatibleVersion(t *testing.T) {
	assert.True(t, CompatibleVersion(PackageVersion))
	assert.True(t, CompatibleVersion("1.0.0"))
	assert.True(t, CompatibleVersion("v1.2"))
	assert.False(t, CompatibleVersion("1.99.0"))
	assert.False(t, CompatibleVersion("2.0.0"))
	assert.False(t, CompatibleVersion(""))
	assert.False(t, CompatibleVersion("banana"))
}
