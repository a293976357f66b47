package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
	"github.com/Bestehorn/LLMManager-sub002/internal/stats"
	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// CacheFileName is the document name inside a cache directory.
const CacheFileName = "bedrock_catalog.json"

// Location is one place a catalog document can be stored.
type Location interface {
	// Path names the location in logs.
	Path() string
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// ============================================================
// File location
// ============================================================

// FileLocation stores the document as a file.
type FileLocation struct {
	path string
}

// NewFileLocation returns a location for the document file inside dir.
func NewFileLocation(dir string) *FileLocation {
	return &FileLocation{path: filepath.Join(dir, CacheFileName)}
}

// Path returns the document file path.
func (f *FileLocation) Path() string { return f.path }

// Read returns the file contents.
func (f *FileLocation) Read(_ context.Context) ([]byte, error) {
	return os.ReadFile(f.path)
}

// Write creates the parent directory and replaces the file atomically.
func (f *FileLocation) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".catalog-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ============================================================
// Memory location
// ============================================================

// MemoryLocation keeps the document in process memory. Share one instance
// to let later acquisitions in the same process hit the cache.
type MemoryLocation struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryLocation returns an empty in-memory location.
func NewMemoryLocation() *MemoryLocation {
	return &MemoryLocation{}
}

// Path returns a fixed descriptive name.
func (m *MemoryLocation) Path() string { return "memory://catalog" }

// Read returns the stored document.
func (m *MemoryLocation) Read(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), m.data...), nil
}

// Write replaces the stored document.
func (m *MemoryLocation) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

// ============================================================
// Multi-location cache
// ============================================================

// SaveResult reports where a save landed.
type SaveResult struct {
	Path     string  // Empty when every location failed
	Fallback bool    // True when a non-primary location took the write
	Failures []error // One *errors.CacheError per failed location
}

// MemoryOnly reports whether no location accepted the write.
func (r SaveResult) MemoryOnly() bool { return r.Path == "" }

// Cache walks an ordered list of locations: primary first, then fallbacks.
// The order is fixed at construction.
type Cache struct {
	locations []Location
	maxAge    time.Duration
	now       func() time.Time
	log       zerolog.Logger
	stats     *stats.Collector
}

// CacheConfig configures a Cache.
type CacheConfig struct {
	Locations []Location
	MaxAge    time.Duration
	Logger    zerolog.Logger
	Stats     *stats.Collector
}

// NewCache creates a cache over the given locations.
func NewCache(cfg CacheConfig) *Cache {
	return &Cache{
		locations: append([]Location(nil), cfg.Locations...),
		maxAge:    cfg.MaxAge,
		now:       time.Now,
		log:       cfg.Logger,
		stats:     cfg.Stats,
	}
}

// Locations returns the location paths in priority order.
func (c *Cache) Locations() []string {
	paths := make([]string, len(c.locations))
	for i, loc := range c.locations {
		paths[i] = loc.Path()
	}
	return paths
}

// Load returns the first valid, fresh, version-compatible catalog. The second
// result is false when no location holds one; Load never fails.
func (c *Cache) Load(ctx context.Context) (*UnifiedCatalog, bool) {
	for _, loc := range c.locations {
		cat, err := c.loadFrom(ctx, loc)
		if err != nil {
			c.log.Debug().Str("path", loc.Path()).Err(err).Msg("catalog cache miss")
			continue
		}
		c.log.Info().Str("path", loc.Path()).Time("retrieved_at", cat.Metadata().RetrievedAt).Msg("loaded catalog from cache")
		return cat, true
	}
	return nil, false
}

func (c *Cache) loadFrom(ctx context.Context, loc Location) (*UnifiedCatalog, error) {
	fail := func(code string, err error) error {
		return &apperrors.CacheError{Op: "load", Path: loc.Path(), Code: code, Err: err}
	}

	data, err := loc.Read(ctx)
	if err != nil {
		return nil, fail(apperrors.CodeCacheRead, err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fail(apperrors.CodeCacheInvalid, err)
	}
	if !CompatibleVersion(doc.Metadata.PackageVersion) {
		return nil, fail(apperrors.CodeCacheVersion,
			fmt.Errorf("document version %s, running %s", doc.Metadata.PackageVersion, PackageVersion))
	}
	if age := c.now().Sub(doc.Metadata.RetrievedAt); c.maxAge > 0 && age > c.maxAge {
		return nil, fail(apperrors.CodeCacheExpired, fmt.Errorf("age %s exceeds %s", age.Round(time.Second), c.maxAge))
	}
	cat, err := doc.Catalog(protocol.SourceCache, loc.Path())
	if err != nil {
		return nil, fail(apperrors.CodeCacheInvalid, err)
	}
	return cat, nil
}

// Save writes the catalog to the first location that accepts it. It never
// fails: problems are logged and reported in the result.
func (c *Cache) Save(ctx context.Context, cat *UnifiedCatalog) SaveResult {
	var result SaveResult

	data, err := Encode(cat)
	if err != nil {
		c.log.Warn().Err(err).Msg("could not serialize catalog; keeping it in memory only")
		result.Failures = append(result.Failures, &apperrors.CacheError{Op: "save", Code: apperrors.CodeCacheWrite, Err: err})
		c.stats.RecordCacheWrite("memory_only")
		return result
	}

	for i, loc := range c.locations {
		if err := loc.Write(ctx, data); err != nil {
			c.log.Warn().Str("path", loc.Path()).Err(err).Msg("catalog cache write failed")
			result.Failures = append(result.Failures,
				&apperrors.CacheError{Op: "save", Path: loc.Path(), Code: apperrors.CodeCacheWrite, Err: err})
			continue
		}

		result.Path = loc.Path()
		if i == 0 {
			c.log.Info().Str("path", loc.Path()).Msg("saved catalog to cache")
			c.stats.RecordCacheWrite("primary")
		} else {
			result.Fallback = true
			c.log.Warn().
				Str("primary", c.locations[0].Path()).
				Str("fallback", loc.Path()).
				Msg("primary cache location not writable; saved catalog to fallback location")
			c.stats.RecordCacheWrite("fallback")
		}
		return result
	}

	c.log.Warn().Strs("locations", c.Locations()).Msg("no cache location writable; catalog held in memory only")
	c.stats.RecordCacheWrite("memory_only")
	return result
}
