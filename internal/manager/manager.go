// Package manager is the entry point of the module. It acquires the model
// catalog once, owns the shared compatibility trackers and runs requests
// through the retry engine, singly or as a bounded parallel batch.
package manager

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bestehorn/LLMManager-sub002/internal/access"
	"github.com/Bestehorn/LLMManager-sub002/internal/catalog"
	"github.com/Bestehorn/LLMManager-sub002/internal/classifier"
	"github.com/Bestehorn/LLMManager-sub002/internal/config"
	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
	"github.com/Bestehorn/LLMManager-sub002/internal/logging"
	"github.com/Bestehorn/LLMManager-sub002/internal/model"
	"github.com/Bestehorn/LLMManager-sub002/internal/params"
	"github.com/Bestehorn/LLMManager-sub002/internal/retry"
	"github.com/Bestehorn/LLMManager-sub002/internal/stats"
	"github.com/Bestehorn/LLMManager-sub002/internal/tracker"
	"github.com/Bestehorn/LLMManager-sub002/internal/usage"
	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// Options wires a Manager to its collaborators. Config and Invoker are
// required; a nil ControlPlane disables live catalog fetches.
type Options struct {
	Config       *config.Config
	ControlPlane catalog.ControlPlane
	Invoker      model.Invoker
	Logger       zerolog.Logger

	// Bundled overrides the embedded snapshot loader.
	Bundled catalog.BundledLoader
	// Classifier overrides the default outcome patterns.
	Classifier *classifier.Classifier
}

// Manager serves requests against a catalog snapshot. It is safe for
// concurrent use.
type Manager struct {
	cfg      config.Config
	acquirer *catalog.Acquirer
	store    atomic.Pointer[catalog.Store]
	engine   *retry.Engine
	params   *tracker.ParameterTracker
	access   *tracker.AccessTracker
	usage    *usage.Tracker
	stats    *stats.Collector
	log      zerolog.Logger
	closers  []io.Closer
}

// New builds every component from opts and acquires the initial catalog.
// It fails only when no catalog source succeeds.
func New(ctx context.Context, opts Options) (*Manager, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Invoker == nil {
		return nil, apperrors.User(apperrors.CodeConfigInvalid, "manager needs an invoker")
	}
	cfg := *opts.Config

	m := &Manager{
		cfg:    cfg,
		params: tracker.NewParameterTracker(cfg.Trackers.Capacity),
		access: tracker.NewAccessTracker(cfg.Trackers.Capacity),
		usage:  usage.NewTracker(),
		log:    logging.Component(opts.Logger, "manager"),
	}
	if cfg.Metrics.Enabled {
		m.stats = stats.NewCollector(cfg.Metrics.Namespace)
	}

	cache, err := m.buildCache(opts.Logger)
	if err != nil {
		return nil, err
	}

	var fetcher *catalog.Fetcher
	if opts.ControlPlane != nil {
		policy := apperrors.FetchPolicy()
		policy.MaxAttempts = cfg.Catalog.FetchAttempts
		fetcher = catalog.NewFetcher(opts.ControlPlane, catalog.FetcherConfig{
			Regions:     cfg.Catalog.Regions,
			Workers:     cfg.Catalog.Workers,
			CallTimeout: cfg.Catalog.CallTimeout.Duration,
			Policy:      policy,
			Logger:      logging.Component(opts.Logger, "fetcher"),
		})
	}

	var bundled catalog.BundledLoader
	if cfg.Catalog.BundledFallback {
		bundled = opts.Bundled
		if bundled == nil {
			bundled = catalog.LoadBundled
		}
	}

	m.acquirer = catalog.NewAcquirer(catalog.AcquirerConfig{
		Cache:        cache,
		Fetcher:      fetcher,
		Bundled:      bundled,
		ForceRefresh: cfg.Catalog.ForceRefresh,
		Logger:       logging.Component(opts.Logger, "catalog"),
		Stats:        m.stats,
	})

	engineLog := logging.Component(opts.Logger, "retry")
	m.engine = retry.NewEngine(retry.Config{
		MaxAttempts:      cfg.Retry.MaxAttempts,
		TransientRetries: cfg.Retry.TransientRetries,
		Backoff: &apperrors.Policy{
			MaxAttempts:  cfg.Retry.TransientRetries + 1,
			InitialDelay: cfg.Retry.InitialDelay.Duration,
			MaxDelay:     cfg.Retry.MaxDelay.Duration,
			Multiplier:   2.0,
			Jitter:       true,
			RetryIf:      apperrors.IsRetryable,
		},
		CallTimeout: cfg.Retry.CallTimeout.Duration,
		Invoker:     opts.Invoker,
		Selector:    access.NewSelector(engineLog),
		Builder:     params.NewBuilder(cfg.Params.ExtendedContextModels, engineLog),
		Classifier:  opts.Classifier,
		Parameters:  m.params,
		Access:      m.access,
		Stats:       m.stats,
		Logger:      engineLog,
	})

	cat, err := m.acquirer.Acquire(ctx)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	m.store.Store(catalog.NewStore(cat))

	meta := cat.Metadata()
	m.log.Info().
		Str("source", string(meta.Source)).
		Int("models", cat.Len()).
		Time("retrieved_at", meta.RetrievedAt).
		Msg("model catalog ready")
	return m, nil
}

// buildCache maps the configured cache mode to an ordered location list.
// A nil cache disables both lookup and persistence.
func (m *Manager) buildCache(log zerolog.Logger) (*catalog.Cache, error) {
	var locations []catalog.Location

	switch config.CacheMode(m.cfg.Catalog.CacheMode) {
	case config.CacheModeNone:
		return nil, nil
	case config.CacheModeMemory:
		locations = append(locations, catalog.NewMemoryLocation())
	case config.CacheModeSQLite:
		db := catalog.NewSQLiteLocation(m.cfg.Catalog.SQLitePath)
		m.closers = append(m.closers, db)
		locations = append(locations, db)
		if dir := m.cfg.Catalog.FallbackCacheDir; dir != "" {
			locations = append(locations, catalog.NewFileLocation(dir))
		}
	case config.CacheModeFile:
		locations = append(locations, catalog.NewFileLocation(m.cfg.Catalog.CacheDir))
		if dir := m.cfg.Catalog.FallbackCacheDir; dir != "" && dir != m.cfg.Catalog.CacheDir {
			locations = append(locations, catalog.NewFileLocation(dir))
		}
	default:
		return nil, apperrors.User(apperrors.CodeConfigInvalid,
			fmt.Sprintf("unknown cache mode %q", m.cfg.Catalog.CacheMode))
	}

	return catalog.NewCache(catalog.CacheConfig{
		Locations: locations,
		MaxAge:    m.cfg.Catalog.MaxAge.Duration,
		Logger:    logging.Component(log, "cache"),
		Stats:     m.stats,
	}), nil
}

// Catalog returns the current catalog snapshot.
func (m *Manager) Catalog() *catalog.Store {
	return m.store.Load()
}

// RefreshCatalog fetches a fresh catalog, bypassing the cache, and swaps it
// in. Requests already running keep the snapshot they started with. On
// failure the current snapshot stays in place, and a bundled snapshot never
// replaces fetched or cached data.
func (m *Manager) RefreshCatalog(ctx context.Context) error {
	cat, err := m.acquirer.Refresh(ctx)
	if err != nil {
		return err
	}
	current := m.store.Load().Metadata()
	if cat.Metadata().Source == protocol.SourceBundled && current.Source != protocol.SourceBundled {
		m.log.Warn().
			Str("current_source", string(current.Source)).
			Time("current_retrieved_at", current.RetrievedAt).
			Msg("refresh fell back to bundled catalog; keeping current snapshot")
		return nil
	}
	m.store.Store(catalog.NewStore(cat))
	m.log.Info().
		Str("source", string(cat.Metadata().Source)).
		Int("models", cat.Len()).
		Msg("model catalog refreshed")
	return nil
}

// Converse runs one request.
func (m *Manager) Converse(ctx context.Context, req Request) (*retry.Result, error) {
	store := m.store.Load()

	candidates, err := m.Candidates(store, req)
	if err != nil {
		return nil, err
	}
	res, err := m.engine.Execute(ctx, store, &retry.Request{
		Candidates: candidates,
		Messages:   req.Messages,
		System:     req.System,
		Inference:  req.Inference,
		Params:     req.Params,
	})
	if err != nil {
		return nil, err
	}
	m.usage.Record(res.Model, res.AccessMethod, res.Response.Usage)
	return res, nil
}

// Stats returns the tracker statistics.
func (m *Manager) Stats() TrackerStats {
	return TrackerStats{
		Parameters: m.params.Statistics(),
		Access:     m.access.Statistics(),
	}
}

// TrackerStats is a snapshot of both compatibility trackers.
type TrackerStats struct {
	Parameters tracker.ParameterStats `json:"parameters"`
	Access     tracker.AccessStats    `json:"access"`
}

// ResetTrackers forgets everything learned so far.
func (m *Manager) ResetTrackers() {
	m.params.Reset()
	m.access.Reset()
}

// Usage returns the token usage tracker.
func (m *Manager) Usage() *usage.Tracker {
	return m.usage
}

// Metrics returns the collector, or nil when metrics are disabled.
func (m *Manager) Metrics() *stats.Collector {
	return m.stats
}

// CatalogAge returns how old the current snapshot is.
func (m *Manager) CatalogAge() time.Duration {
	return time.Since(m.store.Load().Metadata().RetrievedAt)
}

// Close releases cache resources.
func (m *Manager) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return apperrors.Join(errs...)
}
