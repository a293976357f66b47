package catalog

import (
	"context"

	"github.com/rs/zerolog"

	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
	"github.com/Bestehorn/LLMManager-sub002/internal/stats"
	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// AcquirerConfig wires the three catalog sources. A nil Cache disables
// caching; a nil Bundled disables the last-resort snapshot.
type AcquirerConfig struct {
	Cache        *Cache
	Fetcher      *Fetcher
	Bundled      BundledLoader
	ForceRefresh bool
	Logger       zerolog.Logger
	Stats        *stats.Collector
}

// Acquirer runs the cache, live fetch, bundled waterfall.
type Acquirer struct {
	cache        *Cache
	fetcher      *Fetcher
	bundled      BundledLoader
	forceRefresh bool
	log          zerolog.Logger
	stats        *stats.Collector
}

// NewAcquirer creates an acquirer.
func NewAcquirer(cfg AcquirerConfig) *Acquirer {
	return &Acquirer{
		cache:        cfg.Cache,
		fetcher:      cfg.Fetcher,
		bundled:      cfg.Bundled,
		forceRefresh: cfg.ForceRefresh,
		log:          cfg.Logger,
		stats:        cfg.Stats,
	}
}

// Acquire returns a catalog from the first source that yields one. It fails
// only with a *errors.CatalogUnavailableError carrying every stage's reason,
// or with ctx.Err() when cancelled.
func (a *Acquirer) Acquire(ctx context.Context) (*UnifiedCatalog, error) {
	return a.acquire(ctx, a.forceRefresh)
}

// Refresh skips the cache lookup and goes straight to a live fetch.
func (a *Acquirer) Refresh(ctx context.Context) (*UnifiedCatalog, error) {
	return a.acquire(ctx, true)
}

func (a *Acquirer) acquire(ctx context.Context, skipCache bool) (*UnifiedCatalog, error) {
	reasons := make(map[apperrors.Stage]error)

	// 1. Cache
	switch {
	case a.cache == nil:
		reasons[apperrors.StageCache] = apperrors.ErrNoCache
	case skipCache:
		a.log.Debug().Msg("catalog cache lookup skipped by refresh")
		reasons[apperrors.StageCache] = apperrors.ErrNoCache
	default:
		if cat, ok := a.cache.Load(ctx); ok {
			a.stats.RecordAcquisition(protocol.SourceCache)
			return cat, nil
		}
		reasons[apperrors.StageCache] = apperrors.ErrNoCache
	}

	// 2. Live fetch, 3. best-effort persistence
	if a.fetcher != nil {
		cat, err := a.fetch(ctx)
		if err == nil {
			if a.cache != nil {
				a.cache.Save(ctx, cat)
			}
			a.stats.RecordAcquisition(protocol.SourceAPI)
			return cat, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.Warn().Err(err).Msg("live catalog fetch failed")
		reasons[apperrors.StageAPI] = err
	} else {
		reasons[apperrors.StageAPI] = apperrors.System(apperrors.CodeCatalogUnavailable, "no control plane configured")
	}

	// 4. Bundled snapshot
	if a.bundled != nil {
		cat, err := a.bundled()
		if err == nil {
			a.log.Warn().
				Time("retrieved_at", cat.Metadata().RetrievedAt).
				Msg("using bundled model catalog; data may be stale")
			a.stats.RecordAcquisition(protocol.SourceBundled)
			return cat, nil
		}
		reasons[apperrors.StageBundled] = apperrors.Wrap(err, apperrors.CodeBundledInvalid,
			"bundled catalog unusable", apperrors.CategoryPermanent)
	} else {
		reasons[apperrors.StageBundled] = apperrors.Permanent(apperrors.CodeBundledInvalid, "bundled fallback disabled")
	}

	unavailable := &apperrors.CatalogUnavailableError{Reasons: reasons}
	a.log.Error().Err(unavailable).Msg("no model catalog source succeeded")
	return nil, unavailable
}

func (a *Acquirer) fetch(ctx context.Context) (*UnifiedCatalog, error) {
	res, err := a.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Failed) > 0 {
		failed := make([]string, 0, len(res.Failed))
		for r := range res.Failed {
			failed = append(failed, r)
		}
		a.log.Warn().Strs("regions", failed).Msg("catalog built without inaccessible regions")
	}

	cat, err := Transform(res)
	if err != nil {
		return nil, err
	}
	a.log.Info().
		Int("models", cat.Len()).
		Strs("regions", cat.Metadata().RegionsQueried).
		Msg("fetched model catalog")
	return cat, nil
}
