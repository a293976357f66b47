package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
)

// DefaultWorkers is the default width of the per-region worker pool.
const DefaultWorkers = 10

// ControlPlane lists the raw model and profile records of one region.
type ControlPlane interface {
	ListFoundationModels(ctx context.Context, region string) ([]FoundationModel, error)
	ListInferenceProfiles(ctx context.Context, region string) ([]InferenceProfile, error)
}

// FoundationModel is a raw control-plane model record.
type FoundationModel struct {
	ModelID            string
	ModelARN           string
	ModelName          string
	ProviderName       string
	InputModalities    []string
	OutputModalities   []string
	StreamingSupported bool
	InferenceTypes     []string // e.g. ON_DEMAND, PROVISIONED, INFERENCE_PROFILE
	LifecycleStatus    string
}

// InferenceProfile is a raw control-plane inference profile record.
type InferenceProfile struct {
	ID        string
	ARN       string
	Name      string
	Type      string // SYSTEM_DEFINED or APPLICATION
	Status    string
	ModelARNs []string
}

// RegionData is what one region returned.
type RegionData struct {
	Models   []FoundationModel
	Profiles []InferenceProfile
}

// FetchResult collects per-region data. Failed regions are excluded from
// Regions and listed in Failed.
type FetchResult struct {
	Regions     map[string]RegionData
	Failed      map[string]error
	RetrievedAt time.Time
}

// Succeeded returns the regions that answered, sorted.
func (r *FetchResult) Succeeded() []string {
	out := make([]string, 0, len(r.Regions))
	for region := range r.Regions {
		out = append(out, region)
	}
	sort.Strings(out)
	return out
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Regions     []string
	Workers     int
	CallTimeout time.Duration
	Policy      *apperrors.Policy // Per-call retry policy; FetchPolicy when nil
	Logger      zerolog.Logger
}

// Fetcher queries the control plane across regions in parallel.
type Fetcher struct {
	plane       ControlPlane
	regions     []string
	workers     int
	callTimeout time.Duration
	policy      *apperrors.Policy
	log         zerolog.Logger
	now         func() time.Time
}

// NewFetcher creates a fetcher over plane.
func NewFetcher(plane ControlPlane, cfg FetcherConfig) *Fetcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	policy := cfg.Policy
	if policy == nil {
		policy = apperrors.FetchPolicy()
	}
	return &Fetcher{
		plane:       plane,
		regions:     append([]string(nil), cfg.Regions...),
		workers:     workers,
		callTimeout: cfg.CallTimeout,
		policy:      policy,
		log:         cfg.Logger,
		now:         time.Now,
	}
}

// Fetch queries every configured region. It fails only when no region
// answered or ctx was cancelled.
func (f *Fetcher) Fetch(ctx context.Context) (*FetchResult, error) {
	if len(f.regions) == 0 {
		return nil, apperrors.User(apperrors.CodeConfigInvalid, "no regions configured for catalog fetch")
	}

	result := &FetchResult{
		Regions: make(map[string]RegionData, len(f.regions)),
		Failed:  make(map[string]error),
	}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(f.workers)
	for _, region := range f.regions {
		region := region
		g.Go(func() error {
			data, err := f.fetchRegion(ctx, region)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				f.log.Warn().Str("region", region).Err(err).Msg("region inaccessible; excluding from catalog")
				result.Failed[region] = err
				return nil
			}
			f.log.Debug().Str("region", region).
				Int("models", len(data.Models)).
				Int("profiles", len(data.Profiles)).
				Msg("fetched region")
			result.Regions[region] = data
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(result.Regions) == 0 {
		return nil, apperrors.Wrap(apperrors.Join(failedErrors(result.Failed)...),
			apperrors.CodeRegionFetchFailed,
			fmt.Sprintf("all %d regions failed", len(f.regions)),
			apperrors.CategoryTemporary)
	}

	result.RetrievedAt = f.now().UTC()
	return result, nil
}

func (f *Fetcher) fetchRegion(ctx context.Context, region string) (RegionData, error) {
	models, err := apperrors.DoWithResult(ctx, f.policy, func() ([]FoundationModel, error) {
		callCtx, cancel := f.callContext(ctx)
		defer cancel()
		return f.plane.ListFoundationModels(callCtx, region)
	})
	if err != nil {
		return RegionData{}, fmt.Errorf("list foundation models: %w", err)
	}

	profiles, err := apperrors.DoWithResult(ctx, f.policy, func() ([]InferenceProfile, error) {
		callCtx, cancel := f.callContext(ctx)
		defer cancel()
		return f.plane.ListInferenceProfiles(callCtx, region)
	})
	if err != nil {
		return RegionData{}, fmt.Errorf("list inference profiles: %w", err)
	}

	return RegionData{Models: models, Profiles: profiles}, nil
}

func (f *Fetcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.callTimeout > 0 {
		return context.WithTimeout(ctx, f.callTimeout)
	}
	return context.WithCancel(ctx)
}

func failedErrors(failed map[string]error) []error {
	regions := make([]string, 0, len(failed))
	for r := range failed {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	errs := make([]error, 0, len(regions))
	for _, r := range regions {
		errs = append(errs, fmt.Errorf("%s: %w", r, failed[r]))
	}
	return errs
}
