package manager

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Bestehorn/LLMManager-sub002/internal/catalog"
	"github.com/Bestehorn/LLMManager-sub002/internal/config"
	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
	"github.com/Bestehorn/LLMManager-sub002/internal/model"
	"github.com/Bestehorn/LLMManager-sub002/internal/params"
	"github.com/Bestehorn/LLMManager-sub002/internal/retry"
)

// Request is a request against a set of models and regions.
type Request struct {
	Models  []string // Catalog names or raw model ids, in priority order
	Regions []string // Empty means every region serving one of the models

	// Strategy overrides the configured candidate order.
	Strategy config.Strategy

	Messages  []model.Message
	System    []string
	Inference model.InferenceConfig
	Params    params.Config
}

// Candidates expands req into the ordered (model, region) list the engine
// walks. With explicit regions every pair is listed and the engine skips
// the unavailable ones; otherwise only pairs the catalog serves are listed.
func (m *Manager) Candidates(store *catalog.Store, req Request) ([]retry.Candidate, error) {
	if len(req.Models) == 0 {
		return nil, apperrors.User(apperrors.CodeValidation, "request names no models")
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = config.Strategy(m.cfg.Retry.Strategy)
	}

	regions := req.Regions
	explicit := len(regions) > 0
	if !explicit {
		regions = m.servingRegions(store, req.Models)
	}

	var out []retry.Candidate
	for _, c := range Expand(req.Models, regions, strategy) {
		if explicit || store.IsAvailable(c.Model, c.Region) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, apperrors.NewBuilder(apperrors.CodeModelNotFound, "no requested model is available in any region").
			Category(apperrors.CategoryUser).
			WithContext("models", req.Models).
			WithSuggestion("Check the model names against the catalog or refresh it").
			Build()
	}
	return out, nil
}

// servingRegions lists the regions serving any of models: configured regions
// first in their configured order, then any others alphabetically.
func (m *Manager) servingRegions(store *catalog.Store, models []string) []string {
	serving := make(map[string]bool)
	for _, name := range models {
		for _, r := range store.RegionsForModel(name) {
			serving[r] = true
		}
	}

	var out []string
	for _, r := range m.cfg.Catalog.Regions {
		if serving[r] {
			out = append(out, r)
			delete(serving, r)
		}
	}
	rest := make([]string, 0, len(serving))
	for r := range serving {
		rest = append(rest, r)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Expand lists every (model, region) pair in strategy order. region_first
// tries every region of a model before the next model; model_first tries
// every model in a region before the next region.
func Expand(models, regions []string, strategy config.Strategy) []retry.Candidate {
	out := make([]retry.Candidate, 0, len(models)*len(regions))
	if strategy == config.StrategyModelFirst {
		for _, r := range regions {
			for _, name := range models {
				out = append(out, retry.Candidate{Model: name, Region: r})
			}
		}
		return out
	}
	for _, name := range models {
		for _, r := range regions {
			out = append(out, retry.Candidate{Model: name, Region: r})
		}
	}
	return out
}

// ====================================================================
// Batch
// ====================================================================

// BatchResult is the outcome of one request of a batch.
type BatchResult struct {
	Index  int
	Result *retry.Result
	Err    error
}

// ConverseBatch runs independent requests in parallel, at most
// retry.batch_concurrency at a time. Results are returned in request order;
// one request failing does not stop the others.
func (m *Manager) ConverseBatch(ctx context.Context, reqs []Request) []BatchResult {
	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(m.cfg.Retry.BatchConcurrency)
	for i := range reqs {
		i := i
		g.Go(func() error {
			res, err := m.Converse(ctx, reqs[i])
			results[i] = BatchResult{Index: i, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	m.log.Debug().Int("requests", len(reqs)).Msg("batch finished")
	return results
}
