package model

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Factory builds the invoker serving one region.
type Factory func(ctx context.Context, region string) (Invoker, error)

// Router dispatches requests to a per-region invoker, building each one
// on first use. A slow build blocks only callers of the same region.
type Router struct {
	factory Factory
	builds  singleflight.Group

	mu      sync.Mutex
	regions map[string]Invoker
}

// NewRouter creates a router over factory.
func NewRouter(factory Factory) *Router {
	return &Router{
		factory: factory,
		regions: make(map[string]Invoker),
	}
}

// Invoke validates req and forwards it to the invoker for req.Region.
func (r *Router) Invoke(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	inv, err := r.invoker(ctx, req.Region)
	if err != nil {
		return nil, err
	}
	return inv.Invoke(ctx, req)
}

// Regions returns the number of regions with a built invoker.
func (r *Router) Regions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.regions)
}

func (r *Router) invoker(ctx context.Context, region string) (Invoker, error) {
	if inv, ok := r.cached(region); ok {
		return inv, nil
	}
	v, err, _ := r.builds.Do(region, func() (any, error) {
		if inv, ok := r.cached(region); ok {
			return inv, nil
		}
		inv, err := r.factory(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("create invoker for %s: %w", region, err)
		}
		r.mu.Lock()
		r.regions[region] = inv
		r.mu.Unlock()
		return inv, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Invoker), nil
}

func (r *Router) cached(region string) (Invoker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.regions[region]
	return inv, ok
}
