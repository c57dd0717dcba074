package estimator

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// DefaultCacheSize is the number of address pairs kept by CachedProvider.
const DefaultCacheSize = 256

// CachedProvider memoizes another provider per address pair. Concurrent
// lookups of the same pair share a single call to the wrapped provider.
type CachedProvider struct {
	next  Provider
	cache *lru.Cache[string, []RouteCandidate]
	group singleflight.Group
	hooks *Hooks
}

// NewCachedProvider wraps next with an LRU cache holding up to size pairs.
func NewCachedProvider(next Provider, size int, hooks *Hooks) (*CachedProvider, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	cache, err := lru.New[string, []RouteCandidate](size)
	if err != nil {
		return nil, fmt.Errorf("creating route cache: %w", err)
	}

	return &CachedProvider{
		next:  next,
		cache: cache,
		hooks: hooks,
	}, nil
}

// Candidates implements Provider.
func (p *CachedProvider) Candidates(ctx context.Context, from, to string) ([]RouteCandidate, error) {
	// Addresses are case sensitive for hashing, so the key is too.
	key := from + "\x00" + to

	if routes, ok := p.cache.Get(key); ok {
		p.observe(ctx, true)
		return slices.Clone(routes), nil
	}
	p.observe(ctx, false)

	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		routes, err := p.next.Candidates(ctx, from, to)
		if err != nil {
			return nil, err
		}
		p.cache.Add(key, routes)
		return routes, nil
	})
	if err != nil {
		return nil, err
	}

	return slices.Clone(v.([]RouteCandidate)), nil
}

func (p *CachedProvider) observe(ctx context.Context, hit bool) {
	p.hooks.cache(hit)
	tracing.AddEvent(ctx, "route_cache",
		trace.WithAttributes(tracing.CacheAttributes(tracing.CacheTypeRoutes, hit)...),
	)
}

// Len returns the number of cached address pairs.
func (p *CachedProvider) Len() int {
	return p.cache.Len()
}
