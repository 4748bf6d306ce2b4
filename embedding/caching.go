package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingProvider keeps recently resolved embeddings in an LRU cache and
// only forwards misses to the wrapped provider. Unknown ids are not cached.
type CachingProvider struct {
	next  Provider
	cache *lru.Cache[string, []float32]
}

// NewCachingProvider wraps next with a cache of up to size embeddings.
func NewCachingProvider(next Provider, size int) (*CachingProvider, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &CachingProvider{next: next, cache: c}, nil
}

// FullEmbeddings implements Provider.
func (p *CachingProvider) FullEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(ids))
	var misses []string
	for _, id := range ids {
		if v, ok := p.cache.Get(id); ok {
			out[id] = v
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := p.next.FullEmbeddings(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, v := range fetched {
		if v == nil {
			continue
		}
		p.cache.Add(id, v)
		out[id] = v
	}
	return out, nil
}

// Len returns the number of cached embeddings.
func (p *CachingProvider) Len() int { return p.cache.Len() }

// Purge empties the cache.
func (p *CachingProvider) Purge() { p.cache.Purge() }
