// Package embedding supplies full-resolution embeddings for candidate
// re-ranking.
//
// The search engine never stores full embeddings itself. During the second
// phase of a two-phase search it asks a Provider for the full vectors of
// the candidate ids and drops candidates the provider cannot resolve.
package embedding

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Provider resolves ids to full-dimension embeddings.
//
// Ids the provider does not know are absent from the result or map to nil.
// An error means the lookup as a whole failed.
type Provider interface {
	FullEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, ids []string) (map[string][]float32, error)

// FullEmbeddings implements Provider.
func (f ProviderFunc) FullEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error) {
	return f(ctx, ids)
}

// MapProvider is an in-memory Provider. It is safe for concurrent use.
type MapProvider struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewMapProvider creates a provider seeded with a copy of vectors.
func NewMapProvider(vectors map[string][]float32) *MapProvider {
	m := &MapProvider{vectors: make(map[string][]float32, len(vectors))}
	for id, v := range vectors {
		m.vectors[id] = slices.Clone(v)
	}
	return m
}

// Set stores the embedding for id.
func (m *MapProvider) Set(id string, v []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[id] = slices.Clone(v)
}

// Delete removes id.
func (m *MapProvider) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, id)
}

// Len returns the number of stored embeddings.
func (m *MapProvider) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// IDs returns the stored ids in sorted order.
func (m *MapProvider) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.vectors))
}

// FullEmbeddings implements Provider.
func (m *MapProvider) FullEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]float32, len(ids))
	for _, id := range ids {
		if v, ok := m.vectors[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}
