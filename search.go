package mrlsearch

import (
	"context"
	"time"

	"github.com/hupe1980/mrlsearch/metadata"
	"github.com/hupe1980/mrlsearch/vecmath"
)

// Query creates a new fluent query builder for the given embedding.
//
// Example:
//
//	resp, err := engine.Query(embedding).
//	    K(10).
//	    Namespace("docs").
//	    Where(metadata.Eq("lang", metadata.String("en"))).
//	    TwoPhase().
//	    Execute(ctx)
func (e *SearchEngine) Query(embedding []float32) *QueryBuilder {
	return &QueryBuilder{
		engine:    e,
		embedding: embedding,
		k:         10, // Default k
		mode:      ModeSingle,
	}
}

// QueryBuilder is a fluent builder for constructing search queries.
type QueryBuilder struct {
	engine    *SearchEngine
	embedding []float32
	k         int
	mode      SearchMode

	opts    []SearchOption
	filters []metadata.Filter
}

// K sets the number of results to return.
func (qb *QueryBuilder) K(k int) *QueryBuilder {
	qb.k = k
	return qb
}

// Namespace restricts results to a single namespace.
func (qb *QueryBuilder) Namespace(ns string) *QueryBuilder {
	return qb.with(func(o *SearchOptions) { o.Filter.Namespace = ns })
}

// Type restricts results to a single type tag.
func (qb *QueryBuilder) Type(typ string) *QueryBuilder {
	return qb.with(func(o *SearchOptions) { o.Filter.Type = typ })
}

// Where adds metadata conditions. All conditions must match.
func (qb *QueryBuilder) Where(filters ...metadata.Filter) *QueryBuilder {
	qb.filters = append(qb.filters, filters...)
	return qb
}

// Metric overrides the similarity metric of the cluster index.
func (qb *QueryBuilder) Metric(m vecmath.Metric) *QueryBuilder {
	return qb.with(func(o *SearchOptions) { o.Metric = &m })
}

// Timeout bounds the query. Results gathered before expiry are returned
// and flagged partial.
func (qb *QueryBuilder) Timeout(d time.Duration) *QueryBuilder {
	return qb.with(func(o *SearchOptions) { o.Timeout = d })
}

// ProbeClusters sets how many clusters are searched. Zero probes all.
func (qb *QueryBuilder) ProbeClusters(n int) *QueryBuilder {
	return qb.with(func(o *SearchOptions) { o.ProbeClusters = n })
}

// MinClusterSimilarity skips clusters whose centroid scores below min.
func (qb *QueryBuilder) MinClusterSimilarity(min float32) *QueryBuilder {
	return qb.with(func(o *SearchOptions) { o.MinClusterSimilarity = &min })
}

// OverFetch sets the candidate multiplier used by two-phase search.
func (qb *QueryBuilder) OverFetch(factor int) *QueryBuilder {
	return qb.with(func(o *SearchOptions) { o.OverFetchFactor = factor })
}

// HotOnly skips the cold tier.
func (qb *QueryBuilder) HotOnly() *QueryBuilder {
	return qb.with(func(o *SearchOptions) {
		o.DisableHot = false
		o.DisableCold = true
	})
}

// ColdOnly skips the hot tier.
func (qb *QueryBuilder) ColdOnly() *QueryBuilder {
	return qb.with(func(o *SearchOptions) {
		o.DisableHot = true
		o.DisableCold = false
	})
}

// TwoPhase switches the query to candidate gathering plus full-dimension
// rerank.
func (qb *QueryBuilder) TwoPhase() *QueryBuilder {
	qb.mode = ModeTwoPhase
	return qb
}

func (qb *QueryBuilder) with(fn SearchOption) *QueryBuilder {
	qb.opts = append(qb.opts, fn)
	return qb
}

// Execute runs the query and returns the full response.
func (qb *QueryBuilder) Execute(ctx context.Context) (*Response, error) {
	opts := qb.opts
	if len(qb.filters) > 0 {
		fs := metadata.NewFilterSet(qb.filters...)
		opts = append(opts[:len(opts):len(opts)], func(o *SearchOptions) { o.MetadataFilter = fs })
	}
	if qb.mode == ModeTwoPhase {
		return qb.engine.TwoPhaseSearch(ctx, qb.embedding, qb.k, opts...)
	}
	return qb.engine.Search(ctx, qb.embedding, qb.k, opts...)
}

// Results runs the query and returns only the ranked results.
func (qb *QueryBuilder) Results(ctx context.Context) ([]SearchResult, error) {
	resp, err := qb.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// First returns only the best result, or ErrNotFound if none matched.
func (qb *QueryBuilder) First(ctx context.Context) (SearchResult, error) {
	qb.k = 1
	results, err := qb.Results(ctx)
	if err != nil {
		return SearchResult{}, err
	}
	if len(results) == 0 {
		return SearchResult{}, ErrNotFound
	}
	return results[0], nil
}

// Count executes the query and returns the number of results.
func (qb *QueryBuilder) Count(ctx context.Context) (int, error) {
	results, err := qb.Results(ctx)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

// Exists checks if at least one result matches the query.
func (qb *QueryBuilder) Exists(ctx context.Context) (bool, error) {
	qb.k = 1
	results, err := qb.Results(ctx)
	if err != nil {
		return false, err
	}
	return len(results) > 0, nil
}
