package mrlsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/mrlsearch/blobstore"
	"github.com/hupe1980/mrlsearch/clusterindex"
	"github.com/hupe1980/mrlsearch/hot"
	"github.com/hupe1980/mrlsearch/merge"
	"github.com/hupe1980/mrlsearch/model"
	"github.com/hupe1980/mrlsearch/partition"
	"github.com/hupe1980/mrlsearch/vecmath"
)

const tracerName = "github.com/hupe1980/mrlsearch"

// SearchEngine answers similarity queries over a hot tier and a
// cluster-partitioned cold tier. It holds no per-query state and is safe
// for concurrent use.
type SearchEngine struct {
	store   blobstore.BlobStore
	indexes clusterindex.Provider
	fetcher *partition.Fetcher
	opts    options
	tracer  trace.Tracer
}

// New creates a search engine.
//
// store and indexes make up the cold tier; pass nil for both to run a
// hot-only engine. At least one tier must be configured.
func New(store blobstore.BlobStore, indexes clusterindex.Provider, optFns ...Option) (*SearchEngine, error) {
	opts := applyOptions(optFns)

	if (store == nil) != (indexes == nil) {
		return nil, errors.New("cold tier needs both a blob store and a cluster index provider")
	}
	if store == nil && opts.hot == nil {
		return nil, ErrNoTierEnabled
	}
	if !vecmath.IsSupportedDimension(opts.fullDimension) {
		return nil, &vecmath.ErrUnsupportedDimension{Dimension: opts.fullDimension}
	}
	if opts.hot != nil && opts.hot.Dimension() > opts.fullDimension {
		return nil, &vecmath.ErrDimensionTooSmall{Required: opts.hot.Dimension(), Actual: opts.fullDimension}
	}
	if opts.metric != nil {
		if _, err := vecmath.Provider(*opts.metric); err != nil {
			return nil, err
		}
	}
	if opts.probeClusters < 0 {
		return nil, fmt.Errorf("probe clusters must not be negative: %d", opts.probeClusters)
	}
	if opts.overFetchFactor < 1 {
		return nil, fmt.Errorf("over-fetch factor must be at least 1: %d", opts.overFetchFactor)
	}
	if opts.maxCandidates < 1 {
		return nil, fmt.Errorf("max candidates must be at least 1: %d", opts.maxCandidates)
	}
	if opts.concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1: %d", opts.concurrency)
	}

	e := &SearchEngine{
		store:   store,
		indexes: indexes,
		opts:    opts,
	}
	if store != nil {
		e.fetcher = opts.fetcher
		if e.fetcher == nil {
			fo := append([]partition.FetcherOption{partition.WithFetcherLogger(opts.logger.Logger)}, opts.fetcherOptions...)
			e.fetcher = partition.NewFetcher(store, fo...)
		}
	}

	tp := opts.tracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	e.tracer = tp.Tracer(tracerName)
	return e, nil
}

// Search runs a single-pass tiered search: the hot tier and the cold tier
// are queried concurrently and combined, with cold scores taking precedence
// for ids found in both.
func (e *SearchEngine) Search(ctx context.Context, embedding []float32, k int, optFns ...SearchOption) (*Response, error) {
	return e.run(ctx, ModeSingle, embedding, k, optFns)
}

// TwoPhaseSearch gathers k×over-fetch candidates cheaply, then reranks them
// with exact full-dimension similarity using the embedding provider.
//
// Phase one uses the hot tier when available and otherwise scans the probed
// partitions at the cluster index dimension. Candidates without a full
// embedding are dropped. If the provider fails, the phase one ranking is
// returned with Stats.RerankSkipped set.
func (e *SearchEngine) TwoPhaseSearch(ctx context.Context, embedding []float32, k int, optFns ...SearchOption) (*Response, error) {
	return e.run(ctx, ModeTwoPhase, embedding, k, optFns)
}

func (e *SearchEngine) run(ctx context.Context, mode SearchMode, embedding []float32, k int, optFns []SearchOption) (*Response, error) {
	start := time.Now()
	so := e.searchOptions(optFns)
	resp := &Response{Stats: SearchStats{QueryID: uuid.NewString(), Mode: mode}}
	logger := e.opts.logger.WithQueryID(resp.Stats.QueryID)

	ctx, span := e.tracer.Start(ctx, "mrlsearch."+string(mode), trace.WithAttributes(
		attribute.String("query_id", resp.Stats.QueryID),
		attribute.Int("k", k),
	))
	defer span.End()

	q := &query{
		engine:    e,
		parent:    ctx,
		embedding: embedding,
		k:         k,
		opts:      so,
		stats:     &resp.Stats,
		logger:    logger,
	}

	var err error
	if err = e.validate(mode, embedding, k, so); err == nil {
		if so.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, so.Timeout)
			defer cancel()
		}
		if mode == ModeTwoPhase {
			resp.Results, err = q.twoPhase(ctx)
		} else {
			resp.Results, err = q.single(ctx)
		}
	}

	resp.Stats.Results = len(resp.Results)
	resp.Stats.Duration = time.Since(start)
	e.opts.metricsCollector.RecordSearch(mode, k, resp.Stats.Duration, err)
	logger.LogSearch(ctx, mode, k, &resp.Stats, err)

	span.SetAttributes(
		attribute.Int("results", resp.Stats.Results),
		attribute.Int("partitions.queried", resp.Stats.PartitionsQueried),
		attribute.Bool("partial", resp.Stats.Partial),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp, nil
}

func (e *SearchEngine) validate(mode SearchMode, embedding []float32, k int, so SearchOptions) error {
	if k <= 0 {
		return ErrInvalidK
	}
	if err := vecmath.ValidateDimensions(embedding, e.opts.fullDimension); err != nil {
		return err
	}
	if vecmath.Norm(embedding) == 0 {
		return vecmath.ErrZeroVector
	}
	if so.Metric != nil {
		if _, err := vecmath.Provider(*so.Metric); err != nil {
			return err
		}
	}
	if !e.hotEnabled(so) && !e.coldEnabled(so) {
		return ErrNoTierEnabled
	}
	if mode == ModeTwoPhase && e.opts.embeddings == nil {
		return ErrNoEmbeddingProvider
	}
	return nil
}

func (e *SearchEngine) hotEnabled(so SearchOptions) bool {
	return e.opts.hot != nil && !so.DisableHot
}

func (e *SearchEngine) coldEnabled(so SearchOptions) bool {
	return e.store != nil && !so.DisableCold
}

// HotTier returns the configured hot index, or nil.
func (e *SearchEngine) HotTier() *hot.Index { return e.opts.hot }

// ClusterIndex returns the snapshot the next query would route with.
func (e *SearchEngine) ClusterIndex(ctx context.Context) (*model.ClusterIndex, error) {
	if e.indexes == nil {
		return nil, ErrNoTierEnabled
	}
	return e.indexes.Current(ctx)
}

// query carries the state of one search.
type query struct {
	engine    *SearchEngine
	parent    context.Context
	embedding []float32
	k         int
	opts      SearchOptions
	metric    vecmath.Metric
	stats     *SearchStats
	logger    *Logger
}

// cancelled reports a caller cancellation, as opposed to an expired
// deadline, which only makes the result partial.
func (q *query) cancelled() error {
	if err := q.parent.Err(); errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (q *query) single(ctx context.Context) ([]model.SearchResult, error) {
	e := q.engine

	var (
		hotRes, coldRes []model.SearchResult
		hotErr, coldErr error
		g               errgroup.Group
	)
	idx, idxErr := q.resolveIndex(ctx)

	if e.hotEnabled(q.opts) {
		g.Go(func() error {
			hotRes, hotErr = q.searchHot(ctx, q.k)
			return nil
		})
	}
	if e.coldEnabled(q.opts) {
		g.Go(func() error {
			if idxErr != nil {
				coldErr = idxErr
				return nil
			}
			coldRes, coldErr = q.searchCold(ctx, idx, q.k, 0)
			return nil
		})
	}
	_ = g.Wait()

	if err := q.cancelled(); err != nil {
		return nil, err
	}
	hotErr = q.softenDeadline(hotErr)
	if err := q.reconcile(hotRes, hotErr, coldRes, coldErr); err != nil {
		return nil, err
	}

	q.stats.HotResults = len(hotRes)
	q.stats.ColdResults = len(coldRes)
	return merge.CombineTieredResults(hotRes, coldRes, q.k), nil
}

// reconcile decides whether tier errors fail the query. A tier failure is
// absorbed when the other tier produced results.
func (q *query) reconcile(hotRes []model.SearchResult, hotErr error, coldRes []model.SearchResult, coldErr error) error {
	if hotErr != nil && coldErr != nil {
		return coldErr
	}
	if coldErr != nil {
		if len(hotRes) == 0 {
			return coldErr
		}
		q.stats.Partial = true
		q.logger.LogTierFallback(q.parent, "cold", coldErr)
	}
	if hotErr != nil {
		if !q.engine.coldEnabled(q.opts) {
			return hotErr
		}
		q.stats.Partial = true
		q.logger.LogTierFallback(q.parent, "hot", hotErr)
	}
	return nil
}

// resolveIndex loads the cluster index and settles the metric for the
// query: the override if given, else the index metric, else cosine.
func (q *query) resolveIndex(ctx context.Context) (*model.ClusterIndex, error) {
	var idx *model.ClusterIndex
	var err error
	if q.engine.coldEnabled(q.opts) {
		idx, err = q.engine.indexes.Current(ctx)
		if err == nil {
			q.metric = idx.Metric
			q.stats.IndexVersion = idx.Version
		}
	}
	if q.opts.Metric != nil {
		q.metric = *q.opts.Metric
	}
	return idx, err
}

func (q *query) searchHot(ctx context.Context, limit int) ([]model.SearchResult, error) {
	return q.engine.opts.hot.Search(ctx, q.embedding, limit, hot.SearchOptions{
		Filter:   q.opts.Filter,
		Metadata: q.opts.MetadataFilter,
		Metric:   q.metric,
	})
}

// softenDeadline turns an expired deadline into a partial result.
func (q *query) softenDeadline(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		q.stats.Partial = true
		return nil
	}
	return err
}
