package mrlsearch

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/mrlsearch/merge"
	"github.com/hupe1980/mrlsearch/model"
	"github.com/hupe1980/mrlsearch/partition"
	"github.com/hupe1980/mrlsearch/router"
	"github.com/hupe1980/mrlsearch/vecmath"
)

type partitionOutcome struct {
	key     string
	status  PartitionStatus
	results []model.SearchResult
	err     error
}

// searchCold routes the query to its clusters and scans their partitions
// concurrently. A positive dim scans at that reduced resolution.
//
// Partitions still outstanding when ctx expires are abandoned and the
// result is flagged partial. The call only fails outright if every
// partition failed.
func (q *query) searchCold(ctx context.Context, idx *model.ClusterIndex, limit, dim int) ([]model.SearchResult, error) {
	e := q.engine
	ctx, span := e.tracer.Start(ctx, "mrlsearch.cold", trace.WithAttributes(
		attribute.Int("dimension", dim),
	))
	defer span.End()

	clusters, err := router.IdentifyRelevantClusters(q.embedding, idx, router.Options{
		TopK:          q.opts.ProbeClusters,
		MinSimilarity: q.opts.MinClusterSimilarity,
		Metric:        &q.metric,
	})
	if err != nil {
		return nil, err
	}
	keys := model.PartitionKeys(clusters)
	q.stats.ClustersProbed = len(clusters)
	q.stats.PartitionsQueried = len(keys)
	span.SetAttributes(
		attribute.Int("clusters", len(clusters)),
		attribute.Int("partitions", len(keys)),
	)
	if len(keys) == 0 {
		return nil, nil
	}

	popts := partition.SearchOptions{
		Namespace: q.opts.Filter.Namespace,
		Type:      q.opts.Filter.Type,
		Metadata:  q.opts.MetadataFilter,
		Limit:     limit,
		Dimension: dim,
		Metric:    q.metric,
	}

	// Tasks outlive an expired query; they observe taskCtx and report into
	// a buffer sized so they never block.
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	outcomes := make(chan partitionOutcome, len(keys))

	go func() {
		var g errgroup.Group
		g.SetLimit(e.opts.concurrency)
		for _, key := range keys {
			g.Go(func() error {
				outcomes <- q.searchPartition(taskCtx, key, popts)
				return nil
			})
		}
		_ = g.Wait()
	}()

	lists := make([][]model.SearchResult, 0, len(keys))
	var failures []error
	received := 0

collect:
	for received < len(keys) {
		select {
		case o := <-outcomes:
			received++
			switch o.status {
			case PartitionSucceeded:
				q.stats.PartitionsSucceeded++
				lists = append(lists, o.results)
			case PartitionMissing:
				q.stats.PartitionsMissing++
			case PartitionPending:
				q.stats.PartitionsPending++
			case PartitionFailed:
				q.stats.PartitionsFailed++
				failures = append(failures, o.err)
				q.logger.LogPartitionFailure(ctx, o.key, o.err)
			}
		case <-ctx.Done():
			break collect
		}
	}
	q.stats.PartitionsPending += len(keys) - received
	if q.stats.PartitionsPending > 0 || q.stats.PartitionsFailed > 0 {
		q.stats.Partial = true
	}

	if q.stats.PartitionsFailed == len(keys) {
		return nil, &AllPartitionsFailedError{Partitions: len(keys), Err: errors.Join(failures...)}
	}
	return merge.MergeSearchResults(lists, limit), nil
}

func (q *query) searchPartition(ctx context.Context, key string, opts partition.SearchOptions) partitionOutcome {
	start := time.Now()
	o := q.scanPartition(ctx, key, opts)
	q.engine.opts.metricsCollector.RecordPartitionFetch(o.status, time.Since(start))
	return o
}

func (q *query) scanPartition(ctx context.Context, key string, opts partition.SearchOptions) partitionOutcome {
	o := partitionOutcome{key: key}
	if ctx.Err() != nil {
		o.status = PartitionPending
		return o
	}

	p, err := q.engine.fetcher.Fetch(ctx, key)
	switch {
	case err != nil && ctx.Err() != nil:
		o.status = PartitionPending
		return o
	case err != nil:
		o.status, o.err = PartitionFailed, err
		return o
	case p == nil:
		o.status = PartitionMissing
		return o
	}

	if opts.Dimension == 0 && p.Len() > 0 && p.Dimension != len(q.embedding) {
		err := &vecmath.ErrDimensionMismatch{Expected: len(q.embedding), Actual: p.Dimension}
		o.status, o.err = PartitionFailed, &partition.FetchError{Key: key, Op: "search", Err: err}
		return o
	}

	res, err := partition.SearchPartition(q.embedding, p, opts)
	if err != nil {
		o.status, o.err = PartitionFailed, &partition.FetchError{Key: key, Op: "search", Err: err}
		return o
	}
	o.status, o.results = PartitionSucceeded, res
	return o
}
