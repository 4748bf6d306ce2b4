package mrlsearch

import (
	"context"
	"errors"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hupe1980/mrlsearch/model"
	"github.com/hupe1980/mrlsearch/vecmath"
)

// candidateCount returns how many phase one candidates to gather for k.
// The cap never drops below k.
func (q *query) candidateCount() int {
	f := q.opts.OverFetchFactor
	if f < 1 {
		f = 1
	}
	return min(q.k*f, max(q.engine.opts.maxCandidates, q.k))
}

func (q *query) twoPhase(ctx context.Context) ([]model.SearchResult, error) {
	candidates, err := q.phaseOne(ctx)
	if err != nil {
		return nil, err
	}
	q.stats.Candidates = len(candidates)
	if len(candidates) == 0 {
		return nil, nil
	}
	return q.phaseTwo(ctx, candidates)
}

// phaseOne gathers candidates from the hot tier, or from a reduced
// dimension scan of the cold tier when there is no hot tier.
func (q *query) phaseOne(ctx context.Context) ([]model.SearchResult, error) {
	e := q.engine
	n := q.candidateCount()
	idx, idxErr := q.resolveIndex(ctx)

	if e.hotEnabled(q.opts) {
		res, err := q.searchHot(ctx, n)
		if cerr := q.cancelled(); cerr != nil {
			return nil, cerr
		}
		err = q.softenDeadline(err)
		if err == nil || !e.coldEnabled(q.opts) {
			q.stats.HotResults = len(res)
			return res, err
		}
		q.stats.Partial = true
		q.logger.LogTierFallback(ctx, "hot", err)
	}

	if idxErr != nil {
		return nil, idxErr
	}
	res, err := q.searchCold(ctx, idx, n, idx.Dimension)
	if cerr := q.cancelled(); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		return nil, err
	}
	q.stats.ColdResults = len(res)
	return res, nil
}

// phaseTwo rescores candidates at full dimension. It only ever reorders
// and drops candidates.
func (q *query) phaseTwo(ctx context.Context, candidates []model.SearchResult) ([]model.SearchResult, error) {
	e := q.engine
	ctx, span := e.tracer.Start(ctx, "mrlsearch.rerank")
	defer span.End()

	ids := make([]string, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ID
	}

	vectors, err := e.opts.embeddings.FullEmbeddings(ctx, ids)
	if err != nil {
		if cerr := q.cancelled(); cerr != nil {
			return nil, cerr
		}
		q.stats.RerankSkipped = true
		q.stats.Partial = true
		e.opts.metricsCollector.RecordRerank(len(candidates), 0, true)
		q.logger.LogRerank(ctx, len(candidates), 0, 0, err)
		span.SetAttributes(attribute.Bool("skipped", true))
		return truncate(candidates, q.k), nil
	}

	sim, err := vecmath.Provider(q.metric)
	if err != nil {
		return nil, err
	}

	out := make([]model.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		v := vectors[c.ID]
		if v == nil {
			q.stats.Dropped++
			continue
		}
		score, err := sim(q.embedding, v)
		if err != nil {
			var dm *vecmath.ErrDimensionMismatch
			if errors.As(err, &dm) || errors.Is(err, vecmath.ErrZeroVector) {
				q.logger.WarnContext(ctx, "dropping candidate with unusable full embedding",
					"id", c.ID,
					"error", err,
				)
				q.stats.Dropped++
				continue
			}
			return nil, err
		}
		c.Score = score
		out = append(out, c)
	}
	q.stats.Reranked = len(out)

	e.opts.metricsCollector.RecordRerank(len(candidates), q.stats.Dropped, false)
	q.logger.LogRerank(ctx, len(candidates), q.stats.Reranked, q.stats.Dropped, nil)
	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("dropped", q.stats.Dropped),
	)

	slices.SortFunc(out, model.CompareResults)
	return truncate(out, q.k), nil
}

func truncate(rs []model.SearchResult, k int) []model.SearchResult {
	if len(rs) > k {
		return rs[:k]
	}
	return rs
}
