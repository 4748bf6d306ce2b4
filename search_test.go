package mrlsearch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mrlsearch"
	"github.com/hupe1980/mrlsearch/embedding"
	"github.com/hupe1980/mrlsearch/metadata"
	"github.com/hupe1980/mrlsearch/vecmath"
)

func TestQueryBuilder(t *testing.T) {
	provider := embedding.NewMapProvider(nil)
	e, corpus := corpusEngine(t, true, mrlsearch.WithEmbeddingProvider(provider))
	for id, v := range corpus.Embeddings() {
		provider.Set(id, v)
	}
	ctx := context.Background()
	query := corpus.Entries[8].Vector

	t.Run("Execute", func(t *testing.T) {
		resp, err := e.Query(query).
			K(3).
			Namespace("docs").
			Type("chunk").
			Where(metadata.Eq("even", metadata.Bool(true))).
			Timeout(time.Second).
			Execute(ctx)
		require.NoError(t, err)
		require.Len(t, resp.Results, 3)
		assert.Equal(t, "doc-00008", resp.Results[0].ID)
		for _, r := range resp.Results {
			entry, ok := corpus.Entry(r.ID)
			require.True(t, ok)
			assert.Equal(t, "docs", entry.Namespace)
			assert.Equal(t, metadata.Bool(true), r.Metadata["even"])
		}
	})

	t.Run("DefaultK", func(t *testing.T) {
		n, err := e.Query(query).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, n)
	})

	t.Run("TwoPhase", func(t *testing.T) {
		resp, err := e.Query(query).K(4).OverFetch(3).TwoPhase().Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, mrlsearch.ModeTwoPhase, resp.Stats.Mode)
		assert.Equal(t, 12, resp.Stats.Candidates)
		assert.Len(t, resp.Results, 4)
	})

	t.Run("Tiers", func(t *testing.T) {
		rs, err := e.Query(query).HotOnly().Results(ctx)
		require.NoError(t, err)
		for _, r := range rs {
			assert.Equal(t, mrlsearch.TierHot, r.Tier)
		}

		resp, err := e.Query(query).ColdOnly().ProbeClusters(2).Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Stats.ClustersProbed)
		assert.Zero(t, resp.Stats.HotResults)
		for _, r := range resp.Results {
			assert.Equal(t, mrlsearch.TierCold, r.Tier)
		}
	})

	t.Run("MinClusterSimilarity", func(t *testing.T) {
		resp, err := e.Query(query).ColdOnly().ProbeClusters(0).MinClusterSimilarity(1.1).Execute(ctx)
		require.NoError(t, err)
		assert.Zero(t, resp.Stats.ClustersProbed)
		assert.Empty(t, resp.Results)
	})

	t.Run("Metric", func(t *testing.T) {
		r, err := e.Query(query).Metric(vecmath.MetricDot).First(ctx)
		require.NoError(t, err)
		assert.Equal(t, "doc-00008", r.ID)
		assert.InDelta(t, 1.0, r.Score, 1e-4)
	})

	t.Run("First", func(t *testing.T) {
		r, err := e.Query(query).First(ctx)
		require.NoError(t, err)
		assert.Equal(t, "doc-00008", r.ID)

		_, err = e.Query(query).Namespace("missing").First(ctx)
		assert.ErrorIs(t, err, mrlsearch.ErrNotFound)
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := e.Query(query).Exists(ctx)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = e.Query(query).Namespace("missing").Exists(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Error", func(t *testing.T) {
		_, err := e.Query(query).K(0).Execute(ctx)
		assert.ErrorIs(t, err, mrlsearch.ErrInvalidK)
	})
}
