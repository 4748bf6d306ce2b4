package mrlsearch_test

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mrlsearch"
	"github.com/hupe1980/mrlsearch/blobstore"
	"github.com/hupe1980/mrlsearch/clusterindex"
	"github.com/hupe1980/mrlsearch/embedding"
	"github.com/hupe1980/mrlsearch/hot"
	"github.com/hupe1980/mrlsearch/model"
	"github.com/hupe1980/mrlsearch/partition"
	"github.com/hupe1980/mrlsearch/vecmath"
)

func TestNew(t *testing.T) {
	store := blobstore.NewMemoryStore()
	indexes, err := clusterindex.NewStatic(&model.ClusterIndex{
		Version:   1,
		Dimension: 64,
		Clusters:  []model.Cluster{{ID: "c0", Centroid: unitAt(64, 0), PartitionKeys: []string{"p0"}}},
	})
	require.NoError(t, err)

	t.Run("NoTier", func(t *testing.T) {
		_, err := mrlsearch.New(nil, nil)
		assert.ErrorIs(t, err, mrlsearch.ErrNoTierEnabled)
	})

	t.Run("StoreWithoutIndex", func(t *testing.T) {
		_, err := mrlsearch.New(store, nil)
		assert.Error(t, err)
	})

	t.Run("UnsupportedFullDimension", func(t *testing.T) {
		_, err := mrlsearch.New(store, indexes, mrlsearch.WithFullDimension(100))
		var target *vecmath.ErrUnsupportedDimension
		require.ErrorAs(t, err, &target)
		assert.Equal(t, 100, target.Dimension)
	})

	t.Run("HotWiderThanFull", func(t *testing.T) {
		h, err := hot.New(func(o *hot.Options) { o.Dimension = 256 })
		require.NoError(t, err)
		_, err = mrlsearch.New(store, indexes, mrlsearch.WithFullDimension(128), mrlsearch.WithHotTier(h))
		var target *vecmath.ErrDimensionTooSmall
		assert.ErrorAs(t, err, &target)
	})

	t.Run("InvalidTuning", func(t *testing.T) {
		for _, opt := range []mrlsearch.Option{
			mrlsearch.WithProbeClusters(-1),
			mrlsearch.WithOverFetchFactor(0),
			mrlsearch.WithMaxCandidates(0),
			mrlsearch.WithConcurrency(0),
			mrlsearch.WithMetric(vecmath.Metric(42)),
		} {
			_, err := mrlsearch.New(store, indexes, opt)
			assert.Error(t, err)
		}
	})

	t.Run("HotOnly", func(t *testing.T) {
		h, err := hot.New()
		require.NoError(t, err)
		e, err := mrlsearch.New(nil, nil, mrlsearch.WithHotTier(h))
		require.NoError(t, err)
		assert.Same(t, h, e.HotTier())
		_, err = e.ClusterIndex(context.Background())
		assert.ErrorIs(t, err, mrlsearch.ErrNoTierEnabled)
	})
}

func TestSearch_DeduplicatesAcrossPartitions(t *testing.T) {
	f := newFixture(t, func(f *fixture) map[string][]model.VectorEntry {
		return map[string][]model.VectorEntry{
			"partitions/c0-0000": {{ID: "dup", Vector: f.rng.VectorAtCosine(f.query, 0.8)}},
			"partitions/c2-0000": {{ID: "dup", Vector: f.rng.VectorAtCosine(f.query, 0.6)}},
		}
	})
	e := f.engine(t)

	resp, err := e.Search(context.Background(), f.query, 20)
	require.NoError(t, err)

	assert.Len(t, resp.Results, 14)
	assert.Equal(t, "dup", resp.Results[0].ID)
	assert.InDelta(t, 0.8, resp.Results[0].Score, 1e-4)
	assert.Equal(t, mrlsearch.TierCold, resp.Results[0].Tier)

	seen := map[string]bool{}
	for _, r := range resp.Results {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
	assert.True(t, slices.IsSortedFunc(resp.Results, model.CompareResults))

	st := resp.Stats
	assert.Equal(t, mrlsearch.ModeSingle, st.Mode)
	assert.NotEmpty(t, st.QueryID)
	assert.EqualValues(t, 1, st.IndexVersion)
	assert.Equal(t, 3, st.ClustersProbed)
	assert.Equal(t, 3, st.PartitionsQueried)
	assert.Equal(t, 3, st.PartitionsSucceeded)
	assert.False(t, st.Partial)
	assert.Equal(t, 14, st.Results)
}

func TestSearch_EngineMetric(t *testing.T) {
	f := newFixture(t, func(f *fixture) map[string][]model.VectorEntry {
		return map[string][]model.VectorEntry{
			"partitions/c0-0000": {{ID: "near", Vector: f.rng.VectorAtCosine(f.query, 0.8)}},
		}
	})
	e := f.engine(t, mrlsearch.WithMetric(vecmath.MetricEuclidean))
	ctx := context.Background()

	// Unit vectors at cosine c lie sqrt(2-2c) apart.
	resp, err := e.Search(ctx, f.query, 1)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "near", resp.Results[0].ID)
	assert.InDelta(t, 1/(1+math.Sqrt(0.4)), resp.Results[0].Score, 1e-3)

	resp, err = e.Search(ctx, f.query, 1, func(o *mrlsearch.SearchOptions) {
		m := vecmath.MetricCosine
		o.Metric = &m
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, resp.Results[0].Score, 1e-4)
}

func TestSearch_ColdScoreWinsOverHot(t *testing.T) {
	f := newFixture(t, func(f *fixture) map[string][]model.VectorEntry {
		return map[string][]model.VectorEntry{
			"partitions/c1-0000": {{ID: "x", Vector: f.rng.VectorAtCosine(f.query, 0.91)}},
		}
	})

	h, err := hot.New(func(o *hot.Options) { o.Dimension = testIndexDim })
	require.NoError(t, err)
	require.NoError(t, h.Add(model.VectorEntry{ID: "x", Vector: f.rng.VectorAtCosine(f.query, 0.7)}))

	e := f.engine(t, mrlsearch.WithHotTier(h))
	resp, err := e.Search(context.Background(), f.query, 5)
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	top := resp.Results[0]
	assert.Equal(t, "x", top.ID)
	assert.InDelta(t, 0.91, top.Score, 1e-4)
	assert.Equal(t, mrlsearch.TierMerged, top.Tier)
	assert.Equal(t, 1, resp.Stats.HotResults)
	assert.Len(t, resp.Results, 5)
}

func TestSearch_MissingPartitionIsNotAFailure(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.Delete(context.Background(), f.keys[1]))
	e := f.engine(t)

	resp, err := e.Search(context.Background(), f.query, 20)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 10)
	assert.Equal(t, 1, resp.Stats.PartitionsMissing)
	assert.False(t, resp.Stats.Partial)
}

func TestSearch_PartitionFailureIsIsolated(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Fail(f.keys[0], errors.New("boom"))
	e := f.engine(t, mrlsearch.WithFetcherOptions(partition.WithRetries(0, 0, 0)))

	resp, err := e.Search(context.Background(), f.query, 20)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 10)
	assert.Equal(t, 1, resp.Stats.PartitionsFailed)
	assert.True(t, resp.Stats.Partial)
}

func TestSearch_AllPartitionsFailed(t *testing.T) {
	f := newFixture(t, nil)
	boom := errors.New("boom")
	for _, key := range f.keys {
		f.store.Fail(key, boom)
	}
	e := f.engine(t, mrlsearch.WithFetcherOptions(partition.WithRetries(0, 0, 0)))

	_, err := e.Search(context.Background(), f.query, 5)
	var target *mrlsearch.AllPartitionsFailedError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, 3, target.Partitions)
	assert.ErrorIs(t, err, boom)

	var fetchErr *partition.FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestSearch_HotServesWhenColdFails(t *testing.T) {
	f := newFixture(t, nil)
	for _, key := range f.keys {
		f.store.Fail(key, errors.New("boom"))
	}
	h, err := hot.New(func(o *hot.Options) { o.Dimension = testIndexDim })
	require.NoError(t, err)
	require.NoError(t, h.Add(model.VectorEntry{ID: "h1", Vector: f.rng.VectorAtCosine(f.query, 0.5)}))

	e := f.engine(t, mrlsearch.WithHotTier(h), mrlsearch.WithFetcherOptions(partition.WithRetries(0, 0, 0)))
	resp, err := e.Search(context.Background(), f.query, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"h1"}, ids(resp.Results))
	assert.Equal(t, mrlsearch.TierHot, resp.Results[0].Tier)
	assert.True(t, resp.Stats.Partial)
}

func TestSearch_DeadlineReturnsPartialResults(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Delay(f.keys[2], time.Hour)
	e := f.engine(t)

	start := time.Now()
	resp, err := e.Search(context.Background(), f.query, 20, func(o *mrlsearch.SearchOptions) {
		o.Timeout = 100 * time.Millisecond
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.True(t, resp.Stats.Partial)
	assert.Equal(t, 1, resp.Stats.PartitionsPending)
	assert.Equal(t, 2, resp.Stats.PartitionsSucceeded)
	assert.Len(t, resp.Results, 10)
	for _, r := range resp.Results {
		assert.NotContains(t, r.ID, "p2-")
	}
}

func TestSearch_DeadlineDoesNotFailConcurrentQuery(t *testing.T) {
	f := newFixture(t, nil)
	for _, key := range f.keys {
		f.store.Delay(key, 300*time.Millisecond)
	}
	e := f.engine(t)
	ctx := context.Background()

	type outcome struct {
		resp *mrlsearch.Response
		err  error
	}
	short := make(chan outcome, 1)
	go func() {
		resp, err := e.Search(ctx, f.query, 5, func(o *mrlsearch.SearchOptions) {
			o.Timeout = 50 * time.Millisecond
		})
		short <- outcome{resp, err}
	}()
	time.Sleep(10 * time.Millisecond)

	resp, err := e.Search(ctx, f.query, 20, func(o *mrlsearch.SearchOptions) {
		o.Timeout = 5 * time.Second
	})
	require.NoError(t, err)
	assert.False(t, resp.Stats.Partial)
	assert.Equal(t, 3, resp.Stats.PartitionsSucceeded)
	assert.Len(t, resp.Results, 15)

	o := <-short
	require.NoError(t, o.err)
	assert.True(t, o.resp.Stats.Partial)
	assert.Zero(t, o.resp.Stats.PartitionsFailed)
}

func TestSearch_CallerCancellation(t *testing.T) {
	f := newFixture(t, nil)
	e := f.engine(t)

	t.Run("Before", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.Search(ctx, f.query, 5)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("InFlight", func(t *testing.T) {
		f.store.Delay(f.keys[0], time.Hour)
		defer f.store.Delay(f.keys[0], 0)

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)
		_, err := e.Search(ctx, f.query, 5)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSearch_Validation(t *testing.T) {
	f := newFixture(t, nil)
	e := f.engine(t)
	ctx := context.Background()

	_, err := e.Search(ctx, f.query, 0)
	assert.ErrorIs(t, err, mrlsearch.ErrInvalidK)

	_, err = e.Search(ctx, f.query[:64], 5)
	var mismatch *vecmath.ErrDimensionMismatch
	assert.ErrorAs(t, err, &mismatch)

	_, err = e.Search(ctx, make([]float32, testDim), 5)
	assert.ErrorIs(t, err, vecmath.ErrZeroVector)

	_, err = e.Search(ctx, f.query, 5, func(o *mrlsearch.SearchOptions) { o.DisableCold = true })
	assert.ErrorIs(t, err, mrlsearch.ErrNoTierEnabled)

	bad := vecmath.Metric(42)
	_, err = e.Search(ctx, f.query, 5, func(o *mrlsearch.SearchOptions) { o.Metric = &bad })
	assert.Error(t, err)

	_, err = e.TwoPhaseSearch(ctx, f.query, 5)
	assert.ErrorIs(t, err, mrlsearch.ErrNoEmbeddingProvider)
}

func TestSearch_FiltersAndProbe(t *testing.T) {
	e, corpus := corpusEngine(t, false)
	query := corpus.Entries[3].Vector

	resp, err := e.Search(context.Background(), query, 10, func(o *mrlsearch.SearchOptions) {
		o.Filter = model.Filter{Namespace: "code"}
		o.ProbeClusters = 0
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "doc-00003", resp.Results[0].ID)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-4)
	for _, r := range resp.Results {
		entry, ok := corpus.Entry(r.ID)
		require.True(t, ok)
		assert.Equal(t, "code", entry.Namespace)
	}
	assert.Equal(t, len(corpus.Index.Clusters), resp.Stats.ClustersProbed)

	resp, err = e.Search(context.Background(), query, 10, func(o *mrlsearch.SearchOptions) {
		o.ProbeClusters = 1
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Stats.ClustersProbed)
}

func TestTwoPhaseSearch_HotCandidates(t *testing.T) {
	provider := embedding.NewMapProvider(nil)
	e, corpus := corpusEngine(t, true, mrlsearch.WithEmbeddingProvider(provider))
	for id, v := range corpus.Embeddings() {
		provider.Set(id, v)
	}

	query := corpus.Entries[11].Vector
	const k, factor = 5, 4

	resp, err := e.TwoPhaseSearch(context.Background(), query, k, func(o *mrlsearch.SearchOptions) {
		o.OverFetchFactor = factor
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, k)

	candidates, err := e.HotTier().Search(context.Background(), query, k*factor, hot.SearchOptions{})
	require.NoError(t, err)
	candidateIDs := ids(candidates)
	for _, r := range resp.Results {
		assert.Contains(t, candidateIDs, r.ID)

		full, _ := provider.FullEmbeddings(context.Background(), []string{r.ID})
		want, err := vecmath.CosineSimilarity(query, full[r.ID])
		require.NoError(t, err)
		assert.InDelta(t, want, r.Score, 1e-5)
	}
	assert.True(t, slices.IsSortedFunc(resp.Results, model.CompareResults))
	assert.Equal(t, "doc-00011", resp.Results[0].ID)

	st := resp.Stats
	assert.Equal(t, mrlsearch.ModeTwoPhase, st.Mode)
	assert.Equal(t, k*factor, st.Candidates)
	assert.Equal(t, k*factor, st.Reranked)
	assert.Zero(t, st.Dropped)
	assert.False(t, st.RerankSkipped)
}

func TestTwoPhaseSearch_ColdCandidates(t *testing.T) {
	provider := embedding.NewMapProvider(nil)
	e, corpus := corpusEngine(t, false, mrlsearch.WithEmbeddingProvider(provider))
	for id, v := range corpus.Embeddings() {
		provider.Set(id, v)
	}
	provider.Delete("doc-00020")

	query := corpus.Entries[20].Vector
	resp, err := e.TwoPhaseSearch(context.Background(), query, 10)
	require.NoError(t, err)

	assert.NotContains(t, ids(resp.Results), "doc-00020")
	assert.Equal(t, 1, resp.Stats.Dropped)
	assert.Positive(t, resp.Stats.PartitionsQueried)
	assert.Equal(t, resp.Stats.ColdResults, resp.Stats.Candidates)
	assert.Len(t, resp.Results, 10)
	for _, r := range resp.Results {
		assert.Equal(t, mrlsearch.TierCold, r.Tier)
	}
}

func TestTwoPhaseSearch_RerankSkipped(t *testing.T) {
	failing := embedding.ProviderFunc(func(context.Context, []string) (map[string][]float32, error) {
		return nil, errors.New("embedding store down")
	})
	e, corpus := corpusEngine(t, true, mrlsearch.WithEmbeddingProvider(failing))
	query := corpus.Entries[5].Vector

	resp, err := e.TwoPhaseSearch(context.Background(), query, 5, func(o *mrlsearch.SearchOptions) {
		o.DisableCold = true
	})
	require.NoError(t, err)

	hotOnly, err := e.HotTier().Search(context.Background(), query, 5, hot.SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, ids(hotOnly), ids(resp.Results))
	assert.True(t, resp.Stats.RerankSkipped)
	assert.True(t, resp.Stats.Partial)
}

func TestTwoPhaseSearch_CandidateCap(t *testing.T) {
	provider := embedding.NewMapProvider(nil)
	e, corpus := corpusEngine(t, true,
		mrlsearch.WithEmbeddingProvider(provider),
		mrlsearch.WithMaxCandidates(3),
	)
	for id, v := range corpus.Embeddings() {
		provider.Set(id, v)
	}

	resp, err := e.TwoPhaseSearch(context.Background(), corpus.Entries[0].Vector, 8, func(o *mrlsearch.SearchOptions) {
		o.DisableCold = true
	})
	require.NoError(t, err)
	assert.Equal(t, 8, resp.Stats.Candidates)
	assert.Len(t, resp.Results, 8)
}

func TestMetricsCollector(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Fail(f.keys[0], errors.New("boom"))
	require.NoError(t, f.store.Delete(context.Background(), f.keys[1]))

	mc := &mrlsearch.BasicMetricsCollector{}
	e := f.engine(t, mrlsearch.WithMetricsCollector(mc), mrlsearch.WithFetcherOptions(partition.WithRetries(0, 0, 0)))

	_, err := e.Search(context.Background(), f.query, 5)
	require.NoError(t, err)
	_, err = e.Search(context.Background(), f.query, 0)
	require.Error(t, err)

	stats := mc.GetStats()
	assert.EqualValues(t, 2, stats.SearchCount)
	assert.EqualValues(t, 1, stats.SearchErrors)
	assert.EqualValues(t, 1, stats.PartitionsSucceeded)
	assert.EqualValues(t, 1, stats.PartitionsMissing)
	assert.EqualValues(t, 1, stats.PartitionsFailed)
}

func TestSearch_Concurrent(t *testing.T) {
	e, corpus := corpusEngine(t, true)
	errs := make(chan error, 16)
	for i := range 16 {
		go func() {
			_, err := e.Search(context.Background(), corpus.Entries[i].Vector, 5)
			errs <- err
		}()
	}
	for range 16 {
		require.NoError(t, <-errs)
	}
}

func unitAt(dim, i int) []float32 {
	v := make([]float32, dim)
	v[i] = 1
	return v
}
