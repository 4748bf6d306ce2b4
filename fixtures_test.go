package mrlsearch_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mrlsearch"
	"github.com/hupe1980/mrlsearch/blobstore"
	"github.com/hupe1980/mrlsearch/clusterindex"
	"github.com/hupe1980/mrlsearch/hot"
	"github.com/hupe1980/mrlsearch/internal/testutil"
	"github.com/hupe1980/mrlsearch/model"
	"github.com/hupe1980/mrlsearch/partition"
	"github.com/hupe1980/mrlsearch/vecmath"
)

const (
	testDim      = 128
	testIndexDim = 64
)

// fixture is a hand-built cold tier of three partitions, one per cluster.
type fixture struct {
	query   []float32
	store   *testutil.FaultyStore
	indexes *clusterindex.Static
	keys    []string
	rng     *testutil.RNG
}

// newFixture writes three partitions of five entries each. Every entry
// scores below 0.5 against the query except those returned by extra, which
// replace the lowest scoring entries of the named partitions.
func newFixture(t *testing.T, extra func(f *fixture) map[string][]model.VectorEntry) *fixture {
	t.Helper()
	ctx := context.Background()
	rng := testutil.NewRNG(4711)
	f := &fixture{
		query: rng.UnitVector(testDim),
		store: testutil.NewFaultyStore(blobstore.NewMemoryStore()),
		rng:   rng,
	}

	centroid, err := vecmath.TruncateAndNormalize(f.query, testIndexDim)
	require.NoError(t, err)

	var replace map[string][]model.VectorEntry
	if extra != nil {
		replace = extra(f)
	}

	idx := &model.ClusterIndex{Version: 1, Dimension: testIndexDim}
	for p := range 3 {
		key := fmt.Sprintf("partitions/c%d-0000", p)
		entries := make([]model.VectorEntry, 0, 5)
		for i := range 5 {
			entries = append(entries, model.VectorEntry{
				ID:        fmt.Sprintf("p%d-%d", p, i),
				Namespace: "docs",
				Vector:    rng.VectorAtCosine(f.query, 0.1*float32(i)),
			})
		}
		entries = append(entries[len(replace[key]):], replace[key]...)
		require.NoError(t, partition.Write(ctx, f.store, key, entries))

		idx.Clusters = append(idx.Clusters, model.Cluster{
			ID:            fmt.Sprintf("c%d", p),
			Centroid:      centroid,
			PartitionKeys: []string{key},
		})
		f.keys = append(f.keys, key)
	}

	f.indexes, err = clusterindex.NewStatic(idx)
	require.NoError(t, err)
	return f
}

func (f *fixture) engine(t *testing.T, opts ...mrlsearch.Option) *mrlsearch.SearchEngine {
	t.Helper()
	base := []mrlsearch.Option{
		mrlsearch.WithFullDimension(testDim),
		mrlsearch.WithLogger(mrlsearch.NoopLogger()),
		mrlsearch.WithFetcherOptions(partition.WithCircuitBreaker(0, 0)),
	}
	e, err := mrlsearch.New(f.store, f.indexes, append(base, opts...)...)
	require.NoError(t, err)
	return e
}

// corpusEngine builds an engine over a generated corpus with a hot tier
// holding every entry.
func corpusEngine(t *testing.T, withHot bool, opts ...mrlsearch.Option) (*mrlsearch.SearchEngine, *testutil.Corpus) {
	t.Helper()
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	corpus, err := testutil.BuildCorpus(ctx, store, testutil.CorpusOptions{
		Dimension:      testDim,
		IndexDimension: testIndexDim,
	})
	require.NoError(t, err)

	indexes, err := clusterindex.NewStatic(corpus.Index)
	require.NoError(t, err)

	base := []mrlsearch.Option{
		mrlsearch.WithFullDimension(testDim),
		mrlsearch.WithLogger(mrlsearch.NoopLogger()),
	}
	if withHot {
		h, err := hot.New(func(o *hot.Options) { o.Dimension = testIndexDim })
		require.NoError(t, err)
		require.NoError(t, h.Add(corpus.Entries...))
		base = append(base, mrlsearch.WithHotTier(h))
	}

	e, err := mrlsearch.New(store, indexes, append(base, opts...)...)
	require.NoError(t, err)
	return e, corpus
}

func ids(rs []model.SearchResult) []string {
	out := make([]string, len(rs))
	for i := range rs {
		out[i] = rs[i].ID
	}
	return out
}
