package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mrlsearch/blobstore"
	"github.com/hupe1980/mrlsearch/clusterindex"
	"github.com/hupe1980/mrlsearch/partition"
	"github.com/hupe1980/mrlsearch/vecmath"
)

func TestUnitVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UnitVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	for _, vec := range v {
		assert.InDelta(t, 1.0, vecmath.Norm(vec), 1e-5)
	}
}

func TestClusteredVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.ClusteredVectors(100, 32, 5, 0.1)

	assert.Equal(t, 100, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.InDelta(t, 1.0, vecmath.Norm(v[42]), 1e-5)
}

func TestVectorAtCosine(t *testing.T) {
	rng := NewRNG(4711)
	base := rng.UnitVector(128)

	for _, want := range []float32{0.91, 0.8, 0.6, 0.0} {
		v := rng.VectorAtCosine(base, want)
		got, err := vecmath.CosineSimilarity(base, v)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-4)
		assert.InDelta(t, 1.0, vecmath.Norm(v), 1e-4)
	}
}

func TestBuildCorpus(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	corpus, err := BuildCorpus(ctx, store, CorpusOptions{Vectors: 120, Clusters: 4, PartitionSize: 16})
	require.NoError(t, err)

	require.NoError(t, clusterindex.Validate(corpus.Index))
	assert.Equal(t, 64, corpus.Index.Dimension)
	assert.Len(t, corpus.Index.Clusters, 4)
	assert.Len(t, corpus.Entries, 120)

	total := 0
	for key, ids := range corpus.Partitions {
		p, err := partition.FetchPartition(ctx, store, key)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, len(ids), p.Len())
		assert.LessOrEqual(t, p.Len(), 16)
		if p.Len() > 0 {
			assert.Equal(t, 128, p.Dimension)
		}
		total += p.Len()
	}
	assert.Equal(t, 120, total)

	e, ok := corpus.Entry("doc-00007")
	require.True(t, ok)
	assert.Equal(t, "code", e.Namespace)
}

func TestFaultyStore(t *testing.T) {
	ctx := context.Background()
	inner := blobstore.NewMemoryStore()
	require.NoError(t, inner.Put(ctx, "a", []byte("x")))

	s := NewFaultyStore(inner)
	boom := errors.New("boom")
	s.Fail("a", boom)

	_, err := s.Open(ctx, "a")
	require.ErrorIs(t, err, boom)

	s.Fail("a", nil)
	s.Delay("a", time.Hour)
	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = s.Open(cctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.EqualValues(t, 2, s.Opens())
}
