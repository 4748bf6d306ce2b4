package kmeans

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mrlsearch/vecmath"
)

func unit(x, y float32) []float32 {
	v, _ := vecmath.Normalize([]float32{x, y})
	return v
}

func TestTrainKMeans(t *testing.T) {
	ctx := context.Background()
	// Two directions: along x and along y.
	vecs := [][]float32{
		unit(1, 0), unit(1, 0.1), unit(1, -0.1),
		unit(0, 1), unit(0.1, 1), unit(-0.1, 1),
	}

	centroids, err := TrainKMeans(ctx, vecs, 2, vecmath.MetricCosine, 100, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.Len(t, centroids, 2)
	for _, c := range centroids {
		assert.InDelta(t, 1.0, vecmath.Norm(c), 1e-5)
	}

	p1, err := AssignPartition(unit(1, 0.05), centroids, vecmath.MetricCosine)
	require.NoError(t, err)
	p2, err := AssignPartition(unit(0.05, 1), centroids, vecmath.MetricCosine)
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)
}

func TestTrainKMeans_NotEnoughVectors(t *testing.T) {
	centroids, err := TrainKMeans(context.Background(), [][]float32{unit(1, 0)}, 2, vecmath.MetricCosine, 10, nil)
	require.NoError(t, err)
	assert.Nil(t, centroids)
}

func TestTrainKMeans_Error(t *testing.T) {
	_, err := TrainKMeans(context.Background(), [][]float32{unit(1, 0)}, 1, vecmath.Metric(999), 10, nil)
	assert.Error(t, err)
}

func TestTrainKMeans_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vecs := make([][]float32, 100)
	for i := range vecs {
		vecs[i] = unit(float32(i), 1)
	}
	_, err := TrainKMeans(ctx, vecs, 4, vecmath.MetricCosine, 1000, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
