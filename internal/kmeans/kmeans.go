package kmeans

import (
	"context"
	"math/rand"
	"slices"

	"github.com/hupe1980/mrlsearch/vecmath"
)

// TrainKMeans trains k centroids from vectors using Lloyd's algorithm with
// spherical updates: every centroid is renormalized after each step, so the
// result is directly usable with cosine routing.
//
// It returns nil if there are fewer than k vectors.
func TrainKMeans(ctx context.Context, vectors [][]float32, k int, metric vecmath.Metric, maxIter int, rng *rand.Rand) ([][]float32, error) {
	n := len(vectors)
	if k <= 0 || n < k {
		return nil, nil
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	dim := len(vectors[0])

	simFunc, err := vecmath.Provider(metric)
	if err != nil {
		return nil, err
	}

	// Initialize centroids randomly from data points
	centroids := make([][]float32, k)
	perm := rng.Perm(n)
	for i := range k {
		centroids[i] = slices.Clone(vectors[perm[i]])
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	counts := make([]int, k)
	sums := make([][]float32, k)
	for j := range sums {
		sums[j] = make([]float32, dim)
	}

	for range maxIter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed := false

		// Assignment step
		for i, vec := range vectors {
			best, err := closest(vec, centroids, simFunc)
			if err != nil {
				return nil, err
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			break
		}

		// Update step
		for j := range sums {
			clear(sums[j])
			counts[j] = 0
		}
		for i, vec := range vectors {
			c := assignments[i]
			for d := range dim {
				sums[c][d] += vec[d]
			}
			counts[c]++
		}

		for j := range k {
			if counts[j] == 0 {
				// Re-seed empty clusters with a random point.
				centroids[j] = slices.Clone(vectors[rng.Intn(n)])
				continue
			}
			if err := vecmath.NormalizeInPlace(sums[j]); err != nil {
				centroids[j] = slices.Clone(vectors[rng.Intn(n)])
				continue
			}
			copy(centroids[j], sums[j])
		}
	}

	return centroids, nil
}

// AssignPartition returns the index of the most similar centroid.
func AssignPartition(vec []float32, centroids [][]float32, metric vecmath.Metric) (int, error) {
	simFunc, err := vecmath.Provider(metric)
	if err != nil {
		return -1, err
	}
	return closest(vec, centroids, simFunc)
}

func closest(vec []float32, centroids [][]float32, simFunc vecmath.Func) (int, error) {
	best := -1
	var bestSim float32
	for j, c := range centroids {
		s, err := simFunc(vec, c)
		if err != nil {
			return -1, err
		}
		if best == -1 || s > bestSim {
			best, bestSim = j, s
		}
	}
	return best, nil
}
