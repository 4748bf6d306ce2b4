package testutil

import (
	"math"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// Rand returns a math/rand generator seeded from r, for APIs that take one.
func (r *RNG) Rand() *rand.Rand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rand.New(rand.NewSource(r.rand.Int63()))
}

// UnitVector generates a single L2-normalized random vector.
func (r *RNG) UnitVector(dimensions int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unitLocked(make([]float32, dimensions))
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere).
// Uses a single backing array.
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)
	for i := range num {
		vectors[i] = r.unitLocked(data[i*dimensions : (i+1)*dimensions])
	}
	return vectors
}

func (r *RNG) unitLocked(vec []float32) []float32 {
	var norm float64
	for j := range vec {
		v := r.rand.NormFloat64()
		vec[j] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		vec[0], norm = 1, 1
	}
	inv := float32(1 / math.Sqrt(norm))
	for j := range vec {
		vec[j] *= inv
	}
	return vec
}

// ClusteredVectors generates unit vectors scattered around random centers.
// Vector i belongs to center i%clusters.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centers := r.UnitVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([][]float32, num)
	for i := range num {
		center := centers[i%clusters]
		vec := make([]float32, dim)
		var norm float64
		for j := range dim {
			vec[j] = center[j] + float32(r.rand.NormFloat64())*spread
			norm += float64(vec[j]) * float64(vec[j])
		}
		inv := float32(1 / math.Sqrt(norm))
		for j := range vec {
			vec[j] *= inv
		}
		vectors[i] = vec
	}
	return vectors
}

// VectorAtCosine returns a unit vector whose cosine similarity with the
// unit vector base is exactly cos (up to float rounding).
func (r *RNG) VectorAtCosine(base []float32, cos float32) []float32 {
	orth := r.UnitVector(len(base))

	// Gram-Schmidt: remove the base component from orth.
	var proj float32
	for i := range base {
		proj += orth[i] * base[i]
	}
	var norm float64
	for i := range orth {
		orth[i] -= proj * base[i]
		norm += float64(orth[i]) * float64(orth[i])
	}
	inv := float32(1 / math.Sqrt(norm))

	sin := float32(math.Sqrt(float64(1 - cos*cos)))
	out := make([]float32, len(base))
	for i := range out {
		out[i] = cos*base[i] + sin*orth[i]*inv
	}
	return out
}
