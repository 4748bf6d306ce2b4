package vecmath

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/blas/gonum"
)

// FullDimension is the dimension of a complete, untruncated embedding.
const FullDimension = 768

// SupportedDimensions lists the MRL truncation targets in ascending order.
var SupportedDimensions = []int{64, 128, 256, 512, 768}

var blas gonum.Implementation

// IsSupportedDimension reports whether d is a valid truncation target.
func IsSupportedDimension(d int) bool {
	return slices.Contains(SupportedDimensions, d)
}

// Truncate returns a copy of the first d components of v.
// The input is never modified.
func Truncate(v []float32, d int) ([]float32, error) {
	if !IsSupportedDimension(d) {
		return nil, &ErrUnsupportedDimension{Dimension: d}
	}
	if len(v) < d {
		return nil, &ErrDimensionTooSmall{Required: d, Actual: len(v)}
	}
	return slices.Clone(v[:d]), nil
}

// Normalize returns a unit-length copy of v.
// Returns ErrZeroVector if v has zero magnitude.
func Normalize(v []float32) ([]float32, error) {
	out := slices.Clone(v)
	if err := NormalizeInPlace(out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeInPlace scales v to unit length.
// Returns ErrZeroVector (leaving v untouched) if v has zero magnitude.
func NormalizeInPlace(v []float32) error {
	n := Norm(v)
	if n == 0 {
		return ErrZeroVector
	}
	blas.Sscal(len(v), float32(1/n), v, 1)
	return nil
}

// TruncateAndNormalize truncates v to d components and renormalizes the result.
// This is the only sanctioned way to derive a lower-resolution embedding.
func TruncateAndNormalize(v []float32, d int) ([]float32, error) {
	t, err := Truncate(v, d)
	if err != nil {
		return nil, err
	}
	if err := NormalizeInPlace(t); err != nil {
		return nil, err
	}
	return t, nil
}

// FitDimension prepares q for comparison against vectors of dimension d.
// A query of exactly d components is returned as is, a longer query is
// truncated and renormalized, and a shorter one is a dimension mismatch.
func FitDimension(q []float32, d int) ([]float32, error) {
	switch {
	case len(q) == d:
		return q, nil
	case len(q) > d:
		return TruncateAndNormalize(q, d)
	default:
		return nil, &ErrDimensionMismatch{Expected: d, Actual: len(q)}
	}
}

// ValidateDimensions checks that v has exactly expected components.
func ValidateDimensions(v []float32, expected int) error {
	if len(v) != expected {
		return &ErrDimensionMismatch{Expected: expected, Actual: len(v)}
	}
	return nil
}

// Dot returns the inner product of a and b.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return blas.Sdot(len(a), a, 1, b, 1)
}

// Norm returns the L2 norm of v, accumulated in float64.
func Norm(v []float32) float64 {
	return math.Sqrt(blas.Dsdot(len(v), v, 1, v, 1))
}

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, &ErrDimensionMismatch{Expected: len(a), Actual: len(b)}
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0, ErrZeroVector
	}
	sim := blas.Dsdot(len(a), a, 1, b, 1) / (na * nb)
	// Rounding can push identical vectors marginally past 1.
	return float32(max(-1, min(1, sim))), nil
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, &ErrDimensionMismatch{Expected: len(a), Actual: len(b)}
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum)), nil
}
