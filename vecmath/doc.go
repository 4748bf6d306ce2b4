// Package vecmath provides the vector primitives shared by every search tier.
//
// Embeddings are Matryoshka (MRL) vectors: the first d components of a full
// 768-dimensional vector form a usable lower-resolution embedding once they
// are renormalized to unit length. Every comparison across tiers goes through
// the same vocabulary:
//
//	v, err := vecmath.TruncateAndNormalize(full, 256)
//	sim, err := vecmath.CosineSimilarity(v, centroid)
//
// # Supported Metrics
//
//   - MetricCosine: cosine similarity (default)
//   - MetricEuclidean: 1/(1+d) where d is the Euclidean distance
//   - MetricDot: raw inner product
//
// All metrics produce a higher-is-better score so that results of different
// stages can be merged with the same ordering.
//
// Dot products and norms are computed with the gonum BLAS kernels.
package vecmath
