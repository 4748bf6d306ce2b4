// Package kmeans implements k-means clustering over unit vectors.
//
// It is used to derive cluster centroids for fixture corpora and for the
// partition layout tooling; the search path only consumes centroids.
package kmeans
