// Package model defines the core types shared by the search pipeline.
//
// # Corpus Types
//
//   - VectorEntry: one stored vector with its id, namespace, type tag and metadata
//   - Cluster: a centroid plus the partition keys holding its members
//   - ClusterIndex: an immutable, versioned snapshot of all clusters
//
// # Result Types
//
//   - SearchResult: id, score, originating Tier and metadata
//   - IdentifiedCluster: a cluster scored against a query
//
// Scores are always higher-is-better and only comparable within a single
// metric and dimension.
package model
