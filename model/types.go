package model

import (
	"fmt"

	"github.com/hupe1980/mrlsearch/metadata"
	"github.com/hupe1980/mrlsearch/vecmath"
)

// Tier identifies which storage tier produced a result.
type Tier uint8

const (
	// TierHot marks results from the in-memory approximate index.
	TierHot Tier = iota
	// TierCold marks results scored from object-storage partitions.
	TierCold
	// TierMerged marks ids found in both tiers; the cold score is kept.
	TierMerged
)

func (t Tier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierCold:
		return "cold"
	case TierMerged:
		return "merged"
	default:
		return fmt.Sprintf("Tier(%d)", t)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// VectorEntry is one stored vector inside a partition.
type VectorEntry struct {
	ID        string
	Namespace string
	Type      string
	Vector    []float32
	Metadata  metadata.Document
}

// Cluster groups vectors around a centroid. Its members live in the
// partitions named by PartitionKeys.
type Cluster struct {
	ID            string    `json:"id"`
	Centroid      []float32 `json:"centroid"`
	PartitionKeys []string  `json:"partition_keys"`
}

// ClusterIndex is a versioned snapshot of the cluster layout.
// A published index is never mutated; it is replaced wholesale.
type ClusterIndex struct {
	Version   uint64         `json:"version"`
	Dimension int            `json:"dimension"`
	Metric    vecmath.Metric `json:"metric"`
	Clusters  []Cluster      `json:"clusters"`
}

// PartitionKeys returns the distinct partition keys of the given clusters
// in first-seen order.
func PartitionKeys(clusters []IdentifiedCluster) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, c := range clusters {
		for _, k := range c.Cluster.PartitionKeys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}

// IdentifiedCluster is a cluster scored against a query.
type IdentifiedCluster struct {
	Cluster    *Cluster
	Similarity float32
}

// SearchResult is a single scored hit.
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`
	Tier     Tier              `json:"tier"`
	Metadata metadata.Document `json:"metadata,omitempty"`
}

// Filter restricts results to a namespace and/or type tag.
// Empty fields do not constrain.
type Filter struct {
	Namespace string
	Type      string
}

// IsEmpty reports whether f constrains nothing.
func (f Filter) IsEmpty() bool { return f.Namespace == "" && f.Type == "" }

// Matches reports whether e satisfies the filter.
func (f Filter) Matches(e *VectorEntry) bool {
	if f.Namespace != "" && e.Namespace != f.Namespace {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	return true
}

// CompareResults orders results by descending score, then ascending id.
// It is the canonical order of every result list.
func CompareResults(a, b SearchResult) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}
