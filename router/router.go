// Package router selects the clusters whose partitions a query should probe.
package router

import (
	"slices"

	"github.com/hupe1980/mrlsearch/model"
	"github.com/hupe1980/mrlsearch/vecmath"
)

// Options control cluster selection.
type Options struct {
	// TopK caps the number of clusters returned. Zero or negative means no cap.
	TopK int
	// MinSimilarity drops clusters scoring below the threshold.
	MinSimilarity *float32
	// Metric overrides the index metric for this query.
	Metric *vecmath.Metric
}

// IdentifyRelevantClusters scores every centroid in idx against query and
// returns the clusters in descending similarity order. Ties keep index order.
//
// The query is truncated and renormalized to the centroid dimension when it
// is longer; this happens once per distinct centroid dimension.
func IdentifyRelevantClusters(query []float32, idx *model.ClusterIndex, opts Options) ([]model.IdentifiedCluster, error) {
	if idx == nil || len(idx.Clusters) == 0 {
		return []model.IdentifiedCluster{}, nil
	}

	metric := idx.Metric
	if opts.Metric != nil {
		metric = *opts.Metric
	}
	simFunc, err := vecmath.Provider(metric)
	if err != nil {
		return nil, err
	}

	fitted := make(map[int][]float32, 1)
	scored := make([]model.IdentifiedCluster, 0, len(idx.Clusters))
	for i := range idx.Clusters {
		c := &idx.Clusters[i]
		dim := len(c.Centroid)
		q, ok := fitted[dim]
		if !ok {
			if q, err = vecmath.FitDimension(query, dim); err != nil {
				return nil, err
			}
			fitted[dim] = q
		}

		sim, err := simFunc(q, c.Centroid)
		if err != nil {
			return nil, err
		}
		if opts.MinSimilarity != nil && sim < *opts.MinSimilarity {
			continue
		}
		scored = append(scored, model.IdentifiedCluster{Cluster: c, Similarity: sim})
	}

	slices.SortStableFunc(scored, func(a, b model.IdentifiedCluster) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})

	if opts.TopK > 0 && len(scored) > opts.TopK {
		scored = scored[:opts.TopK]
	}
	return scored, nil
}
