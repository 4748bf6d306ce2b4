package testutil

import (
	"context"
	"fmt"

	"github.com/hupe1980/mrlsearch/blobstore"
	"github.com/hupe1980/mrlsearch/internal/kmeans"
	"github.com/hupe1980/mrlsearch/metadata"
	"github.com/hupe1980/mrlsearch/model"
	"github.com/hupe1980/mrlsearch/partition"
	"github.com/hupe1980/mrlsearch/vecmath"
)

// CorpusOptions controls BuildCorpus.
type CorpusOptions struct {
	Vectors        int
	Dimension      int // full dimension of stored vectors
	IndexDimension int // dimension of centroids
	Clusters       int
	PartitionSize  int // max entries per partition
	Namespaces     []string
	Spread         float32
	Seed           int64
	Version        uint64
	Metric         vecmath.Metric
}

// DefaultCorpusOptions returns a small corpus of 128-d vectors.
func DefaultCorpusOptions() CorpusOptions {
	return CorpusOptions{
		Vectors:        400,
		Dimension:      128,
		IndexDimension: 64,
		Clusters:       8,
		PartitionSize:  32,
		Namespaces:     []string{"docs", "code"},
		Spread:         0.05,
		Seed:           4711,
		Version:        1,
	}
}

// Corpus is a generated data set and the cluster index describing it.
type Corpus struct {
	Entries []model.VectorEntry
	Index   *model.ClusterIndex
	// Partitions maps each written partition key to the ids it holds.
	Partitions map[string][]string
}

// Entry returns the entry with the given id.
func (c *Corpus) Entry(id string) (model.VectorEntry, bool) {
	for _, e := range c.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return model.VectorEntry{}, false
}

// Embeddings returns the full vectors of all entries keyed by id.
func (c *Corpus) Embeddings() map[string][]float32 {
	out := make(map[string][]float32, len(c.Entries))
	for _, e := range c.Entries {
		out[e.ID] = e.Vector
	}
	return out
}

// BuildCorpus generates clustered vectors, trains centroids at the index
// dimension, writes one or more partitions per cluster into store and
// returns the resulting corpus. Zero fields take their defaults.
func BuildCorpus(ctx context.Context, store blobstore.BlobStore, opts CorpusOptions) (*Corpus, error) {
	opts = withDefaults(opts)
	rng := NewRNG(opts.Seed)

	vectors := rng.ClusteredVectors(opts.Vectors, opts.Dimension, opts.Clusters, opts.Spread)
	entries := make([]model.VectorEntry, len(vectors))
	reduced := make([][]float32, len(vectors))
	for i, v := range vectors {
		entries[i] = model.VectorEntry{
			ID:        fmt.Sprintf("doc-%05d", i),
			Namespace: opts.Namespaces[i%len(opts.Namespaces)],
			Type:      "chunk",
			Vector:    v,
			Metadata: metadata.Document{
				"seq":  metadata.Int(int64(i)),
				"even": metadata.Bool(i%2 == 0),
			},
		}
		r, err := vecmath.TruncateAndNormalize(v, opts.IndexDimension)
		if err != nil {
			return nil, err
		}
		reduced[i] = r
	}

	centroids, err := kmeans.TrainKMeans(ctx, reduced, opts.Clusters, opts.Metric, 25, rng.Rand())
	if err != nil {
		return nil, err
	}
	if centroids == nil {
		return nil, fmt.Errorf("testutil: %d vectors cannot form %d clusters", opts.Vectors, opts.Clusters)
	}

	members := make([][]model.VectorEntry, len(centroids))
	for i, r := range reduced {
		c, err := kmeans.AssignPartition(r, centroids, opts.Metric)
		if err != nil {
			return nil, err
		}
		members[c] = append(members[c], entries[i])
	}

	corpus := &Corpus{
		Entries:    entries,
		Partitions: make(map[string][]string),
		Index: &model.ClusterIndex{
			Version:   opts.Version,
			Dimension: opts.IndexDimension,
			Metric:    opts.Metric,
		},
	}
	for c, group := range members {
		cluster := model.Cluster{ID: fmt.Sprintf("c%03d", c), Centroid: centroids[c]}
		for p := 0; p == 0 || p*opts.PartitionSize < len(group); p++ {
			lo := p * opts.PartitionSize
			hi := min(lo+opts.PartitionSize, len(group))
			key := fmt.Sprintf("partitions/%s-%04d", cluster.ID, p)
			if err := partition.Write(ctx, store, key, group[lo:hi]); err != nil {
				return nil, err
			}
			cluster.PartitionKeys = append(cluster.PartitionKeys, key)
			for _, e := range group[lo:hi] {
				corpus.Partitions[key] = append(corpus.Partitions[key], e.ID)
			}
		}
		corpus.Index.Clusters = append(corpus.Index.Clusters, cluster)
	}
	return corpus, nil
}

func withDefaults(opts CorpusOptions) CorpusOptions {
	def := DefaultCorpusOptions()
	if opts.Vectors == 0 {
		opts.Vectors = def.Vectors
	}
	if opts.Dimension == 0 {
		opts.Dimension = def.Dimension
	}
	if opts.IndexDimension == 0 {
		opts.IndexDimension = min(def.IndexDimension, opts.Dimension)
	}
	if opts.Clusters == 0 {
		opts.Clusters = def.Clusters
	}
	if opts.PartitionSize == 0 {
		opts.PartitionSize = def.PartitionSize
	}
	if len(opts.Namespaces) == 0 {
		opts.Namespaces = def.Namespaces
	}
	if opts.Spread == 0 {
		opts.Spread = def.Spread
	}
	if opts.Seed == 0 {
		opts.Seed = def.Seed
	}
	if opts.Version == 0 {
		opts.Version = def.Version
	}
	return opts
}
