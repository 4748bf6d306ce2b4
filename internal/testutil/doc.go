// Package testutil provides testing utilities for mrlsearch.
//
// This package is intended for use in tests only. It provides helpers for
// generating random vectors, building a small cluster-partitioned corpus in
// a blob store, and injecting storage faults.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vec := rng.UnitVector(768)
//	near := rng.VectorAtCosine(vec, 0.8)
//
// # Corpus
//
//	store := blobstore.NewMemoryStore()
//	corpus, _ := testutil.BuildCorpus(ctx, store, testutil.CorpusOptions{Vectors: 500})
//	provider, _ := clusterindex.NewStatic(corpus.Index)
package testutil
