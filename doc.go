// Package mrlsearch provides tiered similarity search over Matryoshka
// (MRL) embeddings.
//
// Vectors live in two tiers. The hot tier is an in-memory index of
// truncated, renormalized vectors. The cold tier is a set of immutable
// partitions in object storage, grouped by cluster. A versioned cluster
// index routes each query to the most similar clusters, whose partitions
// are fetched and scored concurrently.
//
// # Quick Start
//
//	store := blobstore.NewLocalStore("./data")
//	indexes := clusterindex.NewBlobProvider(store, clusterindex.NewBlobPointer(store))
//
//	engine, err := mrlsearch.New(store, indexes,
//	    mrlsearch.WithHotTier(hotIndex),
//	    mrlsearch.WithEmbeddingProvider(embeddings),
//	)
//
//	resp, err := engine.Search(ctx, embedding, 10)
//
// # Two-Phase Search
//
// TwoPhaseSearch gathers k×over-fetch candidates from the hot tier (or a
// reduced-dimension scan of the cold tier), fetches their full embeddings
// and reranks them with exact similarity:
//
//	resp, err := engine.Query(embedding).
//	    K(10).
//	    Namespace("docs").
//	    TwoPhase().
//	    Execute(ctx)
//
// Candidates without a full embedding are dropped. When the embedding
// provider fails, the phase one ranking is returned with
// Stats.RerankSkipped set.
//
// # Partial Results
//
// A failing or missing partition never fails a query on its own. When the
// query timeout expires, the results gathered so far are returned and
// Stats.Partial is set. A query fails with *AllPartitionsFailedError only
// if every selected partition failed. Caller cancellation is returned as
// context.Canceled.
//
// # Observability
//
// Queries are logged through Logger (log/slog), counted through a
// MetricsCollector (see the prommetrics package for Prometheus) and traced
// with OpenTelemetry when WithTracerProvider is set.
package mrlsearch
