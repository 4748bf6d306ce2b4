package mrlsearch

import (
	"time"

	"github.com/hupe1980/mrlsearch/model"
)

// Re-exported model types for callers that only import the root package.
type (
	SearchResult = model.SearchResult
	VectorEntry  = model.VectorEntry
	Filter       = model.Filter
	Tier         = model.Tier
)

const (
	TierHot    = model.TierHot
	TierCold   = model.TierCold
	TierMerged = model.TierMerged
)

// SearchMode names the search strategy.
type SearchMode string

const (
	ModeSingle   SearchMode = "single"
	ModeTwoPhase SearchMode = "two_phase"
)

// Response is the outcome of a query.
type Response struct {
	// Results holds at most k results, best first.
	Results []SearchResult `json:"results"`
	Stats   SearchStats    `json:"stats"`
}

// SearchStats describes how a query was answered.
type SearchStats struct {
	QueryID             string     `json:"query_id"`
	Mode                SearchMode `json:"mode"`
	IndexVersion        uint64     `json:"index_version"`
	ClustersProbed      int        `json:"clusters_probed"`
	PartitionsQueried   int        `json:"partitions_queried"`
	PartitionsSucceeded int        `json:"partitions_succeeded"`
	PartitionsMissing   int        `json:"partitions_missing"`
	PartitionsFailed    int        `json:"partitions_failed"`
	// PartitionsPending counts partitions still outstanding when the
	// deadline expired.
	PartitionsPending int `json:"partitions_pending"`
	// Partial is set when some partitions or a whole tier did not
	// contribute.
	Partial     bool `json:"partial"`
	HotResults  int  `json:"hot_results"`
	ColdResults int  `json:"cold_results"`
	// Candidates, Reranked and Dropped describe phase two of a two-phase
	// search. Dropped candidates had no full embedding.
	Candidates    int           `json:"candidates"`
	Reranked      int           `json:"reranked"`
	Dropped       int           `json:"dropped"`
	RerankSkipped bool          `json:"rerank_skipped"`
	Results       int           `json:"results"`
	Duration      time.Duration `json:"duration"`
}
