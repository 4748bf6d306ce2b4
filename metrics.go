package mrlsearch

import (
	"sync/atomic"
	"time"
)

// PartitionStatus is the outcome of searching one partition.
type PartitionStatus string

const (
	PartitionSucceeded PartitionStatus = "succeeded"
	PartitionMissing   PartitionStatus = "missing"
	PartitionFailed    PartitionStatus = "failed"
	PartitionPending   PartitionStatus = "pending"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see
// package prommetrics for a Prometheus implementation.
type MetricsCollector interface {
	// RecordSearch is called after each search.
	// err is nil if successful, partial results included.
	RecordSearch(mode SearchMode, k int, duration time.Duration, err error)

	// RecordPartitionFetch is called once per partition a search touched.
	RecordPartitionFetch(status PartitionStatus, duration time.Duration)

	// RecordRerank is called after phase two of a two-phase search.
	RecordRerank(candidates, dropped int, skipped bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSearch(SearchMode, int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordPartitionFetch(PartitionStatus, time.Duration) {}
func (NoopMetricsCollector) RecordRerank(int, int, bool)                         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	SearchCount         atomic.Int64
	SearchErrors        atomic.Int64
	SearchTotalNanos    atomic.Int64
	TwoPhaseCount       atomic.Int64
	PartitionsSucceeded atomic.Int64
	PartitionsMissing   atomic.Int64
	PartitionsFailed    atomic.Int64
	PartitionsPending   atomic.Int64
	RerankCandidates    atomic.Int64
	RerankDropped       atomic.Int64
	RerankSkipped       atomic.Int64
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(mode SearchMode, k int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if mode == ModeTwoPhase {
		b.TwoPhaseCount.Add(1)
	}
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordPartitionFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPartitionFetch(status PartitionStatus, duration time.Duration) {
	switch status {
	case PartitionSucceeded:
		b.PartitionsSucceeded.Add(1)
	case PartitionMissing:
		b.PartitionsMissing.Add(1)
	case PartitionFailed:
		b.PartitionsFailed.Add(1)
	case PartitionPending:
		b.PartitionsPending.Add(1)
	}
}

// RecordRerank implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRerank(candidates, dropped int, skipped bool) {
	b.RerankCandidates.Add(int64(candidates))
	b.RerankDropped.Add(int64(dropped))
	if skipped {
		b.RerankSkipped.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		SearchCount:         b.SearchCount.Load(),
		SearchErrors:        b.SearchErrors.Load(),
		SearchAvgNanos:      b.getAvgSearchNanos(),
		TwoPhaseCount:       b.TwoPhaseCount.Load(),
		PartitionsSucceeded: b.PartitionsSucceeded.Load(),
		PartitionsMissing:   b.PartitionsMissing.Load(),
		PartitionsFailed:    b.PartitionsFailed.Load(),
		PartitionsPending:   b.PartitionsPending.Load(),
		RerankCandidates:    b.RerankCandidates.Load(),
		RerankDropped:       b.RerankDropped.Load(),
		RerankSkipped:       b.RerankSkipped.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	SearchCount         int64
	SearchErrors        int64
	SearchAvgNanos      int64
	TwoPhaseCount       int64
	PartitionsSucceeded int64
	PartitionsMissing   int64
	PartitionsFailed    int64
	PartitionsPending   int64
	RerankCandidates    int64
	RerankDropped       int64
	RerankSkipped       int64
}
