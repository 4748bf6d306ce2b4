// Package prommetrics exports search engine metrics to Prometheus.
package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/mrlsearch"
)

const namespace = "mrlsearch"

// Collector implements mrlsearch.MetricsCollector with Prometheus metrics.
type Collector struct {
	SearchTotal       *prometheus.CounterVec
	SearchDuration    *prometheus.HistogramVec
	PartitionTotal    *prometheus.CounterVec
	PartitionDuration *prometheus.HistogramVec
	RerankCandidates  prometheus.Histogram
	RerankDropped     prometheus.Counter
	RerankSkipped     prometheus.Counter
}

var _ mrlsearch.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		SearchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total number of searches by mode and outcome",
			},
			[]string{"mode", "status"},
		),

		// Buckets: 1ms .. 10s
		SearchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Duration of searches in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 10},
			},
			[]string{"mode", "k"},
		),

		PartitionTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partitions_total",
				Help:      "Total number of partition scans by outcome",
			},
			[]string{"status"},
		),

		PartitionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "partition_duration_seconds",
				Help:      "Duration of partition fetch and scan in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),

		RerankCandidates: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rerank_candidates",
				Help:      "Number of phase one candidates per two-phase search",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),

		RerankDropped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rerank_dropped_total",
				Help:      "Candidates dropped for lack of a full embedding",
			},
		),

		RerankSkipped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rerank_skipped_total",
				Help:      "Two-phase searches served without rerank",
			},
		),
	}
}

// RecordSearch implements mrlsearch.MetricsCollector.
func (c *Collector) RecordSearch(mode mrlsearch.SearchMode, k int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.SearchTotal.WithLabelValues(string(mode), status).Inc()
	c.SearchDuration.WithLabelValues(string(mode), kBucket(k)).Observe(duration.Seconds())
}

// RecordPartitionFetch implements mrlsearch.MetricsCollector.
func (c *Collector) RecordPartitionFetch(status mrlsearch.PartitionStatus, duration time.Duration) {
	c.PartitionTotal.WithLabelValues(string(status)).Inc()
	c.PartitionDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

// RecordRerank implements mrlsearch.MetricsCollector.
func (c *Collector) RecordRerank(candidates, dropped int, skipped bool) {
	c.RerankCandidates.Observe(float64(candidates))
	c.RerankDropped.Add(float64(dropped))
	if skipped {
		c.RerankSkipped.Inc()
	}
}

// kBucket keeps the k label low-cardinality.
func kBucket(k int) string {
	for _, b := range []int{1, 10, 100, 1000} {
		if k <= b {
			return strconv.Itoa(b)
		}
	}
	return "inf"
}
