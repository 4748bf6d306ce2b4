package mrlsearch

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/mrlsearch/embedding"
	"github.com/hupe1980/mrlsearch/hot"
	"github.com/hupe1980/mrlsearch/metadata"
	"github.com/hupe1980/mrlsearch/model"
	"github.com/hupe1980/mrlsearch/partition"
	"github.com/hupe1980/mrlsearch/vecmath"
)

// Engine defaults.
const (
	DefaultProbeClusters   = 4
	DefaultOverFetchFactor = 5
	DefaultMaxCandidates   = 1000
	DefaultConcurrency     = 16
)

type options struct {
	fullDimension        int
	metric               *vecmath.Metric
	hot                  *hot.Index
	embeddings           embedding.Provider
	probeClusters        int
	minClusterSimilarity *float32
	overFetchFactor      int
	maxCandidates        int
	concurrency          int
	defaultTimeout       time.Duration
	fetcher              *partition.Fetcher
	fetcherOptions       []partition.FetcherOption
	metricsCollector     MetricsCollector
	logger               *Logger
	tracerProvider       trace.TracerProvider
}

// Option configures a SearchEngine.
type Option func(*options)

// WithFullDimension sets the dimension of full-resolution query and stored
// embeddings. Defaults to vecmath.FullDimension.
func WithFullDimension(d int) Option {
	return func(o *options) {
		o.fullDimension = d
	}
}

// WithMetric overrides the cluster index metric for every query that does
// not set its own.
func WithMetric(m vecmath.Metric) Option {
	return func(o *options) {
		o.metric = &m
	}
}

// WithHotTier enables the hot tier. It serves single-pass searches next to
// the cold tier and supplies two-phase candidates.
func WithHotTier(idx *hot.Index) Option {
	return func(o *options) {
		o.hot = idx
	}
}

// WithEmbeddingProvider sets the provider of full embeddings used by the
// rerank phase of TwoPhaseSearch.
func WithEmbeddingProvider(p embedding.Provider) Option {
	return func(o *options) {
		o.embeddings = p
	}
}

// WithProbeClusters caps the number of clusters a query probes.
// Zero probes every cluster.
func WithProbeClusters(n int) Option {
	return func(o *options) {
		o.probeClusters = n
	}
}

// WithMinClusterSimilarity skips clusters whose centroid scores below s.
func WithMinClusterSimilarity(s float32) Option {
	return func(o *options) {
		o.minClusterSimilarity = &s
	}
}

// WithOverFetchFactor sets how many phase one candidates are gathered per
// requested result in a two-phase search.
func WithOverFetchFactor(f int) Option {
	return func(o *options) {
		o.overFetchFactor = f
	}
}

// WithMaxCandidates caps the phase one candidate count.
func WithMaxCandidates(n int) Option {
	return func(o *options) {
		o.maxCandidates = n
	}
}

// WithConcurrency bounds the number of partitions fetched and scanned at once
// by a single query.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithDefaultTimeout applies a deadline to every query that does not set
// its own. When it expires the query returns what it has so far.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		o.defaultTimeout = d
	}
}

// WithFetcher uses f for partition access instead of building one.
func WithFetcher(f *partition.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithFetcherOptions configures the partition fetcher the engine builds.
func WithFetcherOptions(optFns ...partition.FetcherOption) Option {
	return func(o *options) {
		o.fetcherOptions = append(o.fetcherOptions, optFns...)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &mrlsearch.BasicMetricsCollector{}
//	engine, _ := mrlsearch.New(store, indexes, mrlsearch.WithMetricsCollector(metrics))
//	// ... run queries ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := mrlsearch.NewJSONLogger(slog.LevelInfo)
//	engine, _ := mrlsearch.New(store, indexes, mrlsearch.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithTracerProvider enables OpenTelemetry spans for queries.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		fullDimension:    vecmath.FullDimension,
		probeClusters:    DefaultProbeClusters,
		overFetchFactor:  DefaultOverFetchFactor,
		maxCandidates:    DefaultMaxCandidates,
		concurrency:      DefaultConcurrency,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}

// SearchOptions adjusts a single query. Zero values fall back to the
// engine configuration.
type SearchOptions struct {
	// Filter restricts results by namespace and type tag.
	Filter model.Filter
	// MetadataFilter restricts results by metadata.
	MetadataFilter *metadata.FilterSet
	// Metric overrides the cluster index metric.
	Metric *vecmath.Metric
	// DisableHot and DisableCold skip a tier.
	DisableHot  bool
	DisableCold bool
	// Timeout bounds the query. On expiry the results gathered so far are
	// returned and flagged partial.
	Timeout              time.Duration
	ProbeClusters        int
	MinClusterSimilarity *float32
	OverFetchFactor      int
}

// SearchOption mutates SearchOptions.
type SearchOption func(*SearchOptions)

func (e *SearchEngine) searchOptions(optFns []SearchOption) SearchOptions {
	so := SearchOptions{
		Metric:               e.opts.metric,
		Timeout:              e.opts.defaultTimeout,
		ProbeClusters:        e.opts.probeClusters,
		MinClusterSimilarity: e.opts.minClusterSimilarity,
		OverFetchFactor:      e.opts.overFetchFactor,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&so)
		}
	}
	return so
}
