package mrlsearch

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with search-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithQueryID adds a query_id field to the logger.
func (l *Logger) WithQueryID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("query_id", id),
	}
}

// LogSearch logs a completed search.
func (l *Logger) LogSearch(ctx context.Context, mode SearchMode, k int, stats *SearchStats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"mode", mode,
			"k", k,
			"error", err,
		)
		return
	}
	if stats.Partial {
		l.WarnContext(ctx, "search returned partial results",
			"mode", mode,
			"k", k,
			"results", stats.Results,
			"partitions_failed", stats.PartitionsFailed,
			"partitions_pending", stats.PartitionsPending,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"mode", mode,
		"k", k,
		"results", stats.Results,
		"duration", stats.Duration,
	)
}

// LogPartitionFailure logs a partition that could not be searched.
func (l *Logger) LogPartitionFailure(ctx context.Context, key string, err error) {
	l.WarnContext(ctx, "partition failed",
		"partition", key,
		"error", err,
	)
}

// LogTierFallback logs a tier failure that was absorbed by the other tier.
func (l *Logger) LogTierFallback(ctx context.Context, failed string, err error) {
	l.WarnContext(ctx, "tier failed, serving remaining tier",
		"tier", failed,
		"error", err,
	)
}

// LogRerank logs the outcome of a phase two rerank.
func (l *Logger) LogRerank(ctx context.Context, candidates, reranked, dropped int, err error) {
	if err != nil {
		l.WarnContext(ctx, "rerank skipped, serving phase one ranking",
			"candidates", candidates,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "rerank completed",
		"candidates", candidates,
		"reranked", reranked,
		"dropped", dropped,
	)
}
