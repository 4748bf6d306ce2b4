package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hupe1980/mrlsearch"
	"github.com/hupe1980/mrlsearch/embedding"
	"github.com/hupe1980/mrlsearch/hot"
	"github.com/hupe1980/mrlsearch/vecmath"
)

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.Backend == "local" && cfg.Storage.Path == "" {
		cfg.Storage.Path = "./data"
	}
	if cfg.Storage.CacheBytes > 0 && cfg.Storage.CacheBlockSize == 0 {
		cfg.Storage.CacheBlockSize = 1 << 20
	}
	if cfg.Index.Pointer == "" {
		cfg.Index.Pointer = "blob"
	}
	if cfg.Index.RefreshInterval == 0 {
		cfg.Index.RefreshInterval = 30 * time.Second
	}
	if cfg.Hot.Dimension == 0 {
		cfg.Hot.Dimension = hot.DefaultDimension
	}
	if cfg.Search.FullDimension == 0 {
		cfg.Search.FullDimension = vecmath.FullDimension
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 10
	}
	if cfg.Search.ProbeClusters == 0 {
		cfg.Search.ProbeClusters = mrlsearch.DefaultProbeClusters
	}
	if cfg.Search.OverFetchFactor == 0 {
		cfg.Search.OverFetchFactor = mrlsearch.DefaultOverFetchFactor
	}
	if cfg.Search.MaxCandidates == 0 {
		cfg.Search.MaxCandidates = mrlsearch.DefaultMaxCandidates
	}
	if cfg.Search.Concurrency == 0 {
		cfg.Search.Concurrency = mrlsearch.DefaultConcurrency
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 2 * time.Second
	}
	if cfg.Fetch.MaxRetries == 0 {
		cfg.Fetch.MaxRetries = 3
	}
	if cfg.Fetch.InitialBackoff == 0 {
		cfg.Fetch.InitialBackoff = 50 * time.Millisecond
	}
	if cfg.Fetch.MaxBackoff == 0 {
		cfg.Fetch.MaxBackoff = time.Second
	}
	if cfg.Fetch.BreakerThreshold == 0 {
		cfg.Fetch.BreakerThreshold = 5
	}
	if cfg.Fetch.BreakerTimeout == 0 {
		cfg.Fetch.BreakerTimeout = 10 * time.Second
	}
	if cfg.Embeddings.Backend == "" {
		cfg.Embeddings.Backend = "none"
	}
	if cfg.Embeddings.RedisPrefix == "" {
		cfg.Embeddings.RedisPrefix = embedding.DefaultRedisPrefix
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "localhost:8080"
	}
}

// ParseLevel maps a level name to slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown logging.level %q", s)
	}
}
