// Package config provides configuration loading and structs for the
// mrlsearch command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/mrlsearch/vecmath"
)

// Config holds all configuration for the command.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Index      IndexConfig      `yaml:"index"`
	Hot        HotConfig        `yaml:"hot"`
	Search     SearchConfig     `yaml:"search"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
}

// StorageConfig selects the blob store holding partitions and manifests.
type StorageConfig struct {
	// Backend is one of "local", "s3", "minio" or "memory".
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	// Mmap serves local reads from memory mappings.
	Mmap bool `yaml:"mmap"`
	// CacheBytes enables a block cache in front of the store.
	CacheBytes     int64 `yaml:"cache_bytes"`
	CacheBlockSize int64 `yaml:"cache_block_size"`
}

// IndexConfig selects where the current cluster index version is tracked.
type IndexConfig struct {
	// Pointer is "blob" (a CURRENT blob in storage) or "dynamodb".
	Pointer         string        `yaml:"pointer"`
	Table           string        `yaml:"table"`
	BaseURI         string        `yaml:"base_uri"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// HotConfig holds hot tier settings.
type HotConfig struct {
	Enabled   bool `yaml:"enabled"`
	Dimension int  `yaml:"dimension"`
	// Preload loads every partition of the current index into the hot
	// tier at startup.
	Preload bool `yaml:"preload"`
}

// SearchConfig holds engine tuning.
type SearchConfig struct {
	FullDimension int `yaml:"full_dimension"`
	DefaultK      int `yaml:"default_k"`
	// Metric overrides the cluster index metric when set.
	Metric               *vecmath.Metric `yaml:"metric,omitempty"`
	ProbeClusters        int             `yaml:"probe_clusters"`
	MinClusterSimilarity *float32        `yaml:"min_cluster_similarity"`
	OverFetchFactor      int             `yaml:"over_fetch_factor"`
	MaxCandidates        int             `yaml:"max_candidates"`
	Concurrency          int             `yaml:"concurrency"`
	Timeout              time.Duration   `yaml:"timeout"`
}

// FetchConfig holds partition fetcher settings.
type FetchConfig struct {
	RateLimit        float64       `yaml:"rate_limit"`
	Burst            int           `yaml:"burst"`
	MaxRetries       uint64        `yaml:"max_retries"`
	InitialBackoff   time.Duration `yaml:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	BreakerThreshold uint32        `yaml:"breaker_threshold"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout"`
	CacheSize        int           `yaml:"cache_size"`
}

// EmbeddingsConfig selects the full-embedding provider used for rerank.
type EmbeddingsConfig struct {
	// Backend is "none", "redis" or "postgres".
	Backend      string `yaml:"backend"`
	RedisAddr    string `yaml:"redis_addr"`
	RedisPrefix  string `yaml:"redis_prefix"`
	PostgresDSN  string `yaml:"postgres_dsn"`
	Table        string `yaml:"table"`
	IDColumn     string `yaml:"id_column"`
	VectorColumn string `yaml:"vector_column"`
	CacheSize    int    `yaml:"cache_size"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads and parses the config file at path, applies defaults and
// resolves a relative local storage path against the config directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Backend == "local" && !filepath.IsAbs(cfg.Storage.Path) {
		cfg.Storage.Path = filepath.Join(filepath.Dir(path), cfg.Storage.Path)
	}
	return cfg, nil
}

// Parse decodes YAML config data and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports every inconsistent setting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case "local":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the local backend"))
		}
	case "s3", "minio":
		if c.Storage.Bucket == "" {
			errs = append(errs, fmt.Errorf("storage.bucket is required for the %s backend", c.Storage.Backend))
		}
		if c.Storage.Backend == "minio" && c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("storage.endpoint is required for the minio backend"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}

	switch c.Index.Pointer {
	case "blob":
	case "dynamodb":
		if c.Index.Table == "" {
			errs = append(errs, errors.New("index.table is required for the dynamodb pointer"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown index.pointer %q", c.Index.Pointer))
	}

	if !vecmath.IsSupportedDimension(c.Search.FullDimension) {
		errs = append(errs, fmt.Errorf("search.full_dimension %d is not supported", c.Search.FullDimension))
	}
	if c.Hot.Enabled {
		if !vecmath.IsSupportedDimension(c.Hot.Dimension) {
			errs = append(errs, fmt.Errorf("hot.dimension %d is not supported", c.Hot.Dimension))
		} else if c.Hot.Dimension > c.Search.FullDimension {
			errs = append(errs, fmt.Errorf("hot.dimension %d exceeds search.full_dimension %d", c.Hot.Dimension, c.Search.FullDimension))
		}
	}
	if c.Search.DefaultK < 1 {
		errs = append(errs, errors.New("search.default_k must be positive"))
	}
	if c.Search.OverFetchFactor < 1 {
		errs = append(errs, errors.New("search.over_fetch_factor must be at least 1"))
	}
	if c.Search.Concurrency < 1 {
		errs = append(errs, errors.New("search.concurrency must be at least 1"))
	}

	switch c.Embeddings.Backend {
	case "none":
	case "redis":
		if c.Embeddings.RedisAddr == "" {
			errs = append(errs, errors.New("embeddings.redis_addr is required for the redis backend"))
		}
	case "postgres":
		if c.Embeddings.PostgresDSN == "" {
			errs = append(errs, errors.New("embeddings.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embeddings.backend %q", c.Embeddings.Backend))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
