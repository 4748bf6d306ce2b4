package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/mrlsearch"
	"github.com/hupe1980/mrlsearch/blobstore"
	"github.com/hupe1980/mrlsearch/blobstore/minio"
	"github.com/hupe1980/mrlsearch/blobstore/s3"
	"github.com/hupe1980/mrlsearch/clusterindex"
	ddbpointer "github.com/hupe1980/mrlsearch/clusterindex/dynamodb"
	appconfig "github.com/hupe1980/mrlsearch/config"
	"github.com/hupe1980/mrlsearch/embedding"
	"github.com/hupe1980/mrlsearch/hot"
	"github.com/hupe1980/mrlsearch/internal/cache"
	"github.com/hupe1980/mrlsearch/partition"
	"github.com/hupe1980/mrlsearch/prommetrics"
)

// components holds everything built from a config.
type components struct {
	Store    blobstore.BlobStore
	Indexes  *clusterindex.BlobProvider
	Engine   *mrlsearch.SearchEngine
	Registry *prometheus.Registry
	Logger   *mrlsearch.Logger

	closers []func() error
}

// Close releases connections opened for the embedding provider.
func (c *components) Close() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

func newLogger(cfg appconfig.LoggingConfig) (*mrlsearch.Logger, error) {
	level, err := appconfig.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Format == "json" {
		return mrlsearch.NewJSONLogger(level), nil
	}
	return mrlsearch.NewTextLogger(level), nil
}

func initializeComponents(ctx context.Context, cfg *appconfig.Config) (*components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	c := &components{Logger: logger, Registry: prometheus.NewRegistry()}

	c.Store, err = buildStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	pointer, err := buildPointer(ctx, cfg, c.Store)
	if err != nil {
		return nil, err
	}
	c.Indexes = clusterindex.NewBlobProvider(c.Store, pointer, clusterindex.WithLogger(logger.Logger))

	opts := []mrlsearch.Option{
		mrlsearch.WithLogger(logger),
		mrlsearch.WithFullDimension(cfg.Search.FullDimension),
		mrlsearch.WithProbeClusters(cfg.Search.ProbeClusters),
		mrlsearch.WithOverFetchFactor(cfg.Search.OverFetchFactor),
		mrlsearch.WithMaxCandidates(cfg.Search.MaxCandidates),
		mrlsearch.WithConcurrency(cfg.Search.Concurrency),
		mrlsearch.WithDefaultTimeout(cfg.Search.Timeout),
		mrlsearch.WithMetricsCollector(prommetrics.New(c.Registry)),
		mrlsearch.WithFetcherOptions(
			partition.WithRateLimit(cfg.Fetch.RateLimit, cfg.Fetch.Burst),
			partition.WithRetries(cfg.Fetch.MaxRetries, cfg.Fetch.InitialBackoff, cfg.Fetch.MaxBackoff),
			partition.WithCircuitBreaker(cfg.Fetch.BreakerThreshold, cfg.Fetch.BreakerTimeout),
			partition.WithPartitionCache(cfg.Fetch.CacheSize),
		),
	}
	if cfg.Search.Metric != nil {
		opts = append(opts, mrlsearch.WithMetric(*cfg.Search.Metric))
	}
	if cfg.Search.MinClusterSimilarity != nil {
		opts = append(opts, mrlsearch.WithMinClusterSimilarity(*cfg.Search.MinClusterSimilarity))
	}

	provider, closer, err := buildEmbeddings(ctx, cfg.Embeddings)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		c.closers = append(c.closers, closer)
	}
	if provider != nil {
		opts = append(opts, mrlsearch.WithEmbeddingProvider(provider))
	}

	if cfg.Hot.Enabled {
		idx, err := buildHot(ctx, cfg.Hot, c.Store, c.Indexes)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		opts = append(opts, mrlsearch.WithHotTier(idx))
	}

	c.Engine, err = mrlsearch.New(c.Store, c.Indexes, opts...)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func buildStore(ctx context.Context, cfg appconfig.StorageConfig) (blobstore.BlobStore, error) {
	var (
		store blobstore.BlobStore
		err   error
	)
	switch cfg.Backend {
	case "local":
		var opts []blobstore.LocalOption
		if cfg.Mmap {
			opts = append(opts, blobstore.WithMmap())
		}
		store = blobstore.NewLocalStore(cfg.Path, opts...)
	case "memory":
		store = blobstore.NewMemoryStore()
	case "s3":
		opts := []s3.Option{s3.WithPrefix(cfg.Prefix), s3.WithPathStyle(cfg.PathStyle)}
		if cfg.Region != "" {
			opts = append(opts, s3.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(cfg.Endpoint))
		}
		store, err = s3.New(ctx, cfg.Bucket, opts...)
	case "minio":
		store, err = minio.NewFromEndpoint(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Secure, cfg.Bucket, cfg.Prefix)
	default:
		err = fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheBytes > 0 {
		store = blobstore.NewCachingStore(store, cache.NewLRUBlockCache(cfg.CacheBytes), cfg.CacheBlockSize)
	}
	return store, nil
}

func buildPointer(ctx context.Context, cfg *appconfig.Config, store blobstore.BlobStore) (clusterindex.VersionPointer, error) {
	switch cfg.Index.Pointer {
	case "blob":
		return clusterindex.NewBlobPointer(store), nil
	case "dynamodb":
		var opts []func(*config.LoadOptions) error
		if cfg.Storage.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Storage.Region))
		}
		return ddbpointer.New(ctx, cfg.Index.Table, cfg.Index.BaseURI, opts...)
	default:
		return nil, fmt.Errorf("unknown index pointer %q", cfg.Index.Pointer)
	}
}

func buildEmbeddings(ctx context.Context, cfg appconfig.EmbeddingsConfig) (embedding.Provider, func() error, error) {
	var (
		provider embedding.Provider
		closer   func() error
	)
	switch cfg.Backend {
	case "none":
		return nil, nil, nil
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		provider, closer = embedding.NewRedisProvider(client, cfg.RedisPrefix), client.Close
	case "postgres":
		db, err := embedding.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		provider = embedding.NewPostgresProvider(db, func(o *embedding.PostgresOptions) {
			if cfg.Table != "" {
				o.Table = cfg.Table
			}
			if cfg.IDColumn != "" {
				o.IDColumn = cfg.IDColumn
			}
			if cfg.VectorColumn != "" {
				o.VectorColumn = cfg.VectorColumn
			}
		})
		closer = db.Close
	default:
		return nil, nil, fmt.Errorf("unknown embeddings backend %q", cfg.Backend)
	}

	if cfg.CacheSize > 0 {
		cached, err := embedding.NewCachingProvider(provider, cfg.CacheSize)
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
		provider = cached
	}
	return provider, closer, nil
}

// buildHot creates the hot index and, if requested, fills it with every
// partition of the current cluster index.
func buildHot(ctx context.Context, cfg appconfig.HotConfig, store blobstore.BlobStore, indexes clusterindex.Provider) (*hot.Index, error) {
	idx, err := hot.New(func(o *hot.Options) { o.Dimension = cfg.Dimension })
	if err != nil {
		return nil, err
	}
	if !cfg.Preload {
		return idx, nil
	}

	ci, err := indexes.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("preload hot tier: %w", err)
	}
	seen := make(map[string]struct{})
	for _, c := range ci.Clusters {
		for _, key := range c.PartitionKeys {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			p, err := partition.FetchPartition(ctx, store, key)
			if err != nil {
				return nil, fmt.Errorf("preload hot tier: %w", err)
			}
			if p == nil {
				continue
			}
			if err := idx.AddPartition(p); err != nil {
				return nil, fmt.Errorf("preload hot tier: %w", err)
			}
		}
	}
	return idx, nil
}
