package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mrlsearch/vecmath"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "blob", cfg.Index.Pointer)
	assert.Equal(t, 768, cfg.Search.FullDimension)
	assert.Equal(t, 4, cfg.Search.ProbeClusters)
	assert.Equal(t, 5, cfg.Search.OverFetchFactor)
	assert.Equal(t, 1000, cfg.Search.MaxCandidates)
	assert.Equal(t, 16, cfg.Search.Concurrency)
	assert.Equal(t, 256, cfg.Hot.Dimension)
	assert.Equal(t, "none", cfg.Embeddings.Backend)
	assert.Nil(t, cfg.Search.Metric)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: local
  path: ./partitions
index:
  refresh_interval: 1m
hot:
  enabled: true
  dimension: 128
search:
  metric: euclidean
  min_cluster_similarity: 0.25
  timeout: 750ms
fetch:
  rate_limit: 100
  burst: 10
embeddings:
  backend: redis
  redis_addr: localhost:6379
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(filepath.Dir(path), "partitions"), cfg.Storage.Path)
	assert.Equal(t, time.Minute, cfg.Index.RefreshInterval)
	assert.True(t, cfg.Hot.Enabled)
	assert.Equal(t, 128, cfg.Hot.Dimension)
	require.NotNil(t, cfg.Search.Metric)
	assert.Equal(t, vecmath.MetricEuclidean, *cfg.Search.Metric)
	require.NotNil(t, cfg.Search.MinClusterSimilarity)
	assert.InDelta(t, 0.25, *cfg.Search.MinClusterSimilarity, 1e-6)
	assert.Equal(t, 750*time.Millisecond, cfg.Search.Timeout)
	assert.Equal(t, 100.0, cfg.Fetch.RateLimit)
	assert.Equal(t, "mrl:emb:", cfg.Embeddings.RedisPrefix)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "search: [unterminated"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "search:\n  metric: manhattan\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"UnknownBackend", func(c *Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"S3WithoutBucket", func(c *Config) { c.Storage.Backend = "s3" }, "storage.bucket"},
		{"MinioWithoutEndpoint", func(c *Config) { c.Storage.Backend = "minio"; c.Storage.Bucket = "b" }, "storage.endpoint"},
		{"DynamoWithoutTable", func(c *Config) { c.Index.Pointer = "dynamodb" }, "index.table"},
		{"FullDimension", func(c *Config) { c.Search.FullDimension = 100 }, "full_dimension"},
		{"HotTooWide", func(c *Config) {
			c.Hot.Enabled = true
			c.Search.FullDimension = 128
			c.Hot.Dimension = 256
		}, "hot.dimension"},
		{"RedisWithoutAddr", func(c *Config) { c.Embeddings.Backend = "redis" }, "redis_addr"},
		{"PostgresWithoutDSN", func(c *Config) { c.Embeddings.Backend = "postgres" }, "postgres_dsn"},
		{"LogFormat", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"LogLevel", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	dot := vecmath.MetricDot
	cfg.Search.Metric = &dot

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, loaded.Search.Metric)
	assert.Equal(t, vecmath.MetricDot, *loaded.Search.Metric)
	assert.Equal(t, cfg.Search.Timeout, loaded.Search.Timeout)
}
