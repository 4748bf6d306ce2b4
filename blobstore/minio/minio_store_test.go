package minio

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mrlsearch/blobstore"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("boom")))
}

func TestKeyJoinsPrefix(t *testing.T) {
	s := &Store{prefix: "prod/"}
	assert.Equal(t, "prod/partitions/p1", s.key("partitions/p1"))
}

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	store, err := NewFromEndpoint("localhost:9000", "minioadmin", "minioadmin", false, "test-mrlsearch", "test-prefix/")
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := store.client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := store.client.BucketExists(ctx, store.bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, store.client.MakeBucket(ctx, store.bucket, minio.MakeBucketOptions{}))
	}

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "partitions/test.bin", data))

	got, err := blobstore.ReadAll(ctx, store, "partitions/test.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "partitions/")
	require.NoError(t, err)
	assert.Contains(t, names, "partitions/test.bin")

	require.NoError(t, store.Delete(ctx, "partitions/test.bin"))
	_, err = store.Open(ctx, "partitions/test.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
