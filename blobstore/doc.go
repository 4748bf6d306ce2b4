// Package blobstore provides the object storage abstraction partitions and
// cluster index manifests are read from.
//
// BlobStore is the interface for reading and writing immutable blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests and fixtures
//   - LocalStore: local filesystem
//   - CachingStore: block cache in front of any other store
//   - s3.Store: Amazon S3 (aws-sdk-go-v2)
//   - minio.Store: MinIO and other S3-compatible services
//
// A missing blob is reported with an error satisfying
// errors.Is(err, blobstore.ErrNotFound).
package blobstore
