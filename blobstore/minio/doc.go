// Package minio provides a blobstore.BlobStore for MinIO and other
// S3-compatible object stores, built on minio-go.
//
//	store, err := minio.NewFromEndpoint("localhost:9000", "minioadmin", "minioadmin", false, "mrl", "prod/")
package minio
