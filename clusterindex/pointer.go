package clusterindex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/mrlsearch/blobstore"
)

// CurrentName is the blob that BlobPointer keeps the current manifest name in.
const CurrentName = "CURRENT"

// ErrConcurrentModification is returned when another writer committed first.
var ErrConcurrentModification = errors.New("clusterindex: concurrent modification detected")

// VersionPointer tracks which manifest is current.
type VersionPointer interface {
	// Current returns the current manifest name, or ErrNoIndex.
	Current(ctx context.Context) (string, error)
	// Commit makes name the current manifest.
	Commit(ctx context.Context, name string) error
}

// BlobPointer keeps the current manifest name in a CURRENT blob. It relies
// on the store replacing blobs atomically and is meant for single writers.
type BlobPointer struct {
	store blobstore.BlobStore
	name  string
}

// NewBlobPointer returns a pointer stored in store under CurrentName.
func NewBlobPointer(store blobstore.BlobStore) *BlobPointer {
	return &BlobPointer{store: store, name: CurrentName}
}

// Current implements VersionPointer.
func (p *BlobPointer) Current(ctx context.Context) (string, error) {
	data, err := blobstore.ReadAll(ctx, p.store, p.name)
	if errors.Is(err, blobstore.ErrNotFound) {
		return "", ErrNoIndex
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p.name, err)
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", ErrNoIndex
	}
	return name, nil
}

// Commit implements VersionPointer.
func (p *BlobPointer) Commit(ctx context.Context, name string) error {
	return p.store.Put(ctx, p.name, []byte(name))
}
