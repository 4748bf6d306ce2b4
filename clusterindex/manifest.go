package clusterindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/mrlsearch/blobstore"
	"github.com/hupe1980/mrlsearch/codec"
	"github.com/hupe1980/mrlsearch/model"
)

const (
	// ManifestPrefix is the blob prefix manifests are written under.
	ManifestPrefix = "manifests/"
	// FormatVersion is the manifest format version.
	FormatVersion = 1
)

type manifest struct {
	Format int `json:"format"`
	model.ClusterIndex
}

// ManifestName returns the blob name of the manifest for version.
func ManifestName(version uint64) string {
	return fmt.Sprintf("%sMANIFEST-%06d.json", ManifestPrefix, version)
}

// Marshal encodes idx as a manifest.
func Marshal(c codec.Codec, idx *model.ClusterIndex) ([]byte, error) {
	if idx == nil {
		return nil, fmt.Errorf("%w: nil index", ErrInvalidIndex)
	}
	return c.Marshal(manifest{Format: FormatVersion, ClusterIndex: *idx})
}

// Unmarshal decodes and validates a manifest.
func Unmarshal(c codec.Codec, data []byte) (*model.ClusterIndex, error) {
	var m manifest
	if err := c.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	if m.Format != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported manifest format %d (expected %d)", ErrInvalidIndex, m.Format, FormatVersion)
	}
	idx := m.ClusterIndex
	if err := Validate(&idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// Load reads the manifest stored under name.
func Load(ctx context.Context, store blobstore.BlobStore, name string) (*model.ClusterIndex, error) {
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("manifest %q: %w", name, ErrNoIndex)
		}
		return nil, fmt.Errorf("manifest %q: %w", name, err)
	}
	idx, err := Unmarshal(codec.Default, data)
	if err != nil {
		return nil, fmt.Errorf("manifest %q: %w", name, err)
	}
	return idx, nil
}

// Save validates idx, writes it as a new manifest and commits it through
// pointer. It returns the manifest name.
func Save(ctx context.Context, store blobstore.BlobStore, pointer VersionPointer, idx *model.ClusterIndex) (string, error) {
	if err := Validate(idx); err != nil {
		return "", err
	}
	data, err := Marshal(codec.Default, idx)
	if err != nil {
		return "", err
	}

	name := ManifestName(idx.Version)
	if err := store.Put(ctx, name, data); err != nil {
		return "", fmt.Errorf("write manifest %q: %w", name, err)
	}
	if err := pointer.Commit(ctx, name); err != nil {
		return "", fmt.Errorf("commit manifest %q: %w", name, err)
	}
	return name, nil
}
