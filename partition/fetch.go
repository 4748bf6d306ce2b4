package partition

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/mrlsearch/blobstore"
	"github.com/hupe1980/mrlsearch/model"
)

// FetchError describes a failed partition fetch.
type FetchError struct {
	Key string
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("partition %q: %s: %v", e.Key, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchPartition reads and decodes the partition stored under key.
//
// A partition that does not exist yields (nil, nil). Callers count it as
// missing, not failed. Transport failures and undecodable bytes are
// returned as *FetchError; the latter also match ErrCorrupt.
func FetchPartition(ctx context.Context, store blobstore.BlobStore, key string) (*ParsedPartition, error) {
	data, err := blobstore.ReadAll(ctx, store, key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, nil
		}
		return nil, &FetchError{Key: key, Op: "read", Err: err}
	}

	p, err := Decode(key, data)
	if err != nil {
		return nil, &FetchError{Key: key, Op: "decode", Err: err}
	}
	return p, nil
}

// Write encodes entries and stores them under key.
func Write(ctx context.Context, store blobstore.BlobStore, key string, entries []model.VectorEntry, opts ...EncodeOption) error {
	data, err := Encode(entries, opts...)
	if err != nil {
		return fmt.Errorf("partition %q: encode: %w", key, err)
	}
	if err := store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("partition %q: write: %w", key, err)
	}
	return nil
}
