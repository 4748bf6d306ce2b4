package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/mrlsearch/blobstore"
)

// FaultyStore wraps a BlobStore and injects per-blob delays and errors
// into Open.
type FaultyStore struct {
	blobstore.BlobStore

	mu     sync.Mutex
	delays map[string]time.Duration
	errs   map[string]error
	opens  atomic.Int64
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner blobstore.BlobStore) *FaultyStore {
	return &FaultyStore{
		BlobStore: inner,
		delays:    make(map[string]time.Duration),
		errs:      make(map[string]error),
	}
}

// Delay makes Open of name block for d or until the context ends.
func (s *FaultyStore) Delay(name string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[name] = d
}

// Fail makes Open of name return err. A nil err clears the fault.
func (s *FaultyStore) Fail(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, name)
		return
	}
	s.errs[name] = err
}

// Opens returns the number of Open calls seen.
func (s *FaultyStore) Opens() int64 { return s.opens.Load() }

func (s *FaultyStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	s.opens.Add(1)

	s.mu.Lock()
	d, err := s.delays[name], s.errs[name]
	s.mu.Unlock()

	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if err != nil {
		return nil, err
	}
	return s.BlobStore.Open(ctx, name)
}
