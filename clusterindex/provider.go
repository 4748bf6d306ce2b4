package clusterindex

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/mrlsearch/blobstore"
	"github.com/hupe1980/mrlsearch/model"
)

type snapshot struct {
	name string
	idx  *model.ClusterIndex
}

// BlobProvider serves the manifest named by a VersionPointer. Snapshots are
// swapped atomically; in-flight queries keep the snapshot they started with.
type BlobProvider struct {
	store   blobstore.BlobStore
	pointer VersionPointer
	logger  *slog.Logger

	current atomic.Pointer[snapshot]
	mu      sync.Mutex // serializes refreshes
}

// BlobProviderOption configures a BlobProvider.
type BlobProviderOption func(*BlobProvider)

// WithLogger sets the logger used for refresh events.
func WithLogger(l *slog.Logger) BlobProviderOption {
	return func(p *BlobProvider) { p.logger = l }
}

// NewBlobProvider creates a provider. Nothing is loaded until the first
// Current or Refresh call.
func NewBlobProvider(store blobstore.BlobStore, pointer VersionPointer, opts ...BlobProviderOption) *BlobProvider {
	p := &BlobProvider{
		store:   store,
		pointer: pointer,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Current implements Provider. The first call loads the index.
func (p *BlobProvider) Current(ctx context.Context) (*model.ClusterIndex, error) {
	if s := p.current.Load(); s != nil {
		return s.idx, nil
	}
	if _, err := p.Refresh(ctx); err != nil {
		return nil, err
	}
	return p.current.Load().idx, nil
}

// Refresh re-reads the pointer and loads the manifest if it changed. It
// reports whether a new snapshot was installed. An older version than the
// one being served is ignored.
func (p *BlobProvider) Refresh(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name, err := p.pointer.Current(ctx)
	if err != nil {
		return false, err
	}
	old := p.current.Load()
	if old != nil && old.name == name {
		return false, nil
	}

	idx, err := Load(ctx, p.store, name)
	if err != nil {
		return false, err
	}
	if old != nil && idx.Version < old.idx.Version {
		p.logger.WarnContext(ctx, "ignoring older cluster index",
			"manifest", name,
			"version", idx.Version,
			"current_version", old.idx.Version,
		)
		return false, nil
	}

	p.current.Store(&snapshot{name: name, idx: idx})
	p.logger.InfoContext(ctx, "cluster index loaded",
		"manifest", name,
		"version", idx.Version,
		"clusters", len(idx.Clusters),
	)
	return true, nil
}

// Watch refreshes every interval until ctx is done. Refresh errors are
// logged and the current snapshot stays in place.
func (p *BlobProvider) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
				p.logger.WarnContext(ctx, "cluster index refresh failed", "error", err)
			}
		}
	}
}
