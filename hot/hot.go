// Package hot provides the in-memory hot tier: a flat index of recently
// written or frequently read vectors held at a reduced MRL dimension.
package hot

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/mrlsearch/metadata"
	"github.com/hupe1980/mrlsearch/model"
	"github.com/hupe1980/mrlsearch/partition"
	"github.com/hupe1980/mrlsearch/vecmath"
)

// DefaultDimension is the hot tier resolution when none is configured.
const DefaultDimension = 256

// Options contains configuration options for the hot index.
type Options struct {
	// Dimension is the resolution vectors are truncated to on insert.
	// It must be one of vecmath.SupportedDimensions.
	Dimension int
}

// DefaultOptions contains the default configuration options for the hot index.
var DefaultOptions = Options{
	Dimension: DefaultDimension,
}

// SearchOptions restricts a hot tier search.
type SearchOptions struct {
	Filter   model.Filter
	Metadata *metadata.FilterSet
	Metric   vecmath.Metric
}

// indexState is an immutable snapshot for lock-free reads.
type indexState struct {
	rows []model.VectorEntry
	byID map[string]int
}

// Index is a flat hot-tier index. It uses a copy-on-write pattern so that
// searches never block writers.
type Index struct {
	state   atomic.Pointer[indexState]
	writeMu sync.Mutex
	opts    Options
}

// New creates an empty hot index.
func New(optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if !vecmath.IsSupportedDimension(opts.Dimension) {
		return nil, &vecmath.ErrUnsupportedDimension{Dimension: opts.Dimension}
	}

	x := &Index{opts: opts}
	x.state.Store(&indexState{byID: make(map[string]int)})
	return x, nil
}

// Dimension returns the resolution of stored vectors.
func (x *Index) Dimension() int { return x.opts.Dimension }

// Len returns the number of stored vectors.
func (x *Index) Len() int { return len(x.state.Load().rows) }

// Add inserts or replaces entries. Vectors are truncated to the index
// dimension and renormalized. The batch is applied atomically: if any
// entry is invalid nothing is stored.
func (x *Index) Add(entries ...model.VectorEntry) error {
	rows, err := x.prepare(entries, false)
	if err != nil {
		return err
	}
	x.apply(rows)
	return nil
}

// AddPartition loads every entry of p into the hot tier, skipping stored
// zero vectors.
func (x *Index) AddPartition(p *partition.ParsedPartition) error {
	if p == nil {
		return nil
	}
	rows, err := x.prepare(p.Entries, true)
	if err != nil {
		return fmt.Errorf("partition %q: %w", p.Key, err)
	}
	x.apply(rows)
	return nil
}

func (x *Index) prepare(entries []model.VectorEntry, skipZero bool) ([]model.VectorEntry, error) {
	rows := make([]model.VectorEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return nil, errors.New("hot: entry without id")
		}
		v, err := vecmath.TruncateAndNormalize(e.Vector, x.opts.Dimension)
		if err != nil {
			if skipZero && errors.Is(err, vecmath.ErrZeroVector) {
				continue
			}
			return nil, fmt.Errorf("entry %q: %w", e.ID, err)
		}
		e.Vector = v
		e.Metadata = e.Metadata.Clone()
		rows = append(rows, e)
	}
	return rows, nil
}

func (x *Index) apply(rows []model.VectorEntry) {
	if len(rows) == 0 {
		return
	}
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	old := x.state.Load()
	next := &indexState{
		rows: slices.Clone(old.rows),
		byID: maps.Clone(old.byID),
	}
	for _, r := range rows {
		if i, ok := next.byID[r.ID]; ok {
			next.rows[i] = r
			continue
		}
		next.byID[r.ID] = len(next.rows)
		next.rows = append(next.rows, r)
	}
	x.state.Store(next)
}

// Remove deletes the given ids and returns how many were present.
func (x *Index) Remove(ids ...string) int {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	old := x.state.Load()
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := old.byID[id]; ok {
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return 0
	}

	next := &indexState{
		rows: make([]model.VectorEntry, 0, len(old.rows)-len(drop)),
		byID: make(map[string]int, len(old.rows)-len(drop)),
	}
	for _, r := range old.rows {
		if _, ok := drop[r.ID]; ok {
			continue
		}
		next.byID[r.ID] = len(next.rows)
		next.rows = append(next.rows, r)
	}
	x.state.Store(next)
	return len(drop)
}

// Get returns a copy of the stored (truncated) entry for id.
func (x *Index) Get(id string) (model.VectorEntry, bool) {
	st := x.state.Load()
	i, ok := st.byID[id]
	if !ok {
		return model.VectorEntry{}, false
	}
	e := st.rows[i]
	e.Vector = slices.Clone(e.Vector)
	e.Metadata = e.Metadata.Clone()
	return e, true
}

// Search returns the k best hot entries for query, tagged TierHot. The
// query must have at least Dimension components; it is truncated and
// renormalized to match. A k of zero or less returns every match.
func (x *Index) Search(ctx context.Context, query []float32, k int, opts SearchOptions) ([]model.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := vecmath.TruncateAndNormalize(query, x.opts.Dimension)
	if err != nil {
		return nil, err
	}

	st := x.state.Load()
	res, err := partition.SearchWithinPartition(q, st.rows, partition.SearchOptions{
		Namespace: opts.Filter.Namespace,
		Type:      opts.Filter.Type,
		Metadata:  opts.Metadata,
		Limit:     k,
		Metric:    opts.Metric,
	})
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Tier = model.TierHot
	}
	return res, nil
}
