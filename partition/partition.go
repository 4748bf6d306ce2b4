package partition

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/mrlsearch/model"
)

// ParsedPartition is a decoded, immutable partition.
//
// Entries are kept in wire order. Namespace and type postings are built at
// decode time so filtered scans only touch matching rows.
type ParsedPartition struct {
	Key       string
	Dimension int
	Entries   []model.VectorEntry

	namespaces map[string]*roaring.Bitmap
	types      map[string]*roaring.Bitmap
}

func newParsedPartition(key string, dim int, entries []model.VectorEntry) *ParsedPartition {
	p := &ParsedPartition{
		Key:        key,
		Dimension:  dim,
		Entries:    entries,
		namespaces: make(map[string]*roaring.Bitmap),
		types:      make(map[string]*roaring.Bitmap),
	}
	for i := range entries {
		addPosting(p.namespaces, entries[i].Namespace, uint32(i))
		addPosting(p.types, entries[i].Type, uint32(i))
	}
	for _, bm := range p.namespaces {
		bm.RunOptimize()
	}
	for _, bm := range p.types {
		bm.RunOptimize()
	}
	return p
}

// NewParsedPartition wraps entries that did not come off the wire,
// for example rows staged in memory before they are encoded.
func NewParsedPartition(key string, entries []model.VectorEntry) *ParsedPartition {
	dim := 0
	if len(entries) > 0 {
		dim = len(entries[0].Vector)
	}
	return newParsedPartition(key, dim, entries)
}

func addPosting(m map[string]*roaring.Bitmap, k string, row uint32) {
	bm, ok := m[k]
	if !ok {
		bm = roaring.New()
		m[k] = bm
	}
	bm.Add(row)
}

// Len returns the number of entries.
func (p *ParsedPartition) Len() int { return len(p.Entries) }

// Namespaces returns the number of entries per namespace.
func (p *ParsedPartition) Namespaces() map[string]uint64 {
	return cardinalities(p.namespaces)
}

// Types returns the number of entries per type tag.
func (p *ParsedPartition) Types() map[string]uint64 {
	return cardinalities(p.types)
}

func cardinalities(m map[string]*roaring.Bitmap) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, bm := range m {
		out[k] = bm.GetCardinality()
	}
	return out
}

// candidates returns the rows matching f. A nil bitmap with ok=true means
// every row matches; ok=false means no row can match.
func (p *ParsedPartition) candidates(f model.Filter) (*roaring.Bitmap, bool) {
	var bm *roaring.Bitmap
	if f.Namespace != "" {
		ns, ok := p.namespaces[f.Namespace]
		if !ok {
			return nil, false
		}
		bm = ns
	}
	if f.Type != "" {
		ty, ok := p.types[f.Type]
		if !ok {
			return nil, false
		}
		if bm == nil {
			bm = ty
		} else {
			bm = roaring.And(bm, ty)
		}
	}
	if bm != nil && bm.IsEmpty() {
		return nil, false
	}
	return bm, true
}
