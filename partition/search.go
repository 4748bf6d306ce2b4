package partition

import (
	"errors"
	"fmt"

	"github.com/hupe1980/mrlsearch/internal/searcher"
	"github.com/hupe1980/mrlsearch/metadata"
	"github.com/hupe1980/mrlsearch/model"
	"github.com/hupe1980/mrlsearch/vecmath"
)

// SearchOptions controls a brute-force partition scan.
type SearchOptions struct {
	// Namespace and Type restrict candidates by exact tag. Empty means any.
	Namespace string
	Type      string
	// Metadata filters candidates by their metadata document.
	Metadata *metadata.FilterSet
	// Limit caps the number of results. Zero or less returns every match.
	Limit int
	// Dimension, when positive, scores truncated and renormalized copies of
	// both the query and the stored vectors at that dimension.
	Dimension int
	Metric    vecmath.Metric
}

func (o SearchOptions) filter() model.Filter {
	return model.Filter{Namespace: o.Namespace, Type: o.Type}
}

// SearchWithinPartition scores every entry matching opts against query and
// returns the best results in canonical order, tagged TierCold.
//
// Stored zero vectors cannot be scored and are skipped. A zero query is
// an error.
func SearchWithinPartition(query []float32, entries []model.VectorEntry, opts SearchOptions) ([]model.SearchResult, error) {
	s, err := newScanner(query, opts)
	if err != nil {
		return nil, err
	}
	f := opts.filter()
	for i := range entries {
		if !f.Matches(&entries[i]) {
			continue
		}
		if err := s.score(&entries[i]); err != nil {
			return nil, err
		}
	}
	return s.topk.Results(), nil
}

// SearchPartition is SearchWithinPartition over a parsed partition. It
// uses the partition's tag postings to skip non-matching rows.
func SearchPartition(query []float32, p *ParsedPartition, opts SearchOptions) ([]model.SearchResult, error) {
	if p == nil {
		return nil, nil
	}
	s, err := newScanner(query, opts)
	if err != nil {
		return nil, err
	}
	rows, ok := p.candidates(opts.filter())
	if !ok {
		return nil, nil
	}
	if rows == nil {
		for i := range p.Entries {
			if err := s.score(&p.Entries[i]); err != nil {
				return nil, err
			}
		}
		return s.topk.Results(), nil
	}
	it := rows.Iterator()
	for it.HasNext() {
		if err := s.score(&p.Entries[it.Next()]); err != nil {
			return nil, err
		}
	}
	return s.topk.Results(), nil
}

type scanner struct {
	query  []float32
	fitted map[int][]float32
	sim    vecmath.Func
	dim    int
	meta   *metadata.FilterSet
	topk   *searcher.TopK
}

func newScanner(query []float32, opts SearchOptions) (*scanner, error) {
	if len(query) == 0 {
		return nil, &vecmath.ErrDimensionMismatch{Expected: vecmath.FullDimension, Actual: 0}
	}
	if vecmath.Norm(query) == 0 {
		return nil, vecmath.ErrZeroVector
	}
	sim, err := vecmath.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}
	if opts.Dimension > 0 && !vecmath.IsSupportedDimension(opts.Dimension) {
		return nil, &vecmath.ErrUnsupportedDimension{Dimension: opts.Dimension}
	}
	return &scanner{
		query:  query,
		fitted: make(map[int][]float32, 1),
		sim:    sim,
		dim:    opts.Dimension,
		meta:   opts.Metadata,
		topk:   searcher.NewTopK(opts.Limit),
	}, nil
}

// queryFor returns the query fitted to d, computing it once per dimension.
func (s *scanner) queryFor(d int) ([]float32, error) {
	if q, ok := s.fitted[d]; ok {
		return q, nil
	}
	q, err := vecmath.FitDimension(s.query, d)
	if err != nil {
		return nil, err
	}
	s.fitted[d] = q
	return q, nil
}

func (s *scanner) score(e *model.VectorEntry) error {
	if !s.meta.Matches(e.Metadata) {
		return nil
	}

	v := e.Vector
	if s.dim > 0 && len(v) != s.dim {
		t, err := vecmath.TruncateAndNormalize(v, s.dim)
		if errors.Is(err, vecmath.ErrZeroVector) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("entry %q: %w", e.ID, err)
		}
		v = t
	}

	q, err := s.queryFor(len(v))
	if err != nil {
		return fmt.Errorf("entry %q: %w", e.ID, err)
	}
	score, err := s.sim(q, v)
	if errors.Is(err, vecmath.ErrZeroVector) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("entry %q: %w", e.ID, err)
	}

	s.topk.Add(model.SearchResult{
		ID:       e.ID,
		Score:    score,
		Tier:     model.TierCold,
		Metadata: e.Metadata,
	})
	return nil
}
