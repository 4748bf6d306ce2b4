package clusterindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/mrlsearch/model"
	"github.com/hupe1980/mrlsearch/vecmath"
)

var (
	// ErrInvalidIndex is returned for structurally invalid cluster indexes.
	ErrInvalidIndex = errors.New("clusterindex: invalid index")

	// ErrNoIndex is returned when no snapshot has been published yet.
	ErrNoIndex = errors.New("clusterindex: no index published")
)

// Provider returns the cluster index snapshot to route a query with.
// Returned snapshots are shared and must not be modified.
type Provider interface {
	Current(ctx context.Context) (*model.ClusterIndex, error)
}

// Static serves a fixed snapshot.
type Static struct {
	idx *model.ClusterIndex
}

// NewStatic validates idx and returns a provider that always serves it.
func NewStatic(idx *model.ClusterIndex) (*Static, error) {
	if err := Validate(idx); err != nil {
		return nil, err
	}
	return &Static{idx: idx}, nil
}

// Current implements Provider.
func (s *Static) Current(context.Context) (*model.ClusterIndex, error) {
	return s.idx, nil
}

// Validate checks idx for structural problems. All errors wrap ErrInvalidIndex.
func Validate(idx *model.ClusterIndex) error {
	if idx == nil {
		return fmt.Errorf("%w: nil index", ErrInvalidIndex)
	}
	if _, err := vecmath.Provider(idx.Metric); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	if len(idx.Clusters) == 0 {
		return nil
	}
	if !vecmath.IsSupportedDimension(idx.Dimension) {
		return fmt.Errorf("%w: %w", ErrInvalidIndex, &vecmath.ErrUnsupportedDimension{Dimension: idx.Dimension})
	}

	seen := make(map[string]struct{}, len(idx.Clusters))
	for i := range idx.Clusters {
		c := &idx.Clusters[i]
		if c.ID == "" {
			return fmt.Errorf("%w: cluster %d has no id", ErrInvalidIndex, i)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate cluster id %q", ErrInvalidIndex, c.ID)
		}
		seen[c.ID] = struct{}{}

		if err := vecmath.ValidateDimensions(c.Centroid, idx.Dimension); err != nil {
			return fmt.Errorf("%w: cluster %q: %w", ErrInvalidIndex, c.ID, err)
		}
		if vecmath.Norm(c.Centroid) == 0 {
			return fmt.Errorf("%w: cluster %q: %w", ErrInvalidIndex, c.ID, vecmath.ErrZeroVector)
		}
		if len(c.PartitionKeys) == 0 {
			return fmt.Errorf("%w: cluster %q has no partitions", ErrInvalidIndex, c.ID)
		}
		for _, k := range c.PartitionKeys {
			if k == "" {
				return fmt.Errorf("%w: cluster %q has an empty partition key", ErrInvalidIndex, c.ID)
			}
		}
	}
	return nil
}
