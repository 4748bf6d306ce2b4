package mrlsearch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrNoTierEnabled is returned when a query leaves no tier to search,
	// either because of its options or because the engine has neither a
	// hot index nor a cold store.
	ErrNoTierEnabled = errors.New("no search tier enabled")

	// ErrNoEmbeddingProvider is returned by TwoPhaseSearch when the engine
	// was built without an embedding provider.
	ErrNoEmbeddingProvider = errors.New("two-phase search requires an embedding provider")

	// ErrNotFound is returned by QueryBuilder.First when nothing matched.
	ErrNotFound = errors.New("not found")
)

// AllPartitionsFailedError is returned when every partition selected for a
// query failed. Individual failures are reachable through errors.Is/As.
type AllPartitionsFailedError struct {
	Partitions int
	Err        error
}

func (e *AllPartitionsFailedError) Error() string {
	return fmt.Sprintf("all %d partitions failed: %v", e.Partitions, e.Err)
}

func (e *AllPartitionsFailedError) Unwrap() error { return e.Err }
