package vecmath

import (
	"errors"
	"fmt"
)

// ErrZeroVector is returned when a vector has zero magnitude and therefore no direction.
var ErrZeroVector = errors.New("vecmath: zero vector")

// ErrDimensionMismatch indicates that two vectors that must share a dimension do not.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrUnsupportedDimension indicates a truncation target outside SupportedDimensions.
type ErrUnsupportedDimension struct {
	Dimension int
}

func (e *ErrUnsupportedDimension) Error() string {
	return fmt.Sprintf("unsupported dimension: %d (supported: %v)", e.Dimension, SupportedDimensions)
}

// ErrDimensionTooSmall indicates that a vector is shorter than the requested truncation target.
type ErrDimensionTooSmall struct {
	Required int
	Actual   int
}

func (e *ErrDimensionTooSmall) Error() string {
	return fmt.Sprintf("vector too small: need at least %d components, got %d", e.Required, e.Actual)
}
