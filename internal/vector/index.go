// Package vector provides an exact, in-memory similarity index over fixed-dimension vectors.
package vector

import (
	"errors"
	"fmt"
)

// Metric names the distance function an index was built with.
type Metric string

// MetricSquaredL2 is squared Euclidean distance; lower is more similar.
const MetricSquaredL2 Metric = "l2_squared"

// ErrInvalidDimension is returned when an index is created with a non-positive dimension.
var ErrInvalidDimension = errors.New("dimensions must be positive")

// ErrDimensionMismatch indicates a vector or query whose length differs from the index dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: got %d, expected %d", e.Actual, e.Expected)
}

// Neighbor is a single search hit: the slot of a stored vector and its distance to the query.
type Neighbor struct {
	Slot     int
	Distance float64
}
