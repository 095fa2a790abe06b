package vector

import "fmt"

// FlatIndex stores vectors densely by slot and answers exact top-k queries by scanning
// every vector. It is not safe for concurrent use; callers serialize access.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDimension, dimensions)
	}
	return &FlatIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}, nil
}

// Dimensions returns the vector length accepted by the index.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Metric returns the distance function used by Search.
func (f *FlatIndex) Metric() Metric {
	return MetricSquaredL2
}

// Len returns the number of stored vectors.
func (f *FlatIndex) Len() int {
	return len(f.vectors)
}

// Insert copies vec into the next slot and returns that slot.
func (f *FlatIndex) Insert(vec []float32) (int, error) {
	if len(vec) != f.dimensions {
		return 0, &ErrDimensionMismatch{Expected: f.dimensions, Actual: len(vec)}
	}
	stored := make([]float32, f.dimensions)
	copy(stored, vec)
	f.vectors = append(f.vectors, stored)
	return len(f.vectors) - 1, nil
}

// Search returns up to k stored vectors closest to query, nearest first. Equal distances
// are ordered by ascending slot. An empty index or k <= 0 yields an empty result.
func (f *FlatIndex) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimensions {
		return nil, &ErrDimensionMismatch{Expected: f.dimensions, Actual: len(query)}
	}
	if k <= 0 || len(f.vectors) == 0 {
		return []Neighbor{}, nil
	}
	if k > len(f.vectors) {
		k = len(f.vectors)
	}
	best := newTopK(k)
	for slot, vec := range f.vectors {
		best.offer(Neighbor{Slot: slot, Distance: SquaredL2(query, vec)})
	}
	return best.sorted(), nil
}

// Truncate drops every slot at or above n.
func (f *FlatIndex) Truncate(n int) {
	if n < 0 || n >= len(f.vectors) {
		return
	}
	for i := n; i < len(f.vectors); i++ {
		f.vectors[i] = nil
	}
	f.vectors = f.vectors[:n]
}
