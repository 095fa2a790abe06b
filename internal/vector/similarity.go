package vector

import "math"

// NonFinite returns the index of the first NaN or infinite component of v, or -1.
func NonFinite(v []float32) int {
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return i
		}
	}
	return -1
}

// SquaredL2 returns the squared Euclidean distance between a and b, accumulated in float64.
// Both slices must have the same length.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
