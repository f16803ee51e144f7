package facematch

import "math"

// EuclideanDistance returns sqrt(sum((a[i]-b[i])^2)) accumulated in float64.
// Vectors of different length yield NaN so callers can discard the pair.
func EuclideanDistance(a, b Signature) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.NaN()
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
