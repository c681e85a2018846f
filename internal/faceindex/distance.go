package faceindex

import (
	"fmt"
	"math"
)

// DimensionMismatchError reports that two embeddings cannot be compared
// because their dimensionality differs. This is a caller error, never a
// silent skip.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// Distance computes the Euclidean (L2) distance between two embeddings.
// Returns a DimensionMismatchError if the vectors differ in length.
func Distance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{Want: len(a), Got: len(b)}
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
