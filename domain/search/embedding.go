package search

import (
	"fmt"
	"math"
)

// Dimensions is the length of every embedding produced by the default model.
const Dimensions = 1536

// Validate checks that vec has the expected length.
func Validate(vec []float64, dims int) error {
	if len(vec) != dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), dims)
	}
	return nil
}

// Average returns the component-wise arithmetic mean of the vectors.
func Average(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyInput
	}

	dims := len(vectors[0])
	mean := make([]float64, dims)
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dims)
		}
		for j, x := range v {
			mean[j] += x
		}
	}

	n := float64(len(vectors))
	for j := range mean {
		mean[j] /= n
	}
	return mean, nil
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero vectors have similarity 0.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
