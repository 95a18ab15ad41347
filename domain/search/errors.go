// Package search holds the embedding math, ranked candidates and re-ranking
// rules shared by retrieval and recommendations.
package search

import "errors"

// Retrieval errors.
var (
	// ErrEmptyInput is returned when embedding blank text or an empty seed list.
	ErrEmptyInput = errors.New("empty input")

	// ErrDimensionMismatch is returned when embeddings of different lengths are combined or compared.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNoEmbeddingData is returned when similarity is requested against an item lacking an embedding.
	ErrNoEmbeddingData = errors.New("no embedding data")

	// ErrUpstreamUnavailable is returned when the embedding provider or vector store cannot be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
