package search

import "context"

// Embedder converts text into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorStore answers nearest-neighbour queries over catalog embeddings.
// Results are sorted by descending similarity and never include items
// without an embedding.
type VectorStore interface {
	// NearestNeighbors returns up to k items most similar to vector,
	// skipping the ids in exclude.
	NearestNeighbors(ctx context.Context, vector []float64, k int, exclude []int64) ([]Candidate, error)

	// NearestNeighborsByProfile returns up to k items most similar to the
	// user's preference profile, skipping items the user already rated.
	// A user without a profile yields an empty result.
	NearestNeighborsByProfile(ctx context.Context, userID string, k int) ([]Candidate, error)
}
