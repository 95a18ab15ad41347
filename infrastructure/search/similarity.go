package search

import (
	"slices"

	domainsearch "github.com/helixml/cinerag/domain/search"
)

// StoredVector holds an embedding with the catalog item it belongs to.
type StoredVector struct {
	itemID    int64
	embedding []float64
}

// NewStoredVector creates a new StoredVector.
func NewStoredVector(itemID int64, embedding []float64) StoredVector {
	vec := make([]float64, len(embedding))
	copy(vec, embedding)
	return StoredVector{itemID: itemID, embedding: vec}
}

// ItemID returns the catalog item id.
func (v StoredVector) ItemID() int64 { return v.itemID }

// SimilarityMatch holds an item id and its cosine similarity to the query.
type SimilarityMatch struct {
	itemID     int64
	similarity float64
}

// ItemID returns the catalog item id.
func (m SimilarityMatch) ItemID() int64 { return m.itemID }

// Similarity returns the similarity score.
func (m SimilarityMatch) Similarity() float64 { return m.similarity }

// TopKSimilar returns the k vectors most similar to query, highest first.
// Vectors whose id is in exclude are skipped. Equal scores keep the input order.
func TopKSimilar(query []float64, vectors []StoredVector, k int, exclude map[int64]struct{}) ([]SimilarityMatch, error) {
	if len(vectors) == 0 || k <= 0 {
		return []SimilarityMatch{}, nil
	}

	matches := make([]SimilarityMatch, 0, len(vectors))
	for _, v := range vectors {
		if _, skip := exclude[v.itemID]; skip {
			continue
		}
		sim, err := domainsearch.CosineSimilarity(query, v.embedding)
		if err != nil {
			return nil, err
		}
		matches = append(matches, SimilarityMatch{itemID: v.itemID, similarity: sim})
	}

	slices.SortStableFunc(matches, func(a, b SimilarityMatch) int {
		switch {
		case a.similarity > b.similarity:
			return -1
		case a.similarity < b.similarity:
			return 1
		default:
			return 0
		}
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}
