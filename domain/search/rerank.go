package search

import (
	"slices"

	"github.com/helixml/cinerag/domain/mood"
)

// Hybrid fusion weights.
const (
	SimilarityWeight = 0.7
	PopularityWeight = 0.3
)

// RerankByMood scores each candidate against the mood, orders them by that
// score (stable for ties) and keeps at most limit.
func RerankByMood(candidates []Candidate, p mood.Profile, limit int) []Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	out := make([]Candidate, len(candidates))
	for i, c := range candidates {
		c.moodScore = mood.ScoreMatch(c.item.Genres(), c.item.Keywords(), p)
		out[i] = c
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		return cmpDesc(a.moodScore, b.moodScore)
	})
	return Truncate(out, limit)
}

// HybridFusion blends profile similarity with popularity.
type HybridFusion struct {
	similarityWeight float64
	popularityWeight float64
}

// NewHybridFusion creates a HybridFusion with the 0.7/0.3 split.
func NewHybridFusion() HybridFusion {
	return HybridFusion{similarityWeight: SimilarityWeight, popularityWeight: PopularityWeight}
}

// Fuse normalises popularity against the candidate set maximum, computes the
// fused score, orders by it (stable for ties) and keeps at most limit.
func (f HybridFusion) Fuse(candidates []Candidate, limit int) []Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	maxPop := 0.0
	for _, c := range candidates {
		maxPop = max(maxPop, c.item.Popularity())
	}

	out := make([]Candidate, len(candidates))
	for i, c := range candidates {
		if maxPop > 0 {
			c.normalizedPopularity = c.item.Popularity() / maxPop
		} else {
			c.normalizedPopularity = 0
		}
		c.fusedScore = f.similarityWeight*c.similarity + f.popularityWeight*c.normalizedPopularity
		out[i] = c
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		return cmpDesc(a.fusedScore, b.fusedScore)
	})
	return Truncate(out, limit)
}

func cmpDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}
