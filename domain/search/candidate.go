package search

import "github.com/helixml/cinerag/domain/catalog"

// Candidate is a catalog item with the scores attached during one ranking pass.
type Candidate struct {
	item                 catalog.Item
	similarity           float64
	moodScore            float64
	normalizedPopularity float64
	fusedScore           float64
}

// NewCandidate creates a Candidate. The item's embedding is not retained.
func NewCandidate(item catalog.Item, similarity float64) Candidate {
	return Candidate{item: item.WithoutEmbedding(), similarity: similarity}
}

// RestoreCandidate rebuilds a Candidate with every score, as read back from a cache.
func RestoreCandidate(item catalog.Item, similarity, moodScore, normalizedPopularity, fusedScore float64) Candidate {
	return Candidate{
		item:                 item.WithoutEmbedding(),
		similarity:           similarity,
		moodScore:            moodScore,
		normalizedPopularity: normalizedPopularity,
		fusedScore:           fusedScore,
	}
}

// Item returns the catalog item.
func (c Candidate) Item() catalog.Item { return c.item }

// ID returns the catalog item id.
func (c Candidate) ID() int64 { return c.item.ID() }

// Similarity returns the raw vector similarity.
func (c Candidate) Similarity() float64 { return c.similarity }

// MoodScore returns the mood match score, 0 unless mood re-ranking ran.
func (c Candidate) MoodScore() float64 { return c.moodScore }

// NormalizedPopularity returns popularity scaled to the candidate set maximum.
func (c Candidate) NormalizedPopularity() float64 { return c.normalizedPopularity }

// FusedScore returns the hybrid score, 0 unless hybrid fusion ran.
func (c Candidate) FusedScore() float64 { return c.fusedScore }

// IDs returns the item ids of the candidates in order.
func IDs(candidates []Candidate) []int64 {
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID()
	}
	return ids
}

// Truncate returns at most limit candidates. A non-positive limit keeps all.
func Truncate(candidates []Candidate, limit int) []Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

// Exclude drops candidates whose id is in ids, preserving order.
func Exclude(candidates []Candidate, ids []int64) []Candidate {
	if len(ids) == 0 {
		return candidates
	}
	skip := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		skip[id] = struct{}{}
	}
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := skip[c.ID()]; !ok {
			out = append(out, c)
		}
	}
	return out
}
