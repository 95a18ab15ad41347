// Package service provides application layer services that orchestrate domain operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/helixml/cinerag/domain/cache"
	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/mood"
	"github.com/helixml/cinerag/domain/repository"
	"github.com/helixml/cinerag/domain/search"
)

// DefaultLimit is the result count used when a caller passes a non-positive limit.
const DefaultLimit = 10

// TextEmbedder embeds a single query string.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// MoodResult is a search re-ranked by a mood.
type MoodResult struct {
	candidates []search.Candidate
	mood       string
}

// NewMoodResult creates a MoodResult.
func NewMoodResult(candidates []search.Candidate, mood string) MoodResult {
	return MoodResult{candidates: candidates, mood: mood}
}

// Candidates returns the ranked candidates.
func (r MoodResult) Candidates() []search.Candidate { return r.candidates }

// Mood returns the applied mood name, empty when none was detected.
func (r MoodResult) Mood() string { return r.mood }

// Search runs similarity retrieval over the catalog.
type Search struct {
	embedder TextEmbedder
	vectors  search.VectorStore
	catalog  catalog.Store
	cache    cache.Results
	moods    mood.Detector
	closed   *atomic.Bool
	logger   *slog.Logger
}

// NewSearch creates a new Search service.
func NewSearch(
	embedder TextEmbedder,
	vectors search.VectorStore,
	catalogStore catalog.Store,
	results cache.Results,
	moods mood.Detector,
	closed *atomic.Bool,
	logger *slog.Logger,
) *Search {
	if logger == nil {
		logger = slog.Default()
	}
	return &Search{
		embedder: embedder,
		vectors:  vectors,
		catalog:  catalogStore,
		cache:    results,
		moods:    moods,
		closed:   closed,
		logger:   logger,
	}
}

// Moods returns the mood detector.
func (s *Search) Moods() mood.Detector { return s.moods }

// ByText embeds the query and returns up to limit similar items, most
// similar first. Non-empty results are cached under the lowercased query as
// given; surrounding whitespace only matters for the emptiness check and is
// not embedded.
func (s *Search) ByText(ctx context.Context, query string, limit int) ([]search.Candidate, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	key := query
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, search.ErrEmptyInput
	}
	limit = normalizeLimit(limit)

	return s.cache.Fetch(ctx, cache.SearchKey(key, limit), cache.SearchTTL, func(ctx context.Context) ([]search.Candidate, bool, error) {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, false, fmt.Errorf("embed query: %w", err)
		}
		cands, err := s.vectors.NearestNeighbors(ctx, vec, limit, nil)
		if err != nil {
			return nil, false, fmt.Errorf("nearest neighbours: %w", err)
		}
		s.logger.DebugContext(ctx, "text search", slog.String("query", query), slog.Int("results", len(cands)))
		return cands, len(cands) > 0, nil
	})
}

// SimilarTo returns up to limit items similar to the given item, using its
// stored embedding. The item itself is never returned.
func (s *Search) SimilarTo(ctx context.Context, itemID int64, limit int) ([]search.Candidate, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	item, err := s.catalog.Get(ctx, itemID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load item %d: %w", search.ErrUpstreamUnavailable, itemID, err)
	}
	if !item.HasEmbedding() {
		return nil, fmt.Errorf("%w: item %d", search.ErrNoEmbeddingData, itemID)
	}

	cands, err := s.vectors.NearestNeighbors(ctx, item.Embedding(), limit, []int64{itemID})
	if err != nil {
		return nil, fmt.Errorf("nearest neighbours: %w", err)
	}
	return cands, nil
}

// SimilarToMultiple averages the embeddings of the seed items and returns
// up to limit similar items. Seeds without an embedding are skipped and
// seeds are never returned.
func (s *Search) SimilarToMultiple(ctx context.Context, itemIDs []int64, limit int) ([]search.Candidate, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	seeds := uniqueIDs(itemIDs)
	if len(seeds) == 0 {
		return nil, search.ErrEmptyInput
	}
	limit = normalizeLimit(limit)

	items, err := s.catalog.Find(ctx, repository.WithIDIn(seeds), repository.WithOrderAsc("id"))
	if err != nil {
		return nil, fmt.Errorf("%w: load seed items: %w", search.ErrUpstreamUnavailable, err)
	}

	vectors := make([][]float64, 0, len(items))
	for _, it := range items {
		if it.HasEmbedding() {
			vectors = append(vectors, it.Embedding())
		}
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: none of %d seed items has an embedding", search.ErrNoEmbeddingData, len(seeds))
	}

	mean, err := search.Average(vectors)
	if err != nil {
		return nil, err
	}

	cands, err := s.vectors.NearestNeighbors(ctx, mean, limit+len(seeds), nil)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbours: %w", err)
	}
	return search.Truncate(search.Exclude(cands, seeds), limit), nil
}

// ByMood runs a text search and re-ranks the results by mood. moodName
// selects a mood explicitly; when empty the mood is detected from the query.
// Without a mood the text search order is kept.
func (s *Search) ByMood(ctx context.Context, query, moodName string, limit int) (MoodResult, error) {
	var (
		p     mood.Profile
		found bool
	)
	if moodName != "" {
		p, found = s.moods.ByName(moodName)
		if !found {
			return MoodResult{}, fmt.Errorf("%w: %q", ErrUnknownMood, moodName)
		}
	} else {
		p, found = s.moods.Detect(query)
	}

	limit = normalizeLimit(limit)
	cands, err := s.ByText(ctx, query, limit)
	if err != nil {
		return MoodResult{}, err
	}
	if !found || len(cands) == 0 {
		return MoodResult{candidates: cands}, nil
	}

	s.logger.DebugContext(ctx, "mood re-rank", slog.String("mood", p.Name()), slog.Int("candidates", len(cands)))
	return MoodResult{candidates: search.RerankByMood(cands, p, limit), mood: p.Name()}, nil
}

func (s *Search) checkClosed() error {
	if s.closed != nil && s.closed.Load() {
		return ErrClientClosed
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
