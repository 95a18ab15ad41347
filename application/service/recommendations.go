package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/helixml/cinerag/domain/cache"
	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/repository"
	"github.com/helixml/cinerag/domain/search"
)

// Recommendations produces personalized, hybrid and popularity listings.
type Recommendations struct {
	vectors search.VectorStore
	catalog catalog.Store
	cache   cache.Results
	fusion  search.HybridFusion
	closed  *atomic.Bool
	logger  *slog.Logger
}

// NewRecommendations creates a new Recommendations service.
func NewRecommendations(
	vectors search.VectorStore,
	catalogStore catalog.Store,
	results cache.Results,
	closed *atomic.Bool,
	logger *slog.Logger,
) *Recommendations {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recommendations{
		vectors: vectors,
		catalog: catalogStore,
		cache:   results,
		fusion:  search.NewHybridFusion(),
		closed:  closed,
		logger:  logger,
	}
}

// Personalized returns up to limit items closest to the user's preference
// profile, excluding items the user rated. Users without a profile get the
// popularity listing, which is not cached under their key.
func (r *Recommendations) Personalized(ctx context.Context, userID string, limit int) ([]search.Candidate, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	return r.cache.Fetch(ctx, cache.RecommendationsKey(userID, limit), cache.RecommendationsTTL, func(ctx context.Context) ([]search.Candidate, bool, error) {
		cands, err := r.vectors.NearestNeighborsByProfile(ctx, userID, limit)
		if err != nil {
			return nil, false, fmt.Errorf("profile neighbours: %w", err)
		}
		if len(cands) == 0 {
			r.logger.InfoContext(ctx, "no profile candidates, using popular", slog.String("user_id", userID))
			popular, err := r.Popular(ctx, limit)
			return popular, false, err
		}
		return cands, true, nil
	})
}

// Hybrid blends profile similarity with popularity. Profile candidates are
// fetched at twice the limit so fusion can reorder them. Users without
// profile candidates get exactly the popularity listing.
func (r *Recommendations) Hybrid(ctx context.Context, userID string, limit int) ([]search.Candidate, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	return r.cache.Fetch(ctx, cache.HybridKey(userID, limit), cache.RecommendationsTTL, func(ctx context.Context) ([]search.Candidate, bool, error) {
		cands, err := r.vectors.NearestNeighborsByProfile(ctx, userID, 2*limit)
		if err != nil {
			return nil, false, fmt.Errorf("profile neighbours: %w", err)
		}
		if len(cands) == 0 {
			popular, err := r.Popular(ctx, limit)
			return popular, false, err
		}
		return r.fusion.Fuse(cands, limit), true, nil
	})
}

// Popular lists the most popular embedded items.
func (r *Recommendations) Popular(ctx context.Context, limit int) ([]search.Candidate, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	return r.cache.Fetch(ctx, cache.PopularKey(limit), cache.PopularTTL, func(ctx context.Context) ([]search.Candidate, bool, error) {
		items, err := r.catalog.Find(ctx,
			repository.WithEmbedded(),
			repository.OrderByPopularity(),
			repository.WithLimit(limit),
		)
		if err != nil {
			return nil, false, fmt.Errorf("%w: list popular: %w", search.ErrUpstreamUnavailable, err)
		}
		cands := make([]search.Candidate, len(items))
		for i, it := range items {
			cands[i] = search.NewCandidate(it, 0)
		}
		return cands, len(cands) > 0, nil
	})
}

func (r *Recommendations) checkClosed() error {
	if r.closed != nil && r.closed.Load() {
		return ErrClientClosed
	}
	return nil
}
