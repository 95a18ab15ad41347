// Package search answers nearest-neighbour queries over catalog embeddings
// with an in-process cosine scan.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/profile"
	domainsearch "github.com/helixml/cinerag/domain/search"
)

// EmbeddedCatalog lists every catalog item that carries an embedding.
type EmbeddedCatalog interface {
	AllEmbedded(ctx context.Context) ([]catalog.Item, error)
}

// CatalogVectorStore implements search.VectorStore by loading embeddings
// from the catalog and scoring them in memory.
type CatalogVectorStore struct {
	catalog    EmbeddedCatalog
	profiles   profile.Store
	ratings    profile.RatingStore
	dimensions int
	logger     *slog.Logger
}

// VectorStoreOption configures a CatalogVectorStore.
type VectorStoreOption func(*CatalogVectorStore)

// WithDimensions sets the expected embedding length.
func WithDimensions(n int) VectorStoreOption {
	return func(s *CatalogVectorStore) {
		if n > 0 {
			s.dimensions = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) VectorStoreOption {
	return func(s *CatalogVectorStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewCatalogVectorStore creates a new CatalogVectorStore.
func NewCatalogVectorStore(items EmbeddedCatalog, profiles profile.Store, ratings profile.RatingStore, opts ...VectorStoreOption) *CatalogVectorStore {
	s := &CatalogVectorStore{
		catalog:    items,
		profiles:   profiles,
		ratings:    ratings,
		dimensions: domainsearch.Dimensions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NearestNeighbors returns up to k items most similar to vector, skipping
// the ids in exclude.
func (s *CatalogVectorStore) NearestNeighbors(ctx context.Context, vector []float64, k int, exclude []int64) ([]domainsearch.Candidate, error) {
	if len(vector) == 0 {
		return nil, domainsearch.ErrEmptyInput
	}
	if err := domainsearch.Validate(vector, s.dimensions); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []domainsearch.Candidate{}, nil
	}

	items, err := s.catalog.AllEmbedded(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load embeddings: %w", domainsearch.ErrUpstreamUnavailable, err)
	}

	byID := make(map[int64]catalog.Item, len(items))
	vectors := make([]StoredVector, 0, len(items))
	for _, it := range items {
		emb := it.Embedding()
		if len(emb) != s.dimensions {
			s.logger.Warn("skipping embedding with wrong dimensions",
				slog.Int64("item_id", it.ID()),
				slog.Int("dimensions", len(emb)),
				slog.Int("expected", s.dimensions),
			)
			continue
		}
		byID[it.ID()] = it
		vectors = append(vectors, NewStoredVector(it.ID(), emb))
	}

	skip := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	matches, err := TopKSimilar(vector, vectors, k, skip)
	if err != nil {
		return nil, err
	}

	candidates := make([]domainsearch.Candidate, len(matches))
	for i, m := range matches {
		candidates[i] = domainsearch.NewCandidate(byID[m.ItemID()], m.Similarity())
	}
	return candidates, nil
}

// NearestNeighborsByProfile returns up to k items most similar to the user's
// preference profile, skipping items the user already rated.
func (s *CatalogVectorStore) NearestNeighborsByProfile(ctx context.Context, userID string, k int) ([]domainsearch.Candidate, error) {
	p, ok, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load profile: %w", domainsearch.ErrUpstreamUnavailable, err)
	}
	if !ok || len(p.Embedding()) == 0 {
		return []domainsearch.Candidate{}, nil
	}

	rated, err := s.ratings.RatedItemIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load ratings: %w", domainsearch.ErrUpstreamUnavailable, err)
	}

	return s.NearestNeighbors(ctx, p.Embedding(), k, rated)
}
