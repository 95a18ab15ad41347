package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/helixml/cinerag/domain/cache"
	"github.com/helixml/cinerag/domain/catalog"
	domainservice "github.com/helixml/cinerag/domain/service"
)

// IndexResult reports one indexing run.
type IndexResult struct {
	processed int
	failed    int
}

// Processed returns how many items received an embedding.
func (r IndexResult) Processed() int { return r.processed }

// Failed returns how many pending items were left without one.
func (r IndexResult) Failed() int { return r.failed }

// Indexing attaches embeddings to catalog items.
type Indexing struct {
	embeddings *domainservice.EmbeddingService
	catalog    catalog.Store
	cache      cache.Results
	closed     *atomic.Bool
	logger     *slog.Logger
}

// NewIndexing creates a new Indexing service.
func NewIndexing(
	embeddings *domainservice.EmbeddingService,
	catalogStore catalog.Store,
	results cache.Results,
	closed *atomic.Bool,
	logger *slog.Logger,
) *Indexing {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexing{
		embeddings: embeddings,
		catalog:    catalogStore,
		cache:      results,
		closed:     closed,
		logger:     logger,
	}
}

// EmbedMissing embeds every catalog item that lacks an embedding, in
// chunks of batchSize. A failed chunk is counted and skipped. Cached
// results are dropped once any embedding changed.
func (i *Indexing) EmbedMissing(ctx context.Context, batchSize int) (IndexResult, error) {
	if i.closed != nil && i.closed.Load() {
		return IndexResult{}, ErrClientClosed
	}

	items, err := i.catalog.WithoutEmbedding(ctx, 0)
	if err != nil {
		return IndexResult{}, fmt.Errorf("list items without embedding: %w", err)
	}
	if len(items) == 0 {
		i.logger.InfoContext(ctx, "no items need embeddings")
		return IndexResult{}, nil
	}

	i.logger.InfoContext(ctx, "embedding catalog items", slog.Int("pending", len(items)))
	processed, err := i.embeddings.Index(ctx, i.catalog, items,
		domainservice.WithIndexBatchSize(batchSize),
		domainservice.WithProgress(func(done, total int) {
			i.logger.InfoContext(ctx, "embedding progress", slog.Int("done", done), slog.Int("total", total))
		}),
		domainservice.WithBatchError(func(start, end int, err error) {
			i.logger.WarnContext(ctx, "embedding batch failed",
				slog.Int("start", start),
				slog.Int("end", end),
				slog.String("error", err.Error()),
			)
		}),
	)
	result := IndexResult{processed: processed, failed: len(items) - processed}

	if processed > 0 {
		i.invalidateAll(ctx)
	}
	return result, err
}

// Regenerate recomputes and overwrites the embedding of one item.
func (i *Indexing) Regenerate(ctx context.Context, itemID int64) error {
	if i.closed != nil && i.closed.Load() {
		return ErrClientClosed
	}

	item, err := i.catalog.Get(ctx, itemID)
	if err != nil {
		return err
	}
	vec, err := i.embeddings.Embed(ctx, item.EmbeddingText())
	if err != nil {
		return fmt.Errorf("embed item %d: %w", itemID, err)
	}
	if err := i.catalog.SaveEmbedding(ctx, itemID, vec); err != nil {
		return err
	}

	i.invalidateAll(ctx)
	return nil
}

// invalidateAll drops every cached ranking, since any of them may now be stale.
func (i *Indexing) invalidateAll(ctx context.Context) {
	for _, ns := range []string{cache.NamespaceSearch, cache.NamespacePopular, cache.NamespaceRecommendations} {
		n, err := i.cache.Invalidate(ctx, cache.NamespacePattern(ns))
		if err != nil {
			i.logger.WarnContext(ctx, "cache invalidation failed", slog.String("namespace", ns), slog.String("error", err.Error()))
			continue
		}
		i.logger.DebugContext(ctx, "cache invalidated", slog.String("namespace", ns), slog.Int("keys", n))
	}
}
