package catalog

import (
	"context"

	"github.com/helixml/cinerag/domain/repository"
)

// Store defines persistence operations for catalog items.
type Store interface {
	// Get returns one item, or ErrNotFound.
	Get(ctx context.Context, id int64) (Item, error)

	// Find retrieves items matching the given options.
	Find(ctx context.Context, options ...repository.Option) ([]Item, error)

	// SaveAll inserts or replaces items. Existing embeddings are kept when
	// the incoming item has none.
	SaveAll(ctx context.Context, items []Item) error

	// SaveEmbedding stores the embedding of one item.
	SaveEmbedding(ctx context.Context, id int64, embedding []float64) error

	// WithoutEmbedding lists up to limit items that still need an embedding.
	WithoutEmbedding(ctx context.Context, limit int) ([]Item, error)
}
