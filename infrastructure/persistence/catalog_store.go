package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/repository"
	"github.com/helixml/cinerag/internal/database"
)

// metadataColumns are overwritten when an existing catalog row is saved again.
var metadataColumns = []string{
	"kind", "title", "description", "tagline", "genres", "keywords",
	"cast_members", "director", "release_date", "vote_average", "vote_count",
	"popularity", "updated_at",
}

// CatalogStore implements catalog.Store using GORM.
type CatalogStore struct {
	database.Repository[catalog.Item, CatalogItemModel]
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(db database.Database) CatalogStore {
	return CatalogStore{
		Repository: database.NewRepository[catalog.Item, CatalogItemModel](db, CatalogItemMapper{}, "catalog item"),
	}
}

// Get returns one item by id.
func (s CatalogStore) Get(ctx context.Context, id int64) (catalog.Item, error) {
	item, err := s.FindOne(ctx, repository.WithID(id))
	if errors.Is(err, database.ErrNotFound) {
		return catalog.Item{}, fmt.Errorf("%w: %d", catalog.ErrNotFound, id)
	}
	return item, err
}

// SaveAll inserts or replaces items. Items without an embedding leave the
// stored embedding untouched.
func (s CatalogStore) SaveAll(ctx context.Context, items []catalog.Item) error {
	var embedded, bare []catalog.Item
	for _, it := range items {
		if it.HasEmbedding() {
			embedded = append(embedded, it)
		} else {
			bare = append(bare, it)
		}
	}

	conflict := []string{"id"}
	if err := s.Upsert(ctx, bare, conflict, metadataColumns); err != nil {
		return err
	}
	return s.Upsert(ctx, embedded, conflict, append(append([]string{}, metadataColumns...), "embedding"))
}

// SaveEmbedding stores the embedding of one item.
func (s CatalogStore) SaveEmbedding(ctx context.Context, id int64, embedding []float64) error {
	result := s.DB(ctx).Model(&CatalogItemModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"embedding":  Float64Slice(embedding),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("save embedding %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", catalog.ErrNotFound, id)
	}
	return nil
}

// WithoutEmbedding lists up to limit items lacking an embedding, most popular first.
func (s CatalogStore) WithoutEmbedding(ctx context.Context, limit int) ([]catalog.Item, error) {
	var models []CatalogItemModel
	db := s.DB(ctx).Model(&CatalogItemModel{}).
		Where("embedding IS NULL").
		Order("popularity DESC").
		Order("id ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find items without embedding: %w", err)
	}

	mapper := s.Mapper()
	items := make([]catalog.Item, len(models))
	for i, m := range models {
		items[i] = mapper.ToDomain(m)
	}
	return items, nil
}

// AllEmbedded returns every item carrying an embedding.
func (s CatalogStore) AllEmbedded(ctx context.Context) ([]catalog.Item, error) {
	return s.Find(ctx, repository.WithEmbedded(), repository.WithOrderAsc("id"))
}
