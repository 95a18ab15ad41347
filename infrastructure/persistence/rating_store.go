package persistence

import (
	"context"
	"fmt"

	"github.com/helixml/cinerag/domain/profile"
	"github.com/helixml/cinerag/domain/repository"
	"github.com/helixml/cinerag/internal/database"
)

// RatingStore implements profile.RatingStore using GORM.
type RatingStore struct {
	database.Repository[profile.Rating, RatingModel]
}

// NewRatingStore creates a new RatingStore.
func NewRatingStore(db database.Database) RatingStore {
	return RatingStore{
		Repository: database.NewRepository[profile.Rating, RatingModel](db, RatingMapper{}, "rating"),
	}
}

// Save inserts the rating or replaces the user's previous rating of the item.
func (s RatingStore) Save(ctx context.Context, r profile.Rating) error {
	return s.Upsert(ctx,
		[]profile.Rating{r},
		[]string{"user_id", "item_id"},
		[]string{"rating", "watched_at", "updated_at"},
	)
}

// TopRated returns up to limit ratings at or above minRating, highest first.
func (s RatingStore) TopRated(ctx context.Context, userID string, minRating, limit int) ([]profile.Rating, error) {
	return s.Find(ctx,
		repository.WithUserID(userID),
		repository.WithMinRating(minRating),
		repository.OrderByRating(),
		repository.WithLimit(limit),
	)
}

// RatedItemIDs returns every item id the user has rated.
func (s RatingStore) RatedItemIDs(ctx context.Context, userID string) ([]int64, error) {
	var ids []int64
	err := s.DB(ctx).Model(&RatingModel{}).
		Where("user_id = ?", userID).
		Order("item_id ASC").
		Pluck("item_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("rated item ids: %w", err)
	}
	return ids, nil
}
