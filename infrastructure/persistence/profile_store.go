package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helixml/cinerag/domain/profile"
	"github.com/helixml/cinerag/domain/repository"
	"github.com/helixml/cinerag/domain/search"
	"github.com/helixml/cinerag/internal/database"
)

// ProfileStore implements profile.Store using GORM.
type ProfileStore struct {
	database.Repository[profile.Profile, ProfileModel]
	db  database.Database
	now func() time.Time
}

// NewProfileStore creates a new ProfileStore.
func NewProfileStore(db database.Database) ProfileStore {
	return ProfileStore{
		Repository: database.NewRepository[profile.Profile, ProfileModel](db, ProfileMapper{}, "profile"),
		db:         db,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the user's profile. ok is false when the user has none.
func (s ProfileStore) Get(ctx context.Context, userID string) (profile.Profile, bool, error) {
	p, err := s.FindOne(ctx, repository.WithUserID(userID))
	if errors.Is(err, database.ErrNotFound) {
		return profile.Profile{}, false, nil
	}
	if err != nil {
		return profile.Profile{}, false, err
	}
	return p, true, nil
}

// Recompute averages the embeddings of every embedded item the user rated at
// or above minRating and stores the result. A user left with no qualifying
// item loses their profile.
func (s ProfileStore) Recompute(ctx context.Context, userID string, minRating int) error {
	return database.WithTransaction(ctx, s.db, func(tx database.Database) error {
		ratings, err := NewRatingStore(tx).Find(ctx,
			repository.WithUserID(userID),
			repository.WithMinRating(minRating),
		)
		if err != nil {
			return err
		}

		ids := make([]int64, len(ratings))
		for i, r := range ratings {
			ids[i] = r.ItemID()
		}

		var vectors [][]float64
		if len(ids) > 0 {
			items, err := NewCatalogStore(tx).Find(ctx,
				repository.WithIDIn(ids),
				repository.WithEmbedded(),
				repository.WithOrderAsc("id"),
			)
			if err != nil {
				return err
			}
			for _, it := range items {
				vectors = append(vectors, it.Embedding())
			}
		}

		profiles := NewProfileStore(tx)
		if len(vectors) == 0 {
			return profiles.DeleteBy(ctx, repository.WithUserID(userID))
		}

		avg, err := search.Average(vectors)
		if err != nil {
			return fmt.Errorf("average embeddings for %s: %w", userID, err)
		}
		return profiles.Upsert(ctx,
			[]profile.Profile{profile.NewProfile(userID, avg, s.now())},
			[]string{"user_id"},
			[]string{"embedding", "updated_at"},
		)
	})
}
