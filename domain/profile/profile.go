// Package profile models user ratings and the preference profile derived from them.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Rating bounds and the threshold above which a rating counts as a liked item.
const (
	MinRatingValue   = 1
	MaxRatingValue   = 10
	DefaultMinRating = 7
	SummarySize      = 5
)

// ErrInvalidRating is returned for ratings outside 1..10.
var ErrInvalidRating = errors.New("rating must be between 1 and 10")

// Rating is one user's score for one catalog item.
type Rating struct {
	userID    string
	itemID    int64
	rating    int
	watchedAt time.Time
}

// NewRating validates and creates a Rating.
func NewRating(userID string, itemID int64, rating int, watchedAt time.Time) (Rating, error) {
	if rating < MinRatingValue || rating > MaxRatingValue {
		return Rating{}, fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	return Rating{userID: userID, itemID: itemID, rating: rating, watchedAt: watchedAt}, nil
}

// ReconstructRating rebuilds a Rating from persisted state without validation.
func ReconstructRating(userID string, itemID int64, rating int, watchedAt time.Time) Rating {
	return Rating{userID: userID, itemID: itemID, rating: rating, watchedAt: watchedAt}
}

// UserID returns the rating user.
func (r Rating) UserID() string { return r.userID }

// ItemID returns the rated catalog item.
func (r Rating) ItemID() int64 { return r.itemID }

// Value returns the score, 1..10.
func (r Rating) Value() int { return r.rating }

// WatchedAt returns when the item was watched.
func (r Rating) WatchedAt() time.Time { return r.watchedAt }

// Profile is a user's aggregate preference embedding. A user with no
// qualifying ratings has no profile at all.
type Profile struct {
	userID    string
	embedding []float64
	updatedAt time.Time
}

// NewProfile creates a Profile.
func NewProfile(userID string, embedding []float64, updatedAt time.Time) Profile {
	e := make([]float64, len(embedding))
	copy(e, embedding)
	return Profile{userID: userID, embedding: e, updatedAt: updatedAt}
}

// UserID returns the profile owner.
func (p Profile) UserID() string { return p.userID }

// Embedding returns a copy of the aggregate embedding.
func (p Profile) Embedding() []float64 {
	e := make([]float64, len(p.embedding))
	copy(e, p.embedding)
	return e
}

// UpdatedAt returns when the profile was last recomputed.
func (p Profile) UpdatedAt() time.Time { return p.updatedAt }

// Favourite is one highly rated item in a Summary.
type Favourite struct {
	Title  string
	Rating int
	Genres []string
}

// Summary lists a user's top-rated items for prompt context.
type Summary struct {
	UserID     string
	Favourites []Favourite
}

// Store persists preference profiles.
type Store interface {
	// Get returns the user's profile. ok is false when none exists.
	Get(ctx context.Context, userID string) (Profile, bool, error)

	// Recompute rebuilds the profile from items rated at or above minRating,
	// removing it when nothing qualifies.
	Recompute(ctx context.Context, userID string, minRating int) error
}

// RatingStore persists ratings.
type RatingStore interface {
	// Save inserts or replaces the user's rating for the item.
	Save(ctx context.Context, r Rating) error

	// TopRated returns up to limit ratings at or above minRating,
	// highest first.
	TopRated(ctx context.Context, userID string, minRating, limit int) ([]Rating, error)

	// RatedItemIDs returns every item id the user has rated.
	RatedItemIDs(ctx context.Context, userID string) ([]int64, error)
}
