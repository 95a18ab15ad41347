package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/helixml/cinerag/domain/cache"
	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/profile"
	"github.com/helixml/cinerag/domain/repository"
	"github.com/helixml/cinerag/domain/search"
)

// Invalidation retry defaults.
const (
	DefaultInvalidateAttempts = 3
	DefaultInvalidateBackoff  = 50 * time.Millisecond
)

// Profiles maintains user ratings and preference profiles.
type Profiles struct {
	profiles profile.Store
	ratings  profile.RatingStore
	catalog  catalog.Store
	cache    cache.Results
	attempts int
	backoff  time.Duration
	now      func() time.Time
	closed   *atomic.Bool
	logger   *slog.Logger
}

// ProfilesOption configures a Profiles service.
type ProfilesOption func(*Profiles)

// WithInvalidateRetry sets how often and how patiently cache invalidation
// is retried after a profile update.
func WithInvalidateRetry(attempts int, backoff time.Duration) ProfilesOption {
	return func(p *Profiles) {
		if attempts > 0 {
			p.attempts = attempts
		}
		if backoff >= 0 {
			p.backoff = backoff
		}
	}
}

// WithClock sets the clock used to stamp ratings.
func WithClock(now func() time.Time) ProfilesOption {
	return func(p *Profiles) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProfiles creates a new Profiles service.
func NewProfiles(
	profiles profile.Store,
	ratings profile.RatingStore,
	catalogStore catalog.Store,
	results cache.Results,
	closed *atomic.Bool,
	logger *slog.Logger,
	opts ...ProfilesOption,
) *Profiles {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Profiles{
		profiles: profiles,
		ratings:  ratings,
		catalog:  catalogStore,
		cache:    results,
		attempts: DefaultInvalidateAttempts,
		backoff:  DefaultInvalidateBackoff,
		now:      func() time.Time { return time.Now().UTC() },
		closed:   closed,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Update recomputes the user's preference profile from items rated at or
// above minRating, then drops every cached recommendation of the user.
// A non-positive minRating uses the default threshold.
func (p *Profiles) Update(ctx context.Context, userID string, minRating int) error {
	if err := p.checkClosed(); err != nil {
		return err
	}
	if minRating <= 0 {
		minRating = profile.DefaultMinRating
	}
	if minRating > profile.MaxRatingValue {
		return fmt.Errorf("%w: min rating %d", profile.ErrInvalidRating, minRating)
	}

	if err := p.profiles.Recompute(ctx, userID, minRating); err != nil {
		return fmt.Errorf("%w: recompute profile: %w", search.ErrUpstreamUnavailable, err)
	}
	return p.invalidate(ctx, userID)
}

// Rate stores the user's rating of an item and refreshes their profile.
func (p *Profiles) Rate(ctx context.Context, userID string, itemID int64, value int) error {
	if err := p.checkClosed(); err != nil {
		return err
	}
	r, err := profile.NewRating(userID, itemID, value, p.now())
	if err != nil {
		return err
	}
	if _, err := p.catalog.Get(ctx, itemID); err != nil {
		return err
	}
	if err := p.ratings.Save(ctx, r); err != nil {
		return fmt.Errorf("save rating: %w", err)
	}
	return p.Update(ctx, userID, profile.DefaultMinRating)
}

// Preferences summarises the user's top-rated items. ok is false for users
// with no rating at or above the default threshold.
func (p *Profiles) Preferences(ctx context.Context, userID string) (profile.Summary, bool, error) {
	if err := p.checkClosed(); err != nil {
		return profile.Summary{}, false, err
	}
	top, err := p.ratings.TopRated(ctx, userID, profile.DefaultMinRating, profile.SummarySize)
	if err != nil {
		return profile.Summary{}, false, fmt.Errorf("top rated: %w", err)
	}
	if len(top) == 0 {
		return profile.Summary{}, false, nil
	}

	ids := make([]int64, len(top))
	for i, r := range top {
		ids[i] = r.ItemID()
	}
	items, err := p.catalog.Find(ctx, repository.WithIDIn(ids))
	if err != nil {
		return profile.Summary{}, false, fmt.Errorf("load rated items: %w", err)
	}
	byID := make(map[int64]catalog.Item, len(items))
	for _, it := range items {
		byID[it.ID()] = it
	}

	summary := profile.Summary{UserID: userID}
	for _, r := range top {
		it, ok := byID[r.ItemID()]
		if !ok {
			continue
		}
		summary.Favourites = append(summary.Favourites, profile.Favourite{
			Title:  it.Title(),
			Rating: r.Value(),
			Genres: it.Genres(),
		})
	}
	if len(summary.Favourites) == 0 {
		return profile.Summary{}, false, nil
	}
	return summary, true, nil
}

func (p *Profiles) invalidate(ctx context.Context, userID string) error {
	pattern := cache.UserPattern(userID)
	delay := p.backoff

	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		var n int
		n, err = p.cache.Invalidate(ctx, pattern)
		if err == nil {
			p.logger.DebugContext(ctx, "invalidated recommendations", slog.String("user_id", userID), slog.Int("keys", n))
			return nil
		}
		if attempt == p.attempts {
			break
		}
		p.logger.WarnContext(ctx, "recommendation invalidation failed, retrying",
			slog.String("user_id", userID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("invalidate recommendations for %s: %w", userID, ctx.Err())
			case <-timer.C:
			}
			delay *= 2
		}
	}

	p.logger.ErrorContext(ctx, "stale recommendations: invalidation failed",
		slog.String("user_id", userID),
		slog.Int("attempts", p.attempts),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("invalidate recommendations for %s: %w", userID, err)
}

func (p *Profiles) checkClosed() error {
	if p.closed != nil && p.closed.Load() {
		return ErrClientClosed
	}
	return nil
}
