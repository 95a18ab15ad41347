package persistence

import (
	"time"

	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/profile"
)

// CatalogItemMapper maps between catalog.Item and CatalogItemModel.
type CatalogItemMapper struct{}

// ToDomain converts a CatalogItemModel to a catalog.Item.
func (CatalogItemMapper) ToDomain(e CatalogItemModel) catalog.Item {
	kind := catalog.Kind(e.Kind)
	if kind == "" {
		kind = catalog.KindMovie
	}

	opts := []catalog.ItemOption{
		catalog.WithKind(kind),
		catalog.WithDescription(e.Description),
		catalog.WithTagline(e.Tagline),
		catalog.WithGenres(e.Genres...),
		catalog.WithKeywords(e.Keywords...),
		catalog.WithCast(e.Cast...),
		catalog.WithDirector(e.Director),
		catalog.WithVotes(e.VoteAverage, e.VoteCount),
		catalog.WithPopularity(e.Popularity),
	}
	if e.ReleaseDate != nil {
		opts = append(opts, catalog.WithReleaseDate(*e.ReleaseDate))
	}
	if len(e.Embedding) > 0 {
		opts = append(opts, catalog.WithEmbedding(e.Embedding))
	}
	return catalog.NewItem(e.ID, e.Title, opts...)
}

// ToModel converts a catalog.Item to a CatalogItemModel.
func (CatalogItemMapper) ToModel(it catalog.Item) CatalogItemModel {
	var releaseDate *time.Time
	if !it.ReleaseDate().IsZero() {
		d := it.ReleaseDate()
		releaseDate = &d
	}

	var embedding Float64Slice
	if it.HasEmbedding() {
		embedding = it.Embedding()
	}

	return CatalogItemModel{
		ID:          it.ID(),
		Kind:        string(it.Kind()),
		Title:       it.Title(),
		Description: it.Description(),
		Tagline:     it.Tagline(),
		Genres:      it.Genres(),
		Keywords:    it.Keywords(),
		Cast:        it.Cast(),
		Director:    it.Director(),
		ReleaseDate: releaseDate,
		VoteAverage: it.VoteAverage(),
		VoteCount:   it.VoteCount(),
		Popularity:  it.Popularity(),
		Embedding:   embedding,
	}
}

// RatingMapper maps between profile.Rating and RatingModel.
type RatingMapper struct{}

// ToDomain converts a RatingModel to a profile.Rating. Stored rows were
// validated on write, so reconstruction does not re-validate.
func (RatingMapper) ToDomain(e RatingModel) profile.Rating {
	return profile.ReconstructRating(e.UserID, e.ItemID, e.Rating, e.WatchedAt)
}

// ToModel converts a profile.Rating to a RatingModel.
func (RatingMapper) ToModel(r profile.Rating) RatingModel {
	return RatingModel{
		UserID:    r.UserID(),
		ItemID:    r.ItemID(),
		Rating:    r.Value(),
		WatchedAt: r.WatchedAt(),
	}
}

// ProfileMapper maps between profile.Profile and ProfileModel.
type ProfileMapper struct{}

// ToDomain converts a ProfileModel to a profile.Profile.
func (ProfileMapper) ToDomain(e ProfileModel) profile.Profile {
	return profile.NewProfile(e.UserID, e.Embedding, e.UpdatedAt)
}

// ToModel converts a profile.Profile to a ProfileModel.
func (ProfileMapper) ToModel(p profile.Profile) ProfileModel {
	return ProfileModel{
		UserID:    p.UserID(),
		Embedding: p.Embedding(),
		UpdatedAt: p.UpdatedAt(),
	}
}
