// Package catalog defines the movie and show records that retrieval ranks.
package catalog

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound indicates a catalog item does not exist.
var ErrNotFound = errors.New("catalog item not found")

// Kind distinguishes movies from TV shows.
type Kind string

// Kind values.
const (
	KindMovie Kind = "movie"
	KindShow  Kind = "show"
)

// Item is a single catalog entry. Embedding is optional; items without one
// are never returned by similarity queries.
type Item struct {
	id          int64
	kind        Kind
	title       string
	description string
	tagline     string
	genres      []string
	keywords    []string
	cast        []string
	director    string
	releaseDate time.Time
	voteAverage float64
	voteCount   int
	popularity  float64
	embedding   []float64
}

// NewItem creates an Item with the required identity fields.
func NewItem(id int64, title string, opts ...ItemOption) Item {
	it := Item{id: id, kind: KindMovie, title: title}
	for _, opt := range opts {
		opt(&it)
	}
	return it
}

// ItemOption configures an Item.
type ItemOption func(*Item)

// WithKind sets the item kind.
func WithKind(k Kind) ItemOption { return func(it *Item) { it.kind = k } }

// WithDescription sets the overview text.
func WithDescription(s string) ItemOption { return func(it *Item) { it.description = s } }

// WithTagline sets the tagline.
func WithTagline(s string) ItemOption { return func(it *Item) { it.tagline = s } }

// WithGenres sets the genre names.
func WithGenres(g ...string) ItemOption { return func(it *Item) { it.genres = cloneStrings(g) } }

// WithKeywords sets the keyword tags.
func WithKeywords(k ...string) ItemOption { return func(it *Item) { it.keywords = cloneStrings(k) } }

// WithCast sets the top-billed cast names.
func WithCast(c ...string) ItemOption { return func(it *Item) { it.cast = cloneStrings(c) } }

// WithDirector sets the director name.
func WithDirector(d string) ItemOption { return func(it *Item) { it.director = d } }

// WithReleaseDate sets the release date.
func WithReleaseDate(t time.Time) ItemOption { return func(it *Item) { it.releaseDate = t } }

// WithVotes sets the vote average and vote count.
func WithVotes(avg float64, count int) ItemOption {
	return func(it *Item) {
		it.voteAverage = avg
		it.voteCount = count
	}
}

// WithPopularity sets the popularity metric.
func WithPopularity(p float64) ItemOption { return func(it *Item) { it.popularity = p } }

// WithEmbedding sets the item embedding.
func WithEmbedding(v []float64) ItemOption { return func(it *Item) { it.embedding = cloneFloats(v) } }

// ID returns the catalog id.
func (it Item) ID() int64 { return it.id }

// Kind returns whether the item is a movie or show.
func (it Item) Kind() Kind { return it.kind }

// Title returns the title.
func (it Item) Title() string { return it.title }

// Description returns the overview text.
func (it Item) Description() string { return it.description }

// Tagline returns the tagline.
func (it Item) Tagline() string { return it.tagline }

// Genres returns the genre names.
func (it Item) Genres() []string { return cloneStrings(it.genres) }

// Keywords returns the keyword tags.
func (it Item) Keywords() []string { return cloneStrings(it.keywords) }

// Cast returns the top-billed cast.
func (it Item) Cast() []string { return cloneStrings(it.cast) }

// Director returns the director.
func (it Item) Director() string { return it.director }

// ReleaseDate returns the release date, zero when unknown.
func (it Item) ReleaseDate() time.Time { return it.releaseDate }

// VoteAverage returns the average rating.
func (it Item) VoteAverage() float64 { return it.voteAverage }

// VoteCount returns the number of votes.
func (it Item) VoteCount() int { return it.voteCount }

// Popularity returns the popularity metric.
func (it Item) Popularity() float64 { return it.popularity }

// Embedding returns a copy of the embedding, nil when absent.
func (it Item) Embedding() []float64 { return cloneFloats(it.embedding) }

// HasEmbedding reports whether the item carries an embedding.
func (it Item) HasEmbedding() bool { return len(it.embedding) > 0 }

// WithEmbedding returns a copy of the item carrying the given embedding.
func (it Item) WithEmbedding(v []float64) Item {
	it.embedding = cloneFloats(v)
	return it
}

// WithoutEmbedding returns a copy of the item with the embedding stripped.
// Ranked results never expose raw vectors.
func (it Item) WithoutEmbedding() Item {
	it.embedding = nil
	return it
}

// EmbeddingText is the text sent to the embedding provider for this item.
func (it Item) EmbeddingText() string {
	var b strings.Builder
	b.WriteString(it.title)
	if it.description != "" {
		b.WriteString("\n\n")
		b.WriteString(it.description)
	}
	if len(it.genres) > 0 {
		b.WriteString("\n\nGenres: ")
		b.WriteString(strings.Join(it.genres, ", "))
	}
	return b.String()
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
