package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItem_EmbeddingText(t *testing.T) {
	it := NewItem(1, "Arrival",
		WithDescription("A linguist decodes an alien language."),
		WithGenres("Drama", "Science Fiction"),
	)

	assert.Equal(t, "Arrival\n\nA linguist decodes an alien language.\n\nGenres: Drama, Science Fiction", it.EmbeddingText())
	assert.Equal(t, "Untitled", NewItem(2, "Untitled").EmbeddingText())
}

func TestItem_EmbeddingIsCopied(t *testing.T) {
	vec := []float64{1, 2, 3}
	it := NewItem(1, "Heat", WithEmbedding(vec))
	vec[0] = 99

	got := it.Embedding()
	assert.Equal(t, []float64{1, 2, 3}, got)
	got[1] = 42
	assert.Equal(t, []float64{1, 2, 3}, it.Embedding())

	assert.True(t, it.HasEmbedding())
	assert.False(t, it.WithoutEmbedding().HasEmbedding())
	assert.True(t, it.HasEmbedding())
}

func TestNewItem_Defaults(t *testing.T) {
	it := NewItem(7, "Dark", WithKind(KindShow), WithPopularity(12.5), WithVotes(8.7, 4000))

	assert.Equal(t, int64(7), it.ID())
	assert.Equal(t, KindShow, it.Kind())
	assert.Equal(t, 12.5, it.Popularity())
	assert.Equal(t, 8.7, it.VoteAverage())
	assert.Equal(t, 4000, it.VoteCount())
	assert.Equal(t, KindMovie, NewItem(8, "Heat").Kind())
}
