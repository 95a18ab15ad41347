package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/helixml/cinerag/domain/cache"
	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/mood"
	domainservice "github.com/helixml/cinerag/domain/service"
	cacheinfra "github.com/helixml/cinerag/infrastructure/cache"
	"github.com/helixml/cinerag/infrastructure/persistence"
	searchinfra "github.com/helixml/cinerag/infrastructure/search"
	"github.com/helixml/cinerag/internal/testdb"
	"github.com/stretchr/testify/require"
)

const testDims = 3

// keywordEmbedder maps text onto three axes: space, crime and everything else.
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "space") || strings.Contains(lower, "alien"):
			out[i] = []float64{1, 0, 0}
		case strings.Contains(lower, "crime") || strings.Contains(lower, "heist"):
			out[i] = []float64{0, 1, 0}
		default:
			out[i] = []float64{0, 0, 1}
		}
	}
	return out, nil
}

func (e *keywordEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *keywordEmbedder) Fail(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

// flakyResults fails the first failures invalidations, then delegates.
type flakyResults struct {
	cache.Results
	failures int
	attempts atomic.Int32
}

func (f *flakyResults) Invalidate(ctx context.Context, pattern string) (int, error) {
	n := f.attempts.Add(1)
	if int(n) <= f.failures {
		return 0, errors.New("connection reset")
	}
	return f.Results.Invalidate(ctx, pattern)
}

type fixture struct {
	catalog    persistence.CatalogStore
	ratings    persistence.RatingStore
	profiles   persistence.ProfileStore
	store      *cacheinfra.MemoryStore
	results    *cacheinfra.ResultCache
	embedder   *keywordEmbedder
	embeddings *domainservice.EmbeddingService
	vectors    *searchinfra.CatalogVectorStore
	closed     *atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.New(t)

	store := cacheinfra.NewMemoryStore(cacheinfra.WithJanitorInterval(0))
	t.Cleanup(func() { _ = store.Close() })

	embedder := &keywordEmbedder{}
	embeddings, err := domainservice.NewEmbedding(embedder,
		domainservice.WithDimensions(testDims),
		domainservice.WithBatchDelay(0),
	)
	require.NoError(t, err)

	f := &fixture{
		catalog:    persistence.NewCatalogStore(db),
		ratings:    persistence.NewRatingStore(db),
		profiles:   persistence.NewProfileStore(db),
		store:      store,
		results:    cacheinfra.NewResultCache(store),
		embedder:   embedder,
		embeddings: embeddings,
		closed:     &atomic.Bool{},
	}
	f.vectors = searchinfra.NewCatalogVectorStore(f.catalog, f.profiles, f.ratings, searchinfra.WithDimensions(testDims))
	f.seed(t)
	return f
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	released := time.Date(1979, 5, 25, 0, 0, 0, 0, time.UTC)
	items := []catalog.Item{
		catalog.NewItem(1, "Alien",
			catalog.WithTagline("In space no one can hear you scream."),
			catalog.WithDescription("A commercial crew encounters a deadly lifeform."),
			catalog.WithGenres("Horror", "Science Fiction"),
			catalog.WithKeywords("space", "android", "creature", "isolation", "survival", "spaceship"),
			catalog.WithCast("Sigourney Weaver", "Tom Skerritt", "John Hurt", "Ian Holm"),
			catalog.WithDirector("Ridley Scott"),
			catalog.WithReleaseDate(released),
			catalog.WithVotes(8.1, 14000),
			catalog.WithPopularity(90),
			catalog.WithEmbedding([]float64{1, 0, 0}),
		),
		catalog.NewItem(2, "Aliens", catalog.WithGenres("Action", "Science Fiction"), catalog.WithPopularity(80), catalog.WithEmbedding([]float64{0.9, 0.1, 0})),
		catalog.NewItem(3, "Heat", catalog.WithGenres("Crime", "Thriller"), catalog.WithPopularity(40), catalog.WithEmbedding([]float64{0, 1, 0})),
		catalog.NewItem(4, "Ronin", catalog.WithGenres("Action", "Crime"), catalog.WithPopularity(20), catalog.WithEmbedding([]float64{0.1, 0.9, 0})),
		catalog.NewItem(5, "Paddington", catalog.WithGenres("Comedy", "Family"), catalog.WithPopularity(70), catalog.WithEmbedding([]float64{0, 0, 1})),
		catalog.NewItem(6, "Unreleased Heist", catalog.WithDescription("A crime caper."), catalog.WithGenres("Crime"), catalog.WithPopularity(99)),
	}
	require.NoError(t, f.catalog.SaveAll(context.Background(), items))
}

func (f *fixture) search() *Search {
	return NewSearch(f.embeddings, f.vectors, f.catalog, f.results, mood.NewDetector(nil), f.closed, quietLogger())
}

func (f *fixture) recommendations() *Recommendations {
	return NewRecommendations(f.vectors, f.catalog, f.results, f.closed, quietLogger())
}

func (f *fixture) profileService(opts ...ProfilesOption) *Profiles {
	return NewProfiles(f.profiles, f.ratings, f.catalog, f.results, f.closed, quietLogger(), opts...)
}

func (f *fixture) indexing() *Indexing {
	return NewIndexing(f.embeddings, f.catalog, f.results, f.closed, quietLogger())
}
