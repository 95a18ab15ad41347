package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/repository"
	"github.com/helixml/cinerag/domain/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeEmbedder struct {
	calls [][]string
	dims  int
	errAt int // call index at which to return an error; -1 = never
	short bool
}

func newFakeEmbedder(dims int) *fakeEmbedder {
	return &fakeEmbedder{dims: dims, errAt: -1}
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, texts)
	if f.errAt >= 0 && idx == f.errAt {
		return nil, fmt.Errorf("embed error at call %d", idx)
	}
	n := len(texts)
	if f.short {
		n--
	}
	vectors := make([][]float64, n)
	for i := range vectors {
		v := make([]float64, f.dims)
		v[0] = float64(len(texts[i]))
		vectors[i] = v
	}
	return vectors, nil
}

type fakeCatalogStore struct {
	saved   map[int64][]float64
	saveErr int64 // item id whose save fails; 0 = never
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{saved: map[int64][]float64{}}
}

func (f *fakeCatalogStore) Get(context.Context, int64) (catalog.Item, error) {
	return catalog.Item{}, catalog.ErrNotFound
}

func (f *fakeCatalogStore) Find(context.Context, ...repository.Option) ([]catalog.Item, error) {
	return nil, nil
}

func (f *fakeCatalogStore) SaveAll(context.Context, []catalog.Item) error { return nil }

func (f *fakeCatalogStore) SaveEmbedding(_ context.Context, id int64, embedding []float64) error {
	if id == f.saveErr {
		return fmt.Errorf("save failed for %d", id)
	}
	f.saved[id] = embedding
	return nil
}

func (f *fakeCatalogStore) WithoutEmbedding(context.Context, int) ([]catalog.Item, error) {
	return nil, nil
}

func newService(t *testing.T, embedder search.Embedder, opts ...EmbeddingOption) *EmbeddingService {
	t.Helper()
	opts = append([]EmbeddingOption{WithDimensions(3), WithBatchDelay(0)}, opts...)
	svc, err := NewEmbedding(embedder, opts...)
	require.NoError(t, err)
	return svc
}

// --- tests ---

func TestNewEmbedding_NilEmbedder(t *testing.T) {
	_, err := NewEmbedding(nil)
	require.Error(t, err)
}

func TestEmbeddingService_Embed(t *testing.T) {
	embedder := newFakeEmbedder(3)
	svc := newService(t, embedder)

	vec, err := svc.Embed(context.Background(), "  space westerns  ")

	require.NoError(t, err)
	assert.Len(t, vec, 3)
	require.Len(t, embedder.calls, 1)
	assert.Equal(t, []string{"space westerns"}, embedder.calls[0])
}

func TestEmbeddingService_Embed_BlankInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		embedder := newFakeEmbedder(3)
		svc := newService(t, embedder)

		_, err := svc.Embed(context.Background(), text)

		assert.ErrorIs(t, err, search.ErrEmptyInput)
		assert.Empty(t, embedder.calls, "no provider call for %q", text)
	}
}

func TestEmbeddingService_Embed_DimensionMismatch(t *testing.T) {
	svc := newService(t, newFakeEmbedder(4))

	_, err := svc.Embed(context.Background(), "heist")

	assert.ErrorIs(t, err, search.ErrDimensionMismatch)
}

func TestEmbeddingService_EmbedBatch_Empty(t *testing.T) {
	embedder := newFakeEmbedder(3)
	svc := newService(t, embedder)

	got, err := svc.EmbedBatch(context.Background(), []string{}, 50)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, embedder.calls)
}

func TestEmbeddingService_EmbedBatch_ChunksInOrder(t *testing.T) {
	embedder := newFakeEmbedder(3)
	svc := newService(t, embedder)
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	got, err := svc.EmbedBatch(context.Background(), texts, 2)

	require.NoError(t, err)
	require.Len(t, embedder.calls, 3)
	assert.Equal(t, []string{"a", "bb"}, embedder.calls[0])
	assert.Equal(t, []string{"ccc", "dddd"}, embedder.calls[1])
	assert.Equal(t, []string{"eeeee"}, embedder.calls[2])
	require.Len(t, got, 5)
	for i, v := range got {
		assert.Equal(t, float64(i+1), v[0], "vector %d out of order", i)
	}
}

func TestEmbeddingService_EmbedBatch_CapsBatchSize(t *testing.T) {
	embedder := newFakeEmbedder(3)
	svc := newService(t, embedder)
	texts := make([]string, 150)
	for i := range texts {
		texts[i] = "x"
	}

	_, err := svc.EmbedBatch(context.Background(), texts, 500)

	require.NoError(t, err)
	require.Len(t, embedder.calls, 2)
	assert.Len(t, embedder.calls[0], 100)
	assert.Len(t, embedder.calls[1], 50)
}

func TestEmbeddingService_EmbedBatch_DefaultBatchSize(t *testing.T) {
	embedder := newFakeEmbedder(3)
	svc := newService(t, embedder, WithBatchSize(2))

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"}, 0)

	require.NoError(t, err)
	assert.Len(t, embedder.calls, 2)
}

func TestEmbeddingService_EmbedBatch_StopsOnError(t *testing.T) {
	embedder := newFakeEmbedder(3)
	embedder.errAt = 1
	svc := newService(t, embedder)

	got, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"}, 2)

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Len(t, embedder.calls, 2)
}

func TestEmbeddingService_EmbedBatch_CountMismatch(t *testing.T) {
	embedder := newFakeEmbedder(3)
	embedder.short = true
	svc := newService(t, embedder)

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"}, 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch")
}

func TestEmbeddingService_EmbedBatch_DelayHonoursCancel(t *testing.T) {
	embedder := newFakeEmbedder(3)
	svc := newService(t, embedder, WithBatchDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := svc.EmbedBatch(ctx, []string{"a", "b"}, 1)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("EmbedBatch did not return after cancel")
	}
}

func TestEmbeddingService_Index(t *testing.T) {
	embedder := newFakeEmbedder(3)
	store := newFakeCatalogStore()
	svc := newService(t, embedder, WithBatchSize(2))

	items := []catalog.Item{
		catalog.NewItem(1, "Alien", catalog.WithGenres("Horror")),
		catalog.NewItem(2, "Heat", catalog.WithEmbedding([]float64{1, 2, 3})),
		catalog.NewItem(3, "Ran"),
		catalog.NewItem(4, "Brazil"),
	}

	var progress [][2]int
	n, err := svc.Index(context.Background(), store, items, WithProgress(func(done, total int) {
		progress = append(progress, [2]int{done, total})
	}))

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, store.saved, 3)
	assert.NotContains(t, store.saved, int64(2))
	assert.Equal(t, [][2]int{{2, 3}, {3, 3}}, progress)
	assert.Equal(t, "Alien\n\nGenres: Horror", embedder.calls[0][0])
}

func TestEmbeddingService_Index_ContinuesAfterBatchError(t *testing.T) {
	embedder := newFakeEmbedder(3)
	embedder.errAt = 0
	store := newFakeCatalogStore()
	svc := newService(t, embedder, WithBatchSize(1))

	var failed [][2]int
	n, err := svc.Index(context.Background(), store,
		[]catalog.Item{catalog.NewItem(1, "A"), catalog.NewItem(2, "B")},
		WithBatchError(func(start, end int, _ error) { failed = append(failed, [2]int{start, end}) }),
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 embedding batches failed")
	assert.Equal(t, 1, n)
	assert.Equal(t, [][2]int{{0, 1}}, failed)
	assert.Contains(t, store.saved, int64(2))
}

func TestEmbeddingService_Index_SaveError(t *testing.T) {
	store := newFakeCatalogStore()
	store.saveErr = 1
	svc := newService(t, newFakeEmbedder(3))

	n, err := svc.Index(context.Background(), store, []catalog.Item{catalog.NewItem(1, "A")})

	require.Error(t, err)
	assert.Equal(t, 0, n)
}

func TestEmbeddingService_Index_NothingPending(t *testing.T) {
	embedder := newFakeEmbedder(3)
	svc := newService(t, embedder)

	n, err := svc.Index(context.Background(), newFakeCatalogStore(),
		[]catalog.Item{catalog.NewItem(1, "A", catalog.WithEmbedding([]float64{1, 1, 1}))})

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, embedder.calls)
}

func TestEmbeddingService_Index_BatchSizeOverride(t *testing.T) {
	embedder := newFakeEmbedder(3)
	svc := newService(t, embedder, WithBatchSize(10))

	items := []catalog.Item{catalog.NewItem(1, "A"), catalog.NewItem(2, "B"), catalog.NewItem(3, "C")}
	n, err := svc.Index(context.Background(), newFakeCatalogStore(), items, WithIndexBatchSize(2))

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, embedder.calls, 2)
	assert.Len(t, embedder.calls[0], 2)
	assert.Len(t, embedder.calls[1], 1)
}
