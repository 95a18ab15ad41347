package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/helixml/cinerag"
	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/infrastructure/api"
)

const testUser = "3e7a1c90-52d4-4b8f-a6e1-0c9d2f4b7a15"

// axisEmbedder embeds text onto a space, crime or family axis.
type axisEmbedder struct{}

func (axisEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "space"):
			out[i] = []float64{1, 0, 0}
		case strings.Contains(lower, "crime"):
			out[i] = []float64{0, 1, 0}
		default:
			out[i] = []float64{0, 0, 1}
		}
	}
	return out, nil
}

func newTestClient(t *testing.T) *cinerag.Client {
	t.Helper()
	client, err := cinerag.New(
		cinerag.WithSQLite(filepath.Join(t.TempDir(), "test.db")),
		cinerag.WithEmbeddingProvider(axisEmbedder{}),
		cinerag.WithDimensions(3),
		cinerag.WithEmbeddingBatch(10, 0),
	)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	err = client.Catalog.SaveAll(ctx, []catalog.Item{
		catalog.NewItem(1, "Alien", catalog.WithDescription("Horror in deep space."), catalog.WithPopularity(90)),
		catalog.NewItem(2, "Heat", catalog.WithDescription("A crime epic."), catalog.WithPopularity(60)),
		catalog.NewItem(3, "Paddington", catalog.WithDescription("A bear moves to London."), catalog.WithPopularity(70)),
	})
	if err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	if _, err := client.Indexing.EmbedMissing(ctx, 0); err != nil {
		t.Fatalf("embed catalog: %v", err)
	}
	return client
}

func TestAPIServer_Routes(t *testing.T) {
	client := newTestClient(t)
	handler := api.NewAPIServer(client, api.WithAPIKeys([]string{"test-secret-key"})).Handler()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		key    string
		want   int
	}{
		{name: "health", method: http.MethodGet, target: "/healthz", want: http.StatusOK},
		{name: "search is open", method: http.MethodGet, target: "/api/v1/search?q=space", want: http.StatusOK},
		{name: "popular is open", method: http.MethodGet, target: "/api/v1/recommendations/popular", want: http.StatusOK},
		{name: "user reads are open", method: http.MethodGet, target: "/api/v1/users/" + testUser + "/recommendations", want: http.StatusOK},
		{name: "rating without key", method: http.MethodPost, target: "/api/v1/users/" + testUser + "/ratings", body: `{"item_id":1,"rating":9}`, want: http.StatusUnauthorized},
		{name: "rating with wrong key", method: http.MethodPost, target: "/api/v1/users/" + testUser + "/ratings", body: `{"item_id":1,"rating":9}`, key: "nope", want: http.StatusUnauthorized},
		{name: "rating with key", method: http.MethodPost, target: "/api/v1/users/" + testUser + "/ratings", body: `{"item_id":1,"rating":9}`, key: "test-secret-key", want: http.StatusCreated},
		{name: "unknown route", method: http.MethodGet, target: "/api/v1/nothing", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.key != "" {
				req.Header.Set("X-API-KEY", tt.key)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAPIServer_Metrics(t *testing.T) {
	client := newTestClient(t)
	handler := api.NewAPIServer(client).Handler()

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations/popular?limit=2", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "cinerag_cache_hits_total") {
		t.Errorf("metrics output missing cache hits counter:\n%s", w.Body.String())
	}
}

func TestAPIServer_CorrelationHeader(t *testing.T) {
	client := newTestClient(t)
	handler := api.NewAPIServer(client).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := w.Header().Get("X-Correlation-ID"); got != "abc-123" {
		t.Errorf("X-Correlation-ID = %q, want abc-123", got)
	}
	if !strings.Contains(w.Body.String(), `"id":"abc-123"`) {
		t.Errorf("error body missing correlation id: %s", w.Body.String())
	}
}

func TestAPIServer_ShutdownWithoutStart(t *testing.T) {
	client := newTestClient(t)
	a := api.NewAPIServer(client)

	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v, want nil", err)
	}
}
