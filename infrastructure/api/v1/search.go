// Package v1 implements the version 1 HTTP API.
package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/helixml/cinerag"
	"github.com/helixml/cinerag/domain/search"
	"github.com/helixml/cinerag/infrastructure/api/middleware"
	"github.com/helixml/cinerag/infrastructure/api/v1/dto"
)

// SearchRouter handles free-text search.
type SearchRouter struct {
	client *cinerag.Client
	logger *slog.Logger
}

// NewSearchRouter creates a new SearchRouter.
func NewSearchRouter(client *cinerag.Client) *SearchRouter {
	return &SearchRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for search endpoints.
func (r *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.Search)

	return router
}

// Search handles GET /api/v1/search?q=&limit=&mood=.
// Results are re-ranked by the named mood, or by one detected in q.
func (r *SearchRouter) Search(w http.ResponseWriter, req *http.Request) {
	query := strings.TrimSpace(req.URL.Query().Get("q"))
	if query == "" {
		middleware.WriteError(w, req, middleware.BadRequest("q is required", search.ErrEmptyInput), r.logger)
		return
	}
	limit, err := ParseLimit(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	result, err := r.client.Search.ByMood(req.Context(), query, req.URL.Query().Get("mood"), limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, movieListResponse(result.Candidates(), dto.MovieListMeta{Mood: result.Mood()}))
}

// ItemsRouter handles item-to-item similarity.
type ItemsRouter struct {
	client *cinerag.Client
	logger *slog.Logger
}

// NewItemsRouter creates a new ItemsRouter.
func NewItemsRouter(client *cinerag.Client) *ItemsRouter {
	return &ItemsRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for item endpoints.
func (r *ItemsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/{id}/similar", r.Similar)
	router.Post("/similar", r.SimilarToMany)

	return router
}

// Similar handles GET /api/v1/items/{id}/similar.
func (r *ItemsRouter) Similar(w http.ResponseWriter, req *http.Request) {
	id, err := itemIDParam(req, "id")
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	limit, err := ParseLimit(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	cands, err := r.client.Search.SimilarTo(req.Context(), id, limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, movieListResponse(cands, dto.MovieListMeta{}))
}

// SimilarToMany handles POST /api/v1/items/similar.
func (r *ItemsRouter) SimilarToMany(w http.ResponseWriter, req *http.Request) {
	var body dto.SimilarRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.BadRequest("invalid request body", err), r.logger)
		return
	}
	if len(body.ItemIDs) == 0 {
		middleware.WriteError(w, req, middleware.BadRequest("item_ids is required", search.ErrEmptyInput), r.logger)
		return
	}
	if body.Limit < 0 {
		middleware.WriteError(w, req, middleware.BadRequest("limit must be positive", nil), r.logger)
		return
	}

	cands, err := r.client.Search.SimilarToMultiple(req.Context(), body.ItemIDs, clampLimit(body.Limit))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, movieListResponse(cands, dto.MovieListMeta{}))
}
