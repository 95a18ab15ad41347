package v1

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/helixml/cinerag"
	"github.com/helixml/cinerag/domain/search"
	"github.com/helixml/cinerag/infrastructure/api/middleware"
	"github.com/helixml/cinerag/infrastructure/api/v1/dto"
)

// Recommendation modes.
const (
	ModePersonalized = "personalized"
	ModeHybrid       = "hybrid"
)

// RecommendationsRouter handles user-independent listings.
type RecommendationsRouter struct {
	client *cinerag.Client
	logger *slog.Logger
}

// NewRecommendationsRouter creates a new RecommendationsRouter.
func NewRecommendationsRouter(client *cinerag.Client) *RecommendationsRouter {
	return &RecommendationsRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for recommendation endpoints.
func (r *RecommendationsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/popular", r.Popular)

	return router
}

// Popular handles GET /api/v1/recommendations/popular.
func (r *RecommendationsRouter) Popular(w http.ResponseWriter, req *http.Request) {
	limit, err := ParseLimit(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	cands, err := r.client.Recommendations.Popular(req.Context(), limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, movieListResponse(cands, dto.MovieListMeta{Mode: "popular"}))
}

// UsersRouter handles per-user recommendations, ratings and profiles.
type UsersRouter struct {
	client *cinerag.Client
	logger *slog.Logger
}

// NewUsersRouter creates a new UsersRouter.
func NewUsersRouter(client *cinerag.Client) *UsersRouter {
	return &UsersRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for user endpoints.
func (r *UsersRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Route("/{userID}", func(router chi.Router) {
		router.Use(userLogContext)
		router.Get("/recommendations", r.Recommendations)
		router.Post("/profile", r.UpdateProfile)
		router.Post("/ratings", r.Rate)
	})

	return router
}

// Recommendations handles GET /api/v1/users/{userID}/recommendations?mode=.
// The default mode is hybrid.
func (r *UsersRouter) Recommendations(w http.ResponseWriter, req *http.Request) {
	userID, err := userIDParam(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	limit, err := ParseLimit(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	mode := req.URL.Query().Get("mode")
	if mode == "" {
		mode = ModeHybrid
	}

	var cands []search.Candidate
	switch mode {
	case ModePersonalized:
		cands, err = r.client.Recommendations.Personalized(req.Context(), userID, limit)
	case ModeHybrid:
		cands, err = r.client.Recommendations.Hybrid(req.Context(), userID, limit)
	default:
		err = middleware.BadRequest(fmt.Sprintf("unknown mode %q", mode), nil)
	}
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, movieListResponse(cands, dto.MovieListMeta{Mode: mode}))
}
