package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/helixml/cinerag/domain/search"
	"github.com/helixml/cinerag/infrastructure/api/middleware"
	"github.com/helixml/cinerag/infrastructure/api/v1/dto"
	"github.com/helixml/cinerag/internal/log"
)

// MaxLimit is the largest result count a request may ask for.
const MaxLimit = 100

// ParseLimit reads the limit query parameter. A missing value yields 0,
// which the services replace with their default. Values above MaxLimit are clamped.
func ParseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, middleware.BadRequest(fmt.Sprintf("invalid limit %q", raw), err)
	}
	return clampLimit(limit), nil
}

func clampLimit(limit int) int {
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// itemIDParam reads a positive catalog id from the URL path.
func itemIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, middleware.BadRequest(fmt.Sprintf("invalid item id %q", raw), err)
	}
	return id, nil
}

// userIDParam reads and validates a UUID user id from the URL path.
func userIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "userID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", middleware.BadRequest(fmt.Sprintf("invalid user id %q", raw), err)
	}
	return id.String(), nil
}

// userLogContext tags the request context with a valid user id so that
// log records written while serving it carry user_id.
func userLogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := uuid.Parse(chi.URLParam(r, "userID")); err == nil {
			r = r.WithContext(log.WithUserID(r.Context(), id.String()))
		}
		next.ServeHTTP(w, r)
	})
}

func movieData(c search.Candidate) dto.MovieData {
	it := c.Item()
	attrs := dto.MovieAttributes{
		Title:       it.Title(),
		Kind:        string(it.Kind()),
		Tagline:     it.Tagline(),
		Description: it.Description(),
		Genres:      it.Genres(),
		Keywords:    it.Keywords(),
		Director:    it.Director(),
		Cast:        it.Cast(),
		VoteAverage: it.VoteAverage(),
		VoteCount:   it.VoteCount(),
		Popularity:  it.Popularity(),
		Similarity:  c.Similarity(),
		MoodScore:   c.MoodScore(),
		FusedScore:  c.FusedScore(),
	}
	if !it.ReleaseDate().IsZero() {
		d := it.ReleaseDate()
		attrs.ReleaseDate = &d
	}
	if attrs.Genres == nil {
		attrs.Genres = []string{}
	}
	return dto.MovieData{
		Type:       "movie",
		ID:         strconv.FormatInt(it.ID(), 10),
		Attributes: attrs,
	}
}

func movieList(cands []search.Candidate) []dto.MovieData {
	data := make([]dto.MovieData, len(cands))
	for i, c := range cands {
		data[i] = movieData(c)
	}
	return data
}

func movieListResponse(cands []search.Candidate, meta dto.MovieListMeta) dto.MovieListResponse {
	meta.Count = len(cands)
	return dto.MovieListResponse{Data: movieList(cands), Meta: meta}
}
