package v1

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/helixml/cinerag/infrastructure/api/middleware"
	"github.com/helixml/cinerag/infrastructure/api/v1/dto"
)

// UpdateProfile handles POST /api/v1/users/{userID}/profile.
func (r *UsersRouter) UpdateProfile(w http.ResponseWriter, req *http.Request) {
	userID, err := userIDParam(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	var body dto.ProfileUpdateRequest
	if req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			middleware.WriteError(w, req, middleware.BadRequest("invalid request body", err), r.logger)
			return
		}
	}

	if err := r.client.Profiles.Update(req.Context(), userID, body.MinRating); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.StatusResponse{Status: "updated"})
}

// Rate handles POST /api/v1/users/{userID}/ratings.
func (r *UsersRouter) Rate(w http.ResponseWriter, req *http.Request) {
	userID, err := userIDParam(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	var body dto.RatingRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.BadRequest("invalid request body", err), r.logger)
		return
	}
	if body.ItemID < 1 {
		middleware.WriteError(w, req, middleware.BadRequest("item_id is required", nil), r.logger)
		return
	}

	if err := r.client.Profiles.Rate(req.Context(), userID, body.ItemID, body.Rating); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, dto.StatusResponse{Status: "rated"})
}
