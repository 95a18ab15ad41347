package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/helixml/cinerag"
	"github.com/helixml/cinerag/application/service"
	"github.com/helixml/cinerag/domain/search"
	"github.com/helixml/cinerag/infrastructure/api/middleware"
	"github.com/helixml/cinerag/infrastructure/api/v1/dto"
	"github.com/helixml/cinerag/infrastructure/provider"
)

var chatRoles = map[string]bool{"user": true, "assistant": true}

// ChatRouter handles the conversational assistant.
type ChatRouter struct {
	client *cinerag.Client
	logger *slog.Logger
}

// NewChatRouter creates a new ChatRouter.
func NewChatRouter(client *cinerag.Client) *ChatRouter {
	return &ChatRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for chat endpoints.
func (r *ChatRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Ask)

	return router
}

// Ask handles POST /api/v1/chat.
func (r *ChatRouter) Ask(w http.ResponseWriter, req *http.Request) {
	if r.client.Chat == nil {
		middleware.WriteError(w, req, middleware.NewServerError(http.StatusServiceUnavailable, "chat is not configured"), r.logger)
		return
	}

	var body dto.ChatRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.BadRequest("invalid request body", err), r.logger)
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		middleware.WriteError(w, req, middleware.BadRequest("message is required", search.ErrEmptyInput), r.logger)
		return
	}
	if body.UserID != "" {
		if err := uuid.Validate(body.UserID); err != nil {
			middleware.WriteError(w, req, middleware.BadRequest("invalid user_id", err), r.logger)
			return
		}
	}

	history := make([]provider.Message, 0, len(body.History))
	for _, m := range body.History {
		if !chatRoles[m.Role] {
			middleware.WriteError(w, req, middleware.BadRequest("history role must be user or assistant", nil), r.logger)
			return
		}
		history = append(history, provider.NewMessage(m.Role, m.Content))
	}

	resp, err := r.client.Chat.Ask(req.Context(), service.ChatRequest{
		UserID:  body.UserID,
		Message: body.Message,
		History: history,
	})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.ChatResponse{
		Reply:  resp.Reply(),
		Mood:   resp.Mood(),
		Movies: movieList(resp.Candidates()),
	})
}
