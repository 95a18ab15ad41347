package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/helixml/cinerag"
	apimiddleware "github.com/helixml/cinerag/infrastructure/api/middleware"
	v1 "github.com/helixml/cinerag/infrastructure/api/v1"
	mcpinternal "github.com/helixml/cinerag/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// APIServerOption configures an APIServer.
type APIServerOption func(*APIServer)

// WithAPIKeys requires one of the given keys on write requests under /api/v1/users.
func WithAPIKeys(keys []string) APIServerOption {
	return func(a *APIServer) { a.apiKeys = keys }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) APIServerOption {
	return func(a *APIServer) { a.corsOrigins = origins }
}

// WithVersion sets the version reported by the MCP endpoint.
func WithVersion(version string) APIServerOption {
	return func(a *APIServer) { a.version = version }
}

// APIServer provides an HTTP API backed by a cinerag Client.
type APIServer struct {
	client      *cinerag.Client
	apiKeys     []string
	corsOrigins []string
	version     string
	mu          sync.Mutex
	server      *Server
	router      chi.Router
	mounted     bool
	logger      *slog.Logger
}

// NewAPIServer creates a new APIServer wired to the given cinerag Client.
func NewAPIServer(client *cinerag.Client, opts ...APIServerOption) *APIServer {
	a := &APIServer{
		client:      client,
		corsOrigins: []string{"*"},
		version:     "dev",
		logger:      client.Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call MountRoutes().
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = chi.NewRouter()
	a.router.Use(apimiddleware.CorrelationID)
	a.router.Use(apimiddleware.Logging(a.logger))
	a.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-KEY", apimiddleware.CorrelationIDHeader, "Mcp-Session-Id"},
		ExposedHeaders: []string{apimiddleware.CorrelationIDHeader, "Mcp-Session-Id"},
		MaxAge:         300,
	}))
	return a.router
}

// MountRoutes wires up the health, metrics, v1 and MCP routes.
func (a *APIServer) MountRoutes() {
	if a.mounted {
		return
	}
	a.mounted = true
	a.mountRoutes(a.Router())
}

func (a *APIServer) mountRoutes(router chi.Router) {
	c := a.client

	router.Get("/healthz", a.health)
	router.Handle("/metrics", c.Metrics().Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))

		r.Mount("/search", v1.NewSearchRouter(c).Routes())
		r.Mount("/items", v1.NewItemsRouter(c).Routes())
		r.Mount("/recommendations", v1.NewRecommendationsRouter(c).Routes())
		r.Mount("/chat", v1.NewChatRouter(c).Routes())

		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.WriteProtectAuth(a.apiKeys))
			r.Mount("/users", v1.NewUsersRouter(c).Routes())
		})
	})

	// MCP manages its own streaming and session headers, so it sits outside
	// the timeout group.
	mcpSrv := mcpinternal.NewServer(c.Search, c.Recommendations, a.version, a.logger)
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
}

func (a *APIServer) health(w http.ResponseWriter, r *http.Request) {
	if err := a.client.Ping(r.Context()); err != nil {
		apimiddleware.WriteError(w, r, apimiddleware.NewServerError(http.StatusServiceUnavailable, "database unavailable"), a.logger)
		return
	}
	apimiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	srv := NewServer(addr, a.logger)
	srv.Router().Mount("/", a.Handler())

	a.mu.Lock()
	a.server = srv
	a.mu.Unlock()

	return srv.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom servers.
func (a *APIServer) Handler() http.Handler {
	a.MountRoutes()
	return a.router
}
