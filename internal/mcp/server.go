// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/helixml/cinerag/application/service"
	"github.com/helixml/cinerag/domain/mood"
	"github.com/helixml/cinerag/domain/search"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Recommendation modes accepted by the recommend tool.
const (
	ModePersonalized = "personalized"
	ModeHybrid       = "hybrid"
	ModePopular      = "popular"
)

// MovieSearcher provides retrieval operations for MCP tools.
type MovieSearcher interface {
	ByMood(ctx context.Context, query, moodName string, limit int) (service.MoodResult, error)
	SimilarTo(ctx context.Context, itemID int64, limit int) ([]search.Candidate, error)
	SimilarToMultiple(ctx context.Context, itemIDs []int64, limit int) ([]search.Candidate, error)
}

// Recommender provides recommendation listings for MCP tools.
type Recommender interface {
	Personalized(ctx context.Context, userID string, limit int) ([]search.Candidate, error)
	Hybrid(ctx context.Context, userID string, limit int) ([]search.Candidate, error)
	Popular(ctx context.Context, limit int) ([]search.Candidate, error)
}

// Server wraps the MCP server with movie tools.
type Server struct {
	mcpServer       *server.MCPServer
	searchService   MovieSearcher
	recommendations Recommender
	logger          *slog.Logger
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(searchService MovieSearcher, recommendations Recommender, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		searchService:   searchService,
		recommendations: recommendations,
		logger:          logger,
	}

	mcpServer := server.NewMCPServer(
		"cinerag",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

// moodOptions describes the mood parameter, listing the configured moods
// when the searcher exposes its detector.
func (s *Server) moodOptions() []mcp.PropertyOption {
	lister, ok := s.searchService.(interface{ Moods() mood.Detector })
	if !ok {
		return []mcp.PropertyOption{
			mcp.Description("Mood to re-rank by, e.g. dark or uplifting (default: detected from the query)"),
		}
	}
	table := lister.Moods().Table()
	names := make([]string, len(table))
	for i, p := range table {
		names[i] = p.Name()
	}
	return []mcp.PropertyOption{
		mcp.Description("Mood to re-rank by (default: detected from the query)"),
		mcp.Enum(names...),
	}
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	searchTool := mcp.NewTool("search_movies",
		mcp.WithDescription("Find movies matching a free-text description, re-ranked by the mood it expresses"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What the user wants to watch"),
		),
		mcp.WithString("mood", s.moodOptions()...),
		mcp.WithNumber("limit",
			mcp.Description("Number of results to return (default: 10)"),
		),
	)
	mcpServer.AddTool(searchTool, s.handleSearch)

	similarTool := mcp.NewTool("similar_movies",
		mcp.WithDescription("Find movies similar to one or more catalog items"),
		mcp.WithArray("item_ids",
			mcp.Required(),
			mcp.Description("Catalog ids of the seed movies"),
			mcp.Items(map[string]any{"type": "integer"}),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of results to return (default: 10)"),
		),
	)
	mcpServer.AddTool(similarTool, s.handleSimilar)

	recommendTool := mcp.NewTool("recommend",
		mcp.WithDescription("Recommend movies for a user from their ratings"),
		mcp.WithString("user_id",
			mcp.Description("UUID of the user; required unless mode is popular"),
		),
		mcp.WithString("mode",
			mcp.Description("personalized, hybrid or popular (default: hybrid)"),
			mcp.Enum(ModePersonalized, ModeHybrid, ModePopular),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of results to return (default: 10)"),
		),
	)
	mcpServer.AddTool(recommendTool, s.handleRecommend)
}

type movieResult struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Year       int      `json:"year,omitempty"`
	Genres     []string `json:"genres"`
	Similarity float64  `json:"similarity"`
	MoodScore  float64  `json:"mood_score,omitempty"`
	FusedScore float64  `json:"fused_score,omitempty"`
}

type searchResult struct {
	Mood   string        `json:"mood,omitempty"`
	Movies []movieResult `json:"movies"`
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := request.GetInt("limit", service.DefaultLimit)
	moodName := request.GetString("mood", "")

	result, err := s.searchService.ByMood(ctx, query, moodName, limit)
	if err != nil {
		s.logger.Error("movie search failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return jsonResult(searchResult{Mood: result.Mood(), Movies: movies(result.Candidates())})
}

func (s *Server) handleSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := request.GetIntSlice("item_ids", nil)
	if len(ids) == 0 {
		return mcp.NewToolResultError("item_ids is required"), nil
	}
	limit := request.GetInt("limit", service.DefaultLimit)

	var (
		cands []search.Candidate
		err   error
	)
	if len(ids) == 1 {
		cands, err = s.searchService.SimilarTo(ctx, int64(ids[0]), limit)
	} else {
		seeds := make([]int64, len(ids))
		for i, id := range ids {
			seeds[i] = int64(id)
		}
		cands, err = s.searchService.SimilarToMultiple(ctx, seeds, limit)
	}
	if err != nil {
		s.logger.Error("similar movies failed", slog.Any("item_ids", ids), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("similar movies failed: %v", err)), nil
	}

	return jsonResult(movies(cands))
}

func (s *Server) handleRecommend(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode := request.GetString("mode", ModeHybrid)
	limit := request.GetInt("limit", service.DefaultLimit)

	if mode == ModePopular {
		cands, err := s.recommendations.Popular(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("recommend failed: %v", err)), nil
		}
		return jsonResult(movies(cands))
	}

	userID := request.GetString("user_id", "")
	if err := uuid.Validate(userID); err != nil {
		return mcp.NewToolResultError("user_id must be a UUID"), nil
	}

	var (
		cands []search.Candidate
		err   error
	)
	switch mode {
	case ModePersonalized:
		cands, err = s.recommendations.Personalized(ctx, userID, limit)
	case ModeHybrid:
		cands, err = s.recommendations.Hybrid(ctx, userID, limit)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode: %s", mode)), nil
	}
	if err != nil {
		s.logger.Error("recommend failed", slog.String("user_id", userID), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("recommend failed: %v", err)), nil
	}

	return jsonResult(movies(cands))
}

func movies(cands []search.Candidate) []movieResult {
	out := make([]movieResult, len(cands))
	for i, c := range cands {
		it := c.Item()
		out[i] = movieResult{
			ID:         it.ID(),
			Title:      it.Title(),
			Genres:     it.Genres(),
			Similarity: c.Similarity(),
			MoodScore:  c.MoodScore(),
			FusedScore: c.FusedScore(),
		}
		if !it.ReleaseDate().IsZero() {
			out[i].Year = it.ReleaseDate().Year()
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MCPServer returns the underlying MCP server for stdio serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
