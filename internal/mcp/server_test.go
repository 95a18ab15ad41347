package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/helixml/cinerag/application/service"
	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/mood"
	"github.com/helixml/cinerag/domain/search"
	"github.com/mark3labs/mcp-go/mcp"
)

const testUser = "5f0c3a9e-8a4b-4c6e-9d7f-2b1e0c4a6d88"

// fakeSearch implements MovieSearcher with canned results.
type fakeSearch struct {
	candidates []search.Candidate
	mood       string
	err        error

	lastQuery string
	lastMood  string
	lastLimit int
	lastSeeds []int64
}

func (f *fakeSearch) ByMood(_ context.Context, query, moodName string, limit int) (service.MoodResult, error) {
	f.lastQuery, f.lastMood, f.lastLimit = query, moodName, limit
	if f.err != nil {
		return service.MoodResult{}, f.err
	}
	return service.NewMoodResult(f.candidates, f.mood), nil
}

func (f *fakeSearch) SimilarTo(_ context.Context, itemID int64, limit int) ([]search.Candidate, error) {
	f.lastSeeds, f.lastLimit = []int64{itemID}, limit
	return f.candidates, f.err
}

func (f *fakeSearch) SimilarToMultiple(_ context.Context, itemIDs []int64, limit int) ([]search.Candidate, error) {
	f.lastSeeds, f.lastLimit = itemIDs, limit
	return f.candidates, f.err
}

// moodSearch also exposes a mood detector, as service.Search does.
type moodSearch struct {
	fakeSearch
}

func (*moodSearch) Moods() mood.Detector {
	return mood.NewDetector([]mood.Profile{
		mood.NewProfile("cosy", []string{"cosy"}, []string{"Family"}),
		mood.NewProfile("tense", []string{"tense"}, []string{"Thriller"}),
	})
}

// fakeRecommender implements Recommender and records which listing was used.
type fakeRecommender struct {
	candidates []search.Candidate
	called     string
	lastUser   string
}

func (f *fakeRecommender) Personalized(_ context.Context, userID string, _ int) ([]search.Candidate, error) {
	f.called, f.lastUser = ModePersonalized, userID
	return f.candidates, nil
}

func (f *fakeRecommender) Hybrid(_ context.Context, userID string, _ int) ([]search.Candidate, error) {
	f.called, f.lastUser = ModeHybrid, userID
	return f.candidates, nil
}

func (f *fakeRecommender) Popular(_ context.Context, _ int) ([]search.Candidate, error) {
	f.called = ModePopular
	return f.candidates, nil
}

// sendMessage marshals a JSON-RPC request, sends it through HandleMessage,
// and returns the JSONRPCResponse.
func sendMessage(t *testing.T, srv *Server, method string, id int, params map[string]any) mcp.JSONRPCResponse {
	t.Helper()

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	result := srv.MCPServer().HandleMessage(context.Background(), raw)

	resp, ok := result.(mcp.JSONRPCResponse)
	if !ok {
		t.Fatalf("expected JSONRPCResponse, got %T: %+v", result, result)
	}
	return resp
}

// resultJSON re-marshals the Result field through JSON into dst.
func resultJSON(t *testing.T, resp mcp.JSONRPCResponse, dst any) {
	t.Helper()
	b, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		t.Fatalf("unmarshal result into %T: %v", dst, err)
	}
}

// callTool initializes the server and calls the named tool.
func callTool(t *testing.T, srv *Server, name string, args map[string]any) mcp.CallToolResult {
	t.Helper()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/call", 2, map[string]any{
		"name":      name,
		"arguments": args,
	})

	var result mcp.CallToolResult
	resultJSON(t, resp, &result)
	return result
}

func testCandidates() []search.Candidate {
	alien := catalog.NewItem(348, "Alien",
		catalog.WithGenres("Horror", "Science Fiction"),
		catalog.WithPopularity(90),
	)
	heat := catalog.NewItem(949, "Heat", catalog.WithGenres("Crime"))
	return []search.Candidate{
		search.RestoreCandidate(alien, 0.91, 0.6, 1, 0.937),
		search.NewCandidate(heat, 0.42),
	}
}

func initializeParams() map[string]any {
	return map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "test-client",
			"version": "0.0.1",
		},
	}
}

type movieJSON struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Genres     []string `json:"genres"`
	Similarity float64  `json:"similarity"`
	MoodScore  float64  `json:"mood_score"`
	FusedScore float64  `json:"fused_score"`
}

func TestServer_Initialize(t *testing.T) {
	srv := NewServer(&fakeSearch{}, &fakeRecommender{}, "0.1.0-test", nil)
	resp := sendMessage(t, srv, "initialize", 1, initializeParams())

	var result mcp.InitializeResult
	resultJSON(t, resp, &result)

	if result.ServerInfo.Name != "cinerag" {
		t.Errorf("expected server name cinerag, got %s", result.ServerInfo.Name)
	}
	if result.ServerInfo.Version != "0.1.0-test" {
		t.Errorf("expected version 0.1.0-test, got %s", result.ServerInfo.Version)
	}
	if result.Capabilities.Tools == nil {
		t.Error("expected tools capability to be present")
	}
}

func TestServer_ListTools(t *testing.T) {
	srv := NewServer(&fakeSearch{}, &fakeRecommender{}, "test", nil)
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/list", 2, nil)

	var result mcp.ListToolsResult
	resultJSON(t, resp, &result)

	if len(result.Tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(result.Tools))
	}

	tools := map[string]mcp.Tool{}
	for _, tool := range result.Tools {
		tools[tool.Name] = tool
	}
	for _, name := range []string{"search_movies", "similar_movies", "recommend"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing tool: %s", name)
		}
	}

	searchTool := tools["search_movies"]
	for _, param := range []string{"query", "mood", "limit"} {
		if _, ok := searchTool.InputSchema.Properties[param]; !ok {
			t.Errorf("search_movies missing %s parameter", param)
		}
	}
	if !contains(searchTool.InputSchema.Required, "query") {
		t.Error("query should be required")
	}
	if !contains(tools["similar_movies"].InputSchema.Required, "item_ids") {
		t.Error("item_ids should be required")
	}
}

func TestServer_ListToolsMoodEnum(t *testing.T) {
	srv := NewServer(&moodSearch{}, &fakeRecommender{}, "test", nil)
	sendMessage(t, srv, "initialize", 1, initializeParams())

	var result mcp.ListToolsResult
	resultJSON(t, sendMessage(t, srv, "tools/list", 2, nil), &result)

	for _, tool := range result.Tools {
		if tool.Name != "search_movies" {
			continue
		}
		prop, ok := tool.InputSchema.Properties["mood"].(map[string]any)
		if !ok {
			t.Fatalf("mood property = %T", tool.InputSchema.Properties["mood"])
		}
		enum, _ := prop["enum"].([]any)
		if len(enum) != 2 || enum[0] != "cosy" || enum[1] != "tense" {
			t.Errorf("mood enum = %v, want [cosy tense]", prop["enum"])
		}
		return
	}
	t.Fatal("search_movies not listed")
}

func TestServer_SearchMovies(t *testing.T) {
	searcher := &fakeSearch{candidates: testCandidates(), mood: "scary"}
	srv := NewServer(searcher, &fakeRecommender{}, "test", nil)

	result := callTool(t, srv, "search_movies", map[string]any{
		"query": "something to keep me up at night",
		"limit": 5,
	})

	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}

	var out struct {
		Mood   string      `json:"mood"`
		Movies []movieJSON `json:"movies"`
	}
	if err := json.Unmarshal([]byte(textFromContent(t, result)), &out); err != nil {
		t.Fatalf("unmarshal search results: %v", err)
	}
	if out.Mood != "scary" {
		t.Errorf("expected mood scary, got %s", out.Mood)
	}
	if len(out.Movies) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(out.Movies))
	}
	if out.Movies[0].ID != 348 || out.Movies[0].Title != "Alien" {
		t.Errorf("expected Alien first, got %+v", out.Movies[0])
	}
	if out.Movies[0].MoodScore != 0.6 {
		t.Errorf("expected mood score 0.6, got %f", out.Movies[0].MoodScore)
	}
	if searcher.lastLimit != 5 {
		t.Errorf("expected limit 5, got %d", searcher.lastLimit)
	}
	if searcher.lastMood != "" {
		t.Errorf("expected no explicit mood, got %s", searcher.lastMood)
	}
}

func TestServer_SearchMoviesDefaults(t *testing.T) {
	searcher := &fakeSearch{}
	srv := NewServer(searcher, &fakeRecommender{}, "test", nil)

	result := callTool(t, srv, "search_movies", map[string]any{"query": "heist", "mood": "intense"})

	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}
	if searcher.lastLimit != service.DefaultLimit {
		t.Errorf("expected default limit %d, got %d", service.DefaultLimit, searcher.lastLimit)
	}
	if searcher.lastMood != "intense" {
		t.Errorf("expected mood intense, got %s", searcher.lastMood)
	}
}

func TestServer_SearchMoviesMissingQuery(t *testing.T) {
	srv := NewServer(&fakeSearch{}, &fakeRecommender{}, "test", nil)

	result := callTool(t, srv, "search_movies", map[string]any{})

	if !result.IsError {
		t.Fatal("expected error response")
	}
	if text := textFromContent(t, result); !strings.Contains(text, "query is required") {
		t.Errorf("expected error text containing 'query is required', got: %s", text)
	}
}

func TestServer_SearchMoviesFailure(t *testing.T) {
	srv := NewServer(&fakeSearch{err: service.ErrUnknownMood}, &fakeRecommender{}, "test", nil)

	result := callTool(t, srv, "search_movies", map[string]any{"query": "x", "mood": "sleepy"})

	if !result.IsError {
		t.Fatal("expected error response")
	}
	if text := textFromContent(t, result); !strings.Contains(text, "search failed") {
		t.Errorf("expected search failure text, got: %s", text)
	}
}

func TestServer_SimilarMovies(t *testing.T) {
	tests := []struct {
		name  string
		ids   []int
		seeds []int64
	}{
		{name: "single seed", ids: []int{348}, seeds: []int64{348}},
		{name: "multiple seeds", ids: []int{348, 949}, seeds: []int64{348, 949}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearch{candidates: testCandidates()}
			srv := NewServer(searcher, &fakeRecommender{}, "test", nil)

			result := callTool(t, srv, "similar_movies", map[string]any{"item_ids": tt.ids, "limit": 3})

			if result.IsError {
				t.Fatalf("expected success, got error: %s", textFromContent(t, result))
			}
			var movies []movieJSON
			if err := json.Unmarshal([]byte(textFromContent(t, result)), &movies); err != nil {
				t.Fatalf("unmarshal results: %v", err)
			}
			if len(movies) != 2 {
				t.Errorf("expected 2 movies, got %d", len(movies))
			}
			if len(searcher.lastSeeds) != len(tt.seeds) {
				t.Fatalf("expected seeds %v, got %v", tt.seeds, searcher.lastSeeds)
			}
			for i := range tt.seeds {
				if searcher.lastSeeds[i] != tt.seeds[i] {
					t.Errorf("expected seeds %v, got %v", tt.seeds, searcher.lastSeeds)
				}
			}
		})
	}
}

func TestServer_SimilarMoviesMissingIDs(t *testing.T) {
	srv := NewServer(&fakeSearch{}, &fakeRecommender{}, "test", nil)

	result := callTool(t, srv, "similar_movies", map[string]any{"item_ids": []int{}})

	if !result.IsError {
		t.Fatal("expected error response")
	}
}

func TestServer_SimilarMoviesNotFound(t *testing.T) {
	srv := NewServer(&fakeSearch{err: errors.New("catalog item not found")}, &fakeRecommender{}, "test", nil)

	result := callTool(t, srv, "similar_movies", map[string]any{"item_ids": []int{7}})

	if !result.IsError {
		t.Fatal("expected error response")
	}
	if text := textFromContent(t, result); !strings.Contains(text, "not found") {
		t.Errorf("expected not found text, got: %s", text)
	}
}

func TestServer_Recommend(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "default is hybrid", args: map[string]any{"user_id": testUser}, want: ModeHybrid},
		{name: "personalized", args: map[string]any{"user_id": testUser, "mode": ModePersonalized}, want: ModePersonalized},
		{name: "popular needs no user", args: map[string]any{"mode": ModePopular}, want: ModePopular},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := &fakeRecommender{candidates: testCandidates()}
			srv := NewServer(&fakeSearch{}, recs, "test", nil)

			result := callTool(t, srv, "recommend", tt.args)

			if result.IsError {
				t.Fatalf("expected success, got error: %s", textFromContent(t, result))
			}
			if recs.called != tt.want {
				t.Errorf("expected %s listing, got %s", tt.want, recs.called)
			}
		})
	}
}

func TestServer_RecommendInvalidUser(t *testing.T) {
	recs := &fakeRecommender{}
	srv := NewServer(&fakeSearch{}, recs, "test", nil)

	result := callTool(t, srv, "recommend", map[string]any{"user_id": "not-a-uuid", "mode": ModeHybrid})

	if !result.IsError {
		t.Fatal("expected error response")
	}
	if text := textFromContent(t, result); !strings.Contains(text, "user_id must be a UUID") {
		t.Errorf("unexpected error text: %s", text)
	}
	if recs.called != "" {
		t.Errorf("expected no listing call, got %s", recs.called)
	}
}

// textFromContent extracts the text string from the first content item
// of a CallToolResult. It round-trips through JSON because in-process
// responses may hold the content as a map rather than a typed struct.
func textFromContent(t *testing.T, result mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	b, err := json.Marshal(result.Content[0])
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	var tc struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &tc); err != nil {
		t.Fatalf("unmarshal text content: %v", err)
	}
	return tc.Text
}

func contains(items []string, target string) bool {
	for _, s := range items {
		if s == target {
			return true
		}
	}
	return false
}
