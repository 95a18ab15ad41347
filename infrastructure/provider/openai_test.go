package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/helixml/cinerag/domain/search"
	"github.com/helixml/cinerag/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpenAI mimics the embeddings and chat completions endpoints. The first
// failures requests answer with failStatus; afterwards requests succeed.
type fakeOpenAI struct {
	requests   atomic.Int64
	failures   int64
	failStatus int

	mu       sync.Mutex
	lastBody map[string]any
}

func (f *fakeOpenAI) handler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := f.requests.Add(1)

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.lastBody = body
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if n <= f.failures {
			w.WriteHeader(f.failStatus)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "upstream failed", "type": "server_error"},
			})
			return
		}

		switch {
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			writeEmbeddings(w, body)
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"model":  body["model"],
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": "Try Alien."},
					"finish_reason": "stop",
				}},
				"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
			})
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeOpenAI) body() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

func writeEmbeddings(w http.ResponseWriter, body map[string]any) {
	var texts []string
	switch v := body["input"].(type) {
	case string:
		texts = []string{v}
	case []any:
		for _, item := range v {
			texts = append(texts, item.(string))
		}
	}

	data := make([]map[string]any, len(texts))
	for i, text := range texts {
		data[i] = map[string]any{
			"object":    "embedding",
			"index":     i,
			"embedding": []float64{float64(len(text)), 0.2, 0.3},
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  body["model"],
		"usage":  map[string]int{"prompt_tokens": len(texts), "total_tokens": len(texts)},
	})
}

func newFakeProvider(t *testing.T, fake *fakeOpenAI, retries int) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	return NewOpenAIProvider(OpenAIConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		EmbeddingModel: "test-embedding",
		ChatModel:      "test-chat",
		Dimensions:     3,
		MaxRetries:     retries,
		InitialDelay:   time.Millisecond,
	})
}

func TestOpenAIProvider_EmbedEmpty(t *testing.T) {
	fake := &fakeOpenAI{}
	p := newFakeProvider(t, fake, 0)

	got, err := p.Embed(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int64(0), fake.requests.Load(), "no HTTP request for empty input")
}

func TestOpenAIProvider_Embed(t *testing.T) {
	fake := &fakeOpenAI{}
	p := newFakeProvider(t, fake, 0)

	got, err := p.Embed(context.Background(), []string{"a", "bbb"})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 1.0, got[0][0], 1e-6)
	assert.InDelta(t, 3.0, got[1][0], 1e-6)
	assert.Equal(t, int64(1), fake.requests.Load())

	body := fake.body()
	assert.Equal(t, "test-embedding", body["model"])
	assert.EqualValues(t, 3, body["dimensions"])
}

func TestOpenAIProvider_EmbedRetriesServerErrors(t *testing.T) {
	fake := &fakeOpenAI{failures: 2, failStatus: http.StatusServiceUnavailable}
	p := newFakeProvider(t, fake, 3)

	got, err := p.Embed(context.Background(), []string{"hello"})

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int64(3), fake.requests.Load(), "two failures then success")
}

func TestOpenAIProvider_EmbedUnavailableAfterRetries(t *testing.T) {
	fake := &fakeOpenAI{failures: 100, failStatus: http.StatusBadGateway}
	p := newFakeProvider(t, fake, 1)

	_, err := p.Embed(context.Background(), []string{"hello"})

	require.Error(t, err)
	assert.ErrorIs(t, err, search.ErrUpstreamUnavailable)
	assert.Equal(t, int64(2), fake.requests.Load())

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "embedding", perr.Operation())
	assert.Equal(t, http.StatusBadGateway, perr.StatusCode())
}

func TestOpenAIProvider_EmbedClientErrorNotRetried(t *testing.T) {
	fake := &fakeOpenAI{failures: 100, failStatus: http.StatusBadRequest}
	p := newFakeProvider(t, fake, 3)

	_, err := p.Embed(context.Background(), []string{"hello"})

	require.Error(t, err)
	assert.NotErrorIs(t, err, search.ErrUpstreamUnavailable)
	assert.Equal(t, int64(1), fake.requests.Load())
}

func TestOpenAIProvider_EmbedCancelledContext(t *testing.T) {
	fake := &fakeOpenAI{}
	p := newFakeProvider(t, fake, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Embed(ctx, []string{"hello"})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), fake.requests.Load())
}

func TestOpenAIProvider_EmbedUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: url, InitialDelay: time.Millisecond})

	_, err := p.Embed(context.Background(), []string{"hello"})

	require.Error(t, err)
	assert.ErrorIs(t, err, search.ErrUpstreamUnavailable)
}

func TestOpenAIProvider_ChatCompletion(t *testing.T) {
	fake := &fakeOpenAI{}
	p := newFakeProvider(t, fake, 0)

	req := NewChatCompletionRequest([]Message{
		SystemMessage("You recommend movies."),
		UserMessage("Something scary"),
	}).WithMaxTokens(800).WithTemperature(0.7)

	resp, err := p.ChatCompletion(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "Try Alien.", resp.Content())
	assert.Equal(t, "stop", resp.FinishReason())
	assert.Equal(t, 15, resp.Usage().TotalTokens())

	body := fake.body()
	assert.Equal(t, "test-chat", body["model"])
	assert.EqualValues(t, 800, body["max_tokens"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-6)
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestEmbeddingConfig(t *testing.T) {
	e := config.NewEndpointWithOptions(
		config.WithBaseURL("http://localhost:1234/v1"),
		config.WithModel("nomic"),
		config.WithAPIKey("secret"),
		config.WithDimensions(768),
		config.WithMaxRetries(2),
	)

	cfg := EmbeddingConfig(&e)

	assert.Equal(t, "http://localhost:1234/v1", cfg.BaseURL)
	assert.Equal(t, "nomic", cfg.EmbeddingModel)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 768, cfg.Dimensions)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Empty(t, cfg.ChatModel)

	assert.Equal(t, OpenAIConfig{}, ChatConfig(nil))
}

func TestProviderError_Unavailable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		err := NewProviderError("embedding", tt.status, "failed", nil)
		assert.Equal(t, tt.want, err.Unavailable(), "status %d", tt.status)
		assert.Equal(t, tt.want, errors.Is(fmt.Errorf("wrapped: %w", err), search.ErrUpstreamUnavailable), "status %d", tt.status)
	}
}
