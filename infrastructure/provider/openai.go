package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/helixml/cinerag/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// errEmbeddingCountMismatch marks a partial embedding response. Upstream
// load can produce these behind a 200 status, so they are retried.
var errEmbeddingCountMismatch = errors.New("embedding response count mismatch")

// errEmptyEmbeddingResponse marks a 200 response with no data, no model and
// no usage, which routing gateways return when every backend failed.
var errEmptyEmbeddingResponse = errors.New("empty embedding response")

// OpenAIProvider implements text generation and embedding against an
// OpenAI-compatible API.
type OpenAIProvider struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	dimensions     int
	maxRetries     int
	initialDelay   time.Duration
	backoffFactor  float64
	logger         *slog.Logger
}

// OpenAIConfig holds configuration for an OpenAI provider.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Dimensions     int
	Timeout        time.Duration
	MaxRetries     int
	InitialDelay   time.Duration
	BackoffFactor  float64
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// EmbeddingConfig builds provider configuration from the embedding endpoint.
func EmbeddingConfig(e *config.Endpoint) OpenAIConfig {
	if e == nil {
		return OpenAIConfig{}
	}
	cfg := endpointConfig(e)
	cfg.EmbeddingModel = e.Model()
	cfg.Dimensions = e.Dimensions()
	return cfg
}

// ChatConfig builds provider configuration from the chat endpoint.
func ChatConfig(e *config.Endpoint) OpenAIConfig {
	if e == nil {
		return OpenAIConfig{}
	}
	cfg := endpointConfig(e)
	cfg.ChatModel = e.Model()
	return cfg
}

func endpointConfig(e *config.Endpoint) OpenAIConfig {
	return OpenAIConfig{
		APIKey:        e.APIKey(),
		BaseURL:       e.BaseURL(),
		Timeout:       e.Timeout(),
		MaxRetries:    e.MaxRetries(),
		InitialDelay:  e.InitialDelay(),
		BackoffFactor: e.BackoffFactor(),
	}
}

// NewOpenAIProvider creates a provider from configuration. Zero values fall
// back to the configured defaults.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	switch {
	case cfg.HTTPClient != nil:
		clientConfig.HTTPClient = cfg.HTTPClient
	case cfg.Timeout > 0:
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	p := &OpenAIProvider{
		client:         openai.NewClientWithConfig(clientConfig),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     cfg.Dimensions,
		maxRetries:     cfg.MaxRetries,
		initialDelay:   cfg.InitialDelay,
		backoffFactor:  cfg.BackoffFactor,
		logger:         cfg.Logger,
	}
	if p.chatModel == "" {
		p.chatModel = config.DefaultChatModel
	}
	if p.embeddingModel == "" {
		p.embeddingModel = config.DefaultEmbeddingModel
	}
	if p.maxRetries < 0 {
		p.maxRetries = 0
	}
	if p.initialDelay <= 0 {
		p.initialDelay = config.DefaultEndpointInitialDelay
	}
	if p.backoffFactor < 1 {
		p.backoffFactor = config.DefaultEndpointBackoffFactor
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// ChatCompletion generates a chat completion.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages()))
	for i, m := range req.Messages() {
		messages[i] = openai.ChatCompletionMessage{
			Role:    m.Role(),
			Content: m.Content(),
		}
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:    p.chatModel,
		Messages: messages,
	}
	if req.MaxTokens() > 0 {
		openaiReq.MaxTokens = req.MaxTokens()
	}
	if req.Temperature() > 0 {
		openaiReq.Temperature = float32(req.Temperature())
	}

	var resp openai.ChatCompletionResponse
	err := p.withRetry(ctx, "chat_completion", func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, openaiReq)
		return callErr
	})
	if err != nil {
		return ChatCompletionResponse{}, p.wrapError("chat_completion", err)
	}

	if len(resp.Choices) == 0 {
		return ChatCompletionResponse{}, NewProviderError(
			"chat_completion", http.StatusBadGateway, "no choices in response", nil,
		)
	}

	usage := NewUsage(
		resp.Usage.PromptTokens,
		resp.Usage.CompletionTokens,
		resp.Usage.TotalTokens,
	)
	return NewChatCompletionResponse(
		resp.Choices[0].Message.Content,
		string(resp.Choices[0].FinishReason),
		usage,
	), nil
}

// Embed generates embeddings for the given texts in a single API call.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	openaiReq := openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(p.embeddingModel),
		Input:      texts,
		Dimensions: p.dimensions,
	}

	var resp openai.EmbeddingResponse
	err := p.withRetry(ctx, "embedding", func() error {
		var callErr error
		resp, callErr = p.client.CreateEmbeddings(ctx, openaiReq)
		if callErr != nil {
			return callErr
		}
		if len(resp.Data) == 0 && string(resp.Model) == "" && resp.Usage.TotalTokens == 0 {
			return errEmptyEmbeddingResponse
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts", errEmbeddingCountMismatch, len(resp.Data), len(texts))
		}
		return nil
	})
	if err != nil {
		return nil, p.wrapError("embedding", err)
	}

	embeddings := make([][]float64, len(texts))
	for i, data := range resp.Data {
		idx := data.Index
		if idx < 0 || idx >= len(texts) {
			idx = i
		}
		vec := make([]float64, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float64(v)
		}
		embeddings[idx] = vec
	}
	return embeddings, nil
}

// withRetry executes fn with exponential backoff while the error is retryable.
func (p *OpenAIProvider) withRetry(ctx context.Context, operation string, fn func() error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !p.isRetryable(lastErr) {
			return lastErr
		}

		if attempt < p.maxRetries {
			p.logger.WarnContext(ctx, "provider call failed, retrying",
				slog.String("operation", operation),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
				delay = time.Duration(float64(delay) * p.backoffFactor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (p *OpenAIProvider) isRetryable(err error) bool {
	if errors.Is(err, errEmbeddingCountMismatch) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || retryableStatus(reqErr.HTTPStatusCode)
	}

	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// wrapError converts a client error into a ProviderError. Context
// cancellation passes through unchanged.
func (p *OpenAIProvider) wrapError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var netErr net.Error
		if !errors.As(err, &netErr) {
			return err
		}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	if errors.Is(err, errEmptyEmbeddingResponse) {
		return NewProviderError(operation, http.StatusBadGateway, "provider returned no embedding data", err)
	}

	return NewProviderError(operation, 0, err.Error(), err)
}

var (
	_ TextGenerator = (*OpenAIProvider)(nil)
	_ Embedder      = (*OpenAIProvider)(nil)
)
