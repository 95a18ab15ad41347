package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helixml/cinerag"
	"github.com/helixml/cinerag/infrastructure/provider"
	"github.com/helixml/cinerag/internal/config"
)

var errNoEmbeddingEndpoint = errors.New("embedding endpoint not configured: set EMBEDDING_ENDPOINT_API_KEY or EMBEDDING_ENDPOINT_BASE_URL")

// clientOptions returns the cinerag.Option slice derived from AppConfig:
// database, providers, cache, mood table and background indexing.
func clientOptions(cfg config.AppConfig, logger *slog.Logger) ([]cinerag.Option, error) {
	opts := []cinerag.Option{
		cinerag.WithDatabaseURL(cfg.DBURL()),
		cinerag.WithLogger(logger),
		cinerag.WithCoalescing(cfg.Cache().Coalesce()),
		cinerag.WithPeriodicIndexConfig(cfg.PeriodicIndex()),
	}

	embOpts, err := embeddingOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	opts = append(opts, embOpts...)
	opts = append(opts, textOptions(cfg, logger)...)

	if url := cfg.Cache().RedisURL(); url != "" {
		opts = append(opts, cinerag.WithRedis(url))
	}
	if path := cfg.MoodTablePath(); path != "" {
		opts = append(opts, cinerag.WithMoodTablePath(path))
	}

	return opts, nil
}

// embeddingOptions returns the embedding provider options. An embedding
// endpoint is required.
func embeddingOptions(cfg config.AppConfig, logger *slog.Logger) ([]cinerag.Option, error) {
	endpoint := cfg.EmbeddingEndpoint()
	if endpoint == nil || !endpoint.IsConfigured() {
		return nil, errNoEmbeddingEndpoint
	}

	openaiCfg := provider.EmbeddingConfig(endpoint)
	openaiCfg.Logger = logger

	return []cinerag.Option{
		cinerag.WithEmbeddingProvider(provider.NewOpenAIProvider(openaiCfg)),
		cinerag.WithDimensions(endpoint.Dimensions()),
		cinerag.WithEmbeddingBatch(endpoint.BatchSize(), endpoint.BatchDelay()),
	}, nil
}

// textOptions returns the chat provider option when the chat endpoint is
// configured, or an empty slice otherwise.
func textOptions(cfg config.AppConfig, logger *slog.Logger) []cinerag.Option {
	endpoint := cfg.ChatEndpoint()
	if endpoint == nil || !endpoint.IsConfigured() {
		return nil
	}

	openaiCfg := provider.ChatConfig(endpoint)
	openaiCfg.Logger = logger

	return []cinerag.Option{cinerag.WithTextProvider(provider.NewOpenAIProvider(openaiCfg))}
}

// isSQLite checks if the database URL is for SQLite.
func isSQLite(url string) bool {
	return strings.HasPrefix(url, "sqlite:")
}

// prepareDataDir creates the data directory when the database lives in it.
func prepareDataDir(cfg config.AppConfig) error {
	if !isSQLite(cfg.DBURL()) {
		return nil
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}
