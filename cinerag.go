// Package cinerag provides movie retrieval and recommendation over a catalog
// of embedded items.
//
// Items are embedded through an OpenAI-compatible provider and stored in
// SQLite or PostgreSQL. Retrieval is a cosine scan over the stored
// embeddings; ranked results are cached in memory or Redis.
//
// Basic usage:
//
//	client, err := cinerag.New(
//	    cinerag.WithSQLite(".cinerag/cinerag.db"),
//	    cinerag.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Free-text search
//	movies, err := client.Search.ByText(ctx, "space horror with an android", 10)
//
//	// Rate a movie and get recommendations
//	err = client.Profiles.Rate(ctx, userID, 348, 9)
//	recs, err := client.Recommendations.Hybrid(ctx, userID, 10)
package cinerag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/helixml/cinerag/application/service"
	"github.com/helixml/cinerag/domain/cache"
	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/mood"
	domainservice "github.com/helixml/cinerag/domain/service"
	cacheinfra "github.com/helixml/cinerag/infrastructure/cache"
	"github.com/helixml/cinerag/infrastructure/moods"
	"github.com/helixml/cinerag/infrastructure/persistence"
	"github.com/helixml/cinerag/infrastructure/provider"
	searchinfra "github.com/helixml/cinerag/infrastructure/search"
	"github.com/helixml/cinerag/internal/config"
	"github.com/helixml/cinerag/internal/database"
	"github.com/helixml/cinerag/internal/metrics"
)

// Client is the main entry point for the cinerag library.
//
// Access operations via struct fields:
//
//	client.Search.ByText(ctx, "heist thriller", 10)
//	client.Recommendations.Personalized(ctx, userID, 10)
//	client.Indexing.EmbedMissing(ctx, 100)
type Client struct {
	Search          *service.Search
	Recommendations *service.Recommendations
	Profiles        *service.Profiles
	Indexing        *service.Indexing
	// Chat is nil when no text provider is configured.
	Chat *service.Chat
	// Catalog gives direct access to catalog items.
	Catalog catalog.Store

	db            database.Database
	results       *cacheinfra.ResultCache
	metrics       *metrics.Metrics
	periodicIndex *service.PeriodicIndex
	closers       []io.Closer

	logger *slog.Logger
	closed atomic.Bool
	mu     sync.Mutex
}

// New creates a new Client with the given options.
// Periodic indexing starts automatically when enabled.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.dbURL == "" {
		return nil, ErrNoDatabase
	}
	if cfg.embeddingProvider == nil {
		return nil, ErrNoEmbeddingProvider
	}

	logger := cfg.logger
	if logger == nil {
		logger = config.DefaultLogger()
	}
	m := cfg.metrics
	if m == nil {
		m = metrics.New()
	}

	table, err := moodTable(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	db, err := database.NewDatabase(ctx, cfg.dbURL, database.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	store, closers, err := cacheStore(ctx, cfg)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("cache store: %w", err), errClose)
	}
	closers = append(closers, cfg.closers...)

	results := cacheinfra.NewResultCache(store,
		cacheinfra.WithMetrics(m),
		cacheinfra.WithLogger(logger),
		cacheinfra.WithCoalescing(cfg.coalesce),
	)

	breakerOpts := []provider.BreakerOption{
		provider.WithFailureThreshold(cfg.breakerThreshold),
		provider.WithOpenTimeout(cfg.breakerTimeout),
		provider.WithBreakerMetrics(m),
		provider.WithBreakerLogger(logger),
	}
	embeddings, err := domainservice.NewEmbedding(
		provider.NewBreakerEmbedder(cfg.embeddingProvider, breakerOpts...),
		domainservice.WithDimensions(cfg.dimensions),
		domainservice.WithBatchSize(cfg.batchSize),
		domainservice.WithBatchDelay(cfg.batchDelay),
	)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("create embedding service: %w", err), errClose)
	}

	catalogStore := persistence.NewCatalogStore(db)
	ratingStore := persistence.NewRatingStore(db)
	profileStore := persistence.NewProfileStore(db)
	vectors := searchinfra.NewCatalogVectorStore(catalogStore, profileStore, ratingStore,
		searchinfra.WithDimensions(cfg.dimensions),
		searchinfra.WithLogger(logger),
	)

	client := &Client{
		Catalog: catalogStore,
		db:      db,
		results: results,
		metrics: m,
		closers: closers,
		logger:  logger,
	}

	client.Search = service.NewSearch(embeddings, vectors, catalogStore, results, mood.NewDetector(table), &client.closed, logger)
	client.Recommendations = service.NewRecommendations(vectors, catalogStore, results, &client.closed, logger)
	client.Profiles = service.NewProfiles(profileStore, ratingStore, catalogStore, results, &client.closed, logger)
	client.Indexing = service.NewIndexing(embeddings, catalogStore, results, &client.closed, logger)
	if cfg.textProvider != nil {
		generator := provider.NewBreakerGenerator(cfg.textProvider, breakerOpts...)
		client.Chat = service.NewChat(client.Search, client.Profiles, generator, &client.closed, logger)
	}

	client.periodicIndex = service.NewPeriodicIndex(cfg.periodicIndex, client.Indexing, logger)
	client.periodicIndex.Start(ctx)

	return client, nil
}

// Close releases all resources and stops periodic indexing.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.periodicIndex.Stop()

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("cinerag client closed")
	return nil
}

// Metrics returns the client's metrics registry.
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Ping checks the database connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.db.Ping(ctx)
}

func moodTable(cfg *clientConfig) ([]mood.Profile, error) {
	if len(cfg.moodTable) > 0 {
		return cfg.moodTable, nil
	}
	table, err := moods.Load(cfg.moodTablePath)
	if err != nil {
		return nil, fmt.Errorf("load mood table: %w", err)
	}
	return table, nil
}

// cacheStore picks the result cache backend. The returned closers belong to
// the client.
func cacheStore(ctx context.Context, cfg *clientConfig) (cache.Store, []io.Closer, error) {
	switch {
	case cfg.cacheStore != nil:
		return cfg.cacheStore, nil, nil
	case cfg.redisURL != "":
		s, err := cacheinfra.OpenRedisStore(ctx, cfg.redisURL)
		if err != nil {
			return nil, nil, err
		}
		return s, []io.Closer{s}, nil
	default:
		s := cacheinfra.NewMemoryStore()
		return s, []io.Closer{s}, nil
	}
}
