package cinerag

import (
	"io"
	"log/slog"
	"time"

	"github.com/helixml/cinerag/domain/cache"
	"github.com/helixml/cinerag/domain/mood"
	"github.com/helixml/cinerag/domain/search"
	domainservice "github.com/helixml/cinerag/domain/service"
	"github.com/helixml/cinerag/infrastructure/provider"
	"github.com/helixml/cinerag/internal/config"
	"github.com/helixml/cinerag/internal/metrics"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	dbURL             string
	textProvider      provider.TextGenerator
	embeddingProvider provider.Embedder
	dimensions        int
	batchSize         int
	batchDelay        time.Duration
	redisURL          string
	cacheStore        cache.Store
	coalesce          bool
	moodTable         []mood.Profile
	moodTablePath     string
	metrics           *metrics.Metrics
	breakerThreshold  uint32
	breakerTimeout    time.Duration
	periodicIndex     config.PeriodicIndexConfig
	logger            *slog.Logger
	closers           []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
func newClientConfig() *clientConfig {
	return &clientConfig{
		dimensions:    search.Dimensions,
		batchSize:     domainservice.DefaultBatchSize,
		batchDelay:    domainservice.DefaultBatchDelay,
		coalesce:      true,
		periodicIndex: config.NewPeriodicIndexConfig(),
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite configures a SQLite database file.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.dbURL = "sqlite:///" + path
	}
}

// WithPostgres configures a PostgreSQL database.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.dbURL = dsn
	}
}

// WithDatabaseURL configures the database from a sqlite:/// or postgres:// URL.
func WithDatabaseURL(url string) Option {
	return func(c *clientConfig) {
		c.dbURL = url
	}
}

// WithOpenAI sets OpenAI as the provider for both embeddings and chat.
func WithOpenAI(apiKey string) Option {
	return WithOpenAIConfig(provider.OpenAIConfig{APIKey: apiKey})
}

// WithOpenAIConfig sets an OpenAI-compatible provider with custom configuration.
func WithOpenAIConfig(cfg provider.OpenAIConfig) Option {
	return func(c *clientConfig) {
		p := provider.NewOpenAIProvider(cfg)
		c.textProvider = p
		c.embeddingProvider = p
		if cfg.Dimensions > 0 {
			c.dimensions = cfg.Dimensions
		}
	}
}

// WithEmbeddingProvider sets a custom embedding provider.
func WithEmbeddingProvider(p provider.Embedder) Option {
	return func(c *clientConfig) {
		c.embeddingProvider = p
	}
}

// WithTextProvider sets a custom chat completion provider.
// Without one, Client.Chat is nil.
func WithTextProvider(p provider.TextGenerator) Option {
	return func(c *clientConfig) {
		c.textProvider = p
	}
}

// WithDimensions sets the expected embedding length. Defaults to 1536.
func WithDimensions(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.dimensions = n
		}
	}
}

// WithEmbeddingBatch sets the batch size and inter-batch delay used when
// embedding the catalog.
func WithEmbeddingBatch(size int, delay time.Duration) Option {
	return func(c *clientConfig) {
		if size > 0 {
			c.batchSize = size
		}
		if delay >= 0 {
			c.batchDelay = delay
		}
	}
}

// WithRedis stores cached results in Redis instead of process memory.
func WithRedis(url string) Option {
	return func(c *clientConfig) {
		c.redisURL = url
	}
}

// WithCacheStore sets a custom cache store. It takes precedence over WithRedis.
func WithCacheStore(s cache.Store) Option {
	return func(c *clientConfig) {
		c.cacheStore = s
	}
}

// WithCoalescing toggles sharing one computation between identical
// concurrent cache misses. Enabled by default.
func WithCoalescing(enabled bool) Option {
	return func(c *clientConfig) {
		c.coalesce = enabled
	}
}

// WithMoodTable replaces the built-in mood table.
func WithMoodTable(table []mood.Profile) Option {
	return func(c *clientConfig) {
		c.moodTable = table
	}
}

// WithMoodTablePath loads the mood table from a YAML file.
func WithMoodTablePath(path string) Option {
	return func(c *clientConfig) {
		c.moodTablePath = path
	}
}

// WithMetrics records cache and circuit breaker metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *clientConfig) {
		c.metrics = m
	}
}

// WithCircuitBreaker sets how many consecutive provider failures open the
// circuit and how long it stays open.
func WithCircuitBreaker(threshold uint32, openTimeout time.Duration) Option {
	return func(c *clientConfig) {
		c.breakerThreshold = threshold
		c.breakerTimeout = openTimeout
	}
}

// WithPeriodicIndexConfig sets the periodic indexing configuration.
func WithPeriodicIndexConfig(cfg config.PeriodicIndexConfig) Option {
	return func(c *clientConfig) {
		c.periodicIndex = cfg
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(closer io.Closer) Option {
	return func(c *clientConfig) {
		c.closers = append(c.closers, closer)
	}
}
