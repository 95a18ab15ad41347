// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8080
	DefaultLogLevel              = "INFO"
	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 5
	DefaultEndpointInitialDelay  = 2 * time.Second
	DefaultEndpointBackoffFactor = 2.0
	DefaultEndpointMaxTokens     = 800
	DefaultEmbeddingModel        = "text-embedding-3-small"
	DefaultChatModel             = "gpt-4o-mini"
	DefaultEmbeddingDimensions   = 1536
	DefaultEmbeddingBatchSize    = 100
	DefaultEmbeddingBatchDelay   = 100 * time.Millisecond
	DefaultMinRating             = 7
	DefaultPeriodicIndexInterval = 3600.0
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// CacheBackend selects the similarity cache implementation.
type CacheBackend string

// CacheBackend values.
const (
	CacheBackendMemory CacheBackend = "memory"
	CacheBackendRedis  CacheBackend = "redis"
)

// CacheConfig configures the similarity cache.
type CacheConfig struct {
	redisURL string
	coalesce bool
}

// NewCacheConfig creates a new CacheConfig with defaults.
func NewCacheConfig() CacheConfig {
	return CacheConfig{coalesce: true}
}

// RedisURL returns the Redis connection URL, empty for the in-process cache.
func (c CacheConfig) RedisURL() string { return c.redisURL }

// Coalesce returns whether identical concurrent misses share one computation.
func (c CacheConfig) Coalesce() bool { return c.coalesce }

// Backend returns the cache backend implied by the configuration.
func (c CacheConfig) Backend() CacheBackend {
	if c.redisURL != "" {
		return CacheBackendRedis
	}
	return CacheBackendMemory
}

// WithRedisURL returns a new config with the specified Redis URL.
func (c CacheConfig) WithRedisURL(url string) CacheConfig {
	c.redisURL = url
	return c
}

// WithCoalesce returns a new config with the specified coalescing state.
func (c CacheConfig) WithCoalesce(enabled bool) CacheConfig {
	c.coalesce = enabled
	return c
}

// PeriodicIndexConfig configures background embedding of new catalog items.
type PeriodicIndexConfig struct {
	enabled         bool
	intervalSeconds float64
}

// NewPeriodicIndexConfig creates a new PeriodicIndexConfig with defaults.
// Periodic indexing is off unless enabled.
func NewPeriodicIndexConfig() PeriodicIndexConfig {
	return PeriodicIndexConfig{intervalSeconds: DefaultPeriodicIndexInterval}
}

// Enabled returns whether periodic indexing is enabled.
func (p PeriodicIndexConfig) Enabled() bool { return p.enabled }

// Interval returns the indexing interval as a duration.
func (p PeriodicIndexConfig) Interval() time.Duration {
	return time.Duration(p.intervalSeconds * float64(time.Second))
}

// WithEnabled returns a new config with the specified enabled state.
func (p PeriodicIndexConfig) WithEnabled(enabled bool) PeriodicIndexConfig {
	p.enabled = enabled
	return p
}

// WithIntervalSeconds returns a new config with the specified interval.
// Non-positive values keep the current interval.
func (p PeriodicIndexConfig) WithIntervalSeconds(seconds float64) PeriodicIndexConfig {
	if seconds > 0 {
		p.intervalSeconds = seconds
	}
	return p
}

// Endpoint configures an AI service endpoint.
type Endpoint struct {
	baseURL       string
	model         string
	apiKey        string
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
	maxTokens     int
	dimensions    int
	batchSize     int
	batchDelay    time.Duration
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		timeout:       DefaultEndpointTimeout,
		maxRetries:    DefaultEndpointMaxRetries,
		initialDelay:  DefaultEndpointInitialDelay,
		backoffFactor: DefaultEndpointBackoffFactor,
		maxTokens:     DefaultEndpointMaxTokens,
		dimensions:    DefaultEmbeddingDimensions,
		batchSize:     DefaultEmbeddingBatchSize,
		batchDelay:    DefaultEmbeddingBatchDelay,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// MaxTokens returns the maximum completion token limit.
func (e Endpoint) MaxTokens() int { return e.maxTokens }

// Dimensions returns the embedding dimensionality.
func (e Endpoint) Dimensions() int { return e.dimensions }

// BatchSize returns the number of texts per embedding request.
func (e Endpoint) BatchSize() int { return e.batchSize }

// BatchDelay returns the pause between embedding requests.
func (e Endpoint) BatchDelay() time.Duration { return e.batchDelay }

// IsConfigured returns true if the endpoint has an API key or base URL.
func (e Endpoint) IsConfigured() bool {
	return e.apiKey != "" || e.baseURL != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// WithMaxTokens sets the maximum completion token limit.
func WithMaxTokens(n int) EndpointOption {
	return func(e *Endpoint) { e.maxTokens = n }
}

// WithDimensions sets the embedding dimensionality.
func WithDimensions(n int) EndpointOption {
	return func(e *Endpoint) {
		if n > 0 {
			e.dimensions = n
		}
	}
}

// WithBatchSize sets the number of texts per embedding request.
func WithBatchSize(n int) EndpointOption {
	return func(e *Endpoint) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause between embedding requests.
func WithBatchDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) {
		if d >= 0 {
			e.batchDelay = d
		}
	}
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host              string
	port              int
	dataDir           string
	dbURL             string
	logLevel          string
	logFormat         LogFormat
	embeddingEndpoint *Endpoint
	chatEndpoint      *Endpoint
	cache             CacheConfig
	moodTablePath     string
	corsOrigins       []string
	apiKeys           []string
	periodicIndex     PeriodicIndexConfig
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cinerag"
	}
	return filepath.Join(home, ".cinerag")
}

// DefaultLogger returns the default slog logger for library consumers.
func DefaultLogger() *slog.Logger {
	return slog.Default()
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:          DefaultHost,
		port:          DefaultPort,
		dataDir:       dataDir,
		dbURL:         "sqlite:///" + filepath.Join(dataDir, "cinerag.db"),
		logLevel:      DefaultLogLevel,
		logFormat:     LogFormatPretty,
		cache:         NewCacheConfig(),
		corsOrigins:   []string{"*"},
		periodicIndex: NewPeriodicIndexConfig(),
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// EmbeddingEndpoint returns the embedding endpoint config.
func (c AppConfig) EmbeddingEndpoint() *Endpoint { return c.embeddingEndpoint }

// ChatEndpoint returns the chat completion endpoint config.
func (c AppConfig) ChatEndpoint() *Endpoint { return c.chatEndpoint }

// Cache returns the similarity cache config.
func (c AppConfig) Cache() CacheConfig { return c.cache }

// MoodTablePath returns the path of a YAML mood table, empty for the built-in one.
func (c AppConfig) MoodTablePath() string { return c.moodTablePath }

// CORSOrigins returns the allowed CORS origins.
func (c AppConfig) CORSOrigins() []string {
	origins := make([]string, len(c.corsOrigins))
	copy(origins, c.corsOrigins)
	return origins
}

// APIKeys returns the keys accepted for write requests. Empty disables the check.
func (c AppConfig) APIKeys() []string {
	keys := make([]string, len(c.apiKeys))
	copy(keys, c.apiKeys)
	return keys
}


// PeriodicIndex returns the periodic indexing configuration.
func (c AppConfig) PeriodicIndex() PeriodicIndexConfig { return c.periodicIndex }

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		// Update default DB URL when data dir changes
		if c.dbURL == "" || strings.Contains(c.dbURL, "cinerag.db") {
			c.dbURL = "sqlite:///" + filepath.Join(dir, "cinerag.db")
		}
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithEmbeddingEndpoint sets the embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = &e }
}

// WithChatEndpoint sets the chat completion endpoint.
func WithChatEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.chatEndpoint = &e }
}

// WithCacheConfig sets the similarity cache config.
func WithCacheConfig(cc CacheConfig) AppConfigOption {
	return func(c *AppConfig) { c.cache = cc }
}

// WithMoodTablePath sets the YAML mood table path.
func WithMoodTablePath(path string) AppConfigOption {
	return func(c *AppConfig) { c.moodTablePath = path }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) {
		c.corsOrigins = make([]string, len(origins))
		copy(c.corsOrigins, origins)
	}
}

// WithAPIKeys sets the keys accepted for write requests.
func WithAPIKeys(keys []string) AppConfigOption {
	return func(c *AppConfig) {
		c.apiKeys = make([]string, len(keys))
		copy(c.apiKeys, keys)
	}
}

// WithPeriodicIndexConfig sets the periodic indexing configuration.
func WithPeriodicIndexConfig(p PeriodicIndexConfig) AppConfigOption {
	return func(c *AppConfig) {
		c.periodicIndex = p
	}
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Secrets are masked.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("cache_backend", string(c.cache.Backend())),
		slog.Bool("cache_coalesce", c.cache.Coalesce()),
		slog.String("embedding_base_url", c.endpointBaseURL(c.embeddingEndpoint)),
		slog.String("embedding_model", c.endpointModel(c.embeddingEndpoint)),
		slog.String("chat_base_url", c.endpointBaseURL(c.chatEndpoint)),
		slog.String("chat_model", c.endpointModel(c.chatEndpoint)),
		slog.String("mood_table", c.moodTablePath),
		slog.Bool("periodic_index", c.periodicIndex.Enabled()),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if strings.HasPrefix(c.dbURL, "sqlite:") {
		return c.dbURL
	}
	return "postgres://***@***"
}

func (c AppConfig) endpointBaseURL(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	if e.BaseURL() == "" {
		return "(default)"
	}
	return e.BaseURL()
}

func (c AppConfig) endpointModel(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	return e.Model()
}

// ParseList parses a comma-separated string, dropping blanks.
func ParseList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
