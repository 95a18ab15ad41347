package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., EMBEDDING_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.cinerag
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/cinerag.db
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// RedisURL points the similarity cache at Redis. Empty keeps it in-process.
	// Env: REDIS_URL
	RedisURL string `envconfig:"REDIS_URL"`

	// CacheCoalesce collapses identical concurrent cache misses.
	// Env: CACHE_COALESCE (default: true)
	CacheCoalesce bool `envconfig:"CACHE_COALESCE" default:"true"`

	// MoodTablePath is a YAML file replacing the built-in mood table.
	// Env: MOOD_TABLE_PATH
	MoodTablePath string `envconfig:"MOOD_TABLE_PATH"`

	// CORSOrigins is a comma-separated list of allowed origins.
	// Env: CORS_ORIGINS (default: *)
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"*"`

	// APIKeys is a comma-separated list of keys required for write requests.
	// Env: API_KEYS
	APIKeys string `envconfig:"API_KEYS"`

	// PeriodicIndexEnabled embeds catalog items lacking an embedding on a timer.
	// Env: PERIODIC_INDEX_ENABLED (default: false)
	PeriodicIndexEnabled bool `envconfig:"PERIODIC_INDEX_ENABLED" default:"false"`

	// PeriodicIndexIntervalSeconds is the time between indexing runs.
	// Env: PERIODIC_INDEX_INTERVAL_SECONDS (default: 3600)
	PeriodicIndexIntervalSeconds float64 `envconfig:"PERIODIC_INDEX_INTERVAL_SECONDS" default:"3600"`

	// EmbeddingEndpoint configures the embedding service.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// ChatEndpoint configures the chat completion service.
	ChatEndpoint EndpointEnv `envconfig:"CHAT_ENDPOINT"`
}

// EndpointEnv holds environment configuration for an AI endpoint.
type EndpointEnv struct {
	// BaseURL is the base URL for the endpoint.
	// Env: *_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the model identifier.
	// Env: *_MODEL
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	// Env: *_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the request timeout in seconds.
	// Env: *_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: *_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: *_INITIAL_DELAY (default: 2.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: *_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`

	// MaxTokens is the completion token limit.
	// Env: *_MAX_TOKENS (default: 800)
	MaxTokens int `envconfig:"MAX_TOKENS" default:"800"`

	// Dimensions is the embedding vector length.
	// Env: *_DIMENSIONS (default: 1536)
	Dimensions int `envconfig:"DIMENSIONS" default:"1536"`

	// BatchSize is the number of texts per embedding request.
	// Env: *_BATCH_SIZE (default: 100)
	BatchSize int `envconfig:"BATCH_SIZE" default:"100"`

	// BatchDelayMS is the pause between embedding requests in milliseconds.
	// Env: *_BATCH_DELAY_MS (default: 100)
	BatchDelayMS int `envconfig:"BATCH_DELAY_MS" default:"100"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}

	cfg = applyOption(cfg, WithCacheConfig(
		NewCacheConfig().WithRedisURL(e.RedisURL).WithCoalesce(e.CacheCoalesce),
	))

	if e.MoodTablePath != "" {
		cfg = applyOption(cfg, WithMoodTablePath(e.MoodTablePath))
	}
	if e.CORSOrigins != "" {
		cfg = applyOption(cfg, WithCORSOrigins(ParseList(e.CORSOrigins)))
	}
	if e.APIKeys != "" {
		cfg = applyOption(cfg, WithAPIKeys(ParseList(e.APIKeys)))
	}

	cfg = applyOption(cfg, WithPeriodicIndexConfig(
		NewPeriodicIndexConfig().
			WithEnabled(e.PeriodicIndexEnabled).
			WithIntervalSeconds(e.PeriodicIndexIntervalSeconds),
	))

	if e.EmbeddingEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint(DefaultEmbeddingModel)))
	}
	if e.ChatEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithChatEndpoint(e.ChatEndpoint.ToEndpoint(DefaultChatModel)))
	}

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// IsConfigured returns true if the endpoint has an API key or base URL.
func (e EndpointEnv) IsConfigured() bool {
	return e.APIKey != "" || e.BaseURL != ""
}

// ToEndpoint converts EndpointEnv to Endpoint, using defaultModel when no model is set.
func (e EndpointEnv) ToEndpoint(defaultModel string) Endpoint {
	model := e.Model
	if model == "" {
		model = defaultModel
	}
	opts := []EndpointOption{
		WithModel(model),
		WithTimeout(time.Duration(e.Timeout * float64(time.Second))),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(time.Duration(e.InitialDelay * float64(time.Second))),
		WithBackoffFactor(e.BackoffFactor),
		WithMaxTokens(e.MaxTokens),
		WithDimensions(e.Dimensions),
		WithBatchSize(e.BatchSize),
		WithBatchDelay(time.Duration(e.BatchDelayMS) * time.Millisecond),
	}

	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}

	return NewEndpointWithOptions(opts...)
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
