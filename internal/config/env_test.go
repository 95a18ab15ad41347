package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "", cfg.DataDir)
	assert.Equal(t, "", cfg.DBURL)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "pretty", cfg.LogFormat)
	assert.Equal(t, "", cfg.RedisURL)
	assert.True(t, cfg.CacheCoalesce)
	assert.Equal(t, "*", cfg.CORSOrigins)

	assert.Equal(t, 1536, cfg.EmbeddingEndpoint.Dimensions)
	assert.Equal(t, 100, cfg.EmbeddingEndpoint.BatchSize)
	assert.Equal(t, 100, cfg.EmbeddingEndpoint.BatchDelayMS)
	assert.Equal(t, 800, cfg.ChatEndpoint.MaxTokens)
}

func TestEnvDefaults_MatchConfigDefaults(t *testing.T) {
	clearEnvVars(t)

	env, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, env.Host)
	assert.Equal(t, DefaultPort, env.Port)
	assert.Equal(t, DefaultLogLevel, env.LogLevel)
	assert.False(t, env.PeriodicIndexEnabled)
	assert.Equal(t, DefaultPeriodicIndexInterval, env.PeriodicIndexIntervalSeconds)
	assert.Equal(t, DefaultEmbeddingDimensions, env.EmbeddingEndpoint.Dimensions)
	assert.Equal(t, DefaultEmbeddingBatchSize, env.EmbeddingEndpoint.BatchSize)
	assert.Equal(t, DefaultEmbeddingBatchDelay, time.Duration(env.EmbeddingEndpoint.BatchDelayMS)*time.Millisecond)
	assert.Equal(t, DefaultEndpointMaxRetries, env.EmbeddingEndpoint.MaxRetries)
	assert.Equal(t, DefaultEndpointMaxTokens, env.ChatEndpoint.MaxTokens)
}

func TestLoadFromEnv_OverrideValues(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("CACHE_COALESCE", "false")
	t.Setenv("MOOD_TABLE_PATH", "/moods.yaml")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("API_KEYS", "k1,k2")
	t.Setenv("PERIODIC_INDEX_ENABLED", "true")
	t.Setenv("PERIODIC_INDEX_INTERVAL_SECONDS", "120")

	env, err := LoadFromEnv()
	require.NoError(t, err)
	cfg := env.ToAppConfig()

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, LogFormatJSON, cfg.LogFormat())
	assert.Equal(t, CacheBackendRedis, cfg.Cache().Backend())
	assert.Equal(t, "redis://cache:6379/1", cfg.Cache().RedisURL())
	assert.False(t, cfg.Cache().Coalesce())
	assert.Equal(t, "/moods.yaml", cfg.MoodTablePath())
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins())
	assert.Equal(t, []string{"k1", "k2"}, cfg.APIKeys())
	assert.True(t, cfg.PeriodicIndex().Enabled())
	assert.Equal(t, 2*time.Minute, cfg.PeriodicIndex().Interval())
}

func TestLoadFromEnv_EmbeddingEndpoint(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("EMBEDDING_ENDPOINT_API_KEY", "sk-embed")
	t.Setenv("EMBEDDING_ENDPOINT_DIMENSIONS", "512")
	t.Setenv("EMBEDDING_ENDPOINT_BATCH_SIZE", "20")
	t.Setenv("EMBEDDING_ENDPOINT_BATCH_DELAY_MS", "0")
	t.Setenv("EMBEDDING_ENDPOINT_TIMEOUT", "15")

	env, err := LoadFromEnv()
	require.NoError(t, err)
	cfg := env.ToAppConfig()

	endpoint := cfg.EmbeddingEndpoint()
	require.NotNil(t, endpoint)
	assert.Equal(t, "sk-embed", endpoint.APIKey())
	assert.Equal(t, DefaultEmbeddingModel, endpoint.Model())
	assert.Equal(t, 512, endpoint.Dimensions())
	assert.Equal(t, 20, endpoint.BatchSize())
	assert.Equal(t, time.Duration(0), endpoint.BatchDelay())
	assert.Equal(t, 15*time.Second, endpoint.Timeout())
	assert.Nil(t, cfg.ChatEndpoint())
}

func TestLoadFromEnv_ChatEndpoint(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("CHAT_ENDPOINT_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("CHAT_ENDPOINT_MODEL", "llama3")

	env, err := LoadFromEnv()
	require.NoError(t, err)
	cfg := env.ToAppConfig()

	endpoint := cfg.ChatEndpoint()
	require.NotNil(t, endpoint)
	assert.Equal(t, "http://localhost:11434/v1", endpoint.BaseURL())
	assert.Equal(t, "llama3", endpoint.Model())
	assert.Equal(t, 800, endpoint.MaxTokens())
}

func TestParseLogFormat(t *testing.T) {
	tests := []struct {
		input string
		want  LogFormat
	}{
		{"json", LogFormatJSON},
		{"JSON", LogFormatJSON},
		{"pretty", LogFormatPretty},
		{"anything", LogFormatPretty},
		{"", LogFormatPretty},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogFormat(tt.input))
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	content := `DATA_DIR=/from/dotenv
LOG_LEVEL=DEBUG
REDIS_URL=redis://dotenv:6379/0
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	clearEnvVars(t)

	err = LoadDotEnv(envFile)
	require.NoError(t, err)

	assert.Equal(t, "/from/dotenv", os.Getenv("DATA_DIR"))
	assert.Equal(t, "DEBUG", os.Getenv("LOG_LEVEL"))
	assert.Equal(t, "redis://dotenv:6379/0", os.Getenv("REDIS_URL"))
}

func TestLoadDotEnv_Missing(t *testing.T) {
	clearEnvVars(t)

	err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, fs.ErrNotExist, "a named env file must exist")

	t.Chdir(t.TempDir())
	assert.NoError(t, LoadDotEnv(""), "the default env file is optional")
}

func TestLoadDotEnv_EnvironmentWins(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LOG_LEVEL=DEBUG\nMOOD_TABLE_PATH=/from/dotenv.yaml\n"), 0o644))

	clearEnvVars(t)
	t.Setenv("LOG_LEVEL", "ERROR")

	require.NoError(t, LoadDotEnv(envFile))

	assert.Equal(t, "ERROR", os.Getenv("LOG_LEVEL"))
	assert.Equal(t, "/from/dotenv.yaml", os.Getenv("MOOD_TABLE_PATH"))
}

func TestLoadDotEnv_DefaultFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultEnvFile), []byte("REDIS_URL=redis://cache:6379/1\n"), 0o644))

	clearEnvVars(t)
	t.Chdir(dir)

	require.NoError(t, LoadDotEnv(""))
	assert.Equal(t, "redis://cache:6379/1", os.Getenv("REDIS_URL"))
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	content := `DATA_DIR=/config/data
LOG_LEVEL=WARN
EMBEDDING_ENDPOINT_API_KEY=sk-test
EMBEDDING_ENDPOINT_MODEL=test-embedding
API_KEYS=alpha, beta
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	clearEnvVars(t)

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)

	assert.Equal(t, "/config/data", cfg.DataDir())
	assert.Equal(t, "WARN", cfg.LogLevel())
	require.NotNil(t, cfg.EmbeddingEndpoint())
	assert.Equal(t, "test-embedding", cfg.EmbeddingEndpoint().Model())
	assert.Equal(t, []string{"alpha", "beta"}, cfg.APIKeys())
}

func TestLoadConfig_InvalidEnvironment(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("PORT", "eighty")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "none.env"))
	assert.Error(t, err)

	_, err = LoadConfig("")
	assert.Error(t, err)
}

// clearEnvVars unsets all config-related environment variables for one test.
func clearEnvVars(t *testing.T) {
	t.Helper()

	vars := []string{
		"HOST",
		"PORT",
		"DATA_DIR",
		"DB_URL",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"REDIS_URL",
		"CACHE_COALESCE",
		"MOOD_TABLE_PATH",
		"CORS_ORIGINS",
		"API_KEYS",
		"PERIODIC_INDEX_ENABLED",
		"PERIODIC_INDEX_INTERVAL_SECONDS",
	}
	for _, prefix := range []string{"EMBEDDING_ENDPOINT_", "CHAT_ENDPOINT_"} {
		for _, suffix := range []string{
			"BASE_URL", "MODEL", "API_KEY", "TIMEOUT", "MAX_RETRIES",
			"INITIAL_DELAY", "BACKOFF_FACTOR", "MAX_TOKENS", "DIMENSIONS",
			"BATCH_SIZE", "BATCH_DELAY_MS",
		} {
			vars = append(vars, prefix+suffix)
		}
	}

	// t.Setenv restores the original value when the test ends.
	for _, v := range vars {
		t.Setenv(v, "")
		_ = os.Unsetenv(v)
	}
}
