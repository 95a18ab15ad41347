package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helixml/cinerag"
	"github.com/helixml/cinerag/infrastructure/api"
	"github.com/helixml/cinerag/internal/config"
	"github.com/helixml/cinerag/internal/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATA_DIR                     Data directory (default: ~/.cinerag)
  DB_URL                       Database URL (default: sqlite:///{data_dir}/cinerag.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  API_KEYS                     Comma-separated keys required for write requests
  CORS_ORIGINS                 Comma-separated allowed origins (default: *)

  REDIS_URL                    Redis URL for the result cache (default: in-process)
  CACHE_COALESCE               Share one computation across identical misses (default: true)
  MOOD_TABLE_PATH              YAML file replacing the built-in mood table

  EMBEDDING_ENDPOINT_*         Embedding service configuration
    BASE_URL                   Base URL (e.g., https://api.openai.com/v1)
    MODEL                      Model identifier (default: text-embedding-3-small)
    API_KEY                    API key for authentication
    DIMENSIONS                 Embedding length (default: 1536)
    BATCH_SIZE                 Texts per request (default: 100)
    BATCH_DELAY_MS             Pause between requests (default: 100)
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retry attempts (default: 5)

  CHAT_ENDPOINT_*              Chat completion service configuration
    (same fields as EMBEDDING_ENDPOINT; model default: gpt-4o-mini)

  PERIODIC_INDEX_ENABLED       Embed new catalog items on a timer (default: false)
  PERIODIC_INDEX_INTERVAL_SECONDS  Indexing interval (default: 3600)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)

	if err := prepareDataDir(cfg); err != nil {
		return err
	}

	logger := log.Configure(cfg)

	opts, err := clientOptions(cfg, logger)
	if err != nil {
		return err
	}

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(context.Background(), slog.LevelInfo, "starting cinerag", attrs...)

	client, err := cinerag.New(opts...)
	if err != nil {
		return fmt.Errorf("create cinerag client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close cinerag client", slog.Any("error", err))
		}
	}()

	apiServer := api.NewAPIServer(client,
		api.WithAPIKeys(cfg.APIKeys()),
		api.WithCORSOrigins(cfg.CORSOrigins()),
		api.WithVersion(version),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	if err := apiServer.ListenAndServe(cfg.Addr()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
