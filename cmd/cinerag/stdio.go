package main

import (
	"fmt"
	"log/slog"

	"github.com/helixml/cinerag"
	"github.com/helixml/cinerag/internal/log"
	"github.com/helixml/cinerag/internal/mcp"
	"github.com/spf13/cobra"
)

func stdioCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants search the catalog and fetch recommendations.
Configuration is loaded from environment variables and .env file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func runStdio(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	if err := prepareDataDir(cfg); err != nil {
		return err
	}

	// stdout carries protocol messages.
	logger := log.NewStderrLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir()),
	)

	opts, err := clientOptions(cfg, logger)
	if err != nil {
		return err
	}

	client, err := cinerag.New(opts...)
	if err != nil {
		return fmt.Errorf("create cinerag client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close cinerag client", slog.Any("error", err))
		}
	}()

	return mcp.NewServer(client.Search, client.Recommendations, version, logger).ServeStdio()
}
