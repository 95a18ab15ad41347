package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/helixml/cinerag"
	"github.com/helixml/cinerag/internal/log"
	"github.com/spf13/cobra"
)

func embedCmd() *cobra.Command {
	var (
		envFile   string
		batchSize int
		itemID    int64
	)

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed catalog items that have no embedding",
		Long: `Embed every catalog item that has no embedding yet, in batches, and clear
cached search and recommendation results. With --item the embedding of a single
item is regenerated instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(cmd, envFile, batchSize, itemID)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Texts per embedding request (default: EMBEDDING_ENDPOINT_BATCH_SIZE)")
	cmd.Flags().Int64Var(&itemID, "item", 0, "Regenerate the embedding of one catalog item")

	return cmd
}

func runEmbed(cmd *cobra.Command, envFile string, batchSize int, itemID int64) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	if err := prepareDataDir(cfg); err != nil {
		return err
	}

	logger := log.Configure(cfg)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if itemID > 0 {
		if err := client.Indexing.Regenerate(ctx, itemID); err != nil {
			return fmt.Errorf("regenerate item %d: %w", itemID, err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "regenerated embedding for item %d\n", itemID)
		return nil
	}

	result, err := client.Indexing.EmbedMissing(ctx, batchSize)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "embedded %d items, %d failed\n", result.Processed(), result.Failed())
	if err != nil {
		return fmt.Errorf("embed missing: %w", err)
	}
	return nil
}
