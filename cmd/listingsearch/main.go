package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/listingsearch/internal/version"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "listingsearch",
		Short:         "Semantic search over listings: embedding backfill, vector retrieval and reranking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (default: config/<ENV>.yaml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
				return a.serve(ctx)
			})
		},
	}

	var batchSize int
	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Embed every listing that has no embedding yet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
				if batchSize == 0 {
					batchSize = a.cfg.Backfill.DefaultBatchSize
				}
				res, err := a.backfill.RunBackfill(ctx, batchSize)
				if err != nil {
					return fmt.Errorf("backfill: %w", err)
				}
				a.logger.Info("Backfill complete",
					zap.Int("documents_to_embed", res.TotalEligible),
					zap.Int("documents_embedded", res.Embedded),
				)
				fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				return nil
			})
		},
	}
	backfillCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Listings per embedding batch (default: backfill.default_batch_size)")

	createIndexCmd := &cobra.Command{
		Use:   "create-index",
		Short: "Create the vector search index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
				res, err := a.index.Provision(ctx)
				if err != nil {
					return fmt.Errorf("create index: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.IndexName, res.Status)
				return nil
			})
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}

	rootCmd.AddCommand(serveCmd, backfillCmd, createIndexCmd, versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}

// withApp builds the composition root, runs fn and releases resources.
func withApp(ctx context.Context, configPath string, fn func(context.Context, *app) error) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}
