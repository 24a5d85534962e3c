package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/embedfixtures/internal/embedder"
	"github.com/dshills/embedfixtures/internal/mcp"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var fixturePath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
chunk_text and embed_query tools, plus search_fixture when --fixture is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// stdout is reserved for the MCP protocol
			logger, err := newLogger(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			emb, err := embedder.New(cfg.EmbedderConfig())
			if err != nil {
				return fmt.Errorf("failed to create embedder: %w", err)
			}
			defer func() { _ = emb.Close() }()

			server, err := mcp.NewServer(mcp.Options{
				Fixture:   fixturePath,
				Embedder:  emb,
				ChunkSize: cfg.ChunkSize,
				Overlap:   cfg.Overlap,
				Logger:    logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = server.Serve(ctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("server error", zap.Error(err))
				return err
			}

			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&fixturePath, "fixture", "", "fixture file to expose through search_fixture")

	return cmd
}
