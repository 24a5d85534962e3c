package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/embedfixtures/internal/config"
	"github.com/dshills/embedfixtures/internal/embedder"
	"github.com/dshills/embedfixtures/internal/logging"
	"github.com/dshills/embedfixtures/internal/searcher"
)

func newEmbedQueryCmd(root *rootOptions) *cobra.Command {
	var model, provider string

	cmd := &cobra.Command{
		Use:   "embed-query <text>",
		Short: "Embed a query and print the vector as JSON",
		Long: `Embed a single query string with the configured provider and print the
vector to stdout as a JSON array on one line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("provider") {
				cfg.Embedding.Provider = provider
			}
			if cmd.Flags().Changed("model") {
				cfg.Embedding.Model = model
			}

			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return runEmbedQuery(cmd.Context(), cfg, args[0], cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "embedding model (default: provider default)")
	cmd.Flags().StringVar(&provider, "provider", "", "embedding provider: local, jina, openai, ollama")

	return cmd
}

func runEmbedQuery(ctx context.Context, cfg *config.Config, text string, out io.Writer, logger *zap.Logger) error {
	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer func() { _ = emb.Close() }()

	logger.Info("embedding query",
		zap.String("provider", emb.Provider()),
		zap.String("model", emb.Model()),
		zap.String("query", logging.TruncateString(text, 80)),
	)

	embedding, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return err
	}

	data, err := json.Marshal(embedding.Vector)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}

	logger.Debug("query embedded", zap.Int("dimension", len(embedding.Vector)))
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// searchFlags holds the search command options
type searchFlags struct {
	limit    int
	minScore float64
	mode     string
	sources  []string
	asJSON   bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search <fixture> <query>",
		Short: "Search a fixture file",
		Long: `Load a fixture (SOA JSON, row JSON or a SQLite .db file), embed the query
with the configured provider and print the best matching chunks.

The query must be embedded with the same provider and model that generated
the fixture, otherwise the vector dimensions will not match.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return runSearch(cmd.Context(), cfg, flags, args[0], args[1], cmd.OutOrStdout(), logger)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&flags.limit, "limit", "n", searcher.DefaultLimit, fmt.Sprintf("maximum results (1-%d)", searcher.MaxLimit))
	f.Float64Var(&flags.minScore, "min-score", 0, "minimum relevance score")
	f.StringVar(&flags.mode, "mode", string(searcher.SearchModeVector), "search mode: vector, keyword, hybrid")
	f.StringSliceVar(&flags.sources, "source", nil, "restrict results to these source files (repeatable)")
	f.BoolVar(&flags.asJSON, "json", false, "print results as JSON")

	return cmd
}

func runSearch(ctx context.Context, cfg *config.Config, flags *searchFlags, path, query string, out io.Writer, logger *zap.Logger) error {
	source, closeFixture, err := searcher.OpenFixture(path)
	if err != nil {
		return err
	}
	defer func() { _ = closeFixture() }()

	var emb embedder.Embedder
	if searcher.SearchMode(flags.mode) != searcher.SearchModeKeyword {
		emb, err = embedder.New(cfg.EmbedderConfig())
		if err != nil {
			return fmt.Errorf("failed to create embedder: %w", err)
		}
		defer func() { _ = emb.Close() }()
	}

	resp, err := searcher.NewSearcher(source, emb).Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    flags.limit,
		Mode:     searcher.SearchMode(flags.mode),
		Sources:  flags.sources,
		MinScore: flags.minScore,
	})
	if err != nil {
		return err
	}

	logger.Info("search complete",
		zap.String("fixture", path),
		zap.String("mode", string(resp.SearchMode)),
		zap.Int("results", resp.TotalResults),
		zap.Duration("duration", resp.Duration),
	)

	if flags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(resp.Results)
	}

	if len(resp.Results) == 0 {
		_, err := fmt.Fprintln(out, "No results.")
		return err
	}
	for _, r := range resp.Results {
		fmt.Fprintf(out, "%2d. [%.4f] %s#%d  %s\n", r.Rank, r.RelevanceScore, r.Metadata.Source, r.Metadata.ChunkIndex, r.DocumentID)
		fmt.Fprintf(out, "    %s\n", snippet(r.Content, 120))
	}
	return nil
}

// snippet flattens whitespace and truncates content for single-line display
func snippet(content string, maxLen int) string {
	return logging.TruncateString(strings.Join(strings.Fields(content), " "), maxLen)
}
