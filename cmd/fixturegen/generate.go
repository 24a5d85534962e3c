package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/embedfixtures/internal/config"
	"github.com/dshills/embedfixtures/internal/embedder"
	"github.com/dshills/embedfixtures/internal/fixture"
	"github.com/dshills/embedfixtures/internal/pipeline"
	"github.com/dshills/embedfixtures/internal/storage"
	"github.com/dshills/embedfixtures/pkg/types"
)

// generateFlags mirrors the config fields that can be overridden on the command line
type generateFlags struct {
	corpusDir        string
	output           string
	format           string
	extensions       []string
	recursive        bool
	chunkSize        int
	overlap          int
	workers          int
	deterministicIDs bool
	provider         string
	model            string
	batchSize        int
	concurrency      int
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	flags := &generateFlags{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Chunk and embed a corpus into a fixture file",
		Long: `Read every matching file in the corpus directory, chunk it, embed the
chunks and write a fixture.

Formats:
  soa     {"ids", "documents", "embeddings", "metadatas"} (default)
  rows    {"documents": [{"id", "content", "embedding", "metadata"}]}
  sqlite  SQLite database with one row per chunk`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return runGenerate(cmd.Context(), cfg, logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.corpusDir, "corpus", "c", "", "corpus directory")
	f.StringVarP(&flags.output, "output", "o", "", "output fixture path")
	f.StringVarP(&flags.format, "format", "f", "", "output format: soa, rows, sqlite")
	f.StringSliceVar(&flags.extensions, "ext", nil, "corpus file extensions (repeatable)")
	f.BoolVarP(&flags.recursive, "recursive", "r", false, "descend into subdirectories")
	f.IntVar(&flags.chunkSize, "chunk-size", 0, "characters per chunk")
	f.IntVar(&flags.overlap, "overlap", 0, "characters shared by consecutive chunks")
	f.IntVar(&flags.workers, "workers", 0, "concurrent file readers")
	f.BoolVar(&flags.deterministicIDs, "deterministic-ids", false, "derive document ids from source and chunk index")
	f.StringVar(&flags.provider, "provider", "", "embedding provider: local, jina, openai, ollama")
	f.StringVar(&flags.model, "model", "", "embedding model")
	f.IntVar(&flags.batchSize, "batch-size", 0, "texts per embedding request")
	f.IntVar(&flags.concurrency, "concurrency", 0, "concurrent embedding requests")

	return cmd
}

// apply copies explicitly set flags over cfg
func (g *generateFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("corpus") {
		cfg.CorpusDir = g.corpusDir
	}
	if f.Changed("output") {
		cfg.Output = g.output
	}
	if f.Changed("format") {
		cfg.Format = g.format
	}
	if f.Changed("ext") {
		cfg.Extensions = g.extensions
	}
	if f.Changed("recursive") {
		cfg.Recursive = g.recursive
	}
	if f.Changed("chunk-size") {
		cfg.ChunkSize = g.chunkSize
	}
	if f.Changed("overlap") {
		cfg.Overlap = g.overlap
	}
	if f.Changed("workers") {
		cfg.Workers = g.workers
	}
	if f.Changed("deterministic-ids") {
		cfg.DeterministicIDs = g.deterministicIDs
	}
	if f.Changed("provider") {
		cfg.Embedding.Provider = g.provider
	}
	if f.Changed("model") {
		cfg.Embedding.Model = g.model
	}
	if f.Changed("batch-size") {
		cfg.Embedding.BatchSize = g.batchSize
	}
	if f.Changed("concurrency") {
		cfg.Embedding.Concurrency = g.concurrency
	}
}

func runGenerate(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	format, err := fixture.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer func() { _ = emb.Close() }()

	p, err := pipeline.New(emb, pipeline.Config{
		ChunkSize:        cfg.ChunkSize,
		Overlap:          cfg.Overlap,
		Extensions:       cfg.Extensions,
		Recursive:        cfg.Recursive,
		Workers:          cfg.Workers,
		BatchSize:        cfg.Embedding.BatchSize,
		Concurrency:      cfg.Embedding.Concurrency,
		DeterministicIDs: cfg.DeterministicIDs,
	}, logger)
	if err != nil {
		return err
	}

	result, err := p.Run(ctx, cfg.CorpusDir)
	if err != nil {
		if isInformational(err, pipeline.ErrNoSources, pipeline.ErrNoChunks) {
			logger.Info("nothing to write", zap.String("reason", err.Error()))
			return nil
		}
		return err
	}

	if err := writeFixture(ctx, cfg, format, result); err != nil {
		return err
	}

	stats := result.Stats
	logger.Info("fixture written",
		zap.String("output", cfg.Output),
		zap.String("format", string(format)),
		zap.Int("documents", len(result.Documents)),
		zap.Int("dimension", stats.Dimension),
		zap.Int("files_processed", stats.FilesProcessed),
		zap.Int("files_failed", stats.FilesFailed),
		zap.Duration("duration", stats.Duration),
	)
	for _, msg := range stats.ErrorMessages {
		logger.Warn("skipped file", zap.String("error", msg))
	}

	return nil
}

func writeFixture(ctx context.Context, cfg *config.Config, format fixture.Format, result *pipeline.Result) error {
	if format != fixture.FormatSQLite {
		return fixture.WriteFile(cfg.Output, format, result.Documents)
	}
	return storage.WriteFixture(ctx, cfg.Output, result.Documents, fixtureInfo(cfg, result))
}

// fixtureInfo records how a SQLite fixture was generated
func fixtureInfo(cfg *config.Config, result *pipeline.Result) map[string]string {
	return map[string]string{
		"provider":   result.Stats.Provider,
		"model":      result.Stats.Model,
		"dimension":  strconv.Itoa(result.Stats.Dimension),
		"chunk_size": strconv.Itoa(cfg.ChunkSize),
		"overlap":    strconv.Itoa(cfg.Overlap),
		"corpus_dir": cfg.CorpusDir,
		"doc_type":   types.TypeTextSegment,
		"fixturegen": version,
	}
}
