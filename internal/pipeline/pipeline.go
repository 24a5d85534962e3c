package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/embedfixtures/internal/chunker"
	"github.com/dshills/embedfixtures/internal/corpus"
	"github.com/dshills/embedfixtures/internal/embedder"
	"github.com/dshills/embedfixtures/pkg/types"
)

var (
	// ErrNoSources means discovery found no matching files
	ErrNoSources = errors.New("no source files found")
	// ErrNoChunks means the sources produced nothing to embed
	ErrNoChunks = errors.New("no chunks generated")
)

// IDNamespace is the UUID namespace for deterministic document ids
var IDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/dshills/embedfixtures"))

// Config contains configuration for the pipeline
type Config struct {
	ChunkSize        int      // Characters per chunk (default: 500)
	Overlap          int      // Characters shared by consecutive chunks (default: 50)
	Extensions       []string // Corpus file extensions (default: .txt)
	Recursive        bool     // Descend into subdirectories
	Workers          int      // Concurrent file readers (default: 4)
	BatchSize        int      // Texts per embedding request (default: 50)
	Concurrency      int      // Concurrent embedding requests (default: 4)
	DeterministicIDs bool     // Derive ids from source and chunk index instead of random UUIDs
}

// DefaultConfig returns the configuration matching the reference fixture generator
func DefaultConfig() Config {
	return Config{
		ChunkSize:   chunker.DefaultChunkSize,
		Overlap:     chunker.DefaultOverlap,
		Extensions:  corpus.DefaultExtensions,
		Workers:     4,
		BatchSize:   embedder.DefaultBatchSize,
		Concurrency: 4,
	}
}

// Statistics contains statistics about a pipeline run
type Statistics struct {
	FilesFound        int
	FilesProcessed    int
	FilesFailed       int
	FilesEmpty        int // Read successfully but produced no chunks
	ChunksCreated     int
	EmbeddingsCreated int
	Dimension         int
	Provider          string
	Model             string
	Duration          time.Duration
	ErrorMessages     []string
}

// Result is the output of a pipeline run
type Result struct {
	Documents []types.Document
	Stats     *Statistics
}

// Pipeline coordinates fixture generation: read -> chunk -> embed -> assemble
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	config   Config
	logger   *zap.Logger
	newID    func(source string, index int) string
}

// New creates a Pipeline. A nil logger disables logging.
func New(emb embedder.Embedder, config Config, logger *zap.Logger) (*Pipeline, error) {
	if emb == nil {
		return nil, fmt.Errorf("%w: embedder is required", embedder.ErrNoProviderEnabled)
	}

	defaults := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if len(config.Extensions) == 0 {
		config.Extensions = defaults.Extensions
	}

	c, err := chunker.New(config.ChunkSize, config.Overlap)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{
		chunker:  c,
		embedder: emb,
		config:   config,
		logger:   logger,
		newID:    randomID,
	}
	if config.DeterministicIDs {
		p.newID = DeterministicID
	}
	return p, nil
}

// Run builds documents for every matching file under root.
// ErrNoSources and ErrNoChunks are returned together with the statistics gathered so far.
func (p *Pipeline) Run(ctx context.Context, root string) (*Result, error) {
	startTime := time.Now()
	stats := &Statistics{
		Provider:      p.embedder.Provider(),
		Model:         p.embedder.Model(),
		ErrorMessages: make([]string, 0),
	}
	result := &Result{Stats: stats}
	defer func() {
		stats.Duration = time.Since(startTime)
	}()

	files, err := corpus.Discover(root, corpus.Options{
		Extensions: p.config.Extensions,
		Recursive:  p.config.Recursive,
	})
	if err != nil {
		return nil, err
	}
	stats.FilesFound = len(files)

	if len(files) == 0 {
		return result, fmt.Errorf("%w in %s", ErrNoSources, root)
	}

	p.logger.Info("discovered corpus files",
		zap.String("root", root),
		zap.Int("files", len(files)),
	)

	sources, failures, err := corpus.NewReader(p.config.Workers, p.logger).Load(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	stats.FilesFailed = len(failures)
	for _, f := range failures {
		stats.ErrorMessages = append(stats.ErrorMessages, f.Error())
	}

	docs, err := p.Build(ctx, sources, stats)
	if err != nil {
		return result, err
	}

	result.Documents = docs
	p.logger.Info("pipeline complete",
		zap.Int("files_processed", stats.FilesProcessed),
		zap.Int("files_failed", stats.FilesFailed),
		zap.Int("documents", len(docs)),
		zap.Int("dimension", stats.Dimension),
		zap.Duration("duration", time.Since(startTime)),
	)

	return result, nil
}

// Build chunks and embeds already loaded sources. stats may be nil.
func (p *Pipeline) Build(ctx context.Context, sources []corpus.Source, stats *Statistics) ([]types.Document, error) {
	if stats == nil {
		stats = &Statistics{}
	}

	var (
		texts []string
		metas []types.Metadata
	)

	for _, src := range sources {
		chunks := p.chunker.Chunk(src.Text)
		stats.FilesProcessed++
		if len(chunks) == 0 {
			stats.FilesEmpty++
			p.logger.Debug("no chunks in file", zap.String("file", src.Name))
			continue
		}

		for i, chunk := range chunks {
			texts = append(texts, chunk)
			metas = append(metas, types.NewMetadata(src.Name, i))
		}

		p.logger.Debug("chunked file",
			zap.String("file", src.Name),
			zap.Int("runes", len([]rune(src.Text))),
			zap.Int("chunks", len(chunks)),
		)
	}
	stats.ChunksCreated = len(texts)

	if len(texts) == 0 {
		return nil, ErrNoChunks
	}

	p.logger.Info("generating embeddings",
		zap.Int("chunks", len(texts)),
		zap.String("provider", p.embedder.Provider()),
		zap.String("model", p.embedder.Model()),
		zap.Int("batch_size", p.config.BatchSize),
	)

	vectors, err := embedder.EmbedAll(ctx, p.embedder, texts, p.config.BatchSize, p.config.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	stats.EmbeddingsCreated = len(vectors)
	stats.Dimension = len(vectors[0])

	docs := make([]types.Document, len(texts))
	for i := range texts {
		docs[i] = types.Document{
			ID:        p.newID(metas[i].Source, metas[i].ChunkIndex),
			Content:   texts[i],
			Embedding: vectors[i],
			Metadata:  metas[i],
		}
	}

	if err := types.ValidateDocuments(docs); err != nil {
		return nil, fmt.Errorf("assembled documents are invalid: %w", err)
	}

	return docs, nil
}

func randomID(string, int) string {
	return uuid.NewString()
}

// DeterministicID derives a stable UUID (version 5) from a source name and chunk index
func DeterministicID(source string, index int) string {
	return uuid.NewSHA1(IDNamespace, []byte(source+"/"+strconv.Itoa(index))).String()
}
