package mcp

import (
	"context"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/embedfixtures/internal/chunker"
	"github.com/dshills/embedfixtures/internal/embedder"
	"github.com/dshills/embedfixtures/internal/logging"
	"github.com/dshills/embedfixtures/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "embedfixtures"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Options configures a Server
type Options struct {
	// Fixture is an optional fixture file (JSON or SQLite). search_fixture is
	// only registered when it is set.
	Fixture string

	// Embedder embeds queries. Required.
	Embedder embedder.Embedder

	// Defaults for chunk_text when the caller omits them
	ChunkSize int
	Overlap   int

	Logger *zap.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp          *server.MCPServer
	embedder     embedder.Embedder
	searcher     *searcher.Searcher
	closeFixture func() error
	fixturePath  string
	chunkSize    int
	overlap      int
	logger       *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(opts Options) (*Server, error) {
	if opts.Embedder == nil {
		return nil, fmt.Errorf("failed to initialize server: %w", embedder.ErrNoProviderEnabled)
	}

	if opts.ChunkSize == 0 && opts.Overlap == 0 {
		opts.ChunkSize, opts.Overlap = chunker.DefaultChunkSize, chunker.DefaultOverlap
	}
	if err := chunker.Validate(opts.ChunkSize, opts.Overlap); err != nil {
		return nil, fmt.Errorf("invalid chunk defaults: %w", err)
	}

	s := &Server{
		mcp:         server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		embedder:    opts.Embedder,
		fixturePath: opts.Fixture,
		chunkSize:   opts.ChunkSize,
		overlap:     opts.Overlap,
		logger:      logging.OrNop(opts.Logger),
	}

	if opts.Fixture != "" {
		source, closeFn, err := searcher.OpenFixture(opts.Fixture)
		if err != nil {
			return nil, fmt.Errorf("failed to open fixture: %w", err)
		}
		s.searcher = searcher.NewSearcher(source, opts.Embedder)
		s.closeFixture = closeFn
	}

	s.registerTools()

	return s, nil
}

// Serve runs the MCP protocol over in and out until ctx is cancelled or in is closed
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	defer func() { _ = s.Close() }()

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger.Named("stdio")))

	s.logger.Info("MCP server listening on stdio",
		zap.String("provider", s.embedder.Provider()),
		zap.String("model", s.embedder.Model()),
		zap.String("fixture", s.fixturePath),
	)
	return stdio.Listen(ctx, in, out)
}

// Close releases the fixture, if one was opened
func (s *Server) Close() error {
	if s.closeFixture == nil {
		return nil
	}
	err := s.closeFixture()
	s.closeFixture = nil
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(chunkTextTool(), s.handleChunkText)
	s.mcp.AddTool(embedQueryTool(), s.handleEmbedQuery)

	if s.searcher != nil {
		s.mcp.AddTool(searchFixtureTool(), s.handleSearchFixture)
	}
}
