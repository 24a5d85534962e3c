package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/embedfixtures/internal/chunker"
	"github.com/dshills/embedfixtures/internal/embedder"
	"github.com/dshills/embedfixtures/internal/logging"
	"github.com/dshills/embedfixtures/internal/searcher"
	"github.com/dshills/embedfixtures/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// handleChunkText handles the chunk_text tool invocation
func (s *Server) handleChunkText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	text, ok := args["text"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "text parameter is required", map[string]interface{}{
			"param":  "text",
			"reason": "missing or not a string",
		})
	}

	chunkSize := getIntDefault(args, "chunk_size", s.chunkSize)
	overlap := getIntDefault(args, "overlap", s.overlap)

	spans, err := chunker.Spans(text, chunkSize, overlap)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid chunking parameters", map[string]interface{}{
			"chunk_size": chunkSize,
			"overlap":    overlap,
			"reason":     err.Error(),
		})
	}

	chunks := make([]map[string]interface{}, len(spans))
	for i, span := range spans {
		chunks[i] = map[string]interface{}{
			"index": i,
			"start": span.Start,
			"end":   span.End,
			"text":  span.Text,
		}
	}

	response := map[string]interface{}{
		"chunk_size": chunkSize,
		"overlap":    overlap,
		"count":      len(chunks),
		"chunks":     chunks,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleEmbedQuery handles the embed_query tool invocation
func (s *Server) handleEmbedQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		s.logger.Warn("embed_query failed", zap.Error(err))
		return nil, newMCPError(ErrorCodeInternalError, "embedding failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.logger.Debug("embedded query",
		zap.String("query", logging.TruncateString(query, 80)),
		zap.Float32s("vector", logging.TruncateEmbedding(embedding.Vector, 5)),
	)

	response := map[string]interface{}{
		"provider":  s.embedder.Provider(),
		"model":     s.embedder.Model(),
		"dimension": len(embedding.Vector),
		"embedding": embedding.Vector,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchFixture handles the search_fixture tool invocation
func (s *Server) handleSearchFixture(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode := getStringDefault(args, "search_mode", string(searcher.SearchModeVector))
	minScore := getFloatDefault(args, "min_score", 0)

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		Mode:     searcher.SearchMode(mode),
		MinScore: minScore,
		UseCache: true,
	})
	if err != nil {
		if errors.Is(err, searcher.ErrUnsupportedMode) || errors.Is(err, searcher.ErrInvalidMinScore) {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid search parameters", map[string]interface{}{
				"reason": err.Error(),
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"query":         query,
		"search_mode":   string(resp.SearchMode),
		"total_results": resp.TotalResults,
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
		"results":       formatResults(resp.Results),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// requireQuery extracts a non-blank query argument
func requireQuery(args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return "", newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	return query, nil
}

func formatResults(results []types.SearchResult) []map[string]interface{} {
	out := make([]map[string]interface{}, len(results))
	for i, r := range results {
		out[i] = map[string]interface{}{
			"rank":        r.Rank,
			"id":          r.DocumentID,
			"score":       r.RelevanceScore,
			"source":      r.Metadata.Source,
			"chunk_index": r.Metadata.ChunkIndex,
			"content":     r.Content,
		}
	}
	return out
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a numeric parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}
