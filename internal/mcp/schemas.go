package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/embedfixtures/internal/chunker"
	"github.com/dshills/embedfixtures/internal/searcher"
)

// chunkTextTool returns the tool definition for chunk_text
func chunkTextTool() mcp.Tool {
	return mcp.NewTool("chunk_text",
		mcp.WithDescription("Split text into overlapping, word-bounded windows exactly as fixture generation does"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to chunk"),
		),
		mcp.WithNumber("chunk_size",
			mcp.Description("Maximum window length in characters"),
			mcp.DefaultNumber(chunker.DefaultChunkSize),
			mcp.Min(1),
		),
		mcp.WithNumber("overlap",
			mcp.Description("Characters shared between consecutive windows (must be < chunk_size)"),
			mcp.DefaultNumber(chunker.DefaultOverlap),
			mcp.Min(0),
		),
	)
}

// embedQueryTool returns the tool definition for embed_query
func embedQueryTool() mcp.Tool {
	return mcp.NewTool("embed_query",
		mcp.WithDescription("Embed a query with the configured provider and model, returning the vector"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Query text to embed"),
		),
	)
}

// searchFixtureTool returns the tool definition for search_fixture
func searchFixtureTool() mcp.Tool {
	return mcp.NewTool("search_fixture",
		mcp.WithDescription("Search the loaded fixture for the chunks most similar to a query"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (natural language or keywords)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (1-100)"),
			mcp.DefaultNumber(searcher.DefaultLimit),
			mcp.Min(1),
			mcp.Max(searcher.MaxLimit),
		),
		mcp.WithString("search_mode",
			mcp.Description("Search strategy: vector (cosine similarity), keyword (term overlap), or hybrid (both, fused with RRF)"),
			mcp.Enum(string(searcher.SearchModeVector), string(searcher.SearchModeKeyword), string(searcher.SearchModeHybrid)),
			mcp.DefaultString(string(searcher.SearchModeVector)),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Minimum similarity score threshold (-1.0 to 1.0)"),
			mcp.Min(-1),
			mcp.Max(1),
		),
	)
}
