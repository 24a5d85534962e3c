// Package mcp implements the Model Context Protocol (MCP) server for embedfixtures.
//
// The server exposes the chunker and the embedder to MCP clients so that
// fixture tooling can be driven interactively:
//   - chunk_text: split text into overlapping, word-bounded chunks
//   - embed_query: embed a query with the configured provider
//   - search_fixture: rank the chunks of a loaded fixture against a query
//
// search_fixture is only registered when the server is started with a fixture.
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdio:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Basic Usage
//
//	fixturegen serve --fixture fixtures/corpus.json
//
// Tool results are JSON documents carried as text content.
//
// # Tool: chunk_text
//
//	Request:
//	{
//	  "text": "The quick brown fox jumps over the lazy dog",
//	  "chunk_size": 20,
//	  "overlap": 5
//	}
//
//	Response:
//	{
//	  "chunk_size": 20,
//	  "overlap": 5,
//	  "count": 3,
//	  "chunks": [
//	    {"index": 0, "start": 0, "end": 20, "text": "The quick brown fox "},
//	    ...
//	  ]
//	}
//
// chunk_size and overlap default to the server's configured values.
//
// # Tool: embed_query
//
//	Request:  {"query": "brown fox"}
//	Response: {"provider": "local", "model": "hashing-bow-384", "dimension": 384, "embedding": [...]}
//
// # Tool: search_fixture
//
//	Request:
//	{
//	  "query": "lazy dog",
//	  "limit": 5,            // 1-100, default 10
//	  "search_mode": "vector", // vector | keyword | hybrid
//	  "min_score": 0.2
//	}
//
//	Response:
//	{
//	  "query": "lazy dog",
//	  "search_mode": "vector",
//	  "total_results": 1,
//	  "cache_hit": false,
//	  "duration_ms": 0,
//	  "results": [
//	    {"rank": 1, "id": "fox-1", "score": 0.82, "source": "fox.txt", "chunk_index": 1, "content": "..."}
//	  ]
//	}
//
// # Error Codes
//
//   - -32602: invalid parameters (chunk_size/overlap out of range, bad limit or mode)
//   - -32603: internal error (embedding or search failure)
//   - -32004: empty query
package mcp
