// Package searcher ranks fixture documents against free-text queries.
//
// It is the sanity check for a generated fixture: embed a query with the same
// provider that built the fixture and confirm the expected chunks come back.
//
// The searcher provides three search modes:
//   - Vector: cosine similarity between the query embedding and each document (default)
//   - Keyword: fraction of distinct query terms present in a document, no embedder needed
//   - Hybrid: vector and keyword rankings merged with Reciprocal Rank Fusion
//
// # Basic Usage
//
//	set, err := fixture.Load("output.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s := searcher.NewSearcher(set, emb)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query: "what does the fox jump over?",
//	    Limit: 5,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s#%d (%.3f)\n", r.Rank, r.Metadata.Source, r.Metadata.ChunkIndex, r.RelevanceScore)
//	}
//
// Any DocumentSource works. A *storage.SQLiteStorage also implements
// VectorIndex, so vector searches against a SQLite fixture are ranked by the
// store instead of a scan over every document.
//
// # Reciprocal Rank Fusion (RRF)
//
// Hybrid mode combines rankings as:
//
//	rrf_score[d] = sum over rankings of 1 / (k + rank(d))
//
// Where k = 60 (standard RRF constant). If the query cannot be embedded,
// hybrid mode falls back to the keyword ranking alone.
//
// # Validation
//
// Limit defaults to 10 and must lie in 1..100. Queries are trimmed and must
// not be empty. A query embedding whose dimension differs from the fixture's
// yields types.ErrDimensionMismatch, which usually means the fixture was built
// with another model.
//
// # Caching
//
// With UseCache set, responses are kept in an LRU (1000 entries) keyed by the
// request parameters until CacheTTL (default 1h) expires. Call InvalidateCache
// after the underlying fixture changes.
package searcher
