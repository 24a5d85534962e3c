// Package types provides shared type definitions for embedfixtures.
//
// This package defines the domain types exchanged between the pipeline, the
// fixture encoders, the SQLite store and the searcher.
//
// # Core Types
//
// Document is one chunk of source text together with its embedding vector:
//
//	doc := types.Document{
//	    ID:        "3f2c...",
//	    Content:   "The quick brown fox ",
//	    Embedding: []float32{0.12, -0.03, ...},
//	    Metadata:  types.NewMetadata("fox.txt", 0),
//	}
//
// Metadata records the source file name and the zero-based position of the
// chunk within that file. Version and Type are fixed for text fixtures:
//
//	{"source": "fox.txt", "chunk_index": 0, "version": 1, "type": "text_segment"}
//
// # Validation
//
//	if err := doc.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	// All documents in a fixture must share one embedding dimension
//	if err := types.ValidateDocuments(docs); errors.Is(err, types.ErrDimensionMismatch) {
//	    ...
//	}
//
// # Search Results
//
// SearchResult pairs a document with its cosine similarity to a query.
// Scores lie in [-1, 1]; higher is more similar.
package types
