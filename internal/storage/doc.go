// Package storage provides SQLite-based persistence for fixture documents.
//
// A SQLite fixture is the third output format next to the SOA and row JSON
// files. It holds the same documents, one row per chunk, plus a small
// key/value table recording how the fixture was generated.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations (semantic versions)
//   - documents: id, content, embedding (little-endian float32 BLOB),
//     dimension, source, chunk_index, version, type, created_at
//   - fixture_info: generation parameters (provider, model, chunk size, ...)
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("fixtures/corpus.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	n, err := store.UpsertDocuments(ctx, docs)
//
// WriteFixture replaces a fixture file in one step and is what the CLI uses:
//
//	err := storage.WriteFixture(ctx, "fixtures/corpus.db", docs, map[string]string{
//	    "provider": "ollama",
//	    "model":    "nomic-embed-text",
//	})
//
// # Transactions
//
// Use transactions for atomic operations:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if _, err := tx.DeleteDocumentsBySource(ctx, "fox.txt"); err != nil {
//	    return err
//	}
//	if _, err := tx.UpsertDocuments(ctx, docs); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Vector Search
//
// SearchVector computes cosine similarity in Go over every document of the
// query's dimension. Fixtures are small, so a full scan is sufficient:
//
//	results, err := store.SearchVector(ctx, queryVector, 10, &storage.SearchFilters{
//	    Sources:      []string{"fox.txt"},
//	    MinRelevance: 0.3,
//	})
//
// All documents in one database share a single embedding dimension;
// UpsertDocuments returns types.ErrDimensionMismatch otherwise.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go, no C compiler needed).
// Building with -tags sqlite_cgo switches to github.com/mattn/go-sqlite3.
// DriverName and BuildMode report the active choice.
//
// # Migrations
//
// Schema changes are applied in semantic-version order when a database is
// opened. RollbackMigration undoes the most recent one.
package storage
