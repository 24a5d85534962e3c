package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/embedfixtures/pkg/types"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "fixture.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testDoc(id, source string, index int, vector ...float32) types.Document {
	return types.Document{
		ID:        id,
		Content:   fmt.Sprintf("chunk %d of %s", index, source),
		Embedding: vector,
		Metadata:  types.NewMetadata(source, index),
	}
}

func TestNewSQLiteStorage_AppliesMigrations(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	version, err := SchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	// Reopening is idempotent
	require.NoError(t, ApplyMigrations(ctx, store.db))
	version, err = SchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestRollbackMigration(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, store.db))
	version, err := SchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)

	require.NoError(t, RollbackMigration(ctx, store.db))
	version, err = SchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", version)

	assert.Error(t, RollbackMigration(ctx, store.db))

	require.NoError(t, ApplyMigrations(ctx, store.db))
	version, err = SchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestUpsertDocuments(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	docs := []types.Document{
		testDoc("b-0", "b.txt", 0, 0, 1),
		testDoc("a-1", "a.txt", 1, 1, 1),
		testDoc("a-0", "a.txt", 0, 1, 0),
	}
	n, err := store.UpsertDocuments(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := store.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	t.Run("list is ordered by source then chunk index", func(t *testing.T) {
		list, err := store.ListDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "a-0", list[0].ID)
		assert.Equal(t, "a-1", list[1].ID)
		assert.Equal(t, "b-0", list[2].ID)
		assert.Equal(t, docs[2], list[0])
	})

	t.Run("get round trips every field", func(t *testing.T) {
		got, err := store.GetDocument(ctx, "a-1")
		require.NoError(t, err)
		assert.Equal(t, docs[1], *got)
	})

	t.Run("upsert replaces by id", func(t *testing.T) {
		updated := testDoc("a-1", "a.txt", 1, 0.5, 0.5)
		updated.Content = "rewritten"
		_, err := store.UpsertDocuments(ctx, []types.Document{updated})
		require.NoError(t, err)

		got, err := store.GetDocument(ctx, "a-1")
		require.NoError(t, err)
		assert.Equal(t, "rewritten", got.Content)
		assert.Equal(t, []float32{0.5, 0.5}, got.Embedding)

		count, err := store.CountDocuments(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("dimension must match stored documents", func(t *testing.T) {
		_, err := store.UpsertDocuments(ctx, []types.Document{testDoc("c-0", "c.txt", 0, 1, 2, 3)})
		assert.ErrorIs(t, err, types.ErrDimensionMismatch)

		count, err := store.CountDocuments(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("invalid documents are rejected", func(t *testing.T) {
		_, err := store.UpsertDocuments(ctx, []types.Document{testDoc("", "c.txt", 0, 1, 2)})
		assert.ErrorIs(t, err, types.ErrMissingID)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		n, err := store.UpsertDocuments(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestGetDocument_NotFound(t *testing.T) {
	store := newTestStorage(t)
	_, err := store.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentsBySource(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.UpsertDocuments(ctx, []types.Document{
		testDoc("a-1", "a.txt", 1, 1, 0),
		testDoc("a-0", "a.txt", 0, 1, 0),
		testDoc("b-0", "b.txt", 0, 0, 1),
	})
	require.NoError(t, err)

	list, err := store.ListDocumentsBySource(ctx, "a.txt")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 0, list[0].Metadata.ChunkIndex)
	assert.Equal(t, 1, list[1].Metadata.ChunkIndex)

	deleted, err := store.DeleteDocumentsBySource(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	list, err = store.ListDocumentsBySource(ctx, "a.txt")
	require.NoError(t, err)
	assert.Empty(t, list)

	deleted, err = store.DeleteDocumentsBySource(ctx, "nope.txt")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestSearchVector(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.UpsertDocuments(ctx, []types.Document{
		testDoc("x", "a.txt", 0, 1, 0),
		testDoc("xy", "a.txt", 1, 1, 1),
		testDoc("y", "b.txt", 0, 0, 1),
		testDoc("-x", "b.txt", 1, -1, 0),
	})
	require.NoError(t, err)

	t.Run("ranked by cosine similarity", func(t *testing.T) {
		results, err := store.SearchVector(ctx, []float32{1, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, results, 4)
		assert.Equal(t, "x", results[0].DocumentID)
		assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-6)
		assert.Equal(t, "xy", results[1].DocumentID)
		assert.Equal(t, "y", results[2].DocumentID)
		assert.Equal(t, "-x", results[3].DocumentID)
		assert.InDelta(t, -1.0, results[3].SimilarityScore, 1e-6)
	})

	t.Run("limit", func(t *testing.T) {
		results, err := store.SearchVector(ctx, []float32{1, 0}, 2, nil)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("min relevance", func(t *testing.T) {
		results, err := store.SearchVector(ctx, []float32{1, 0}, 10, &SearchFilters{MinRelevance: 0.5})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("source filter", func(t *testing.T) {
		results, err := store.SearchVector(ctx, []float32{1, 0}, 10, &SearchFilters{Sources: []string{"b.txt"}})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "y", results[0].DocumentID)
	})

	t.Run("other dimensions never match", func(t *testing.T) {
		results, err := store.SearchVector(ctx, []float32{1, 0, 0}, 10, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("empty vector", func(t *testing.T) {
		_, err := store.SearchVector(ctx, nil, 10, nil)
		assert.ErrorIs(t, err, ErrInvalidVector)
	})
}

func TestTransaction(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	t.Run("rollback discards writes", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		require.NoError(t, err)

		_, err = tx.UpsertDocuments(ctx, []types.Document{testDoc("a", "a.txt", 0, 1)})
		require.NoError(t, err)
		count, err := tx.CountDocuments(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		require.NoError(t, tx.Rollback())

		count, err = store.CountDocuments(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("commit persists writes", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		require.NoError(t, err)

		_, err = tx.UpsertDocuments(ctx, []types.Document{testDoc("a", "a.txt", 0, 1)})
		require.NoError(t, err)
		require.NoError(t, tx.SetInfo(ctx, map[string]string{"model": "m"}))

		results, err := tx.SearchVector(ctx, []float32{1}, 1, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)

		require.NoError(t, tx.Commit())

		got, err := store.GetDocument(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "a.txt", got.Metadata.Source)
	})

	t.Run("nested transactions are refused", func(t *testing.T) {
		tx, err := store.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		_, err = tx.BeginTx(ctx)
		assert.Error(t, err)
		assert.NoError(t, tx.Close())
	})
}

func TestGetStatus(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, status.SchemaVersion)
	assert.Zero(t, status.DocumentsCount)
	assert.Zero(t, status.Dimension)
	assert.Empty(t, status.Info)

	_, err = store.UpsertDocuments(ctx, []types.Document{
		testDoc("a", "a.txt", 0, 1, 0, 0),
		testDoc("b", "b.txt", 0, 0, 1, 0),
		testDoc("c", "b.txt", 1, 0, 0, 1),
	})
	require.NoError(t, err)
	require.NoError(t, store.SetInfo(ctx, map[string]string{"provider": "local", "chunk_size": "500"}))
	require.NoError(t, store.SetInfo(ctx, map[string]string{"chunk_size": "200"}))

	status, err = store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.DocumentsCount)
	assert.Equal(t, 2, status.SourcesCount)
	assert.Equal(t, 3, status.Dimension)
	assert.Equal(t, map[string]string{"provider": "local", "chunk_size": "200"}, status.Info)
	assert.Positive(t, status.SizeMB)
}

func TestWriteFixture(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "fixture.db")

	docs := []types.Document{
		testDoc("a", "a.txt", 0, 1, 0),
		testDoc("b", "a.txt", 1, 0, 1),
	}
	require.NoError(t, WriteFixture(ctx, path, docs, map[string]string{"model": "m1"}))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	t.Run("readable through OpenFixture", func(t *testing.T) {
		store, err := OpenFixture(path)
		require.NoError(t, err)
		defer store.Close()

		list, err := store.ListDocuments(ctx)
		require.NoError(t, err)
		assert.Equal(t, docs, list)

		status, err := store.GetStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, "m1", status.Info["model"])
	})

	t.Run("rewriting replaces previous contents", func(t *testing.T) {
		replacement := []types.Document{testDoc("z", "z.txt", 0, 1, 2, 3)}
		require.NoError(t, WriteFixture(ctx, path, replacement, nil))

		store, err := OpenFixture(path)
		require.NoError(t, err)
		defer store.Close()

		list, err := store.ListDocuments(ctx)
		require.NoError(t, err)
		assert.Equal(t, replacement, list)
	})

	t.Run("invalid documents leave the old fixture intact", func(t *testing.T) {
		bad := []types.Document{testDoc("a", "a.txt", 0, 1), testDoc("b", "a.txt", 1, 1, 2)}
		err := WriteFixture(ctx, path, bad, nil)
		assert.ErrorIs(t, err, types.ErrDimensionMismatch)

		store, err := OpenFixture(path)
		require.NoError(t, err)
		defer store.Close()
		count, err := store.CountDocuments(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestOpenFixture_Missing(t *testing.T) {
	_, err := OpenFixture(filepath.Join(t.TempDir(), "missing.db"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
