package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/embedfixtures/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidVector is returned when a search vector is empty
	ErrInvalidVector = errors.New("query vector cannot be empty")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings.
// Rollback journaling keeps the fixture a single self-contained file.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) a fixture database and applies migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// OpenFixture opens an existing fixture database. Unlike NewSQLiteStorage it
// refuses to create a new file.
func OpenFixture(dbPath string) (*SQLiteStorage, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", dbPath, err)
	}
	return NewSQLiteStorage(dbPath)
}

// WriteFixture replaces the database at path with one holding docs and info.
// The database is built next to path and renamed into place, so readers never
// see a partial fixture.
func WriteFixture(ctx context.Context, path string, docs []types.Document, info map[string]string) (err error) {
	if err := types.ValidateDocuments(docs); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	_ = os.Remove(tmp)
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	store, err := NewSQLiteStorage(tmp)
	if err != nil {
		return err
	}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err = tx.UpsertDocuments(ctx, docs); err != nil {
		_ = tx.Rollback()
		_ = store.Close()
		return err
	}
	if err = tx.SetInfo(ctx, info); err != nil {
		_ = tx.Rollback()
		_ = store.Close()
		return err
	}
	if err = tx.Commit(); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to commit fixture: %w", err)
	}
	if err = store.Close(); err != nil {
		return fmt.Errorf("failed to close fixture: %w", err)
	}

	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move fixture into place: %w", err)
	}
	return nil
}

// Path returns the database file path
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Document operations

const upsertDocumentSQL = `
	INSERT INTO documents (id, content, embedding, dimension, source, chunk_index, version, type, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		content = excluded.content,
		embedding = excluded.embedding,
		dimension = excluded.dimension,
		source = excluded.source,
		chunk_index = excluded.chunk_index,
		version = excluded.version,
		type = excluded.type
`

// upsertDocumentsWithQuerier inserts or replaces docs. Every document must
// match the dimension already stored, if any.
func (s *SQLiteStorage) upsertDocumentsWithQuerier(ctx context.Context, q querier, docs []types.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	if err := types.ValidateDocuments(docs); err != nil {
		return 0, err
	}

	stored, err := dimensionWithQuerier(ctx, q)
	if err != nil {
		return 0, err
	}
	if stored > 0 && stored != docs[0].Dimension() {
		return 0, fmt.Errorf("%w: fixture has %d, documents have %d", types.ErrDimensionMismatch, stored, docs[0].Dimension())
	}

	stmt, err := q.PrepareContext(ctx, upsertDocumentSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for i := range docs {
		doc := &docs[i]
		_, err := stmt.ExecContext(ctx,
			doc.ID, doc.Content, serializeVector(doc.Embedding), doc.Dimension(),
			doc.Metadata.Source, doc.Metadata.ChunkIndex, doc.Metadata.Version, doc.Metadata.Type, now)
		if err != nil {
			return i, fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
		}
	}
	return len(docs), nil
}

// UpsertDocuments writes docs in a single transaction
func (s *SQLiteStorage) UpsertDocuments(ctx context.Context, docs []types.Document) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	n, err := s.upsertDocumentsWithQuerier(ctx, tx, docs)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit documents: %w", err)
	}
	return n, nil
}

const selectDocumentColumns = `SELECT id, content, embedding, source, chunk_index, version, type FROM documents`

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (types.Document, error) {
	var doc types.Document
	var blob []byte
	err := row.Scan(&doc.ID, &doc.Content, &blob,
		&doc.Metadata.Source, &doc.Metadata.ChunkIndex, &doc.Metadata.Version, &doc.Metadata.Type)
	if err != nil {
		return doc, err
	}
	doc.Embedding = deserializeVector(blob)
	return doc, nil
}

func (s *SQLiteStorage) getDocumentWithQuerier(ctx context.Context, q querier, id string) (*types.Document, error) {
	doc, err := scanDocument(q.QueryRowContext(ctx, selectDocumentColumns+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	return s.getDocumentWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) queryDocuments(ctx context.Context, q querier, query string, args ...interface{}) ([]types.Document, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]types.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) listDocumentsWithQuerier(ctx context.Context, q querier) ([]types.Document, error) {
	return s.queryDocuments(ctx, q, selectDocumentColumns+" ORDER BY source, chunk_index, id")
}

// ListDocuments returns every document ordered by source and chunk index
func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]types.Document, error) {
	return s.listDocumentsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) listDocumentsBySourceWithQuerier(ctx context.Context, q querier, source string) ([]types.Document, error) {
	return s.queryDocuments(ctx, q, selectDocumentColumns+" WHERE source = ? ORDER BY chunk_index, id", source)
}

func (s *SQLiteStorage) ListDocumentsBySource(ctx context.Context, source string) ([]types.Document, error) {
	return s.listDocumentsBySourceWithQuerier(ctx, s.querier(), source)
}

func (s *SQLiteStorage) deleteDocumentsBySourceWithQuerier(ctx context.Context, q querier, source string) (int, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM documents WHERE source = ?", source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStorage) DeleteDocumentsBySource(ctx context.Context, source string) (int, error) {
	return s.deleteDocumentsBySourceWithQuerier(ctx, s.querier(), source)
}

func countDocumentsWithQuerier(ctx context.Context, q querier) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int, error) {
	return countDocumentsWithQuerier(ctx, s.querier())
}

// dimensionWithQuerier returns the stored embedding dimension, or 0 when empty
func dimensionWithQuerier(ctx context.Context, q querier) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, "SELECT dimension FROM documents LIMIT 1").Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read dimension: %w", err)
	}
	return dim, nil
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.querier(), vector, limit, filters)
}

// Fixture info operations

func setInfoWithQuerier(ctx context.Context, q querier, info map[string]string) error {
	now := time.Now().UTC()
	for key, value := range info {
		_, err := q.ExecContext(ctx, `
			INSERT INTO fixture_info (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value, now)
		if err != nil {
			return fmt.Errorf("failed to set fixture info %s: %w", key, err)
		}
	}
	return nil
}

// SetInfo records generation parameters such as provider and model
func (s *SQLiteStorage) SetInfo(ctx context.Context, info map[string]string) error {
	return setInfoWithQuerier(ctx, s.querier(), info)
}

func getInfoWithQuerier(ctx context.Context, q querier) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT key, value FROM fixture_info")
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	info := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		info[key] = value
	}
	return info, rows.Err()
}

// Status operations

func statusWithQuerier(ctx context.Context, q querier) (*FixtureStatus, error) {
	version, err := currentVersion(ctx, q)
	if err != nil {
		return nil, err
	}
	status := &FixtureStatus{SchemaVersion: version.String()}

	if status.DocumentsCount, err = countDocumentsWithQuerier(ctx, q); err != nil {
		return nil, err
	}
	if err := q.QueryRowContext(ctx, "SELECT COUNT(DISTINCT source) FROM documents").Scan(&status.SourcesCount); err != nil {
		return nil, err
	}
	if status.Dimension, err = dimensionWithQuerier(ctx, q); err != nil {
		return nil, err
	}
	if status.Info, err = getInfoWithQuerier(ctx, q); err != nil {
		return nil, err
	}

	// ORDER BY keeps the column's declared type so drivers return a time
	var createdAt sql.NullTime
	err = q.QueryRowContext(ctx, "SELECT created_at FROM documents ORDER BY created_at LIMIT 1").Scan(&createdAt)
	if err == nil && createdAt.Valid {
		status.CreatedAt = createdAt.Time
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*FixtureStatus, error) {
	return statusWithQuerier(ctx, s.querier())
}

// Transaction implementations

func (t *sqliteTx) UpsertDocuments(ctx context.Context, docs []types.Document) (int, error) {
	return t.storage.upsertDocumentsWithQuerier(ctx, t.querier(), docs)
}

func (t *sqliteTx) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	return t.storage.getDocumentWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListDocuments(ctx context.Context) ([]types.Document, error) {
	return t.storage.listDocumentsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) ListDocumentsBySource(ctx context.Context, source string) ([]types.Document, error) {
	return t.storage.listDocumentsBySourceWithQuerier(ctx, t.querier(), source)
}

func (t *sqliteTx) DeleteDocumentsBySource(ctx context.Context, source string) (int, error) {
	return t.storage.deleteDocumentsBySourceWithQuerier(ctx, t.querier(), source)
}

func (t *sqliteTx) CountDocuments(ctx context.Context) (int, error) {
	return countDocumentsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, t.querier(), vector, limit, filters)
}

func (t *sqliteTx) SetInfo(ctx context.Context, info map[string]string) error {
	return setInfoWithQuerier(ctx, t.querier(), info)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*FixtureStatus, error) {
	return statusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
