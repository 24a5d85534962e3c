package storage

import (
	"context"
	"time"

	"github.com/dshills/embedfixtures/pkg/types"
)

// Storage defines the interface for persisting and querying fixture documents
type Storage interface {
	// Document operations
	UpsertDocuments(ctx context.Context, docs []types.Document) (int, error)
	GetDocument(ctx context.Context, id string) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]types.Document, error)
	ListDocumentsBySource(ctx context.Context, source string) ([]types.Document, error)
	DeleteDocumentsBySource(ctx context.Context, source string) (deletedCount int, err error)
	CountDocuments(ctx context.Context) (int, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)

	// Fixture info operations
	SetInfo(ctx context.Context, info map[string]string) error
	GetStatus(ctx context.Context) (*FixtureStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// SearchFilters narrows a vector search
type SearchFilters struct {
	Sources      []string // Only documents from these source files
	MinRelevance float64  // Minimum cosine similarity
}

// VectorResult is one scored hit from SearchVector
type VectorResult struct {
	DocumentID      string
	SimilarityScore float64
}

// FixtureStatus summarizes the contents of a fixture database
type FixtureStatus struct {
	SchemaVersion  string
	DocumentsCount int
	SourcesCount   int
	Dimension      int
	Info           map[string]string
	CreatedAt      time.Time
	SizeMB         float64
}
