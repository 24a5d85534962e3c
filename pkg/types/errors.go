package types

import "errors"

// Domain errors for type validation
var (
	// Document errors
	ErrMissingID         = errors.New("document ID is required")
	ErrEmptyContent      = errors.New("content cannot be empty")
	ErrMissingEmbedding  = errors.New("embedding is required")
	ErrDimensionMismatch = errors.New("embedding dimensions do not match")
	ErrMissingSource     = errors.New("metadata source is required")
	ErrInvalidChunkIndex = errors.New("chunk index must be >= 0")

	// Search result errors
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between -1 and 1")
)
