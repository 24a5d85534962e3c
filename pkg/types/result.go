package types

// SearchResult represents a single search result with relevance information
type SearchResult struct {
	// Identification
	DocumentID string
	Rank       int // Position in result set (1-based)

	// Scoring
	RelevanceScore float64 // Cosine similarity between query and document

	Content  string
	Metadata Metadata
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.DocumentID == "" {
		return ErrMissingID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.RelevanceScore < -1 || sr.RelevanceScore > 1 {
		return ErrInvalidRelevanceScore
	}

	if sr.Content == "" {
		return ErrEmptyContent
	}

	return nil
}
