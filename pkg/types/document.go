package types

import "fmt"

const (
	// MetadataVersion is the metadata schema version written to every document
	MetadataVersion = 1

	// TypeTextSegment marks a document produced by chunking plain text
	TypeTextSegment = "text_segment"
)

// Metadata describes where a document came from
type Metadata struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	Version    int    `json:"version"`
	Type       string `json:"type"`
}

// NewMetadata returns metadata for the index-th chunk of source
func NewMetadata(source string, index int) Metadata {
	return Metadata{
		Source:     source,
		ChunkIndex: index,
		Version:    MetadataVersion,
		Type:       TypeTextSegment,
	}
}

// Validate checks the metadata fields
func (m Metadata) Validate() error {
	if m.Source == "" {
		return ErrMissingSource
	}
	if m.ChunkIndex < 0 {
		return ErrInvalidChunkIndex
	}
	return nil
}

// Document is one chunk of text with its embedding, ready to be loaded into a vector store
type Document struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
	Metadata  Metadata  `json:"metadata"`
}

// Dimension returns the embedding length
func (d *Document) Dimension() int {
	return len(d.Embedding)
}

// Validate checks that the document is complete
func (d *Document) Validate() error {
	if d.ID == "" {
		return ErrMissingID
	}
	if d.Content == "" {
		return ErrEmptyContent
	}
	if len(d.Embedding) == 0 {
		return ErrMissingEmbedding
	}
	return d.Metadata.Validate()
}

// ValidateDocuments validates every document and checks they share one embedding dimension
func ValidateDocuments(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	dim := docs[0].Dimension()
	for i := range docs {
		if err := docs[i].Validate(); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
		if docs[i].Dimension() != dim {
			return fmt.Errorf("document %d: %w: got %d, want %d", i, ErrDimensionMismatch, docs[i].Dimension(), dim)
		}
	}
	return nil
}
