package fixture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/embedfixtures/pkg/types"
)

// Format selects the on-disk fixture layout
type Format string

const (
	// FormatSOA is the columnar layout: parallel ids, documents, embeddings and metadatas arrays
	FormatSOA Format = "soa"
	// FormatRows is the insert payload layout: {"documents": [{id, content, embedding, metadata}]}
	FormatRows Format = "rows"
	// FormatSQLite is handled by the storage package, not by Write
	FormatSQLite Format = "sqlite"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported fixture format")
	ErrMalformedFixture  = errors.New("malformed fixture")
)

// ParseFormat parses a format name. The empty string selects FormatSOA.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatSOA:
		return FormatSOA, nil
	case FormatRows:
		return FormatRows, nil
	case FormatSQLite:
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q (want soa, rows or sqlite)", ErrUnsupportedFormat, s)
	}
}

// SOA is the struct-of-arrays fixture. Index i of every array describes the same document.
type SOA struct {
	IDs        []string         `json:"ids"`
	Documents  []string         `json:"documents"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []types.Metadata `json:"metadatas"`
}

// Rows is the row-oriented fixture
type Rows struct {
	Documents []types.Document `json:"documents"`
}

// ToSOA converts documents to the columnar layout
func ToSOA(docs []types.Document) SOA {
	soa := SOA{
		IDs:        make([]string, len(docs)),
		Documents:  make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]types.Metadata, len(docs)),
	}
	for i, doc := range docs {
		soa.IDs[i] = doc.ID
		soa.Documents[i] = doc.Content
		soa.Embeddings[i] = doc.Embedding
		soa.Metadatas[i] = doc.Metadata
	}
	return soa
}

// ToDocuments converts the columnar layout back to documents
func (s SOA) ToDocuments() ([]types.Document, error) {
	n := len(s.IDs)
	if len(s.Documents) != n || len(s.Embeddings) != n || len(s.Metadatas) != n {
		return nil, fmt.Errorf("%w: array lengths differ (ids=%d documents=%d embeddings=%d metadatas=%d)",
			ErrMalformedFixture, n, len(s.Documents), len(s.Embeddings), len(s.Metadatas))
	}

	docs := make([]types.Document, n)
	for i := range docs {
		docs[i] = types.Document{
			ID:        s.IDs[i],
			Content:   s.Documents[i],
			Embedding: s.Embeddings[i],
			Metadata:  s.Metadatas[i],
		}
	}
	return docs, nil
}

// Write encodes docs as indented JSON in the given format
func Write(w io.Writer, format Format, docs []types.Document) error {
	if err := types.ValidateDocuments(docs); err != nil {
		return fmt.Errorf("invalid documents: %w", err)
	}

	var payload interface{}
	switch format {
	case FormatSOA:
		payload = ToSOA(docs)
	case FormatRows:
		if docs == nil {
			docs = []types.Document{}
		}
		payload = Rows{Documents: docs}
	default:
		return fmt.Errorf("%w: %q cannot be written as JSON", ErrUnsupportedFormat, format)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return nil
}

// WriteFile writes the fixture to path atomically, creating parent directories
func WriteFile(path string, format Format, docs []types.Document) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".fixture-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := Write(tmp, format, docs); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename fixture: %w", err)
	}
	return nil
}

// Decode reads a fixture in either JSON layout, detected from its keys
func Decode(r io.Reader) ([]types.Document, Format, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read fixture: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedFixture, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if _, ok := probe["ids"]; ok {
		var soa SOA
		if err := dec.Decode(&soa); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrMalformedFixture, err)
		}
		docs, err := soa.ToDocuments()
		return docs, FormatSOA, err
	}

	if _, ok := probe["documents"]; ok {
		var rows Rows
		if err := dec.Decode(&rows); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrMalformedFixture, err)
		}
		return rows.Documents, FormatRows, nil
	}

	return nil, "", fmt.Errorf("%w: neither \"ids\" nor \"documents\" present", ErrMalformedFixture)
}

// Set is a fixture loaded into memory
type Set struct {
	Path   string
	Format Format
	docs   []types.Document
}

// Load reads a JSON fixture file
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	docs, format, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := types.ValidateDocuments(docs); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	return &Set{Path: path, Format: format, docs: docs}, nil
}

// NewSet wraps documents that are already in memory
func NewSet(docs []types.Document) *Set {
	return &Set{docs: docs}
}

// ListDocuments returns the fixture's documents
func (s *Set) ListDocuments(ctx context.Context) ([]types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.docs, nil
}

// Len returns the number of documents
func (s *Set) Len() int {
	return len(s.docs)
}

// Dimension returns the shared embedding dimension, or 0 for an empty set
func (s *Set) Dimension() int {
	if len(s.docs) == 0 {
		return 0
	}
	return s.docs[0].Dimension()
}
