package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding is the vector computed for one chunk or query
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // SHA-256 of the embedded text
}

func newEmbedding(vector []float32, provider, model, text string) *Embedding {
	return &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  provider,
		Model:     model,
		Hash:      ComputeHash(text),
	}
}

// clone copies the embedding so callers cannot mutate cached vectors
func (e *Embedding) clone() *Embedding {
	c := *e
	c.Vector = append([]float32(nil), e.Vector...)
	return &c
}

type EmbeddingRequest struct {
	Text  string
	Model string // Empty uses the provider's model
}

type BatchEmbeddingRequest struct {
	Texts []string
	Model string // Empty uses the provider's model
}

type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Vectors returns the raw vectors in request order
func (r *BatchEmbeddingResponse) Vectors() [][]float32 {
	vectors := make([][]float32, len(r.Embeddings))
	for i, emb := range r.Embeddings {
		vectors[i] = emb.Vector
	}
	return vectors
}

// checkShape verifies the response holds want non-empty vectors of one dimension
func (r *BatchEmbeddingResponse) checkShape(want int) error {
	if len(r.Embeddings) != want {
		return fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, want, len(r.Embeddings))
	}
	dim := -1
	for i, emb := range r.Embeddings {
		if emb == nil || len(emb.Vector) == 0 {
			return fmt.Errorf("%w: embedding %d is empty", ErrProviderFailed, i)
		}
		if dim == -1 {
			dim = len(emb.Vector)
		}
		if len(emb.Vector) != dim {
			return fmt.Errorf("%w: embedding %d has dimension %d, expected %d", ErrProviderFailed, i, len(emb.Vector), dim)
		}
	}
	return nil
}

// Embedder turns text into vectors. Implementations must be safe for concurrent use.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch returns one embedding per text, in the order of req.Texts
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension is 0 until a remote provider has answered once
	Dimension() int

	Provider() string
	Model() string
	Close() error
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits   int64
	Misses int64
	Len    int
}

// Cache is an LRU of embeddings keyed by model and text.
// A nil *Cache is valid and caches nothing.
type Cache struct {
	entries *lru.Cache[string, *Embedding]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache creates a cache holding up to maxLen embeddings; maxLen <= 0 means DefaultCacheSize
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	entries, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		entries, _ = lru.New[string, *Embedding](DefaultCacheSize)
	}
	return &Cache{entries: entries}
}

// Lookup returns a copy of the embedding of text under model
func (c *Cache) Lookup(model, text string) (*Embedding, bool) {
	if c == nil {
		return nil, false
	}
	emb, ok := c.entries.Get(cacheKey(model, text))
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return emb.clone(), true
}

// Store remembers the embedding of text under model
func (c *Cache) Store(model, text string, emb *Embedding) {
	if c == nil || emb == nil {
		return
	}
	c.entries.Add(cacheKey(model, text), emb.clone())
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

// Purge drops every entry and resets the counters
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.entries.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

func (c *Cache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Len: c.entries.Len()}
}

// ComputeHash returns the hex SHA-256 of text
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// cacheKey scopes a content hash to a model
func cacheKey(model, text string) string {
	return model + ":" + ComputeHash(text)
}

func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest rejects empty batches, empty texts and batches over MaxBatchSize
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	switch {
	case len(req.Texts) == 0:
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	case len(req.Texts) > MaxBatchSize:
		return fmt.Errorf("%w: %d texts, max %d", ErrBatchTooLarge, len(req.Texts), MaxBatchSize)
	}
	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
