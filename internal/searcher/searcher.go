package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/embedfixtures/internal/embedder"
	"github.com/dshills/embedfixtures/internal/storage"
	"github.com/dshills/embedfixtures/pkg/types"
)

const (
	// DefaultLimit is used when a request leaves Limit at zero
	DefaultLimit = 10
	// MaxLimit is the largest accepted Limit
	MaxLimit = 100
	// DefaultRRFConstant is the k in 1/(k + rank)
	DefaultRRFConstant = 60
)

var (
	ErrEmptyQuery       = errors.New("query cannot be empty")
	ErrInvalidLimit     = fmt.Errorf("limit must be between 1 and %d", MaxLimit)
	ErrInvalidMinScore  = errors.New("min score must be between -1 and 1")
	ErrUnsupportedMode  = errors.New("unsupported search mode")
	ErrNoEmbedder       = errors.New("embedder not initialized")
	ErrNoDocumentSource = errors.New("document source not initialized")
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeVector  SearchMode = "vector"  // Cosine similarity only
	SearchModeKeyword SearchMode = "keyword" // Query term overlap only
	SearchModeHybrid  SearchMode = "hybrid"  // Vector + keyword with RRF
)

// DocumentSource is anything that can list fixture documents. Both
// *fixture.Set and *storage.SQLiteStorage satisfy it.
type DocumentSource interface {
	ListDocuments(ctx context.Context) ([]types.Document, error)
}

// VectorIndex is implemented by sources that can rank documents themselves.
// Vector searches use it instead of scanning ListDocuments.
type VectorIndex interface {
	SearchVector(ctx context.Context, vector []float32, limit int, filters *storage.SearchFilters) ([]storage.VectorResult, error)
	GetDocument(ctx context.Context, id string) (*types.Document, error)
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query       string
	Limit       int
	Mode        SearchMode
	Sources     []string // Restrict to these source files
	MinScore    float64  // Minimum similarity; applies to the vector side of hybrid search
	UseCache    bool
	CacheTTL    time.Duration
	RRFConstant float64
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results       []types.SearchResult
	TotalResults  int
	SearchMode    SearchMode
	Duration      time.Duration
	CacheHit      bool
	VectorResults int
	TextResults   int
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher ranks the documents of one fixture against free-text queries
type Searcher struct {
	source   DocumentSource
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// NewSearcher creates a new Searcher instance
func NewSearcher(source DocumentSource, emb embedder.Embedder) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](1000)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		source:   source,
		embedder: emb,
		cache:    cache,
	}
}

// Search performs a search based on the request parameters
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if s.source == nil {
		return nil, ErrNoDocumentSource
	}

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if req.Mode != SearchModeKeyword && s.embedder == nil {
		return nil, ErrNoEmbedder
	}

	if req.UseCache {
		if cached, ok := s.checkCache(req); ok {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	var response *SearchResponse
	var err error

	switch req.Mode {
	case SearchModeVector:
		response, err = s.vectorSearch(ctx, req)
	case SearchModeKeyword:
		response, err = s.keywordSearch(ctx, req)
	case SearchModeHybrid:
		response, err = s.hybridSearch(ctx, req)
	}

	if err != nil {
		return nil, err
	}

	response.Duration = time.Since(startTime)
	response.SearchMode = req.Mode

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}

	return response, nil
}

// rankedResult represents a document with its relevance score and rank
type rankedResult struct {
	id    string
	score float64
	rank  int
}

// embedQuery returns the query vector
func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	return embedding.Vector, nil
}

// vectorRanking scores documents by cosine similarity. docs may be nil when
// the source is a VectorIndex.
func (s *Searcher) vectorRanking(ctx context.Context, req SearchRequest, vector []float32, docs []types.Document, limit int) ([]rankedResult, error) {
	if idx, ok := s.source.(VectorIndex); ok && docs == nil {
		hits, err := idx.SearchVector(ctx, vector, limit, &storage.SearchFilters{
			Sources:      req.Sources,
			MinRelevance: req.MinScore,
		})
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 {
			ranked := make([]rankedResult, len(hits))
			for i, hit := range hits {
				ranked[i] = rankedResult{id: hit.DocumentID, score: hit.SimilarityScore, rank: i + 1}
			}
			return ranked, nil
		}
		// Nothing matched; scan to tell an empty result from a dimension mismatch
	}

	if docs == nil {
		var err error
		if docs, err = s.listDocuments(ctx, req); err != nil {
			return nil, err
		}
	}

	ranked := make([]rankedResult, 0, len(docs))
	matching := 0
	for i := range docs {
		if docs[i].Dimension() != len(vector) {
			continue
		}
		matching++
		score := storage.CosineSimilarity(vector, docs[i].Embedding)
		if req.MinScore > 0 && score < req.MinScore {
			continue
		}
		ranked = append(ranked, rankedResult{id: docs[i].ID, score: score})
	}
	if len(docs) > 0 && matching == 0 {
		return nil, fmt.Errorf("%w: query has %d dimensions, fixture has %d",
			types.ErrDimensionMismatch, len(vector), docs[0].Dimension())
	}

	sortRankedResults(ranked)
	return truncate(ranked, limit), nil
}

// keywordRanking scores documents by the fraction of distinct query terms they contain
func keywordRanking(query string, docs []types.Document, minScore float64, limit int) []rankedResult {
	terms := uniqueTerms(query)
	if len(terms) == 0 {
		return []rankedResult{}
	}

	ranked := make([]rankedResult, 0)
	for i := range docs {
		content := make(map[string]bool)
		for _, t := range tokenize(docs[i].Content) {
			content[t] = true
		}
		matched := 0
		for _, t := range terms {
			if content[t] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		score := float64(matched) / float64(len(terms))
		if minScore > 0 && score < minScore {
			continue
		}
		ranked = append(ranked, rankedResult{id: docs[i].ID, score: score})
	}

	sortRankedResults(ranked)
	return truncate(ranked, limit)
}

// vectorSearch performs only vector similarity search
func (s *Searcher) vectorSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	vector, err := s.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	// Sources without a vector index are scanned; the same documents back the results
	var docs []types.Document
	if _, ok := s.source.(VectorIndex); !ok {
		if docs, err = s.listDocuments(ctx, req); err != nil {
			return nil, err
		}
	}

	ranked, err := s.vectorRanking(ctx, req, vector, docs, req.Limit)
	if err != nil {
		return nil, err
	}

	results, err := s.fetchResults(ctx, ranked, docs, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(ranked),
	}, nil
}

// keywordSearch performs only keyword matching and needs no embedder
func (s *Searcher) keywordSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	docs, err := s.listDocuments(ctx, req)
	if err != nil {
		return nil, err
	}

	ranked := keywordRanking(req.Query, docs, req.MinScore, req.Limit)

	results, err := s.fetchResults(ctx, ranked, docs, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		TextResults:  len(ranked),
	}, nil
}

// hybridSearch fuses vector and keyword rankings with Reciprocal Rank Fusion.
// A failed vector side degrades to keyword results.
func (s *Searcher) hybridSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	docs, err := s.listDocuments(ctx, req)
	if err != nil {
		return nil, err
	}

	var vectorRanked, textRanked []rankedResult
	var vectorErr error

	var g errgroup.Group
	g.Go(func() error {
		vector, err := s.embedQuery(ctx, req.Query)
		if err != nil {
			vectorErr = err
			return nil
		}
		vectorRanked, vectorErr = s.vectorRanking(ctx, req, vector, docs, req.Limit*2)
		return nil
	})
	g.Go(func() error {
		textRanked = keywordRanking(req.Query, docs, 0, req.Limit*2)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if vectorErr != nil && len(textRanked) == 0 {
		return nil, vectorErr
	}

	fused := applyRRF(vectorRanked, textRanked, req.RRFConstant)
	results, err := s.fetchResults(ctx, fused, docs, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vectorRanked),
		TextResults:   len(textRanked),
	}, nil
}

// applyRRF applies Reciprocal Rank Fusion to combine rankings.
// RRF formula: RRF(d) = sum of 1/(k + rank(d))
func applyRRF(vectorResults, textResults []rankedResult, k float64) []rankedResult {
	if k == 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[string]float64)
	for rank, r := range vectorResults {
		scores[r.id] += 1.0 / (k + float64(rank+1))
	}
	for rank, r := range textResults {
		scores[r.id] += 1.0 / (k + float64(rank+1))
	}

	results := make([]rankedResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, rankedResult{id: id, score: score})
	}

	// Map order is random; fix it before the stable sort so ties are reproducible
	sort.Slice(results, func(i, j int) bool { return results[i].id < results[j].id })
	sortRankedResults(results)

	for i := range results {
		results[i].rank = i + 1
	}

	return results
}

// listDocuments loads the source and applies the source filter
func (s *Searcher) listDocuments(ctx context.Context, req SearchRequest) ([]types.Document, error) {
	docs, err := s.source.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if len(req.Sources) == 0 {
		return docs, nil
	}

	allowed := make(map[string]bool, len(req.Sources))
	for _, src := range req.Sources {
		allowed[src] = true
	}
	filtered := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		if allowed[doc.Metadata.Source] {
			filtered = append(filtered, doc)
		}
	}
	return filtered, nil
}

// fetchResults turns rankings into search results. Documents come from docs
// when given, otherwise from the VectorIndex.
func (s *Searcher) fetchResults(ctx context.Context, ranked []rankedResult, docs []types.Document, limit int) ([]types.SearchResult, error) {
	if limit > len(ranked) {
		limit = len(ranked)
	}

	byID := make(map[string]*types.Document, len(docs))
	for i := range docs {
		byID[docs[i].ID] = &docs[i]
	}
	idx, _ := s.source.(VectorIndex)

	results := make([]types.SearchResult, 0, limit)
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, ok := byID[ranked[i].id]
		if !ok {
			if idx == nil {
				continue
			}
			fetched, err := idx.GetDocument(ctx, ranked[i].id)
			if err != nil {
				continue // Skip documents that can't be loaded
			}
			doc = fetched
		}

		results = append(results, types.SearchResult{
			DocumentID:     doc.ID,
			Rank:           len(results) + 1,
			RelevanceScore: ranked[i].score,
			Content:        doc.Content,
			Metadata:       doc.Metadata,
		})
	}

	return results, nil
}

// validateRequest fills defaults and rejects out-of-range parameters
func (s *Searcher) validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return ErrEmptyQuery
	}

	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit < 1 || req.Limit > MaxLimit {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, req.Limit)
	}

	if req.MinScore < -1 || req.MinScore > 1 {
		return ErrInvalidMinScore
	}

	switch req.Mode {
	case "":
		req.Mode = SearchModeVector
	case SearchModeVector, SearchModeKeyword, SearchModeHybrid:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMode, req.Mode)
	}

	if req.RRFConstant == 0 {
		req.RRFConstant = DefaultRRFConstant
	}

	if req.CacheTTL == 0 {
		req.CacheTTL = 1 * time.Hour
	}

	return nil
}

// checkCache looks up cached search results
func (s *Searcher) checkCache(req SearchRequest) (*SearchResponse, bool) {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil, false
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil, false
	}

	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response, true
}

// storeInCache saves search results to cache
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops every cached response, e.g. after the fixture changed
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := *src
	// SearchResult holds only values, so copying the slice is a deep copy
	dst.Results = append([]types.SearchResult(nil), src.Results...)
	return &dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%d", req.Limit))
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%.4f", req.MinScore))
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%.2f", req.RRFConstant))

	if len(req.Sources) > 0 {
		sources := append([]string(nil), req.Sources...)
		sort.Strings(sources)
		data.WriteString("|sources:")
		data.WriteString(strings.Join(sources, ","))
	}

	return sha256.Sum256([]byte(data.String()))
}

// sortRankedResults sorts by score descending; equal scores keep input order
func sortRankedResults(results []rankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
}

func truncate(ranked []rankedResult, limit int) []rankedResult {
	if limit > 0 && len(ranked) > limit {
		return ranked[:limit]
	}
	return ranked
}

// tokenize lower-cases text and splits it into letter/digit runs
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func uniqueTerms(text string) []string {
	seen := make(map[string]bool)
	terms := make([]string, 0)
	for _, t := range tokenize(text) {
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	return terms
}
