package searcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/embedfixtures/internal/embedder"
	"github.com/dshills/embedfixtures/internal/fixture"
	"github.com/dshills/embedfixtures/internal/storage"
	"github.com/dshills/embedfixtures/pkg/types"
)

// mockEmbedder returns fixed vectors for known queries
type mockEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   atomic.Int32
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	vector, ok := m.vectors[req.Text]
	if !ok {
		vector = []float32{0, 0, 1}
	}
	return &embedder.Embedding{Vector: vector, Dimension: len(vector), Provider: "mock", Model: "mock-v1"}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	resp := &embedder.BatchEmbeddingResponse{Provider: "mock", Model: "mock-v1"}
	for _, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		resp.Embeddings = append(resp.Embeddings, emb)
	}
	return resp, nil
}

func (m *mockEmbedder) Dimension() int   { return 3 }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{vectors: map[string][]float32{
		"foxes":      {1, 0, 0},
		"dogs":       {0, 1, 0},
		"quick fox":  {1, 0, 0},
		"lazy dog":   {0, 1, 0},
		"brown fox":  {0.9, 0.1, 0},
		"two dims":   {1, 0},
		"animals":    {0.7, 0.7, 0},
		"fox typing": {1, 0, 0},
	}}
}

func testDocuments() []types.Document {
	return []types.Document{
		{ID: "fox-0", Content: "The quick brown fox ", Embedding: []float32{1, 0, 0}, Metadata: types.NewMetadata("fox.txt", 0)},
		{ID: "fox-1", Content: "jumps over the lazy dog", Embedding: []float32{0.6, 0.8, 0}, Metadata: types.NewMetadata("fox.txt", 1)},
		{ID: "dog-0", Content: "Dogs sleep all day", Embedding: []float32{0, 1, 0}, Metadata: types.NewMetadata("dog.txt", 0)},
		{ID: "cat-0", Content: "Cats ignore everyone", Embedding: []float32{0.1, 0, 1}, Metadata: types.NewMetadata("cat.txt", 0)},
	}
}

func newSetSearcher() (*Searcher, *mockEmbedder) {
	emb := newMockEmbedder()
	return NewSearcher(fixture.NewSet(testDocuments()), emb), emb
}

func newStorageSearcher(t *testing.T) *Searcher {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "fixture.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.UpsertDocuments(context.Background(), testDocuments())
	require.NoError(t, err)
	return NewSearcher(store, newMockEmbedder())
}

func resultIDs(results []types.SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocumentID
	}
	return ids
}

func TestValidateRequest(t *testing.T) {
	s, _ := newSetSearcher()

	tests := []struct {
		name    string
		req     SearchRequest
		wantErr error
		check   func(t *testing.T, req SearchRequest)
	}{
		{
			name: "defaults applied",
			req:  SearchRequest{Query: "  foxes  "},
			check: func(t *testing.T, req SearchRequest) {
				assert.Equal(t, "foxes", req.Query)
				assert.Equal(t, DefaultLimit, req.Limit)
				assert.Equal(t, SearchModeVector, req.Mode)
				assert.Equal(t, float64(DefaultRRFConstant), req.RRFConstant)
				assert.Positive(t, req.CacheTTL)
			},
		},
		{name: "empty query", req: SearchRequest{Query: ""}, wantErr: ErrEmptyQuery},
		{name: "whitespace query", req: SearchRequest{Query: " \t\n"}, wantErr: ErrEmptyQuery},
		{name: "negative limit", req: SearchRequest{Query: "q", Limit: -1}, wantErr: ErrInvalidLimit},
		{name: "limit above max", req: SearchRequest{Query: "q", Limit: MaxLimit + 1}, wantErr: ErrInvalidLimit},
		{name: "max limit accepted", req: SearchRequest{Query: "q", Limit: MaxLimit}},
		{name: "min score too high", req: SearchRequest{Query: "q", MinScore: 1.5}, wantErr: ErrInvalidMinScore},
		{name: "negative min score accepted", req: SearchRequest{Query: "q", MinScore: -0.5}},
		{name: "unknown mode", req: SearchRequest{Query: "q", Mode: "fuzzy"}, wantErr: ErrUnsupportedMode},
		{name: "explicit mode kept", req: SearchRequest{Query: "q", Mode: SearchModeHybrid}, check: func(t *testing.T, req SearchRequest) {
			assert.Equal(t, SearchModeHybrid, req.Mode)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := s.validateRequest(&req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, req)
			}
		})
	}
}

func TestSearchModeVector(t *testing.T) {
	ctx := context.Background()

	for name, s := range map[string]*Searcher{
		"fixture set": func() *Searcher { s, _ := newSetSearcher(); return s }(),
		"sqlite":      newStorageSearcher(t),
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := s.Search(ctx, SearchRequest{Query: "foxes", Limit: 3})
			require.NoError(t, err)
			assert.Equal(t, SearchModeVector, resp.SearchMode)
			require.Len(t, resp.Results, 3)
			assert.Equal(t, []string{"fox-0", "fox-1", "cat-0"}, resultIDs(resp.Results))
			assert.Equal(t, 3, resp.TotalResults)
			assert.Equal(t, resp.TotalResults, len(resp.Results))

			top := resp.Results[0]
			assert.Equal(t, 1, top.Rank)
			assert.InDelta(t, 1.0, top.RelevanceScore, 1e-6)
			assert.Equal(t, "The quick brown fox ", top.Content)
			assert.Equal(t, types.NewMetadata("fox.txt", 0), top.Metadata)
			assert.InDelta(t, 0.6, resp.Results[1].RelevanceScore, 1e-6)

			for i, r := range resp.Results {
				assert.Equal(t, i+1, r.Rank)
				assert.NoError(t, r.Validate())
			}
		})
	}
}

func TestSearchModeVector_LocalEmbeddingsOverSet(t *testing.T) {
	ctx := context.Background()
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	texts := []string{"The quick brown fox", "Sphinx of black quartz"}
	batch, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	require.NoError(t, err)

	docs := make([]types.Document, len(texts))
	for i, text := range texts {
		docs[i] = types.Document{
			ID:        text,
			Content:   text,
			Embedding: batch.Embeddings[i].Vector,
			Metadata:  types.NewMetadata("pangrams.txt", i),
		}
	}

	resp, err := NewSearcher(fixture.NewSet(docs), emb).Search(ctx, SearchRequest{Query: "The quick brown fox", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.VectorResults)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "The quick brown fox", resp.Results[0].DocumentID)
	assert.InDelta(t, 1.0, resp.Results[0].RelevanceScore, 1e-5)
	assert.Equal(t, "pangrams.txt", resp.Results[1].Metadata.Source)
}

func TestSearchModeVector_Filters(t *testing.T) {
	ctx := context.Background()
	s, _ := newSetSearcher()

	resp, err := s.Search(ctx, SearchRequest{Query: "foxes", MinScore: 0.5})
	require.NoError(t, err)
	assert.Equal(t, []string{"fox-0", "fox-1"}, resultIDs(resp.Results))

	resp, err = s.Search(ctx, SearchRequest{Query: "foxes", Sources: []string{"dog.txt", "cat.txt"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dog-0", "cat-0"}, resultIDs(resp.Results))

	sqlite := newStorageSearcher(t)
	resp, err = sqlite.Search(ctx, SearchRequest{Query: "foxes", MinScore: 0.5, Sources: []string{"fox.txt"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"fox-0", "fox-1"}, resultIDs(resp.Results))
}

func TestSearchModeVector_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newSetSearcher()

	_, err := s.Search(ctx, SearchRequest{Query: "two dims"})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)

	_, err = newStorageSearcher(t).Search(ctx, SearchRequest{Query: "two dims"})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestSearch_EmptyFixture(t *testing.T) {
	s := NewSearcher(fixture.NewSet(nil), newMockEmbedder())
	resp, err := s.Search(context.Background(), SearchRequest{Query: "foxes"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearchModeKeyword(t *testing.T) {
	s, emb := newSetSearcher()
	ctx := context.Background()

	resp, err := s.Search(ctx, SearchRequest{Query: "lazy DOG", Mode: SearchModeKeyword})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "fox-1", resp.Results[0].DocumentID)
	assert.InDelta(t, 1.0, resp.Results[0].RelevanceScore, 1e-9)
	assert.Equal(t, []string{"fox-1"}, resultIDs(resp.Results))
	assert.Zero(t, emb.calls.Load(), "keyword search must not embed the query")

	resp, err = s.Search(ctx, SearchRequest{Query: "the dog", Mode: SearchModeKeyword})
	require.NoError(t, err)
	assert.Equal(t, []string{"fox-1", "fox-0"}, resultIDs(resp.Results))
	assert.InDelta(t, 0.5, resp.Results[1].RelevanceScore, 1e-9)

	resp, err = s.Search(ctx, SearchRequest{Query: "?!", Mode: SearchModeKeyword})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearchModeKeyword_NoEmbedderNeeded(t *testing.T) {
	s := NewSearcher(fixture.NewSet(testDocuments()), nil)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "cats", Mode: SearchModeKeyword})
	require.NoError(t, err)
	assert.Equal(t, []string{"cat-0"}, resultIDs(resp.Results))

	_, err = s.Search(context.Background(), SearchRequest{Query: "cats"})
	assert.ErrorIs(t, err, ErrNoEmbedder)
}

func TestSearchModeHybrid(t *testing.T) {
	s, _ := newSetSearcher()

	resp, err := s.Search(context.Background(), SearchRequest{Query: "lazy dog", Mode: SearchModeHybrid, Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, SearchModeHybrid, resp.SearchMode)
	require.NotEmpty(t, resp.Results)
	// fox-1 ranks well on both sides
	assert.Equal(t, "fox-1", resp.Results[0].DocumentID)
	assert.Positive(t, resp.VectorResults)
	assert.Positive(t, resp.TextResults)
}

func TestSearchModeHybrid_EmbedderFailure(t *testing.T) {
	emb := newMockEmbedder()
	emb.err = errors.New("provider down")
	s := NewSearcher(fixture.NewSet(testDocuments()), emb)
	ctx := context.Background()

	resp, err := s.Search(ctx, SearchRequest{Query: "lazy dog", Mode: SearchModeHybrid})
	require.NoError(t, err, "keyword side still answers")
	assert.Equal(t, []string{"fox-1"}, resultIDs(resp.Results))

	_, err = s.Search(ctx, SearchRequest{Query: "zebra", Mode: SearchModeHybrid})
	assert.Error(t, err)

	_, err = s.Search(ctx, SearchRequest{Query: "lazy dog"})
	assert.Error(t, err)
}

func TestSearch_ContextCancelled(t *testing.T) {
	s, _ := newSetSearcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, SearchRequest{Query: "foxes", Mode: SearchModeKeyword})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_NoSource(t *testing.T) {
	s := NewSearcher(nil, newMockEmbedder())
	_, err := s.Search(context.Background(), SearchRequest{Query: "foxes"})
	assert.ErrorIs(t, err, ErrNoDocumentSource)
}

func TestApplyRRF(t *testing.T) {
	vector := []rankedResult{{id: "a"}, {id: "b"}, {id: "c"}}
	text := []rankedResult{{id: "b"}, {id: "d"}}

	fused := applyRRF(vector, text, 60)
	require.Len(t, fused, 4)
	assert.Equal(t, "b", fused[0].id)
	assert.InDelta(t, 1.0/62+1.0/61, fused[0].score, 1e-12)
	for i, r := range fused {
		assert.Equal(t, i+1, r.rank)
	}

	// Ties break by id
	tied := applyRRF([]rankedResult{{id: "z"}}, []rankedResult{{id: "y"}}, 0)
	assert.Equal(t, "y", tied[0].id)
	assert.InDelta(t, 1.0/61, tied[0].score, 1e-12)

	assert.Empty(t, applyRRF(nil, nil, 60))
}

func TestSortRankedResults_Stable(t *testing.T) {
	results := []rankedResult{{id: "a", score: 0.5}, {id: "b", score: 0.9}, {id: "c", score: 0.5}}
	sortRankedResults(results)
	assert.Equal(t, "b", results[0].id)
	assert.Equal(t, "a", results[1].id)
	assert.Equal(t, "c", results[2].id)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world", "42"}, tokenize("Hello, World! 42"))
	assert.Equal(t, []string{"café", "naïve"}, tokenize("Café/naïve"))
	assert.Empty(t, tokenize("  ...  "))
	assert.Equal(t, []string{"a", "b"}, uniqueTerms("a b A b"))
}

func TestComputeQueryHash(t *testing.T) {
	base := SearchRequest{Query: "q", Mode: SearchModeVector, Limit: 10}

	same := base
	assert.Equal(t, computeQueryHash(base), computeQueryHash(same))

	for name, other := range map[string]SearchRequest{
		"query":     {Query: "r", Mode: SearchModeVector, Limit: 10},
		"mode":      {Query: "q", Mode: SearchModeHybrid, Limit: 10},
		"limit":     {Query: "q", Mode: SearchModeVector, Limit: 5},
		"min score": {Query: "q", Mode: SearchModeVector, Limit: 10, MinScore: 0.3},
		"sources":   {Query: "q", Mode: SearchModeVector, Limit: 10, Sources: []string{"a.txt"}},
	} {
		assert.NotEqual(t, computeQueryHash(base), computeQueryHash(other), name)
	}

	a := SearchRequest{Query: "q", Sources: []string{"a", "b"}}
	b := SearchRequest{Query: "q", Sources: []string{"b", "a"}}
	assert.Equal(t, computeQueryHash(a), computeQueryHash(b), "source order is irrelevant")
}

func TestSearchWithCache(t *testing.T) {
	s, emb := newSetSearcher()
	ctx := context.Background()
	req := SearchRequest{Query: "foxes", UseCache: true}

	first, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, int32(1), emb.calls.Load())

	// Cached copies are independent of what callers do with results
	second.Results[0].Content = "mutated"
	third, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "The quick brown fox ", third.Results[0].Content)

	s.InvalidateCache()
	fourth, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, fourth.CacheHit)
	assert.Equal(t, int32(2), emb.calls.Load())
}

func TestSearchCacheExpiry(t *testing.T) {
	s, emb := newSetSearcher()
	ctx := context.Background()
	req := SearchRequest{Query: "foxes", UseCache: true, CacheTTL: -1}

	_, err := s.Search(ctx, req)
	require.NoError(t, err)
	resp, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, int32(2), emb.calls.Load())
}

func TestCopySearchResponse(t *testing.T) {
	assert.Nil(t, copySearchResponse(nil))

	src := &SearchResponse{Results: []types.SearchResult{{DocumentID: "a", Content: "x"}}, TotalResults: 1}
	dst := copySearchResponse(src)
	dst.Results[0].Content = "y"
	assert.Equal(t, "x", src.Results[0].Content)
	assert.Equal(t, 1, dst.TotalResults)
}
