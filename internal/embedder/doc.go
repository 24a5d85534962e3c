// Package embedder generates vector embeddings for text chunks using various providers.
//
// The embedder supports several embedding providers (Jina AI, OpenAI and compatible
// servers, Ollama, and a deterministic offline provider) behind one interface and adds
// batching, caching and retry for fixture generation.
//
// # Basic Usage
//
//	// Create embedder (auto-detects provider from environment)
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	// Generate single embedding
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "what is a vector database?",
//	})
//	fmt.Printf("Vector dimension: %d\n", len(result.Vector))
//
// # Batch Processing
//
// GenerateBatch embeds up to MaxBatchSize texts in one request and returns the
// embeddings in request order. EmbedAll splits any number of texts into batches
// and runs them concurrently:
//
//	vectors, err := embedder.EmbedAll(ctx, emb, chunks, 50, 4)
//	// vectors[i] belongs to chunks[i]
//
// # Provider Selection
//
// NewFromEnv selects a provider based on environment variables:
//
//  1. If FIXTUREGEN_EMBEDDING_PROVIDER is set, use that provider
//  2. Else if JINA_API_KEY is set, use Jina AI
//  3. Else if OPENAI_API_KEY or OPENAI_BASE_URL is set, use OpenAI
//  4. Else if OLLAMA_HOST is set, use Ollama
//  5. Else fall back to the local provider (offline mode)
//
// FIXTUREGEN_EMBEDDING_MODEL overrides the provider's default model.
// Explicit configuration goes through New:
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "openai",
//	    Model:     "BAAI/bge-small-en-v1.5",
//	    BaseURL:   "http://localhost:8080/v1",
//	    CacheSize: 10000,
//	})
//
// # Providers
//
// Jina AI:
//   - Default model jina-embeddings-v3, 1024 dimensions
//
// OpenAI (and OpenAI-compatible runners via BaseURL):
//   - Default model text-embedding-3-small, 1536 dimensions
//
// Ollama:
//   - Default model nomic-embed-text, 768 dimensions
//
// Local (offline):
//   - Feature-hashed bag of words, 384 dimensions
//   - Deterministic; shares no vector space with real models
//
// Remote providers report the dimension of the last response once a custom model
// has been used; before that Dimension returns 0.
//
// # Caching
//
// Embeddings are cached in an LRU keyed by model and SHA-256 content hash, so
// repeated chunks across documents are embedded once:
//
//	cache := embedder.NewCache(10000)
//	emb, _ := embedder.NewLocalProvider(cache)
//	...
//	stats := cache.Stats() // hits, misses, entries
//
// # Error Handling
//
// Rate limits, server errors and network failures are retried with exponential
// backoff. Client errors (bad request, authentication) fail immediately:
//
//	_, err := emb.GenerateBatch(ctx, req)
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // provider unavailable or rejected the request
//	}
package embedder
