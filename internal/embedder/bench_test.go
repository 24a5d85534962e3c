package embedder

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// corpusChunk returns a chunk of roughly size runes built from ordinary prose
func corpusChunk(size, seed int) string {
	words := []string{"fixture", "corpus", "vector", "chunk", "overlap", "window", "query", "dimension", "cosine", "source"}
	var b strings.Builder
	for i := seed; b.Len() < size; i++ {
		b.WriteString(words[i%len(words)])
		b.WriteByte(' ')
	}
	return b.String()
}

func BenchmarkHashEmbedding(b *testing.B) {
	for _, size := range []int{100, 500, 2000} {
		text := corpusChunk(size, 0)
		b.Run(fmt.Sprintf("runes=%d", size), func(b *testing.B) {
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = hashEmbedding(text, LocalDimension)
			}
		})
	}
}

// BenchmarkCacheLookup measures the path taken for repeated chunks during regeneration
func BenchmarkCacheLookup(b *testing.B) {
	cache := NewCache(DefaultCacheSize)
	chunks := make([]string, 1000)
	for i := range chunks {
		chunks[i] = corpusChunk(500, i)
		cache.Store(DefaultLocalModel, chunks[i], newEmbedding(make([]float32, LocalDimension), ProviderLocal, DefaultLocalModel, chunks[i]))
	}

	b.Run("hit", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = cache.Lookup(DefaultLocalModel, chunks[i%len(chunks)])
		}
	})

	b.Run("other-model", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = cache.Lookup(DefaultOllamaModel, chunks[i%len(chunks)])
		}
	})

	b.Run("parallel", func(b *testing.B) {
		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				_, _ = cache.Lookup(DefaultLocalModel, chunks[i%len(chunks)])
				i++
			}
		})
	})
}

// BenchmarkEmbedAll_Corpus embeds a 2000 chunk corpus the way fixture generation does
func BenchmarkEmbedAll_Corpus(b *testing.B) {
	provider, err := NewLocalProvider(nil)
	if err != nil {
		b.Fatalf("NewLocalProvider() error = %v", err)
	}

	chunks := make([]string, 2000)
	for i := range chunks {
		chunks[i] = corpusChunk(500, i)
	}

	for _, bc := range []struct{ batch, concurrency int }{
		{10, 1},
		{DefaultBatchSize, 1},
		{DefaultBatchSize, 4},
		{MaxBatchSize, 4},
	} {
		b.Run(fmt.Sprintf("batch=%d/concurrency=%d", bc.batch, bc.concurrency), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := EmbedAll(context.Background(), provider, chunks, bc.batch, bc.concurrency); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkNormalizeVector(b *testing.B) {
	for _, dim := range []int{LocalDimension, OllamaDimension, JinaDimension, OpenAIDimension} {
		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = float32(i%7) - 3
		}
		b.Run(fmt.Sprintf("dim=%d", dim), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = NormalizeVector(vec)
			}
		})
	}
}

func BenchmarkValidateBatchRequest(b *testing.B) {
	req := BatchEmbeddingRequest{Texts: make([]string, DefaultBatchSize)}
	for i := range req.Texts {
		req.Texts[i] = corpusChunk(500, i)
	}
	for i := 0; i < b.N; i++ {
		if err := ValidateBatchRequest(req); err != nil {
			b.Fatal(err)
		}
	}
}
