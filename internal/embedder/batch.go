package embedder

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmbedAll embeds texts in batches of batchSize, running up to concurrency batches
// at once. The returned vectors are in the same order as texts.
//
// batchSize is clamped to [1, MaxBatchSize]; concurrency below 1 means sequential.
// The first failing batch cancels the others and its error is returned.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize, concurrency int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	if concurrency < 1 {
		concurrency = 1
	}

	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		g.Go(func() error {
			resp, err := e.GenerateBatch(gctx, BatchEmbeddingRequest{Texts: texts[start:end]})
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			if err := resp.checkShape(end - start); err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			// Each batch owns a disjoint range of the result slice
			copy(vectors[start:end], resp.Vectors())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrProviderFailed, i, len(v), dim)
		}
	}

	return vectors, nil
}
