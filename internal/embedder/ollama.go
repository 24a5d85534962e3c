package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"

	"github.com/ollama/ollama/api"
)

// OllamaProvider implements Embedder using a local or remote Ollama server
type OllamaProvider struct {
	client     *api.Client
	httpClient *http.Client
	model      string
	host       string
	cache      *Cache
	retry      RetryConfig
	dimension  atomic.Int64
}

// NewOllamaProvider creates a new Ollama embedder.
// Empty host falls back to OLLAMA_HOST, then DefaultOllamaBaseURL.
func NewOllamaProvider(host, model string, cache *Cache) (*OllamaProvider, error) {
	if host == "" {
		host = os.Getenv(EnvOllamaHost)
	}
	if host == "" {
		host = DefaultOllamaBaseURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("%w: parse ollama host %q: %v", ErrInvalidInput, host, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: ollama host %q must include scheme and host", ErrInvalidInput, host)
	}

	httpClient := &http.Client{Timeout: requestTimeout}

	o := &OllamaProvider{
		client:     api.NewClient(u, httpClient),
		httpClient: httpClient,
		model:      model,
		host:       host,
		cache:      cache,
		retry:      DefaultRetryConfig(),
	}
	if model == DefaultOllamaModel {
		o.dimension.Store(OllamaDimension)
	}
	return o, nil
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return generateSingle(ctx, o, o.cache, o.model, req)
}

func (o *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = o.model
	}

	embeddings, err := retryWithBackoff(ctx, o.retry, func() ([]*Embedding, error) {
		return o.callAPI(ctx, req.Texts, model)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	if len(embeddings) > 0 {
		o.dimension.Store(int64(embeddings[0].Dimension))
	}
	storeBatch(o.cache, model, req.Texts, embeddings)

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOllama,
		Model:      model,
	}, nil
}

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: model,
		Input: texts,
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) && !retryableStatus(statusErr.StatusCode) {
			return nil, permanent(fmt.Errorf("ollama embed: %w", err))
		}
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	embeddings := make([]*Embedding, len(resp.Embeddings))
	for i, vector := range resp.Embeddings {
		embeddings[i] = &Embedding{
			Vector:    vector,
			Dimension: len(vector),
			Provider:  ProviderOllama,
			Model:     model,
		}
	}

	return embeddings, nil
}

func (o *OllamaProvider) Dimension() int {
	return int(o.dimension.Load())
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
