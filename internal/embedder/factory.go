package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by NewFromEnv and the providers
const (
	EnvProvider      = "FIXTUREGEN_EMBEDDING_PROVIDER"
	EnvModel         = "FIXTUREGEN_EMBEDDING_MODEL"
	EnvJinaAPIKey    = "JINA_API_KEY"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvOllamaHost    = "OLLAMA_HOST"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	APIKey    string
	Model     string // Empty selects the provider default
	BaseURL   string // API base URL (OpenAI-compatible servers, Jina) or Ollama host
	CacheSize int    // Zero disables caching
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. FIXTUREGEN_EMBEDDING_PROVIDER (jina, openai, ollama, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. OLLAMA_HOST selects ollama
// 4. Default to local if nothing is configured
func NewFromEnv() (Embedder, error) {
	return New(Config{
		Provider:  DetectProvider(),
		Model:     os.Getenv(EnvModel),
		CacheSize: DefaultCacheSize,
	})
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cache)
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cache)
	case ProviderLocal:
		if cfg.Model != "" && cfg.Model != DefaultLocalModel {
			return nil, fmt.Errorf("%w: local provider only supports %s, got %s", ErrUnsupportedModel, DefaultLocalModel, cfg.Model)
		}
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" || os.Getenv(EnvOpenAIBaseURL) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvOllamaHost) != "" {
		return ProviderOllama
	}

	return ProviderLocal
}

// SupportedProviders lists the provider names accepted by New
func SupportedProviders() []string {
	return []string{ProviderLocal, ProviderJina, ProviderOpenAI, ProviderOllama}
}
