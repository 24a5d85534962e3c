package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvProvider, EnvModel, EnvJinaAPIKey, EnvOpenAIAPIKey, EnvOpenAIBaseURL, EnvOllamaHost} {
		t.Setenv(key, "")
	}
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"explicit jina provider", map[string]string{EnvProvider: "jina"}, ProviderJina},
		{"explicit provider is lower-cased", map[string]string{EnvProvider: "OpenAI"}, ProviderOpenAI},
		{"explicit local wins over keys", map[string]string{EnvProvider: "local", EnvJinaAPIKey: "k"}, ProviderLocal},
		{"jina key present", map[string]string{EnvJinaAPIKey: "k"}, ProviderJina},
		{"openai key present", map[string]string{EnvOpenAIAPIKey: "k"}, ProviderOpenAI},
		{"openai base url present", map[string]string{EnvOpenAIBaseURL: "http://localhost:8080/v1"}, ProviderOpenAI},
		{"jina preferred over openai", map[string]string{EnvJinaAPIKey: "k", EnvOpenAIAPIKey: "k"}, ProviderJina},
		{"ollama host present", map[string]string{EnvOllamaHost: "http://localhost:11434"}, ProviderOllama},
		{"nothing configured", map[string]string{}, ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, DetectProvider())
		})
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Run("defaults to local", func(t *testing.T) {
		clearProviderEnv(t)
		emb, err := NewFromEnv()
		require.NoError(t, err)
		defer emb.Close()
		assert.Equal(t, ProviderLocal, emb.Provider())
	})

	t.Run("model from environment", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv(EnvProvider, "ollama")
		t.Setenv(EnvModel, "mxbai-embed-large")
		emb, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ProviderOllama, emb.Provider())
		assert.Equal(t, "mxbai-embed-large", emb.Model())
	})

	t.Run("unknown provider", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv(EnvProvider, "word2vec")
		_, err := NewFromEnv()
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})

	t.Run("jina without key", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv(EnvProvider, "jina")
		_, err := NewFromEnv()
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})
}

func TestNew(t *testing.T) {
	clearProviderEnv(t)

	tests := []struct {
		name     string
		cfg      Config
		provider string
		model    string
		wantErr  error
	}{
		{"local", Config{Provider: "local"}, ProviderLocal, DefaultLocalModel, nil},
		{"local with cache", Config{Provider: "local", CacheSize: 100}, ProviderLocal, DefaultLocalModel, nil},
		{"local rejects other models", Config{Provider: "local", Model: "BAAI/bge-small-en-v1.5"}, "", "", ErrUnsupportedModel},
		{"jina", Config{Provider: "jina", APIKey: "k"}, ProviderJina, DefaultJinaModel, nil},
		{"openai custom model", Config{Provider: "openai", APIKey: "k", Model: "text-embedding-3-large"}, ProviderOpenAI, "text-embedding-3-large", nil},
		{"openai compatible", Config{Provider: "openai", BaseURL: "http://localhost:8080/v1"}, ProviderOpenAI, DefaultOpenAIModel, nil},
		{"ollama", Config{Provider: " Ollama "}, ProviderOllama, DefaultOllamaModel, nil},
		{"jina missing key", Config{Provider: "jina"}, "", "", ErrNoProviderEnabled},
		{"unknown", Config{Provider: "bert"}, "", "", ErrUnsupportedModel},
		{"empty", Config{}, "", "", ErrUnsupportedModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer emb.Close()
			assert.Equal(t, tt.provider, emb.Provider())
			assert.Equal(t, tt.model, emb.Model())
		})
	}
}

func TestSupportedProviders(t *testing.T) {
	clearProviderEnv(t)
	for _, name := range SupportedProviders() {
		cfg := Config{Provider: name, APIKey: "k"}
		_, err := New(cfg)
		assert.NoError(t, err, name)
	}
}
