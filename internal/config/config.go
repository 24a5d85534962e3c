// Package config loads fixturegen settings from a YAML file and the environment.
//
// Precedence, lowest first: Default(), the YAML file, environment variables,
// then command-line flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/embedfixtures/internal/chunker"
	"github.com/dshills/embedfixtures/internal/embedder"
	"github.com/dshills/embedfixtures/internal/fixture"
	"github.com/dshills/embedfixtures/internal/logging"
)

// Environment variables applied by ApplyEnv
const (
	EnvCorpusDir = "FIXTUREGEN_CORPUS_DIR"
	EnvOutput    = "FIXTUREGEN_OUTPUT"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full fixturegen configuration
type Config struct {
	CorpusDir        string          `yaml:"corpus_dir"`
	Output           string          `yaml:"output"`
	Format           string          `yaml:"format"`
	Extensions       []string        `yaml:"extensions"`
	Recursive        bool            `yaml:"recursive"`
	ChunkSize        int             `yaml:"chunk_size"`
	Overlap          int             `yaml:"overlap"`
	Workers          int             `yaml:"workers"`
	DeterministicIDs bool            `yaml:"deterministic_ids"`
	LogLevel         string          `yaml:"log_level"`
	Embedding        EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig selects and tunes the embedding provider
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	CacheSize   int    `yaml:"cache_size"`
}

// Default returns the configuration used when nothing else is specified
func Default() *Config {
	return &Config{
		CorpusDir:  "doc-corpus",
		Output:     "output.json",
		Format:     string(fixture.FormatSOA),
		Extensions: []string{".txt"},
		ChunkSize:  chunker.DefaultChunkSize,
		Overlap:    chunker.DefaultOverlap,
		Workers:    4,
		LogLevel:   "info",
		Embedding: EmbeddingConfig{
			BatchSize:   embedder.DefaultBatchSize,
			Concurrency: 4,
			CacheSize:   embedder.DefaultCacheSize,
		},
	}
}

// Load reads a YAML file on top of Default(), then applies the environment.
// An empty path skips the file. ${VAR} references in secrets and URLs are expanded.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.expandEnvVars()
	cfg.ApplyEnv()

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvCorpusDir); v != "" {
		c.CorpusDir = v
	}
	if v := os.Getenv(EnvOutput); v != "" {
		c.Output = v
	}
	if v := os.Getenv(logging.EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(embedder.EnvProvider); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv(embedder.EnvModel); v != "" {
		c.Embedding.Model = v
	}
}

func (c *Config) expandEnvVars() {
	c.CorpusDir = os.ExpandEnv(c.CorpusDir)
	c.Output = os.ExpandEnv(c.Output)
	c.Embedding.APIKey = os.ExpandEnv(c.Embedding.APIKey)
	c.Embedding.BaseURL = os.ExpandEnv(c.Embedding.BaseURL)
}

// EmbedderConfig converts the embedding section for embedder.New.
// An empty provider is resolved from the environment.
func (c *Config) EmbedderConfig() embedder.Config {
	provider := c.Embedding.Provider
	if provider == "" {
		provider = embedder.DetectProvider()
	}
	return embedder.Config{
		Provider:  provider,
		APIKey:    c.Embedding.APIKey,
		Model:     c.Embedding.Model,
		BaseURL:   c.Embedding.BaseURL,
		CacheSize: c.Embedding.CacheSize,
	}
}

// Validate rejects settings that would fail later in the pipeline
func (c *Config) Validate() error {
	if err := chunker.Validate(c.ChunkSize, c.Overlap); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if _, err := fixture.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("%w: output must not be empty", ErrInvalidConfig)
	}

	if len(c.Extensions) == 0 {
		return fmt.Errorf("%w: at least one extension is required", ErrInvalidConfig)
	}

	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}

	if c.Embedding.BatchSize < 1 || c.Embedding.BatchSize > embedder.MaxBatchSize {
		return fmt.Errorf("%w: embedding.batch_size must be in [1, %d], got %d", ErrInvalidConfig, embedder.MaxBatchSize, c.Embedding.BatchSize)
	}

	if c.Embedding.Concurrency < 1 {
		return fmt.Errorf("%w: embedding.concurrency must be at least 1, got %d", ErrInvalidConfig, c.Embedding.Concurrency)
	}

	if c.Embedding.CacheSize < 0 {
		return fmt.Errorf("%w: embedding.cache_size must not be negative", ErrInvalidConfig)
	}

	if p := strings.ToLower(c.Embedding.Provider); p != "" {
		known := false
		for _, name := range embedder.SupportedProviders() {
			if p == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embedding.Provider)
		}
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}
