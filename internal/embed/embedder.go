// Package embed turns claim text into vectors for similarity search.
package embed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/antibody/internal/model"
)

// Mode selects the asymmetric embedding side
type Mode string

const (
	// ModeDocument embeds text that will be stored and searched against
	ModeDocument Mode = "document"
	// ModeQuery embeds text used to search
	ModeQuery Mode = "query"
)

// Embedder produces vectors for text
type Embedder interface {
	Embed(ctx context.Context, text string, mode Mode) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error)
	Dimensions() int
	Model() string
}

// Config configures an embedder
type Config struct {
	Provider       string
	Model          string
	APIKey         string
	BaseURL        string
	Dimension      int
	BatchSize      int
	DocumentPrefix string
	QueryPrefix    string
	Timeout        time.Duration

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ConfigFromModel converts the file/env configuration
func ConfigFromModel(cfg model.Config) Config {
	return Config{
		Provider:       cfg.Embedding.Provider,
		Model:          cfg.Embedding.Model,
		APIKey:         cfg.Embedding.APIKey,
		BaseURL:        cfg.Embedding.BaseURL,
		Dimension:      cfg.Embedding.Dimension,
		BatchSize:      cfg.Embedding.BatchSize,
		DocumentPrefix: cfg.Embedding.DocumentPrefix,
		QueryPrefix:    cfg.Embedding.QueryPrefix,
		Timeout:        cfg.Timeouts.Embedding,
		HTTPProxy:      cfg.HTTP.HTTPProxy,
		HTTPSProxy:     cfg.HTTP.HTTPSProxy,
		NoProxy:        cfg.HTTP.NoProxy,
	}
}

// New creates the configured embedder, wrapped in a cache when cacheDir is set
func New(cfg Config, cacheDir string, cacheTTL time.Duration) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		e, err = NewOpenAIEmbedder(cfg)
	case "ollama", "":
		e, err = NewOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cacheDir != "" {
		e = NewCachedEmbedder(e, cacheDir, cacheTTL)
	}
	return e, nil
}

func (c Config) prefix(mode Mode) string {
	if mode == ModeQuery {
		return c.QueryPrefix
	}
	return c.DocumentPrefix
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return 96
	}
	return c.BatchSize
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.Timeout
}

// chunk splits texts into provider-sized batches
func chunk(texts []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}

func checkDimension(vectors [][]float32, want int) error {
	if want <= 0 {
		return nil
	}
	for _, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("embedding dimension %d does not match configured %d", len(v), want)
		}
	}
	return nil
}

// embedOne is the single-text path shared by providers
func embedOne(ctx context.Context, e Embedder, text string, mode Mode) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text}, mode)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}
