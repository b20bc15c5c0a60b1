package embed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/util"
	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder calls the OpenAI embeddings endpoint (or a compatible one)
type OpenAIEmbedder struct {
	client *openai.Client
	cfg    Config
}

// NewOpenAIEmbedder creates an OpenAI-backed embedder
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for embeddings")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.LargeEmbedding3)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		},
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}, nil
}

// Embed embeds one text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string, mode Mode) ([]float32, error) {
	return embedOne(ctx, e, text, mode)
}

// EmbedBatch embeds texts in provider-sized chunks, preserving order
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	prefix := e.cfg.prefix(mode)

	for _, batch := range chunk(texts, e.cfg.batchSize()) {
		input := make([]string, len(batch))
		for i, t := range batch {
			input[i] = prefix + t
		}

		vectors, err := e.request(ctx, input)
		if err != nil {
			return nil, model.External("embed", err)
		}
		out = append(out, vectors...)
	}

	if err := checkDimension(out, e.cfg.Dimension); err != nil {
		return nil, model.External("embed", err)
	}
	return out, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, input []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.timeout())
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      input,
		Model:      openai.EmbeddingModel(e.cfg.Model),
		Dimensions: e.cfg.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(input))
	}

	vectors := make([][]float32, len(input))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("OpenAI returned out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Dimensions returns the configured vector size
func (e *OpenAIEmbedder) Dimensions() int { return e.cfg.Dimension }

// Model returns the embedding model name
func (e *OpenAIEmbedder) Model() string { return e.cfg.Model }
