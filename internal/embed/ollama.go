package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/util"
)

// OllamaEmbedder calls a local Ollama server's /api/embed endpoint
type OllamaEmbedder struct {
	baseURL    string
	httpClient *http.Client
	cfg        Config
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates an Ollama-backed embedder
func NewOllamaEmbedder(cfg Config) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama embedding model must be specified (e.g., bge-m3)")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaEmbedder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: util.NewHTTPClient(cfg.timeout(), cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		cfg:        cfg,
	}, nil
}

// Embed embeds one text
func (e *OllamaEmbedder) Embed(ctx context.Context, text string, mode Mode) ([]float32, error) {
	return embedOne(ctx, e, text, mode)
}

// EmbedBatch embeds texts in chunks, preserving order
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
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

func (e *OllamaEmbedder) request(ctx context.Context, input []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var out ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(out.Embeddings) != len(input) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(out.Embeddings), len(input))
	}
	return out.Embeddings, nil
}

// Dimensions returns the configured vector size
func (e *OllamaEmbedder) Dimensions() int { return e.cfg.Dimension }

// Model returns the embedding model name
func (e *OllamaEmbedder) Model() string { return e.cfg.Model }
