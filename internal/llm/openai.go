package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/antibody/internal/logging"
	"github.com/ppiankov/antibody/internal/util"
	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI and OpenAI-compatible APIs
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	if _, err := p.client.ListModels(ctx); err != nil {
		logging.Warn("OpenAI API check failed", "err", err)
		return false
	}
	return true
}

// AssessContradiction asks the chat model for a JSON verdict
func (p *OpenAIProvider) AssessContradiction(ctx context.Context, req AssessRequest) (*AssessResponse, error) {
	content, model, tokens, err := p.complete(ctx, req.Model, assessSystemPrompt, BuildAssessPrompt(req.ClaimA, req.ClaimB), 200, 0)
	if err != nil {
		return nil, err
	}

	verdict, err := parseAssessment(content)
	if err != nil {
		return nil, err
	}
	verdict.Model = model
	verdict.TokensUsed = tokens
	return verdict, nil
}

// SynthesizeUpdate drafts a corrected claim from the contradicting sources
func (p *OpenAIProvider) SynthesizeUpdate(ctx context.Context, req SynthesizeRequest) (*SynthesizeResponse, error) {
	prompt := BuildSynthesisPrompt(req.OriginalClaim, req.Sources)
	content, model, tokens, err := p.complete(ctx, req.Model, synthesizeSystemPrompt, prompt, pickMaxTokens(req.MaxTokens, p.config.MaxTokens), 0.2)
	if err != nil {
		return nil, err
	}

	cited, err := checkCitations(content, req.Sources, p.config.StrictEvidence)
	if err != nil {
		return nil, err
	}

	return &SynthesizeResponse{
		Text:       content,
		CitedURLs:  cited,
		Model:      model,
		TokensUsed: tokens,
	}, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, requestedModel, system, prompt string, maxTokens int, temperature float32) (string, string, int, error) {
	model := pickModel(requestedModel, p.config.Model, openai.GPT4oMini)

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", "", 0, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", "", 0, fmt.Errorf("no response from OpenAI")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), model, resp.Usage.TotalTokens, nil
}
