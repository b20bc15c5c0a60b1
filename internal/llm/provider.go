package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// AssessContradiction judges whether two claims contradict each other
	AssessContradiction(ctx context.Context, req AssessRequest) (*AssessResponse, error)

	// SynthesizeUpdate drafts a corrected claim from contradicting sources in strict evidence mode
	SynthesizeUpdate(ctx context.Context, req SynthesizeRequest) (*SynthesizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// AssessRequest is a claim pair to judge
type AssessRequest struct {
	ClaimA string
	ClaimB string
	Model  string
}

// AssessResponse is the model's verdict
type AssessResponse struct {
	Contradicts bool    `json:"contradicts"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
	Model       string  `json:"model"`
	TokensUsed  int     `json:"tokens_used"`
}

// SourceRef is one contradicting source offered to the synthesizer
type SourceRef struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

// SynthesizeRequest contains the input for a claim update draft
type SynthesizeRequest struct {
	OriginalClaim string

	// Sources is the STRICT allowlist: the draft may only cite these URLs
	Sources []SourceRef

	Model     string
	MaxTokens int
}

// SynthesizeResponse is the drafted claim text
type SynthesizeResponse struct {
	Text       string   `json:"text"`
	CitedURLs  []string `json:"cited_urls"`
	Model      string   `json:"model"`
	TokensUsed int      `json:"tokens_used"`
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (Ollama, xAI, other OpenAI-compatible APIs)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// StrictEvidence rejects drafts citing URLs outside the source list
	StrictEvidence bool

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:       "", // Disabled by default
		Timeout:        30,
		StrictEvidence: true,
		MaxTokens:      1000,
	}
}

const assessSystemPrompt = "You are a careful fact-checker. You compare two factual claims, possibly in different languages, and decide whether they cannot both be true."

const synthesizeSystemPrompt = "You are an expert fact-checker who synthesizes accurate claims from multiple sources."

// BuildAssessPrompt asks for a JSON verdict on a claim pair
func BuildAssessPrompt(a, b string) string {
	return fmt.Sprintf(`Compare the two claims below. They may be written in different languages.

Claim A: %s
Claim B: %s

Do these claims contradict each other, meaning they cannot both be true at the same time?
Differences in detail or emphasis are NOT contradictions.

Respond with JSON only, in this exact shape:
{"contradicts": true|false, "confidence": 0.0-1.0, "reasoning": "one sentence"}`, a, b)
}

// BuildSynthesisPrompt asks for a corrected claim that cites only the supplied sources
func BuildSynthesisPrompt(original string, sources []SourceRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original claim:\n%s\n\nContradicting sources:\n", original)
	for i, s := range sources {
		if i >= 20 { // Limit to first 20 to avoid token bloat
			fmt.Fprintf(&b, "... and %d more sources\n", len(sources)-20)
			break
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n   %s\n", i+1, s.Language, s.URL, s.Text)
	}
	b.WriteString(`
RULES:
1. Write a single corrected claim in the language of the original claim.
2. You MAY ONLY cite URLs from the list above. Do not cite anything else.
3. If the sources do not justify a change, repeat the original claim unchanged.
4. Output only the claim text followed by the cited URLs.`)
	return b.String()
}

var fencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// parseAssessment decodes the JSON verdict, tolerating markdown code fences
func parseAssessment(content string) (*AssessResponse, error) {
	content = strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		content = m[1]
	}
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}

	var out AssessResponse
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("parse assessment: %w", err)
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return &out, nil
}

// checkCitations enforces the strict evidence allowlist on a draft
func checkCitations(text string, sources []SourceRef, strict bool) ([]string, error) {
	cited := extractURLs(text)
	if !strict {
		return cited, nil
	}
	allowed := make([]string, 0, len(sources))
	for _, s := range sources {
		allowed = append(allowed, s.URL)
	}
	for _, u := range cited {
		if !contains(allowed, u) {
			return nil, fmt.Errorf("CITATION LEAK: LLM cited disallowed URL: %s", u)
		}
	}
	return cited, nil
}

// extractURLs extracts all URLs from text using regex
func extractURLs(text string) []string {
	urlPattern := regexp.MustCompile(`https?://[^\s\)]+`)
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, u := range matches {
		u = strings.TrimRight(u, ".,;:!?")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	return unique
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func pickModel(requested, configured, fallback string) string {
	if requested != "" {
		return requested
	}
	if configured != "" {
		return configured
	}
	return fallback
}

func pickMaxTokens(requested, configured int) int {
	if requested > 0 {
		return requested
	}
	if configured > 0 {
		return configured
	}
	return 1000
}
