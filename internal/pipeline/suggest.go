package pipeline

import (
	"context"

	"github.com/ppiankov/antibody/internal/llm"
	"github.com/ppiankov/antibody/internal/model"
)

// SuggestRequest asks for a corrected claim text. Without sources, adversarial
// retrieval runs first and its results are used.
type SuggestRequest struct {
	Sources    []llm.SourceRef `json:"sources,omitempty"`
	Languages  []string        `json:"target_languages,omitempty"`
	MaxResults int             `json:"max_results,omitempty"`
}

// Suggestion is a drafted update for an editor to review; nothing is written to the graph
type Suggestion struct {
	ClaimID       string          `json:"claim_id"`
	OriginalText  string          `json:"original_text"`
	SuggestedText string          `json:"suggested_text"`
	CitedURLs     []string        `json:"cited_urls"`
	Sources       []llm.SourceRef `json:"sources"`
	Model         string          `json:"model"`
	TokensUsed    int             `json:"tokens_used"`
}

// Suggest drafts a corrected text for a claim from contradicting sources
func (s *Service) Suggest(ctx context.Context, claimID string, req SuggestRequest) (*Suggestion, error) {
	if s.llm == nil {
		return nil, model.Invalid("no LLM provider configured")
	}
	c, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	sources := req.Sources
	if len(sources) == 0 {
		result, err := s.Retrieve(ctx, c.ID, RetrieveOptions{Languages: req.Languages, MaxResults: req.MaxResults})
		if err != nil {
			return nil, err
		}
		for _, src := range result.ContradictingSources {
			sources = append(sources, llm.SourceRef{URL: src.URL, Text: src.Text, Language: src.Language})
		}
	}
	if len(sources) == 0 {
		return nil, model.Invalid("no contradicting sources for claim %s", c.ID)
	}

	resp, err := s.llm.SynthesizeUpdate(ctx, llm.SynthesizeRequest{
		OriginalClaim: c.Text,
		Sources:       sources,
		Model:         s.cfg.LLM.Model,
		MaxTokens:     s.cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, model.External("llm "+s.llm.Name(), err)
	}

	return &Suggestion{
		ClaimID:       c.ID,
		OriginalText:  c.Text,
		SuggestedText: resp.Text,
		CitedURLs:     resp.CitedURLs,
		Sources:       sources,
		Model:         resp.Model,
		TokensUsed:    resp.TokensUsed,
	}, nil
}
