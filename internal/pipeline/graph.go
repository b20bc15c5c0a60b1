package pipeline

import (
	"context"

	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/score"
)

// Vulnerable returns a page of the remediation queue: mutable claims by raw score
// descending, ties by id. display_score is the only clamped value.
func (s *Service) Vulnerable(ctx context.Context, limit, offset int) ([]model.VulnerabilityRecord, error) {
	if err := validatePage(limit, offset); err != nil {
		return nil, err
	}

	ctx, cancel := bound(ctx, s.cfg.Timeouts.Graph)
	defer cancel()

	records, err := s.graph.ListVulnerable(ctx, limit, offset)
	if err != nil {
		return nil, model.External("graph store", err)
	}

	out := make([]model.VulnerabilityRecord, len(records))
	for i, r := range records {
		out[i] = s.scorer.Record(r.Claim, r.DependencyWeight)
	}
	return out, nil
}

// ClaimWithDependencies returns a claim with its immediate supporters and dependents
func (s *Service) ClaimWithDependencies(ctx context.Context, id string) (*model.ClaimWithDependencies, error) {
	if id == "" {
		return nil, model.Invalid("claim id is required")
	}
	return s.analyzer.GetWithDependencies(ctx, id)
}

// Impact returns the transitive downstream reach of a claim
func (s *Service) Impact(ctx context.Context, id string) (*model.ImpactResult, error) {
	if id == "" {
		return nil, model.Invalid("claim id is required")
	}
	return s.analyzer.GetDownstreamImpact(ctx, id)
}

// Explain breaks down a claim's vulnerability score
func (s *Service) Explain(ctx context.Context, id string) (*score.Breakdown, error) {
	c, err := s.getClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	weight, err := s.analyzer.AggregateDependencyWeight(ctx, id)
	if err != nil {
		return nil, err
	}
	b := s.scorer.Explain(*c, weight)
	return &b, nil
}

// ArticleClaims lists the claims extracted from an article
func (s *Service) ArticleClaims(ctx context.Context, articleID string) ([]model.Claim, error) {
	if articleID == "" {
		return nil, model.Invalid("article id is required")
	}

	ctx, cancel := bound(ctx, s.cfg.Timeouts.Graph)
	defer cancel()

	claims, err := s.graph.ClaimsByArticle(ctx, articleID)
	if err != nil {
		return nil, model.External("graph store", err)
	}
	if claims == nil {
		claims = []model.Claim{}
	}
	return claims, nil
}
