// Package graph answers dependency questions over the claim SUPPORTS graph.
// Traversal is done here with an explicit visited set, so cycles in the
// stored graph are safe.
package graph

import (
	"context"
	"math"
	"time"

	"github.com/ppiankov/antibody/internal/model"
)

// impactScale is the number of affected claims that maps to maximum impact
const impactScale = 100.0

// Store is the graph query surface the analyzer needs
type Store interface {
	GetClaim(ctx context.Context, id string) (*model.Claim, error)
	GetClaims(ctx context.Context, ids []string) ([]model.Claim, error)
	// OutgoingEdges returns edges where id is the supporter
	OutgoingEdges(ctx context.Context, id string) ([]model.SupportEdge, error)
	// IncomingEdges returns edges where id is the supported claim
	IncomingEdges(ctx context.Context, id string) ([]model.SupportEdge, error)
}

// Analyzer computes neighbourhoods, downstream impact and dependency weight
type Analyzer struct {
	store   Store
	timeout time.Duration
}

// NewAnalyzer creates an analyzer; timeout bounds each store call (0 = no bound)
func NewAnalyzer(store Store, timeout time.Duration) *Analyzer {
	return &Analyzer{store: store, timeout: timeout}
}

// GetWithDependencies returns the claim with the claims it supports and the claims
// supporting it, one hop each way, deduplicated.
func (a *Analyzer) GetWithDependencies(ctx context.Context, id string) (*model.ClaimWithDependencies, error) {
	claim, err := a.getClaim(ctx, id)
	if err != nil {
		return nil, err
	}

	out, err := a.outgoing(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := a.incoming(ctx, id)
	if err != nil {
		return nil, err
	}

	supports, err := a.claims(ctx, uniqueEnds(out, func(e model.SupportEdge) string { return e.To }))
	if err != nil {
		return nil, err
	}
	supportedBy, err := a.claims(ctx, uniqueEnds(in, func(e model.SupportEdge) string { return e.From }))
	if err != nil {
		return nil, err
	}

	return &model.ClaimWithDependencies{
		Claim:       *claim,
		Supports:    supports,
		SupportedBy: supportedBy,
	}, nil
}

// GetDownstreamImpact walks the SUPPORTS relation breadth-first from the claim and
// scores the distinct reachable claims. The starting claim is never counted as
// affected, even when a cycle leads back to it.
func (a *Analyzer) GetDownstreamImpact(ctx context.Context, id string) (*model.ImpactResult, error) {
	if _, err := a.getClaim(ctx, id); err != nil {
		return nil, err
	}

	visited := map[string]bool{id: true}
	frontier := []string{id}
	affected := make([]string, 0)

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, model.External("downstream impact", err)
		}

		current := frontier[0]
		frontier = frontier[1:]

		edges, err := a.outgoing(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			affected = append(affected, e.To)
			frontier = append(frontier, e.To)
		}
	}

	return &model.ImpactResult{
		ClaimID:        id,
		ImpactScore:    ImpactScore(len(affected)),
		AffectedClaims: affected,
		AffectedCount:  len(affected),
	}, nil
}

// AggregateDependencyWeight sums the weights of SUPPORTS edges ending at the claim
func (a *Analyzer) AggregateDependencyWeight(ctx context.Context, id string) (float64, error) {
	edges, err := a.incoming(ctx, id)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, e := range edges {
		total += e.Weight
	}
	return total, nil
}

// ImpactScore normalizes an affected count: min(count/100, 1)
func ImpactScore(count int) float64 {
	return math.Min(float64(count)/impactScale, 1.0)
}

func (a *Analyzer) getClaim(ctx context.Context, id string) (*model.Claim, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	claim, err := a.store.GetClaim(ctx, id)
	if err != nil {
		return nil, model.External("get claim", err)
	}
	if claim == nil {
		return nil, model.NotFound("claim", id)
	}
	return claim, nil
}

func (a *Analyzer) claims(ctx context.Context, ids []string) ([]model.Claim, error) {
	if len(ids) == 0 {
		return []model.Claim{}, nil
	}
	ctx, cancel := a.bound(ctx)
	defer cancel()

	claims, err := a.store.GetClaims(ctx, ids)
	if err != nil {
		return nil, model.External("get claims", err)
	}
	return claims, nil
}

func (a *Analyzer) outgoing(ctx context.Context, id string) ([]model.SupportEdge, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	edges, err := a.store.OutgoingEdges(ctx, id)
	if err != nil {
		return nil, model.External("outgoing edges", err)
	}
	return edges, nil
}

func (a *Analyzer) incoming(ctx context.Context, id string) ([]model.SupportEdge, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	edges, err := a.store.IncomingEdges(ctx, id)
	if err != nil {
		return nil, model.External("incoming edges", err)
	}
	return edges, nil
}

func (a *Analyzer) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// uniqueEnds picks one endpoint of each edge, dropping duplicates and keeping first-seen order
func uniqueEnds(edges []model.SupportEdge, end func(model.SupportEdge) string) []string {
	seen := make(map[string]bool, len(edges))
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		id := end(e)
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
