package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/ppiankov/antibody/internal/model"
)

// memStore is an in-memory Store
type memStore struct {
	claims map[string]model.Claim
	edges  []model.SupportEdge
	err    error
}

func newMemStore(ids ...string) *memStore {
	s := &memStore{claims: make(map[string]model.Claim)}
	for _, id := range ids {
		s.claims[id] = model.Claim{ID: id, Text: "claim " + id}
	}
	return s
}

func (s *memStore) link(from, to string, weight float64) {
	s.edges = append(s.edges, model.SupportEdge{From: from, To: to, Weight: weight})
}

func (s *memStore) GetClaim(ctx context.Context, id string) (*model.Claim, error) {
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.claims[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *memStore) GetClaims(ctx context.Context, ids []string) ([]model.Claim, error) {
	var out []model.Claim
	for _, id := range ids {
		if c, ok := s.claims[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) OutgoingEdges(ctx context.Context, id string) ([]model.SupportEdge, error) {
	var out []model.SupportEdge
	for _, e := range s.edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) IncomingEdges(ctx context.Context, id string) ([]model.SupportEdge, error) {
	var out []model.SupportEdge
	for _, e := range s.edges {
		if e.To == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func claimIDs(claims []model.Claim) []string {
	ids := make([]string, 0, len(claims))
	for _, c := range claims {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestGetWithDependencies(t *testing.T) {
	s := newMemStore("a", "b", "c", "d")
	s.link("a", "b", 1)
	s.link("a", "b", 2) // parallel edge, deduplicated
	s.link("c", "a", 1)
	s.link("d", "a", 0.5)

	an := NewAnalyzer(s, 0)
	got, err := an.GetWithDependencies(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ids := claimIDs(got.Supports); fmt.Sprint(ids) != "[b]" {
		t.Errorf("supports = %v, want [b]", ids)
	}
	if ids := claimIDs(got.SupportedBy); fmt.Sprint(ids) != "[c d]" {
		t.Errorf("supported_by = %v, want [c d]", ids)
	}
}

func TestGetWithDependencies_NotFound(t *testing.T) {
	an := NewAnalyzer(newMemStore(), 0)
	_, err := an.GetWithDependencies(context.Background(), "missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetWithDependencies_StoreFailure(t *testing.T) {
	s := newMemStore("a")
	s.err = errors.New("connection refused")

	_, err := NewAnalyzer(s, 0).GetWithDependencies(context.Background(), "a")
	if !errors.Is(err, model.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}

func TestGetDownstreamImpact_NoEdges(t *testing.T) {
	an := NewAnalyzer(newMemStore("lonely"), 0)
	got, err := an.GetDownstreamImpact(context.Background(), "lonely")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ImpactScore != 0 || got.AffectedCount != 0 || len(got.AffectedClaims) != 0 {
		t.Errorf("expected empty impact, got %+v", got)
	}
}

func TestGetDownstreamImpact_TransitiveWithCycle(t *testing.T) {
	s := newMemStore("a", "b", "c", "d", "e")
	s.link("a", "b", 1)
	s.link("b", "c", 1)
	s.link("c", "a", 1) // cycle back to origin
	s.link("c", "d", 1)
	s.link("b", "d", 1) // diamond
	s.link("e", "a", 1) // upstream, not affected

	got, err := NewAnalyzer(s, 0).GetDownstreamImpact(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	affected := append([]string(nil), got.AffectedClaims...)
	sort.Strings(affected)
	if fmt.Sprint(affected) != "[b c d]" {
		t.Errorf("affected = %v, want [b c d]", affected)
	}
	if got.AffectedCount != 3 {
		t.Errorf("count = %d, want 3", got.AffectedCount)
	}
	if math.Abs(got.ImpactScore-0.03) > 1e-9 {
		t.Errorf("impact = %v, want 0.03", got.ImpactScore)
	}
}

func TestGetDownstreamImpact_Chain(t *testing.T) {
	ids := []string{"root"}
	for i := 0; i < 40; i++ {
		ids = append(ids, fmt.Sprintf("n%02d", i))
	}
	s := newMemStore(ids...)
	for i := 0; i < len(ids)-1; i++ {
		s.link(ids[i], ids[i+1], 1)
	}

	got, err := NewAnalyzer(s, 0).GetDownstreamImpact(context.Background(), "root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AffectedCount != 40 || math.Abs(got.ImpactScore-0.4) > 1e-9 {
		t.Errorf("expected 40 affected with impact 0.4, got %d / %v", got.AffectedCount, got.ImpactScore)
	}
}

func TestGetDownstreamImpact_NotFound(t *testing.T) {
	_, err := NewAnalyzer(newMemStore(), 0).GetDownstreamImpact(context.Background(), "ghost")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestImpactScore(t *testing.T) {
	tests := []struct {
		count int
		want  float64
	}{
		{0, 0},
		{1, 0.01},
		{40, 0.4},
		{99, 0.99},
		{100, 1},
		{250, 1},
	}
	for _, tt := range tests {
		if got := ImpactScore(tt.count); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ImpactScore(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestAggregateDependencyWeight(t *testing.T) {
	s := newMemStore("a", "b", "c", "target")
	s.link("a", "target", 1.5)
	s.link("b", "target", 2.0)
	s.link("target", "c", 9.0) // outgoing, ignored

	an := NewAnalyzer(s, 0)
	got, err := an.AggregateDependencyWeight(context.Background(), "target")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-3.5) > 1e-9 {
		t.Errorf("weight = %v, want 3.5", got)
	}

	none, err := an.AggregateDependencyWeight(context.Background(), "a")
	if err != nil || none != 0 {
		t.Errorf("expected 0 for no incoming edges, got %v (%v)", none, err)
	}
}
