package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/antibody/internal/model"
)

func newGraph(t *testing.T) *GraphStore {
	t.Helper()
	s, err := OpenGraphMemory()
	if err != nil {
		t.Fatalf("OpenGraphMemory: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreate(t *testing.T, s *GraphStore, c model.Claim) {
	t.Helper()
	if err := s.CreateClaim(context.Background(), c); err != nil {
		t.Fatalf("CreateClaim(%s): %v", c.ID, err)
	}
}

func TestSchemaVersion(t *testing.T) {
	s := newGraph(t)
	v, err := s.db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 2 {
		t.Errorf("SchemaVersion = %d, want 2", v)
	}
}

func TestOpenGraph_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "graph.db")
	s, err := OpenGraph(path)
	if err != nil {
		t.Fatalf("OpenGraph: %v", err)
	}
	mustCreate(t, s, model.Claim{ID: "a", Text: "Alpha"})
	_ = s.Close()

	// Reopen: migrations are idempotent and data persists
	s, err = OpenGraph(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()
	c, err := s.GetClaim(context.Background(), "a")
	if err != nil || c == nil {
		t.Fatalf("GetClaim after reopen = %v, %v", c, err)
	}
}

func TestGraphStore_ClaimRoundTrip(t *testing.T) {
	s := newGraph(t)
	ctx := context.Background()
	extracted := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mustCreate(t, s, model.Claim{
		ID: "c1", Text: "The tower is 330 metres tall.", SourceURL: "https://en.wikipedia.org/wiki/Tower",
		ArticleID: "art1", Language: "en", ExtractedAt: extracted, DecayScore: 0.5, IsImmutable: true,
	})

	c, err := s.GetClaim(ctx, "c1")
	if err != nil {
		t.Fatalf("GetClaim: %v", err)
	}
	if !c.IsImmutable || c.HalfLifeDays != 3650 || !c.ExtractedAt.Equal(extracted) {
		t.Errorf("unexpected claim: %+v", c)
	}

	missing, err := s.GetClaim(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("missing claim = %v, %v; want nil, nil", missing, err)
	}

	err = s.CreateClaim(ctx, model.Claim{ID: "c1", Text: "dup"})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("duplicate id: got %v", err)
	}
}

func TestGraphStore_Edges(t *testing.T) {
	s := newGraph(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		mustCreate(t, s, model.Claim{ID: id, Text: "claim " + id})
	}

	if err := s.CreateSupportEdge(ctx, "a", "c", 2.0); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateSupportEdge(ctx, "b", "c", 1.5); err != nil {
		t.Fatal(err)
	}

	in, err := s.IncomingEdges(ctx, "c")
	if err != nil || len(in) != 2 {
		t.Fatalf("IncomingEdges = %v, %v", in, err)
	}
	out, err := s.OutgoingEdges(ctx, "a")
	if err != nil || len(out) != 1 || out[0].To != "c" {
		t.Fatalf("OutgoingEdges = %v, %v", out, err)
	}

	if err := s.CreateSupportEdge(ctx, "a", "b", 0); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("zero weight: got %v", err)
	}
	if err := s.CreateSupportEdge(ctx, "a", "ghost", 1); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("dangling edge: got %v", err)
	}
}

func TestGraphStore_UpdateDecayAndIncrement(t *testing.T) {
	s := newGraph(t)
	ctx := context.Background()
	mustCreate(t, s, model.Claim{ID: "x", Text: "X"})

	if err := s.UpdateDecay(ctx, "x", 0.75, 182); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := s.IncrementContradictionCount(ctx, "x"); err != nil {
			t.Fatal(err)
		}
	}

	c, _ := s.GetClaim(ctx, "x")
	if c.DecayScore != 0.75 || c.HalfLifeDays != 182 || c.ContradictionCount != 3 {
		t.Errorf("unexpected claim: %+v", c)
	}

	if err := s.UpdateDecay(ctx, "ghost", 0.1, 10); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("UpdateDecay missing: %v", err)
	}
	if err := s.IncrementContradictionCount(ctx, "ghost"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Increment missing: %v", err)
	}
}

func TestGraphStore_DeleteClaim(t *testing.T) {
	s := newGraph(t)
	ctx := context.Background()
	mustCreate(t, s, model.Claim{ID: "a", Text: "A"})
	mustCreate(t, s, model.Claim{ID: "b", Text: "B"})
	if err := s.CreateSupportEdge(ctx, "a", "b", 1.0); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteClaim(ctx, "a"); err != nil {
		t.Fatalf("DeleteClaim: %v", err)
	}
	if c, _ := s.GetClaim(ctx, "a"); c != nil {
		t.Errorf("claim still present: %+v", c)
	}
	if n, _ := s.CountClaims(ctx); n != 1 {
		t.Errorf("CountClaims = %d, want 1", n)
	}
	if err := s.DeleteClaim(ctx, "a"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestGraphStore_ListVulnerable(t *testing.T) {
	s := newGraph(t)
	ctx := context.Background()

	mustCreate(t, s, model.Claim{ID: "hot", Text: "hot", DecayScore: 0.8, ContradictionCount: 2})
	mustCreate(t, s, model.Claim{ID: "warm", Text: "warm", DecayScore: 0.5})
	mustCreate(t, s, model.Claim{ID: "tie", Text: "tie", DecayScore: 0.5})
	mustCreate(t, s, model.Claim{ID: "fixed", Text: "fixed", DecayScore: 0.9, IsImmutable: true})
	mustCreate(t, s, model.Claim{ID: "s1", Text: "s1"})
	mustCreate(t, s, model.Claim{ID: "s2", Text: "s2"})

	_ = s.CreateSupportEdge(ctx, "s1", "hot", 2.0)
	_ = s.CreateSupportEdge(ctx, "s2", "hot", 1.0)
	_ = s.CreateSupportEdge(ctx, "s1", "warm", 1.0)
	_ = s.CreateSupportEdge(ctx, "s1", "tie", 1.0)
	_ = s.CreateSupportEdge(ctx, "s1", "fixed", 5.0)

	records, err := s.ListVulnerable(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListVulnerable: %v", err)
	}

	wantOrder := []string{"hot", "tie", "warm", "s1", "s2"}
	if len(records) != len(wantOrder) {
		t.Fatalf("got %d records, want %d", len(records), len(wantOrder))
	}
	for i, id := range wantOrder {
		if records[i].Claim.ID != id {
			t.Errorf("records[%d] = %s, want %s", i, records[i].Claim.ID, id)
		}
	}

	// 0.8 * 3.0 * 3
	if got := records[0].Score; got < 7.2-1e-9 || got > 7.2+1e-9 {
		t.Errorf("hot score = %v, want 7.2", got)
	}
	if records[0].DependencyWeight != 3.0 {
		t.Errorf("hot weight = %v, want 3", records[0].DependencyWeight)
	}
	if records[3].DependencyWeight != 0 || records[3].Score != 0 {
		t.Errorf("unsupported claim should have zero weight: %+v", records[3])
	}

	page, _ := s.ListVulnerable(ctx, 2, 1)
	if len(page) != 2 || page[0].Claim.ID != "tie" {
		t.Errorf("page = %+v", page)
	}

	n, _ := s.CountVulnerable(ctx)
	if n != 5 {
		t.Errorf("CountVulnerable = %d, want 5", n)
	}
}

func TestGraphStore_Articles(t *testing.T) {
	s := newGraph(t)
	ctx := context.Background()

	a, err := s.UpsertArticle(ctx, model.Article{ID: "art1", URL: "https://en.wikipedia.org/wiki/X", Title: "X", Language: "en"})
	if err != nil {
		t.Fatalf("UpsertArticle: %v", err)
	}
	again, err := s.UpsertArticle(ctx, model.Article{ID: "art2", URL: "https://en.wikipedia.org/wiki/X", Title: "X v2", Language: "en"})
	if err != nil {
		t.Fatalf("UpsertArticle again: %v", err)
	}
	if again.ID != a.ID || again.Title != "X v2" {
		t.Errorf("expected stable ID with updated title, got %+v", again)
	}

	mustCreate(t, s, model.Claim{ID: "c2", Text: "second", ArticleID: "art1", ExtractedAt: time.Unix(200, 0)})
	mustCreate(t, s, model.Claim{ID: "c1", Text: "first", ArticleID: "art1", ExtractedAt: time.Unix(100, 0)})

	claims, err := s.ClaimsByArticle(ctx, "art1")
	if err != nil || len(claims) != 2 || claims[0].ID != "c1" {
		t.Errorf("ClaimsByArticle = %v, %v", claims, err)
	}
}

func TestGraphStore_GetClaimsAndMutableIDs(t *testing.T) {
	s := newGraph(t)
	ctx := context.Background()
	mustCreate(t, s, model.Claim{ID: "m1", Text: "m1"})
	mustCreate(t, s, model.Claim{ID: "i1", Text: "i1", IsImmutable: true})

	claims, err := s.GetClaims(ctx, []string{"m1", "i1", "ghost"})
	if err != nil || len(claims) != 2 {
		t.Errorf("GetClaims = %v, %v", claims, err)
	}

	ids, err := s.MutableClaimIDs(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "m1" {
		t.Errorf("MutableClaimIDs = %v, %v", ids, err)
	}

	n, _ := s.CountClaims(ctx)
	if n != 2 {
		t.Errorf("CountClaims = %d", n)
	}
}
