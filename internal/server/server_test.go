package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/antibody/internal/embed"
	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/pipeline"
	"github.com/ppiankov/antibody/internal/store"
	"github.com/ppiankov/antibody/internal/triage"
)

type staticEmbedder struct{}

func (staticEmbedder) Embed(ctx context.Context, text string, mode embed.Mode) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "bridge") {
		return []float32{1, 0, 0}, nil
	}
	return []float32{0, 1, 0}, nil
}

func (e staticEmbedder) EmbedBatch(ctx context.Context, texts []string, mode embed.Mode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t, mode)
	}
	return out, nil
}

func (staticEmbedder) Dimensions() int { return 3 }
func (staticEmbedder) Model() string   { return "static" }

func testServer(t *testing.T, mutate func(*model.Config)) *Server {
	t.Helper()

	g, err := store.OpenGraphMemory()
	if err != nil {
		t.Fatalf("OpenGraphMemory: %v", err)
	}
	v, err := store.OpenVectorsMemory()
	if err != nil {
		t.Fatalf("OpenVectorsMemory: %v", err)
	}
	log, err := triage.OpenStore(filepath.Join(t.TempDir(), "triage.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() {
		_ = log.Close()
		_ = g.Close()
		_ = v.Close()
	})

	cfg := model.DefaultConfig()
	cfg.Embedding.Dimension = 3
	cfg.Decay.CheckTrending = false
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	svc := pipeline.New(cfg, pipeline.Deps{Graph: g, Vectors: v, Embedder: staticEmbedder{}})
	tri := triage.NewService(log, g, svc, cfg.Timeouts.Graph)
	return New(svc, tri, "test-version", cfg)
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return v
}

func createClaim(t *testing.T, srv *Server, text string) model.Claim {
	t.Helper()
	w := do(t, srv, "POST", "/api/claims", pipeline.ClaimInput{Text: text, Language: "en"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create claim: status %d: %s", w.Code, w.Body.String())
	}
	return decodeBody[model.Claim](t, w)
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, nil)

	w := do(t, srv, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := decodeBody[map[string]any](t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
}

func TestClaimLifecycle(t *testing.T) {
	srv := testServer(t, nil)
	a := createClaim(t, srv, "The bridge carries 40000 cars a day")
	b := createClaim(t, srv, "The bridge toll is five dollars")

	w := do(t, srv, "POST", "/api/edges", pipeline.EdgeInput{From: a.ID, To: b.ID, Weight: 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("edge: %d %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", "/api/graph/claim/"+b.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("claim: %d", w.Code)
	}
	deps := decodeBody[model.ClaimWithDependencies](t, w)
	if len(deps.SupportedBy) != 1 || deps.SupportedBy[0].ID != a.ID {
		t.Errorf("unexpected dependencies: %+v", deps)
	}

	w = do(t, srv, "GET", "/api/graph/impact/"+a.ID, nil)
	impact := decodeBody[model.ImpactResult](t, w)
	if impact.AffectedCount != 1 || impact.AffectedClaims[0] != b.ID {
		t.Errorf("unexpected impact: %+v", impact)
	}

	w = do(t, srv, "POST", "/api/decay/"+b.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("decay: %d %s", w.Code, w.Body.String())
	}
	res := decodeBody[model.DecayResult](t, w)
	if res.DecayScore != 0.5 {
		t.Errorf("decay score = %v", res.DecayScore)
	}

	w = do(t, srv, "GET", "/api/graph/vulnerable?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("vulnerable: %d", w.Code)
	}
	page := decodeBody[struct {
		Claims []model.VulnerabilityRecord `json:"claims"`
	}](t, w)
	if len(page.Claims) != 2 || page.Claims[0].Claim.ID != b.ID || page.Claims[0].Score != 1.0 {
		t.Errorf("unexpected queue: %+v", page.Claims)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := testServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing claim", "GET", "/api/graph/claim/ghost", nil, http.StatusNotFound},
		{"missing impact", "GET", "/api/graph/impact/ghost", nil, http.StatusNotFound},
		{"decay missing", "POST", "/api/decay/ghost", nil, http.StatusNotFound},
		{"limit too large", "GET", "/api/graph/vulnerable?limit=101", nil, http.StatusBadRequest},
		{"negative offset", "GET", "/api/triage/queue?offset=-1", nil, http.StatusBadRequest},
		{"bad limit", "GET", "/api/graph/vulnerable?limit=abc", nil, http.StatusBadRequest},
		{"bad trending flag", "POST", "/api/decay/x?check_trending=maybe", nil, http.StatusBadRequest},
		{"empty claim", "POST", "/api/claims", map[string]string{"text": ""}, http.StatusBadRequest},
		{"empty batch", "POST", "/api/decay/batch", map[string]any{"claim_ids": []string{}}, http.StatusBadRequest},
		{"invalid json", "POST", "/api/edges", "not an object", http.StatusBadRequest},
		{"bad action", "POST", "/api/triage/action", map[string]string{"claim_id": "x", "action": "deleted"}, http.StatusBadRequest},
		{"action on missing claim", "POST", "/api/triage/action", map[string]string{"claim_id": "ghost", "action": "verified"}, http.StatusNotFound},
		{"bad remediation id", "GET", "/api/triage/remediation/nope", nil, http.StatusBadRequest},
		{"suggest without llm", "POST", "/api/triage/suggest/ghost", nil, http.StatusBadRequest},
		{"unknown route", "GET", "/api/nope", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
			if strings.HasPrefix(tt.path, "/api/nope") {
				return
			}
			if body := decodeBody[map[string]string](t, w); body["error"] == "" {
				t.Error("expected error message in body")
			}
		})
	}
}

func TestDecayBatchPartialFailure(t *testing.T) {
	srv := testServer(t, nil)
	a := createClaim(t, srv, "The bridge carries 40000 cars a day")

	w := do(t, srv, "POST", "/api/decay/batch", map[string]any{"claim_ids": []string{a.ID, "ghost"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody[struct {
		Results []model.DecayResult `json:"results"`
		Summary model.BatchSummary  `json:"summary"`
		Error   string              `json:"error"`
	}](t, w)
	if len(body.Results) != 2 || body.Results[1].Status != model.StatusFailed || body.Summary.Failed != 1 {
		t.Errorf("unexpected batch: %+v", body)
	}
	if body.Error == "" {
		t.Error("partial failure should be reported")
	}
}

func TestRetrieveEndpoints(t *testing.T) {
	srv := testServer(t, nil)
	orig := createClaim(t, srv, "The bridge was built in 1990")
	createClaim(t, srv, "The bridge was not built in 1990")

	w := do(t, srv, "POST", "/api/retrieve/adversarial", map[string]any{"claim_id": orig.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("retrieve: %d %s", w.Code, w.Body.String())
	}
	res := decodeBody[model.RetrievalResult](t, w)
	if res.ContradictionsFound != 1 {
		t.Errorf("contradictions = %d", res.ContradictionsFound)
	}

	w = do(t, srv, "POST", "/api/retrieve/similar", map[string]any{"query": "bridge", "max_results": 5})
	sim := decodeBody[struct {
		Count int `json:"count"`
	}](t, w)
	if w.Code != http.StatusOK || sim.Count != 2 {
		t.Errorf("similar: %d %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", "/api/retrieve/stats", nil)
	stats := decodeBody[model.RetrievalStats](t, w)
	if stats.Status != "ok" || stats.PointsCount != 2 || stats.ClaimsCount != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestTriageFlow(t *testing.T) {
	srv := testServer(t, nil)
	c := createClaim(t, srv, "The bridge carries 40000 cars a day")

	w := do(t, srv, "POST", "/api/triage/action", triage.ActionRequest{ClaimID: c.ID, Action: "flagged", Editor: "ed"})
	if w.Code != http.StatusCreated {
		t.Fatalf("action: %d %s", w.Code, w.Body.String())
	}
	rem := decodeBody[model.Remediation](t, w)

	w = do(t, srv, "GET", "/api/triage/remediation/"+rem.ID, nil)
	if got := decodeBody[model.Remediation](t, w); got.ClaimID != c.ID {
		t.Errorf("remediation = %+v", got)
	}

	w = do(t, srv, "GET", "/api/triage/claim/"+c.ID+"/history", nil)
	history := decodeBody[struct {
		History []model.Remediation `json:"history"`
	}](t, w)
	if len(history.History) != 1 {
		t.Errorf("history = %+v", history)
	}

	w = do(t, srv, "GET", "/api/triage/stats", nil)
	stats := decodeBody[model.TriageStats](t, w)
	if stats.TotalRemediations != 1 || stats.RemediationsByAction[model.ActionFlagged] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	w = do(t, srv, "GET", "/api/triage/queue", nil)
	if w.Code != http.StatusOK {
		t.Errorf("queue: %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	srv := testServer(t, func(cfg *model.Config) {
		cfg.RateLimit = model.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2}
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	// Another client has its own bucket
	req := httptest.NewRequest("GET", "/api/health", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("second client: %d", w.Code)
	}
}

func TestRateLimit_IgnoresForwardedHeaders(t *testing.T) {
	srv := testServer(t, func(cfg *model.Config) {
		cfg.RateLimit = model.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	})

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest("GET", "/api/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			allowed++
		}
	}

	if allowed != 1 {
		t.Errorf("allowed %d of 50 requests from one peer, want 1", allowed)
	}
	if n := srv.limiter.Len(); n != 1 {
		t.Errorf("limiter tracks %d keys, want 1", n)
	}
}

func TestRateLimit_TrustedProxy(t *testing.T) {
	srv := testServer(t, func(cfg *model.Config) {
		cfg.RateLimit = model.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1, TrustProxy: true}
	})

	tests := []struct {
		forwarded string
		want      int
	}{
		{"203.0.113.1", http.StatusOK},
		{"203.0.113.1", http.StatusTooManyRequests},
		{"203.0.113.2", http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/api/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", tt.forwarded)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("client %s: code = %d, want %d", tt.forwarded, w.Code, tt.want)
		}
	}
}
