package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProvider_AssessContradiction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		if req.Format != "json" {
			t.Errorf("Format = %q, want json", req.Format)
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:           req.Model,
			Response:        `{"contradicts": true, "confidence": 1.7, "reasoning": "x"}`,
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       5,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1:8b", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.AssessContradiction(context.Background(), AssessRequest{ClaimA: "a", ClaimB: "b"})
	if err != nil {
		t.Fatalf("AssessContradiction failed: %v", err)
	}
	if !resp.Contradicts {
		t.Error("expected contradiction")
	}
	if resp.Confidence != 1 {
		t.Errorf("Confidence = %v, want clamped 1", resp.Confidence)
	}
	if resp.Model != "llama3.1:8b" || resp.TokensUsed != 15 {
		t.Errorf("unexpected metadata: %+v", resp)
	}
}

func TestOllamaProvider_SynthesizeUpdate_EstimatesTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Model: "mistral", Response: "Unchanged claim.", Done: true})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "mistral", Timeout: 5, StrictEvidence: true})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.SynthesizeUpdate(context.Background(), SynthesizeRequest{OriginalClaim: "Unchanged claim."})
	if err != nil {
		t.Fatalf("SynthesizeUpdate failed: %v", err)
	}
	if resp.TokensUsed == 0 {
		t.Error("expected estimated token count")
	}
	if len(resp.CitedURLs) != 0 {
		t.Errorf("CitedURLs = %v, want none", resp.CitedURLs)
	}
}

func TestOllamaProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model 'nope' not found"}`))
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "nope", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if _, err := provider.AssessContradiction(context.Background(), AssessRequest{ClaimA: "a", ClaimB: "b"}); err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models": []}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL})
	if !provider.IsAvailable(context.Background()) {
		t.Error("expected provider to be available")
	}
}

func TestOllamaProvider_NoModel(t *testing.T) {
	provider, _ := NewOllamaProvider(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := provider.AssessContradiction(context.Background(), AssessRequest{ClaimA: "a", ClaimB: "b"}); err == nil {
		t.Fatal("expected error when no model is configured")
	}
}
