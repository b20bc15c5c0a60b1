package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/pipeline"
	"github.com/ppiankov/antibody/internal/triage"
)

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	deps, err := s.svc.ClaimWithDependencies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deps)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Explain(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	impact, err := s.svc.Impact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, impact)
}

func (s *Server) handleVulnerable(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := s.svc.Vulnerable(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claims": records,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleArticleClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := s.svc.ArticleClaims(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": claims, "count": len(claims)})
}

func (s *Server) handleIngestClaim(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ClaimInput
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.svc.IngestClaim(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleIngestEdge(w http.ResponseWriter, r *http.Request) {
	var req pipeline.EdgeInput
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	edge, err := s.svc.IngestEdge(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}

func (s *Server) handleIngestArticle(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ArticleInput
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.svc.IngestArticle(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// checkTrendingParam reads ?check_trending, falling back to the configured default
func (s *Server) checkTrendingParam(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("check_trending")
	if v == "" {
		return s.checkTrending, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, model.Invalid("check_trending must be a boolean")
	}
	return b, nil
}

func (s *Server) handleDecay(w http.ResponseWriter, r *http.Request) {
	trending, err := s.checkTrendingParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.svc.ComputeDecay(r.Context(), chi.URLParam(r, "id"), trending)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type batchRequest struct {
	ClaimIDs      []string `json:"claim_ids"`
	CheckTrending *bool    `json:"check_trending,omitempty"`
	pipeline.RetrieveOptions
}

func (s *Server) trending(req batchRequest) bool {
	if req.CheckTrending == nil {
		return s.checkTrending
	}
	return *req.CheckTrending
}

// writeBatch reports a partial failure alongside the per-item results
func writeBatch(w http.ResponseWriter, results any, summary model.BatchSummary, err error) {
	if err != nil && !errors.Is(err, model.ErrPartialBatchFailure) {
		writeError(w, err)
		return
	}
	body := map[string]any{"results": results, "summary": summary}
	if err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDecayBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	results, summary, err := s.svc.BatchDecay(r.Context(), req.ClaimIDs, s.trending(req))
	writeBatch(w, results, summary, err)
}

func (s *Server) handleDecayRefresh(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decode(w, r, &req, true); err != nil {
		writeError(w, err)
		return
	}
	// Refreshing everything checks trends only when asked
	trending := req.CheckTrending != nil && *req.CheckTrending
	_, summary, err := s.svc.RefreshDecay(r.Context(), trending)
	if err != nil && !errors.Is(err, model.ErrPartialBatchFailure) {
		writeError(w, err)
		return
	}
	body := map[string]any{"summary": summary}
	if err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClaimID string `json:"claim_id"`
		pipeline.RetrieveOptions
	}
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.svc.Retrieve(r.Context(), req.ClaimID, req.RetrieveOptions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRetrieveBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	results, summary, err := s.svc.BatchRetrieve(r.Context(), req.ClaimIDs, req.RetrieveOptions)
	writeBatch(w, results, summary, err)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query      string `json:"query"`
		Language   string `json:"language,omitempty"`
		MaxResults int    `json:"max_results,omitempty"`
	}
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	results, err := s.svc.Similar(r.Context(), req.Query, req.Language, req.MaxResults)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (s *Server) handleRetrievalStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats(r.Context()))
}

func (s *Server) handleTriageQueue(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, err)
		return
	}
	queue, err := s.triage.Queue(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"queue":  queue,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleTriageAction(w http.ResponseWriter, r *http.Request) {
	var req triage.ActionRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	rem, err := s.triage.Record(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

func (s *Server) handleRemediation(w http.ResponseWriter, r *http.Request) {
	rem, err := s.triage.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := s.triage.History(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claim_id": id, "history": history})
}

func (s *Server) handleTriageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.triage.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req pipeline.SuggestRequest
	if err := decode(w, r, &req, true); err != nil {
		writeError(w, err)
		return
	}
	suggestion, err := s.svc.Suggest(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}
