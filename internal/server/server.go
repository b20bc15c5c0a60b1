// Package server exposes the pipeline and the triage log over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/antibody/internal/logging"
	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/pipeline"
	"github.com/ppiankov/antibody/internal/triage"
	"github.com/ppiankov/antibody/internal/worker"
)

const (
	maxBodyBytes     = 1 << 20
	defaultPageLimit = 20
)

// Server is the antibody HTTP API server.
type Server struct {
	svc           *pipeline.Service
	triage        *triage.Service
	router        chi.Router
	limiter       *worker.Limiter // nil when rate limiting is off
	checkTrending bool
	trustProxy    bool
	version       string
	started       time.Time
}

// New creates a Server. Rate limiting and the default trend check come from cfg.
func New(svc *pipeline.Service, tri *triage.Service, version string, cfg model.Config) *Server {
	s := &Server{
		svc:           svc,
		triage:        tri,
		checkTrending: cfg.Decay.CheckTrending,
		trustProxy:    cfg.RateLimit.TrustProxy,
		version:       version,
		started:       time.Now(),
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute > 0 {
		s.limiter = worker.NewLimiter(float64(cfg.RateLimit.RequestsPerMinute)/60.0, cfg.RateLimit.Burst)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.rateLimit)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/graph", func(r chi.Router) {
			r.Get("/claim/{id}", s.handleClaim)
			r.Get("/claim/{id}/score", s.handleExplain)
			r.Get("/impact/{id}", s.handleImpact)
			r.Get("/vulnerable", s.handleVulnerable)
			r.Get("/article/{id}/claims", s.handleArticleClaims)
		})

		r.Post("/claims", s.handleIngestClaim)
		r.Post("/edges", s.handleIngestEdge)
		r.Post("/articles", s.handleIngestArticle)

		r.Route("/decay", func(r chi.Router) {
			r.Post("/batch", s.handleDecayBatch)
			r.Post("/refresh", s.handleDecayRefresh)
			r.Post("/{id}", s.handleDecay)
		})

		r.Route("/retrieve", func(r chi.Router) {
			r.Post("/adversarial", s.handleRetrieve)
			r.Post("/batch", s.handleRetrieveBatch)
			r.Post("/similar", s.handleSimilar)
			r.Get("/stats", s.handleRetrievalStats)
		})

		r.Route("/triage", func(r chi.Router) {
			r.Get("/queue", s.handleTriageQueue)
			r.Post("/action", s.handleTriageAction)
			r.Get("/remediation/{id}", s.handleRemediation)
			r.Get("/claim/{id}/history", s.handleHistory)
			r.Get("/stats", s.handleTriageStats)
			r.Post("/suggest/{id}", s.handleSuggest)
		})
	})

	s.router = r
}

// rateLimit applies a token bucket per client address. The address is the socket
// peer unless the server trusts a fronting proxy.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the client host without its port
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stores := s.svc.Health(r.Context())
	status := "ok"
	for _, v := range stores {
		if v != "ok" {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"uptime":  math.Round(time.Since(s.started).Seconds()),
		"stores":  stores,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("encode response", "err", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, model.ErrExternalService):
		code = http.StatusBadGateway
	}
	if code >= 500 {
		logging.Error("request failed", "status", code, "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// decode reads a JSON body. An empty body leaves v untouched when optional is set.
func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return model.Invalid("invalid json: %v", err)
	}
	return nil
}

// page reads limit and offset query parameters
func page(r *http.Request) (int, int, error) {
	limit, offset := defaultPageLimit, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, model.Invalid("limit must be an integer")
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, model.Invalid("offset must be an integer")
		}
		offset = n
	}
	return limit, offset, nil
}
