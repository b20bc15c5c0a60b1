package pipeline

import (
	"context"
	"strings"

	"github.com/ppiankov/antibody/internal/logging"
	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/worker"
)

// RetrieveOptions tune one adversarial retrieval
type RetrieveOptions struct {
	Languages  []string `json:"target_languages,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
}

func (o RetrieveOptions) validate() error {
	if o.MaxResults < 0 || o.MaxResults > maxPageSize {
		return model.Invalid("max_results must be between 1 and %d", maxPageSize)
	}
	for _, l := range o.Languages {
		if strings.TrimSpace(l) == "" {
			return model.Invalid("target_languages must not contain empty codes")
		}
	}
	return nil
}

// Retrieve searches for sources contradicting a stored claim
func (s *Service) Retrieve(ctx context.Context, claimID string, opts RetrieveOptions) (*model.RetrievalResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	c, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	sources, err := s.retriever.FindContradicting(ctx, c.ID, c.Text, opts.Languages, opts.MaxResults)
	if err != nil {
		return nil, err
	}

	return &model.RetrievalResult{
		ClaimID:              c.ID,
		Status:               model.StatusCompleted,
		ContradictionsFound:  len(sources),
		ContradictingSources: sources,
	}, nil
}

// BatchRetrieve runs adversarial retrieval for every claim with per-item isolation
func (s *Service) BatchRetrieve(ctx context.Context, ids []string, opts RetrieveOptions) ([]model.RetrievalResult, model.BatchSummary, error) {
	if err := opts.validate(); err != nil {
		return nil, model.BatchSummary{}, err
	}
	if err := s.preflight(ctx, ids); err != nil {
		return nil, model.BatchSummary{}, err
	}

	processor := worker.NewBatchProcessor[*model.RetrievalResult](func(ctx context.Context, id string) (*model.RetrievalResult, error) {
		return s.Retrieve(ctx, id, opts)
	}, s.cfg.Worker.Concurrency, 0)

	raw := processor.Process(ctx, ids)
	results := make([]model.RetrievalResult, len(raw))
	for i, r := range raw {
		if r.Error != nil {
			logging.Warn("retrieval failed", "claim", r.ClaimID, "err", r.Error)
			results[i] = model.RetrievalResult{ClaimID: r.ClaimID, Status: model.StatusFailed, Error: r.Error.Error()}
			continue
		}
		results[i] = *r.Value
	}

	summary := summarize(len(results), func(i int) bool { return results[i].Status == model.StatusFailed })
	return results, summary, partialErr(summary)
}

// Similar finds stored claims similar to free text
func (s *Service) Similar(ctx context.Context, query, language string, maxResults int) ([]model.SimilarClaim, error) {
	if strings.TrimSpace(query) == "" {
		return nil, model.Invalid("query must not be empty")
	}
	if maxResults < 0 || maxResults > maxPageSize {
		return nil, model.Invalid("max_results must be between 1 and %d", maxPageSize)
	}
	return s.retriever.SearchSimilar(ctx, query, language, maxResults)
}

// Stats describes the vector collection and the claim graph. Failures are reported in the
// result rather than returned.
func (s *Service) Stats(ctx context.Context) model.RetrievalStats {
	stats := model.RetrievalStats{Status: "ok", Collection: s.cfg.Store.Collection}

	vctx, cancel := bound(ctx, s.cfg.Timeouts.Vector)
	defer cancel()
	info, err := s.vectors.Info(vctx, s.cfg.Store.Collection)
	if err != nil {
		stats.Status = "error"
		stats.Error = err.Error()
		return stats
	}
	stats.Dimension = info.Dimensions
	stats.PointsCount = info.PointsCount

	gctx, gcancel := bound(ctx, s.cfg.Timeouts.Graph)
	defer gcancel()
	count, err := s.graph.CountClaims(gctx)
	if err != nil {
		stats.Status = "error"
		stats.Error = err.Error()
		return stats
	}
	stats.ClaimsCount = count
	return stats
}
