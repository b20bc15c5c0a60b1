package pipeline

import (
	"context"
	"time"

	"github.com/ppiankov/antibody/internal/decay"
	"github.com/ppiankov/antibody/internal/logging"
	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/worker"
)

// ComputeDecay recomputes and stores one claim's decay score and half-life
func (s *Service) ComputeDecay(ctx context.Context, claimID string, checkTrending bool) (*model.DecayResult, error) {
	c, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	f := s.forecaster.Calculate(ctx, decay.Input{
		Text:        c.Text,
		IsImmutable: c.IsImmutable,
		ExtractedAt: c.ExtractedAt,
	}, checkTrending)

	uctx, cancel := bound(ctx, s.cfg.Timeouts.Graph)
	defer cancel()
	if err := s.graph.UpdateDecay(uctx, c.ID, f.DecayScore, f.HalfLifeDays); err != nil {
		return nil, model.External("graph store", err)
	}

	logging.Debug("decay computed", "claim", c.ID, "score", f.DecayScore, "half_life", f.HalfLifeDays,
		"age_factor", f.AgeFactor, "boost", f.VelocityBoost)

	return &model.DecayResult{
		ClaimID:      c.ID,
		Status:       model.StatusCompleted,
		DecayScore:   f.DecayScore,
		HalfLifeDays: f.HalfLifeDays,
	}, nil
}

// BatchDecay computes decay for every claim. Results match ids by position; item failures
// are recorded in their slot and reported together as ErrPartialBatchFailure.
func (s *Service) BatchDecay(ctx context.Context, ids []string, checkTrending bool) ([]model.DecayResult, model.BatchSummary, error) {
	if err := s.preflight(ctx, ids); err != nil {
		return nil, model.BatchSummary{}, err
	}

	processor := worker.NewBatchProcessor[*model.DecayResult](func(ctx context.Context, id string) (*model.DecayResult, error) {
		return s.ComputeDecay(ctx, id, checkTrending)
	}, s.cfg.Worker.Concurrency, 0)

	raw := processor.Process(ctx, ids)
	results := make([]model.DecayResult, len(raw))
	for i, r := range raw {
		if r.Error != nil {
			logging.Warn("decay failed", "claim", r.ClaimID, "err", r.Error)
			results[i] = model.DecayResult{ClaimID: r.ClaimID, Status: model.StatusFailed, Error: r.Error.Error()}
			continue
		}
		results[i] = *r.Value
	}

	summary := summarize(len(results), func(i int) bool { return results[i].Status == model.StatusFailed })
	return results, summary, partialErr(summary)
}

// RefreshDecay recomputes decay for every mutable claim
func (s *Service) RefreshDecay(ctx context.Context, checkTrending bool) ([]model.DecayResult, model.BatchSummary, error) {
	lctx, cancel := bound(ctx, s.cfg.Timeouts.Graph)
	ids, err := s.graph.MutableClaimIDs(lctx)
	cancel()
	if err != nil {
		return nil, model.BatchSummary{}, model.External("graph store", err)
	}
	if len(ids) == 0 {
		return []model.DecayResult{}, model.BatchSummary{}, nil
	}

	var (
		all     []model.DecayResult
		summary model.BatchSummary
		lastErr error
	)
	for start := 0; start < len(ids); start += maxBatchSize {
		end := min(start+maxBatchSize, len(ids))
		results, sum, err := s.BatchDecay(ctx, ids[start:end], checkTrending)
		if results == nil {
			return all, summary, err
		}
		all = append(all, results...)
		summary.Total += sum.Total
		summary.Completed += sum.Completed
		summary.Failed += sum.Failed
		if err != nil {
			lastErr = err
		}
	}
	return all, summary, lastErr
}

// RunRefreshLoop refreshes decay every interval until ctx is done
func (s *Service) RunRefreshLoop(ctx context.Context, interval time.Duration, checkTrending bool) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, summary, err := s.RefreshDecay(ctx, checkTrending)
			if err != nil {
				logging.Warn("decay refresh finished with errors", "err", err, "failed", summary.Failed)
				continue
			}
			logging.Info("decay refresh completed", "claims", summary.Total)
		}
	}
}

func summarize(n int, failed func(i int) bool) model.BatchSummary {
	summary := model.BatchSummary{Total: n}
	for i := 0; i < n; i++ {
		if failed(i) {
			summary.Failed++
		} else {
			summary.Completed++
		}
	}
	return summary
}

func partialErr(summary model.BatchSummary) error {
	if summary.Failed == 0 {
		return nil
	}
	return model.PartialFailure(summary.Failed, summary.Total)
}
