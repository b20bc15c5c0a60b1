package contradict

import (
	"context"
	"time"

	"github.com/ppiankov/antibody/internal/llm"
	"github.com/ppiankov/antibody/internal/logging"
)

// Judge is a model able to assess a claim pair
type Judge interface {
	Name() string
	AssessContradiction(ctx context.Context, req llm.AssessRequest) (*llm.AssessResponse, error)
}

// ModelAssessor asks an LLM whether two claims contradict. Provider failures fall back to
// the heuristic so retrieval never fails because the model is unavailable.
type ModelAssessor struct {
	judge         Judge
	fallback      Assessor
	timeout       time.Duration
	minConfidence float64
}

// NewModelAssessor wraps a judge. A nil fallback uses the heuristic.
func NewModelAssessor(judge Judge, fallback Assessor, timeout time.Duration) *ModelAssessor {
	if fallback == nil {
		fallback = NewHeuristic()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ModelAssessor{
		judge:         judge,
		fallback:      fallback,
		timeout:       timeout,
		minConfidence: 0.5,
	}
}

// Contradicts implements Assessor
func (m *ModelAssessor) Contradicts(a, b string) bool {
	ok, _ := m.ContradictsContext(context.Background(), a, b)
	return ok
}

// ContradictsContext implements ContextAssessor. The model call is bounded by the
// assessor timeout and by ctx. An error is returned only when ctx itself is done;
// any other provider failure falls back.
func (m *ModelAssessor) ContradictsContext(ctx context.Context, a, b string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.judge.AssessContradiction(callCtx, llm.AssessRequest{ClaimA: a, ClaimB: b})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		logging.Warn("model assessment failed, using heuristic", "provider", m.judge.Name(), "err", err)
		return m.fallback.Contradicts(a, b), nil
	}
	return resp.Contradicts && resp.Confidence >= m.minConfidence, nil
}
