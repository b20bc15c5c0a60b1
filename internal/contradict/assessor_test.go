package contradict

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ppiankov/antibody/internal/llm"
	"github.com/ppiankov/antibody/internal/logging"
)

func TestHeuristic_Contradicts(t *testing.T) {
	h := NewHeuristic()

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"asymmetric negation with shared words", "The bridge was built in 1990", "The bridge was not built in 1990", true},
		{"no negation", "The sky is blue", "Water is wet", false},
		{"both negated", "The bridge was not built in 1990", "The bridge was never built in 1990", false},
		{"negation but only stop words shared", "It is in the box", "No, the cat is in", false},
		{"single shared word", "Paris is large", "Paris is not small", false},
		{"case insensitive", "EINSTEIN WON THE NOBEL PRIZE", "einstein never won the nobel prize", true},
		{"negation word with punctuation", "The vaccine is safe for children", "The vaccine is safe for children? False.", true},
		{"negation substring does not count", "Notre-Dame burned in 2019", "The cathedral burned in 2019", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Contradicts(tt.a, tt.b); got != tt.want {
				t.Errorf("Contradicts(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := h.Contradicts(tt.b, tt.a); got != tt.want {
				t.Errorf("Contradicts should be symmetric for %q / %q", tt.a, tt.b)
			}
		})
	}
}

func TestSharedSignificantWords(t *testing.T) {
	got := SharedSignificantWords("the bridge was built in 1990", "the bridge was not built in 1990")
	want := []string{"bridge", "built", "1990"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

type fakeJudge struct {
	resp *llm.AssessResponse
	err  error
	req  llm.AssessRequest
}

func (f *fakeJudge) Name() string { return "fake" }

func (f *fakeJudge) AssessContradiction(ctx context.Context, req llm.AssessRequest) (*llm.AssessResponse, error) {
	f.req = req
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("expected a deadline")
	}
	return f.resp, f.err
}

func TestModelAssessor(t *testing.T) {
	logging.Discard()

	tests := []struct {
		name string
		resp *llm.AssessResponse
		err  error
		a, b string
		want bool
	}{
		{"model says contradiction", &llm.AssessResponse{Contradicts: true, Confidence: 0.9}, nil, "x", "y", true},
		{"low confidence ignored", &llm.AssessResponse{Contradicts: true, Confidence: 0.2}, nil, "x", "y", false},
		{"model says consistent", &llm.AssessResponse{Contradicts: false, Confidence: 0.99}, nil, "x", "y", false},
		{"failure falls back to heuristic", nil, errors.New("503"), "The bridge was built in 1990", "The bridge was not built in 1990", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judge := &fakeJudge{resp: tt.resp, err: tt.err}
			m := NewModelAssessor(judge, nil, time.Second)
			if got := m.Contradicts(tt.a, tt.b); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if judge.req.ClaimA != tt.a || judge.req.ClaimB != tt.b {
				t.Errorf("judge received %+v", judge.req)
			}
		})
	}
}

type blockingJudge struct{ calls int }

func (j *blockingJudge) Name() string { return "blocking" }

func (j *blockingJudge) AssessContradiction(ctx context.Context, req llm.AssessRequest) (*llm.AssessResponse, error) {
	j.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestModelAssessor_ContextCancellation(t *testing.T) {
	logging.Discard()
	const a, b = "The bridge was built in 1990", "The bridge was not built in 1990"

	t.Run("deadline reaches the model call", func(t *testing.T) {
		m := NewModelAssessor(&blockingJudge{}, nil, 5*time.Second)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		start := time.Now()
		got, err := m.ContradictsContext(ctx, a, b)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline error, got %v", err)
		}
		if got {
			t.Error("a cancelled assessment must not report a contradiction")
		}
		if d := time.Since(start); d > time.Second {
			t.Errorf("returned after %v", d)
		}
	})

	t.Run("already cancelled skips the model", func(t *testing.T) {
		judge := &blockingJudge{}
		m := NewModelAssessor(judge, nil, 5*time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := m.ContradictsContext(ctx, a, b); !errors.Is(err, context.Canceled) {
			t.Errorf("expected canceled, got %v", err)
		}
		if judge.calls != 0 {
			t.Errorf("judge called %d times", judge.calls)
		}
	})

	t.Run("own timeout falls back", func(t *testing.T) {
		m := NewModelAssessor(&blockingJudge{}, nil, 20*time.Millisecond)
		got, err := m.ContradictsContext(context.Background(), a, b)
		if err != nil {
			t.Fatalf("assessor timeout should fall back, got %v", err)
		}
		if !got {
			t.Error("heuristic fallback should flag the negated pair")
		}
	})
}
