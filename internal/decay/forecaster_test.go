package decay

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/antibody/internal/logging"
	"github.com/ppiankov/antibody/internal/model"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeTrends returns canned signals and records every lookup
type fakeTrends struct {
	mu      sync.Mutex
	signals map[string]model.TrendSignal
	errs    map[string]error
	calls   []string
}

func (f *fakeTrends) EntityVelocity(ctx context.Context, entity string) (model.TrendSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, entity)
	if err, ok := f.errs[entity]; ok {
		return model.TrendSignal{}, err
	}
	return f.signals[entity], nil
}

func newTestForecaster(trends TrendProvider) *Forecaster {
	logging.Discard()
	f := NewForecaster(DefaultConfig(), trends)
	f.now = func() time.Time { return fixedNow }
	return f
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculate_FreshClaims(t *testing.T) {
	f := newTestForecaster(nil)

	tests := []struct {
		name         string
		immutable    bool
		wantScore    float64
		wantHalfLife int
	}{
		{"immutable at age zero", true, 0.1, 3650},
		{"mutable at age zero without trend", false, 0.5, 365},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Calculate(context.Background(), Input{
				Text:        "Population of Lisbon is 545,000",
				IsImmutable: tt.immutable,
				ExtractedAt: fixedNow,
			}, true)
			if !almostEqual(got.DecayScore, tt.wantScore) {
				t.Errorf("decay score = %v, want %v", got.DecayScore, tt.wantScore)
			}
			if got.HalfLifeDays != tt.wantHalfLife {
				t.Errorf("half-life = %d, want %d", got.HalfLifeDays, tt.wantHalfLife)
			}
		})
	}
}

func TestCalculate_ImmutableNeverAboveMutable(t *testing.T) {
	f := newTestForecaster(nil)

	for _, days := range []int{0, 1, 30, 365, 1000, 5000, 20000} {
		extracted := fixedNow.Add(-time.Duration(days) * 24 * time.Hour)
		imm := f.Calculate(context.Background(), Input{IsImmutable: true, ExtractedAt: extracted}, false)
		mut := f.Calculate(context.Background(), Input{IsImmutable: false, ExtractedAt: extracted}, false)
		if imm.DecayScore > mut.DecayScore {
			t.Errorf("age %d: immutable %v > mutable %v", days, imm.DecayScore, mut.DecayScore)
		}
	}
}

func TestCalculate_OldMutableSaturates(t *testing.T) {
	f := newTestForecaster(nil)
	got := f.Calculate(context.Background(), Input{
		ExtractedAt: fixedNow.Add(-10000 * 24 * time.Hour),
	}, false)

	if !almostEqual(got.DecayScore, 1.0) {
		t.Errorf("expected saturated decay 1.0, got %v", got.DecayScore)
	}
	if !almostEqual(got.AgeFactor, 0.5) {
		t.Errorf("expected age factor capped at 0.5, got %v", got.AgeFactor)
	}
}

func TestAgeFactor_MonotonicAndBounded(t *testing.T) {
	for _, h := range []int{1, 30, 365, 3650} {
		prev := -1.0
		for age := 0.0; age <= 20000; age += 37 {
			got := AgeFactor(age, h)
			if got < 0 || got > 0.5 {
				t.Fatalf("h=%d age=%v: factor %v out of [0,0.5]", h, age, got)
			}
			if got < prev {
				t.Fatalf("h=%d age=%v: factor decreased from %v to %v", h, age, prev, got)
			}
			prev = got
		}
	}
}

func TestAgeFactor_ZeroHalfLife(t *testing.T) {
	if got := AgeFactor(1000, 0); got != 0 {
		t.Errorf("expected 0 for zero half-life, got %v", got)
	}
}

func TestAgeFactor_OneHalfLife(t *testing.T) {
	// One half-life elapsed leaves half remaining: 1 - 0.5 = 0.5
	if got := AgeFactor(365, 365); !almostEqual(got, 0.5) {
		t.Errorf("expected 0.5, got %v", got)
	}
	if got := AgeFactor(0, 365); got != 0 {
		t.Errorf("expected 0 at age zero, got %v", got)
	}
}

func TestCalculate_TrendingBoostHalvesHalfLife(t *testing.T) {
	trends := &fakeTrends{
		signals: map[string]model.TrendSignal{
			"Tesla": {IsTrending: true, VelocityScore: 8}, // capped at 0.5
			"Musk":  {IsTrending: true, VelocityScore: 4}, // 0.4
		},
		errs: map[string]error{"Gigafactory": errors.New("timeout")},
	}
	f := newTestForecaster(trends)

	got := f.Calculate(context.Background(), Input{
		Text:        "Tesla says Musk will open Gigafactory Berlin",
		ExtractedAt: fixedNow,
	}, true)

	if !almostEqual(got.VelocityBoost, 0.45) {
		t.Errorf("velocity boost = %v, want 0.45", got.VelocityBoost)
	}
	if !almostEqual(got.DecayScore, 0.95) {
		t.Errorf("decay score = %v, want 0.95", got.DecayScore)
	}
	if got.HalfLifeDays != 182 {
		t.Errorf("half-life = %d, want 182", got.HalfLifeDays)
	}
	if len(trends.calls) != 3 {
		t.Errorf("expected 3 lookups (cap), got %d: %v", len(trends.calls), trends.calls)
	}
	if len(got.TrendingEntities) != 2 {
		t.Errorf("expected 2 trending entities, got %v", got.TrendingEntities)
	}
}

func TestCalculate_AllTrendLookupsFail(t *testing.T) {
	fail := errors.New("unreachable")
	trends := &fakeTrends{errs: map[string]error{"Paris": fail, "France": fail, "Europe": fail}}
	f := newTestForecaster(trends)

	got := f.Calculate(context.Background(), Input{
		Text:        "Paris is the capital of France in Europe",
		ExtractedAt: fixedNow,
	}, true)

	if got.VelocityBoost != 0 {
		t.Errorf("expected zero boost, got %v", got.VelocityBoost)
	}
	if !almostEqual(got.DecayScore, 0.5) || got.HalfLifeDays != 365 {
		t.Errorf("expected (0.5, 365), got (%v, %d)", got.DecayScore, got.HalfLifeDays)
	}
}

func TestCalculate_BoostAtThresholdKeepsHalfLife(t *testing.T) {
	trends := &fakeTrends{signals: map[string]model.TrendSignal{
		"Berlin": {IsTrending: true, VelocityScore: 3},
	}}
	f := newTestForecaster(trends)

	got := f.Calculate(context.Background(), Input{Text: "Berlin hosts the summit", ExtractedAt: fixedNow}, true)
	if got.HalfLifeDays != 365 {
		t.Errorf("boost of exactly 0.3 must not halve half-life, got %d", got.HalfLifeDays)
	}
}

func TestCalculate_NonTrendingEntitiesExcludedFromMean(t *testing.T) {
	trends := &fakeTrends{signals: map[string]model.TrendSignal{
		"Apple":  {IsTrending: true, VelocityScore: 2},
		"Google": {IsTrending: false, VelocityScore: 1.5},
	}}
	f := newTestForecaster(trends)

	got := f.Calculate(context.Background(), Input{Text: "Apple and Google signed", ExtractedAt: fixedNow}, true)
	if !almostEqual(got.VelocityBoost, 0.2) {
		t.Errorf("expected boost 0.2 from the single trending entity, got %v", got.VelocityBoost)
	}
}

func TestCalculate_ImmutableSkipsTrend(t *testing.T) {
	trends := &fakeTrends{signals: map[string]model.TrendSignal{"Napoleon": {IsTrending: true, VelocityScore: 50}}}
	f := newTestForecaster(trends)

	got := f.Calculate(context.Background(), Input{
		Text:        "Napoleon was born in Ajaccio",
		IsImmutable: true,
		ExtractedAt: fixedNow,
	}, true)

	if len(trends.calls) != 0 {
		t.Errorf("immutable claims must not query trends, got %v", trends.calls)
	}
	if got.HalfLifeDays != 3650 {
		t.Errorf("expected immutable half-life, got %d", got.HalfLifeDays)
	}
}

func TestVelocityBoost_ConfigurableCap(t *testing.T) {
	text := "Alpha Bravo Charlie Delta Echo"

	tests := []struct {
		cap       int
		wantCalls int
	}{
		{0, 0},
		{1, 1},
		{3, 3},
		{10, 5},
	}

	for _, tt := range tests {
		trends := &fakeTrends{}
		f := newTestForecaster(trends)
		f.cfg.MaxTrendEntities = tt.cap

		f.VelocityBoost(context.Background(), text)
		if len(trends.calls) != tt.wantCalls {
			t.Errorf("cap %d: expected %d calls, got %d", tt.cap, tt.wantCalls, len(trends.calls))
		}
	}
}

func TestVelocityBoost_AlwaysWithinBounds(t *testing.T) {
	trends := &fakeTrends{signals: map[string]model.TrendSignal{
		"Alpha": {IsTrending: true, VelocityScore: 1000},
		"Bravo": {IsTrending: true, VelocityScore: -50},
	}}
	f := newTestForecaster(trends)

	boost, _ := f.VelocityBoost(context.Background(), "Alpha Bravo")
	if boost < 0 || boost > 0.5 {
		t.Errorf("boost %v out of [0,0.5]", boost)
	}
}

func TestCalculateBatch_Positional(t *testing.T) {
	f := newTestForecaster(nil)
	inputs := []Input{
		{IsImmutable: true, ExtractedAt: fixedNow},
		{IsImmutable: false, ExtractedAt: fixedNow},
		{IsImmutable: true, ExtractedAt: fixedNow},
	}

	got := f.CalculateBatch(context.Background(), inputs, false)
	if len(got) != len(inputs) {
		t.Fatalf("expected %d results, got %d", len(inputs), len(got))
	}
	want := []float64{0.1, 0.5, 0.1}
	for i := range want {
		if !almostEqual(got[i].DecayScore, want[i]) {
			t.Errorf("result %d = %v, want %v", i, got[i].DecayScore, want[i])
		}
	}
}

func TestAgeDays(t *testing.T) {
	if got := AgeDays(fixedNow.Add(48*time.Hour), fixedNow); got != 0 {
		t.Errorf("future extraction should give 0, got %d", got)
	}
	if got := AgeDays(fixedNow.Add(-36*time.Hour), fixedNow); got != 1 {
		t.Errorf("expected 1 whole day, got %d", got)
	}
}
