// Package decay estimates how stale a claim is from its age, mutability and
// the mention velocity of the entities it names.
package decay

import (
	"context"
	"math"
	"time"

	"github.com/ppiankov/antibody/internal/logging"
	"github.com/ppiankov/antibody/internal/model"
)

const (
	// maxAgeFactor caps the age contribution regardless of how old a claim is
	maxAgeFactor = 0.5
	// maxVelocityBoost caps both a single entity's contribution and the mean
	maxVelocityBoost = 0.5
	// acceleratedBoost is the boost above which the half-life is halved
	acceleratedBoost = 0.3
)

// TrendProvider reports mention velocity for a named entity
type TrendProvider interface {
	EntityVelocity(ctx context.Context, entity string) (model.TrendSignal, error)
}

// Config holds the forecaster tunables
type Config struct {
	ImmutableHalfLifeDays int
	MutableHalfLifeDays   int
	ImmutableBaseScore    float64
	MutableBaseScore      float64
	MaxTrendEntities      int           // Entities queried per claim
	TrendTimeout          time.Duration // Per entity lookup
}

// DefaultConfig mirrors model.DefaultConfig().Decay
func DefaultConfig() Config {
	cfg := model.DefaultConfig()
	return ConfigFromModel(cfg.Decay, cfg.Timeouts.Trend)
}

// ConfigFromModel converts the file/env configuration
func ConfigFromModel(dc model.DecayConfig, trendTimeout time.Duration) Config {
	return Config{
		ImmutableHalfLifeDays: dc.ImmutableHalfLifeDays,
		MutableHalfLifeDays:   dc.MutableHalfLifeDays,
		ImmutableBaseScore:    dc.ImmutableBaseScore,
		MutableBaseScore:      dc.MutableBaseScore,
		MaxTrendEntities:      dc.MaxTrendEntities,
		TrendTimeout:          trendTimeout,
	}
}

// Input describes the claim being forecast
type Input struct {
	Text        string
	IsImmutable bool
	ExtractedAt time.Time
}

// Forecast is the decay estimate with its transparent components
type Forecast struct {
	DecayScore       float64  `json:"decay_score"`
	HalfLifeDays     int      `json:"half_life_days"`
	BaseScore        float64  `json:"base_score"`
	AgeDays          int      `json:"age_days"`
	AgeFactor        float64  `json:"age_factor"`
	VelocityBoost    float64  `json:"velocity_boost"`
	TrendingEntities []string `json:"trending_entities,omitempty"`
}

// Forecaster computes decay scores and half-lives
type Forecaster struct {
	cfg    Config
	trends TrendProvider // optional
	now    func() time.Time
}

// NewForecaster creates a forecaster. trends may be nil, which disables the velocity boost.
func NewForecaster(cfg Config, trends TrendProvider) *Forecaster {
	return &Forecaster{
		cfg:    cfg,
		trends: trends,
		now:    time.Now,
	}
}

// Calculate computes the decay score and half-life for one claim.
// Trend lookups are only made for mutable claims and their failures never fail the call.
func (f *Forecaster) Calculate(ctx context.Context, in Input, checkTrending bool) Forecast {
	halfLife := f.cfg.MutableHalfLifeDays
	base := f.cfg.MutableBaseScore
	if in.IsImmutable {
		halfLife = f.cfg.ImmutableHalfLifeDays
		base = f.cfg.ImmutableBaseScore
	}

	ageDays := AgeDays(in.ExtractedAt, f.now())
	ageFactor := AgeFactor(float64(ageDays), halfLife)

	var boost float64
	var trending []string
	if checkTrending && !in.IsImmutable {
		boost, trending = f.VelocityBoost(ctx, in.Text)
	}

	if boost > acceleratedBoost {
		halfLife = halfLife / 2
		if halfLife < 1 {
			halfLife = 1
		}
	}

	return Forecast{
		DecayScore:       math.Min(base+ageFactor+boost, 1.0),
		HalfLifeDays:     halfLife,
		BaseScore:        base,
		AgeDays:          ageDays,
		AgeFactor:        ageFactor,
		VelocityBoost:    boost,
		TrendingEntities: trending,
	}
}

// CalculateBatch forecasts each input independently; results match inputs by position
func (f *Forecaster) CalculateBatch(ctx context.Context, inputs []Input, checkTrending bool) []Forecast {
	results := make([]Forecast, len(inputs))
	for i, in := range inputs {
		results[i] = f.Calculate(ctx, in, checkTrending)
	}
	return results
}

// VelocityBoost queries the trend provider for the first MaxTrendEntities candidates and
// returns the mean capped contribution over entities found trending, in [0, 0.5].
func (f *Forecaster) VelocityBoost(ctx context.Context, text string) (float64, []string) {
	if f.trends == nil || f.cfg.MaxTrendEntities <= 0 {
		return 0, nil
	}

	candidates := CandidateEntities(text)
	if len(candidates) > f.cfg.MaxTrendEntities {
		candidates = candidates[:f.cfg.MaxTrendEntities]
	}

	var total float64
	var trending []string
	for _, entity := range candidates {
		signal, err := f.entityVelocity(ctx, entity)
		if err != nil {
			logging.Warn("trend lookup failed, skipping entity", "entity", entity, "err", err)
			continue
		}
		if !signal.IsTrending {
			continue
		}
		total += math.Min(signal.VelocityScore/10.0, maxVelocityBoost)
		trending = append(trending, entity)
	}

	if len(trending) == 0 {
		return 0, nil
	}
	return math.Max(0, math.Min(total/float64(len(trending)), maxVelocityBoost)), trending
}

func (f *Forecaster) entityVelocity(ctx context.Context, entity string) (model.TrendSignal, error) {
	if f.cfg.TrendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.TrendTimeout)
		defer cancel()
	}
	return f.trends.EntityVelocity(ctx, entity)
}

// AgeFactor is the capped exponential decay contribution: min(1 - 0.5^(t/h), 0.5).
// A zero half-life yields 0.
func AgeFactor(ageDays float64, halfLifeDays int) float64 {
	if halfLifeDays == 0 {
		return 0
	}
	if ageDays < 0 {
		ageDays = 0
	}
	remaining := math.Pow(0.5, ageDays/float64(halfLifeDays))
	return math.Min(1-remaining, maxAgeFactor)
}

// AgeDays is the number of whole days between extraction and now, never negative
func AgeDays(extractedAt, now time.Time) int {
	if extractedAt.IsZero() || now.Before(extractedAt) {
		return 0
	}
	return int(now.Sub(extractedAt).Hours() / 24)
}
