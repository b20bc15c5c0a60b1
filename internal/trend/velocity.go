// Package trend measures how fast an entity's news mentions are accelerating.
package trend

import (
	"context"
	"time"

	"github.com/ppiankov/antibody/internal/model"
)

// DefaultTrendingThreshold marks an entity trending when its hourly rate is
// more than twice the day average
const DefaultTrendingThreshold = 2.0

// Provider reports mention velocity for an entity
type Provider interface {
	EntityVelocity(ctx context.Context, entity string) (model.TrendSignal, error)
}

// Counts are mention totals over trailing windows
type Counts struct {
	Last1h  int
	Last6h  int
	Last24h int
}

// ComputeVelocity turns window counts into rates and a velocity score.
// velocity = (rate1h - rate24h) / rate24h, or 0 when there were no mentions in 24h.
func ComputeVelocity(entity string, c Counts, threshold float64, now time.Time) model.TrendSignal {
	rate1h := float64(c.Last1h)
	rate6h := float64(c.Last6h) / 6.0
	rate24h := float64(c.Last24h) / 24.0

	var velocity float64
	if rate24h > 0 {
		velocity = (rate1h - rate24h) / rate24h
	}

	return model.TrendSignal{
		Entity:        entity,
		Mentions1h:    c.Last1h,
		Mentions6h:    c.Last6h,
		Mentions24h:   c.Last24h,
		RatePerHour1h: rate1h,
		RatePerHour6h: rate6h,
		RatePerHour24: rate24h,
		VelocityScore: velocity,
		IsTrending:    velocity > threshold,
		Timestamp:     now.UTC(),
	}
}

// CountWindows buckets publication times into the trailing 1h, 6h and 24h windows.
// Times in the future count as now.
func CountWindows(published []time.Time, now time.Time) Counts {
	var c Counts
	for _, t := range published {
		age := now.Sub(t)
		if age < 0 {
			age = 0
		}
		if age <= time.Hour {
			c.Last1h++
		}
		if age <= 6*time.Hour {
			c.Last6h++
		}
		if age <= 24*time.Hour {
			c.Last24h++
		}
	}
	return c
}
