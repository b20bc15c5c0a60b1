package model

import "time"

// TrendSignal is the mention velocity of one entity
type TrendSignal struct {
	Entity        string    `json:"entity"`
	Mentions1h    int       `json:"mentions_1h"`
	Mentions6h    int       `json:"mentions_6h"`
	Mentions24h   int       `json:"mentions_24h"`
	RatePerHour1h float64   `json:"rate_per_hour_1h"`
	RatePerHour6h float64   `json:"rate_per_hour_6h"`
	RatePerHour24 float64   `json:"rate_per_hour_24h"`
	VelocityScore float64   `json:"velocity_score"`
	IsTrending    bool      `json:"is_trending"`
	Timestamp     time.Time `json:"timestamp"`
}
