package model

// ItemStatus is the per-item outcome inside a batch
type ItemStatus string

const (
	StatusCompleted ItemStatus = "completed"
	StatusFailed    ItemStatus = "failed"
)

// DecayResult is the outcome of one decay computation
type DecayResult struct {
	ClaimID      string     `json:"claim_id"`
	Status       ItemStatus `json:"status"`
	DecayScore   float64    `json:"decay_score"`
	HalfLifeDays int        `json:"half_life_days"`
	Error        string     `json:"error,omitempty"`
}

// RetrievalResult is the outcome of one adversarial retrieval run
type RetrievalResult struct {
	ClaimID              string                `json:"claim_id"`
	Status               ItemStatus            `json:"status"`
	ContradictionsFound  int                   `json:"contradictions_found"`
	ContradictingSources []ContradictingSource `json:"contradicting_sources,omitempty"`
	Error                string                `json:"error,omitempty"`
}

// BatchSummary counts batch outcomes
type BatchSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// RetrievalStats describes the state of the retrieval backends
type RetrievalStats struct {
	Status      string `json:"status"`
	Collection  string `json:"collection"`
	Dimension   int    `json:"vector_size"`
	PointsCount int    `json:"points_count"`
	ClaimsCount int    `json:"claims_count"`
	Error       string `json:"error,omitempty"`
}
