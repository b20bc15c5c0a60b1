package model

import "time"

// Claim is a single atomic factual assertion tracked in the dependency graph
type Claim struct {
	ID                 string    `json:"id"`
	Text               string    `json:"text"`
	SourceURL          string    `json:"source_url"`
	ArticleID          string    `json:"article_id"`
	Language           string    `json:"language"`
	ExtractedAt        time.Time `json:"extracted_at"`
	DecayScore         float64   `json:"decay_score"`         // 0.0-1.0
	HalfLifeDays       int       `json:"half_life_days"`      // > 0
	IsImmutable        bool      `json:"is_immutable"`        // Timeless fact
	ContradictionCount int       `json:"contradiction_count"` // Never decremented by scoring
	Embedding          []float32 `json:"embedding,omitempty"`
}

// SupportEdge is the directed relation "From supports To"
type SupportEdge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Weight float64 `json:"weight"`
}

// DefaultEdgeWeight is used when an edge is created without an explicit weight
const DefaultEdgeWeight = 1.0

// ClaimWithDependencies is a claim plus its immediate neighbours in both directions
type ClaimWithDependencies struct {
	Claim       Claim   `json:"claim"`
	Supports    []Claim `json:"supports"`     // Claims this one supports
	SupportedBy []Claim `json:"supported_by"` // Claims that support this one
}

// ImpactResult is the transitive downstream reach of a claim
type ImpactResult struct {
	ClaimID        string   `json:"claim_id"`
	ImpactScore    float64  `json:"impact_score"` // min(count/100, 1)
	AffectedClaims []string `json:"affected_claims"`
	AffectedCount  int      `json:"affected_count"`
}

// VulnerabilityRecord is derived on read from a claim and its incoming edge weight.
// Score is unbounded; DisplayScore is the explicitly clamped [0,1] value for presentation.
type VulnerabilityRecord struct {
	Claim            Claim   `json:"claim"`
	DependencyWeight float64 `json:"dependency_weight"`
	Score            float64 `json:"vulnerability_score"`
	DisplayScore     float64 `json:"display_score"`
}

// ContradictingSource is produced by one adversarial retrieval run and never persisted here
type ContradictingSource struct {
	ClaimID     string        `json:"claim_id"`
	URL         string        `json:"url"`
	Text        string        `json:"text"`
	Language    string        `json:"language"`
	Confidence  float64       `json:"confidence_score"` // Vector similarity
	Authority   AuthorityTier `json:"authority"`
	RetrievedAt time.Time     `json:"retrieved_at"`
}

// SimilarClaim is a similarity search hit enriched with the stored claim
type SimilarClaim struct {
	Claim    Claim                  `json:"claim"`
	Score    float64                `json:"similarity_score"`
	Metadata map[string]interface{} `json:"matched_payload,omitempty"`
}
