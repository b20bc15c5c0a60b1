package score

import (
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/antibody/internal/model"
)

// Formula is reported alongside every breakdown
const Formula = "decay_score * dependency_weight * (contradiction_count + 1)"

// Scorer ranks claims for remediation. Scores are unbounded above; only Display clamps.
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes decay * weight * (contradictions + 1) without clamping
func (s *Scorer) Score(decayScore, dependencyWeight float64, contradictionCount int) float64 {
	return decayScore * dependencyWeight * float64(contradictionCount+1)
}

// Breakdown exposes the inputs behind a vulnerability score
type Breakdown struct {
	ClaimID            string                 `json:"claim_id"`
	Score              float64                `json:"vulnerability_score"`
	DisplayScore       float64                `json:"display_score"`
	Data               map[string]interface{} `json:"data"`
	DominantFactor     string                 `json:"dominant_factor"`
	ContradictionCount int                    `json:"contradiction_count"`
}

// Explain scores a claim and reports the formula inputs
func (s *Scorer) Explain(claim model.Claim, dependencyWeight float64) Breakdown {
	v := s.Score(claim.DecayScore, dependencyWeight, claim.ContradictionCount)

	dominant := "decay"
	switch {
	case claim.ContradictionCount > 0 && float64(claim.ContradictionCount+1) >= dependencyWeight:
		dominant = "contradictions"
	case dependencyWeight > 1:
		dominant = "dependency_weight"
	}

	return Breakdown{
		ClaimID:      claim.ID,
		Score:        v,
		DisplayScore: Display(v),
		Data: map[string]interface{}{
			"formula":             Formula,
			"decay_score":         claim.DecayScore,
			"dependency_weight":   dependencyWeight,
			"contradiction_count": claim.ContradictionCount,
			"computation": fmt.Sprintf("%.3f * %.3f * %d = %.4f",
				claim.DecayScore, dependencyWeight, claim.ContradictionCount+1, v),
		},
		DominantFactor:     dominant,
		ContradictionCount: claim.ContradictionCount,
	}
}

// Record builds the derived vulnerability record for a claim
func (s *Scorer) Record(claim model.Claim, dependencyWeight float64) model.VulnerabilityRecord {
	v := s.Score(claim.DecayScore, dependencyWeight, claim.ContradictionCount)
	return model.VulnerabilityRecord{
		Claim:            claim,
		DependencyWeight: dependencyWeight,
		Score:            v,
		DisplayScore:     Display(v),
	}
}

// Queue drops immutable claims and orders the rest by score descending, breaking ties by
// claim ID so pagination is deterministic. The input slice is not modified.
func (s *Scorer) Queue(records []model.VulnerabilityRecord) []model.VulnerabilityRecord {
	queue := make([]model.VulnerabilityRecord, 0, len(records))
	for _, r := range records {
		if r.Claim.IsImmutable {
			continue
		}
		queue = append(queue, r)
	}
	Sort(queue)
	return queue
}

// Sort orders records by score descending then claim ID ascending
func Sort(records []model.VulnerabilityRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].Claim.ID < records[j].Claim.ID
	})
}

// Page applies limit/offset to an ordered queue
func Page(records []model.VulnerabilityRecord, limit, offset int) []model.VulnerabilityRecord {
	if offset >= len(records) {
		return []model.VulnerabilityRecord{}
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}

// Display clamps a raw vulnerability score into [0,1] for presentation only.
// Ranking always uses the raw score.
func Display(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 1.0)
}
