// Package contradict decides whether two claim texts contradict each other.
package contradict

import (
	"context"
	"strings"
)

// Assessor is a pairwise contradiction strategy
type Assessor interface {
	Contradicts(a, b string) bool
}

// ContextAssessor is an Assessor whose decision involves I/O. Callers that hold a
// context should prefer ContradictsContext so cancellation reaches the call.
type ContextAssessor interface {
	Assessor
	ContradictsContext(ctx context.Context, a, b string) (bool, error)
}

// minSharedWords is the number of significant shared words needed to call a contradiction
const minSharedWords = 2

var negationWords = map[string]bool{
	"not": true, "no": true, "never": true, "false": true,
	"incorrect": true, "untrue": true, "disproven": true,
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "was": true, "are": true,
	"were": true, "in": true, "on": true, "at": true, "to": true, "for": true,
}

// negationTrim is stripped from a token before checking it against the negation set
const negationTrim = ".,!?;:\"'()"

// Heuristic flags a contradiction when exactly one text contains a negation word and the
// two share at least two non-stop words. It is high precision and low recall: contradictions
// that do not hinge on an explicit negation are not detected.
type Heuristic struct{}

// NewHeuristic creates the baseline assessor
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Contradicts implements Assessor
func (h *Heuristic) Contradicts(a, b string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if hasNegation(a) == hasNegation(b) {
		return false
	}

	return len(SharedSignificantWords(a, b)) >= minSharedWords
}

// SharedSignificantWords intersects the whitespace tokens of both texts and drops stop words.
// Texts are expected to be lower-cased already.
func SharedSignificantWords(a, b string) []string {
	left := make(map[string]bool)
	for _, w := range strings.Fields(a) {
		left[w] = true
	}

	seen := make(map[string]bool)
	var shared []string
	for _, w := range strings.Fields(b) {
		if !left[w] || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		shared = append(shared, w)
	}
	return shared
}

func hasNegation(text string) bool {
	for _, w := range strings.Fields(text) {
		if negationWords[strings.Trim(w, negationTrim)] {
			return true
		}
	}
	return false
}
