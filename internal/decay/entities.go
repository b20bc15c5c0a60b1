package decay

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// entityTrim is stripped from both ends of a candidate word
const entityTrim = ".,!?;:"

// CandidateEntities returns capitalized words longer than three characters, in order of
// appearance. It is a cheap stand-in for named-entity recognition.
func CandidateEntities(text string) []string {
	var entities []string
	for _, word := range strings.Fields(text) {
		if utf8.RuneCountInString(word) <= 3 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(word)
		if !unicode.IsUpper(first) {
			continue
		}
		if trimmed := strings.Trim(word, entityTrim); trimmed != "" {
			entities = append(entities, trimmed)
		}
	}
	return entities
}
