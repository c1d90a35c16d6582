package report

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// SimilarPair names two categories that are probably the same one typed
// differently.
type SimilarPair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// minFuzzyLen keeps short names like "ab"/"ac" from being flagged.
const minFuzzyLen = 4

// SimilarCategories lists category pairs that differ only in case or
// surrounding space, or by a single edit. Grouping is not affected.
func SimilarCategories(summaries []CategorySummary) []SimilarPair {
	var pairs []SimilarPair
	for i := 0; i < len(summaries); i++ {
		for j := i + 1; j < len(summaries); j++ {
			a, b := summaries[i].Category, summaries[j].Category
			if similar(a, b) {
				pairs = append(pairs, SimilarPair{A: a, B: b})
			}
		}
	}
	return pairs
}

func similar(a, b string) bool {
	na := strings.ToLower(strings.TrimSpace(a))
	nb := strings.ToLower(strings.TrimSpace(b))
	if na == nb {
		return true
	}
	if utf8.RuneCountInString(na) < minFuzzyLen || utf8.RuneCountInString(nb) < minFuzzyLen {
		return false
	}
	return levenshtein.ComputeDistance(na, nb) == 1
}
