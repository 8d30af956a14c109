package ingest

import (
	"strings"
	"unicode"

	"github.com/bio-nexus/backend/pkg/common"
)

// QualityScore rates how well a document was extracted, in [0,1].
//
//   - 0.06 per recognized section, at most 0.3
//   - 0.15 each for abstract, methods and results
//   - 0.25 when fewer than 10% of the characters are special characters
//   - minus 0.3 when the word count is below 100 or above 100000
func QualityScore(text string, sections []common.Section) float64 {
	score := 0.0

	recognized := 0
	present := map[common.SectionType]bool{}
	for _, s := range sections {
		if s.Type == common.SectionOther {
			continue
		}
		recognized++
		present[s.Type] = true
	}
	score += min(0.06*float64(recognized), 0.3)

	for _, t := range []common.SectionType{common.SectionAbstract, common.SectionMethods, common.SectionResults} {
		if present[t] {
			score += 0.15
		}
	}

	if specialCharDensity(text) < 0.1 {
		score += 0.25
	}

	if words := len(strings.Fields(text)); words < 100 || words > 100000 {
		score -= 0.3
	}

	return max(0, min(1, score))
}

func specialCharDensity(text string) float64 {
	total, special := 0, 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			continue
		}
		if strings.ContainsRune(`.,;:!?'"()[]-%/`, r) {
			continue
		}
		special++
	}
	if total == 0 {
		return 1
	}
	return float64(special) / float64(total)
}
