// Package grounding scores how much of an answer's vocabulary appears in
// the sources it was generated from. It is a lexical heuristic and does not
// check entailment.
package grounding

import (
	"strings"

	"github.com/bio-nexus/backend/internal/util"
)

// DefaultThreshold is the ratio an answer has to exceed to count as grounded.
const DefaultThreshold = 0.3

// Result is the grounding verdict of one answer.
type Result struct {
	Ratio     float64 `json:"ratio"`
	Grounded  bool    `json:"grounded"`
	Supported int     `json:"supported"`
	Total     int     `json:"total"`
}

type Verifier struct {
	Threshold float64
}

func NewVerifier(threshold float64) *Verifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Verifier{Threshold: threshold}
}

// Verify counts answer tokens longer than three characters that occur in
// the concatenated sources and divides by the number of answer tokens.
func (v *Verifier) Verify(answer string, sources []string) Result {
	tokens := util.Tokenize(answer)
	if len(tokens) == 0 {
		return Result{}
	}

	corpus := strings.ToLower(strings.Join(sources, "\n"))
	supported := 0
	for _, tok := range tokens {
		if len([]rune(tok)) > 3 && strings.Contains(corpus, tok) {
			supported++
		}
	}

	ratio := float64(supported) / float64(len(tokens))
	return Result{
		Ratio:     ratio,
		Grounded:  ratio > v.Threshold,
		Supported: supported,
		Total:     len(tokens),
	}
}
