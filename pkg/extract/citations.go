package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// CitationConfidence is attached to every inferred citation. Name and year
// matching produces false positives, so these edges are never treated as
// verified.
const CitationConfidence = 0.3

var reCitation = regexp.MustCompile(
	`\b([A-Z][A-Za-z'\-]+)(?:\s+et\s+al\.?|\s+(?:and|&)\s+[A-Z][A-Za-z'\-]+)?,?\s*\(?((?:19|20)\d{2})[a-z]?\)?`,
)

// PaperRef is the part of a paper needed to resolve a citation.
type PaperRef struct {
	ID      string
	Authors []string
	Year    int
}

// Citation is an inferred link from one paper to another.
type Citation struct {
	FromPaperID string
	ToPaperID   string
	Confidence  float64
	Evidence    string
}

// InferCitations looks for "Name (Year)", "Name et al., Year" and similar
// patterns in text and links them to candidate papers whose author last name
// and publication year match.
func InferCitations(paperID, text string, candidates []PaperRef) []Citation {
	type key struct {
		name string
		year int
	}
	index := map[key][]string{}
	for _, c := range candidates {
		if c.ID == paperID || c.Year == 0 {
			continue
		}
		for _, a := range c.Authors {
			if ln := lastName(a); ln != "" {
				k := key{ln, c.Year}
				index[k] = append(index[k], c.ID)
			}
		}
	}
	if len(index) == 0 {
		return nil
	}

	var out []Citation
	linked := map[string]struct{}{}
	for _, m := range reCitation.FindAllStringSubmatch(text, -1) {
		year, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		for _, target := range index[key{strings.ToLower(m[1]), year}] {
			if _, ok := linked[target]; ok {
				continue
			}
			linked[target] = struct{}{}
			out = append(out, Citation{
				FromPaperID: paperID,
				ToPaperID:   target,
				Confidence:  CitationConfidence,
				Evidence:    strings.TrimSpace(m[0]),
			})
		}
	}
	return out
}

func lastName(author string) string {
	author = strings.TrimSpace(author)
	if i := strings.Index(author, ","); i > 0 {
		// "Smith, J."
		return strings.ToLower(strings.TrimSpace(author[:i]))
	}
	fields := strings.Fields(author)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.Trim(fields[len(fields)-1], ".,"))
}
