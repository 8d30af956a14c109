package util

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var reUnsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

var stopWords = map[string]struct{}{
	"about": {}, "above": {}, "after": {}, "again": {}, "also": {}, "among": {}, "and": {},
	"been": {}, "before": {}, "being": {}, "between": {}, "both": {}, "could": {},
	"does": {}, "doing": {}, "during": {}, "each": {}, "from": {}, "have": {}, "having": {},
	"here": {}, "into": {}, "more": {}, "most": {}, "other": {}, "over": {}, "same": {},
	"should": {}, "some": {}, "such": {}, "than": {}, "that": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "those": {}, "through": {},
	"under": {}, "until": {}, "very": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "with": {}, "within": {}, "would": {}, "your": {}, "using": {},
	"used": {}, "study": {}, "studies": {}, "however": {}, "therefore": {}, "results": {},
	"show": {}, "shown": {}, "based": {}, "will": {}, "only": {}, "many": {}, "much": {},
}

func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// SanitizeFilename strips directories and replaces anything outside
// [A-Za-z0-9._-] with an underscore.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = reUnsafeFilename.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "document"
	}
	return name
}

// Tokenize lowercases s and splits it into runs of letters and digits.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// IsStopWord reports whether w is a common English filler word.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// QueryTerms returns the distinct tokens of s longer than three characters
// that are not stop words, in order of appearance.
func QueryTerms(s string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, tok := range Tokenize(s) {
		if len([]rune(tok)) <= 3 || IsStopWord(tok) {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// ExtractKeywords returns the limit most frequent non stop word terms of s.
// Ties are broken alphabetically.
func ExtractKeywords(s string, limit int) []string {
	counts := map[string]int{}
	for _, tok := range Tokenize(s) {
		if len([]rune(tok)) <= 3 || IsStopWord(tok) || isNumeric(tok) {
			continue
		}
		counts[tok]++
	}
	terms := make([]string, 0, len(counts))
	for k := range counts {
		terms = append(terms, k)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if limit > 0 && len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
