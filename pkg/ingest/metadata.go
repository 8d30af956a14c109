package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/common"
)

const (
	untitled        = "Untitled Document"
	authorScanLines = 5
	yearScanRunes   = 3000
	keywordLimit    = 10
)

var (
	reYear      = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	reKeywords  = regexp.MustCompile(`(?im)^[ \t]*(?:key[ \t]?words|index terms)[ \t]*[:\-–][ \t]*(.+)$`)
	reAuthorSep = regexp.MustCompile(`\s*(?:,|;|\band\b|&)\s*`)
	reAffMarks  = regexp.MustCompile(`[\d*†‡§¹²³⁴⁵⁶⁷⁸⁹]+`)
)

// Metadata holds bibliographic fields guessed from the document text.
type Metadata struct {
	Title    string
	Authors  []string
	Year     int
	Abstract string
	Keywords []string
}

// ExtractMetadata applies the title, author, year, abstract and keyword
// heuristics to normalized text.
func ExtractMetadata(text string, sections []common.Section) Metadata {
	lines := strings.Split(text, "\n")
	title, titleLine := extractTitle(lines)

	md := Metadata{
		Title:    title,
		Year:     extractYear(text),
		Abstract: extractAbstract(text, sections),
		Keywords: extractKeywords(text),
	}
	if titleLine >= 0 {
		md.Authors = extractAuthors(lines[titleLine+1:])
	}
	return md
}

func extractTitle(lines []string) (string, int) {
	for i, l := range lines {
		l = strings.TrimSpace(l)
		n := utf8.RuneCountInString(l)
		if n > 10 && n < 200 {
			return l, i
		}
	}
	return untitled, -1
}

// extractAuthors returns the first name-list line among the lines after the
// title.
func extractAuthors(lines []string) []string {
	seen := 0
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if seen == authorScanLines {
			break
		}
		seen++
		if reSectionHeader.MatchString(l) {
			break
		}
		if names := parseNameList(l); names != nil {
			return names
		}
	}
	return nil
}

func parseNameList(line string) []string {
	if utf8.RuneCountInString(line) > 300 || strings.HasSuffix(line, ".") && !strings.Contains(line, ",") {
		return nil
	}
	line = reAffMarks.ReplaceAllString(line, "")

	var names []string
	for _, part := range reAuthorSep.Split(line, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !looksLikeName(part) {
			return nil
		}
		names = append(names, part)
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

// looksLikeName accepts 2 to 4 capitalized words, allowing initials such as
// "J." and particles such as "van".
func looksLikeName(s string) bool {
	words := strings.Fields(s)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	capitalized := 0
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		switch {
		case unicode.IsUpper(r):
			capitalized++
		case w == "van" || w == "von" || w == "de" || w == "der" || w == "da" || w == "di" || w == "le":
		default:
			return false
		}
		for _, c := range w {
			if !unicode.IsLetter(c) && c != '.' && c != '-' && c != '\'' {
				return false
			}
		}
	}
	return capitalized >= 2
}

func extractYear(text string) int {
	head := []rune(text)
	if len(head) > yearScanRunes {
		head = head[:yearScanRunes]
	}
	m := reYear.FindStringSubmatch(string(head))
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	return y
}

func extractAbstract(text string, sections []common.Section) string {
	if s, ok := FindSection(sections, common.SectionAbstract); ok && s.Text != "" {
		return s.Text
	}
	return strings.Join(Sentences(text, 3), " ")
}

func extractKeywords(text string) []string {
	if m := reKeywords.FindStringSubmatch(text); m != nil {
		var out []string
		for _, k := range strings.FieldsFunc(m[1], func(r rune) bool { return r == ',' || r == ';' || r == '·' }) {
			k = strings.TrimSuffix(strings.TrimSpace(k), ".")
			if k != "" {
				out = append(out, k)
			}
		}
		if len(out) > 0 {
			if len(out) > keywordLimit {
				out = out[:keywordLimit]
			}
			return out
		}
	}
	return util.ExtractKeywords(text, keywordLimit)
}

// Sentences returns up to n sentences from text. A sentence ends at '.', '!'
// or '?' followed by whitespace or the end of the text.
func Sentences(text string, n int) []string {
	var out []string
	rs := []rune(text)
	start := 0
	for i := 0; i < len(rs) && len(out) < n; i++ {
		if rs[i] != '.' && rs[i] != '!' && rs[i] != '?' {
			continue
		}
		if i+1 < len(rs) && !unicode.IsSpace(rs[i+1]) {
			continue
		}
		if s := collapseSpace(string(rs[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if len(out) < n && start < len(rs) {
		if s := collapseSpace(string(rs[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
