package util

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const nanoidLength = 21

var (
	reBoldCitation   = regexp.MustCompile(`\*\*\s*\[{1,2}([A-Za-z0-9_-]{21})\]{1,2}\s*\*\*`)
	reSingleCitation = regexp.MustCompile(`(^|[^\[])\[([A-Za-z0-9_-]{21})\]([^\]\(]|$)`)
	reCitation       = regexp.MustCompile(`\[\[([^][]+)\]\]`)
	reAdjacentDupe   = regexp.MustCompile(`\[\[([A-Za-z0-9_-]{21})\]\](?:[ \t]*\[\[([A-Za-z0-9_-]{21})\]\])+`)
)

// NewID returns a 21 character nanoid used for papers, chunks and jobs.
func NewID() (string, error) {
	return gonanoid.New()
}

// MustID is NewID for call sites that cannot fail meaningfully.
func MustID() string {
	id, err := gonanoid.New()
	if err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:nanoidLength]
	}
	return id
}

// NewUUID returns a random UUID used for sessions and risk records.
func NewUUID() string {
	return uuid.NewString()
}

func isNanoid(s string) bool {
	if len(s) != nanoidLength {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// extractNanoid returns the trailing nanoid of a token that a model
// prefixed with a label ("DOC:<id>", "A,B|<id>").
func extractNanoid(s string) string {
	s = strings.TrimSpace(s)
	if isNanoid(s) {
		return s
	}
	cut := strings.LastIndexAny(s, ",;|: ")
	if cut < 0 {
		return ""
	}
	tail := s[cut+1:]
	if isNanoid(tail) {
		return tail
	}
	return ""
}

// NormalizeCitations rewrites paper citations in a generated answer to the
// canonical [[id]] form and collapses runs of the same id.
func NormalizeCitations(s string) string {
	s = reBoldCitation.ReplaceAllString(s, "[[$1]]")
	for {
		next := reSingleCitation.ReplaceAllString(s, "$1[[$2]]$3")
		if next == s {
			break
		}
		s = next
	}
	s = reCitation.ReplaceAllStringFunc(s, func(m string) string {
		inner := m[2 : len(m)-2]
		if id := extractNanoid(inner); id != "" {
			return "[[" + id + "]]"
		}
		return m
	})
	return reAdjacentDupe.ReplaceAllStringFunc(s, func(m string) string {
		ids := reCitation.FindAllStringSubmatch(m, -1)
		var b strings.Builder
		last := ""
		for _, id := range ids {
			if id[1] == last {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("[[" + id[1] + "]]")
			last = id[1]
		}
		return b.String()
	})
}
