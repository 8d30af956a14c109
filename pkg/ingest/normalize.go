package ingest

import (
	"regexp"
	"strings"

	"github.com/bio-nexus/backend/internal/util"
)

var reBlankLines = regexp.MustCompile(`\n{3,}`)

// Normalize unifies line endings, removes NULs and invalid UTF-8, trims
// trailing spaces from lines and collapses runs of three or more newlines
// into two.
func Normalize(text string) string {
	text = util.SanitizePostgresText(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	text = strings.Join(lines, "\n")

	text = reBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
