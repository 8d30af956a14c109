package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bio-nexus/backend/pkg/common"
)

// SectionExtractor splits normalized text into structural sections.
// Sections are returned in text order and never overlap.
type SectionExtractor interface {
	Sections(text string) []common.Section
}

var reSectionHeader = regexp.MustCompile(
	`(?im)^[ \t]*(?:\d+(?:\.\d+)*\.?[ \t]+)?` +
		`(materials and methods|methodology|methods|abstract|summary|introduction|background|results|findings|discussion|conclusions?|concluding remarks)` +
		`[ \t]*(?::|\.|$)`,
)

var headerTypes = map[string]common.SectionType{
	"abstract":              common.SectionAbstract,
	"summary":               common.SectionAbstract,
	"introduction":          common.SectionIntroduction,
	"background":            common.SectionIntroduction,
	"methods":               common.SectionMethods,
	"materials and methods": common.SectionMethods,
	"methodology":           common.SectionMethods,
	"results":               common.SectionResults,
	"findings":              common.SectionResults,
	"discussion":            common.SectionDiscussion,
	"conclusion":            common.SectionConclusion,
	"conclusions":           common.SectionConclusion,
	"concluding remarks":    common.SectionConclusion,
}

// RegexSections detects common scientific paper headers at line start,
// optionally numbered ("2.", "3.1") and terminated by a colon, a period or
// the end of the line.
type RegexSections struct{}

// Sections implements SectionExtractor. Text before the first header becomes
// an "other" section; text without any header is one "other" section.
func (RegexSections) Sections(text string) []common.Section {
	if text == "" {
		return nil
	}

	matches := reSectionHeader.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []common.Section{newSection(text, common.SectionOther, "", 0, len(text))}
	}

	var out []common.Section
	if lead := matches[0][0]; strings.TrimSpace(text[:lead]) != "" {
		out = append(out, newSection(text, common.SectionOther, "", 0, lead))
	}

	for i, m := range matches {
		heading := text[m[2]:m[3]]
		bodyEnd := len(text)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		out = append(out, newSection(text, headerTypes[strings.ToLower(heading)], heading, m[1], bodyEnd))
	}
	return out
}

// newSection builds a section over the byte span [from, to) and converts the
// bounds to rune offsets.
func newSection(text string, typ common.SectionType, heading string, from, to int) common.Section {
	start := utf8.RuneCountInString(text[:from])
	return common.Section{
		Type:    typ,
		Heading: heading,
		Start:   start,
		End:     start + utf8.RuneCountInString(text[from:to]),
		Text:    strings.TrimSpace(text[from:to]),
	}
}

// FindSection returns the first section of type typ.
func FindSection(sections []common.Section, typ common.SectionType) (common.Section, bool) {
	for _, s := range sections {
		if s.Type == typ {
			return s, true
		}
	}
	return common.Section{}, false
}
