package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/common"
)

const (
	maxPerType          = 5
	heuristicConfidence = 0.5
	relationConfidence  = 0.4
	maxEvidence         = 300
)

type entityPattern struct {
	typ common.EntityType
	re  *regexp.Regexp
}

// Patterns are tried in order; a span claimed by an earlier pattern is not
// reused by a later one.
var entityPatterns = []entityPattern{
	{common.EntityMeasurement, regexp.MustCompile(`(?i)\b(bone (?:mineral )?density|heart rate|blood pressure|body mass|muscle (?:mass|strength)|grip strength|radiation dose|absorbed dose)\b`)},
	{common.EntityBiologicalProcess, regexp.MustCompile(`(?i)\b(bone (?:loss|remodeling|resorption|formation)|muscle atrophy|apoptosis|gene expression|inflammation|immune response|oxidative stress|dna damage|dna repair|cell proliferation|circadian rhythm|photosynthesis|metabolism|cardiovascular deconditioning)\b`)},
	{common.EntityEnvironment, regexp.MustCompile(`(?i)\b(simulated microgravity|microgravity|spaceflight|space radiation|cosmic rays?|ionizing radiation|radiation|hypergravity|low earth orbit|international space station|iss|mars|lunar surface|moon|isolation|hypoxia)\b`)},
	{common.EntityOrganism, regexp.MustCompile(`(?i)\b(mice|mouse|rats?|humans?|astronauts?|arabidopsis(?: thaliana)?|c\. elegans|drosophila|e\. coli|yeast|bacteria|tardigrades?)\b`)},
	{common.EntityDevice, regexp.MustCompile(`(?i)\b(microscop(?:e|y)|spectromet(?:er|ry)|bioreactor|centrifuge|treadmill|dosimeters?|dexa|mri|ct scanner|hindlimb unloading)\b`)},
	{common.EntityAnatomicalStructure, regexp.MustCompile(`(?i)\b(skeletal muscle|bone marrow|bones?|muscles?|heart|brain|retina|liver|kidneys?|skeleton|spine|femur|tibia|blood vessels?|skin|osteoblasts?|osteoclasts?)\b`)},
	{common.EntityChemical, regexp.MustCompile(`(?i)\b(calcium|vitamin d|oxygen|carbon dioxide|hydrogen peroxide|cortisol|glucose|reactive oxygen species|melatonin|bisphosphonates?)\b`)},
}

type verbPattern struct {
	label string
	re    *regexp.Regexp
}

var relationVerbs = []verbPattern{
	{LabelAffects, regexp.MustCompile(`(?i)\b(affect(?:s|ed|ing)?|impair(?:s|ed)?|reduc(?:es|ed|ing)|decreas(?:es|ed)|increas(?:es|ed)|caus(?:es|ed))\b`)},
	{LabelInfluences, regexp.MustCompile(`(?i)\b(influenc(?:es|ed|ing)?|modulat(?:es|ed|ing)|regulat(?:es|ed|ing))\b`)},
	{LabelStudies, regexp.MustCompile(`(?i)\b(stud(?:y|ies|ied)|investigat(?:es|ed|ing)|examin(?:es|ed|ing)|analy[sz](?:es|ed|ing))\b`)},
	{LabelContains, regexp.MustCompile(`(?i)\b(contain(?:s|ed|ing)?|compris(?:es|ed))\b`)},
	{LabelProduces, regexp.MustCompile(`(?i)\b(produc(?:es|ed|ing)|generat(?:es|ed|ing)|releas(?:es|ed))\b`)},
	{LabelUses, regexp.MustCompile(`(?i)\b(us(?:es|ed|ing)|employ(?:s|ed))\b`)},
	{LabelMeasures, regexp.MustCompile(`(?i)\b(measur(?:es|ed|ing)|quantif(?:y|ies|ied)|assess(?:es|ed))\b`)},
	{LabelInvolves, regexp.MustCompile(`(?i)\b(involv(?:es|ed|ing)|requir(?:es|ed))\b`)},
}

// HeuristicStrategy finds entities with a fixed space biology vocabulary,
// at most five per type, and links entity pairs that share a sentence with a
// recognizable verb.
type HeuristicStrategy struct{}

func (HeuristicStrategy) Name() string { return "heuristic" }

func (h HeuristicStrategy) Extract(ctx context.Context, paperID string, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	entities := FindEntities(text)
	return Result{
		Entities:      entities,
		Relationships: findRelationships(paperID, text, entities),
	}, nil
}

// FindEntities returns vocabulary entities in order of first appearance,
// at most five per type.
func FindEntities(text string) []common.GraphEntity {
	lower := strings.ToLower(text)
	claimed := make([]bool, len(lower))
	seen := map[string]struct{}{}
	perType := map[common.EntityType]int{}

	type hit struct {
		pos int
		ent common.GraphEntity
	}
	var hits []hit

	for _, p := range entityPatterns {
		for _, m := range p.re.FindAllStringIndex(lower, -1) {
			if perType[p.typ] >= maxPerType {
				break
			}
			if anyClaimed(claimed, m[0], m[1]) {
				continue
			}
			markClaimed(claimed, m[0], m[1])

			name := canonicalName(lower[m[0]:m[1]])
			ent := common.GraphEntity{
				Name:        name,
				Type:        p.typ,
				Description: string(p.typ) + " mentioned in the paper",
				Confidence:  heuristicConfidence,
			}
			if _, ok := seen[ent.Key()]; ok {
				continue
			}
			seen[ent.Key()] = struct{}{}
			perType[p.typ]++
			hits = append(hits, hit{pos: m[0], ent: ent})
		}
	}

	// stable order of first appearance
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	out := make([]common.GraphEntity, len(hits))
	for i, h := range hits {
		out[i] = h.ent
	}
	return out
}

func anyClaimed(claimed []bool, from, to int) bool {
	for i := from; i < to; i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}

func markClaimed(claimed []bool, from, to int) {
	for i := from; i < to; i++ {
		claimed[i] = true
	}
}

var canonicalForms = map[string]string{
	"mouse":      "mice",
	"rat":        "rats",
	"human":      "humans",
	"astronaut":  "astronauts",
	"bone":       "bones",
	"muscle":     "muscles",
	"kidney":     "kidneys",
	"cosmic ray": "cosmic rays",
	"iss":        "international space station",
	"moon":       "lunar surface",
}

func canonicalName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if c, ok := canonicalForms[s]; ok {
		return c
	}
	return s
}

func findRelationships(paperID, text string, entities []common.GraphEntity) []common.GraphRelationship {
	if len(entities) < 2 {
		return nil
	}

	var out []common.GraphRelationship
	seen := map[string]struct{}{}

	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)

		type located struct {
			pos int
			ent common.GraphEntity
		}
		var present []located
		for _, e := range entities {
			if pos := indexEntity(lower, e.Name); pos >= 0 {
				present = append(present, located{pos, e})
			}
		}
		if len(present) < 2 {
			continue
		}

		label := ""
		verbPos := -1
		for _, v := range relationVerbs {
			if loc := v.re.FindStringIndex(lower); loc != nil && (verbPos < 0 || loc[0] < verbPos) {
				label, verbPos = v.label, loc[0]
			}
		}
		if label == "" {
			continue
		}

		var subject, object *located
		for i := range present {
			p := &present[i]
			if p.pos < verbPos && (subject == nil || p.pos > subject.pos) {
				subject = p
			}
			if p.pos > verbPos && (object == nil || p.pos < object.pos) {
				object = p
			}
		}
		if subject == nil || object == nil || subject.ent.Key() == object.ent.Key() {
			continue
		}

		rel := common.GraphRelationship{
			Source:     subject.ent,
			Target:     object.ent,
			Label:      label,
			Confidence: relationConfidence,
			Evidence:   util.Truncate(strings.TrimSpace(sentence), maxEvidence),
			PaperID:    paperID,
		}
		if _, ok := seen[relationshipKey(rel)]; ok {
			continue
		}
		seen[relationshipKey(rel)] = struct{}{}
		out = append(out, rel)
	}
	return out
}

// indexEntity finds name in lower, also accepting the singular of the
// canonical plural forms.
func indexEntity(lower, name string) int {
	if i := strings.Index(lower, name); i >= 0 {
		return i
	}
	for raw, canon := range canonicalForms {
		if canon == name {
			if i := strings.Index(lower, raw); i >= 0 {
				return i
			}
		}
	}
	return -1
}

var reSentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n{2,}`)

func splitSentences(text string) []string {
	var out []string
	last := 0
	for _, m := range reSentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[last:m[1]]); s != "" {
			out = append(out, s)
		}
		last = m[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		out = append(out, s)
	}
	return out
}
