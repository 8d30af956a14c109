package graphstore

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/extract"
)

// Projection is everything one paper contributes to the graph.
type Projection struct {
	Paper         common.Paper
	Sections      []common.Section
	Entities      []common.GraphEntity
	Relationships []common.GraphRelationship
	Citations     []extract.Citation
}

// BuildProjection assembles a projection and drops relationships whose
// endpoints are not in the entity set or whose paper id does not match.
// The number of dropped relationships is returned.
func BuildProjection(
	paper common.Paper,
	sections []common.Section,
	result extract.Result,
	citations []extract.Citation,
) (Projection, int) {
	rels := make([]common.GraphRelationship, 0, len(result.Relationships))
	dropped := 0
	for _, r := range result.Relationships {
		if r.PaperID == "" {
			r.PaperID = paper.ID
		}
		if r.PaperID != paper.ID {
			dropped++
			continue
		}
		r.Label = extract.NormalizeLabel(r.Label)
		rels = append(rels, r)
	}
	rels, invalid := extract.ValidRelationships(result.Entities, rels)

	var cites []extract.Citation
	for _, c := range citations {
		if c.FromPaperID == paper.ID && c.ToPaperID != "" && c.ToPaperID != paper.ID {
			cites = append(cites, c)
		}
	}

	return Projection{
		Paper:         paper,
		Sections:      sections,
		Entities:      result.Entities,
		Relationships: rels,
		Citations:     cites,
	}, dropped + invalid
}

func paperParams(p common.Paper) map[string]any {
	return map[string]any{
		"title":    p.Title,
		"year":     int64(p.PublicationYear),
		"source":   p.Source,
		"abstract": util.Truncate(p.Abstract, 900),
	}
}

func authorNames(p common.Paper) []any {
	seen := map[string]struct{}{}
	out := make([]any, 0, len(p.Authors))
	for _, a := range p.Authors {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func keywordNames(p common.Paper) []any {
	seen := map[string]struct{}{}
	out := make([]any, 0, len(p.Keywords))
	for _, k := range p.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func sectionParams(paperID string, sections []common.Section) []any {
	out := make([]any, 0, len(sections))
	for i, s := range sections {
		out = append(out, map[string]any{
			"id":      fmt.Sprintf("%s:%d", paperID, i),
			"type":    string(s.Type),
			"heading": s.Heading,
			"start":   int64(s.Start),
			"end":     int64(s.End),
		})
	}
	return out
}

func entityParams(entities []common.GraphEntity) []any {
	out := make([]any, 0, len(entities))
	for _, e := range entities {
		out = append(out, map[string]any{
			"name":        e.Name,
			"type":        string(e.Type),
			"description": util.Truncate(e.Description, 900),
			"confidence":  e.Confidence,
		})
	}
	return out
}

// relationshipGroups buckets relationships by label. Relationship types
// cannot be parameterized in Cypher, so each whitelisted label gets its own
// statement.
func relationshipGroups(rels []common.GraphRelationship) map[string][]any {
	out := map[string][]any{}
	for _, r := range rels {
		label := r.Label
		if !slices.Contains(extract.Labels, label) {
			label = extract.LabelRelatesTo
		}
		out[label] = append(out[label], map[string]any{
			"source_name": r.Source.Name,
			"source_type": string(r.Source.Type),
			"target_name": r.Target.Name,
			"target_type": string(r.Target.Type),
			"paper_id":    r.PaperID,
			"confidence":  r.Confidence,
			"evidence":    util.Truncate(r.Evidence, 600),
		})
	}
	return out
}

func citationParams(cites []extract.Citation) []any {
	out := make([]any, 0, len(cites))
	for _, c := range cites {
		out = append(out, map[string]any{
			"from":       c.FromPaperID,
			"to":         c.ToPaperID,
			"confidence": c.Confidence,
			"evidence":   c.Evidence,
		})
	}
	return out
}
