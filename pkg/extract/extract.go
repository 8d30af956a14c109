package extract

import (
	"context"
	"strings"

	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/logger"
)

// Relationship labels of the knowledge graph. Anything else is stored as
// LabelRelatesTo.
const (
	LabelAffects    = "AFFECTS"
	LabelInfluences = "INFLUENCES"
	LabelStudies    = "STUDIES"
	LabelContains   = "CONTAINS"
	LabelProduces   = "PRODUCES"
	LabelUses       = "USES"
	LabelMeasures   = "MEASURES"
	LabelInvolves   = "INVOLVES"
	LabelRelatesTo  = "RELATES_TO"
)

// Labels lists the closed relationship label set.
var Labels = []string{
	LabelAffects,
	LabelInfluences,
	LabelStudies,
	LabelContains,
	LabelProduces,
	LabelUses,
	LabelMeasures,
	LabelInvolves,
	LabelRelatesTo,
}

// NormalizeLabel maps a free-form label to the closed label set.
func NormalizeLabel(label string) string {
	l := strings.ToUpper(strings.TrimSpace(label))
	l = strings.ReplaceAll(l, " ", "_")
	for _, known := range Labels {
		if l == known || l == strings.TrimSuffix(known, "S") {
			return known
		}
	}
	return LabelRelatesTo
}

// Result is the set of entities and relationships found in one paper.
type Result struct {
	Entities      []common.GraphEntity
	Relationships []common.GraphRelationship
}

// Strategy finds entities and relationships in paper text.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, paperID string, text string) (Result, error)
}

// Extractor runs several strategies and merges their results. A failing
// strategy is logged and skipped.
type Extractor struct {
	strategies []Strategy
}

// New creates an Extractor. Strategies run in the given order; on entity
// conflicts the higher confidence wins.
func New(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// Extract runs every strategy against text.
func (e *Extractor) Extract(ctx context.Context, paperID string, text string) Result {
	var results []Result
	for _, s := range e.strategies {
		res, err := s.Extract(ctx, paperID, text)
		if err != nil {
			logger.Warn("[Extract][Extract] Strategy failed", "strategy", s.Name(), "paper_id", paperID, "err", err)
			continue
		}
		logger.Debug("[Extract][Extract] Strategy finished", "strategy", s.Name(), "paper_id", paperID,
			"entities", len(res.Entities), "relationships", len(res.Relationships))
		results = append(results, res)
	}
	return Merge(results...)
}

// Merge unions results. Entities merge by (name, type) keeping the highest
// confidence; relationships merge by (source, target, label, paper).
func Merge(results ...Result) Result {
	entityIdx := map[string]int{}
	relIdx := map[string]int{}
	var out Result

	for _, r := range results {
		for _, ent := range r.Entities {
			k := ent.Key()
			if i, ok := entityIdx[k]; ok {
				if ent.Confidence > out.Entities[i].Confidence {
					out.Entities[i].Confidence = ent.Confidence
				}
				if out.Entities[i].Description == "" {
					out.Entities[i].Description = ent.Description
				}
				continue
			}
			entityIdx[k] = len(out.Entities)
			out.Entities = append(out.Entities, ent)
		}
		for _, rel := range r.Relationships {
			k := relationshipKey(rel)
			if i, ok := relIdx[k]; ok {
				if rel.Confidence > out.Relationships[i].Confidence {
					out.Relationships[i] = rel
				}
				continue
			}
			relIdx[k] = len(out.Relationships)
			out.Relationships = append(out.Relationships, rel)
		}
	}
	return out
}

func relationshipKey(r common.GraphRelationship) string {
	return r.Source.Key() + "->" + r.Target.Key() + "|" + r.Label + "|" + r.PaperID
}

// ValidRelationships drops relationships whose endpoints are not part of
// entities. The dropped count is returned for logging.
func ValidRelationships(entities []common.GraphEntity, rels []common.GraphRelationship) ([]common.GraphRelationship, int) {
	known := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		known[e.Key()] = struct{}{}
	}
	out := make([]common.GraphRelationship, 0, len(rels))
	dropped := 0
	for _, r := range rels {
		_, okS := known[r.Source.Key()]
		_, okT := known[r.Target.Key()]
		if !okS || !okT || r.Source.Key() == r.Target.Key() {
			dropped++
			continue
		}
		out = append(out, r)
	}
	return out, dropped
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
