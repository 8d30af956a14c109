package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/common"
)

const defaultModelInput = 6000

type modelEntity struct {
	Name        string `json:"name" jsonschema_description:"Canonical lowercase entity name"`
	Type        string `json:"type" jsonschema:"enum=biological_process,enum=anatomical_structure,enum=chemical,enum=environment,enum=device,enum=measurement,enum=organism"`
	Description string `json:"description"`
}

type modelRelationship struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}

type modelResponse struct {
	Entities      []modelEntity       `json:"entities"`
	Relationships []modelRelationship `json:"relationships"`
}

// ModelStrategy asks a reasoning model for entities and relationships in
// the leading part of the paper.
type ModelStrategy struct {
	client   ai.ReasoningClient
	maxInput int
}

// NewModelStrategy creates a model-backed strategy. maxInput caps the
// number of characters sent, zero selects the default.
func NewModelStrategy(client ai.ReasoningClient, maxInput int) *ModelStrategy {
	if maxInput <= 0 {
		maxInput = defaultModelInput
	}
	return &ModelStrategy{client: client, maxInput: maxInput}
}

func (m *ModelStrategy) Name() string { return "model" }

func (m *ModelStrategy) Extract(ctx context.Context, paperID string, text string) (Result, error) {
	if m.client == nil {
		return Result{}, fmt.Errorf("no reasoning client configured")
	}

	var resp modelResponse
	prompt := fmt.Sprintf(ai.EntityExtractionPrompt, util.Truncate(text, m.maxInput))
	if err := m.client.GenerateCompletionWithFormat(
		ctx,
		"entity_extraction",
		"Entities and relationships of a scientific paper",
		prompt,
		&resp,
	); err != nil {
		return Result{}, err
	}
	return toResult(paperID, resp), nil
}

// toResult validates a model response. Entities with unknown types and
// relationships with unknown endpoints are dropped.
func toResult(paperID string, resp modelResponse) Result {
	var res Result
	byName := map[string]common.GraphEntity{}

	for _, e := range resp.Entities {
		name := canonicalName(strings.ToLower(e.Name))
		typ := common.EntityType(strings.ToLower(strings.TrimSpace(e.Type)))
		if name == "" || !typ.Valid() {
			continue
		}
		ent := common.GraphEntity{
			Name:        name,
			Type:        typ,
			Description: strings.TrimSpace(e.Description),
			Confidence:  0.7,
		}
		if _, ok := byName[name]; ok {
			continue
		}
		byName[name] = ent
		res.Entities = append(res.Entities, ent)
	}

	for _, r := range resp.Relationships {
		src, okS := byName[canonicalName(strings.ToLower(r.Source))]
		tgt, okT := byName[canonicalName(strings.ToLower(r.Target))]
		if !okS || !okT || src.Key() == tgt.Key() {
			continue
		}
		conf := r.Confidence
		if conf <= 0 {
			conf = 0.5
		}
		res.Relationships = append(res.Relationships, common.GraphRelationship{
			Source:     src,
			Target:     tgt,
			Label:      NormalizeLabel(r.Label),
			Confidence: clamp01(conf),
			Evidence:   util.Truncate(strings.TrimSpace(r.Evidence), maxEvidence),
			PaperID:    paperID,
		})
	}
	return res
}
