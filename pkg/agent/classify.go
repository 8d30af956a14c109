package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/extract"
)

type Intent string

const (
	IntentLiteratureSearch     Intent = "literature_search"
	IntentHypothesisGeneration Intent = "hypothesis_generation"
	IntentMissionRisk          Intent = "mission_risk_analysis"
	IntentKnowledgeGap         Intent = "knowledge_gap_analysis"
	IntentComparative          Intent = "comparative_analysis"
	IntentFactual              Intent = "factual_question"
)

var Intents = []Intent{
	IntentLiteratureSearch,
	IntentHypothesisGeneration,
	IntentMissionRisk,
	IntentKnowledgeGap,
	IntentComparative,
	IntentFactual,
}

// Strategy names a retrieval route.
type Strategy string

const (
	StrategyHybrid  Strategy = "hybrid_search"
	StrategyVector  Strategy = "vector_search"
	StrategyGraph   Strategy = "graph_search"
	StrategyLexical Strategy = "lexical_search"
)

var Strategies = []Strategy{StrategyHybrid, StrategyVector, StrategyGraph, StrategyLexical}

func (s Strategy) Valid() bool {
	for _, v := range Strategies {
		if v == s {
			return true
		}
	}
	return false
}

func (i Intent) Valid() bool {
	for _, v := range Intents {
		if v == i {
			return true
		}
	}
	return false
}

// Classification is the state and result of the classification pipeline.
type Classification struct {
	Query       string               `json:"query"`
	Summary     string               `json:"summary"`
	KeyConcepts []string             `json:"key_concepts"`
	Complexity  string               `json:"complexity"`
	Intent      Intent               `json:"intent"`
	Confidence  float64              `json:"confidence"`
	Entities    []common.GraphEntity `json:"entities"`
	Strategy    Strategy             `json:"strategy"`
	Stages      []StageReport        `json:"stages"`
}

// Degraded reports whether any stage used its default.
func (c Classification) Degraded() bool {
	return parsedCount(c.Stages) < len(c.Stages)
}

type analysisResponse struct {
	Summary     string   `json:"summary" jsonschema_description:"One sentence summary of the question"`
	KeyConcepts []string `json:"key_concepts" jsonschema_description:"Key scientific concepts"`
	Complexity  string   `json:"complexity" jsonschema:"enum=simple,enum=moderate,enum=complex"`
}

type intentResponse struct {
	Intent     string  `json:"intent" jsonschema:"enum=literature_search,enum=hypothesis_generation,enum=mission_risk_analysis,enum=knowledge_gap_analysis,enum=comparative_analysis,enum=factual_question"`
	Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

type entityItem struct {
	Name string `json:"name"`
	Type string `json:"type" jsonschema:"enum=biological_process,enum=anatomical_structure,enum=chemical,enum=environment,enum=device,enum=measurement,enum=organism"`
}

type entitiesResponse struct {
	Entities []entityItem `json:"entities"`
}

type routingResponse struct {
	Strategy string `json:"strategy" jsonschema:"enum=hybrid_search,enum=vector_search,enum=graph_search,enum=lexical_search"`
	Reason   string `json:"reason"`
}

// Classifier runs analyze, intent, entities and routing in that order.
type Classifier struct {
	client ai.ReasoningClient
	runner *Runner[Classification]
}

func NewClassifier(client ai.ReasoningClient, stageTimeout time.Duration) *Classifier {
	c := &Classifier{client: client}
	c.runner = NewRunner(stageTimeout,
		Stage[Classification]{Name: "analyze", Run: c.analyze},
		Stage[Classification]{Name: "intent", Run: c.intent},
		Stage[Classification]{Name: "entities", Run: c.entities},
		Stage[Classification]{Name: "routing", Run: c.routing},
	)
	return c
}

func (c *Classifier) Classify(ctx context.Context, query string) Classification {
	return c.runner.Run(ctx, Classification{Query: strings.TrimSpace(query)})
}

func (c *Classifier) analyze(ctx context.Context, s Classification) Classification {
	o := call(ctx, c.client, "analyze", "Analysis of a research question",
		fmt.Sprintf(ai.AnalyzeQueryPrompt, s.Query),
		func(r *analysisResponse) error {
			if strings.TrimSpace(r.Summary) == "" {
				return errors.New("summary is empty")
			}
			switch r.Complexity {
			case "simple", "moderate", "complex":
			default:
				r.Complexity = "moderate"
			}
			return nil
		},
		func() analysisResponse {
			return analysisResponse{Summary: s.Query, KeyConcepts: util.QueryTerms(s.Query), Complexity: "moderate"}
		},
	)
	s.Summary = o.Value.Summary
	s.KeyConcepts = o.Value.KeyConcepts
	s.Complexity = o.Value.Complexity
	s.Stages = append(s.Stages, report("analyze", o))
	return s
}

func (c *Classifier) intent(ctx context.Context, s Classification) Classification {
	o := call(ctx, c.client, "intent", "Intent of a research question",
		fmt.Sprintf(ai.IntentPrompt, s.Query, s.Summary),
		func(r *intentResponse) error {
			if !Intent(r.Intent).Valid() {
				return fmt.Errorf("unknown intent %q", r.Intent)
			}
			if !inUnit(r.Confidence) {
				return fmt.Errorf("confidence %v out of range", r.Confidence)
			}
			return nil
		},
		func() intentResponse {
			return intentResponse{Intent: string(IntentLiteratureSearch), Confidence: 0}
		},
	)
	s.Intent = Intent(o.Value.Intent)
	s.Confidence = o.Value.Confidence
	s.Stages = append(s.Stages, report("intent", o))
	return s
}

func (c *Classifier) entities(ctx context.Context, s Classification) Classification {
	o := call(ctx, c.client, "entities", "Scientific entities in a research question",
		fmt.Sprintf(ai.EntityPrompt, s.Query),
		func(r *entitiesResponse) error {
			for _, e := range r.Entities {
				if strings.TrimSpace(e.Name) == "" {
					return errors.New("entity without name")
				}
				if !common.EntityType(e.Type).Valid() {
					return fmt.Errorf("unknown entity type %q", e.Type)
				}
			}
			return nil
		},
		func() entitiesResponse {
			var out entitiesResponse
			for _, e := range extract.FindEntities(s.Query) {
				out.Entities = append(out.Entities, entityItem{Name: e.Name, Type: string(e.Type)})
			}
			return out
		},
	)
	s.Entities = nil
	for _, e := range o.Value.Entities {
		s.Entities = append(s.Entities, common.GraphEntity{
			Name:       strings.ToLower(strings.TrimSpace(e.Name)),
			Type:       common.EntityType(e.Type),
			Confidence: 1,
		})
	}
	s.Stages = append(s.Stages, report("entities", o))
	return s
}

func (c *Classifier) routing(ctx context.Context, s Classification) Classification {
	names := make([]string, 0, len(s.Entities))
	for _, e := range s.Entities {
		names = append(names, e.Name)
	}
	o := call(ctx, c.client, "routing", "Retrieval strategy for a research question",
		fmt.Sprintf(ai.RoutingPrompt, s.Query, s.Intent, strings.Join(names, ", ")),
		func(r *routingResponse) error {
			if !Strategy(r.Strategy).Valid() {
				return fmt.Errorf("unknown strategy %q", r.Strategy)
			}
			return nil
		},
		func() routingResponse {
			return routingResponse{Strategy: string(StrategyHybrid)}
		},
	)
	s.Strategy = Strategy(o.Value.Strategy)
	s.Stages = append(s.Stages, report("routing", o))
	return s
}
