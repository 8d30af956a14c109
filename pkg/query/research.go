package query

import (
	"context"
	"strings"

	"github.com/bio-nexus/backend/pkg/agent"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/retrieval"
	"github.com/bio-nexus/backend/pkg/store"
)

const evidenceLimit = 8

type HypothesisRequest struct {
	Topic   string        `json:"topic" validate:"required"`
	Filters store.Filters `json:"filters"`
}

// Hypotheses generates ranked hypotheses for a topic from retrieved
// evidence.
func (s *Service) Hypotheses(ctx context.Context, req HypothesisRequest) (agent.HypothesisResult, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return agent.HypothesisResult{}, common.NewValidationError("topic", "must not be empty")
	}
	evidence, err := s.evidence(ctx, topic, req.Filters)
	if err != nil {
		return agent.HypothesisResult{}, err
	}
	return s.hypotheses.Generate(ctx, topic, evidence), nil
}

// RiskAnalysis is a persisted mission risk assessment with the pipeline
// details that produced it.
type RiskAnalysis struct {
	Record common.RiskAnalysisRecord `json:"record"`
	Result agent.RiskResult          `json:"analysis"`
}

// AnalyzeRisk assesses a mission profile against retrieved evidence and
// stores the result.
func (s *Service) AnalyzeRisk(ctx context.Context, profile common.MissionProfile) (RiskAnalysis, error) {
	if profile.DurationDays <= 0 {
		return RiskAnalysis{}, common.NewValidationError("duration_days", "must be positive")
	}
	if profile.CrewSize <= 0 {
		return RiskAnalysis{}, common.NewValidationError("crew_size", "must be positive")
	}

	evidence, err := s.evidence(ctx, riskQuery(profile), store.Filters{})
	if err != nil {
		return RiskAnalysis{}, err
	}
	res := s.risk.Analyze(ctx, profile, evidence)
	rec, err := s.store.SaveRiskAnalysis(ctx, res.Record())
	if err != nil {
		return RiskAnalysis{}, err
	}
	return RiskAnalysis{Record: rec, Result: res}, nil
}

func (s *Service) RiskHistory(ctx context.Context, limit int) ([]common.RiskAnalysisRecord, error) {
	return s.store.ListRiskAnalyses(ctx, store.ClampLimit(limit, 20, 100))
}

func (s *Service) evidence(ctx context.Context, query string, filters store.Filters) ([]agent.Evidence, error) {
	res, err := s.retriever.Retrieve(ctx, retrieval.Request{
		Query:    query,
		Filters:  filters,
		Strategy: agent.StrategyHybrid,
	})
	if err != nil {
		return nil, err
	}
	sources := topSources(res.Results, evidenceLimit)
	out := make([]agent.Evidence, len(sources))
	for i, src := range sources {
		out[i] = agent.Evidence{PaperID: src.PaperID, Title: src.Title, Snippet: src.Snippet}
	}
	return out, nil
}

func riskQuery(p common.MissionProfile) string {
	parts := []string{"spaceflight health risks", "radiation", "bone loss", "muscle atrophy", "isolation"}
	if p.Destination != "" {
		parts = append(parts, p.Destination)
	}
	if p.DurationDays > 180 {
		parts = append(parts, "long duration")
	}
	parts = append(parts, p.SpecialFactors...)
	return strings.Join(parts, " ")
}
