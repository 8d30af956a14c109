package pgx

import (
	"context"
	"encoding/json"

	"github.com/bio-nexus/backend/internal/db"
	"github.com/bio-nexus/backend/pkg/common"
)

func (s *Store) SaveRiskAnalysis(ctx context.Context, rec common.RiskAnalysisRecord) (common.RiskAnalysisRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	profile, err := json.Marshal(rec.Profile)
	if err != nil {
		return common.RiskAnalysisRecord{}, err
	}
	categories, err := json.Marshal(rec.Categories)
	if err != nil {
		return common.RiskAnalysisRecord{}, err
	}
	recs, err := json.Marshal(rec.Recommendations)
	if err != nil {
		return common.RiskAnalysisRecord{}, err
	}

	row, err := s.q.InsertRiskAnalysis(ctx, db.InsertRiskAnalysisParams{
		ID:              rec.ID,
		MissionProfile:  profile,
		OverallScore:    rec.OverallScore,
		Categories:      categories,
		Recommendations: recs,
		Confidence:      rec.Confidence,
	})
	if err != nil {
		return common.RiskAnalysisRecord{}, storeErr("insert_risk_analysis", err)
	}
	rec.CreatedAt = fromTime(row.CreatedAt)
	return rec, nil
}

func (s *Store) ListRiskAnalyses(ctx context.Context, limit int) ([]common.RiskAnalysisRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.ListRiskAnalyses(ctx, int32(limit))
	if err != nil {
		return nil, storeErr("list_risk_analyses", err)
	}
	out := make([]common.RiskAnalysisRecord, 0, len(rows))
	for _, r := range rows {
		rec := common.RiskAnalysisRecord{
			ID:           r.ID,
			OverallScore: r.OverallScore,
			Confidence:   r.Confidence,
			CreatedAt:    fromTime(r.CreatedAt),
		}
		if err := json.Unmarshal(r.MissionProfile, &rec.Profile); err != nil {
			return nil, storeErr("list_risk_analyses", err)
		}
		if err := json.Unmarshal(r.Categories, &rec.Categories); err != nil {
			return nil, storeErr("list_risk_analyses", err)
		}
		if err := json.Unmarshal(r.Recommendations, &rec.Recommendations); err != nil {
			return nil, storeErr("list_risk_analyses", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
