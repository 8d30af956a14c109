package db

import "context"

const insertRiskAnalysis = `-- name: InsertRiskAnalysis :one
INSERT INTO risk_analyses (id, mission_profile, overall_score, categories, recommendations, confidence)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at
`

type InsertRiskAnalysisParams struct {
	ID              string
	MissionProfile  []byte
	OverallScore    float64
	Categories      []byte
	Recommendations []byte
	Confidence      float64
}

func (q *Queries) InsertRiskAnalysis(ctx context.Context, arg InsertRiskAnalysisParams) (RiskAnalysis, error) {
	row := q.db.QueryRow(ctx, insertRiskAnalysis,
		arg.ID,
		arg.MissionProfile,
		arg.OverallScore,
		arg.Categories,
		arg.Recommendations,
		arg.Confidence,
	)
	i := RiskAnalysis{
		ID:              arg.ID,
		MissionProfile:  arg.MissionProfile,
		OverallScore:    arg.OverallScore,
		Categories:      arg.Categories,
		Recommendations: arg.Recommendations,
		Confidence:      arg.Confidence,
	}
	err := row.Scan(&i.CreatedAt)
	return i, err
}

const listRiskAnalyses = `-- name: ListRiskAnalyses :many
SELECT id, mission_profile, overall_score, categories, recommendations, confidence, created_at
FROM risk_analyses
ORDER BY created_at DESC, id
LIMIT $1
`

func (q *Queries) ListRiskAnalyses(ctx context.Context, limit int32) ([]RiskAnalysis, error) {
	rows, err := q.db.Query(ctx, listRiskAnalyses, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RiskAnalysis
	for rows.Next() {
		var i RiskAnalysis
		if err := rows.Scan(
			&i.ID,
			&i.MissionProfile,
			&i.OverallScore,
			&i.Categories,
			&i.Recommendations,
			&i.Confidence,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
