package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/common"
)

// RiskCategories is the closed set of mission health risk categories.
var RiskCategories = []string{
	"radiation",
	"bone_loss",
	"muscle_atrophy",
	"cardiovascular",
	"immune",
	"psychological",
	"vision",
	"nutrition",
}

var defaultRiskCategories = []string{"radiation", "bone_loss", "muscle_atrophy", "psychological"}

// DefaultRiskScore is used for a category that could not be scored and for
// the overall score of an analysis without categories.
const DefaultRiskScore = 0.5

var standardCountermeasures = map[string]string{
	"radiation":      "Provide shielded storm shelters and track crew dose with personal dosimeters.",
	"bone_loss":      "Schedule daily resistive exercise and monitor bone density before and after flight.",
	"muscle_atrophy": "Combine resistive and aerobic exercise with adequate protein intake.",
	"cardiovascular": "Use aerobic exercise and lower body negative pressure before return to gravity.",
	"immune":         "Monitor immune markers and limit microbial exposure through habitat hygiene.",
	"psychological":  "Plan private communication windows, structured work-rest cycles and behavioral support.",
	"vision":         "Perform periodic ocular imaging and track intracranial pressure indicators.",
	"nutrition":      "Provide a varied, nutrient-dense food system with vitamin D supplementation.",
}

// RiskResult is the state and result of the mission risk pipeline.
type RiskResult struct {
	Profile         common.MissionProfile           `json:"mission_profile"`
	Sources         []Evidence                      `json:"sources"`
	Summary         string                          `json:"summary"`
	Stressors       []string                        `json:"stressors"`
	Categories      []string                        `json:"categories"`
	Assessments     []common.RiskCategoryAssessment `json:"assessments"`
	OverallScore    float64                         `json:"overall_score"`
	Recommendations []string                        `json:"recommendations"`
	Confidence      float64                         `json:"confidence"`
	Stages          []StageReport                   `json:"stages"`
}

// Record converts the result into a persistable analysis.
func (r RiskResult) Record() common.RiskAnalysisRecord {
	return common.RiskAnalysisRecord{
		ID:              util.NewUUID(),
		Profile:         r.Profile,
		OverallScore:    r.OverallScore,
		Categories:      r.Assessments,
		Recommendations: r.Recommendations,
		Confidence:      r.Confidence,
	}
}

type profileResponse struct {
	Summary   string   `json:"summary"`
	Stressors []string `json:"stressors"`
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

type scoredRisk struct {
	Category    string  `json:"category"`
	Probability float64 `json:"probability" jsonschema:"minimum=0,maximum=1"`
	Impact      float64 `json:"impact" jsonschema:"minimum=0,maximum=1"`
}

type scoringResponse struct {
	Risks []scoredRisk `json:"risks"`
}

type mitigation struct {
	Category string   `json:"category"`
	Actions  []string `json:"actions"`
}

type mitigationResponse struct {
	Mitigations     []mitigation `json:"mitigations"`
	Recommendations []string     `json:"recommendations"`
}

// RiskAnalyzer runs profile analysis, category selection, scoring and
// mitigation planning.
type RiskAnalyzer struct {
	client ai.ReasoningClient
	runner *Runner[RiskResult]
}

func NewRiskAnalyzer(client ai.ReasoningClient, stageTimeout time.Duration) *RiskAnalyzer {
	r := &RiskAnalyzer{client: client}
	r.runner = NewRunner(stageTimeout,
		Stage[RiskResult]{Name: "profile", Run: r.profile},
		Stage[RiskResult]{Name: "categories", Run: r.categories},
		Stage[RiskResult]{Name: "scoring", Run: r.scoring},
		Stage[RiskResult]{Name: "mitigations", Run: r.mitigations},
	)
	return r
}

// Analyze runs the pipeline. Confidence is the fraction of stages whose
// response parsed.
func (r *RiskAnalyzer) Analyze(ctx context.Context, profile common.MissionProfile, sources []Evidence) RiskResult {
	res := r.runner.Run(ctx, RiskResult{Profile: profile, Sources: sources})
	if len(res.Stages) > 0 {
		res.Confidence = float64(parsedCount(res.Stages)) / float64(len(res.Stages))
	}
	return res
}

func (r *RiskAnalyzer) profile(ctx context.Context, s RiskResult) RiskResult {
	profileJSON, _ := json.MarshalIndent(s.Profile, "", "  ")
	o := call(ctx, r.client, "profile", "Crew health summary of a mission profile",
		fmt.Sprintf(ai.MissionProfilePrompt, profileJSON),
		func(p *profileResponse) error {
			if strings.TrimSpace(p.Summary) == "" {
				return errors.New("summary is empty")
			}
			p.Stressors = nonEmpty(p.Stressors)
			return nil
		},
		func() profileResponse {
			return profileResponse{Summary: summarizeProfile(s.Profile), Stressors: profileStressors(s.Profile)}
		},
	)
	s.Summary = o.Value.Summary
	s.Stressors = o.Value.Stressors
	s.Stages = append(s.Stages, report("profile", o))
	return s
}

func (r *RiskAnalyzer) categories(ctx context.Context, s RiskResult) RiskResult {
	o := call(ctx, r.client, "categories", "Relevant mission risk categories",
		fmt.Sprintf(ai.RiskCategoriesPrompt, s.Summary, formatEvidence(s.Sources)),
		func(c *categoriesResponse) error {
			var kept []string
			for _, cat := range c.Categories {
				cat = strings.ToLower(strings.TrimSpace(cat))
				if !slices.Contains(RiskCategories, cat) {
					return fmt.Errorf("unknown risk category %q", cat)
				}
				if !slices.Contains(kept, cat) {
					kept = append(kept, cat)
				}
			}
			if len(kept) == 0 {
				return errors.New("no categories")
			}
			c.Categories = kept
			return nil
		},
		func() categoriesResponse {
			return categoriesResponse{Categories: slices.Clone(defaultRiskCategories)}
		},
	)
	s.Categories = o.Value.Categories
	s.Stages = append(s.Stages, report("categories", o))
	return s
}

func (r *RiskAnalyzer) scoring(ctx context.Context, s RiskResult) RiskResult {
	o := call(ctx, r.client, "scoring", "Probability and impact per risk category",
		fmt.Sprintf(ai.RiskScoringPrompt, s.Summary, strings.Join(s.Categories, ", "), formatEvidence(s.Sources)),
		func(sr *scoringResponse) error {
			for _, risk := range sr.Risks {
				if !inUnit(risk.Probability) || !inUnit(risk.Impact) {
					return fmt.Errorf("score out of range for %q", risk.Category)
				}
			}
			if len(sr.Risks) == 0 {
				return errors.New("no risks scored")
			}
			return nil
		},
		func() scoringResponse { return scoringResponse{} },
	)

	scored := map[string]scoredRisk{}
	for _, risk := range o.Value.Risks {
		scored[strings.ToLower(strings.TrimSpace(risk.Category))] = risk
	}

	s.Assessments = make([]common.RiskCategoryAssessment, 0, len(s.Categories))
	total := 0.0
	for _, cat := range s.Categories {
		a := common.RiskCategoryAssessment{
			Category:    cat,
			Probability: DefaultRiskScore,
			Impact:      DefaultRiskScore,
			Score:       DefaultRiskScore,
		}
		if risk, ok := scored[cat]; ok {
			a.Probability = risk.Probability
			a.Impact = risk.Impact
			a.Score = risk.Probability * risk.Impact
		}
		total += a.Score
		s.Assessments = append(s.Assessments, a)
	}
	s.OverallScore = DefaultRiskScore
	if len(s.Assessments) > 0 {
		s.OverallScore = total / float64(len(s.Assessments))
	}
	s.Stages = append(s.Stages, report("scoring", o))
	return s
}

func (r *RiskAnalyzer) mitigations(ctx context.Context, s RiskResult) RiskResult {
	scores, _ := json.MarshalIndent(s.Assessments, "", "  ")
	o := call(ctx, r.client, "mitigations", "Countermeasures per risk category",
		fmt.Sprintf(ai.MitigationPrompt, scores),
		func(m *mitigationResponse) error {
			if len(m.Mitigations) == 0 {
				return errors.New("no mitigations")
			}
			for _, mi := range m.Mitigations {
				if len(nonEmpty(mi.Actions)) == 0 {
					return fmt.Errorf("no actions for %q", mi.Category)
				}
			}
			return nil
		},
		func() mitigationResponse {
			var out mitigationResponse
			for _, cat := range s.Categories {
				action := standardCountermeasures[cat]
				out.Mitigations = append(out.Mitigations, mitigation{Category: cat, Actions: []string{action}})
				out.Recommendations = append(out.Recommendations, action)
			}
			return out
		},
	)

	byCategory := map[string][]string{}
	for _, m := range o.Value.Mitigations {
		byCategory[strings.ToLower(strings.TrimSpace(m.Category))] = nonEmpty(m.Actions)
	}
	for i, a := range s.Assessments {
		actions := byCategory[a.Category]
		if len(actions) == 0 {
			actions = []string{standardCountermeasures[a.Category]}
		}
		s.Assessments[i].Mitigations = actions
	}
	s.Recommendations = nonEmpty(o.Value.Recommendations)
	if len(s.Recommendations) == 0 {
		for _, a := range s.Assessments {
			s.Recommendations = append(s.Recommendations, a.Mitigations[0])
		}
	}
	s.Stages = append(s.Stages, report("mitigations", o))
	return s
}

func summarizeProfile(p common.MissionProfile) string {
	name := p.Name
	if name == "" {
		name = "Mission"
	}
	summary := fmt.Sprintf("%s: %d-day mission to %s with a crew of %d.", name, p.DurationDays, orUnknown(p.Destination), p.CrewSize)
	if p.RadiationLevel != "" {
		summary += " Radiation environment: " + p.RadiationLevel + "."
	}
	if p.GravityLevel != "" {
		summary += " Gravity: " + p.GravityLevel + "."
	}
	return summary
}

func profileStressors(p common.MissionProfile) []string {
	out := []string{"microgravity", "isolation and confinement"}
	if p.RadiationLevel != "" {
		out = append(out, "radiation ("+p.RadiationLevel+")")
	} else {
		out = append(out, "space radiation")
	}
	return append(out, nonEmpty(p.SpecialFactors)...)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "an unspecified destination"
	}
	return s
}
