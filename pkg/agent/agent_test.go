package agent

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/common"
)

// scriptedClient answers structured calls by stage name. Stages without a
// scripted response fail like an unreachable provider.
type scriptedClient struct {
	responses map[string]string
	calls     []string
}

func (c *scriptedClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", &common.ProviderError{Op: "completion", Err: errors.New("not scripted")}
}

func (c *scriptedClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	c.calls = append(c.calls, name)
	raw, ok := c.responses[name]
	if !ok {
		return &common.ProviderError{Op: name, Err: errors.New("connection refused")}
	}
	return ai.DecodeStructured(name, raw, out)
}

func (c *scriptedClient) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	return "", &common.ProviderError{Op: "chat", Err: errors.New("not scripted")}
}

func (c *scriptedClient) ResetMetrics()               {}
func (c *scriptedClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func TestClassifier_MissionRisk(t *testing.T) {
	client := &scriptedClient{responses: map[string]string{
		"analyze":  `{"summary":"Radiation risk of a Mars mission","key_concepts":["radiation","mars"],"complexity":"moderate"}`,
		"intent":   `{"intent":"mission_risk_analysis","confidence":0.9}`,
		"entities": `{"entities":[{"name":"Radiation","type":"environment"}]}`,
		"routing":  `{"strategy":"hybrid_search","reason":"broad"}`,
	}}

	c := NewClassifier(client, time.Second)
	res := c.Classify(context.Background(), "What is the radiation risk for a Mars mission?")

	if res.Intent != IntentMissionRisk {
		t.Fatalf("expected %s, got %s", IntentMissionRisk, res.Intent)
	}
	if res.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", res.Confidence)
	}
	if len(res.Entities) != 1 || res.Entities[0].Name != "radiation" {
		t.Fatalf("expected normalized entity radiation, got %+v", res.Entities)
	}
	if res.Degraded() {
		t.Fatalf("expected no degraded stages, got %+v", res.Stages)
	}
	if !slices.Equal(client.calls, []string{"analyze", "intent", "entities", "routing"}) {
		t.Fatalf("expected stages in order, got %v", client.calls)
	}
}

func TestClassifier_ProviderDown(t *testing.T) {
	c := NewClassifier(&scriptedClient{}, time.Second)
	res := c.Classify(context.Background(), "What is the radiation risk for a Mars mission?")

	if res.Intent != IntentLiteratureSearch {
		t.Fatalf("expected fallback intent %s, got %s", IntentLiteratureSearch, res.Intent)
	}
	if res.Strategy != StrategyHybrid {
		t.Fatalf("expected fallback strategy %s, got %s", StrategyHybrid, res.Strategy)
	}
	if res.Summary == "" || res.Complexity != "moderate" {
		t.Fatalf("expected default analysis, got %q / %q", res.Summary, res.Complexity)
	}
	if len(res.Stages) != 4 || !res.Degraded() {
		t.Fatalf("expected four degraded stage reports, got %+v", res.Stages)
	}
	for _, st := range res.Stages {
		if st.Parsed || st.Error == "" {
			t.Fatalf("expected stage %s to record its error, got %+v", st.Stage, st)
		}
	}
}

func TestClassifier_NilClient(t *testing.T) {
	res := NewClassifier(nil, 0).Classify(context.Background(), "bone loss in mice")
	if res.Intent != IntentLiteratureSearch || res.Strategy != StrategyHybrid {
		t.Fatalf("expected defaults, got %s / %s", res.Intent, res.Strategy)
	}
}

func TestClassifier_MalformedResponses(t *testing.T) {
	tests := []struct {
		name    string
		stage   string
		raw     string
		check   func(Classification) bool
		wantRaw bool
	}{
		{
			name:    "unknown intent",
			stage:   "intent",
			raw:     `{"intent":"world_domination","confidence":0.9}`,
			check:   func(c Classification) bool { return c.Intent == IntentLiteratureSearch && c.Confidence == 0 },
			wantRaw: true,
		},
		{
			name:    "confidence out of range",
			stage:   "intent",
			raw:     `{"intent":"factual_question","confidence":3}`,
			check:   func(c Classification) bool { return c.Intent == IntentLiteratureSearch },
			wantRaw: true,
		},
		{
			name:    "unknown strategy",
			stage:   "routing",
			raw:     `{"strategy":"telepathy"}`,
			check:   func(c Classification) bool { return c.Strategy == StrategyHybrid },
			wantRaw: true,
		},
		{
			name:    "not json",
			stage:   "routing",
			raw:     `I would use vector search.`,
			check:   func(c Classification) bool { return c.Strategy == StrategyHybrid },
			wantRaw: true,
		},
		{
			name:  "empty response",
			stage: "analyze",
			raw:   ``,
			check: func(c Classification) bool { return c.Summary == "bone loss in mice" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedClient{responses: map[string]string{tt.stage: tt.raw}}
			res := NewClassifier(client, time.Second).Classify(context.Background(), "bone loss in mice")
			if !tt.check(res) {
				t.Fatalf("expected stage default, got %+v", res)
			}
			for _, st := range res.Stages {
				if st.Stage != tt.stage {
					continue
				}
				if st.Parsed {
					t.Fatalf("expected stage %s to fall back", st.Stage)
				}
				if tt.wantRaw && st.Raw == "" {
					t.Fatalf("expected raw response to be kept for stage %s", st.Stage)
				}
			}
		})
	}
}

func TestRunner_Order(t *testing.T) {
	var seen []string
	step := func(name string) Stage[[]string] {
		return Stage[[]string]{Name: name, Run: func(ctx context.Context, s []string) []string {
			seen = append(seen, name)
			if _, ok := ctx.Deadline(); !ok {
				t.Fatalf("expected stage %s to run with a deadline", name)
			}
			return append(s, name)
		}}
	}

	r := NewRunner(time.Second, step("a"), step("b"), step("c"))
	out := r.Run(context.Background(), nil)
	if !slices.Equal(out, []string{"a", "b", "c"}) || !slices.Equal(seen, out) {
		t.Fatalf("expected a,b,c, got %v (seen %v)", out, seen)
	}
	if !slices.Equal(r.Stages(), []string{"a", "b", "c"}) {
		t.Fatalf("expected stage names a,b,c, got %v", r.Stages())
	}
}

func TestHypothesisGenerator_Defaults(t *testing.T) {
	sources := []Evidence{
		{PaperID: "p1", Title: "Bone loss", Snippet: "Microgravity reduces bone density in mice. Further text."},
		{PaperID: "p2", Title: "Muscle", Snippet: "Hindlimb unloading causes muscle atrophy."},
	}
	res := NewHypothesisGenerator(&scriptedClient{}, time.Second).Generate(context.Background(), "bone loss", sources)

	if len(res.Findings) != 2 || res.Findings[0] != "Microgravity reduces bone density in mice." {
		t.Fatalf("expected first sentences as findings, got %v", res.Findings)
	}
	if len(res.Gaps) == 0 || len(res.Candidates) != len(res.Gaps) {
		t.Fatalf("expected one candidate per gap, got %d gaps %d candidates", len(res.Gaps), len(res.Candidates))
	}
	if len(res.Ranked) != len(res.Candidates) {
		t.Fatalf("expected every candidate ranked, got %d", len(res.Ranked))
	}
	for _, h := range res.Ranked {
		if h.Score != 0.5 {
			t.Fatalf("expected default score 0.5, got %v", h.Score)
		}
	}
	if len(res.Stages) != 4 || parsedCount(res.Stages) != 0 {
		t.Fatalf("expected four fallback stages, got %+v", res.Stages)
	}
}

func TestHypothesisGenerator_Ranking(t *testing.T) {
	client := &scriptedClient{responses: map[string]string{
		"literature": `{"findings":["Bone density drops in microgravity"],"themes":["bone"]}`,
		"gaps":       `{"gaps":["Long-term recovery","Sex differences"]}`,
		"generate":   `{"hypotheses":[{"statement":"H1","rationale":"r1","gap":"Long-term recovery"},{"statement":"H2","rationale":"r2","gap":"Sex differences"}]}`,
		"rank":       `{"hypotheses":[{"statement":"H1","novelty":0.2,"feasibility":0.2,"evidence":0.2},{"statement":"H2","novelty":1,"feasibility":0.5,"evidence":0.75}]}`,
	}}
	res := NewHypothesisGenerator(client, time.Second).Generate(context.Background(), "bone loss", nil)

	if len(res.Ranked) != 2 || res.Ranked[0].Statement != "H2" {
		t.Fatalf("expected H2 ranked first, got %+v", res.Ranked)
	}
	if res.Ranked[0].Score != 0.75 {
		t.Fatalf("expected score 0.75, got %v", res.Ranked[0].Score)
	}
}

func TestHypothesisGenerator_RankingOutOfOrder(t *testing.T) {
	client := &scriptedClient{responses: map[string]string{
		"gaps":     `{"gaps":["a","b"]}`,
		"generate": `{"hypotheses":[{"statement":"H1","gap":"a"},{"statement":"H2","gap":"b"}]}`,
		"rank":     `{"hypotheses":[{"statement":"h2 ","novelty":0.9,"feasibility":0.9,"evidence":0.9},{"statement":"H1","novelty":0.1,"feasibility":0.1,"evidence":0.1}]}`,
	}}
	res := NewHypothesisGenerator(client, time.Second).Generate(context.Background(), "topic", nil)
	if len(res.Ranked) != 2 || res.Ranked[0].Statement != "H2" || res.Ranked[0].Novelty != 0.9 {
		t.Fatalf("expected H2 first with its own scores, got %+v", res.Ranked)
	}
	if res.Ranked[1].Statement != "H1" || res.Ranked[1].Novelty != 0.1 {
		t.Fatalf("expected H1 last with its own scores, got %+v", res.Ranked[1])
	}
}

func TestHypothesisGenerator_RankCountMismatch(t *testing.T) {
	client := &scriptedClient{responses: map[string]string{
		"gaps":     `{"gaps":["a","b"]}`,
		"generate": `{"hypotheses":[{"statement":"H1","gap":"a"},{"statement":"H2","gap":"b"}]}`,
		"rank":     `{"hypotheses":[{"statement":"H1","novelty":1,"feasibility":1,"evidence":1}]}`,
	}}
	res := NewHypothesisGenerator(client, time.Second).Generate(context.Background(), "topic", nil)
	if len(res.Ranked) != 2 {
		t.Fatalf("expected two ranked hypotheses, got %d", len(res.Ranked))
	}
	if res.Stages[3].Parsed {
		t.Fatal("expected rank stage to fall back")
	}
}

func TestRiskAnalyzer_Defaults(t *testing.T) {
	profile := common.MissionProfile{Name: "Ares", DurationDays: 900, Destination: "Mars", CrewSize: 4}
	res := NewRiskAnalyzer(nil, time.Second).Analyze(context.Background(), profile, nil)

	if !slices.Equal(res.Categories, defaultRiskCategories) {
		t.Fatalf("expected default categories, got %v", res.Categories)
	}
	if res.OverallScore != DefaultRiskScore {
		t.Fatalf("expected overall score %v, got %v", DefaultRiskScore, res.OverallScore)
	}
	for _, a := range res.Assessments {
		if a.Score != DefaultRiskScore || len(a.Mitigations) == 0 {
			t.Fatalf("expected default assessment with mitigation, got %+v", a)
		}
	}
	if len(res.Recommendations) != len(res.Categories) {
		t.Fatalf("expected one recommendation per category, got %d", len(res.Recommendations))
	}
	if res.Confidence != 0 {
		t.Fatalf("expected confidence 0, got %v", res.Confidence)
	}
	if !strings.Contains(res.Summary, "900-day") {
		t.Fatalf("expected profile summary, got %q", res.Summary)
	}
}

func TestRiskAnalyzer_Scored(t *testing.T) {
	client := &scriptedClient{responses: map[string]string{
		"profile":    `{"summary":"Long Mars mission","stressors":["radiation"]}`,
		"categories": `{"categories":["Radiation","bone_loss","radiation"]}`,
		"scoring":    `{"risks":[{"category":"radiation","probability":0.8,"impact":0.5}]}`,
	}}
	res := NewRiskAnalyzer(client, time.Second).Analyze(context.Background(), common.MissionProfile{DurationDays: 30}, nil)

	if !slices.Equal(res.Categories, []string{"radiation", "bone_loss"}) {
		t.Fatalf("expected deduplicated categories, got %v", res.Categories)
	}
	if res.Assessments[0].Score != 0.4 {
		t.Fatalf("expected radiation score 0.4, got %v", res.Assessments[0].Score)
	}
	if res.Assessments[1].Score != DefaultRiskScore {
		t.Fatalf("expected unscored category default, got %v", res.Assessments[1].Score)
	}
	if res.OverallScore != 0.45 {
		t.Fatalf("expected overall 0.45, got %v", res.OverallScore)
	}
	if res.Confidence != 0.75 {
		t.Fatalf("expected confidence 0.75, got %v", res.Confidence)
	}
	rec := res.Record()
	if rec.ID == "" || rec.OverallScore != res.OverallScore || len(rec.Categories) != 2 {
		t.Fatalf("expected record mirroring result, got %+v", rec)
	}
}

func TestRiskAnalyzer_UnknownCategory(t *testing.T) {
	client := &scriptedClient{responses: map[string]string{
		"categories": `{"categories":["boredom"]}`,
	}}
	res := NewRiskAnalyzer(client, time.Second).Analyze(context.Background(), common.MissionProfile{}, nil)
	if !slices.Equal(res.Categories, defaultRiskCategories) {
		t.Fatalf("expected default categories, got %v", res.Categories)
	}
}

func TestFollowUps(t *testing.T) {
	qs, rep := FollowUps(context.Background(), nil, "q", "a")
	if len(qs) != 0 || rep.Parsed {
		t.Fatalf("expected no questions, got %v", qs)
	}

	client := &scriptedClient{responses: map[string]string{
		"follow_up": `{"questions":["one"," ","two","three","four"]}`,
	}}
	qs, rep = FollowUps(context.Background(), client, "q", "a")
	if !rep.Parsed || !slices.Equal(qs, []string{"one", "two", "three"}) {
		t.Fatalf("expected three trimmed questions, got %v", qs)
	}
}
