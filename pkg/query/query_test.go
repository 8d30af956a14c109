package query

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/grounding"
	"github.com/bio-nexus/backend/pkg/retrieval"
	"github.com/bio-nexus/backend/pkg/store/memory"
)

type fakeReasoning struct {
	answer   string
	chatErr  error
	followUp string
	chats    [][]ai.ChatMessage
}

func (f *fakeReasoning) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", errors.New("unused")
}

func (f *fakeReasoning) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	if name == "follow_up" && f.followUp != "" {
		return ai.DecodeStructured(name, f.followUp, out)
	}
	return &common.ProviderError{Op: name, Err: errors.New("unavailable")}
}

func (f *fakeReasoning) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	f.chats = append(f.chats, messages)
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.answer, nil
}

func (f *fakeReasoning) ResetMetrics()               {}
func (f *fakeReasoning) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func newService(t *testing.T, reasoning ai.ReasoningClient) (*Service, *memory.Store) {
	t.Helper()
	s := memory.New()
	p := common.Paper{
		ID:       "bone",
		Title:    "Skeletal adaptation in orbit",
		Abstract: "Microgravity reduces bone density in mice.",
		Keywords: []string{"microgravity", "bone"},
		File:     common.FileMetadata{ContentHash: "h1"},
	}
	chunk := common.Chunk{ID: "c0", PaperID: "bone", Content: "Microgravity exposure reduced bone density in mice by twelve percent."}
	if err := s.CommitPaper(context.Background(), p, []common.Chunk{chunk}, common.GraphSyncJob{ID: "j1", PaperID: "bone"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	r := retrieval.NewRetriever(retrieval.NewRetrieverParams{Search: s})
	return NewService(NewServiceParams{
		Store:        s,
		Retriever:    r,
		Reasoning:    reasoning,
		StageTimeout: time.Second,
	}), s
}

func TestAsk_GroundedAnswer(t *testing.T) {
	reasoning := &fakeReasoning{
		answer:   "Microgravity reduced bone density in mice [[bone]].",
		followUp: `{"questions":["Does bone density recover after landing?"]}`,
	}
	svc, s := newService(t, reasoning)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	ans, err := svc.Ask(ctx, sess.ID, AskRequest{Question: "How does microgravity affect bone density?"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].PaperID != "bone" {
		t.Fatalf("expected bone as source, got %+v", ans.Sources)
	}
	if !ans.Grounding.Grounded {
		t.Fatalf("expected grounded answer, got %+v", ans.Grounding)
	}
	if !slices.Equal(ans.Trace.CitedPaperIDs, []string{"bone"}) {
		t.Fatalf("expected bone cited, got %v", ans.Trace.CitedPaperIDs)
	}
	if len(ans.FollowUps) != 1 {
		t.Fatalf("expected one follow-up, got %v", ans.FollowUps)
	}

	turns, _ := s.ListTurns(ctx, sess.ID, 10)
	if len(turns) != 2 || turns[0].Role != common.RoleUser || turns[1].Role != common.RoleAssistant {
		t.Fatalf("expected user and assistant turns, got %+v", turns)
	}
	if len(turns[1].Sources) != 1 || !turns[1].Grounded {
		t.Fatalf("expected assistant turn with sources, got %+v", turns[1])
	}

	if _, err := svc.Ask(ctx, sess.ID, AskRequest{Question: "And in rats?"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	last := reasoning.chats[len(reasoning.chats)-1]
	if len(last) != 3 || last[2].Message != "And in rats?" {
		t.Fatalf("expected history plus question, got %+v", last)
	}
}

func TestAsk_ProviderFailureDegrades(t *testing.T) {
	svc, s := newService(t, &fakeReasoning{chatErr: &common.ProviderError{Op: "chat", Err: errors.New("timeout")}})
	ctx := context.Background()
	sess, _ := svc.CreateSession(ctx)

	ans, err := svc.Ask(ctx, sess.ID, AskRequest{Question: "microgravity bone density"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !ans.Degraded || !strings.HasPrefix(ans.Answer, unavailableAnswer) {
		t.Fatalf("expected degraded excerpt answer, got %q", ans.Answer)
	}
	if ans.FollowUps == nil || len(ans.FollowUps) != 0 {
		t.Fatalf("expected empty follow-ups, got %v", ans.FollowUps)
	}
	turns, _ := s.ListTurns(ctx, sess.ID, 10)
	if len(turns) != 2 {
		t.Fatalf("expected both turns persisted, got %d", len(turns))
	}
}

func TestAsk_NoResults(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	sess, _ := svc.CreateSession(ctx)

	ans, err := svc.Ask(ctx, sess.ID, AskRequest{Question: "lunar regolith toxicity"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ans.Answer != noDataAnswer || len(ans.Sources) != 0 || ans.Confidence != 0 {
		t.Fatalf("expected no-data answer, got %+v", ans)
	}
}

func TestAsk_Validation(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	if _, err := svc.Ask(ctx, "missing", AskRequest{Question: "bone"}); !common.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	sess, _ := svc.CreateSession(ctx)
	if _, err := svc.Ask(ctx, sess.ID, AskRequest{Question: " "}); !common.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{"Empty", nil, 0},
		{"Single", []float64{0.5}, 0.5},
		{"StrongBonus", []float64{0.9, 0.9, 0.5}, 0.97},
		{"Capped", []float64{0.95, 0.95, 0.95, 0.95}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sources []common.SourceRef
			for _, s := range tt.scores {
				sources = append(sources, common.SourceRef{Score: s})
			}
			if got := Confidence(sources); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAnalyzeRisk_PersistsRecord(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	profile := common.MissionProfile{Name: "Ares", DurationDays: 900, Destination: "Mars", CrewSize: 4}
	res, err := svc.AnalyzeRisk(ctx, profile)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Record.ID == "" || res.Record.OverallScore != 0.5 {
		t.Fatalf("expected default scored record, got %+v", res.Record)
	}

	history, err := svc.RiskHistory(ctx, 0)
	if err != nil || len(history) != 1 || history[0].ID != res.Record.ID {
		t.Fatalf("expected stored analysis, got %+v %v", history, err)
	}

	if _, err := svc.AnalyzeRisk(ctx, common.MissionProfile{CrewSize: 2}); !common.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestHypotheses_UsesEvidence(t *testing.T) {
	svc, _ := newService(t, nil)
	res, err := svc.Hypotheses(context.Background(), HypothesisRequest{Topic: "microgravity bone density"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(res.Sources) != 1 || res.Sources[0].PaperID != "bone" {
		t.Fatalf("expected bone evidence, got %+v", res.Sources)
	}
	if len(res.Ranked) == 0 {
		t.Fatal("expected ranked hypotheses")
	}
}

func TestSuggestions(t *testing.T) {
	svc, _ := newService(t, nil)
	got, err := svc.Suggestions(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(got) == 0 || got[0] != "What does the literature say about microgravity?" {
		t.Fatalf("expected keyword question first, got %v", got)
	}
	if len(got) > maxSuggestions {
		t.Fatalf("expected at most %d suggestions, got %d", maxSuggestions, len(got))
	}
}

func TestGraphInsights_Unavailable(t *testing.T) {
	svc, _ := newService(t, nil)
	if _, err := svc.GraphStats(context.Background()); !errors.Is(err, ErrGraphUnavailable) {
		t.Fatalf("expected ErrGraphUnavailable, got %v", err)
	}
	if _, err := svc.RelatedTopics(context.Background(), "bone", 5); !errors.Is(err, ErrGraphUnavailable) {
		t.Fatalf("expected ErrGraphUnavailable, got %v", err)
	}
}

func TestQueryTrace_CitesOnlyUsedPapers(t *testing.T) {
	tr := NewQueryTrace()
	tr.Considered("a", "b", "c")
	tr.Used("a", "b")
	tr.Cited("See [[b]] and [[c]] and [[a]].")
	snap := tr.Snapshot()
	if !slices.Equal(snap.CitedPaperIDs, []string{"a", "b"}) {
		t.Fatalf("expected a,b cited, got %v", snap.CitedPaperIDs)
	}
	if !slices.Equal(snap.ConsideredPaperIDs, []string{"a", "b", "c"}) {
		t.Fatalf("expected a,b,c considered, got %v", snap.ConsideredPaperIDs)
	}
}

func TestStripCitations_KeepsGroundingRatio(t *testing.T) {
	answer := "Microgravity reduced bone density in mice [[V1StGXR8_Z5jdHi6B-myT]]."
	stripped := StripCitations(answer)
	if stripped != "Microgravity reduced bone density in mice." {
		t.Fatalf("expected markers removed, got %q", stripped)
	}

	sources := []string{"Microgravity reduced bone density in mice after spaceflight."}
	v := grounding.NewVerifier(0)
	plain := v.Verify("Microgravity reduced bone density in mice.", sources)
	cited := v.Verify(stripped, sources)
	if cited.Ratio != plain.Ratio {
		t.Fatalf("expected citation to leave ratio %v unchanged, got %v", plain.Ratio, cited.Ratio)
	}
}
