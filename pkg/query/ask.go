package query

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/agent"
	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/grounding"
	"github.com/bio-nexus/backend/pkg/logger"
	"github.com/bio-nexus/backend/pkg/retrieval"
	"github.com/bio-nexus/backend/pkg/store"
)

const (
	noDataAnswer      = "No relevant papers were found in the knowledge base for this question. Try rephrasing it or upload papers on the topic."
	unavailableAnswer = "The answer could not be generated right now. The most relevant excerpts are:"
)

// Answer is the reply to one question in a session.
type Answer struct {
	SessionID  string             `json:"session_id"`
	TurnID     string             `json:"turn_id"`
	Answer     string             `json:"answer"`
	Sources    []common.SourceRef `json:"sources"`
	Confidence float64            `json:"confidence"`
	Grounding  grounding.Result   `json:"grounding"`
	FollowUps  []string           `json:"follow_up_questions"`
	Intent     agent.Intent       `json:"intent,omitempty"`
	Degraded   bool               `json:"degraded"`
	Retrieval  retrieval.Metadata `json:"retrieval"`
	Trace      QueryTraceSnapshot `json:"trace"`
}

type AskRequest struct {
	Question string        `json:"question" validate:"required"`
	Filters  store.Filters `json:"filters"`
}

func (s *Service) CreateSession(ctx context.Context) (common.Session, error) {
	return s.store.CreateSession(ctx, util.NewUUID())
}

func (s *Service) Turns(ctx context.Context, sessionID string, limit int) ([]common.ConversationTurn, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListTurns(ctx, sessionID, store.ClampLimit(limit, 100, 500))
}

// Ask persists the question, retrieves evidence, generates a cited answer
// with the session history and persists the verified answer. Provider
// failures degrade the answer instead of failing the call.
func (s *Service) Ask(ctx context.Context, sessionID string, req AskRequest) (Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Answer{}, common.NewValidationError("question", "must not be empty")
	}
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return Answer{}, err
	}

	history, err := s.store.ListTurns(ctx, sessionID, historyTurns)
	if err != nil {
		return Answer{}, err
	}
	if _, err := s.store.AppendTurn(ctx, common.ConversationTurn{
		ID:        util.NewUUID(),
		SessionID: sessionID,
		Role:      common.RoleUser,
		Content:   question,
	}); err != nil {
		return Answer{}, err
	}

	res, err := s.retriever.Retrieve(ctx, retrieval.Request{Query: question, Filters: req.Filters})
	if err != nil {
		return Answer{}, err
	}

	trace := NewQueryTrace()
	for _, r := range res.Results {
		trace.Considered(r.PaperID)
	}
	sources := topSources(res.Results, maxSources)
	for _, src := range sources {
		trace.Used(src.PaperID)
	}

	out := Answer{
		SessionID:  sessionID,
		Sources:    sources,
		Confidence: Confidence(sources),
		Retrieval:  res.Metadata,
		Degraded:   res.Metadata.ClassificationFallback || len(res.Metadata.Failed) > 0,
	}
	if c := res.Metadata.Classification; c != nil {
		out.Intent = c.Intent
	}

	answer, err := s.generate(ctx, history, question, sources)
	if err != nil {
		logger.Warn("[Query][Ask] Answer generation failed", "session", sessionID, "err", err)
		answer = fallbackAnswer(sources)
		out.Degraded = true
	}
	out.Answer = util.NormalizeCitations(answer)
	trace.Cited(out.Answer)

	snippets := make([]string, len(sources))
	for i, src := range sources {
		snippets[i] = src.Title + " " + src.Snippet
	}
	out.Grounding = s.verifier.Verify(StripCitations(out.Answer), snippets)

	turn, err := s.store.AppendTurn(ctx, common.ConversationTurn{
		ID:             util.NewUUID(),
		SessionID:      sessionID,
		Role:           common.RoleAssistant,
		Content:        out.Answer,
		Sources:        sources,
		Grounded:       out.Grounding.Grounded,
		GroundingRatio: out.Grounding.Ratio,
	})
	if err != nil {
		return Answer{}, err
	}
	out.TurnID = turn.ID

	out.FollowUps, _ = agent.FollowUps(ctx, s.reasoning, question, out.Answer)
	out.Trace = trace.Snapshot()
	return out, nil
}

func (s *Service) generate(
	ctx context.Context,
	history []common.ConversationTurn,
	question string,
	sources []common.SourceRef,
) (string, error) {
	msgs := make([]ai.ChatMessage, 0, len(history)+1)
	for _, t := range history {
		msgs = append(msgs, ai.ChatMessage{Role: string(t.Role), Message: t.Content})
	}
	msgs = append(msgs, ai.ChatMessage{Role: string(common.RoleUser), Message: question})

	if len(sources) == 0 {
		if s.reasoning == nil {
			return noDataAnswer, nil
		}
		resp, err := s.reasoning.GenerateChat(ctx, msgs, s.generateOptions(ai.NoDataPrompt)...)
		if err != nil || strings.TrimSpace(resp) == "" {
			return noDataAnswer, nil
		}
		return resp, nil
	}
	if s.reasoning == nil {
		return "", fmt.Errorf("no reasoning provider configured")
	}

	prompt := fmt.Sprintf(ai.AnswerPrompt, buildContext(sources))
	resp, err := s.reasoning.GenerateChat(ctx, msgs, s.generateOptions(prompt)...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp) == "" {
		return "", fmt.Errorf("empty answer")
	}
	return resp, nil
}

func buildContext(sources []common.SourceRef) string {
	var sb strings.Builder
	for _, src := range sources {
		fmt.Fprintf(&sb, "[[%s]] %s\n%s\n\n", src.PaperID, src.Title, src.Snippet)
	}
	return sb.String()
}

func fallbackAnswer(sources []common.SourceRef) string {
	var sb strings.Builder
	sb.WriteString(unavailableAnswer)
	for _, src := range sources {
		fmt.Fprintf(&sb, "\n- %s [[%s]]: %s", src.Title, src.PaperID, util.Truncate(src.Snippet, 200))
	}
	return sb.String()
}

// topSources keeps the best result per paper, in retrieval order.
func topSources(results []retrieval.Result, n int) []common.SourceRef {
	seen := make(map[string]struct{}, len(results))
	out := make([]common.SourceRef, 0, min(n, len(results)))
	for _, r := range results {
		if len(out) == n {
			break
		}
		if _, ok := seen[r.PaperID]; ok {
			continue
		}
		seen[r.PaperID] = struct{}{}
		out = append(out, common.SourceRef{
			PaperID: r.PaperID,
			Title:   r.Title,
			Snippet: r.Snippet,
			Score:   r.Score,
			Method:  string(r.Method),
		})
	}
	return out
}

// Confidence is the mean source score plus 0.1 per source above 0.8
// (at most 0.3), capped at 1 and rounded to two decimals.
func Confidence(sources []common.SourceRef) float64 {
	if len(sources) == 0 {
		return 0
	}
	sum := 0.0
	strong := 0
	for _, src := range sources {
		sum += src.Score
		if src.Score > 0.8 {
			strong++
		}
	}
	c := sum/float64(len(sources)) + math.Min(0.1*float64(strong), 0.3)
	c = math.Min(c, 1)
	return math.Round(c*100) / 100
}
