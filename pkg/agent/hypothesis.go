package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/ingest"
)

// Evidence is a retrieved excerpt handed to a pipeline.
type Evidence struct {
	PaperID string `json:"paper_id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Hypothesis is a candidate produced for one knowledge gap.
type Hypothesis struct {
	Statement string `json:"statement"`
	Rationale string `json:"rationale"`
	Gap       string `json:"gap"`
}

// RankedHypothesis is a hypothesis with its evaluation scores. Score is the
// mean of Novelty, Feasibility and Evidence.
type RankedHypothesis struct {
	Hypothesis
	Novelty     float64 `json:"novelty"`
	Feasibility float64 `json:"feasibility"`
	Evidence    float64 `json:"evidence"`
	Score       float64 `json:"score"`
}

// HypothesisResult is the state and result of the hypothesis pipeline.
type HypothesisResult struct {
	Topic      string             `json:"topic"`
	Sources    []Evidence         `json:"sources"`
	Findings   []string           `json:"findings"`
	Themes     []string           `json:"themes"`
	Gaps       []string           `json:"gaps"`
	Candidates []Hypothesis       `json:"candidates"`
	Ranked     []RankedHypothesis `json:"hypotheses"`
	Stages     []StageReport      `json:"stages"`
}

type literatureResponse struct {
	Findings []string `json:"findings"`
	Themes   []string `json:"themes"`
}

type gapsResponse struct {
	Gaps []string `json:"gaps"`
}

type hypothesesResponse struct {
	Hypotheses []Hypothesis `json:"hypotheses"`
}

type scoredHypothesis struct {
	Statement   string  `json:"statement"`
	Novelty     float64 `json:"novelty" jsonschema:"minimum=0,maximum=1"`
	Feasibility float64 `json:"feasibility" jsonschema:"minimum=0,maximum=1"`
	Evidence    float64 `json:"evidence" jsonschema:"minimum=0,maximum=1"`
}

type rankResponse struct {
	Hypotheses []scoredHypothesis `json:"hypotheses"`
}

// HypothesisGenerator runs literature analysis, gap identification,
// candidate generation and ranking.
type HypothesisGenerator struct {
	client ai.ReasoningClient
	runner *Runner[HypothesisResult]
}

func NewHypothesisGenerator(client ai.ReasoningClient, stageTimeout time.Duration) *HypothesisGenerator {
	h := &HypothesisGenerator{client: client}
	h.runner = NewRunner(stageTimeout,
		Stage[HypothesisResult]{Name: "literature", Run: h.literature},
		Stage[HypothesisResult]{Name: "gaps", Run: h.gaps},
		Stage[HypothesisResult]{Name: "generate", Run: h.generate},
		Stage[HypothesisResult]{Name: "rank", Run: h.rank},
	)
	return h
}

func (h *HypothesisGenerator) Generate(ctx context.Context, topic string, sources []Evidence) HypothesisResult {
	return h.runner.Run(ctx, HypothesisResult{Topic: strings.TrimSpace(topic), Sources: sources})
}

func (h *HypothesisGenerator) literature(ctx context.Context, s HypothesisResult) HypothesisResult {
	o := call(ctx, h.client, "literature", "Findings and themes of literature excerpts",
		fmt.Sprintf(ai.LiteraturePrompt, s.Topic, formatEvidence(s.Sources)),
		func(r *literatureResponse) error {
			r.Findings = nonEmpty(r.Findings)
			r.Themes = nonEmpty(r.Themes)
			if len(r.Findings) == 0 {
				return errors.New("no findings")
			}
			return nil
		},
		func() literatureResponse {
			var out literatureResponse
			var all strings.Builder
			for _, e := range s.Sources {
				if first := ingest.Sentences(e.Snippet, 1); len(first) > 0 {
					out.Findings = append(out.Findings, first[0])
				}
				all.WriteString(e.Snippet)
				all.WriteByte('\n')
			}
			if len(out.Findings) == 0 {
				out.Findings = []string{"No literature excerpts were available for this topic."}
			}
			out.Themes = util.ExtractKeywords(all.String(), 5)
			return out
		},
	)
	s.Findings = o.Value.Findings
	s.Themes = o.Value.Themes
	s.Stages = append(s.Stages, report("literature", o))
	return s
}

func (h *HypothesisGenerator) gaps(ctx context.Context, s HypothesisResult) HypothesisResult {
	o := call(ctx, h.client, "gaps", "Open knowledge gaps",
		fmt.Sprintf(ai.GapPrompt, s.Topic, bullets(s.Findings)),
		func(r *gapsResponse) error {
			r.Gaps = nonEmpty(r.Gaps)
			if len(r.Gaps) == 0 {
				return errors.New("no gaps")
			}
			return nil
		},
		func() gapsResponse {
			return gapsResponse{Gaps: []string{fmt.Sprintf("The long-term mechanisms behind %s remain insufficiently characterized.", s.Topic)}}
		},
	)
	s.Gaps = o.Value.Gaps
	s.Stages = append(s.Stages, report("gaps", o))
	return s
}

func (h *HypothesisGenerator) generate(ctx context.Context, s HypothesisResult) HypothesisResult {
	o := call(ctx, h.client, "generate", "Candidate research hypotheses",
		fmt.Sprintf(ai.HypothesisPrompt, s.Topic, bullets(s.Gaps)),
		func(r *hypothesesResponse) error {
			kept := r.Hypotheses[:0]
			for _, hyp := range r.Hypotheses {
				if strings.TrimSpace(hyp.Statement) != "" {
					kept = append(kept, hyp)
				}
			}
			r.Hypotheses = kept
			if len(r.Hypotheses) == 0 {
				return errors.New("no hypotheses")
			}
			return nil
		},
		func() hypothesesResponse {
			var out hypothesesResponse
			for _, gap := range s.Gaps {
				out.Hypotheses = append(out.Hypotheses, Hypothesis{
					Statement: fmt.Sprintf("A targeted intervention addressing this gap will measurably change outcomes: %s", gap),
					Rationale: "Derived directly from the identified gap.",
					Gap:       gap,
				})
			}
			return out
		},
	)
	s.Candidates = o.Value.Hypotheses
	s.Stages = append(s.Stages, report("generate", o))
	return s
}

func (h *HypothesisGenerator) rank(ctx context.Context, s HypothesisResult) HypothesisResult {
	statements := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		statements[i] = c.Statement
	}
	o := call(ctx, h.client, "rank", "Scores of research hypotheses",
		fmt.Sprintf(ai.RankHypothesesPrompt, bullets(statements)),
		func(r *rankResponse) error {
			if len(r.Hypotheses) != len(s.Candidates) {
				return fmt.Errorf("expected %d scored hypotheses, got %d", len(s.Candidates), len(r.Hypotheses))
			}
			for _, sh := range r.Hypotheses {
				if !inUnit(sh.Novelty) || !inUnit(sh.Feasibility) || !inUnit(sh.Evidence) {
					return fmt.Errorf("score out of range for %q", sh.Statement)
				}
			}
			return nil
		},
		func() rankResponse {
			out := rankResponse{Hypotheses: make([]scoredHypothesis, len(s.Candidates))}
			for i, c := range s.Candidates {
				out.Hypotheses[i] = scoredHypothesis{Statement: c.Statement, Novelty: 0.5, Feasibility: 0.5, Evidence: 0.5}
			}
			return out
		},
	)

	byStatement := make(map[string]scoredHypothesis, len(o.Value.Hypotheses))
	for _, sh := range o.Value.Hypotheses {
		byStatement[normalizeStatement(sh.Statement)] = sh
	}
	ranked := make([]RankedHypothesis, len(s.Candidates))
	for i, c := range s.Candidates {
		sh, ok := byStatement[normalizeStatement(c.Statement)]
		if !ok {
			sh = o.Value.Hypotheses[i]
		}
		ranked[i] = RankedHypothesis{
			Hypothesis:  c,
			Novelty:     sh.Novelty,
			Feasibility: sh.Feasibility,
			Evidence:    sh.Evidence,
			Score:       (sh.Novelty + sh.Feasibility + sh.Evidence) / 3,
		}
	}
	slices.SortStableFunc(ranked, func(a, b RankedHypothesis) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	s.Ranked = ranked
	s.Stages = append(s.Stages, report("rank", o))
	return s
}

func normalizeStatement(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func formatEvidence(sources []Evidence) string {
	if len(sources) == 0 {
		return "(no excerpts available)"
	}
	var sb strings.Builder
	for _, e := range sources {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", e.PaperID, e.Title, e.Snippet)
	}
	return sb.String()
}

func bullets(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return "- " + strings.Join(items, "\n- ")
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
