// Package query answers research questions over the indexed literature and
// runs the hypothesis and mission risk services on retrieved evidence.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/bio-nexus/backend/pkg/agent"
	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/graphstore"
	"github.com/bio-nexus/backend/pkg/grounding"
	"github.com/bio-nexus/backend/pkg/retrieval"
	"github.com/bio-nexus/backend/pkg/store"
)

const (
	maxSources   = 10
	historyTurns = 10
)

// ErrGraphUnavailable is returned by graph insights when no graph store is
// configured.
var ErrGraphUnavailable = errors.New("graph store not configured")

type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (retrieval.Response, error)
}

type GraphInsights interface {
	RelatedTopics(ctx context.Context, terms []string, limit int) ([]string, error)
	Stats(ctx context.Context) (graphstore.Stats, error)
}

type Store interface {
	store.SessionStore
	store.RiskStore
	ListPapers(ctx context.Context, limit, offset int) ([]common.Paper, int, error)
}

type queryOptions struct {
	SystemPrompts []string
	Model         string
}

// QueryOption configures how answers are generated.
type QueryOption func(*queryOptions)

// WithSystemPrompts appends system prompts to every answer request.
func WithSystemPrompts(prompts ...string) QueryOption {
	return func(o *queryOptions) {
		o.SystemPrompts = append(o.SystemPrompts, prompts...)
	}
}

// WithModel overrides the chat model used for answers.
func WithModel(model string) QueryOption {
	return func(o *queryOptions) {
		o.Model = model
	}
}

// Service combines retrieval, the reasoning provider and the agent
// pipelines. Reasoning and Graph may be nil.
type Service struct {
	store      Store
	retriever  Retriever
	reasoning  ai.ReasoningClient
	verifier   *grounding.Verifier
	hypotheses *agent.HypothesisGenerator
	risk       *agent.RiskAnalyzer
	graph      GraphInsights
	options    queryOptions
}

type NewServiceParams struct {
	Store        Store
	Retriever    Retriever
	Reasoning    ai.ReasoningClient
	Graph        GraphInsights
	Threshold    float64
	StageTimeout time.Duration
}

func NewService(params NewServiceParams, opts ...QueryOption) *Service {
	s := &Service{
		store:      params.Store,
		retriever:  params.Retriever,
		reasoning:  params.Reasoning,
		verifier:   grounding.NewVerifier(params.Threshold),
		hypotheses: agent.NewHypothesisGenerator(params.Reasoning, params.StageTimeout),
		risk:       agent.NewRiskAnalyzer(params.Reasoning, params.StageTimeout),
		graph:      params.Graph,
	}
	for _, o := range opts {
		o(&s.options)
	}
	return s
}

func (s *Service) generateOptions(systemPrompt string) []ai.GenerateOption {
	prompts := append([]string{systemPrompt}, s.options.SystemPrompts...)
	opts := []ai.GenerateOption{ai.WithSystemPrompts(prompts...)}
	if s.options.Model != "" {
		opts = append(opts, ai.WithModel(s.options.Model))
	}
	return opts
}
