// Package retrieval fans a query out over lexical, vector and graph search
// and merges the per-method hits into one ranked list.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/agent"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/graphstore"
	"github.com/bio-nexus/backend/pkg/logger"
	"github.com/bio-nexus/backend/pkg/store"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultBranchTimeout = 5 * time.Second
	MaxLimit             = 50
)

type Method string

const (
	MethodLexical Method = "lexical"
	MethodVector  Method = "vector"
	MethodGraph   Method = "graph"
)

// State is a step of a retrieval request.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateClassified State = "CLASSIFIED"
	StateRouted     State = "ROUTED"
	StateExecuting  State = "EXECUTING"
	StateAggregated State = "AGGREGATED"
	StateReturned   State = "RETURNED"
)

var routes = map[agent.Strategy][]Method{
	agent.StrategyHybrid:  {MethodLexical, MethodVector, MethodGraph},
	agent.StrategyVector:  {MethodVector, MethodLexical},
	agent.StrategyGraph:   {MethodGraph, MethodLexical},
	agent.StrategyLexical: {MethodLexical},
}

// Methods returns the search methods a strategy runs. Unknown strategies
// run the hybrid route.
func Methods(s agent.Strategy) []Method {
	if m, ok := routes[s]; ok {
		return slices.Clone(m)
	}
	return slices.Clone(routes[agent.StrategyHybrid])
}

var errUnavailable = errors.New("not configured")

type Classifier interface {
	Classify(ctx context.Context, query string) agent.Classification
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type GraphSearcher interface {
	SearchPapers(ctx context.Context, terms []string, filters store.Filters, limit int) ([]graphstore.PaperHit, error)
}

// Request is one retrieval call. A non-empty Strategy skips
// classification.
type Request struct {
	Query    string               `json:"query" validate:"required"`
	Entities []common.GraphEntity `json:"entities,omitempty"`
	Filters  store.Filters        `json:"filters"`
	Strategy agent.Strategy       `json:"strategy,omitempty"`
	Limit    int                  `json:"limit,omitempty"`
}

// Result is one paper surfaced by one method.
type Result struct {
	PaperID         string             `json:"paper_id"`
	ChunkID         string             `json:"chunk_id,omitempty"`
	Title           string             `json:"title"`
	Snippet         string             `json:"snippet"`
	SectionType     common.SectionType `json:"section_type,omitempty"`
	PublicationYear int                `json:"publication_year,omitempty"`
	Score           float64            `json:"score"`
	Method          Method             `json:"method"`
}

type Metadata struct {
	Strategy               agent.Strategy        `json:"strategy"`
	Methods                []Method              `json:"methods"`
	Failed                 map[Method]string     `json:"failed,omitempty"`
	Classification         *agent.Classification `json:"classification,omitempty"`
	ClassificationFallback bool                  `json:"classification_fallback"`
	Trace                  []State               `json:"trace"`
	DurationMs             int64                 `json:"duration_ms"`
}

type Response struct {
	Query    string   `json:"query"`
	Results  []Result `json:"results"`
	Metadata Metadata `json:"metadata"`
}

// Retriever runs hybrid retrieval. Embedder, Graph and Classifier are
// optional; a missing dependency disables the method that needs it.
type Retriever struct {
	search        store.SearchStore
	embedder      QueryEmbedder
	graph         GraphSearcher
	classifier    Classifier
	branchTimeout time.Duration
	limit         int
}

type NewRetrieverParams struct {
	Search        store.SearchStore
	Embedder      QueryEmbedder
	Graph         GraphSearcher
	Classifier    Classifier
	BranchTimeout time.Duration
	Limit         int
}

func NewRetriever(params NewRetrieverParams) *Retriever {
	if params.BranchTimeout <= 0 {
		params.BranchTimeout = DefaultBranchTimeout
	}
	return &Retriever{
		search:        params.Search,
		embedder:      params.Embedder,
		graph:         params.Graph,
		classifier:    params.Classifier,
		branchTimeout: params.BranchTimeout,
		limit:         store.ClampLimit(params.Limit, MaxLimit, MaxLimit),
	}
}

// Retrieve classifies, routes and executes a query. It only fails on an
// empty query; failing methods are recorded in the metadata.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Response{}, common.NewValidationError("query", "must not be empty")
	}

	meta := Metadata{Trace: []State{StateReceived}}

	strategy := req.Strategy
	entities := req.Entities
	if strategy == "" {
		if r.classifier != nil {
			c := r.classifier.Classify(ctx, query)
			meta.Classification = &c
			meta.ClassificationFallback = c.Degraded()
			strategy = c.Strategy
			if len(entities) == 0 {
				entities = c.Entities
			}
		} else {
			meta.ClassificationFallback = true
		}
	}
	meta.Trace = append(meta.Trace, StateClassified)
	if !strategy.Valid() {
		logger.Warn("[Retrieval][Route] Unknown strategy, using hybrid", "strategy", strategy)
		strategy = agent.StrategyHybrid
	}
	meta.Strategy = strategy
	methods := Methods(strategy)
	meta.Trace = append(meta.Trace, StateRouted)

	limit := store.ClampLimit(req.Limit, r.limit, MaxLimit)

	meta.Trace = append(meta.Trace, StateExecuting)
	hits := make([][]Result, len(methods))
	errs := make([]error, len(methods))

	g, gCtx := errgroup.WithContext(ctx)
	for i, m := range methods {
		g.Go(func() error {
			bCtx, cancel := context.WithTimeout(gCtx, r.branchTimeout)
			defer cancel()
			hits[i], errs[i] = r.run(bCtx, m, query, entities, req.Filters, limit)
			return nil
		})
	}
	_ = g.Wait()

	var all []Result
	for i, m := range methods {
		if errs[i] != nil {
			if meta.Failed == nil {
				meta.Failed = map[Method]string{}
			}
			meta.Failed[m] = errs[i].Error()
			logger.Warn("[Retrieval][Execute] Method failed", "method", m, "err", errs[i])
			continue
		}
		meta.Methods = append(meta.Methods, m)
		all = append(all, hits[i]...)
	}

	results := Merge(all, limit)
	meta.Trace = append(meta.Trace, StateAggregated)

	meta.Trace = append(meta.Trace, StateReturned)
	meta.DurationMs = time.Since(start).Milliseconds()
	return Response{Query: query, Results: results, Metadata: meta}, nil
}

func (r *Retriever) run(
	ctx context.Context,
	m Method,
	query string,
	entities []common.GraphEntity,
	filters store.Filters,
	limit int,
) ([]Result, error) {
	switch m {
	case MethodLexical:
		if r.search == nil {
			return nil, errUnavailable
		}
		rows, err := r.search.LexicalSearch(ctx, query, filters, limit)
		if err != nil {
			return nil, err
		}
		return fromHits(rows, m), nil

	case MethodVector:
		if r.search == nil || r.embedder == nil {
			return nil, errUnavailable
		}
		vec, err := r.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		rows, err := r.search.VectorSearch(ctx, vec, filters, limit)
		if err != nil {
			return nil, err
		}
		return fromHits(rows, m), nil

	case MethodGraph:
		if r.graph == nil {
			return nil, errUnavailable
		}
		terms := graphTerms(query, entities)
		if len(terms) == 0 {
			return nil, nil
		}
		rows, err := r.graph.SearchPapers(ctx, terms, filters, limit)
		if err != nil {
			return nil, err
		}
		out := make([]Result, 0, len(rows))
		for _, h := range rows {
			if !inYearRange(h.PublicationYear, filters) {
				continue
			}
			out = append(out, Result{
				PaperID:         h.PaperID,
				Title:           h.Title,
				Snippet:         "Connected concepts: " + strings.Join(h.Matched, ", "),
				PublicationYear: h.PublicationYear,
				Score:           h.Score(),
				Method:          m,
			})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown method %q", m)
}

// inYearRange rejects a known year outside the filter bounds. Unknown
// years pass.
func inYearRange(year int, f store.Filters) bool {
	if year == 0 {
		return true
	}
	if f.YearFrom != 0 && year < f.YearFrom {
		return false
	}
	return f.YearTo == 0 || year <= f.YearTo
}

// graphTerms prefers the extracted entities and falls back to the query
// terms.
func graphTerms(query string, entities []common.GraphEntity) []string {
	var terms []string
	for _, e := range entities {
		if name := strings.TrimSpace(e.Name); name != "" {
			terms = append(terms, name)
		}
	}
	if len(terms) > 0 {
		return store.DedupeStrings(terms)
	}
	return util.QueryTerms(query)
}

func fromHits(rows []store.Hit, m Method) []Result {
	out := make([]Result, 0, len(rows))
	for _, h := range rows {
		out = append(out, Result{
			PaperID:         h.PaperID,
			ChunkID:         h.ChunkID,
			Title:           h.Title,
			Snippet:         h.Snippet,
			SectionType:     h.SectionType,
			PublicationYear: h.PublicationYear,
			Score:           h.Score,
			Method:          m,
		})
	}
	return out
}

// Merge keeps the best result per (paper, method), orders by descending
// score with paper id and method as tie-breaks, and truncates to limit.
func Merge(results []Result, limit int) []Result {
	type key struct {
		paper  string
		method Method
	}
	best := make(map[key]int, len(results))
	out := make([]Result, 0, len(results))
	for _, res := range results {
		k := key{res.PaperID, res.Method}
		if i, ok := best[k]; ok {
			if res.Score > out[i].Score {
				out[i] = res
			}
			continue
		}
		best[k] = len(out)
		out = append(out, res)
	}

	slices.SortStableFunc(out, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		if c := strings.Compare(a.PaperID, b.PaperID); c != 0 {
			return c
		}
		return strings.Compare(string(a.Method), string(b.Method))
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
