package retrieval

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/bio-nexus/backend/pkg/agent"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/graphstore"
	"github.com/bio-nexus/backend/pkg/store"
	"github.com/bio-nexus/backend/pkg/store/memory"
)

type fakeGraph struct {
	hits    []graphstore.PaperHit
	err     error
	block   bool
	terms   []string
	filters store.Filters
}

func (g *fakeGraph) SearchPapers(ctx context.Context, terms []string, filters store.Filters, limit int) ([]graphstore.PaperHit, error) {
	g.terms = terms
	g.filters = filters
	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return g.hits, g.err
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	ctx := context.Background()

	papers := []struct {
		paper common.Paper
		text  string
	}{
		{
			paper: common.Paper{ID: "bone", Title: "Skeletal adaptation in orbit", Abstract: "Microgravity reduces bone density in mice.", File: common.FileMetadata{ContentHash: "h1"}},
			text:  "Microgravity exposure reduced trabecular bone density by twelve percent.",
		},
		{
			paper: common.Paper{ID: "plants", Title: "LED lighting for crops", Abstract: "Lettuce growth under red and blue light.", File: common.FileMetadata{ContentHash: "h2"}},
			text:  "Lettuce grown under LED arrays produced more biomass.",
		},
	}
	for i, p := range papers {
		chunk := common.Chunk{ID: p.paper.ID + "-c0", PaperID: p.paper.ID, Content: p.text, SectionType: common.SectionAbstract}
		job := common.GraphSyncJob{ID: "job" + string(rune('0'+i)), PaperID: p.paper.ID}
		if err := s.CommitPaper(ctx, p.paper, []common.Chunk{chunk}, job); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	return s
}

func TestRetrieve_LexicalRanksMatchingPaper(t *testing.T) {
	r := NewRetriever(NewRetrieverParams{Search: seededStore(t)})

	res, err := r.Retrieve(context.Background(), Request{Query: "microgravity bone density", Strategy: agent.StrategyLexical})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(res.Results) == 0 {
		t.Fatal("expected at least one result")
	}
	top := res.Results[0]
	if top.PaperID != "bone" || top.Score <= 0 || top.Method != MethodLexical {
		t.Fatalf("expected bone paper first with positive lexical score, got %+v", top)
	}
	for _, r := range res.Results[1:] {
		if r.PaperID == "plants" && r.Score >= top.Score {
			t.Fatalf("expected unrelated paper ranked below, got %+v", r)
		}
	}
	if !slices.Equal(res.Metadata.Methods, []Method{MethodLexical}) {
		t.Fatalf("expected lexical only, got %v", res.Metadata.Methods)
	}
}

func TestRetrieve_SkipsUnavailableMethods(t *testing.T) {
	graph := &fakeGraph{err: errors.New("neo4j unreachable")}
	r := NewRetriever(NewRetrieverParams{Search: seededStore(t), Graph: graph})

	res, err := r.Retrieve(context.Background(), Request{Query: "microgravity bone density", Strategy: agent.StrategyHybrid})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !slices.Equal(res.Metadata.Methods, []Method{MethodLexical}) {
		t.Fatalf("expected only lexical to contribute, got %v", res.Metadata.Methods)
	}
	if _, ok := res.Metadata.Failed[MethodVector]; !ok {
		t.Fatalf("expected vector failure recorded, got %v", res.Metadata.Failed)
	}
	if res.Metadata.Failed[MethodGraph] != "neo4j unreachable" {
		t.Fatalf("expected graph failure reason, got %v", res.Metadata.Failed)
	}
	if len(res.Results) == 0 || res.Results[0].PaperID != "bone" {
		t.Fatalf("expected lexical results, got %+v", res.Results)
	}
}

func TestRetrieve_BranchTimeout(t *testing.T) {
	graph := &fakeGraph{block: true}
	r := NewRetriever(NewRetrieverParams{Search: seededStore(t), Graph: graph, BranchTimeout: 20 * time.Millisecond})

	start := time.Now()
	res, err := r.Retrieve(context.Background(), Request{Query: "bone density", Strategy: agent.StrategyGraph})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("expected a stuck branch to be cut off")
	}
	if _, ok := res.Metadata.Failed[MethodGraph]; !ok {
		t.Fatalf("expected graph timeout recorded, got %v", res.Metadata.Failed)
	}
	if !slices.Contains(res.Metadata.Methods, MethodLexical) {
		t.Fatalf("expected lexical to still contribute, got %v", res.Metadata.Methods)
	}
}

func TestRetrieve_GraphUsesEntities(t *testing.T) {
	graph := &fakeGraph{hits: []graphstore.PaperHit{{PaperID: "bone", Title: "Skeletal adaptation in orbit", Connections: 3, MeanConfidence: 0.8, Matched: []string{"microgravity"}}}}
	r := NewRetriever(NewRetrieverParams{Search: seededStore(t), Graph: graph})

	res, err := r.Retrieve(context.Background(), Request{
		Query:    "what happens to bones",
		Strategy: agent.StrategyGraph,
		Entities: []common.GraphEntity{{Name: "microgravity"}, {Name: "microgravity"}, {Name: "bone"}},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !slices.Equal(graph.terms, []string{"microgravity", "bone"}) {
		t.Fatalf("expected deduplicated entity terms, got %v", graph.terms)
	}
	found := false
	for _, r := range res.Results {
		if r.Method == MethodGraph && r.PaperID == "bone" && r.Score > 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected graph hit for bone, got %+v", res.Results)
	}
}

func TestRetrieve_ClassifierFallbackRoutesHybrid(t *testing.T) {
	r := NewRetriever(NewRetrieverParams{
		Search:     seededStore(t),
		Classifier: agent.NewClassifier(nil, time.Second),
	})

	res, err := r.Retrieve(context.Background(), Request{Query: "microgravity bone density"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Metadata.Strategy != agent.StrategyHybrid {
		t.Fatalf("expected hybrid, got %s", res.Metadata.Strategy)
	}
	if !res.Metadata.ClassificationFallback || res.Metadata.Classification == nil {
		t.Fatalf("expected fallback classification recorded, got %+v", res.Metadata)
	}
	want := []State{StateReceived, StateClassified, StateRouted, StateExecuting, StateAggregated, StateReturned}
	if !slices.Equal(res.Metadata.Trace, want) {
		t.Fatalf("expected trace %v, got %v", want, res.Metadata.Trace)
	}
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	r := NewRetriever(NewRetrieverParams{Search: memory.New()})
	if _, err := r.Retrieve(context.Background(), Request{Query: "  "}); !common.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestMerge(t *testing.T) {
	in := []Result{
		{PaperID: "b", Method: MethodLexical, Score: 0.4},
		{PaperID: "a", Method: MethodLexical, Score: 0.4},
		{PaperID: "a", Method: MethodLexical, Score: 0.9},
		{PaperID: "a", Method: MethodVector, Score: 0.7},
		{PaperID: "c", Method: MethodGraph, Score: 0.1},
	}

	out := Merge(in, 10)
	if len(out) != 4 {
		t.Fatalf("expected 4 results after dedupe, got %d", len(out))
	}
	want := []struct {
		id string
		m  Method
	}{{"a", MethodLexical}, {"a", MethodVector}, {"b", MethodLexical}, {"c", MethodGraph}}
	for i, w := range want {
		if out[i].PaperID != w.id || out[i].Method != w.m {
			t.Fatalf("expected %s/%s at %d, got %s/%s", w.id, w.m, i, out[i].PaperID, out[i].Method)
		}
	}
	if out[0].Score != 0.9 {
		t.Fatalf("expected best score kept, got %v", out[0].Score)
	}
	for i := 1; i < len(out); i++ {
		if out[i].Score > out[i-1].Score {
			t.Fatalf("expected non-increasing scores, got %v", out)
		}
	}

	if got := Merge(in, 2); len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
}

func TestMethods(t *testing.T) {
	tests := []struct {
		strategy agent.Strategy
		want     []Method
	}{
		{agent.StrategyHybrid, []Method{MethodLexical, MethodVector, MethodGraph}},
		{agent.StrategyVector, []Method{MethodVector, MethodLexical}},
		{agent.StrategyGraph, []Method{MethodGraph, MethodLexical}},
		{agent.StrategyLexical, []Method{MethodLexical}},
		{"unknown", []Method{MethodLexical, MethodVector, MethodGraph}},
	}
	for _, tt := range tests {
		if got := Methods(tt.strategy); !slices.Equal(got, tt.want) {
			t.Fatalf("expected %v for %s, got %v", tt.want, tt.strategy, got)
		}
	}
}

func TestRetrieve_GraphHonoursFilters(t *testing.T) {
	graph := &fakeGraph{hits: []graphstore.PaperHit{
		{PaperID: "old", Title: "Early shuttle bone study", PublicationYear: 2001, Connections: 2, MeanConfidence: 0.9, Matched: []string{"bone"}},
		{PaperID: "bone", Title: "Skeletal adaptation in orbit", PublicationYear: 2022, Connections: 1, MeanConfidence: 0.7, Matched: []string{"bone"}},
	}}
	r := NewRetriever(NewRetrieverParams{Search: seededStore(t), Graph: graph})

	filters := store.Filters{YearFrom: 2020, Subject: "bone"}
	res, err := r.Retrieve(context.Background(), Request{Query: "bone density", Strategy: agent.StrategyHybrid, Filters: filters})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if graph.filters != filters {
		t.Fatalf("expected filters passed to graph, got %+v", graph.filters)
	}
	found := false
	for _, r := range res.Results {
		if r.PaperID == "old" {
			t.Fatalf("expected 2001 paper filtered out, got %+v", r)
		}
		if r.PaperID == "bone" && r.Method == MethodGraph {
			found = true
			if r.PublicationYear != 2022 {
				t.Fatalf("expected year 2022 on graph hit, got %d", r.PublicationYear)
			}
		}
	}
	if !found {
		t.Fatalf("expected graph hit for bone, got %+v", res.Results)
	}
}
