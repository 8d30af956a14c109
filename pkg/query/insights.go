package query

import (
	"context"
	"fmt"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/graphstore"
	"github.com/bio-nexus/backend/pkg/store"
)

var starterQuestions = []string{
	"How does microgravity affect bone density?",
	"What are the main health risks of a long-duration Mars mission?",
	"Which countermeasures reduce muscle atrophy in spaceflight?",
	"How does space radiation affect the immune system?",
	"What is known about plant growth in space habitats?",
}

const maxSuggestions = 8

// Suggestions returns starter questions, led by questions about the most
// common keywords of recently indexed papers.
func (s *Service) Suggestions(ctx context.Context) ([]string, error) {
	papers, _, err := s.store.ListPapers(ctx, 20, 0)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	var order []string
	for _, p := range papers {
		for _, kw := range p.Keywords {
			if counts[kw] == 0 {
				order = append(order, kw)
			}
			counts[kw]++
		}
	}

	var out []string
	for _, kw := range topByCount(order, counts, 3) {
		out = append(out, fmt.Sprintf("What does the literature say about %s?", kw))
	}
	out = append(out, starterQuestions...)
	out = store.DedupeStrings(out)
	return out[:min(maxSuggestions, len(out))], nil
}

// RelatedTopics lists graph entities adjacent to the query's concepts.
func (s *Service) RelatedTopics(ctx context.Context, query string, limit int) ([]string, error) {
	if s.graph == nil {
		return nil, ErrGraphUnavailable
	}
	terms := util.QueryTerms(query)
	if len(terms) == 0 {
		return []string{}, nil
	}
	return s.graph.RelatedTopics(ctx, terms, store.ClampLimit(limit, 10, 50))
}

func (s *Service) GraphStats(ctx context.Context) (graphstore.Stats, error) {
	if s.graph == nil {
		return graphstore.Stats{}, ErrGraphUnavailable
	}
	return s.graph.Stats(ctx)
}

// topByCount returns up to n keys with the highest count, keeping first
// appearance order among equal counts.
func topByCount(order []string, counts map[string]int, n int) []string {
	out := make([]string, 0, n)
	used := map[string]bool{}
	for len(out) < n {
		best := ""
		for _, k := range order {
			if used[k] {
				continue
			}
			if best == "" || counts[k] > counts[best] {
				best = k
			}
		}
		if best == "" {
			break
		}
		used[best] = true
		out = append(out, best)
	}
	return out
}
