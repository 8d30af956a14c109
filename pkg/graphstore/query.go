package graphstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/bio-nexus/backend/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// PaperHit is a paper reached from query terms through the graph.
type PaperHit struct {
	PaperID         string
	Title           string
	PublicationYear int
	Connections    int
	MeanConfidence float64
	Matched        []string
}

// Score combines connection count and mean edge confidence into [0,1].
func (h PaperHit) Score() float64 {
	if h.Connections <= 0 {
		return 0
	}
	reach := 1 - 1/float64(h.Connections+1)
	return 0.5*reach + 0.5*h.MeanConfidence
}

// Stats summarizes the graph.
type Stats struct {
	TotalNodes         int64            `json:"total_nodes"`
	TotalRelationships int64            `json:"total_relationships"`
	Nodes              map[string]int64 `json:"nodes"`
	EntityTypes        map[string]int64 `json:"entity_types"`
	Relationships      map[string]int64 `json:"relationships"`
}

const searchPapersCypher = `
UNWIND $terms AS term
MATCH (n)
WHERE (n:Entity OR n:Keyword) AND toLower(n.name) CONTAINS term
MATCH (p:Paper)-[r:MENTIONS|HAS_KEYWORD]->(n)
WHERE ($year_from IS NULL OR p.year >= $year_from)
  AND ($year_to IS NULL OR p.year <= $year_to)
  AND ($subject = ''
    OR toLower(coalesce(p.title, '')) CONTAINS toLower($subject)
    OR EXISTS { MATCH (p)-[:HAS_KEYWORD]->(k:Keyword) WHERE k.name = toLower($subject) })
WITH p, collect(DISTINCT n.name) AS matched, count(DISTINCT n) AS connections, avg(coalesce(r.confidence, 0.5)) AS confidence
RETURN p.id AS paper_id, coalesce(p.title, '') AS title, coalesce(p.year, 0) AS year, connections, confidence, matched
ORDER BY connections DESC, confidence DESC, paper_id ASC
LIMIT $limit
`

// SearchPapers finds papers connected to entities or keywords whose name
// contains one of terms and that pass filters.
func (c *Client) SearchPapers(ctx context.Context, terms []string, filters store.Filters, limit int) ([]PaperHit, error) {
	terms = lowerTerms(terms)
	if len(terms) == 0 {
		return nil, nil
	}
	records, err := c.read(ctx, searchPapersCypher, searchParams(terms, filters, limit))
	if err != nil {
		return nil, fmt.Errorf("graph search: %w", err)
	}

	out := make([]PaperHit, 0, len(records))
	for _, rec := range records {
		h := PaperHit{
			PaperID:         recordString(rec, "paper_id"),
			Title:           recordString(rec, "title"),
			PublicationYear: int(recordInt(rec, "year")),
			Connections:     int(recordInt(rec, "connections")),
			MeanConfidence:  recordFloat(rec, "confidence"),
		}
		if raw, ok := rec.Get("matched"); ok {
			if list, ok := raw.([]any); ok {
				for _, v := range list {
					if s, ok := v.(string); ok {
						h.Matched = append(h.Matched, s)
					}
				}
			}
		}
		out = append(out, h)
	}
	return out, nil
}

const relatedTopicsCypher = `
UNWIND $terms AS term
MATCH (n:Entity)
WHERE toLower(n.name) CONTAINS term
MATCH (n)<-[:MENTIONS]-(:Paper)-[:MENTIONS]->(m:Entity)
WHERE m <> n AND NOT toLower(m.name) IN $terms
RETURN m.name AS name, count(*) AS weight
ORDER BY weight DESC, name ASC
LIMIT $limit
`

// RelatedTopics returns entity names that co-occur with entities matching
// terms, most frequent first.
func (c *Client) RelatedTopics(ctx context.Context, terms []string, limit int) ([]string, error) {
	terms = lowerTerms(terms)
	if len(terms) == 0 {
		return nil, nil
	}
	records, err := c.read(ctx, relatedTopicsCypher, map[string]any{
		"terms": toAny(terms),
		"limit": int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("graph related topics: %w", err)
	}
	out := make([]string, 0, len(records))
	for _, rec := range records {
		if name := recordString(rec, "name"); name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

const (
	nodeCountsCypher = `
MATCH (n)
RETURN labels(n)[0] AS key, count(*) AS total
`
	entityTypeCountsCypher = `
MATCH (e:Entity)
RETURN e.type AS key, count(*) AS total
`
	relationshipCountsCypher = `
MATCH ()-[r]->()
RETURN type(r) AS key, count(*) AS total
`
)

// Stats counts nodes by label, entities by type and relationships by type.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	st := Stats{}
	var err error
	if st.Nodes, err = c.counts(ctx, nodeCountsCypher); err != nil {
		return Stats{}, err
	}
	if st.EntityTypes, err = c.counts(ctx, entityTypeCountsCypher); err != nil {
		return Stats{}, err
	}
	if st.Relationships, err = c.counts(ctx, relationshipCountsCypher); err != nil {
		return Stats{}, err
	}
	for _, v := range st.Nodes {
		st.TotalNodes += v
	}
	for _, v := range st.Relationships {
		st.TotalRelationships += v
	}
	return st, nil
}

func (c *Client) counts(ctx context.Context, cypher string) (map[string]int64, error) {
	records, err := c.read(ctx, cypher, nil)
	if err != nil {
		return nil, fmt.Errorf("graph stats: %w", err)
	}
	out := map[string]int64{}
	for _, rec := range records {
		key := recordString(rec, "key")
		if key == "" {
			key = "unknown"
		}
		out[key] += recordInt(rec, "total")
	}
	return out, nil
}

func lowerTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := map[string]struct{}{}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// searchParams maps filters to Cypher parameters. Unset years are null.
func searchParams(terms []string, filters store.Filters, limit int) map[string]any {
	params := map[string]any{
		"terms":     toAny(terms),
		"limit":     int64(limit),
		"year_from": nil,
		"year_to":   nil,
		"subject":   strings.TrimSpace(filters.Subject),
	}
	if filters.YearFrom != 0 {
		params["year_from"] = int64(filters.YearFrom)
	}
	if filters.YearTo != 0 {
		params["year_to"] = int64(filters.YearTo)
	}
	return params
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func recordInt(rec *neo4j.Record, key string) int64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func recordFloat(rec *neo4j.Record, key string) float64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
