package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/bio-nexus/backend/pkg/extract"
	"github.com/bio-nexus/backend/pkg/logger"
)

const (
	upsertPaperCypher = `
MERGE (p:Paper {id: $paper_id})
SET p += $props, p.synced_at = $synced_at
`
	upsertAuthorsCypher = `
MATCH (p:Paper {id: $paper_id})
UNWIND $authors AS name
MERGE (a:Author {name: name})
MERGE (a)-[:AUTHORED]->(p)
`
	upsertKeywordsCypher = `
MATCH (p:Paper {id: $paper_id})
UNWIND $keywords AS kw
MERGE (k:Keyword {name: kw})
MERGE (p)-[:HAS_KEYWORD]->(k)
`
	upsertSectionsCypher = `
MATCH (p:Paper {id: $paper_id})
UNWIND $sections AS s
MERGE (sec:Section {id: s.id})
SET sec.type = s.type, sec.heading = s.heading, sec.start = s.start, sec.end = s.end
MERGE (p)-[:HAS_SECTION]->(sec)
`
	upsertEntitiesCypher = `
MATCH (p:Paper {id: $paper_id})
UNWIND $entities AS e
MERGE (n:Entity {name: e.name, type: e.type})
ON CREATE SET n.description = e.description, n.confidence = e.confidence
ON MATCH SET n.confidence = CASE WHEN e.confidence > n.confidence THEN e.confidence ELSE n.confidence END,
             n.description = CASE WHEN coalesce(n.description, '') = '' THEN e.description ELSE n.description END
MERGE (p)-[m:MENTIONS]->(n)
SET m.confidence = e.confidence
`
	upsertRelationshipsCypher = `
UNWIND $rels AS r
MATCH (s:Entity {name: r.source_name, type: r.source_type})
MATCH (t:Entity {name: r.target_name, type: r.target_type})
MERGE (s)-[x:%s {paper_id: r.paper_id}]->(t)
SET x.confidence = r.confidence, x.evidence = r.evidence
`
	upsertCitationsCypher = `
UNWIND $cites AS c
MATCH (a:Paper {id: c.from})
MATCH (b:Paper {id: c.to})
MERGE (a)-[x:CITES]->(b)
SET x.confidence = c.confidence, x.inferred = true, x.evidence = c.evidence
`
)

// SyncPaper MERGE-upserts a projection. Each statement group runs in its own
// write transaction, and re-applying the same projection changes nothing.
func (c *Client) SyncPaper(ctx context.Context, p Projection) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	id := p.Paper.ID
	steps := []struct {
		name   string
		cypher string
		params map[string]any
		skip   bool
	}{
		{"paper", upsertPaperCypher, map[string]any{
			"paper_id":  id,
			"props":     paperParams(p.Paper),
			"synced_at": time.Now().UTC().Format(time.RFC3339Nano),
		}, false},
		{"authors", upsertAuthorsCypher, map[string]any{"paper_id": id, "authors": authorNames(p.Paper)}, len(p.Paper.Authors) == 0},
		{"keywords", upsertKeywordsCypher, map[string]any{"paper_id": id, "keywords": keywordNames(p.Paper)}, len(p.Paper.Keywords) == 0},
		{"sections", upsertSectionsCypher, map[string]any{"paper_id": id, "sections": sectionParams(id, p.Sections)}, len(p.Sections) == 0},
		{"entities", upsertEntitiesCypher, map[string]any{"paper_id": id, "entities": entityParams(p.Entities)}, len(p.Entities) == 0},
	}

	for _, s := range steps {
		if s.skip {
			continue
		}
		if err := c.write(ctx, s.cypher, s.params); err != nil {
			return fmt.Errorf("graph sync %s: %w", s.name, err)
		}
	}

	groups := relationshipGroups(p.Relationships)
	for _, label := range extract.Labels {
		group := groups[label]
		if len(group) == 0 {
			continue
		}
		cypher := fmt.Sprintf(upsertRelationshipsCypher, label)
		if err := c.write(ctx, cypher, map[string]any{"rels": group}); err != nil {
			return fmt.Errorf("graph sync relationships %s: %w", label, err)
		}
	}

	if len(p.Citations) > 0 {
		if err := c.write(ctx, upsertCitationsCypher, map[string]any{"cites": citationParams(p.Citations)}); err != nil {
			return fmt.Errorf("graph sync citations: %w", err)
		}
	}

	logger.Debug("[Graph][Sync] Projected paper", "paper_id", id,
		"entities", len(p.Entities), "relationships", len(p.Relationships), "citations", len(p.Citations))
	return nil
}

const (
	deleteSectionsCypher = `
MATCH (p:Paper {id: $id})-[:HAS_SECTION]->(s:Section)
DETACH DELETE s
`
	deleteEntityEdgesCypher = `
MATCH (:Entity)-[r {paper_id: $id}]->(:Entity)
DELETE r
`
	deletePaperCypher = `
MATCH (p:Paper {id: $id})
DETACH DELETE p
`
	deleteOrphansCypher = `
MATCH (n)
WHERE (n:Author OR n:Keyword OR n:Entity) AND NOT (n)--()
DELETE n
`
)

// DeletePaper removes the paper node, its sections, the entity edges it
// contributed and any nodes left without relationships.
func (c *Client) DeletePaper(ctx context.Context, paperID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	for _, q := range []string{deleteSectionsCypher, deleteEntityEdgesCypher, deletePaperCypher, deleteOrphansCypher} {
		if err := c.write(ctx, q, map[string]any{"id": paperID}); err != nil {
			return fmt.Errorf("graph delete paper: %w", err)
		}
	}
	return nil
}
