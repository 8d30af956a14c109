package pgx

import (
	"context"

	"github.com/bio-nexus/backend/internal/db"
	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/store"

	"github.com/pgvector/pgvector-go"
)

const snippetLength = 300

// LexicalSearch ranks papers by ts_rank_cd over chunk and paper text. Any
// query term may match.
func (s *Store) LexicalSearch(ctx context.Context, query string, filters store.Filters, limit int) ([]store.Hit, error) {
	tsq := store.OrQuery(query)
	if tsq == "" {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.LexicalSearch(ctx, db.LexicalSearchParams{
		Query:    tsq,
		YearFrom: int4(filters.YearFrom),
		YearTo:   int4(filters.YearTo),
		Subject:  filters.Subject,
		Limit:    int32(limit),
	})
	if err != nil {
		return nil, storeErr("lexical_search", err)
	}
	return hitsFromRows(rows), nil
}

// VectorSearch returns the best chunk per paper whose cosine similarity to
// embedding exceeds store.MinVectorSimilarity.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, filters store.Filters, limit int) ([]store.Hit, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.VectorSearch(ctx, db.VectorSearchParams{
		Embedding:     pgvector.NewVector(embedding),
		MinSimilarity: store.MinVectorSimilarity,
		YearFrom:      int4(filters.YearFrom),
		YearTo:        int4(filters.YearTo),
		Subject:       filters.Subject,
		Limit:         int32(limit),
		Candidates:    int32(limit * 5),
	})
	if err != nil {
		return nil, storeErr("vector_search", err)
	}
	return hitsFromRows(rows), nil
}

func hitsFromRows(rows []db.SearchRow) []store.Hit {
	out := make([]store.Hit, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.Hit{
			PaperID:         r.PaperID,
			ChunkID:         r.ChunkID,
			Title:           r.Title,
			Snippet:         util.Truncate(r.Content, snippetLength),
			SectionType:     common.SectionType(r.SectionType),
			PublicationYear: fromInt4(r.PublicationYear),
			Score:           r.Score,
		})
	}
	return out
}
