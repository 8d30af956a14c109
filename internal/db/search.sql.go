package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

type SearchRow struct {
	PaperID         string
	ChunkID         string
	Content         string
	SectionType     string
	Score           float64
	Title           string
	PublicationYear pgtype.Int4
}

func scanSearchRows(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close()
}) ([]SearchRow, error) {
	defer rows.Close()
	var items []SearchRow
	for rows.Next() {
		var i SearchRow
		if err := rows.Scan(
			&i.PaperID,
			&i.ChunkID,
			&i.Content,
			&i.SectionType,
			&i.Score,
			&i.Title,
			&i.PublicationYear,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const lexicalSearch = `-- name: LexicalSearch :many
WITH q AS (
    SELECT to_tsquery('english', $1) AS query
),
ranked AS (
    SELECT
        c.paper_id,
        c.id AS chunk_id,
        c.content,
        c.section_type,
        (ts_rank_cd(c.search_vector, q.query, 32) + ts_rank_cd(p.search_vector, q.query, 32)) / 2 AS score,
        p.title,
        p.publication_year,
        row_number() OVER (
            PARTITION BY c.paper_id
            ORDER BY ts_rank_cd(c.search_vector, q.query, 32) DESC, c.chunk_index
        ) AS rn
    FROM chunks c
    JOIN papers p ON p.id = c.paper_id
    CROSS JOIN q
    WHERE (c.search_vector @@ q.query OR p.search_vector @@ q.query)
      AND ($2::int IS NULL OR p.publication_year >= $2::int)
      AND ($3::int IS NULL OR p.publication_year <= $3::int)
      AND ($4::text = '' OR $4::text = ANY (p.keywords) OR p.title ILIKE '%' || $4::text || '%')
)
SELECT paper_id, chunk_id, content, section_type, score::float8, title, publication_year
FROM ranked
WHERE rn = 1
ORDER BY score DESC, paper_id
LIMIT $5
`

type LexicalSearchParams struct {
	Query    string
	YearFrom pgtype.Int4
	YearTo   pgtype.Int4
	Subject  string
	Limit    int32
}

func (q *Queries) LexicalSearch(ctx context.Context, arg LexicalSearchParams) ([]SearchRow, error) {
	rows, err := q.db.Query(ctx, lexicalSearch,
		arg.Query,
		arg.YearFrom,
		arg.YearTo,
		arg.Subject,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	return scanSearchRows(rows)
}

const vectorSearch = `-- name: VectorSearch :many
WITH candidates AS (
    SELECT c.paper_id, c.id AS chunk_id, c.content, c.section_type, c.chunk_index,
           1 - (c.embedding <=> $1) AS score
    FROM chunks c
    WHERE c.embedding IS NOT NULL
    ORDER BY c.embedding <=> $1
    LIMIT $7
),
best AS (
    SELECT DISTINCT ON (paper_id) paper_id, chunk_id, content, section_type, score
    FROM candidates
    WHERE score > $2
    ORDER BY paper_id, score DESC, chunk_index
)
SELECT b.paper_id, b.chunk_id, b.content, b.section_type, b.score::float8, p.title, p.publication_year
FROM best b
JOIN papers p ON p.id = b.paper_id
WHERE ($3::int IS NULL OR p.publication_year >= $3::int)
  AND ($4::int IS NULL OR p.publication_year <= $4::int)
  AND ($5::text = '' OR $5::text = ANY (p.keywords) OR p.title ILIKE '%' || $5::text || '%')
ORDER BY b.score DESC, b.paper_id
LIMIT $6
`

type VectorSearchParams struct {
	Embedding     pgvector.Vector
	MinSimilarity float64
	YearFrom      pgtype.Int4
	YearTo        pgtype.Int4
	Subject       string
	Limit         int32
	Candidates    int32
}

func (q *Queries) VectorSearch(ctx context.Context, arg VectorSearchParams) ([]SearchRow, error) {
	rows, err := q.db.Query(ctx, vectorSearch,
		arg.Embedding,
		arg.MinSimilarity,
		arg.YearFrom,
		arg.YearTo,
		arg.Subject,
		arg.Limit,
		arg.Candidates,
	)
	if err != nil {
		return nil, err
	}
	return scanSearchRows(rows)
}
