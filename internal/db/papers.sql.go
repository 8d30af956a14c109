package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

const paperColumns = `id, title, authors, publication_year, source, abstract, keywords, content,
    file_name, file_size, page_count, quality_score, content_hash, storage_key, created_at, updated_at`

func scanPaper(row interface{ Scan(...any) error }) (Paper, error) {
	var i Paper
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Authors,
		&i.PublicationYear,
		&i.Source,
		&i.Abstract,
		&i.Keywords,
		&i.Content,
		&i.FileName,
		&i.FileSize,
		&i.PageCount,
		&i.QualityScore,
		&i.ContentHash,
		&i.StorageKey,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertPaper = `-- name: InsertPaper :exec
INSERT INTO papers (
    id, title, authors, publication_year, source, abstract, keywords, content,
    file_name, file_size, page_count, quality_score, content_hash, storage_key
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`

type InsertPaperParams struct {
	ID              string
	Title           string
	Authors         []string
	PublicationYear pgtype.Int4
	Source          string
	Abstract        string
	Keywords        []string
	Content         string
	FileName        string
	FileSize        int64
	PageCount       int32
	QualityScore    float64
	ContentHash     string
	StorageKey      string
}

func (q *Queries) InsertPaper(ctx context.Context, arg InsertPaperParams) error {
	_, err := q.db.Exec(ctx, insertPaper,
		arg.ID,
		arg.Title,
		arg.Authors,
		arg.PublicationYear,
		arg.Source,
		arg.Abstract,
		arg.Keywords,
		arg.Content,
		arg.FileName,
		arg.FileSize,
		arg.PageCount,
		arg.QualityScore,
		arg.ContentHash,
		arg.StorageKey,
	)
	return err
}

const insertChunk = `-- name: InsertChunk :exec
INSERT INTO chunks (id, paper_id, content, section_type, chunk_index, start_char, end_char, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type InsertChunkParams struct {
	ID          string
	PaperID     string
	Content     string
	SectionType string
	ChunkIndex  int32
	StartChar   int32
	EndChar     int32
	Embedding   *pgvector.Vector
}

func (q *Queries) InsertChunk(ctx context.Context, arg InsertChunkParams) error {
	_, err := q.db.Exec(ctx, insertChunk,
		arg.ID,
		arg.PaperID,
		arg.Content,
		arg.SectionType,
		arg.ChunkIndex,
		arg.StartChar,
		arg.EndChar,
		arg.Embedding,
	)
	return err
}

const getPaperIDByHash = `-- name: GetPaperIDByHash :one
SELECT id FROM papers WHERE content_hash = $1
`

func (q *Queries) GetPaperIDByHash(ctx context.Context, contentHash string) (string, error) {
	row := q.db.QueryRow(ctx, getPaperIDByHash, contentHash)
	var id string
	err := row.Scan(&id)
	return id, err
}

const getPaper = `-- name: GetPaper :one
SELECT ` + paperColumns + `
FROM papers
WHERE id = $1
`

func (q *Queries) GetPaper(ctx context.Context, id string) (Paper, error) {
	return scanPaper(q.db.QueryRow(ctx, getPaper, id))
}

const listPapers = `-- name: ListPapers :many
SELECT ` + paperColumns + `
FROM papers
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2
`

type ListPapersParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListPapers(ctx context.Context, arg ListPapersParams) ([]Paper, error) {
	rows, err := q.db.Query(ctx, listPapers, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Paper
	for rows.Next() {
		i, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countPapers = `-- name: CountPapers :one
SELECT count(*) FROM papers
`

func (q *Queries) CountPapers(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countPapers)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getChunksByPaper = `-- name: GetChunksByPaper :many
SELECT id, paper_id, content, section_type, chunk_index, start_char, end_char, embedding
FROM chunks
WHERE paper_id = $1
ORDER BY chunk_index
`

func (q *Queries) GetChunksByPaper(ctx context.Context, paperID string) ([]Chunk, error) {
	rows, err := q.db.Query(ctx, getChunksByPaper, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Chunk
	for rows.Next() {
		var i Chunk
		if err := rows.Scan(
			&i.ID,
			&i.PaperID,
			&i.Content,
			&i.SectionType,
			&i.ChunkIndex,
			&i.StartChar,
			&i.EndChar,
			&i.Embedding,
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

const deletePaper = `-- name: DeletePaper :one
DELETE FROM papers
WHERE id = $1
RETURNING storage_key
`

func (q *Queries) DeletePaper(ctx context.Context, id string) (string, error) {
	row := q.db.QueryRow(ctx, deletePaper, id)
	var storageKey string
	err := row.Scan(&storageKey)
	return storageKey, err
}

const listPaperRefs = `-- name: ListPaperRefs :many
SELECT id, authors, publication_year
FROM papers
WHERE id <> $1 AND publication_year IS NOT NULL
`

type ListPaperRefsRow struct {
	ID              string
	Authors         []string
	PublicationYear pgtype.Int4
}

func (q *Queries) ListPaperRefs(ctx context.Context, excludeID string) ([]ListPaperRefsRow, error) {
	rows, err := q.db.Query(ctx, listPaperRefs, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPaperRefsRow
	for rows.Next() {
		var i ListPaperRefsRow
		if err := rows.Scan(&i.ID, &i.Authors, &i.PublicationYear); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
