package pgx

import (
	"context"
	"errors"

	"github.com/bio-nexus/backend/internal/db"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/logger"
	"github.com/bio-nexus/backend/pkg/store"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// CommitPaper inserts the paper, then its chunks, then the outbox row inside
// one transaction.
func (s *Store) CommitPaper(
	ctx context.Context,
	paper common.Paper,
	chunks []common.Chunk,
	job common.GraphSyncJob,
) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.q.WithTx(tx)

	err = qtx.InsertPaper(ctx, db.InsertPaperParams{
		ID:              paper.ID,
		Title:           paper.Title,
		Authors:         nonNil(paper.Authors),
		PublicationYear: int4(paper.PublicationYear),
		Source:          paper.Source,
		Abstract:        paper.Abstract,
		Keywords:        nonNil(paper.Keywords),
		Content:         paper.FullText,
		FileName:        paper.File.FileName,
		FileSize:        paper.File.FileSize,
		PageCount:       int32(paper.File.PageCount),
		QualityScore:    paper.File.QualityScore,
		ContentHash:     paper.File.ContentHash,
		StorageKey:      paper.File.StorageKey,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return common.NewValidationError("file", "duplicate content")
		}
		return storeErr("insert_paper", err)
	}

	err = store.ChunkRange(len(chunks), 500, func(start, end int) error {
		for _, c := range chunks[start:end] {
			var emb *pgvector.Vector
			if c.Embedding != nil {
				v := pgvector.NewVector(c.Embedding)
				emb = &v
			}
			if err := qtx.InsertChunk(ctx, db.InsertChunkParams{
				ID:          c.ID,
				PaperID:     paper.ID,
				Content:     c.Content,
				SectionType: string(c.SectionType),
				ChunkIndex:  int32(c.Index),
				StartChar:   int32(c.Start),
				EndChar:     int32(c.End),
				Embedding:   emb,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr("insert_chunks", err)
	}

	if err := qtx.InsertGraphSyncJob(ctx, job.ID, paper.ID); err != nil {
		return storeErr("insert_graph_sync_job", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit", err)
	}

	logger.Debug("[Store][CommitPaper] Committed paper", "paper_id", paper.ID, "chunks", len(chunks))
	return nil
}

func (s *Store) PaperIDByHash(ctx context.Context, contentHash string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id, err := s.q.GetPaperIDByHash(ctx, contentHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("paper_by_hash", err)
	}
	return id, true, nil
}

func (s *Store) GetPaper(ctx context.Context, id string) (common.Paper, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row, err := s.q.GetPaper(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.Paper{}, &common.NotFoundError{Kind: "paper", ID: id}
	}
	if err != nil {
		return common.Paper{}, storeErr("get_paper", err)
	}
	return paperFromRow(row), nil
}

// ListPapers returns one page of papers, newest first, and the total count.
func (s *Store) ListPapers(ctx context.Context, limit, offset int) ([]common.Paper, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.ListPapers(ctx, db.ListPapersParams{Limit: int32(limit), Offset: int32(offset)})
	if err != nil {
		return nil, 0, storeErr("list_papers", err)
	}
	total, err := s.q.CountPapers(ctx)
	if err != nil {
		return nil, 0, storeErr("count_papers", err)
	}

	out := make([]common.Paper, 0, len(rows))
	for _, r := range rows {
		p := paperFromRow(r)
		p.FullText = ""
		out = append(out, p)
	}
	return out, int(total), nil
}

func (s *Store) GetChunks(ctx context.Context, paperID string) ([]common.Chunk, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.GetChunksByPaper(ctx, paperID)
	if err != nil {
		return nil, storeErr("get_chunks", err)
	}
	out := make([]common.Chunk, 0, len(rows))
	for _, r := range rows {
		c := common.Chunk{
			ID:          r.ID,
			PaperID:     r.PaperID,
			Content:     r.Content,
			SectionType: common.SectionType(r.SectionType),
			Index:       int(r.ChunkIndex),
			Start:       int(r.StartChar),
			End:         int(r.EndChar),
		}
		if r.Embedding != nil {
			c.Embedding = r.Embedding.Slice()
		}
		out = append(out, c)
	}
	return out, nil
}

// DeletePaper relies on ON DELETE CASCADE for chunks and outbox rows.
func (s *Store) DeletePaper(ctx context.Context, id string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key, err := s.q.DeletePaper(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &common.NotFoundError{Kind: "paper", ID: id}
	}
	if err != nil {
		return "", storeErr("delete_paper", err)
	}
	return key, nil
}

func (s *Store) CitationCandidates(ctx context.Context, excludeID string) ([]store.PaperRef, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.ListPaperRefs(ctx, excludeID)
	if err != nil {
		return nil, storeErr("citation_candidates", err)
	}
	out := make([]store.PaperRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.PaperRef{ID: r.ID, Authors: r.Authors, Year: fromInt4(r.PublicationYear)})
	}
	return out, nil
}

func paperFromRow(r db.Paper) common.Paper {
	return common.Paper{
		ID:              r.ID,
		Title:           r.Title,
		Authors:         r.Authors,
		PublicationYear: fromInt4(r.PublicationYear),
		Source:          r.Source,
		Abstract:        r.Abstract,
		Keywords:        r.Keywords,
		FullText:        r.Content,
		File: common.FileMetadata{
			FileName:     r.FileName,
			FileSize:     r.FileSize,
			PageCount:    int(r.PageCount),
			QualityScore: r.QualityScore,
			ContentHash:  r.ContentHash,
			StorageKey:   r.StorageKey,
		},
		CreatedAt: fromTime(r.CreatedAt),
		UpdatedAt: fromTime(r.UpdatedAt),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
