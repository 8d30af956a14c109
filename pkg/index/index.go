package index

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/chunk"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/embed"
	"github.com/bio-nexus/backend/pkg/ingest"
	"github.com/bio-nexus/backend/pkg/logger"
	"github.com/bio-nexus/backend/pkg/store"
)

// Embedder fills chunk embeddings.
type Embedder interface {
	EmbedChunks(ctx context.Context, chunks []common.Chunk) (embed.Report, error)
}

// Archiver keeps the raw uploaded bytes.
type Archiver interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Notifier is told about a committed paper whose graph projection is
// pending. Notification is best effort.
type Notifier interface {
	Notify(ctx context.Context, job common.GraphSyncJob) error
}

// GraphRemover removes a paper from the derived graph.
type GraphRemover interface {
	DeletePaper(ctx context.Context, paperID string) error
}

// Indexer runs the write path: ingest, chunk, embed, commit, notify.
type Indexer struct {
	store    store.PaperStore
	ingestor *ingest.Ingestor
	chunker  *chunk.Chunker
	embedder Embedder
	archiver Archiver
	notifier Notifier
	graph    GraphRemover
}

// NewIndexerParams configures an Indexer. Archiver, Notifier and Graph are
// optional.
type NewIndexerParams struct {
	Store    store.PaperStore
	Ingestor *ingest.Ingestor
	Chunker  *chunk.Chunker
	Embedder Embedder
	Archiver Archiver
	Notifier Notifier
	Graph    GraphRemover
}

func NewIndexer(params NewIndexerParams) *Indexer {
	if params.Ingestor == nil {
		params.Ingestor = ingest.NewIngestor(ingest.NewIngestorParams{})
	}
	if params.Chunker == nil {
		params.Chunker = chunk.New(chunk.DefaultSize, chunk.DefaultOverlap)
	}
	return &Indexer{
		store:    params.Store,
		ingestor: params.Ingestor,
		chunker:  params.Chunker,
		embedder: params.Embedder,
		archiver: params.Archiver,
		notifier: params.Notifier,
		graph:    params.Graph,
	}
}

// Result summarizes one indexed paper.
type Result struct {
	PaperID           string  `json:"paper_id"`
	Title             string  `json:"title"`
	Chunks            int     `json:"chunks"`
	QualityScore      float64 `json:"quality_score"`
	EmbeddingFallback bool    `json:"embedding_fallback"`
	GraphSyncJobID    string  `json:"graph_sync_job_id"`
}

// FileResult is the outcome of one file of a batch.
type FileResult struct {
	FileName string  `json:"file_name"`
	Result   *Result `json:"result,omitempty"`
	Err      error   `json:"-"`
	Error    string  `json:"error,omitempty"`
}

// Index ingests one document and commits it to the record of truth. Graph
// notification failures are logged and never returned.
func (ix *Indexer) Index(ctx context.Context, in ingest.Input) (Result, error) {
	doc, err := ix.ingestor.Ingest(ctx, in)
	if err != nil {
		return Result{}, err
	}
	paper := doc.Paper

	if id, ok, err := ix.store.PaperIDByHash(ctx, paper.File.ContentHash); err != nil {
		return Result{}, err
	} else if ok {
		return Result{}, common.NewValidationError("file", fmt.Sprintf("duplicate of paper %s", id))
	}

	if paper.ID, err = util.NewID(); err != nil {
		return Result{}, err
	}

	chunks := ix.chunker.Split(paper.FullText, doc.Sections)
	for i := range chunks {
		chunks[i].ID = util.MustID()
		chunks[i].PaperID = paper.ID
	}

	var report embed.Report
	if ix.embedder != nil && len(chunks) > 0 {
		report, err = ix.embedder.EmbedChunks(ctx, chunks)
		if err != nil {
			return Result{}, err
		}
	}

	if ix.archiver != nil {
		key := StorageKey(paper.ID, paper.File.FileName)
		contentType := mime.TypeByExtension(path.Ext(key))
		if err := ix.archiver.Put(ctx, key, in.Content, contentType); err != nil {
			logger.Warn("[Index][Index] Failed to archive raw document", "paper_id", paper.ID, "err", err)
		} else {
			paper.File.StorageKey = key
		}
	}

	job := common.GraphSyncJob{ID: util.MustID(), PaperID: paper.ID, Status: common.GraphSyncPending}
	if err := ix.store.CommitPaper(ctx, paper, chunks, job); err != nil {
		if paper.File.StorageKey != "" {
			if derr := ix.archiver.Delete(ctx, paper.File.StorageKey); derr != nil {
				logger.Warn("[Index][Index] Failed to remove archived document", "key", paper.File.StorageKey, "err", derr)
			}
		}
		return Result{}, err
	}

	logger.Info("[Index][Index] Committed paper",
		"paper_id", paper.ID, "title", paper.Title, "chunks", len(chunks), "fallback", report.Fallback)

	ix.notify(ctx, job)

	return Result{
		PaperID:           paper.ID,
		Title:             paper.Title,
		Chunks:            len(chunks),
		QualityScore:      paper.File.QualityScore,
		EmbeddingFallback: report.Fallback > 0,
		GraphSyncJobID:    job.ID,
	}, nil
}

func (ix *Indexer) notify(ctx context.Context, job common.GraphSyncJob) {
	if ix.notifier == nil {
		return
	}
	if err := ix.notifier.Notify(ctx, job); err != nil {
		gerr := &common.GraphSyncError{PaperID: job.PaperID, Err: err}
		logger.Warn("[Index][Notify] Graph sync deferred", "job_id", job.ID, "err", gerr)
	}
}

// IndexAll indexes inputs one at a time. A failing file never stops the
// batch.
func (ix *Indexer) IndexAll(ctx context.Context, inputs []ingest.Input) []FileResult {
	out := make([]FileResult, 0, len(inputs))
	for _, in := range inputs {
		fr := FileResult{FileName: in.FileName}
		if err := ctx.Err(); err != nil {
			fr.Err = err
		} else {
			res, err := ix.Index(ctx, in)
			if err != nil {
				fr.Err = err
			} else {
				fr.Result = &res
			}
		}
		if fr.Err != nil {
			fr.Error = fr.Err.Error()
			logger.Warn("[Index][IndexAll] File failed", "file", in.FileName, "err", fr.Err)
		}
		out = append(out, fr)
	}
	return out
}

// Delete removes a paper from the record of truth, then best effort from
// the graph and the archive.
func (ix *Indexer) Delete(ctx context.Context, paperID string) error {
	key, err := ix.store.DeletePaper(ctx, paperID)
	if err != nil {
		return err
	}
	if ix.graph != nil {
		if err := ix.graph.DeletePaper(ctx, paperID); err != nil {
			logger.Warn("[Index][Delete] Failed to remove paper from graph", "paper_id", paperID,
				"err", &common.GraphSyncError{PaperID: paperID, Err: err})
		}
	}
	if ix.archiver != nil && key != "" {
		if err := ix.archiver.Delete(ctx, key); err != nil {
			logger.Warn("[Index][Delete] Failed to remove archived document", "key", key, "err", err)
		}
	}
	logger.Info("[Index][Delete] Deleted paper", "paper_id", paperID)
	return nil
}

// StorageKey is the archive key of a paper's raw document.
func StorageKey(paperID, fileName string) string {
	return path.Join("papers", paperID, util.SanitizeFilename(fileName))
}

// IsFileError reports whether err only concerns the submitted file and
// the rest of a batch may proceed.
func IsFileError(err error) bool {
	var ee *common.ExtractionError
	return common.IsValidation(err) || errors.As(err, &ee)
}
