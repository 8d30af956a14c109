package index

import (
	"context"
	"errors"
	"strings"

	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/extract"
	"github.com/bio-nexus/backend/pkg/graphstore"
	"github.com/bio-nexus/backend/pkg/ingest"
	"github.com/bio-nexus/backend/pkg/logger"
	"github.com/bio-nexus/backend/pkg/store"
)

// DefaultMaxAttempts is how often a job is tried before it is marked failed.
const DefaultMaxAttempts = 10

// GraphWriter writes paper projections into the graph store.
type GraphWriter interface {
	SyncPaper(ctx context.Context, p graphstore.Projection) error
}

// SyncStore is the part of the record of truth the syncer reads and updates.
type SyncStore interface {
	GetPaper(ctx context.Context, id string) (common.Paper, error)
	GetChunks(ctx context.Context, paperID string) ([]common.Chunk, error)
	CitationCandidates(ctx context.Context, excludeID string) ([]store.PaperRef, error)
	GetJob(ctx context.Context, id string) (common.GraphSyncJob, error)
	MarkJobDone(ctx context.Context, id string) error
	MarkJobFailed(ctx context.Context, id string, status common.GraphSyncStatus, lastErr string) error
}

// Syncer applies graph sync jobs. Applying a job twice yields the same
// graph.
type Syncer struct {
	store       SyncStore
	graph       GraphWriter
	extractor   *extract.Extractor
	sections    ingest.SectionExtractor
	maxAttempts int
}

type NewSyncerParams struct {
	Store            SyncStore
	Graph            GraphWriter
	Extractor        *extract.Extractor
	SectionExtractor ingest.SectionExtractor
	MaxAttempts      int
}

func NewSyncer(params NewSyncerParams) *Syncer {
	if params.Extractor == nil {
		params.Extractor = extract.New(extract.HeuristicStrategy{})
	}
	if params.SectionExtractor == nil {
		params.SectionExtractor = ingest.RegexSections{}
	}
	if params.MaxAttempts <= 0 {
		params.MaxAttempts = DefaultMaxAttempts
	}
	return &Syncer{
		store:       params.Store,
		graph:       params.Graph,
		extractor:   params.Extractor,
		sections:    params.SectionExtractor,
		maxAttempts: params.MaxAttempts,
	}
}

// Apply projects the job's paper into the graph. Jobs whose paper was
// deleted, and jobs already done, are skipped. A failed write is recorded
// on the job and returned as *common.GraphSyncError.
func (s *Syncer) Apply(ctx context.Context, jobID string) error {
	job, err := s.store.GetJob(ctx, jobID)
	if common.IsNotFound(err) {
		logger.Debug("[Index][Sync] Job no longer exists", "job_id", jobID)
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status == common.GraphSyncDone {
		return nil
	}

	proj, err := s.project(ctx, job.PaperID)
	if common.IsNotFound(err) {
		return nil
	}
	if err == nil {
		err = s.graph.SyncPaper(ctx, proj)
	}
	if err != nil {
		status := common.GraphSyncPending
		if job.Attempts+1 >= s.maxAttempts {
			status = common.GraphSyncFailed
		}
		if merr := s.store.MarkJobFailed(ctx, job.ID, status, err.Error()); merr != nil {
			logger.Error("[Index][Sync] Failed to record job failure", "job_id", job.ID, "err", merr)
		}
		return &common.GraphSyncError{PaperID: job.PaperID, Err: err}
	}

	if err := s.store.MarkJobDone(ctx, job.ID); err != nil {
		return err
	}
	logger.Info("[Index][Sync] Projected paper into graph",
		"paper_id", job.PaperID, "entities", len(proj.Entities), "relationships", len(proj.Relationships),
		"citations", len(proj.Citations))
	return nil
}

func (s *Syncer) project(ctx context.Context, paperID string) (graphstore.Projection, error) {
	paper, err := s.store.GetPaper(ctx, paperID)
	if err != nil {
		return graphstore.Projection{}, err
	}

	text := paper.FullText
	if strings.TrimSpace(text) == "" {
		chunks, err := s.store.GetChunks(ctx, paperID)
		if err != nil {
			return graphstore.Projection{}, err
		}
		parts := make([]string, 0, len(chunks))
		for _, c := range chunks {
			parts = append(parts, c.Content)
		}
		text = strings.Join(parts, "\n\n")
	}

	sections := s.sections.Sections(text)
	result := s.extractor.Extract(ctx, paperID, text)

	refs, err := s.store.CitationCandidates(ctx, paperID)
	if err != nil {
		return graphstore.Projection{}, err
	}
	candidates := make([]extract.PaperRef, 0, len(refs))
	for _, r := range refs {
		candidates = append(candidates, extract.PaperRef{ID: r.ID, Authors: r.Authors, Year: r.Year})
	}
	citations := extract.InferCitations(paperID, text, candidates)

	proj, dropped := graphstore.BuildProjection(paper, sections, result, citations)
	if dropped > 0 {
		logger.Warn("[Index][Sync] Dropped invalid relationships", "paper_id", paperID, "dropped", dropped)
	}
	return proj, nil
}

// InlineNotifier applies jobs synchronously instead of queueing them.
type InlineNotifier struct {
	Syncer *Syncer
}

func (n InlineNotifier) Notify(ctx context.Context, job common.GraphSyncJob) error {
	err := n.Syncer.Apply(ctx, job.ID)
	var gerr *common.GraphSyncError
	if errors.As(err, &gerr) {
		return gerr.Err
	}
	return err
}
