package store

import (
	"context"
	"time"

	"github.com/bio-nexus/backend/pkg/common"
)

// Filters narrows lexical and vector search. Zero values disable a filter.
type Filters struct {
	YearFrom int    `json:"year_from,omitempty"`
	YearTo   int    `json:"year_to,omitempty"`
	Subject  string `json:"subject,omitempty"`
}

// Hit is the best matching chunk of one paper for a search method.
type Hit struct {
	PaperID         string             `json:"paper_id"`
	ChunkID         string             `json:"chunk_id,omitempty"`
	Title           string             `json:"title"`
	Snippet         string             `json:"snippet"`
	SectionType     common.SectionType `json:"section_type,omitempty"`
	PublicationYear int                `json:"publication_year,omitempty"`
	Score           float64            `json:"score"`
}

// MinVectorSimilarity is the cosine similarity a chunk has to exceed to be
// returned by VectorSearch.
const MinVectorSimilarity = 0.3

// PaperStore is the record of truth for papers and their chunks.
type PaperStore interface {
	// CommitPaper writes the paper, its chunks and a pending graph sync job
	// atomically. Nothing is visible when it fails.
	CommitPaper(ctx context.Context, paper common.Paper, chunks []common.Chunk, job common.GraphSyncJob) error
	PaperIDByHash(ctx context.Context, contentHash string) (string, bool, error)
	GetPaper(ctx context.Context, id string) (common.Paper, error)
	ListPapers(ctx context.Context, limit, offset int) ([]common.Paper, int, error)
	GetChunks(ctx context.Context, paperID string) ([]common.Chunk, error)
	// DeletePaper removes the paper with its chunks and jobs and returns the
	// raw object storage key.
	DeletePaper(ctx context.Context, id string) (string, error)
	// CitationCandidates lists every other paper with a known year.
	CitationCandidates(ctx context.Context, excludeID string) ([]PaperRef, error)
}

// PaperRef identifies a paper by author names and year.
type PaperRef struct {
	ID      string
	Authors []string
	Year    int
}

// SearchStore runs the record-of-truth side of hybrid retrieval.
type SearchStore interface {
	LexicalSearch(ctx context.Context, query string, filters Filters, limit int) ([]Hit, error)
	VectorSearch(ctx context.Context, embedding []float32, filters Filters, limit int) ([]Hit, error)
}

// JobStore manages the graph sync outbox.
type JobStore interface {
	GetJob(ctx context.Context, id string) (common.GraphSyncJob, error)
	MarkJobDone(ctx context.Context, id string) error
	MarkJobFailed(ctx context.Context, id string, status common.GraphSyncStatus, lastErr string) error
	StalePendingJobs(ctx context.Context, olderThan time.Duration, limit int) ([]common.GraphSyncJob, error)
	TouchJob(ctx context.Context, id string) error
}

// SessionStore persists chat sessions and their append-only turns.
type SessionStore interface {
	CreateSession(ctx context.Context, id string) (common.Session, error)
	GetSession(ctx context.Context, id string) (common.Session, error)
	AppendTurn(ctx context.Context, turn common.ConversationTurn) (common.ConversationTurn, error)
	// ListTurns returns the most recent turns in chronological order.
	ListTurns(ctx context.Context, sessionID string, limit int) ([]common.ConversationTurn, error)
}

// RiskStore persists write-once mission risk analyses.
type RiskStore interface {
	SaveRiskAnalysis(ctx context.Context, rec common.RiskAnalysisRecord) (common.RiskAnalysisRecord, error)
	ListRiskAnalyses(ctx context.Context, limit int) ([]common.RiskAnalysisRecord, error)
}

// Store is the full record-of-truth store.
type Store interface {
	PaperStore
	SearchStore
	JobStore
	SessionStore
	RiskStore
}
