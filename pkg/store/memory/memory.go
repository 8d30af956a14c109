// Package memory is an in-process store.Store used by tests and dry runs.
// Search scores mirror the PostgreSQL implementation closely enough to
// exercise ranking, but are not identical.
package memory

import (
	"context"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/store"
)

type Store struct {
	mu sync.RWMutex

	papers   map[string]common.Paper
	chunks   map[string][]common.Chunk
	jobs     map[string]common.GraphSyncJob
	sessions map[string]common.Session
	turns    map[string][]common.ConversationTurn
	risks    []common.RiskAnalysisRecord

	// ChunkHook runs for every chunk before it is staged. A returned error
	// aborts the commit.
	ChunkHook func(common.Chunk) error

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		papers:   map[string]common.Paper{},
		chunks:   map[string][]common.Chunk{},
		jobs:     map[string]common.GraphSyncJob{},
		sessions: map[string]common.Session{},
		turns:    map[string][]common.ConversationTurn{},
		now:      time.Now,
	}
}

// CommitPaper stages everything first and publishes only when every step
// succeeded.
func (s *Store) CommitPaper(ctx context.Context, paper common.Paper, chunks []common.Chunk, job common.GraphSyncJob) error {
	if err := ctx.Err(); err != nil {
		return &common.StoreError{Op: "commit", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.papers[paper.ID]; ok {
		return &common.StoreError{Op: "insert_paper", Err: errDuplicateID(paper.ID)}
	}
	for _, p := range s.papers {
		if paper.File.ContentHash != "" && p.File.ContentHash == paper.File.ContentHash {
			return common.NewValidationError("file", "duplicate content")
		}
	}

	staged := make([]common.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if s.ChunkHook != nil {
			if err := s.ChunkHook(c); err != nil {
				return &common.StoreError{Op: "insert_chunks", Err: err}
			}
		}
		c.PaperID = paper.ID
		staged = append(staged, c)
	}

	now := s.now()
	paper.CreatedAt, paper.UpdatedAt = now, now
	job.PaperID = paper.ID
	job.Status = common.GraphSyncPending
	job.CreatedAt, job.UpdatedAt = now, now

	s.papers[paper.ID] = paper
	s.chunks[paper.ID] = staged
	s.jobs[job.ID] = job
	return nil
}

func (s *Store) PaperIDByHash(_ context.Context, contentHash string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, p := range s.papers {
		if p.File.ContentHash == contentHash {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (s *Store) GetPaper(_ context.Context, id string) (common.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.papers[id]
	if !ok {
		return common.Paper{}, &common.NotFoundError{Kind: "paper", ID: id}
	}
	return p, nil
}

func (s *Store) ListPapers(_ context.Context, limit, offset int) ([]common.Paper, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]common.Paper, 0, len(s.papers))
	for _, p := range s.papers {
		p.FullText = ""
		all = append(all, p)
	}
	slices.SortFunc(all, func(a, b common.Paper) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (s *Store) GetChunks(_ context.Context, paperID string) ([]common.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chunks[paperID]), nil
}

func (s *Store) DeletePaper(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.papers[id]
	if !ok {
		return "", &common.NotFoundError{Kind: "paper", ID: id}
	}
	delete(s.papers, id)
	delete(s.chunks, id)
	for jid, j := range s.jobs {
		if j.PaperID == id {
			delete(s.jobs, jid)
		}
	}
	return p.File.StorageKey, nil
}

func (s *Store) CitationCandidates(_ context.Context, excludeID string) ([]store.PaperRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.PaperRef
	for id, p := range s.papers {
		if id == excludeID || p.PublicationYear == 0 {
			continue
		}
		out = append(out, store.PaperRef{ID: id, Authors: p.Authors, Year: p.PublicationYear})
	}
	slices.SortFunc(out, func(a, b store.PaperRef) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// LexicalSearch scores each chunk by the fraction of query terms it or its
// paper's title and abstract contain.
func (s *Store) LexicalSearch(_ context.Context, query string, filters store.Filters, limit int) ([]store.Hit, error) {
	terms := util.QueryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []store.Hit
	for id, p := range s.papers {
		if !matches(p, filters) {
			continue
		}
		head := strings.ToLower(p.Title + " " + p.Abstract)
		best := store.Hit{}
		for _, c := range s.chunks[id] {
			body := strings.ToLower(c.Content)
			matched := 0
			for _, t := range terms {
				if strings.Contains(body, t) || strings.Contains(head, t) {
					matched++
				}
			}
			score := float64(matched) / float64(len(terms))
			if score > best.Score {
				best = hitFor(p, c, score)
			}
		}
		if best.Score > 0 {
			hits = append(hits, best)
		}
	}
	return rank(hits, limit), nil
}

// VectorSearch compares the query embedding with every stored chunk
// embedding by cosine similarity.
func (s *Store) VectorSearch(_ context.Context, embedding []float32, filters store.Filters, limit int) ([]store.Hit, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []store.Hit
	for id, p := range s.papers {
		if !matches(p, filters) {
			continue
		}
		best := store.Hit{}
		for _, c := range s.chunks[id] {
			if len(c.Embedding) != len(embedding) {
				continue
			}
			sim := cosine(embedding, c.Embedding)
			if sim > store.MinVectorSimilarity && sim > best.Score {
				best = hitFor(p, c, sim)
			}
		}
		if best.PaperID != "" {
			hits = append(hits, best)
		}
	}
	return rank(hits, limit), nil
}

func (s *Store) GetJob(_ context.Context, id string) (common.GraphSyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return common.GraphSyncJob{}, &common.NotFoundError{Kind: "graph_sync_job", ID: id}
	}
	return j, nil
}

func (s *Store) MarkJobDone(_ context.Context, id string) error {
	return s.updateJob(id, func(j *common.GraphSyncJob) {
		j.Status = common.GraphSyncDone
		j.Attempts++
		j.LastError = ""
	})
}

func (s *Store) MarkJobFailed(_ context.Context, id string, status common.GraphSyncStatus, lastErr string) error {
	return s.updateJob(id, func(j *common.GraphSyncJob) {
		j.Status = status
		j.Attempts++
		j.LastError = lastErr
	})
}

func (s *Store) TouchJob(_ context.Context, id string) error {
	return s.updateJob(id, func(*common.GraphSyncJob) {})
}

func (s *Store) StalePendingJobs(_ context.Context, olderThan time.Duration, limit int) ([]common.GraphSyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-olderThan)
	var out []common.GraphSyncJob
	for _, j := range s.jobs {
		if j.Status == common.GraphSyncPending && j.UpdatedAt.Before(cutoff) {
			out = append(out, j)
		}
	}
	slices.SortFunc(out, func(a, b common.GraphSyncJob) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) updateJob(id string, fn func(*common.GraphSyncJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return &common.NotFoundError{Kind: "graph_sync_job", ID: id}
	}
	fn(&j)
	j.UpdatedAt = s.now()
	s.jobs[id] = j
	return nil
}

func (s *Store) CreateSession(_ context.Context, id string) (common.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess := common.Session{ID: id, CreatedAt: now, LastUpdated: now}
	s.sessions[id] = sess
	return sess, nil
}

func (s *Store) GetSession(_ context.Context, id string) (common.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return common.Session{}, &common.NotFoundError{Kind: "session", ID: id}
	}
	return sess, nil
}

func (s *Store) AppendTurn(_ context.Context, turn common.ConversationTurn) (common.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[turn.SessionID]
	if !ok {
		return common.ConversationTurn{}, &common.NotFoundError{Kind: "session", ID: turn.SessionID}
	}
	turn.CreatedAt = s.now()
	sess.LastUpdated = turn.CreatedAt
	s.sessions[sess.ID] = sess
	s.turns[sess.ID] = append(s.turns[sess.ID], turn)
	return turn, nil
}

func (s *Store) ListTurns(_ context.Context, sessionID string, limit int) ([]common.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return slices.Clone(turns), nil
}

func (s *Store) SaveRiskAnalysis(_ context.Context, rec common.RiskAnalysisRecord) (common.RiskAnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.CreatedAt = s.now()
	s.risks = append(s.risks, rec)
	return rec, nil
}

func (s *Store) ListRiskAnalyses(_ context.Context, limit int) ([]common.RiskAnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.RiskAnalysisRecord, 0, min(limit, len(s.risks)))
	for i := len(s.risks) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.risks[i])
	}
	return out, nil
}

// Counts reports the number of stored papers, chunks and jobs.
func (s *Store) Counts() (papers, chunks, jobs int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cs := range s.chunks {
		chunks += len(cs)
	}
	return len(s.papers), chunks, len(s.jobs)
}

func matches(p common.Paper, f store.Filters) bool {
	if f.YearFrom != 0 && p.PublicationYear < f.YearFrom {
		return false
	}
	if f.YearTo != 0 && p.PublicationYear > f.YearTo {
		return false
	}
	if f.Subject != "" {
		if slices.Contains(p.Keywords, f.Subject) {
			return true
		}
		return strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.Subject))
	}
	return true
}

func hitFor(p common.Paper, c common.Chunk, score float64) store.Hit {
	return store.Hit{
		PaperID:         p.ID,
		ChunkID:         c.ID,
		Title:           p.Title,
		Snippet:         util.Truncate(c.Content, 300),
		SectionType:     c.SectionType,
		PublicationYear: p.PublicationYear,
		Score:           score,
	}
}

func rank(hits []store.Hit, limit int) []store.Hit {
	slices.SortFunc(hits, func(a, b store.Hit) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.PaperID, b.PaperID)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type errDuplicateID string

func (e errDuplicateID) Error() string { return "duplicate paper id " + string(e) }
