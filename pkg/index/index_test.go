package index

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/embed"
	"github.com/bio-nexus/backend/pkg/graphstore"
	"github.com/bio-nexus/backend/pkg/ingest"
	"github.com/bio-nexus/backend/pkg/store/memory"
)

const paperText = `Microgravity Effects on Murine Bone Density
John A. Smith, Maria Garcia
2021

Abstract:
Microgravity exposure causes bone loss in mice. Smith (2019) reported similar trends in rats flown on the station.

Methods:
Mice were housed on the International Space Station for thirty days and bone density was measured by micro computed tomography.

Results:
Microgravity reduced bone density by twelve percent compared with ground controls kept in identical habitats.
`

type fakeNotifier struct {
	jobs []common.GraphSyncJob
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, job common.GraphSyncJob) error {
	f.jobs = append(f.jobs, job)
	return f.err
}

type fakeGraph struct {
	synced  []graphstore.Projection
	deleted []string
	err     error
}

func (f *fakeGraph) SyncPaper(_ context.Context, p graphstore.Projection) error {
	if f.err != nil {
		return f.err
	}
	f.synced = append(f.synced, p)
	return nil
}

func (f *fakeGraph) DeletePaper(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

type fakeArchive struct {
	objects map[string][]byte
}

func (f *fakeArchive) Put(_ context.Context, key string, content []byte, _ string) error {
	f.objects[key] = content
	return nil
}

func (f *fakeArchive) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func newIndexer(s *memory.Store, n Notifier, a Archiver, g GraphRemover) *Indexer {
	return NewIndexer(NewIndexerParams{
		Store:    s,
		Embedder: embed.NewGenerator(embed.NewGeneratorParams{Truncator: embed.CharTruncator{}, Dimension: 8}),
		Notifier: n,
		Archiver: a,
		Graph:    g,
	})
}

func TestIndex_CommitsPaperChunksAndJob(t *testing.T) {
	s := memory.New()
	n := &fakeNotifier{}
	ix := newIndexer(s, n, nil, nil)

	res, err := ix.Index(context.Background(), ingest.Input{FileName: "bone.txt", Content: []byte(paperText)})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Chunks == 0 || !res.EmbeddingFallback {
		t.Fatalf("expected embedded chunks with fallback, got %+v", res)
	}

	chunks, _ := s.GetChunks(context.Background(), res.PaperID)
	for i, c := range chunks {
		if c.Index != i || c.PaperID != res.PaperID || len(c.Embedding) != 8 {
			t.Fatalf("unexpected chunk %d: %+v", i, c)
		}
	}
	if len(n.jobs) != 1 || n.jobs[0].PaperID != res.PaperID {
		t.Fatalf("expected one notification for the paper, got %+v", n.jobs)
	}
}

func TestIndex_ZeroByteFileRejected(t *testing.T) {
	s := memory.New()
	ix := newIndexer(s, nil, nil, nil)

	_, err := ix.Index(context.Background(), ingest.Input{FileName: "empty.pdf", Content: nil})
	if !common.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if p, c, j := s.Counts(); p+c+j != 0 {
		t.Fatalf("expected no rows, got papers=%d chunks=%d jobs=%d", p, c, j)
	}
}

func TestIndex_ChunkFailureLeavesNothing(t *testing.T) {
	s := memory.New()
	s.ChunkHook = func(c common.Chunk) error {
		if c.Index > 0 {
			return errors.New("constraint violation")
		}
		return nil
	}
	a := &fakeArchive{objects: map[string][]byte{}}
	n := &fakeNotifier{}
	ix := newIndexer(s, n, a, nil)

	long := paperText + strings.Repeat("Additional discussion of skeletal unloading in orbit. ", 40)
	_, err := ix.Index(context.Background(), ingest.Input{FileName: "bone.txt", Content: []byte(long)})
	var se *common.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if p, c, j := s.Counts(); p+c+j != 0 {
		t.Fatalf("expected rollback, got papers=%d chunks=%d jobs=%d", p, c, j)
	}
	if len(a.objects) != 0 {
		t.Fatalf("expected archived object removed, got %d objects", len(a.objects))
	}
	if len(n.jobs) != 0 {
		t.Fatal("expected no notification after failed commit")
	}
}

func TestIndex_DuplicateAndNotifierFailure(t *testing.T) {
	s := memory.New()
	n := &fakeNotifier{err: errors.New("broker down")}
	ix := newIndexer(s, n, nil, nil)
	ctx := context.Background()

	if _, err := ix.Index(ctx, ingest.Input{FileName: "bone.txt", Content: []byte(paperText)}); err != nil {
		t.Fatalf("expected notifier failure to be swallowed, got %v", err)
	}
	_, err := ix.Index(ctx, ingest.Input{FileName: "copy.txt", Content: []byte(paperText)})
	if !common.IsValidation(err) {
		t.Fatalf("expected duplicate ValidationError, got %v", err)
	}
}

func TestIndexAll_ContinuesAfterFailure(t *testing.T) {
	s := memory.New()
	ix := newIndexer(s, nil, nil, nil)

	results := ix.IndexAll(context.Background(), []ingest.Input{
		{FileName: "empty.txt"},
		{FileName: "image.png", Content: []byte("x")},
		{FileName: "bone.txt", Content: []byte(paperText)},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err == nil || results[1].Err == nil || results[2].Err != nil {
		t.Fatalf("unexpected results %+v", results)
	}
	if !IsFileError(results[0].Err) || results[2].Result == nil {
		t.Fatalf("expected file level error and a result, got %+v", results)
	}
}

func TestSyncer_AppliesAndMarksDone(t *testing.T) {
	s := memory.New()
	g := &fakeGraph{}
	syncer := NewSyncer(NewSyncerParams{Store: s, Graph: g})
	ix := newIndexer(s, InlineNotifier{Syncer: syncer}, nil, nil)

	res, err := ix.Index(context.Background(), ingest.Input{FileName: "bone.txt", Content: []byte(paperText)})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(g.synced) != 1 {
		t.Fatalf("expected one projection, got %d", len(g.synced))
	}
	proj := g.synced[0]
	if proj.Paper.ID != res.PaperID || len(proj.Entities) == 0 || len(proj.Sections) == 0 {
		t.Fatalf("unexpected projection %+v", proj)
	}
	job, _ := s.GetJob(context.Background(), res.GraphSyncJobID)
	if job.Status != common.GraphSyncDone {
		t.Fatalf("expected done job, got %s", job.Status)
	}

	if err := syncer.Apply(context.Background(), res.GraphSyncJobID); err != nil || len(g.synced) != 1 {
		t.Fatalf("expected done job to be skipped, got %v and %d syncs", err, len(g.synced))
	}
}

func TestSyncer_FailureKeepsPaperAndRecordsAttempts(t *testing.T) {
	s := memory.New()
	g := &fakeGraph{err: errors.New("neo4j unavailable")}
	syncer := NewSyncer(NewSyncerParams{Store: s, Graph: g, MaxAttempts: 2})
	ix := newIndexer(s, InlineNotifier{Syncer: syncer}, nil, nil)
	ctx := context.Background()

	res, err := ix.Index(ctx, ingest.Input{FileName: "bone.txt", Content: []byte(paperText)})
	if err != nil {
		t.Fatalf("expected graph failure to be swallowed, got %v", err)
	}
	if _, err := s.GetPaper(ctx, res.PaperID); err != nil {
		t.Fatalf("expected paper to remain, got %v", err)
	}

	job, _ := s.GetJob(ctx, res.GraphSyncJobID)
	if job.Status != common.GraphSyncPending || job.Attempts != 1 || job.LastError == "" {
		t.Fatalf("expected pending job with one attempt, got %+v", job)
	}

	err = syncer.Apply(ctx, res.GraphSyncJobID)
	var gerr *common.GraphSyncError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GraphSyncError, got %v", err)
	}
	job, _ = s.GetJob(ctx, res.GraphSyncJobID)
	if job.Status != common.GraphSyncFailed || job.Attempts != 2 {
		t.Fatalf("expected failed job after max attempts, got %+v", job)
	}
}

func TestRelay_RedrivesStaleJobs(t *testing.T) {
	s := memory.New()
	ix := newIndexer(s, nil, nil, nil)
	if _, err := ix.Index(context.Background(), ingest.Input{FileName: "bone.txt", Content: []byte(paperText)}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	n := &fakeNotifier{}
	relay := &Relay{Store: s, Notifier: n, OlderThan: -time.Second}
	sent, err := relay.RunOnce(context.Background())
	if err != nil || sent != 1 || len(n.jobs) != 1 {
		t.Fatalf("expected one re-driven job, got %d %v", sent, err)
	}
}

func TestDelete_RemovesEverywhere(t *testing.T) {
	s := memory.New()
	a := &fakeArchive{objects: map[string][]byte{}}
	g := &fakeGraph{}
	ix := newIndexer(s, nil, a, g)
	ctx := context.Background()

	res, err := ix.Index(ctx, ingest.Input{FileName: "Bone Study.txt", Content: []byte(paperText)})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(a.objects) != 1 {
		t.Fatalf("expected archived object, got %d", len(a.objects))
	}

	if err := ix.Delete(ctx, res.PaperID); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if p, c, j := s.Counts(); p+c+j != 0 || len(a.objects) != 0 || len(g.deleted) != 1 {
		t.Fatal("expected paper removed everywhere")
	}
	if err := ix.Delete(ctx, res.PaperID); !common.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestStorageKey(t *testing.T) {
	key := StorageKey("abc", "../My Paper.pdf")
	if !strings.HasPrefix(key, "papers/abc/") || strings.Contains(key, "..") {
		t.Fatalf("unexpected key %q", key)
	}
}
