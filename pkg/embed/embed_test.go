package embed

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bio-nexus/backend/pkg/ai/openai"
	"github.com/bio-nexus/backend/pkg/common"
)

type fakeEmbedder struct {
	dim   int
	fail  int32
	calls atomic.Int32
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	n := f.calls.Add(1)
	if n <= f.fail {
		return nil, &common.ProviderError{Op: "embedding", Err: errors.New("unavailable")}
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		v := make([]float32, f.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashEmbedding(t *testing.T) {
	a := HashEmbedding("microgravity bone loss", 64)
	b := HashEmbedding("microgravity bone loss", 64)
	if len(a) != 64 {
		t.Fatalf("expected 64 dimensions, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("expected deterministic output")
		}
	}
	if n := norm(a); math.Abs(n-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", n)
	}

	zero := HashEmbedding("", 64)
	if n := norm(zero); n != 0 {
		t.Fatalf("expected zero vector for empty text, got norm %f", n)
	}

	c := HashEmbedding("radiation shielding", 64)
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different texts to differ")
	}
}

func TestGenerator_FallbackWithoutClient(t *testing.T) {
	g := NewGenerator(NewGeneratorParams{Dimension: 32, Truncator: CharTruncator{}, BatchSize: 2})
	vecs, report, err := g.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.Fallback != 3 || report.Provider != 0 {
		t.Fatalf("expected 3 fallback vectors, got %+v", report)
	}
	want := HashEmbedding("c", 32)
	for i := range want {
		if vecs[2][i] != want[i] {
			t.Fatal("expected vectors in input order")
		}
	}
}

func TestGenerator_RetriesThenSucceeds(t *testing.T) {
	f := &fakeEmbedder{dim: 8, fail: 2}
	g := NewGenerator(NewGeneratorParams{
		Client:      f,
		Dimension:   8,
		Truncator:   CharTruncator{},
		BaseBackoff: time.Millisecond,
	})
	vecs, report, err := g.Embed(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.Provider != 1 || vecs[0][0] != 1 {
		t.Fatalf("expected provider vector, got %+v %v", report, vecs)
	}
	if n := f.calls.Load(); n != 3 {
		t.Fatalf("expected 3 calls, got %d", n)
	}
}

func TestGenerator_FallsBackAfterRetries(t *testing.T) {
	f := &fakeEmbedder{dim: 8, fail: 100}
	g := NewGenerator(NewGeneratorParams{
		Client:      f,
		Dimension:   8,
		Truncator:   CharTruncator{},
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
	})
	_, report, err := g.Embed(context.Background(), []string{"x", "y"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.Fallback != 2 {
		t.Fatalf("expected fallback vectors, got %+v", report)
	}
	if n := f.calls.Load(); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestGenerator_DimensionMismatch(t *testing.T) {
	g := NewGenerator(NewGeneratorParams{
		Client:    &fakeEmbedder{dim: 4},
		Dimension: 8,
		Truncator: CharTruncator{},
	})
	_, _, err := g.Embed(context.Background(), []string{"x"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestGenerator_AdapterDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"e","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer srv.Close()

	client := openai.NewOpenAIClient(openai.NewOpenAIClientParams{
		EmbeddingModel: "e",
		Dimensions:     1536,
		EmbeddingURL:   srv.URL,
		EmbeddingKey:   "k",
	})
	g := NewGenerator(NewGeneratorParams{
		Client:      client,
		Dimension:   1536,
		Truncator:   CharTruncator{},
		MaxRetries:  1,
		BaseBackoff: time.Millisecond,
	})

	vecs, report, err := g.Embed(context.Background(), []string{"bone loss"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v (report %+v, %d vectors)", err, report, len(vecs))
	}
}

func TestGenerator_EmbedChunks(t *testing.T) {
	g := NewGenerator(NewGeneratorParams{Dimension: 16, Truncator: CharTruncator{}, BatchDelay: time.Millisecond})
	chunks := make([]common.Chunk, 5)
	for i := range chunks {
		chunks[i].Content = strings.Repeat("bone ", i+1)
	}
	if _, err := g.EmbedChunks(context.Background(), chunks); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	for i, c := range chunks {
		if len(c.Embedding) != 16 {
			t.Fatalf("chunk %d: expected 16 dimensions, got %d", i, len(c.Embedding))
		}
	}
}

func TestCharTruncator(t *testing.T) {
	if got := (CharTruncator{}).Truncate(strings.Repeat("a", 100), 10); len(got) != 40 {
		t.Fatalf("expected 40 characters, got %d", len(got))
	}
	if got := (CharTruncator{}).Truncate("short", 10); got != "short" {
		t.Fatalf("expected unchanged text, got %q", got)
	}
}
