package embed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrDimensionMismatch is returned when the provider produces vectors of a
// size other than the deployment dimension. It is a configuration error and
// never masked by the fallback.
var ErrDimensionMismatch = ai.ErrDimensionMismatch

// Report counts how the vectors of one call were produced.
type Report struct {
	Provider int
	Fallback int
}

// Generator produces one vector per input text. Provider failures fall back
// to HashEmbedding so a vector is always returned.
type Generator struct {
	client      ai.EmbeddingClient
	truncator   Truncator
	dimension   int
	maxTokens   int
	maxRetries  int
	backoff     time.Duration
	batchSize   int
	concurrency int
	limiter     *rate.Limiter
}

// NewGeneratorParams configures a Generator. A nil Client always uses the
// fallback embedding.
type NewGeneratorParams struct {
	Client         ai.EmbeddingClient
	Truncator      Truncator
	Dimension      int
	MaxInputTokens int
	MaxRetries     int
	BaseBackoff    time.Duration
	BatchSize      int
	Concurrency    int
	BatchDelay     time.Duration
}

// NewGenerator creates a Generator with defaults for unset fields.
func NewGenerator(params NewGeneratorParams) *Generator {
	if params.Truncator == nil {
		params.Truncator = NewTokenTruncator()
	}
	if params.Dimension <= 0 {
		params.Dimension = common.EmbeddingDimension
	}
	if params.MaxInputTokens <= 0 {
		params.MaxInputTokens = 8191
	}
	if params.MaxRetries <= 0 {
		params.MaxRetries = 3
	}
	if params.BaseBackoff <= 0 {
		params.BaseBackoff = 500 * time.Millisecond
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 16
	}
	if params.Concurrency <= 0 {
		params.Concurrency = 4
	}

	limit := rate.Inf
	if params.BatchDelay > 0 {
		limit = rate.Every(params.BatchDelay)
	}

	return &Generator{
		client:      params.Client,
		truncator:   params.Truncator,
		dimension:   params.Dimension,
		maxTokens:   params.MaxInputTokens,
		maxRetries:  params.MaxRetries,
		backoff:     params.BaseBackoff,
		batchSize:   params.BatchSize,
		concurrency: params.Concurrency,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

// Dimension returns the vector size the generator produces.
func (g *Generator) Dimension() int {
	return g.dimension
}

// Embed returns one vector per text, in input order.
func (g *Generator) Embed(ctx context.Context, texts []string) ([][]float32, Report, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, Report{}, nil
	}

	var provider, fallback atomic.Int64

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))
		eg.Go(func() error {
			if err := g.limiter.Wait(gCtx); err != nil {
				return err
			}
			vecs, fromProvider, err := g.embedBatch(gCtx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			if fromProvider {
				provider.Add(int64(len(vecs)))
			} else {
				fallback.Add(int64(len(vecs)))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, Report{}, err
	}

	report := Report{Provider: int(provider.Load()), Fallback: int(fallback.Load())}
	if report.Fallback > 0 {
		logger.Warn("[Embed][Embed] Used fallback embeddings", "fallback", report.Fallback, "provider", report.Provider)
	}
	return out, report, nil
}

// EmbedQuery embeds a single query text.
func (g *Generator) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, _, err := g.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedChunks fills the Embedding field of every chunk.
func (g *Generator) EmbedChunks(ctx context.Context, chunks []common.Chunk) (Report, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, report, err := g.Embed(ctx, texts)
	if err != nil {
		return Report{}, err
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}
	return report, nil
}

func (g *Generator) embedBatch(ctx context.Context, batch []string) ([][]float32, bool, error) {
	inputs := make([]string, len(batch))
	for i, t := range batch {
		inputs[i] = g.truncator.Truncate(t, g.maxTokens)
	}

	if g.client != nil {
		vecs, err := util.RetryWithBackoff(ctx, g.maxRetries, g.backoff, func(ctx context.Context) ([][]float32, error) {
			return g.client.GenerateEmbeddings(ctx, inputs)
		})
		if err == nil {
			if err := g.checkDimensions(vecs, len(inputs)); err != nil {
				return nil, false, err
			}
			return vecs, true, nil
		}
		if errors.Is(err, ErrDimensionMismatch) {
			return nil, false, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		logger.Warn("[Embed][Batch] Provider failed, using fallback", "size", len(inputs), "err", err)
	}

	vecs := make([][]float32, len(inputs))
	for i, t := range inputs {
		vecs[i] = HashEmbedding(t, g.dimension)
	}
	return vecs, false, nil
}

func (g *Generator) checkDimensions(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("%w: got %d vectors for %d inputs", ErrDimensionMismatch, len(vecs), want)
	}
	for _, v := range vecs {
		if len(v) != g.dimension {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), g.dimension)
		}
	}
	return nil
}
