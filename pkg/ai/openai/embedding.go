package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/common"

	"github.com/openai/openai-go/v3"
)

var errNoEmbeddingClient = errors.New("embedding client not configured")

// GenerateEmbeddings creates embeddings for multiple inputs in a single
// request. Vectors are returned in input order. A vector of any size other
// than the configured dimension fails with ai.ErrDimensionMismatch.
//
// Example:
//
//	vecs, err := client.GenerateEmbeddings(ctx, []string{"bone loss in microgravity"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(len(vecs[0]))
func (c *OpenAIClient) GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if c.EmbeddingClient == nil {
		return nil, &common.ProviderError{Op: "embedding", Err: errNoEmbeddingClient}
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model:      c.embeddingModel,
		Dimensions: openai.Int(int64(c.dimensions)),
	}

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, &common.ProviderError{Op: "embedding", Err: err}
	}
	defer c.reqLock.Release(1)

	start := time.Now()
	response, err := c.EmbeddingClient.Embeddings.New(rCtx, body)
	if err != nil {
		return nil, &common.ProviderError{Op: "embedding", Err: err}
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: int(response.Usage.PromptTokens),
		TotalTokens: int(response.Usage.TotalTokens),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if len(response.Data) != len(inputs) {
		return nil, &common.ProviderError{
			Op:  "embedding",
			Err: fmt.Errorf("embedding response size mismatch: got %d want %d", len(response.Data), len(inputs)),
		}
	}

	out := make([][]float32, len(inputs))
	for _, embedding := range response.Data {
		idx := int(embedding.Index)
		if idx < 0 || idx >= len(inputs) {
			return nil, &common.ProviderError{Op: "embedding", Err: fmt.Errorf("embedding index out of range: %d", embedding.Index)}
		}
		vec, err := ai.ToDimension(embedding.Embedding, c.dimensions)
		if err != nil {
			return nil, err
		}
		out[idx] = vec
	}
	for i := range out {
		if out[i] == nil {
			return nil, &common.ProviderError{Op: "embedding", Err: fmt.Errorf("missing embedding for index %d", i)}
		}
	}
	return out, nil
}
