package ollama

import (
	"context"
	"fmt"

	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/common"

	"github.com/ollama/ollama/api"
)

// GenerateEmbeddings embeds all inputs in one Embed request. Vectors must
// match the configured dimension.
func (c *OllamaClient) GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: inputs,
	}

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, &common.ProviderError{Op: "embedding", Err: err}
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(rCtx, req)
	if err != nil {
		return nil, &common.ProviderError{Op: "embedding", Err: err}
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  res.TotalDuration.Milliseconds(),
	})

	if len(res.Embeddings) != len(inputs) {
		return nil, &common.ProviderError{
			Op:  "embedding",
			Err: fmt.Errorf("embedding response size mismatch: got %d want %d", len(res.Embeddings), len(inputs)),
		}
	}

	out := make([][]float32, len(inputs))
	for i, v := range res.Embeddings {
		vec, err := ai.ToDimension(v, c.dimensions)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
