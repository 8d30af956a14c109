package config

import (
	"strings"

	"github.com/bio-nexus/backend/pkg/ai"
	oai "github.com/bio-nexus/backend/pkg/ai/ollama"
	gai "github.com/bio-nexus/backend/pkg/ai/openai"
	"github.com/bio-nexus/backend/pkg/chunk"
	"github.com/bio-nexus/backend/pkg/embed"
	"github.com/bio-nexus/backend/pkg/extract"
	"github.com/bio-nexus/backend/pkg/ingest"
)

// NewAIClient builds the provider selected by AI_ADAPTER. An OpenAI client
// without keys is still returned; its calls fail and every consumer falls
// back to its defaults.
func (c Config) NewAIClient() (ai.Client, error) {
	switch strings.ToLower(c.AIAdapter) {
	case "ollama":
		client, err := oai.NewOllamaClient(oai.NewOllamaClientParams{
			ChatModel:      c.AIChatModel,
			ExtractModel:   c.AIExtractModel,
			EmbeddingModel: c.AIEmbedModel,
			Dimensions:     c.AIEmbedDim,

			BaseURL: c.AIChatURL,
			ApiKey:  c.AIChatKey,

			MaxConcurrentRequests: c.AIParallelRequests,
			Timeout:               c.AITimeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return gai.NewOpenAIClient(gai.NewOpenAIClientParams{
			ChatModel:      c.AIChatModel,
			ExtractModel:   c.AIExtractModel,
			EmbeddingModel: c.AIEmbedModel,
			Dimensions:     c.AIEmbedDim,

			ChatURL:      c.AIChatURL,
			ChatKey:      c.AIChatKey,
			EmbeddingURL: c.AIEmbedURL,
			EmbeddingKey: c.AIEmbedKey,

			MaxConcurrentRequests: c.AIParallelRequests,
			Timeout:               c.AITimeout,
		}), nil
	}
}

func (c Config) NewEmbedder(client ai.EmbeddingClient) *embed.Generator {
	return embed.NewGenerator(embed.NewGeneratorParams{
		Client:         client,
		Dimension:      c.AIEmbedDim,
		MaxInputTokens: c.EmbedMaxInputTokens,
		MaxRetries:     c.EmbedMaxRetries,
		BatchSize:      c.EmbedBatchSize,
		Concurrency:    c.EmbedConcurrency,
		BatchDelay:     c.EmbedBatchDelay,
	})
}

func (c Config) NewIngestor() *ingest.Ingestor {
	return ingest.NewIngestor(ingest.NewIngestorParams{
		AllowedExtensions: c.AllowedExtensions,
		MaxFileSize:       c.MaxFileSize(),
	})
}

func (c Config) NewChunker() *chunk.Chunker {
	return chunk.New(c.ChunkSize, c.ChunkOverlap)
}

// NewExtractor asks the model first and merges in the pattern matches, so
// entities are found even when the provider is down.
func (c Config) NewExtractor(client ai.ReasoningClient) *extract.Extractor {
	if client == nil {
		return extract.New(extract.HeuristicStrategy{})
	}
	return extract.New(extract.NewModelStrategy(client, 0), extract.HeuristicStrategy{})
}
