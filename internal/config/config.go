package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/common"
)

// Config collects every setting the services read from the environment.
type Config struct {
	Debug   bool
	LogJSON bool
	Port    string

	DatabaseURL string

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	AIAdapter          string
	AIChatURL          string
	AIChatKey          string
	AIChatModel        string
	AIExtractModel     string
	AIEmbedURL         string
	AIEmbedKey         string
	AIEmbedModel       string
	AIEmbedDim         int
	AIParallelRequests int64
	AITimeout          time.Duration

	MaxFileSizeMB     int
	AllowedExtensions []string

	ChunkSize    int
	ChunkOverlap int

	EmbedBatchSize      int
	EmbedConcurrency    int
	EmbedBatchDelay     time.Duration
	EmbedMaxRetries     int
	EmbedMaxInputTokens int

	RetrievalBranchTimeout time.Duration
	RetrievalLimit         int
	AgentStageTimeout      time.Duration
	GroundingThreshold     float64

	GraphSyncRelayInterval time.Duration
	S3Bucket               string
}

// Load reads the configuration from the process environment. Call
// util.LoadEnv first to pick up a .env file.
func Load() Config {
	return Config{
		Debug:   util.GetEnvBool("DEBUG", false),
		LogJSON: util.GetEnvString("LOG_FORMAT", "text") == "json",
		Port:    util.GetEnvString("PORT", "8080"),

		DatabaseURL: util.GetEnv("DATABASE_URL"),

		Neo4jURI:      util.GetEnv("NEO4J_URI"),
		Neo4jUser:     util.GetEnvString("NEO4J_USER", "neo4j"),
		Neo4jPassword: util.GetEnv("NEO4J_PASSWORD"),
		Neo4jDatabase: util.GetEnv("NEO4J_DATABASE"),

		AIAdapter:          util.GetEnvString("AI_ADAPTER", "openai"),
		AIChatURL:          util.GetEnv("AI_CHAT_URL"),
		AIChatKey:          util.GetEnv("AI_CHAT_KEY"),
		AIChatModel:        util.GetEnvString("AI_CHAT_MODEL", "gpt-4o-mini"),
		AIExtractModel:     util.GetEnvString("AI_CHAT_EXTRACT_MODEL", util.GetEnvString("AI_CHAT_MODEL", "gpt-4o-mini")),
		AIEmbedURL:         util.GetEnv("AI_EMBED_URL"),
		AIEmbedKey:         util.GetEnv("AI_EMBED_KEY"),
		AIEmbedModel:       util.GetEnvString("AI_EMBED_MODEL", "text-embedding-3-small"),
		AIEmbedDim:         int(util.GetEnvNumeric("AI_EMBED_DIM", common.EmbeddingDimension)),
		AIParallelRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 8)),
		AITimeout:          util.GetEnvDuration("AI_TIMEOUT", 2*time.Minute),

		MaxFileSizeMB:     int(util.GetEnvNumeric("MAX_FILE_SIZE_MB", 50)),
		AllowedExtensions: util.GetEnvList("ALLOWED_EXTENSIONS", []string{"pdf", "txt", "md", "docx", "pptx", "html", "htm"}),

		ChunkSize:    int(util.GetEnvNumeric("CHUNK_SIZE", 1000)),
		ChunkOverlap: int(util.GetEnvNumeric("CHUNK_OVERLAP", 200)),

		EmbedBatchSize:      int(util.GetEnvNumeric("EMBED_BATCH_SIZE", 16)),
		EmbedConcurrency:    int(util.GetEnvNumeric("EMBED_CONCURRENCY", 4)),
		EmbedBatchDelay:     util.GetEnvDuration("EMBED_BATCH_DELAY", 200*time.Millisecond),
		EmbedMaxRetries:     int(util.GetEnvNumeric("EMBED_MAX_RETRIES", 3)),
		EmbedMaxInputTokens: int(util.GetEnvNumeric("EMBED_MAX_INPUT_TOKENS", 8000)),

		RetrievalBranchTimeout: util.GetEnvDuration("RETRIEVAL_BRANCH_TIMEOUT", 5*time.Second),
		RetrievalLimit:         int(util.GetEnvNumeric("RETRIEVAL_LIMIT", 50)),
		AgentStageTimeout:      util.GetEnvDuration("AGENT_STAGE_TIMEOUT", 60*time.Second),
		GroundingThreshold:     util.GetEnvFloat("GROUNDING_THRESHOLD", 0.3),

		GraphSyncRelayInterval: util.GetEnvDuration("GRAPH_SYNC_RELAY_INTERVAL", 30*time.Second),
		S3Bucket:               util.GetEnv("AWS_BUCKET"),
	}
}

// MaxFileSize returns the upload ceiling in bytes.
func (c Config) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// Validate checks the configuration. Errors make the service unusable,
// warnings only disable optional parts.
func (c Config) Validate() (errs []string, warnings []string) {
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.AIEmbedDim != common.EmbeddingDimension {
		errs = append(errs, fmt.Sprintf("AI_EMBED_DIM must be %d to match the chunks.embedding column, got %d", common.EmbeddingDimension, c.AIEmbedDim))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, "CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, "CHUNK_OVERLAP must be >= 0 and smaller than CHUNK_SIZE")
	}
	if c.MaxFileSizeMB <= 0 {
		errs = append(errs, "MAX_FILE_SIZE_MB must be positive")
	}
	if len(c.AllowedExtensions) == 0 {
		errs = append(errs, "ALLOWED_EXTENSIONS must not be empty")
	}
	if c.RetrievalLimit <= 0 || c.RetrievalLimit > 50 {
		errs = append(errs, "RETRIEVAL_LIMIT must be between 1 and 50")
	}
	if c.GroundingThreshold < 0 || c.GroundingThreshold > 1 {
		errs = append(errs, "GROUNDING_THRESHOLD must be between 0 and 1")
	}
	switch strings.ToLower(c.AIAdapter) {
	case "openai", "ollama":
	default:
		errs = append(errs, fmt.Sprintf("AI_ADAPTER must be openai or ollama, got %q", c.AIAdapter))
	}

	if c.Neo4jURI == "" {
		warnings = append(warnings, "NEO4J_URI not set, graph search and graph sync are disabled")
	}
	if strings.ToLower(c.AIAdapter) == "openai" && c.AIChatKey == "" {
		warnings = append(warnings, "AI_CHAT_KEY not set, agent stages will use their defaults")
	}
	if strings.ToLower(c.AIAdapter) == "openai" && c.AIEmbedKey == "" {
		warnings = append(warnings, "AI_EMBED_KEY not set, embeddings fall back to the hash embedding")
	}
	if c.S3Bucket == "" {
		warnings = append(warnings, "AWS_BUCKET not set, raw documents are not archived")
	}
	return errs, warnings
}
