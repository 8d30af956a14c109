package config

import (
	"slices"
	"strings"
	"testing"
	"time"

	oai "github.com/bio-nexus/backend/pkg/ai/ollama"
	gai "github.com/bio-nexus/backend/pkg/ai/openai"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bionexus")
	t.Setenv("EMBED_BATCH_DELAY", "350")

	cfg := Load()
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Fatalf("expected 1000/200 chunking, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.MaxFileSize() != 50*1024*1024 {
		t.Fatalf("expected 50MB ceiling, got %d", cfg.MaxFileSize())
	}
	if cfg.EmbedBatchDelay != 350*time.Millisecond {
		t.Fatalf("expected bare number read as ms, got %v", cfg.EmbedBatchDelay)
	}
	if cfg.GroundingThreshold != 0.3 {
		t.Fatalf("expected grounding threshold 0.3, got %v", cfg.GroundingThreshold)
	}
	if !slices.Contains(cfg.AllowedExtensions, "pdf") {
		t.Fatalf("expected pdf to be allowed, got %v", cfg.AllowedExtensions)
	}

	if cfg.LogJSON {
		t.Fatal("expected text logs by default")
	}

	errs, _ := cfg.Validate()
	if len(errs) != 0 {
		t.Fatalf("expected valid default config, got %v", errs)
	}

	t.Setenv("LOG_FORMAT", "json")
	if !Load().LogJSON {
		t.Fatal("expected LOG_FORMAT=json to select JSON logs")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"MissingDatabase", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"WrongDimension", func(c *Config) { c.AIEmbedDim = 768 }, "AI_EMBED_DIM"},
		{"OverlapTooLarge", func(c *Config) { c.ChunkOverlap = c.ChunkSize }, "CHUNK_OVERLAP"},
		{"UnknownAdapter", func(c *Config) { c.AIAdapter = "bedrock" }, "AI_ADAPTER"},
		{"LimitTooLarge", func(c *Config) { c.RetrievalLimit = 51 }, "RETRIEVAL_LIMIT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/bionexus")
			cfg := Load()
			tc.mutate(&cfg)
			errs, _ := cfg.Validate()
			found := false
			for _, e := range errs {
				if strings.Contains(e, tc.wantErr) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected an error mentioning %s, got %v", tc.wantErr, errs)
			}
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	cfg := Config{
		DatabaseURL:        "postgres://x",
		AIAdapter:          "openai",
		AIEmbedDim:         1536,
		ChunkSize:          1000,
		ChunkOverlap:       200,
		MaxFileSizeMB:      50,
		AllowedExtensions:  []string{"pdf"},
		RetrievalLimit:     50,
		GroundingThreshold: 0.3,
	}
	errs, warnings := cfg.Validate()
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(warnings) != 4 {
		t.Fatalf("expected 4 warnings for missing optional services, got %v", warnings)
	}
}

func TestNewAIClient_Adapter(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bionexus")
	cfg := Load()

	cfg.AIAdapter = "OpenAI"
	client, err := cfg.NewAIClient()
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, ok := client.(*gai.OpenAIClient); !ok {
		t.Fatalf("expected an OpenAI client, got %T", client)
	}

	cfg.AIAdapter = "ollama"
	cfg.AIChatURL = "http://127.0.0.1:11434"
	client, err = cfg.NewAIClient()
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, ok := client.(*oai.OllamaClient); !ok {
		t.Fatalf("expected an Ollama client, got %T", client)
	}

	cfg.AIChatURL = "://bad"
	if _, err := cfg.NewAIClient(); err == nil {
		t.Fatal("expected an error for a malformed Ollama URL")
	}
}

func TestNewEmbedder_UsesDeploymentDimension(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bionexus")
	cfg := Load()
	if d := cfg.NewEmbedder(nil).Dimension(); d != cfg.AIEmbedDim {
		t.Fatalf("expected dimension %d, got %d", cfg.AIEmbedDim, d)
	}
}
