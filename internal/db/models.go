package db

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

type Paper struct {
	ID              string
	Title           string
	Authors         []string
	PublicationYear pgtype.Int4
	Source          string
	Abstract        string
	Keywords        []string
	Content         string
	FileName        string
	FileSize        int64
	PageCount       int32
	QualityScore    float64
	ContentHash     string
	StorageKey      string
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

type Chunk struct {
	ID          string
	PaperID     string
	Content     string
	SectionType string
	ChunkIndex  int32
	StartChar   int32
	EndChar     int32
	Embedding   *pgvector.Vector
}

type GraphSyncJob struct {
	ID        string
	PaperID   string
	Status    string
	Attempts  int32
	LastError string
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type Session struct {
	ID          string
	CreatedAt   pgtype.Timestamptz
	LastUpdated pgtype.Timestamptz
}

type ConversationTurn struct {
	ID             string
	SessionID      string
	Role           string
	Content        string
	Sources        []byte
	Grounded       bool
	GroundingRatio float64
	CreatedAt      pgtype.Timestamptz
}

type RiskAnalysis struct {
	ID              string
	MissionProfile  []byte
	OverallScore    float64
	Categories      []byte
	Recommendations []byte
	Confidence      float64
	CreatedAt       pgtype.Timestamptz
}
