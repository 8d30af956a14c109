package common

import "time"

// EmbeddingDimension is the single vector size used by a deployment. The
// chunks.embedding column is declared with the same size.
const EmbeddingDimension = 1536

// SectionType names the structural part of a paper a chunk belongs to.
type SectionType string

const (
	SectionAbstract     SectionType = "abstract"
	SectionIntroduction SectionType = "introduction"
	SectionMethods      SectionType = "methods"
	SectionResults      SectionType = "results"
	SectionDiscussion   SectionType = "discussion"
	SectionConclusion   SectionType = "conclusion"
	SectionOther        SectionType = "other"
)

// FileMetadata describes the uploaded document a paper was extracted from.
type FileMetadata struct {
	FileName     string  `json:"file_name"`
	FileSize     int64   `json:"file_size"`
	PageCount    int     `json:"page_count"`
	QualityScore float64 `json:"quality_score"`
	ContentHash  string  `json:"content_hash"`
	StorageKey   string  `json:"storage_key,omitempty"`
}

// Paper is one ingested research document. A paper is the record of truth
// for everything derived from it: chunks reference it, graph nodes mirror it.
//
// Papers are immutable once written, apart from UpdatedAt.
type Paper struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Authors         []string     `json:"authors"`
	PublicationYear int          `json:"publication_year,omitempty"`
	Source          string       `json:"source"`
	Abstract        string       `json:"abstract"`
	Keywords        []string     `json:"keywords"`
	FullText        string       `json:"full_text,omitempty"`
	File            FileMetadata `json:"file"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Section is a header-delimited span of the normalized paper text.
// Start and End are rune offsets.
type Section struct {
	Type    SectionType `json:"type"`
	Heading string      `json:"heading"`
	Start   int         `json:"start"`
	End     int         `json:"end"`
	Text    string      `json:"text"`
}

// Chunk is a contiguous window of paper text used for retrieval. Index is
// contiguous from 0 within a paper and Start/End are rune offsets into the
// normalized text. Embedding is nil until generated.
type Chunk struct {
	ID          string      `json:"id"`
	PaperID     string      `json:"paper_id"`
	Content     string      `json:"content"`
	SectionType SectionType `json:"section_type"`
	Index       int         `json:"chunk_index"`
	Start       int         `json:"start_char"`
	End         int         `json:"end_char"`
	Embedding   []float32   `json:"-"`
}

// EntityType is the closed set of graph entity categories.
type EntityType string

const (
	EntityBiologicalProcess   EntityType = "biological_process"
	EntityAnatomicalStructure EntityType = "anatomical_structure"
	EntityChemical            EntityType = "chemical"
	EntityEnvironment         EntityType = "environment"
	EntityDevice              EntityType = "device"
	EntityMeasurement         EntityType = "measurement"
	EntityOrganism            EntityType = "organism"
)

// EntityTypes lists every valid EntityType in a stable order.
var EntityTypes = []EntityType{
	EntityBiologicalProcess,
	EntityAnatomicalStructure,
	EntityChemical,
	EntityEnvironment,
	EntityDevice,
	EntityMeasurement,
	EntityOrganism,
}

// Valid reports whether t belongs to the closed entity type set.
func (t EntityType) Valid() bool {
	for _, v := range EntityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// GraphEntity is a node of the derived knowledge graph. Entities are merged
// by (Name, Type).
type GraphEntity struct {
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	Description string     `json:"description"`
	Confidence  float64    `json:"confidence"`
}

// Key returns the merge key of the entity.
func (e GraphEntity) Key() string {
	return string(e.Type) + "|" + e.Name
}

// GraphRelationship is a typed edge between two entities. Edges are keyed by
// (Source, Target, Label, PaperID) so re-projecting a paper is idempotent
// while evidence from different papers accumulates.
type GraphRelationship struct {
	Source     GraphEntity `json:"source"`
	Target     GraphEntity `json:"target"`
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Evidence   string      `json:"evidence"`
	PaperID    string      `json:"paper_id"`
}

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session groups the turns of one conversation.
type Session struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// SourceRef is a paper cited by an assistant turn.
type SourceRef struct {
	PaperID string  `json:"paper_id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
	Method  string  `json:"method"`
}

// ConversationTurn is an append-only message in a session.
type ConversationTurn struct {
	ID             string      `json:"id"`
	SessionID      string      `json:"session_id"`
	Role           Role        `json:"role"`
	Content        string      `json:"content"`
	Sources        []SourceRef `json:"sources,omitempty"`
	Grounded       bool        `json:"grounded"`
	GroundingRatio float64     `json:"grounding_ratio"`
	CreatedAt      time.Time   `json:"created_at"`
}

// MissionProfile describes the mission a risk analysis is run against.
type MissionProfile struct {
	Name           string   `json:"name" jsonschema_description:"Mission name"`
	DurationDays   int      `json:"duration_days" jsonschema_description:"Mission duration in days"`
	Destination    string   `json:"destination" jsonschema_description:"Mission destination, e.g. ISS, Moon, Mars"`
	CrewSize       int      `json:"crew_size" jsonschema_description:"Number of crew members"`
	RadiationLevel string   `json:"radiation_level,omitempty" jsonschema_description:"Expected radiation environment"`
	GravityLevel   string   `json:"gravity_level,omitempty" jsonschema_description:"Expected gravity environment"`
	SpecialFactors []string `json:"special_factors,omitempty" jsonschema_description:"Other mission factors"`
}

// RiskCategoryAssessment scores one risk category of a mission.
type RiskCategoryAssessment struct {
	Category    string   `json:"category"`
	Probability float64  `json:"probability"`
	Impact      float64  `json:"impact"`
	Score       float64  `json:"score"`
	Mitigations []string `json:"mitigations"`
}

// RiskAnalysisRecord is a persisted, write-once mission risk analysis.
type RiskAnalysisRecord struct {
	ID              string                   `json:"id"`
	Profile         MissionProfile           `json:"mission_profile"`
	OverallScore    float64                  `json:"overall_score"`
	Categories      []RiskCategoryAssessment `json:"categories"`
	Recommendations []string                 `json:"recommendations"`
	Confidence      float64                  `json:"confidence"`
	CreatedAt       time.Time                `json:"created_at"`
}

// GraphSyncStatus is the lifecycle state of an outbox job.
type GraphSyncStatus string

const (
	GraphSyncPending GraphSyncStatus = "pending"
	GraphSyncDone    GraphSyncStatus = "done"
	GraphSyncFailed  GraphSyncStatus = "failed"
)

// GraphSyncJob records that a committed paper still has to be projected
// into the graph store.
type GraphSyncJob struct {
	ID        string          `json:"id"`
	PaperID   string          `json:"paper_id"`
	Status    GraphSyncStatus `json:"status"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
