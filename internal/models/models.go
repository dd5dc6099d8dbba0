// Package models defines the persisted domain types of the memory engine:
// banks, memory units, entities, links, mental models, and the other rows
// described by the storage schema.
package models

import "time"

// FactType classifies a memory unit along the raw-fact/observation axis.
type FactType string

const (
	FactTypeWorld       FactType = "world"
	FactTypeExperience  FactType = "experience"
	FactTypeObservation FactType = "observation"
)

// FactKind distinguishes event-shaped facts from plain conversational facts.
// Only meaningful for FactTypeWorld/FactTypeExperience units.
type FactKind string

const (
	FactKindEvent        FactKind = "event"
	FactKindConversation FactKind = "conversation"
)

// EntityType enumerates the canonical entity categories.
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeLocation     EntityType = "location"
	EntityTypeConcept      EntityType = "concept"
	EntityTypeEvent        EntityType = "event"
	EntityTypeOther        EntityType = "other"
)

// LinkType enumerates the edge kinds in the memory_links graph.
type LinkType string

const (
	LinkTypeTemporal LinkType = "temporal"
	LinkTypeSemantic LinkType = "semantic"
	LinkTypeEntity   LinkType = "entity"
	LinkTypeCauses   LinkType = "causes"
	LinkTypeCausedBy LinkType = "caused_by"
)

// OperationStatus enumerates async_operations lifecycle states.
type OperationStatus string

const (
	OperationPending    OperationStatus = "pending"
	OperationProcessing OperationStatus = "processing"
	OperationCompleted  OperationStatus = "completed"
	OperationFailed     OperationStatus = "failed"
)

// TagsMatch controls how a tag filter is applied against a unit's tags.
type TagsMatch string

const (
	TagsMatchAny       TagsMatch = "any"
	TagsMatchAllStrict TagsMatch = "all_strict"
)

// Disposition is the bank-level stance triple that shapes Reflect's system
// prompt. Each axis is in {1..5}; 3 is neutral.
type Disposition struct {
	Skepticism int `json:"skepticism"`
	Literalism int `json:"literalism"`
	Empathy    int `json:"empathy"`
}

// DefaultDisposition returns the neutral triple.
func DefaultDisposition() Disposition {
	return Disposition{Skepticism: 3, Literalism: 3, Empathy: 3}
}

// Bank is the tenant partition owning a persona and all downstream data.
type Bank struct {
	ID          string
	Mission     string
	Background  string
	Disposition Disposition
	Directives  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HistoryEntry is one append-only record in a MemoryUnit's observation history.
type HistoryEntry struct {
	At     time.Time `json:"at"`
	Change string    `json:"change"`
}

// MemoryUnit is the single table that stores every recorded piece of
// knowledge, per spec.md §3.
type MemoryUnit struct {
	ID         string
	BankID     string
	DocumentID *string

	Text      string
	Context   *string
	Embedding []float32

	FactType FactType
	FactKind *FactKind

	What             *string
	Who              []string
	WhenDescription  *string
	WhereDescription *string
	WhyDescription   *string

	EventDate     *time.Time
	OccurredStart *time.Time
	OccurredEnd   *time.Time
	MentionedAt   time.Time

	ProofCount       int
	SourceMemoryIDs  []string
	History          []HistoryEntry
	ConfidenceScore  *float64

	ConsolidatedAt *time.Time

	Tags     []string
	Metadata map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entity is a canonical named thing tracked within a bank.
type Entity struct {
	ID            string
	BankID        string
	CanonicalName string
	EntityType    EntityType
	MentionCount  int
	FirstSeen     time.Time
	LastSeen      time.Time
}

// MemoryLink is a directed, typed edge between two memory units.
type MemoryLink struct {
	ID       string
	BankID   string
	FromUnit string
	ToUnit   string
	LinkType LinkType
	EntityID *string
	Weight   float64
}

// EntityCooccurrence is a symmetric edge between two distinct entities,
// canonicalized so EntityID1 < EntityID2.
type EntityCooccurrence struct {
	BankID         string
	EntityID1      string
	EntityID2      string
	Count          int
	LastCooccurred time.Time
}

// AsyncOperation is a durable job record.
type AsyncOperation struct {
	ID            string
	BankID        string
	OperationType string
	Status        OperationStatus
	WorkerID      *string
	Payload       map[string]any
	Result        map[string]any
	ErrorMessage  *string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// MentalModelTrigger is the JSONB trigger payload for a mental model.
type MentalModelTrigger struct {
	RefreshAfterConsolidation bool   `json:"refresh_after_consolidation"`
	Freshness                 string `json:"freshness,omitempty"`
}

// MentalModel is a per-entity or per-theme curated summary.
type MentalModel struct {
	ID                    string
	BankID                string
	Name                  string
	Description           *string
	Content               string
	SourceQuery           *string
	Embedding             []float32
	EntityID              *string
	SourceObservationIDs  []string
	Tags                  []string
	MaxTokens             int
	Trigger               MentalModelTrigger
	LastRefreshedAt       *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Chunk is a pre-split passage of a memory unit's text, used by Reflect's
// expand tool.
type Chunk struct {
	ID        string
	UnitID    string
	Ordinal   int
	Text      string
	Embedding []float32
}
