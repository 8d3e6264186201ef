package store

// Entity documents. Each carries a Version counter advanced on every
// mutation (the optimistic-CAS token) and RFC 3339 timestamps. Documents
// are serialized as JSON into the "data" field of their hash key.

// Project is the namespace root.
type Project struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	TechStack   []string `json:"tech_stack,omitempty"`
	Version     int64    `json:"version"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// Spec statuses and priorities.
var (
	SpecStatuses   = []string{"draft", "active", "in_review", "accepted", "completed", "archived"}
	Priorities     = []string{"low", "medium", "high", "critical"}
	TaskStatuses   = []string{"backlog", "todo", "in_progress", "review", "done"}
	MemoryKinds    = []string{"preference", "decision", "fact", "pattern"}
	ObsKinds       = []string{"bugfix", "feature", "refactor", "discovery", "decision", "change", "insight"}
	DecisionStates = []string{"proposed", "accepted", "superseded", "deprecated"}
	ObjectKinds    = []string{"entity", "value_object", "aggregate", "service", "event"}
)

// Spec is a specification with ordered acceptance criteria.
type Spec struct {
	ID                 string   `json:"id"`
	ProjectID          string   `json:"project_id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Status             string   `json:"status"`
	Priority           string   `json:"priority"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	Dependencies       []string `json:"dependencies,omitempty"`
	ContextID          string   `json:"context_id,omitempty"`
	Version            int64    `json:"version"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

// Task is a kanban card. Position orders it within its column.
type Task struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	SpecID      string `json:"spec_id,omitempty"`
	// CriterionIndex links a generated task to the acceptance criterion it
	// implements; -1 for tasks created directly. generate_tasks idempotence
	// is keyed on (SpecID, CriterionIndex).
	CriterionIndex int    `json:"criterion_index"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
	Position       int64  `json:"position"`
	Version        int64  `json:"version"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	StartedAt      string `json:"started_at,omitempty"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// BoundedContext is a named region of the domain model. Upstream and
// downstream relationships may form cycles; cycles are detected only when
// rendering the context map.
type BoundedContext struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Upstream    []string `json:"upstream,omitempty"`
	Downstream  []string `json:"downstream,omitempty"`
	Version     int64    `json:"version"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// DomainObject belongs to exactly one bounded context.
type DomainObject struct {
	ID         string   `json:"id"`
	ProjectID  string   `json:"project_id"`
	ContextID  string   `json:"context_id"`
	Kind       string   `json:"kind"`
	Name       string   `json:"name"`
	Invariants []string `json:"invariants,omitempty"`
	Properties []string `json:"properties,omitempty"`
	Version    int64    `json:"version"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

// Decision is an architectural decision record. Append-only in spirit:
// superseding writes a new decision pointing at the old one.
type Decision struct {
	ID           string   `json:"id"`
	ProjectID    string   `json:"project_id"`
	Title        string   `json:"title"`
	Rationale    string   `json:"rationale,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
	Status       string   `json:"status"`
	Supersedes   string   `json:"supersedes,omitempty"`
	SpecIDs      []string `json:"spec_ids,omitempty"`
	Version      int64    `json:"version"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// GlossaryTerm is one entry of the ubiquitous language.
type GlossaryTerm struct {
	Term       string   `json:"term"`
	Definition string   `json:"definition"`
	Aliases    []string `json:"aliases,omitempty"`
	ContextID  string   `json:"context_id,omitempty"`
	Version    int64    `json:"version"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

// Memory is an unstructured knowledge nugget with a confidence scalar.
type Memory struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Kind        string  `json:"kind"`
	Content     string  `json:"content"`
	Confidence  float64 `json:"confidence"`
	EmbeddingID string  `json:"embedding_id,omitempty"`
	Version     int64   `json:"version"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// Observation is a structured record of a development event.
type Observation struct {
	ID                string   `json:"id"`
	ProjectID         string   `json:"project_id"`
	SessionID         string   `json:"session_id,omitempty"`
	Kind              string   `json:"kind"`
	Title             string   `json:"title"`
	Narrative         string   `json:"narrative,omitempty"`
	Facts             []string `json:"facts,omitempty"`
	Concepts          []string `json:"concepts,omitempty"`
	FilesModified     []string `json:"files_modified,omitempty"`
	FilesRead         []string `json:"files_read,omitempty"`
	RelatedEntityKind string   `json:"related_entity_kind,omitempty"`
	RelatedEntityID   string   `json:"related_entity_id,omitempty"`
	Confidence        float64  `json:"confidence"`
	EmbeddingID       string   `json:"embedding_id,omitempty"`
	Version           int64    `json:"version"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

// ObservationIndex is the compact timeline row (progressive disclosure:
// cheap browse tier).
type ObservationIndex struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"created_at"`
}

// Summary is a compressed digest over a window of observations.
type Summary struct {
	ID                string `json:"id"`
	ProjectID         string `json:"project_id"`
	Content           string `json:"content"`
	ObservationsCount int    `json:"observations_count"`
	TimeRangeStart    string `json:"time_range_start,omitempty"`
	TimeRangeEnd      string `json:"time_range_end,omitempty"`
	EmbeddingID       string `json:"embedding_id,omitempty"`
	Version           int64  `json:"version"`
	CreatedAt         string `json:"created_at"`
}

// SyncState tracks the graph projector's progress per entity.
type SyncState struct {
	LastSyncedAt string `json:"last_synced_at"`
	SyncVersion  int64  `json:"sync_version"`
	ContentHash  string `json:"content_hash"`
}

// ValidEnum reports whether value is one of the allowed values.
func ValidEnum(value string, allowed []string) bool {
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}
