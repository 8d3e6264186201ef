package store

import "fmt"

// Key schema. Every key in the primary store is produced by one of these
// builders; nothing writes free-form keys. The prefix is cwa:<project_id>:.

func prefix(project string) string {
	return fmt.Sprintf("cwa:%s:", project)
}

// ProjectKey → hash with project metadata.
func ProjectKey(project string) string { return prefix(project) + "project" }

// SpecsAllKey → sorted set of spec ids, score = creation timestamp.
func SpecsAllKey(project string) string { return prefix(project) + "specs:all" }

// SpecKey → hash with spec document.
func SpecKey(project, id string) string { return prefix(project) + "spec:" + id }

// TasksAllKey → sorted set of task ids, score = creation timestamp.
func TasksAllKey(project string) string { return prefix(project) + "tasks:all" }

// TaskKey → hash with task document plus denormalized status field.
func TaskKey(project, id string) string { return prefix(project) + "task:" + id }

// TasksByStatusKey → sorted set per column, score = intra-column position.
func TasksByStatusKey(project, status string) string {
	return prefix(project) + "tasks:by_status:" + status
}

// TasksBySpecKey → set of task ids implementing a spec.
func TasksBySpecKey(project, specID string) string {
	return prefix(project) + "tasks:spec:" + specID
}

// ContextsAllKey → set of bounded-context ids.
func ContextsAllKey(project string) string { return prefix(project) + "contexts:all" }

// ContextKey → hash with bounded-context document.
func ContextKey(project, id string) string { return prefix(project) + "context:" + id }

// ContextObjectsKey → set of domain-object ids owned by a context.
func ContextObjectsKey(project, contextID string) string {
	return prefix(project) + "context:" + contextID + ":objects"
}

// DomainObjectKey → hash with domain-object document.
func DomainObjectKey(project, id string) string { return prefix(project) + "object:" + id }

// DecisionsAllKey → sorted set of decision ids.
func DecisionsAllKey(project string) string { return prefix(project) + "decisions:all" }

// DecisionKey → hash with decision document.
func DecisionKey(project, id string) string { return prefix(project) + "decision:" + id }

// MemoriesAllKey → sorted set of memory ids.
func MemoriesAllKey(project string) string { return prefix(project) + "memories:all" }

// MemoryKey → hash with memory document.
func MemoryKey(project, id string) string { return prefix(project) + "memory:" + id }

// ObservationsAllKey → sorted set of observation ids.
func ObservationsAllKey(project string) string { return prefix(project) + "observations:all" }

// ObservationKey → hash with observation document.
func ObservationKey(project, id string) string { return prefix(project) + "observation:" + id }

// ObservationStreamKey → stream of observation appends (id, kind, title).
// The timeline reads ObservationsAllKey, not this stream.
func ObservationStreamKey(project string) string { return prefix(project) + "observations" }

// SummariesAllKey → sorted set of summary ids.
func SummariesAllKey(project string) string { return prefix(project) + "summaries:all" }

// SummaryKey → hash with summary document.
func SummaryKey(project, id string) string { return prefix(project) + "summary:" + id }

// GlossaryAllKey → set of glossary terms.
func GlossaryAllKey(project string) string { return prefix(project) + "glossary:all" }

// GlossaryKey → hash with a term definition, keyed by the term itself.
func GlossaryKey(project, term string) string { return prefix(project) + "glossary:" + term }

// KanbanWipKey → hash from column name to integer WIP limit.
func KanbanWipKey(project string) string { return prefix(project) + "kanban:wip" }

// SyncStateKey → hash with last_synced_at, sync_version, content_hash.
func SyncStateKey(project, kind, id string) string {
	return prefix(project) + "sync:" + kind + ":" + id
}

// PendingEmbeddingsKey → set of "<kind>:<id>" entries awaiting embeddings.
func PendingEmbeddingsKey(project string) string { return prefix(project) + "pending_embeddings" }

// EventsChannel → the pub/sub channel carrying typed change events.
func EventsChannel(project string) string { return prefix(project) + "events" }
