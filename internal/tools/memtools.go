package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/cwa/internal/memory"
	"github.com/HendryAvila/cwa/internal/store"
)

// MemoryTools handles the memory/observation tool group.
type MemoryTools struct {
	base
	mem *memory.Service
}

// NewMemoryTools creates the memory tool group.
func NewMemoryTools(mem *memory.Service, defaultProject string) *MemoryTools {
	return &MemoryTools{base: base{defaultProject: defaultProject}, mem: mem}
}

// MemoryAddDefinition returns the memory_add schema.
func (t *MemoryTools) MemoryAddDefinition() mcp.Tool {
	return mcp.NewTool("memory_add",
		mcp.WithDescription("Save a memory nugget (preference, decision, fact, or pattern). Fresh memories start at confidence 0.8."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Memory kind"), mcp.Enum(store.MemoryKinds...)),
		mcp.WithString("content", mcp.Required(), mcp.Description("The memory content")),
		projectOption(),
	)
}

// HandleMemoryAdd processes memory_add.
func (t *MemoryTools) HandleMemoryAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := requireString(req, "kind")
	if err != nil {
		return errResult(err), nil
	}
	content, err := requireString(req, "content")
	if err != nil {
		return errResult(err), nil
	}
	saved, err := t.mem.Add(ctx, t.project(req), kind, content)
	if err != nil {
		return errResult(err), nil
	}
	if saved.EmbeddingID == "" {
		return resultJSONDegraded(saved, "embedding deferred; memory is keyword-searchable only until the pending pass runs"), nil
	}
	return resultJSON(saved), nil
}

// ObserveDefinition returns the observe schema.
func (t *MemoryTools) ObserveDefinition() mcp.Tool {
	return mcp.NewTool("observe",
		mcp.WithDescription("Record a structured development observation: what happened, the narrative, key facts, and files touched."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Observation kind"), mcp.Enum(store.ObsKinds...)),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short searchable title")),
		mcp.WithString("narrative", mcp.Description("What happened and why")),
		mcp.WithArray("facts", mcp.Description("Key facts worth preserving"), mcp.Items(stringItems())),
		mcp.WithArray("files_modified", mcp.Description("Files changed"), mcp.Items(stringItems())),
		mcp.WithArray("files_read", mcp.Description("Files consulted"), mcp.Items(stringItems())),
		mcp.WithString("session_id", mcp.Description("Session this belongs to")),
		mcp.WithString("related_entity_kind", mcp.Description("Related entity kind (spec, task, ...)")),
		mcp.WithString("related_entity_id", mcp.Description("Related entity id")),
		projectOption(),
	)
}

// HandleObserve processes observe.
func (t *MemoryTools) HandleObserve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := requireString(req, "kind")
	if err != nil {
		return errResult(err), nil
	}
	title, err := requireString(req, "title")
	if err != nil {
		return errResult(err), nil
	}
	obs, err := t.mem.Observe(ctx, t.project(req), store.CreateObservationParams{
		SessionID:         req.GetString("session_id", ""),
		Kind:              kind,
		Title:             title,
		Narrative:         req.GetString("narrative", ""),
		Facts:             stringSliceArg(req, "facts"),
		FilesModified:     stringSliceArg(req, "files_modified"),
		FilesRead:         stringSliceArg(req, "files_read"),
		RelatedEntityKind: req.GetString("related_entity_kind", ""),
		RelatedEntityID:   req.GetString("related_entity_id", ""),
	})
	if err != nil {
		return errResult(err), nil
	}
	if obs.EmbeddingID == "" {
		return resultJSONDegraded(obs, "embedding deferred; observation is keyword-searchable only until the pending pass runs"), nil
	}
	return resultJSON(obs), nil
}

// TimelineDefinition returns the memory_timeline schema.
func (t *MemoryTools) TimelineDefinition() mcp.Tool {
	return mcp.NewTool("memory_timeline",
		mcp.WithDescription("Browse observations cheaply: compact rows with id, kind, title, confidence, and timestamp. Fetch full records with memory_get."),
		mcp.WithNumber("days", mcp.Description("Only observations from the last N days")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (default 50)")),
		projectOption(),
	)
}

// HandleTimeline processes memory_timeline.
func (t *MemoryTools) HandleTimeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := t.mem.Timeline(ctx, t.project(req), intArg(req, "days", 0), int64(intArg(req, "limit", 0)))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(rows), nil
}

// MemoryGetDefinition returns the memory_get schema.
func (t *MemoryTools) MemoryGetDefinition() mcp.Tool {
	return mcp.NewTool("memory_get",
		mcp.WithDescription("Fetch full observation records — narrative, facts, and file lists — for specific ids found via memory_timeline or search."),
		mcp.WithArray("ids", mcp.Required(), mcp.Description("Observation ids"), mcp.Items(stringItems())),
		projectOption(),
	)
}

// HandleMemoryGet processes memory_get.
func (t *MemoryTools) HandleMemoryGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	observations, err := t.mem.Get(ctx, t.project(req), stringSliceArg(req, "ids"))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(observations), nil
}

// SemanticSearchDefinition returns the memory_semantic_search schema.
func (t *MemoryTools) SemanticSearchDefinition() mcp.Tool {
	return mcp.NewTool("memory_semantic_search",
		mcp.WithDescription("Search observations by meaning using vector similarity."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language query")),
		mcp.WithNumber("top_k", mcp.Description("Maximum results (default 10)")),
		projectOption(),
	)
}

// HandleSemanticSearch processes memory_semantic_search.
func (t *MemoryTools) HandleSemanticSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := requireString(req, "query")
	if err != nil {
		return errResult(err), nil
	}
	hits, err := t.mem.SemanticSearch(ctx, t.project(req), "observation", query, intArg(req, "top_k", 10))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(hits), nil
}

// HybridSearchDefinition returns the hybrid_search schema.
func (t *MemoryTools) HybridSearchDefinition() mcp.Tool {
	return mcp.NewTool("hybrid_search",
		mcp.WithDescription("Rank-fuse semantic and keyword hits: alpha*vector + (1-alpha)*keyword, default alpha 0.7."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query text")),
		mcp.WithNumber("alpha", mcp.Description("Blend weight in [0,1]; 1 = pure semantic, 0 = pure keyword")),
		mcp.WithNumber("top_k", mcp.Description("Maximum results (default 10)")),
		projectOption(),
	)
}

// HandleHybridSearch processes hybrid_search.
func (t *MemoryTools) HandleHybridSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := requireString(req, "query")
	if err != nil {
		return errResult(err), nil
	}
	hits, err := t.mem.HybridSearch(ctx, t.project(req), query, floatArg(req, "alpha", -1), intArg(req, "top_k", 10))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(hits), nil
}

// SearchMemoryDefinition returns the search_memory schema (keyword mode).
func (t *MemoryTools) SearchMemoryDefinition() mcp.Tool {
	return mcp.NewTool("search_memory",
		mcp.WithDescription("Keyword search over observations. Works even when the embedding service is down."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query terms")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
		projectOption(),
	)
}

// HandleSearchMemory processes search_memory.
func (t *MemoryTools) HandleSearchMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := requireString(req, "query")
	if err != nil {
		return errResult(err), nil
	}
	hits, err := t.mem.KeywordSearch(ctx, t.project(req), query, intArg(req, "limit", 10))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(hits), nil
}

// SearchAllDefinition returns the memory_search_all schema.
func (t *MemoryTools) SearchAllDefinition() mcp.Tool {
	return mcp.NewTool("memory_search_all",
		mcp.WithDescription("Search across memories and observations in one ranked list."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query text")),
		mcp.WithNumber("top_k", mcp.Description("Maximum results (default 10)")),
		projectOption(),
	)
}

// HandleSearchAll processes memory_search_all.
func (t *MemoryTools) HandleSearchAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := requireString(req, "query")
	if err != nil {
		return errResult(err), nil
	}
	hits, err := t.mem.SearchAll(ctx, t.project(req), query, intArg(req, "top_k", 10))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(hits), nil
}

// DecayDefinition returns the memory_decay schema.
func (t *MemoryTools) DecayDefinition() mcp.Tool {
	return mcp.NewTool("memory_decay",
		mcp.WithDescription("Multiply every observation's confidence by a factor in (0,1] to age out stale knowledge."),
		mcp.WithNumber("factor", mcp.Description("Decay factor (default 0.98)")),
		projectOption(),
	)
}

// HandleDecay processes memory_decay.
func (t *MemoryTools) HandleDecay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	touched, err := t.mem.Decay(ctx, t.project(req), floatArg(req, "factor", 0.98))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(map[string]int{"decayed": touched}), nil
}

// CompactDefinition returns the memory_compact schema.
func (t *MemoryTools) CompactDefinition() mcp.Tool {
	return mcp.NewTool("memory_compact",
		mcp.WithDescription("Physically delete memories and observations below a confidence threshold from the primary, vector, and graph stores."),
		mcp.WithNumber("min_confidence", mcp.Description("Deletion threshold (default 0.3)")),
		projectOption(),
	)
}

// HandleCompact processes memory_compact.
func (t *MemoryTools) HandleCompact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := t.mem.Compact(ctx, t.project(req), floatArg(req, "min_confidence", 0))
	if err != nil {
		return errResult(err), nil
	}
	if result.Degraded {
		return resultJSONDegraded(result, "a derived store missed some evictions; run graph_sync to reconcile"), nil
	}
	return resultJSON(result), nil
}

// SummarizeDefinition returns the memory_summarize schema.
func (t *MemoryTools) SummarizeDefinition() mcp.Tool {
	return mcp.NewTool("memory_summarize",
		mcp.WithDescription("Compress the most recent N observations into a stored summary with an embedding."),
		mcp.WithNumber("count", mcp.Required(), mcp.Description("How many recent observations to fold in")),
		projectOption(),
	)
}

// HandleSummarize processes memory_summarize.
func (t *MemoryTools) HandleSummarize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := t.mem.Summarize(ctx, t.project(req), intArg(req, "count", 0))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(summary), nil
}

// NextStepsDefinition returns the get_next_steps schema.
func (t *MemoryTools) NextStepsDefinition() mcp.Tool {
	return mcp.NewTool("get_next_steps",
		mcp.WithDescription("What to work on next: the in-progress task, top todo candidates, specs with uncovered criteria, and recent highlights."),
		projectOption(),
	)
}

// HandleNextSteps processes get_next_steps.
func (t *MemoryTools) HandleNextSteps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	steps, err := t.mem.GetNextSteps(ctx, t.project(req))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(steps), nil
}
