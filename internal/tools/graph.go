package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/graph"
)

// GraphTools handles the graph tool group. The projector may be nil when
// the graph store is unreachable at startup; every handler degrades to a
// clear Unavailable error instead of crashing.
type GraphTools struct {
	base
	projector *graph.Projector
}

// NewGraphTools creates the graph tool group.
func NewGraphTools(projector *graph.Projector, defaultProject string) *GraphTools {
	return &GraphTools{base: base{defaultProject: defaultProject}, projector: projector}
}

func (t *GraphTools) ready() error {
	if t.projector == nil {
		return cwerr.E(cwerr.Unavailable, "graph store is not connected")
	}
	return nil
}

// SyncDefinition returns the graph_sync schema.
func (t *GraphTools) SyncDefinition() mcp.Tool {
	return mcp.NewTool("graph_sync",
		mcp.WithDescription("Synchronize the graph projection with the primary store. Hash-driven: unchanged entities are skipped, so back-to-back syncs write nothing. Pass full=true to erase and rebuild."),
		mcp.WithBoolean("full", mcp.Description("Erase the project subgraph and rebuild from scratch")),
		projectOption(),
	)
}

// HandleSync processes graph_sync.
func (t *GraphTools) HandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.ready(); err != nil {
		return errResult(err), nil
	}
	var (
		result graph.SyncResult
		err    error
	)
	if full, _ := req.GetArguments()["full"].(bool); full {
		result, err = t.projector.Rebuild(ctx, t.project(req))
	} else {
		result, err = t.projector.Sync(ctx, t.project(req))
	}
	if err != nil {
		return errResult(err), nil
	}
	if result.DirtyRemaining > 0 {
		return resultJSONDegraded(result, "some entities failed to project and will be retried on the next sync"), nil
	}
	return resultJSON(result), nil
}

// ImpactDefinition returns the graph_impact schema.
func (t *GraphTools) ImpactDefinition() mcp.Tool {
	return mcp.NewTool("graph_impact",
		mcp.WithDescription("Traverse the graph from an entity to find everything a change would touch, ordered by hop distance."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Entity kind (spec, task, context, object, decision, memory, term, project)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity id")),
		mcp.WithNumber("depth", mcp.Description("Traversal depth (default 2)")),
		projectOption(),
	)
}

// HandleImpact processes graph_impact.
func (t *GraphTools) HandleImpact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.ready(); err != nil {
		return errResult(err), nil
	}
	kind, err := requireString(req, "kind")
	if err != nil {
		return errResult(err), nil
	}
	id, err := requireString(req, "id")
	if err != nil {
		return errResult(err), nil
	}
	nodes, err := t.projector.Impact(ctx, t.project(req), kind, id, intArg(req, "depth", 0))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(nodes), nil
}

// ExploreDefinition returns the graph_explore schema.
func (t *GraphTools) ExploreDefinition() mcp.Tool {
	return mcp.NewTool("graph_explore",
		mcp.WithDescription("Return the neighborhood subgraph (nodes and edges) around an entity for visualization."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Entity kind")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity id")),
		mcp.WithNumber("depth", mcp.Description("Neighborhood depth (default 1)")),
		projectOption(),
	)
}

// HandleExplore processes graph_explore.
func (t *GraphTools) HandleExplore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.ready(); err != nil {
		return errResult(err), nil
	}
	kind, err := requireString(req, "kind")
	if err != nil {
		return errResult(err), nil
	}
	id, err := requireString(req, "id")
	if err != nil {
		return errResult(err), nil
	}
	subgraph, err := t.projector.Explore(ctx, t.project(req), kind, id, intArg(req, "depth", 0))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(subgraph), nil
}

// QueryDefinition returns the graph_query schema.
func (t *GraphTools) QueryDefinition() mcp.Tool {
	return mcp.NewTool("graph_query",
		mcp.WithDescription("Run a read-only Cypher query against the projection. Bounded by a 30 s timeout and a 10 000 row cap."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Cypher query")),
		mcp.WithString("params", mcp.Description("JSON object of query parameters")),
	)
}

// HandleQuery processes graph_query.
func (t *GraphTools) HandleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.ready(); err != nil {
		return errResult(err), nil
	}
	query, err := requireString(req, "query")
	if err != nil {
		return errResult(err), nil
	}
	var params map[string]any
	if raw := req.GetString("params", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return errResult(cwerr.Wrap(cwerr.InvalidArguments, err, "params must be a JSON object")), nil
		}
	}
	rows, err := t.projector.RawQuery(ctx, query, params)
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(rows), nil
}

// HyperedgesDefinition returns the graph_hyperedges schema.
func (t *GraphTools) HyperedgesDefinition() mcp.Tool {
	return mcp.NewTool("graph_hyperedges",
		mcp.WithDescription("Find high-degree nodes — the knowledge base's coupling hot spots."),
		mcp.WithNumber("min_degree", mcp.Description("Minimum degree to report (default 3)")),
		projectOption(),
	)
}

// HandleHyperedges processes graph_hyperedges.
func (t *GraphTools) HandleHyperedges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.ready(); err != nil {
		return errResult(err), nil
	}
	edges, err := t.projector.Hyperedges(ctx, t.project(req), intArg(req, "min_degree", 0))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(edges), nil
}
