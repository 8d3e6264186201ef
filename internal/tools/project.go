package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/cwa/internal/service"
)

// ProjectTools handles the project/context tool group.
type ProjectTools struct {
	base
	svc *service.Services
	// Health probes for cache_status; any may be nil (disabled subsystem).
	graphPing     service.Pinger
	embeddingPing service.Pinger
	vectorPing    service.Pinger
}

// NewProjectTools creates the project tool group.
func NewProjectTools(svc *service.Services, defaultProject string, graphPing, embeddingPing, vectorPing service.Pinger) *ProjectTools {
	return &ProjectTools{
		base:          base{defaultProject: defaultProject},
		svc:           svc,
		graphPing:     graphPing,
		embeddingPing: embeddingPing,
		vectorPing:    vectorPing,
	}
}

// GetProjectInfoDefinition returns the get_project_info schema.
func (t *ProjectTools) GetProjectInfoDefinition() mcp.Tool {
	return mcp.NewTool("get_project_info",
		mcp.WithDescription("Get the project document: name, description, and tech stack."),
		projectOption(),
	)
}

// HandleGetProjectInfo processes get_project_info.
func (t *ProjectTools) HandleGetProjectInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := t.svc.GetProjectInfo(ctx, t.project(req))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(project), nil
}

// ContextSummaryDefinition returns the get_context_summary schema.
func (t *ProjectTools) ContextSummaryDefinition() mcp.Tool {
	return mcp.NewTool("get_context_summary",
		mcp.WithDescription("One-screen digest: spec counts by status, board occupancy, and recent high-confidence observations."),
		projectOption(),
	)
}

// HandleContextSummary processes get_context_summary.
func (t *ProjectTools) HandleContextSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := t.svc.ContextSummary(ctx, t.project(req))
	if err != nil {
		return errResult(err), nil
	}
	return mcp.NewToolResultText(summary), nil
}

// TechStackDefinition returns the get_tech_stack schema.
func (t *ProjectTools) TechStackDefinition() mcp.Tool {
	return mcp.NewTool("get_tech_stack",
		mcp.WithDescription("Get the project's ordered tech-stack tags."),
		projectOption(),
	)
}

// HandleTechStack processes get_tech_stack.
func (t *ProjectTools) HandleTechStack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := t.svc.GetProjectInfo(ctx, t.project(req))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(map[string]any{"tech_stack": project.TechStack}), nil
}

// CacheStatusDefinition returns the cache_status schema.
func (t *ProjectTools) CacheStatusDefinition() mcp.Tool {
	return mcp.NewTool("cache_status",
		mcp.WithDescription("Report connectivity of the primary store and every derived service."),
	)
}

// HandleCacheStatus processes cache_status.
func (t *ProjectTools) HandleCacheStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := service.CacheStatus{
		PrimaryStore: service.StatusOf(ctx, t.svc.Store),
		GraphStore:   service.StatusOf(ctx, t.graphPing),
		VectorStore:  service.StatusOf(ctx, t.vectorPing),
		Embedding:    service.StatusOf(ctx, t.embeddingPing),
	}
	return resultJSON(status), nil
}
