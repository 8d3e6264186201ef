// Package resources implements the MCP resource handlers.
//
// Resources are read-only projections addressed by project:// URIs. Each
// handler serializes the current primary-store state as JSON (or markdown
// for prose surfaces like the constitution).
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/cwa/internal/config"
	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/service"
)

// Handler serves every project:// resource.
type Handler struct {
	svc         *service.Services
	files       config.Store
	project     string
	projectRoot string
}

// NewHandler creates the resource handler.
func NewHandler(svc *service.Services, files config.Store, project, projectRoot string) *Handler {
	return &Handler{svc: svc, files: files, project: project, projectRoot: projectRoot}
}

// Definition describes one resource and its reader.
type Definition struct {
	Resource mcp.Resource
	Handle   func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error)
}

// All returns every resource definition for registration.
func (h *Handler) All() []Definition {
	jsonResource := func(uri, name, description string, load func(ctx context.Context) (any, error)) Definition {
		return Definition{
			Resource: mcp.NewResource(uri, name,
				mcp.WithResourceDescription(description),
				mcp.WithMIMEType("application/json"),
			),
			Handle: h.jsonHandler(load),
		}
	}

	return []Definition{
		jsonResource("project://info", "Project Info",
			"Project name, description, and tech stack",
			func(ctx context.Context) (any, error) { return h.svc.GetProjectInfo(ctx, h.project) }),

		jsonResource("project://current-spec", "Current Spec",
			"The most recently updated active spec",
			func(ctx context.Context) (any, error) { return h.currentSpec(ctx) }),

		jsonResource("project://kanban-board", "Kanban Board",
			"Columns with limits and tasks in position order",
			func(ctx context.Context) (any, error) { return h.svc.GetBoard(ctx, h.project) }),

		jsonResource("project://domain-model", "Domain Model",
			"Bounded contexts with their domain objects",
			func(ctx context.Context) (any, error) { return h.svc.GetDomainModel(ctx, h.project) }),

		jsonResource("project://decisions", "Decisions",
			"Architectural decisions in creation order",
			func(ctx context.Context) (any, error) { return h.svc.ListDecisions(ctx, h.project) }),

		jsonResource("project://specs", "Specs",
			"All specifications in creation order",
			func(ctx context.Context) (any, error) { return h.svc.ListSpecs(ctx, h.project) }),

		jsonResource("project://tasks", "Tasks",
			"All tasks in creation order",
			func(ctx context.Context) (any, error) { return h.svc.ListTasks(ctx, h.project, "") }),

		jsonResource("project://glossary", "Glossary",
			"The ubiquitous language, alphabetically",
			func(ctx context.Context) (any, error) { return h.svc.GetGlossary(ctx, h.project) }),

		jsonResource("project://wip-status", "WIP Status",
			"Column occupancy against WIP limits",
			func(ctx context.Context) (any, error) { return h.svc.WipStatus(ctx, h.project) }),

		jsonResource("project://context-map", "Context Map",
			"Context relationships with cycle warnings",
			func(ctx context.Context) (any, error) { return h.svc.GetContextMap(ctx, h.project) }),

		jsonResource("project://tech-stack", "Tech Stack",
			"Ordered tech-stack tags",
			func(ctx context.Context) (any, error) {
				project, err := h.svc.GetProjectInfo(ctx, h.project)
				if err != nil {
					return nil, err
				}
				return map[string]any{"tech_stack": project.TechStack}, nil
			}),

		{
			Resource: mcp.NewResource("project://constitution", "Constitution",
				mcp.WithResourceDescription("The free-form project constitution"),
				mcp.WithMIMEType("text/markdown"),
			),
			Handle: h.handleConstitution,
		},
	}
}

// jsonHandler wraps a loader into a resource reader.
func (h *Handler) jsonHandler(load func(ctx context.Context) (any, error)) func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		v, err := load(ctx)
		if err != nil {
			return errorResource(req.Params.URI, err), nil
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling resource: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	}
}

// currentSpec picks the most recently updated non-archived active spec.
func (h *Handler) currentSpec(ctx context.Context) (any, error) {
	specs, err := h.svc.ListSpecs(ctx, h.project)
	if err != nil {
		return nil, err
	}
	var currentIdx = -1
	for i, spec := range specs {
		if spec.Status != "active" && spec.Status != "accepted" && spec.Status != "in_review" {
			continue
		}
		if currentIdx < 0 || spec.UpdatedAt > specs[currentIdx].UpdatedAt {
			currentIdx = i
		}
	}
	if currentIdx < 0 {
		return nil, cwerr.E(cwerr.NotFound, "no active spec")
	}
	return specs[currentIdx], nil
}

// handleConstitution serves .cwa/constitution.md.
func (h *Handler) handleConstitution(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	content, err := h.files.LoadConstitution(h.projectRoot)
	if err != nil {
		return errorResource(req.Params.URI, err), nil
	}
	if content == "" {
		content = "# Constitution\n\n(no constitution written yet)\n"
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     content,
		},
	}, nil
}

// errorResource serializes a failure into the resource body with its
// taxonomy code so agents can branch on it.
func errorResource(uri string, err error) []mcp.ResourceContents {
	payload := map[string]any{
		"code":    cwerr.JSONRPCCode(err),
		"kind":    string(cwerr.KindOf(err)),
		"message": err.Error(),
	}
	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		data = []byte(fmt.Sprintf(`{"message": %q}`, err.Error()))
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}
}
