package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/cwa/internal/service"
	"github.com/HendryAvila/cwa/internal/store"
)

// SpecTools handles the spec tool group.
type SpecTools struct {
	base
	svc *service.Services
}

// NewSpecTools creates the spec tool group.
func NewSpecTools(svc *service.Services, defaultProject string) *SpecTools {
	return &SpecTools{base: base{defaultProject: defaultProject}, svc: svc}
}

// GetSpecDefinition returns the get_spec schema.
func (t *SpecTools) GetSpecDefinition() mcp.Tool {
	return mcp.NewTool("get_spec",
		mcp.WithDescription("Get a specification by id, including its acceptance criteria and dependencies."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Spec id")),
		projectOption(),
	)
}

// HandleGetSpec processes get_spec.
func (t *SpecTools) HandleGetSpec(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return errResult(err), nil
	}
	spec, err := t.svc.GetSpec(ctx, t.project(req), id)
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(spec), nil
}

// ListSpecsDefinition returns the list_specs schema.
func (t *SpecTools) ListSpecsDefinition() mcp.Tool {
	return mcp.NewTool("list_specs",
		mcp.WithDescription("List all specifications in creation order, optionally filtered by status."),
		mcp.WithString("status", mcp.Description("Filter to one status"), mcp.Enum(store.SpecStatuses...)),
		projectOption(),
	)
}

// HandleListSpecs processes list_specs.
func (t *SpecTools) HandleListSpecs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	specs, err := t.svc.ListSpecs(ctx, t.project(req))
	if err != nil {
		return errResult(err), nil
	}
	if status := req.GetString("status", ""); status != "" {
		filtered := specs[:0]
		for _, spec := range specs {
			if spec.Status == status {
				filtered = append(filtered, spec)
			}
		}
		specs = filtered
	}
	return resultJSON(specs), nil
}

// CreateSpecDefinition returns the create_spec schema.
func (t *SpecTools) CreateSpecDefinition() mcp.Tool {
	return mcp.NewTool("create_spec",
		mcp.WithDescription("Create a specification in draft status with ordered acceptance criteria."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Spec title")),
		mcp.WithString("description", mcp.Description("What the spec covers")),
		mcp.WithString("priority", mcp.Description("low, medium, high, or critical"), mcp.Enum(store.Priorities...)),
		mcp.WithArray("acceptance_criteria", mcp.Description("Ordered acceptance criteria"), mcp.Items(stringItems())),
		mcp.WithArray("dependencies", mcp.Description("Ids of specs this one depends on"), mcp.Items(stringItems())),
		mcp.WithString("context_id", mcp.Description("Owning bounded context id")),
		projectOption(),
	)
}

// HandleCreateSpec processes create_spec.
func (t *SpecTools) HandleCreateSpec(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := requireString(req, "title")
	if err != nil {
		return errResult(err), nil
	}
	spec, err := t.svc.CreateSpec(ctx, t.project(req), store.CreateSpecParams{
		Title:              title,
		Description:        req.GetString("description", ""),
		Priority:           req.GetString("priority", ""),
		AcceptanceCriteria: stringSliceArg(req, "acceptance_criteria"),
		Dependencies:       stringSliceArg(req, "dependencies"),
		ContextID:          req.GetString("context_id", ""),
	})
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(spec), nil
}

// UpdateSpecStatusDefinition returns the update_spec_status schema.
func (t *SpecTools) UpdateSpecStatusDefinition() mcp.Tool {
	return mcp.NewTool("update_spec_status",
		mcp.WithDescription("Move a spec through its lifecycle. Archiving fails while tasks depend on the spec."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Spec id")),
		mcp.WithString("status", mcp.Required(), mcp.Description("New status"), mcp.Enum(store.SpecStatuses...)),
		projectOption(),
	)
}

// HandleUpdateSpecStatus processes update_spec_status.
func (t *SpecTools) HandleUpdateSpecStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return errResult(err), nil
	}
	status, err := requireString(req, "status")
	if err != nil {
		return errResult(err), nil
	}
	spec, err := t.svc.UpdateSpecStatus(ctx, t.project(req), id, status)
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(spec), nil
}

// AddCriteriaDefinition returns the add_acceptance_criteria schema.
func (t *SpecTools) AddCriteriaDefinition() mcp.Tool {
	return mcp.NewTool("add_acceptance_criteria",
		mcp.WithDescription("Append acceptance criteria to a spec."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Spec id")),
		mcp.WithArray("criteria", mcp.Required(), mcp.Description("Criteria to append"), mcp.Items(stringItems())),
		projectOption(),
	)
}

// HandleAddCriteria processes add_acceptance_criteria.
func (t *SpecTools) HandleAddCriteria(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return errResult(err), nil
	}
	spec, err := t.svc.AddAcceptanceCriteria(ctx, t.project(req), id, stringSliceArg(req, "criteria"))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(spec), nil
}

// ValidateSpecDefinition returns the validate_spec schema.
func (t *SpecTools) ValidateSpecDefinition() mcp.Tool {
	return mcp.NewTool("validate_spec",
		mcp.WithDescription("Check a spec for completeness and verifiable acceptance criteria. Advisory; never mutates."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Spec id")),
		projectOption(),
	)
}

// HandleValidateSpec processes validate_spec.
func (t *SpecTools) HandleValidateSpec(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return errResult(err), nil
	}
	issues, err := t.svc.ValidateSpec(ctx, t.project(req), id)
	if err != nil {
		return errResult(err), nil
	}
	verdict := "PASS"
	if len(issues) > 0 {
		verdict = "FAIL"
	}
	return resultJSON(map[string]any{
		"verdict": verdict,
		"issues":  issues,
		"summary": strings.TrimSpace(verdictSummary(len(issues))),
	}), nil
}

func verdictSummary(issues int) string {
	if issues == 0 {
		return "spec is complete and verifiable"
	}
	return "spec has issues to resolve before acceptance"
}
