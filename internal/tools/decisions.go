package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/cwa/internal/service"
	"github.com/HendryAvila/cwa/internal/store"
)

// DecisionTools handles the decision tool group.
type DecisionTools struct {
	base
	svc *service.Services
}

// NewDecisionTools creates the decision tool group.
func NewDecisionTools(svc *service.Services, defaultProject string) *DecisionTools {
	return &DecisionTools{base: base{defaultProject: defaultProject}, svc: svc}
}

// AddDecisionDefinition returns the add_decision schema.
func (t *DecisionTools) AddDecisionDefinition() mcp.Tool {
	return mcp.NewTool("add_decision",
		mcp.WithDescription("Record an architectural decision with rationale and rejected alternatives. Superseding an older decision flips it to superseded."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Decision title")),
		mcp.WithString("rationale", mcp.Description("Why this was chosen")),
		mcp.WithArray("alternatives", mcp.Description("Alternatives rejected"), mcp.Items(stringItems())),
		mcp.WithString("status", mcp.Description("Decision status"), mcp.Enum(store.DecisionStates...)),
		mcp.WithString("supersedes", mcp.Description("Id of the decision this replaces")),
		mcp.WithArray("spec_ids", mcp.Description("Related spec ids"), mcp.Items(stringItems())),
		projectOption(),
	)
}

// HandleAddDecision processes add_decision.
func (t *DecisionTools) HandleAddDecision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := requireString(req, "title")
	if err != nil {
		return errResult(err), nil
	}
	decision, err := t.svc.AddDecision(ctx, t.project(req), store.CreateDecisionParams{
		Title:        title,
		Rationale:    req.GetString("rationale", ""),
		Alternatives: stringSliceArg(req, "alternatives"),
		Status:       req.GetString("status", ""),
		Supersedes:   req.GetString("supersedes", ""),
		SpecIDs:      stringSliceArg(req, "spec_ids"),
	})
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(decision), nil
}

// ListDecisionsDefinition returns the list_decisions schema.
func (t *DecisionTools) ListDecisionsDefinition() mcp.Tool {
	return mcp.NewTool("list_decisions",
		mcp.WithDescription("List architectural decisions in creation order."),
		projectOption(),
	)
}

// HandleListDecisions processes list_decisions.
func (t *DecisionTools) HandleListDecisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	decisions, err := t.svc.ListDecisions(ctx, t.project(req))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(decisions), nil
}
