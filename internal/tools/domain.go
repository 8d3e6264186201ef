package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/cwa/internal/service"
	"github.com/HendryAvila/cwa/internal/store"
)

// DomainTools handles the domain-model tool group.
type DomainTools struct {
	base
	svc *service.Services
}

// NewDomainTools creates the domain tool group.
func NewDomainTools(svc *service.Services, defaultProject string) *DomainTools {
	return &DomainTools{base: base{defaultProject: defaultProject}, svc: svc}
}

// CreateContextDefinition returns the create_context schema.
func (t *DomainTools) CreateContextDefinition() mcp.Tool {
	return mcp.NewTool("create_context",
		mcp.WithDescription("Create a bounded context. Names are unique per project."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Context name")),
		mcp.WithString("description", mcp.Description("What lives inside this context")),
		projectOption(),
	)
}

// HandleCreateContext processes create_context.
func (t *DomainTools) HandleCreateContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireString(req, "name")
	if err != nil {
		return errResult(err), nil
	}
	bc, err := t.svc.CreateContext(ctx, t.project(req), name, req.GetString("description", ""))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(bc), nil
}

// CreateDomainObjectDefinition returns the create_domain_object schema.
func (t *DomainTools) CreateDomainObjectDefinition() mcp.Tool {
	return mcp.NewTool("create_domain_object",
		mcp.WithDescription("Create a domain object (entity, value object, aggregate, service, or event) inside a bounded context."),
		mcp.WithString("context_id", mcp.Required(), mcp.Description("Owning context id")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Object kind"), mcp.Enum(store.ObjectKinds...)),
		mcp.WithString("name", mcp.Required(), mcp.Description("Object name")),
		mcp.WithArray("invariants", mcp.Description("Invariants that must always hold"), mcp.Items(stringItems())),
		mcp.WithArray("properties", mcp.Description("Object properties"), mcp.Items(stringItems())),
		projectOption(),
	)
}

// HandleCreateDomainObject processes create_domain_object.
func (t *DomainTools) HandleCreateDomainObject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contextID, err := requireString(req, "context_id")
	if err != nil {
		return errResult(err), nil
	}
	kind, err := requireString(req, "kind")
	if err != nil {
		return errResult(err), nil
	}
	name, err := requireString(req, "name")
	if err != nil {
		return errResult(err), nil
	}
	obj, err := t.svc.CreateDomainObject(ctx, t.project(req), store.CreateDomainObjectParams{
		ContextID:  contextID,
		Kind:       kind,
		Name:       name,
		Invariants: stringSliceArg(req, "invariants"),
		Properties: stringSliceArg(req, "properties"),
	})
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(obj), nil
}

// GetDomainModelDefinition returns the get_domain_model schema.
func (t *DomainTools) GetDomainModelDefinition() mcp.Tool {
	return mcp.NewTool("get_domain_model",
		mcp.WithDescription("Get the full domain model: every bounded context with its domain objects."),
		projectOption(),
	)
}

// HandleGetDomainModel processes get_domain_model.
func (t *DomainTools) HandleGetDomainModel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	model, err := t.svc.GetDomainModel(ctx, t.project(req))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(model), nil
}

// GetContextMapDefinition returns the get_context_map schema.
func (t *DomainTools) GetContextMapDefinition() mcp.Tool {
	return mcp.NewTool("get_context_map",
		mcp.WithDescription("Get the context relationship map. Cycles are reported as warnings, not errors."),
		projectOption(),
	)
}

// HandleGetContextMap processes get_context_map.
func (t *DomainTools) HandleGetContextMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cmap, err := t.svc.GetContextMap(ctx, t.project(req))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(cmap), nil
}

// GetGlossaryDefinition returns the get_glossary schema.
func (t *DomainTools) GetGlossaryDefinition() mcp.Tool {
	return mcp.NewTool("get_glossary",
		mcp.WithDescription("List the project's ubiquitous language, alphabetically."),
		projectOption(),
	)
}

// HandleGetGlossary processes get_glossary.
func (t *DomainTools) HandleGetGlossary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	terms, err := t.svc.GetGlossary(ctx, t.project(req))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(terms), nil
}

// AddGlossaryTermDefinition returns the add_glossary_term schema.
func (t *DomainTools) AddGlossaryTermDefinition() mcp.Tool {
	return mcp.NewTool("add_glossary_term",
		mcp.WithDescription("Add or update a glossary term. Terms are unique; re-adding updates the definition."),
		mcp.WithString("term", mcp.Required(), mcp.Description("The term")),
		mcp.WithString("definition", mcp.Required(), mcp.Description("One precise meaning")),
		mcp.WithArray("aliases", mcp.Description("Alternative spellings"), mcp.Items(stringItems())),
		mcp.WithString("context_id", mcp.Description("Bounded context the term belongs to")),
		projectOption(),
	)
}

// HandleAddGlossaryTerm processes add_glossary_term.
func (t *DomainTools) HandleAddGlossaryTerm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term, err := requireString(req, "term")
	if err != nil {
		return errResult(err), nil
	}
	definition, err := requireString(req, "definition")
	if err != nil {
		return errResult(err), nil
	}
	saved, err := t.svc.AddGlossaryTerm(ctx, t.project(req), store.GlossaryTerm{
		Term:       term,
		Definition: definition,
		Aliases:    stringSliceArg(req, "aliases"),
		ContextID:  req.GetString("context_id", ""),
	})
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(saved), nil
}
