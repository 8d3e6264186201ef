package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/cwa/internal/codegen"
	"github.com/HendryAvila/cwa/internal/token"
)

// CodegenTools handles the artifact-generation tool group.
type CodegenTools struct {
	base
	pipeline    *codegen.Pipeline
	projectRoot string
}

// NewCodegenTools creates the codegen tool group. projectRoot is where
// artifacts land (the directory holding .cwa/).
func NewCodegenTools(pipeline *codegen.Pipeline, defaultProject, projectRoot string) *CodegenTools {
	return &CodegenTools{base: base{defaultProject: defaultProject}, pipeline: pipeline, projectRoot: projectRoot}
}

// AgentsDefinition returns the codegen_agents schema.
func (t *CodegenTools) AgentsDefinition() mcp.Tool {
	return mcp.NewTool("codegen_agents",
		mcp.WithDescription("Compile the knowledge base into the .claude/ artifact tree: context agents, tech-stack experts, per-spec skills, commands, rules, hooks, and the root context file. Deterministic; dry_run lists paths without writing."),
		mcp.WithBoolean("dry_run", mcp.Description("List the paths that would be written, grouped by kind, without touching the filesystem")),
		mcp.WithNumber("token_budget", mcp.Description("Soft token budget; overruns are reported with ranked reduction suggestions")),
		projectOption(),
	)
}

// HandleAgents processes codegen_agents.
func (t *CodegenTools) HandleAgents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := t.project(req)

	if dryRun, _ := req.GetArguments()["dry_run"].(bool); dryRun {
		result, err := t.pipeline.DryRun(ctx, project)
		if err != nil {
			return errResult(err), nil
		}
		return resultJSON(result), nil
	}

	artifacts, err := t.pipeline.Generate(ctx, project)
	if err != nil {
		return errResult(err), nil
	}
	applied, err := codegen.Apply(t.projectRoot, artifacts)
	if err != nil {
		return resultJSONDegraded(applied, err.Error()), nil
	}

	response := map[string]any{"written": applied.Written}
	if budget := intArg(req, "token_budget", 0); budget > 0 {
		counts := make([]token.FileCount, 0, len(artifacts))
		for _, artifact := range artifacts {
			count, err := token.AnalyzeText(artifact.Path, artifact.Content)
			if err != nil {
				return errResult(err), nil
			}
			counts = append(counts, count)
		}
		response["token_report"] = token.Optimize(counts, budget)
	}
	return resultJSON(response), nil
}
