// Package codegen compiles the knowledge base into a deterministic file
// tree: context agents, tech-stack expert agents, per-spec skills,
// built-in skills/commands/rules, an editor hooks file, the root context
// file, and the MCP discovery config.
//
// Determinism is a contract: given the same primary-store state and the
// same tech-stack tags, the output bytes are identical. No timestamps or
// random ids appear in file bodies, and every collection is iterated in a
// stable order.
package codegen

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/cwa/internal/store"
)

// Artifact kinds, used to group dry-run output.
const (
	KindAgent        = "agent"
	KindSkill        = "skill"
	KindCommand      = "command"
	KindRule         = "rule"
	KindHooks        = "hooks"
	KindContext      = "context"
	KindMCPConfig    = "mcp_config"
	KindDesignSystem = "design_system"
)

// Artifact is one generated file, with its project-root-relative path.
type Artifact struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Content string `json:"-"`
}

// Pipeline generates artifacts from the primary store.
type Pipeline struct {
	store *store.Store
	// designAnalysis, when non-empty, is the out-of-band image-analysis
	// document rendered into .claude/design-system.md.
	designAnalysis string
}

// New creates a codegen pipeline.
func New(s *store.Store) *Pipeline {
	return &Pipeline{store: s}
}

// WithDesignAnalysis attaches an optional design-system analysis document.
func (p *Pipeline) WithDesignAnalysis(analysis string) *Pipeline {
	p.designAnalysis = analysis
	return p
}

// Generate assembles every artifact for the project. Nothing touches the
// filesystem here — Apply and DryRun consume the result.
func (p *Pipeline) Generate(ctx context.Context, project string) ([]Artifact, error) {
	var artifacts []Artifact

	proj, err := p.store.GetProject(ctx, project)
	if err != nil {
		return nil, err
	}

	contextAgents, err := p.contextAgents(ctx, project)
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, contextAgents...)

	artifacts = append(artifacts, techAgents(proj.TechStack)...)

	skills, err := p.specSkills(ctx, project)
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, skills...)
	artifacts = append(artifacts, builtinSkills()...)
	artifacts = append(artifacts, builtinCommands()...)
	artifacts = append(artifacts, builtinRules()...)

	hooks, err := p.hooksFile(ctx, project, proj.TechStack)
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, hooks)

	contextFile, err := p.contextFile(ctx, project, proj)
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, contextFile)

	artifacts = append(artifacts, mcpConfig())

	if p.designAnalysis != "" {
		artifacts = append(artifacts, designSystem(p.designAnalysis))
	}
	return artifacts, nil
}

// DryRunResult groups the paths that would be written, by kind.
type DryRunResult struct {
	Paths map[string][]string `json:"paths"`
	Total int                 `json:"total"`
}

// DryRun returns the paths a Generate+Apply would write, grouped by kind,
// without touching the filesystem.
func (p *Pipeline) DryRun(ctx context.Context, project string) (DryRunResult, error) {
	artifacts, err := p.Generate(ctx, project)
	if err != nil {
		return DryRunResult{}, err
	}
	result := DryRunResult{Paths: make(map[string][]string), Total: len(artifacts)}
	for _, a := range artifacts {
		result.Paths[a.Kind] = append(result.Paths[a.Kind], a.Path)
	}
	return result, nil
}

// slugify converts a display name into a URL-safe slug.
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if 'a' <= r && r <= 'z' || '0' <= r && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	parts := strings.FieldsFunc(b.String(), func(r rune) bool { return r == '-' })
	return strings.Join(parts, "-")
}

// agentPath places a file under .claude/agents/.
func agentPath(filename string) string {
	return filepath.Join(".claude", "agents", filename)
}
