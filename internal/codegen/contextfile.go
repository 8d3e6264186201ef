package codegen

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/cwa/internal/store"
)

// contextFile generates the root CLAUDE.md: domain summary, active specs,
// accepted decisions, current work, glossary, and recent high-confidence
// observations. Deterministic — no timestamps in the body.
func (p *Pipeline) contextFile(ctx context.Context, project string, proj store.Project) (Artifact, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", proj.Name)
	if proj.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", proj.Description)
	}
	if len(proj.TechStack) > 0 {
		fmt.Fprintf(&b, "**Tech Stack:** %s\n\n", strings.Join(proj.TechStack, ", "))
	}

	b.WriteString("## Workflow Guidelines\n\n")
	b.WriteString("**IMPORTANT:** Always update task status on the kanban board as you work:\n\n")
	b.WriteString("1. **Before starting work:** move the task to `in_progress` (update_task_status)\n")
	b.WriteString("2. **When ready for review:** move it to `review`\n")
	b.WriteString("3. **When complete:** move it to `done`\n\n")
	b.WriteString("**Live Board:** run `cwa web` and open the dashboard for real-time updates.\n\n")

	contexts, err := p.store.ListContexts(ctx, project)
	if err != nil {
		return Artifact{}, err
	}
	if len(contexts) > 0 {
		b.WriteString("## Domain Model\n\n")
		for _, bc := range contexts {
			fmt.Fprintf(&b, "### %s\n\n", bc.Name)
			if bc.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", bc.Description)
			}
			objects, err := p.store.ListDomainObjects(ctx, project, bc.ID)
			if err != nil {
				return Artifact{}, err
			}
			if len(objects) > 0 {
				b.WriteString("**Entities:**\n")
				for _, obj := range objects {
					fmt.Fprintf(&b, "- `%s` (%s)\n", obj.Name, obj.Kind)
				}
				b.WriteString("\n")
			}
		}
	}

	specs, err := p.store.ListSpecs(ctx, project)
	if err != nil {
		return Artifact{}, err
	}
	var active []store.Spec
	for _, spec := range specs {
		if spec.Status == "active" || spec.Status == "accepted" {
			active = append(active, spec)
		}
	}
	if len(active) > 0 {
		b.WriteString("## Active Specifications\n\n")
		for _, spec := range active {
			fmt.Fprintf(&b, "### %s [%s]\n\n", spec.Title, spec.Priority)
			if spec.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", spec.Description)
			}
			if len(spec.AcceptanceCriteria) > 0 {
				b.WriteString("**Acceptance Criteria:**\n")
				for _, criterion := range spec.AcceptanceCriteria {
					fmt.Fprintf(&b, "- [ ] %s\n", criterion)
				}
				b.WriteString("\n")
			}
		}
	}

	decisions, err := p.store.ListDecisions(ctx, project)
	if err != nil {
		return Artifact{}, err
	}
	var accepted []store.Decision
	for _, d := range decisions {
		if d.Status == "accepted" {
			accepted = append(accepted, d)
			if len(accepted) == 10 {
				break
			}
		}
	}
	if len(accepted) > 0 {
		b.WriteString("## Key Decisions\n\n")
		for _, d := range accepted {
			fmt.Fprintf(&b, "- **%s**: %s\n", d.Title, d.Rationale)
		}
		b.WriteString("\n")
	}

	terms, err := p.store.ListGlossary(ctx, project)
	if err != nil {
		return Artifact{}, err
	}
	if len(terms) > 0 {
		b.WriteString("## Glossary\n\n")
		b.WriteString("| Term | Definition |\n")
		b.WriteString("|------|------------|\n")
		for _, term := range terms {
			fmt.Fprintf(&b, "| %s | %s |\n", term.Term, term.Definition)
		}
		b.WriteString("\n")
	}

	inProgress, err := p.store.ListTasksByStatus(ctx, project, "in_progress")
	if err != nil {
		return Artifact{}, err
	}
	if len(inProgress) > 0 {
		b.WriteString("## Current Work\n\n")
		for _, task := range inProgress {
			fmt.Fprintf(&b, "- %s [%s]\n", task.Title, task.Priority)
		}
		b.WriteString("\n")
	}

	observations, err := p.store.ListHighConfidence(ctx, project, 0.7, 10)
	if err != nil {
		return Artifact{}, err
	}
	if len(observations) > 0 {
		b.WriteString("## Recent Observations\n\n")
		for _, obs := range observations {
			line := fmt.Sprintf("- **[%s]** %s", strings.ToUpper(obs.Kind), obs.Title)
			if obs.Narrative != "" {
				line += " -- " + firstLine(obs.Narrative)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	summaries, err := p.store.RecentSummaries(ctx, project, 1)
	if err != nil {
		return Artifact{}, err
	}
	if len(summaries) > 0 {
		b.WriteString("## Last Session Summary\n\n")
		b.WriteString(summaries[0].Content)
		b.WriteString("\n")
	}

	return Artifact{Path: "CLAUDE.md", Kind: KindContext, Content: b.String()}, nil
}

// mcpConfig generates the root .mcp.json pointing the agent at this
// project's server over stdio.
func mcpConfig() Artifact {
	content := `{
  "mcpServers": {
    "cwa": {
      "command": "cwa",
      "args": ["serve"]
    }
  }
}
`
	return Artifact{Path: ".mcp.json", Kind: KindMCPConfig, Content: content}
}

// designSystem renders the out-of-band analysis document.
func designSystem(analysis string) Artifact {
	content := "# Design System\n\n" + strings.TrimSpace(analysis) + "\n"
	return Artifact{
		Path:    filepath.Join(".claude", "design-system.md"),
		Kind:    KindDesignSystem,
		Content: content,
	}
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
