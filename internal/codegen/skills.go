package codegen

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// specSkills generates one skill per active/accepted spec, with the
// acceptance criteria embedded verbatim.
func (p *Pipeline) specSkills(ctx context.Context, project string) ([]Artifact, error) {
	specs, err := p.store.ListSpecs(ctx, project)
	if err != nil {
		return nil, err
	}

	var artifacts []Artifact
	for _, spec := range specs {
		if spec.Status != "active" && spec.Status != "accepted" {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "# %s\n\n", spec.Title)
		if spec.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", spec.Description)
		}
		fmt.Fprintf(&b, "**Priority:** %s\n", spec.Priority)
		fmt.Fprintf(&b, "**Status:** %s\n\n", spec.Status)

		if len(spec.AcceptanceCriteria) > 0 {
			b.WriteString("## Acceptance Criteria\n\n")
			for i, criterion := range spec.AcceptanceCriteria {
				fmt.Fprintf(&b, "%d. %s\n", i+1, criterion)
			}
			b.WriteString("\n")
		}
		if len(spec.Dependencies) > 0 {
			b.WriteString("## Dependencies\n\n")
			for _, dep := range spec.Dependencies {
				fmt.Fprintf(&b, "- %s\n", dep)
			}
			b.WriteString("\n")
		}

		b.WriteString("## Steps\n\n")
		b.WriteString("1. Understand the requirements above\n")
		b.WriteString("2. Review related code and dependencies\n")
		b.WriteString("3. Implement the changes\n")
		b.WriteString("4. Verify acceptance criteria are met\n")
		b.WriteString("5. Update task status when complete\n")

		artifacts = append(artifacts, Artifact{
			Path:    filepath.Join(".claude", "skills", slugify(spec.Title), "SKILL.md"),
			Kind:    KindSkill,
			Content: b.String(),
		})
	}
	return artifacts, nil
}

// builtinSkills are static skills shipped with every project.
func builtinSkills() []Artifact {
	return []Artifact{
		{
			Path: filepath.Join(".claude", "skills", "spec-first", "SKILL.md"),
			Kind: KindSkill,
			Content: `# Spec First

Before implementing a feature, confirm a spec exists and is accepted.

## Steps

1. Call list_specs and look for a spec covering the work
2. If none exists, create one with create_spec and real acceptance criteria
3. Move the spec to accepted before generating tasks
4. Generate tasks with generate_tasks and work them through the board
`,
		},
		{
			Path: filepath.Join(".claude", "skills", "board-discipline", "SKILL.md"),
			Kind: KindSkill,
			Content: `# Board Discipline

Keep the kanban board truthful while working.

## Steps

1. Before starting work, move the task to in_progress
2. Respect WIP limits — a rejected move means finish something first
3. Move to review when the change is ready for eyes
4. Move to done only when acceptance criteria pass
`,
		},
	}
}
