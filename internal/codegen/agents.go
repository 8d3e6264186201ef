package codegen

import (
	"context"
	"fmt"
	"strings"
)

// contextAgents generates one expert-agent file per bounded context:
// role, member domain objects with properties and invariants, the
// context's slice of the ubiquitous language, and boundary relationships.
func (p *Pipeline) contextAgents(ctx context.Context, project string) ([]Artifact, error) {
	contexts, err := p.store.ListContexts(ctx, project)
	if err != nil {
		return nil, err
	}
	terms, err := p.store.ListGlossary(ctx, project)
	if err != nil {
		return nil, err
	}

	artifacts := make([]Artifact, 0, len(contexts))
	for _, bc := range contexts {
		objects, err := p.store.ListDomainObjects(ctx, project, bc.ID)
		if err != nil {
			return nil, err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# %s Expert Agent\n\n", bc.Name)
		b.WriteString("## Role\n\n")
		fmt.Fprintf(&b, "You are an expert in the **%s** bounded context.\n", bc.Name)
		if bc.Description != "" {
			fmt.Fprintf(&b, "%s\n", bc.Description)
		}
		b.WriteString("\n")

		if len(objects) > 0 {
			b.WriteString("## Domain Entities\n\n")
			for _, obj := range objects {
				fmt.Fprintf(&b, "### %s (%s)\n\n", obj.Name, obj.Kind)
				if len(obj.Properties) > 0 {
					b.WriteString("**Properties:**\n")
					for _, prop := range obj.Properties {
						fmt.Fprintf(&b, "- %s\n", prop)
					}
					b.WriteString("\n")
				}
				if len(obj.Invariants) > 0 {
					b.WriteString("**Invariants:**\n")
					for _, inv := range obj.Invariants {
						fmt.Fprintf(&b, "- %s\n", inv)
					}
					b.WriteString("\n")
				}
			}
		}

		var contextTerms []string
		for _, term := range terms {
			if term.ContextID == bc.ID {
				contextTerms = append(contextTerms, fmt.Sprintf("| %s | %s |", term.Term, term.Definition))
			}
		}
		if len(contextTerms) > 0 {
			b.WriteString("## Ubiquitous Language\n\n")
			b.WriteString("| Term | Definition |\n")
			b.WriteString("|------|------------|\n")
			b.WriteString(strings.Join(contextTerms, "\n"))
			b.WriteString("\n\n")
		}

		if len(bc.Upstream) > 0 || len(bc.Downstream) > 0 {
			b.WriteString("## Context Boundaries\n\n")
			if len(bc.Upstream) > 0 {
				fmt.Fprintf(&b, "**Depends on:** %s\n\n", strings.Join(bc.Upstream, ", "))
			}
			if len(bc.Downstream) > 0 {
				fmt.Fprintf(&b, "**Consumed by:** %s\n\n", strings.Join(bc.Downstream, ", "))
			}
		}

		artifacts = append(artifacts, Artifact{
			Path:    agentPath(slugify(bc.Name) + "-expert.md"),
			Kind:    KindAgent,
			Content: b.String(),
		})
	}
	return artifacts, nil
}
