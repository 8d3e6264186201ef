package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/cwa/internal/store"
)

// InitProject creates the namespace root.
func (svc *Services) InitProject(ctx context.Context, id, name, description string, techStack []string) (store.Project, error) {
	return svc.Store.CreateProject(ctx, id, name, description, techStack)
}

// GetProjectInfo loads the project document.
func (svc *Services) GetProjectInfo(ctx context.Context, project string) (store.Project, error) {
	return svc.Store.GetProject(ctx, project)
}

// SetTechStack replaces the project's stack tags.
func (svc *Services) SetTechStack(ctx context.Context, project string, tags []string) (store.Project, error) {
	return svc.Store.SetTechStack(ctx, project, tags)
}

// ContextSummary is a one-screen digest of the project state.
func (svc *Services) ContextSummary(ctx context.Context, project string) (string, error) {
	proj, err := svc.Store.GetProject(ctx, project)
	if err != nil {
		return "", err
	}
	specs, err := svc.Store.ListSpecs(ctx, project)
	if err != nil {
		return "", err
	}
	status, err := svc.Board.WipStatus(ctx, project)
	if err != nil {
		return "", err
	}
	observations, err := svc.Store.ListHighConfidence(ctx, project, 0.7, 5)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", proj.Name)
	if proj.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", proj.Description)
	}
	if len(proj.TechStack) > 0 {
		fmt.Fprintf(&b, "Tech stack: %s\n\n", strings.Join(proj.TechStack, ", "))
	}

	byStatus := make(map[string]int)
	for _, spec := range specs {
		byStatus[spec.Status]++
	}
	if len(specs) > 0 {
		b.WriteString("## Specs\n\n")
		for _, status := range store.SpecStatuses {
			if byStatus[status] > 0 {
				fmt.Fprintf(&b, "- %s: %d\n", status, byStatus[status])
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Board\n\n")
	for _, column := range status {
		if column.Limit > 0 {
			fmt.Fprintf(&b, "- %s: %d/%d\n", column.Name, column.Count, column.Limit)
		} else {
			fmt.Fprintf(&b, "- %s: %d\n", column.Name, column.Count)
		}
	}
	b.WriteString("\n")

	if len(observations) > 0 {
		b.WriteString("## Recent Observations\n\n")
		for _, obs := range observations {
			fmt.Fprintf(&b, "- [%s] %s\n", obs.Kind, obs.Title)
		}
	}
	return b.String(), nil
}

// CacheStatus reports the health of each backing client.
type CacheStatus struct {
	PrimaryStore string `json:"primary_store"`
	GraphStore   string `json:"graph_store"`
	VectorStore  string `json:"vector_store"`
	Embedding    string `json:"embedding"`
}

// Pinger is anything that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusOf formats a pinger's health. Nil dependencies report disabled.
func StatusOf(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}
