package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/HendryAvila/cwa/internal/store"
)

// CreateContext creates a bounded context and announces it.
func (svc *Services) CreateContext(ctx context.Context, project, name, description string) (store.BoundedContext, error) {
	bc, err := svc.Store.CreateContext(ctx, project, name, description)
	if err != nil {
		return store.BoundedContext{}, err
	}
	svc.publish(ctx, store.Event{
		Type: store.EventContextUpdated, Project: project,
		EntityKind: "context", EntityID: bc.ID,
	})
	return bc, nil
}

// RelateContexts records an upstream → downstream relationship. Cycles
// are legal; the context map flags them when rendering.
func (svc *Services) RelateContexts(ctx context.Context, project, upstreamID, downstreamID string) error {
	if _, err := svc.Store.GetContext(ctx, project, downstreamID); err != nil {
		return err
	}
	if _, err := svc.Store.UpdateContext(ctx, project, upstreamID, func(bc store.BoundedContext) (store.BoundedContext, error) {
		for _, existing := range bc.Downstream {
			if existing == downstreamID {
				return bc, nil
			}
		}
		bc.Downstream = append(bc.Downstream, downstreamID)
		return bc, nil
	}); err != nil {
		return err
	}
	if _, err := svc.Store.UpdateContext(ctx, project, downstreamID, func(bc store.BoundedContext) (store.BoundedContext, error) {
		for _, existing := range bc.Upstream {
			if existing == upstreamID {
				return bc, nil
			}
		}
		bc.Upstream = append(bc.Upstream, upstreamID)
		return bc, nil
	}); err != nil {
		return err
	}
	svc.publish(ctx, store.Event{
		Type: store.EventContextUpdated, Project: project,
		EntityKind: "context", EntityID: upstreamID,
	})
	return nil
}

// CreateDomainObject creates a domain object inside its context.
func (svc *Services) CreateDomainObject(ctx context.Context, project string, p store.CreateDomainObjectParams) (store.DomainObject, error) {
	obj, err := svc.Store.CreateDomainObject(ctx, project, p)
	if err != nil {
		return store.DomainObject{}, err
	}
	svc.publish(ctx, store.Event{
		Type: store.EventContextUpdated, Project: project,
		EntityKind: "object", EntityID: obj.ID,
	})
	return obj, nil
}

// DomainModel is the assembled model: contexts with their objects.
type DomainModel struct {
	Contexts []DomainContext `json:"contexts"`
}

// DomainContext is one context with its member objects.
type DomainContext struct {
	Context store.BoundedContext `json:"context"`
	Objects []store.DomainObject `json:"objects"`
}

// GetDomainModel assembles the full domain model.
func (svc *Services) GetDomainModel(ctx context.Context, project string) (DomainModel, error) {
	contexts, err := svc.Store.ListContexts(ctx, project)
	if err != nil {
		return DomainModel{}, err
	}
	model := DomainModel{Contexts: make([]DomainContext, 0, len(contexts))}
	for _, bc := range contexts {
		objects, err := svc.Store.ListDomainObjects(ctx, project, bc.ID)
		if err != nil {
			return DomainModel{}, err
		}
		model.Contexts = append(model.Contexts, DomainContext{Context: bc, Objects: objects})
	}
	return model, nil
}

// ContextMapEdge is one upstream → downstream relationship.
type ContextMapEdge struct {
	Upstream   string `json:"upstream"`
	Downstream string `json:"downstream"`
}

// ContextMap is the context relationship graph with cycle warnings.
type ContextMap struct {
	Contexts []store.BoundedContext `json:"contexts"`
	Edges    []ContextMapEdge       `json:"edges"`
	Cycles   []string               `json:"cycles,omitempty"`
}

// GetContextMap renders the context relationships. Cycles are detected
// here — and only here — and reported as warnings, never forbidden.
func (svc *Services) GetContextMap(ctx context.Context, project string) (ContextMap, error) {
	contexts, err := svc.Store.ListContexts(ctx, project)
	if err != nil {
		return ContextMap{}, err
	}
	cmap := ContextMap{Contexts: contexts}
	adjacency := make(map[string][]string, len(contexts))
	names := make(map[string]string, len(contexts))
	for _, bc := range contexts {
		names[bc.ID] = bc.Name
		for _, downstream := range bc.Downstream {
			cmap.Edges = append(cmap.Edges, ContextMapEdge{Upstream: bc.ID, Downstream: downstream})
			adjacency[bc.ID] = append(adjacency[bc.ID], downstream)
		}
	}
	cmap.Cycles = findCycles(adjacency, names)
	return cmap, nil
}

// findCycles reports each context that can reach itself. The warning
// names the context; rendering stays best-effort.
func findCycles(adjacency map[string][]string, names map[string]string) []string {
	var cycles []string
	for start := range names {
		visited := make(map[string]bool)
		if reaches(adjacency, start, start, visited) {
			cycles = append(cycles, fmt.Sprintf("context %q participates in a cycle", names[start]))
		}
	}
	// Deterministic warning order.
	sort.Strings(cycles)
	return cycles
}

func reaches(adjacency map[string][]string, from, target string, visited map[string]bool) bool {
	for _, next := range adjacency[from] {
		if next == target {
			return true
		}
		if !visited[next] {
			visited[next] = true
			if reaches(adjacency, next, target, visited) {
				return true
			}
		}
	}
	return false
}

// AddGlossaryTerm upserts a term and indexes its embedding.
func (svc *Services) AddGlossaryTerm(ctx context.Context, project string, term store.GlossaryTerm) (store.GlossaryTerm, error) {
	saved, err := svc.Store.AddGlossaryTerm(ctx, project, term)
	if err != nil {
		return store.GlossaryTerm{}, err
	}
	if svc.Memory != nil {
		svc.Memory.IndexTerm(ctx, project, saved.Term, saved.Definition)
	}
	svc.publish(ctx, store.Event{
		Type: store.EventContextUpdated, Project: project,
		EntityKind: "term", EntityID: saved.Term,
	})
	return saved, nil
}

// GetGlossary lists the ubiquitous language.
func (svc *Services) GetGlossary(ctx context.Context, project string) ([]store.GlossaryTerm, error) {
	return svc.Store.ListGlossary(ctx, project)
}
