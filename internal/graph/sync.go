package graph

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/store"
)

// Projector synchronizes the primary store into the graph.
type Projector struct {
	client *Client
	store  *store.Store
	dirty  *dirtySet
}

// NewProjector creates a projector over the given client and store.
func NewProjector(client *Client, s *store.Store) *Projector {
	return &Projector{client: client, store: s, dirty: newDirtySet()}
}

// RemoveEntity detaches and deletes an entity's node and its sync record.
// Used by compaction and soft-delete paths.
func (p *Projector) RemoveEntity(ctx context.Context, project, kind, id string) error {
	label, ok := labelFor[kind]
	if !ok {
		return cwerr.E(cwerr.InvalidArguments, "unknown entity kind %q", kind)
	}
	query := fmt.Sprintf("MATCH (n:%s {id: $id, project_id: $project}) DETACH DELETE n", label)
	if err := p.client.run(ctx, query, map[string]any{"id": id, "project": project}); err != nil {
		return err
	}
	return p.store.DeleteSyncState(ctx, project, kind, id)
}

// SyncResult reports what a sync wrote.
type SyncResult struct {
	NodesWritten         int `json:"nodes_written"`
	NodesSkipped         int `json:"nodes_skipped"`
	RelationshipsWritten int `json:"relationships_written"`
	DirtyRemaining       int `json:"dirty_remaining,omitempty"`
}

// node is one entity flattened for projection.
type node struct {
	kind  string
	id    string
	hash  string
	props map[string]any
	edges []edge
}

// edge is one outgoing relationship. The target is (kind, id).
type edge struct {
	label      string
	targetKind string
	targetID   string
}

// Sync walks every entity in dependency order and upserts the ones whose
// content hash differs from their sync record. Edge sets are always fully
// replaced for a written node, never merged. A sync immediately after a
// sync with no intervening mutations writes nothing.
func (p *Projector) Sync(ctx context.Context, project string) (SyncResult, error) {
	if err := p.client.EnsureSchema(ctx); err != nil {
		return SyncResult{}, err
	}
	nodes, err := p.collect(ctx, project)
	if err != nil {
		return SyncResult{}, err
	}

	// Fold previously failed entities back in (they may not differ by
	// hash anymore, but a dirty entry means the graph write never landed).
	dirty := make(map[string]bool)
	for _, entry := range p.dirty.drain() {
		dirty[entry] = true
	}

	var result SyncResult
	for _, n := range nodes {
		force := dirty[n.kind+":"+n.id]
		if !force {
			state, err := p.store.GetSyncState(ctx, project, n.kind, n.id)
			if err == nil && state.ContentHash == n.hash {
				result.NodesSkipped++
				continue
			}
			if err != nil && !cwerr.IsKind(err, cwerr.NotFound) {
				return result, err
			}
		}
		rels, err := p.upsert(ctx, project, n)
		if err != nil {
			// A failed write parks the entity in the dirty set and the
			// walk continues — one bad entity must not block the rest.
			log.Printf("WARNING: graph sync of %s %s failed: %v", n.kind, n.id, err)
			p.dirty.add(n.kind, n.id)
			continue
		}
		if err := p.store.AdvanceSyncState(ctx, project, n.kind, n.id, n.hash); err != nil {
			return result, err
		}
		result.NodesWritten++
		result.RelationshipsWritten += rels
	}
	result.DirtyRemaining = p.dirty.size()
	return result, nil
}

// Rebuild erases the project's subgraph and sync records, then runs a
// full sync. The erase-and-walk is entity-by-entity atomic; no degraded
// status is reported while it runs, so readers can see a partly rebuilt
// subgraph until the walk completes.
func (p *Projector) Rebuild(ctx context.Context, project string) (SyncResult, error) {
	if err := p.client.run(ctx,
		"MATCH (n {project_id: $project}) DETACH DELETE n",
		map[string]any{"project": project},
	); err != nil {
		return SyncResult{}, err
	}
	nodes, err := p.collect(ctx, project)
	if err != nil {
		return SyncResult{}, err
	}
	for _, n := range nodes {
		if err := p.store.DeleteSyncState(ctx, project, n.kind, n.id); err != nil {
			return SyncResult{}, err
		}
	}
	return p.Sync(ctx, project)
}

// SyncEntity projects a single entity (incremental path). Unknown ids
// remove the node — a deletion event and an update event look the same
// to the subscriber.
func (p *Projector) SyncEntity(ctx context.Context, project, kind, id string) error {
	n, err := p.collectOne(ctx, project, kind, id)
	if cwerr.IsKind(err, cwerr.NotFound) {
		return p.RemoveEntity(ctx, project, kind, id)
	}
	if err != nil {
		return err
	}
	state, err := p.store.GetSyncState(ctx, project, kind, id)
	if err == nil && state.ContentHash == n.hash {
		return nil
	}
	if err != nil && !cwerr.IsKind(err, cwerr.NotFound) {
		return err
	}
	if _, err := p.upsert(ctx, project, n); err != nil {
		p.dirty.add(kind, id)
		return cwerr.Wrap(cwerr.Degraded, err, "incremental sync of %s %s deferred", kind, id)
	}
	return p.store.AdvanceSyncState(ctx, project, kind, id, n.hash)
}

// Run consumes the project's event bus and applies incremental updates
// until the context is canceled. Failed updates land in the dirty set;
// the loop never stops on a single entity's failure.
func (p *Projector) Run(ctx context.Context, project string) error {
	sub, err := p.store.Subscribe(ctx, project)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return cwerr.E(cwerr.Unavailable, "event subscription closed")
			}
			if ev.EntityKind == "" || ev.EntityID == "" {
				continue
			}
			if err := p.SyncEntity(ctx, project, ev.EntityKind, ev.EntityID); err != nil {
				log.Printf("WARNING: incremental graph update (%s %s): %v", ev.EntityKind, ev.EntityID, err)
			}
		}
	}
}

// upsert MERGEs the node, replaces its outgoing edge set, and returns the
// number of relationships written.
func (p *Projector) upsert(ctx context.Context, project string, n node) (int, error) {
	label := labelFor[n.kind]
	props := make(map[string]any, len(n.props)+2)
	for k, v := range n.props {
		props[k] = v
	}
	props["id"] = n.id
	props["project_id"] = project

	if err := p.client.run(ctx,
		fmt.Sprintf("MERGE (n:%s {id: $id}) SET n = $props", label),
		map[string]any{"id": n.id, "props": props},
	); err != nil {
		return 0, err
	}

	// Replace, never merge, the outgoing edge set.
	if err := p.client.run(ctx,
		fmt.Sprintf("MATCH (n:%s {id: $id})-[r]->() DELETE r", label),
		map[string]any{"id": n.id},
	); err != nil {
		return 0, err
	}
	written := 0
	for _, e := range n.edges {
		targetLabel := labelFor[e.targetKind]
		query := fmt.Sprintf(
			"MATCH (a:%s {id: $from}), (b:%s {id: $to}) MERGE (a)-[:%s]->(b)",
			label, targetLabel, e.label,
		)
		if err := p.client.run(ctx, query, map[string]any{"from": n.id, "to": e.targetID}); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// collect flattens every entity of the project in dependency order.
func (p *Projector) collect(ctx context.Context, project string) ([]node, error) {
	var nodes []node
	for _, kind := range kindOrder {
		batch, err := p.collectKind(ctx, project, kind)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, batch...)
	}
	return nodes, nil
}

func (p *Projector) collectKind(ctx context.Context, project, kind string) ([]node, error) {
	switch kind {
	case "project":
		proj, err := p.store.GetProject(ctx, project)
		if cwerr.IsKind(err, cwerr.NotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []node{projectNode(proj)}, nil
	case "context":
		contexts, err := p.store.ListContexts(ctx, project)
		if err != nil {
			return nil, err
		}
		nodes := make([]node, len(contexts))
		for i, c := range contexts {
			nodes[i] = contextNode(c)
		}
		return nodes, nil
	case "object":
		contexts, err := p.store.ListContexts(ctx, project)
		if err != nil {
			return nil, err
		}
		var nodes []node
		for _, c := range contexts {
			objects, err := p.store.ListDomainObjects(ctx, project, c.ID)
			if err != nil {
				return nil, err
			}
			for _, o := range objects {
				nodes = append(nodes, objectNode(o))
			}
		}
		return nodes, nil
	case "spec":
		specs, err := p.store.ListSpecs(ctx, project)
		if err != nil {
			return nil, err
		}
		nodes := make([]node, len(specs))
		for i, sp := range specs {
			nodes[i] = specNode(sp)
		}
		return nodes, nil
	case "task":
		tasks, err := p.store.ListTasks(ctx, project)
		if err != nil {
			return nil, err
		}
		nodes := make([]node, len(tasks))
		for i, t := range tasks {
			nodes[i] = taskNode(t)
		}
		return nodes, nil
	case "decision":
		decisions, err := p.store.ListDecisions(ctx, project)
		if err != nil {
			return nil, err
		}
		nodes := make([]node, len(decisions))
		for i, d := range decisions {
			nodes[i] = decisionNode(d)
		}
		return nodes, nil
	case "memory":
		memories, err := p.store.ListMemories(ctx, project, 0)
		if err != nil {
			return nil, err
		}
		nodes := make([]node, len(memories))
		for i, m := range memories {
			nodes[i] = memoryNode(m)
		}
		return nodes, nil
	case "term":
		terms, err := p.store.ListGlossary(ctx, project)
		if err != nil {
			return nil, err
		}
		nodes := make([]node, len(terms))
		for i, t := range terms {
			nodes[i] = termNode(t)
		}
		return nodes, nil
	default:
		return nil, cwerr.E(cwerr.Internal, "unhandled kind %q", kind)
	}
}

func (p *Projector) collectOne(ctx context.Context, project, kind, id string) (node, error) {
	switch kind {
	case "project":
		proj, err := p.store.GetProject(ctx, project)
		if err != nil {
			return node{}, err
		}
		return projectNode(proj), nil
	case "context":
		c, err := p.store.GetContext(ctx, project, id)
		if err != nil {
			return node{}, err
		}
		return contextNode(c), nil
	case "object":
		o, err := p.store.GetDomainObject(ctx, project, id)
		if err != nil {
			return node{}, err
		}
		return objectNode(o), nil
	case "spec":
		sp, err := p.store.GetSpec(ctx, project, id)
		if err != nil {
			return node{}, err
		}
		return specNode(sp), nil
	case "task":
		t, err := p.store.GetTask(ctx, project, id)
		if err != nil {
			return node{}, err
		}
		return taskNode(t), nil
	case "decision":
		d, err := p.store.GetDecision(ctx, project, id)
		if err != nil {
			return node{}, err
		}
		return decisionNode(d), nil
	case "memory":
		m, err := p.store.GetMemory(ctx, project, id)
		if err != nil {
			return node{}, err
		}
		return memoryNode(m), nil
	case "term":
		t, err := p.store.GetGlossaryTerm(ctx, project, id)
		if err != nil {
			return node{}, err
		}
		return termNode(t), nil
	default:
		return node{}, cwerr.E(cwerr.InvalidArguments, "unknown entity kind %q", kind)
	}
}

// --- Flatteners: entity → node + outgoing edges ---

func projectNode(p store.Project) node {
	return node{
		kind: "project", id: p.ID, hash: store.ContentHash(p),
		props: map[string]any{
			"name":        p.Name,
			"description": p.Description,
			"tech_stack":  strings.Join(p.TechStack, ","),
			"updated_at":  p.UpdatedAt,
		},
	}
}

func contextNode(c store.BoundedContext) node {
	n := node{
		kind: "context", id: c.ID, hash: store.ContentHash(c),
		props: map[string]any{
			"name":        c.Name,
			"description": c.Description,
			"updated_at":  c.UpdatedAt,
		},
	}
	for _, downstream := range c.Downstream {
		n.edges = append(n.edges, edge{label: "UPSTREAM_OF", targetKind: "context", targetID: downstream})
	}
	n.edges = append(n.edges, edge{label: "BELONGS_TO", targetKind: "project", targetID: c.ProjectID})
	return n
}

func objectNode(o store.DomainObject) node {
	return node{
		kind: "object", id: o.ID, hash: store.ContentHash(o),
		props: map[string]any{
			"name":       o.Name,
			"kind":       o.Kind,
			"invariants": strings.Join(o.Invariants, "\n"),
			"updated_at": o.UpdatedAt,
		},
		edges: []edge{{label: "BELONGS_TO", targetKind: "context", targetID: o.ContextID}},
	}
}

func specNode(sp store.Spec) node {
	n := node{
		kind: "spec", id: sp.ID, hash: store.ContentHash(sp),
		props: map[string]any{
			"title":      sp.Title,
			"status":     sp.Status,
			"priority":   sp.Priority,
			"updated_at": sp.UpdatedAt,
		},
	}
	if sp.ContextID != "" {
		n.edges = append(n.edges, edge{label: "BELONGS_TO", targetKind: "context", targetID: sp.ContextID})
	}
	for _, dep := range sp.Dependencies {
		n.edges = append(n.edges, edge{label: "DEPENDS_ON", targetKind: "spec", targetID: dep})
	}
	return n
}

func taskNode(t store.Task) node {
	n := node{
		kind: "task", id: t.ID, hash: store.ContentHash(t),
		props: map[string]any{
			"title":      t.Title,
			"status":     t.Status,
			"priority":   t.Priority,
			"updated_at": t.UpdatedAt,
		},
	}
	if t.SpecID != "" {
		n.edges = append(n.edges, edge{label: "IMPLEMENTS", targetKind: "spec", targetID: t.SpecID})
	}
	return n
}

func decisionNode(d store.Decision) node {
	n := node{
		kind: "decision", id: d.ID, hash: store.ContentHash(d),
		props: map[string]any{
			"title":      d.Title,
			"status":     d.Status,
			"updated_at": d.UpdatedAt,
		},
	}
	for _, specID := range d.SpecIDs {
		n.edges = append(n.edges, edge{label: "RELATES_TO", targetKind: "spec", targetID: specID})
	}
	if d.Supersedes != "" {
		n.edges = append(n.edges, edge{label: "SUPERSEDES", targetKind: "decision", targetID: d.Supersedes})
	}
	return n
}

func memoryNode(m store.Memory) node {
	return node{
		kind: "memory", id: m.ID, hash: store.ContentHash(m),
		props: map[string]any{
			"kind":       m.Kind,
			"confidence": m.Confidence,
			"updated_at": m.UpdatedAt,
		},
	}
}

func termNode(t store.GlossaryTerm) node {
	n := node{
		kind: "term", id: t.Term, hash: store.ContentHash(t),
		props: map[string]any{
			"term":       t.Term,
			"definition": t.Definition,
			"updated_at": t.UpdatedAt,
		},
	}
	if t.ContextID != "" {
		n.edges = append(n.edges, edge{label: "BELONGS_TO", targetKind: "context", targetID: t.ContextID})
	}
	return n
}
