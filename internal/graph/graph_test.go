package graph

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/store"
)

func newTestProjector(t *testing.T) (*Projector, *store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := store.NewWithClient(rdb)
	// No graph client: these tests exercise the primary-store walk and
	// the pure flatteners only.
	return NewProjector(nil, s), s
}

func TestCollect_DependencyOrder(t *testing.T) {
	p, s := newTestProjector(t)
	ctx := context.Background()

	_, _ = s.CreateProject(ctx, "demo", "Demo", "", nil)
	bc, _ := s.CreateContext(ctx, "demo", "Auth", "authentication")
	_, _ = s.CreateDomainObject(ctx, "demo", store.CreateDomainObjectParams{ContextID: bc.ID, Kind: "entity", Name: "User"})
	spec, _ := s.CreateSpec(ctx, "demo", store.CreateSpecParams{Title: "Login", ContextID: bc.ID})
	_, _ = s.CreateTask(ctx, "demo", store.CreateTaskParams{Title: "impl", SpecID: spec.ID, CriterionIndex: 0})

	nodes, err := p.collect(ctx, "demo")
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	order := make([]string, len(nodes))
	for i, n := range nodes {
		order[i] = n.kind
	}
	want := []string{"project", "context", "object", "spec", "task"}
	if len(order) != len(want) {
		t.Fatalf("kinds = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestSpecNode_Edges(t *testing.T) {
	sp := store.Spec{ID: "s1", ContextID: "c1", Dependencies: []string{"s0"}, Title: "Login"}
	n := specNode(sp)
	if len(n.edges) != 2 {
		t.Fatalf("edges = %d, want 2", len(n.edges))
	}
	if n.edges[0].label != "BELONGS_TO" || n.edges[0].targetID != "c1" {
		t.Errorf("edge[0] = %+v", n.edges[0])
	}
	if n.edges[1].label != "DEPENDS_ON" || n.edges[1].targetID != "s0" {
		t.Errorf("edge[1] = %+v", n.edges[1])
	}
}

func TestTaskNode_ImplementsEdge(t *testing.T) {
	n := taskNode(store.Task{ID: "t1", SpecID: "s1", Title: "x"})
	if len(n.edges) != 1 || n.edges[0].label != "IMPLEMENTS" {
		t.Errorf("edges = %+v", n.edges)
	}
	// Direct tasks project without edges.
	if edges := taskNode(store.Task{ID: "t2", Title: "y"}).edges; len(edges) != 0 {
		t.Errorf("direct task edges = %+v", edges)
	}
}

func TestContextNode_CyclicDownstreamAllowed(t *testing.T) {
	// Context cycles (a upstream of b, b upstream of a) are stored as-is.
	n := contextNode(store.BoundedContext{ID: "a", ProjectID: "demo", Name: "A", Downstream: []string{"b"}})
	var found bool
	for _, e := range n.edges {
		if e.label == "UPSTREAM_OF" && e.targetID == "b" {
			found = true
		}
	}
	if !found {
		t.Errorf("UPSTREAM_OF edge missing: %+v", n.edges)
	}
}

func TestDecisionNode_Supersedes(t *testing.T) {
	n := decisionNode(store.Decision{ID: "d2", Supersedes: "d1", SpecIDs: []string{"s1"}, Title: "x"})
	labels := map[string]string{}
	for _, e := range n.edges {
		labels[e.label] = e.targetID
	}
	if labels["SUPERSEDES"] != "d1" || labels["RELATES_TO"] != "s1" {
		t.Errorf("edges = %+v", n.edges)
	}
}

func TestNodeHash_TracksContent(t *testing.T) {
	a := specNode(store.Spec{ID: "s1", Title: "x", Status: "draft"})
	b := specNode(store.Spec{ID: "s1", Title: "x", Status: "draft"})
	if a.hash != b.hash {
		t.Error("same content must hash equal")
	}
	c := specNode(store.Spec{ID: "s1", Title: "x", Status: "accepted"})
	if a.hash == c.hash {
		t.Error("changed content must hash different")
	}
}

func TestDirtySet(t *testing.T) {
	d := newDirtySet()
	d.add("spec", "s1")
	d.add("spec", "s1") // idempotent
	d.add("task", "t1")
	if d.size() != 2 {
		t.Errorf("size = %d, want 2", d.size())
	}
	entries := d.drain()
	if len(entries) != 2 {
		t.Errorf("drained = %v", entries)
	}
	if d.size() != 0 {
		t.Error("drain must empty the set")
	}
}

func TestKindForLabel_Inverse(t *testing.T) {
	for kind, label := range labelFor {
		if got := kindForLabel(label); got != kind {
			t.Errorf("kindForLabel(%s) = %s, want %s", label, got, kind)
		}
	}
}
