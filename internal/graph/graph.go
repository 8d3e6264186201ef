// Package graph maintains the property-graph projection in Neo4j.
//
// The primary store owns the data; everything here can be erased and
// rebuilt by replaying the primary. Sync is hash-driven: each entity's
// content hash is compared against its sync record and unchanged entities
// are skipped, so a sync immediately after a sync writes nothing.
package graph

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// Entity kinds the projector understands, in dependency order: nodes are
// written parents-first so edges always find both endpoints.
var kindOrder = []string{"project", "context", "object", "spec", "task", "decision", "memory", "term"}

// labelFor maps an entity kind to its node label.
var labelFor = map[string]string{
	"project":  "Project",
	"spec":     "Spec",
	"task":     "Task",
	"context":  "BoundedContext",
	"object":   "DomainEntity",
	"term":     "Term",
	"decision": "Decision",
	"memory":   "Memory",
}

// Client wraps the Neo4j driver with the retry and classification
// discipline the projector needs.
type Client struct {
	driver neo4j.DriverWithContext
}

// NewClient connects to the graph store.
func NewClient(uri, user, password string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, cwerr.Wrap(cwerr.Unavailable, err, "creating graph driver")
	}
	return &Client{driver: driver}, nil
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return cwerr.Wrap(cwerr.Unavailable, err, "graph store unreachable")
	}
	return nil
}

// run executes a write query with jittered retry on transient failures
// (up to 3 attempts).
func (c *Client) run(ctx context.Context, query string, params map[string]any) error {
	var err error
	delay := 100 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		_, err = neo4j.ExecuteQuery(ctx, c.driver, query, params, neo4j.EagerResultTransformer)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return cwerr.Wrap(cwerr.Unavailable, ctx.Err(), "graph write canceled")
		case <-time.After(delay + time.Duration(rand.Int63n(int64(delay)))):
		}
		delay *= 2
	}
	return cwerr.Wrap(cwerr.Unavailable, err, "graph write failed")
}

// read executes a read query and returns the raw records.
func (c *Client) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := neo4j.ExecuteQuery(ctx, c.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, cwerr.Wrap(cwerr.Unavailable, err, "graph read failed")
	}
	return result.Records, nil
}

// EnsureSchema creates per-label uniqueness constraints on id. Idempotent.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for kind, label := range labelFor {
		query := fmt.Sprintf(
			"CREATE CONSTRAINT %s_id_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE",
			kind, label,
		)
		if err := c.run(ctx, query, nil); err != nil {
			return err
		}
	}
	return nil
}

// dirtySet tracks entities whose incremental update failed; they are
// re-attempted on the next sync. Guarded because the event loop and
// explicit syncs run concurrently.
type dirtySet struct {
	mu      sync.Mutex
	entries map[string]bool // "kind:id"
}

func newDirtySet() *dirtySet {
	return &dirtySet{entries: make(map[string]bool)}
}

func (d *dirtySet) add(kind, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[kind+":"+id] = true
}

func (d *dirtySet) drain() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.entries))
	for entry := range d.entries {
		out = append(out, entry)
	}
	d.entries = make(map[string]bool)
	return out
}

func (d *dirtySet) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
