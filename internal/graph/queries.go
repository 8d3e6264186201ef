package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// Bounds on the raw query escape hatch.
const (
	rawQueryTimeout = 30 * time.Second
	rawQueryRowCap  = 10000
)

// DefaultImpactDepth bounds impact traversals unless overridden.
const DefaultImpactDepth = 2

// ImpactNode is one entity reachable from the analyzed entity.
type ImpactNode struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
	Edge string `json:"edge_label"`
	Hop  int64  `json:"hop"`
}

// Impact traverses incoming and outgoing edges up to depth and returns the
// distinct reachable entities ordered by hop, then id.
func (p *Projector) Impact(ctx context.Context, project, kind, id string, depth int) ([]ImpactNode, error) {
	label, ok := labelFor[kind]
	if !ok {
		return nil, cwerr.E(cwerr.InvalidArguments, "unknown entity kind %q", kind)
	}
	if depth <= 0 {
		depth = DefaultImpactDepth
	}
	query := fmt.Sprintf(
		`MATCH (start:%s {id: $id})
		 MATCH path = (start)-[*1..%d]-(connected)
		 WHERE connected.id IS NOT NULL AND connected <> start
		 WITH DISTINCT connected, min(length(path)) AS hop,
		      [rel IN relationships(path) | type(rel)][0] AS edge
		 RETURN labels(connected)[0] AS label, connected.id AS id,
		        coalesce(connected.title, connected.name, connected.term, connected.id) AS name,
		        edge, hop`,
		label, depth,
	)
	records, err := p.client.read(ctx, query, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}

	nodes := make([]ImpactNode, 0, len(records))
	for _, record := range records {
		row := record.AsMap()
		n := ImpactNode{}
		if v, ok := row["label"].(string); ok {
			n.Kind = kindForLabel(v)
		}
		if v, ok := row["id"].(string); ok {
			n.ID = v
		}
		if v, ok := row["name"].(string); ok {
			n.Name = v
		}
		if v, ok := row["edge"].(string); ok {
			n.Edge = v
		}
		if v, ok := row["hop"].(int64); ok {
			n.Hop = v
		}
		nodes = append(nodes, n)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Hop != nodes[j].Hop {
			return nodes[i].Hop < nodes[j].Hop
		}
		return nodes[i].ID < nodes[j].ID
	})
	return nodes, nil
}

// Subgraph is a neighborhood for visualization.
type Subgraph struct {
	Nodes []SubgraphNode `json:"nodes"`
	Edges []SubgraphEdge `json:"edges"`
}

// SubgraphNode is one node of an exploration result.
type SubgraphNode struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SubgraphEdge is one relationship of an exploration result.
type SubgraphEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// Explore returns the neighborhood subgraph around an entity at a
// user-supplied depth.
func (p *Projector) Explore(ctx context.Context, project, kind, id string, depth int) (Subgraph, error) {
	label, ok := labelFor[kind]
	if !ok {
		return Subgraph{}, cwerr.E(cwerr.InvalidArguments, "unknown entity kind %q", kind)
	}
	if depth <= 0 {
		depth = 1
	}
	query := fmt.Sprintf(
		`MATCH (start:%s {id: $id})
		 MATCH path = (start)-[*0..%d]-(n)
		 WHERE n.id IS NOT NULL
		 UNWIND relationships(path) AS rel
		 WITH DISTINCT n, rel
		 RETURN labels(n)[0] AS label, n.id AS id,
		        coalesce(n.title, n.name, n.term, n.id) AS name,
		        startNode(rel).id AS from, endNode(rel).id AS to, type(rel) AS edge`,
		label, depth,
	)
	records, err := p.client.read(ctx, query, map[string]any{"id": id})
	if err != nil {
		return Subgraph{}, err
	}

	var graph Subgraph
	seenNodes := make(map[string]bool)
	seenEdges := make(map[string]bool)
	for _, record := range records {
		row := record.AsMap()
		nodeID, _ := row["id"].(string)
		if nodeID != "" && !seenNodes[nodeID] {
			seenNodes[nodeID] = true
			nodeLabel, _ := row["label"].(string)
			name, _ := row["name"].(string)
			graph.Nodes = append(graph.Nodes, SubgraphNode{Kind: kindForLabel(nodeLabel), ID: nodeID, Name: name})
		}
		from, _ := row["from"].(string)
		to, _ := row["to"].(string)
		edgeLabel, _ := row["edge"].(string)
		if from != "" && to != "" {
			key := from + "→" + to + ":" + edgeLabel
			if !seenEdges[key] {
				seenEdges[key] = true
				graph.Edges = append(graph.Edges, SubgraphEdge{From: from, To: to, Label: edgeLabel})
			}
		}
	}
	sort.SliceStable(graph.Nodes, func(i, j int) bool { return graph.Nodes[i].ID < graph.Nodes[j].ID })
	sort.SliceStable(graph.Edges, func(i, j int) bool {
		if graph.Edges[i].From != graph.Edges[j].From {
			return graph.Edges[i].From < graph.Edges[j].From
		}
		return graph.Edges[i].To < graph.Edges[j].To
	})
	return graph, nil
}

// RawQuery is the read-only Cypher pass-through, bounded by a timeout and
// a row cap.
func (p *Projector) RawQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, rawQueryTimeout)
	defer cancel()

	records, err := p.client.read(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(records) > rawQueryRowCap {
		records = records[:rawQueryRowCap]
	}
	rows := make([]map[string]any, len(records))
	for i, record := range records {
		rows[i] = record.AsMap()
	}
	return rows, nil
}

// Hyperedge is a node whose degree marks it as a structural hub.
type Hyperedge struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Degree int64  `json:"degree"`
}

// Hyperedges finds nodes whose degree meets or exceeds the threshold —
// the knowledge base's coupling hot spots.
func (p *Projector) Hyperedges(ctx context.Context, project string, minDegree int) ([]Hyperedge, error) {
	if minDegree <= 0 {
		minDegree = 3
	}
	records, err := p.client.read(ctx,
		`MATCH (n {project_id: $project})
		 WITH n, COUNT { (n)--() } AS degree
		 WHERE degree >= $min
		 RETURN labels(n)[0] AS label, n.id AS id,
		        coalesce(n.title, n.name, n.term, n.id) AS name, degree
		 ORDER BY degree DESC, id ASC`,
		map[string]any{"project": project, "min": minDegree},
	)
	if err != nil {
		return nil, err
	}
	edges := make([]Hyperedge, 0, len(records))
	for _, record := range records {
		row := record.AsMap()
		h := Hyperedge{}
		if v, ok := row["label"].(string); ok {
			h.Kind = kindForLabel(v)
		}
		if v, ok := row["id"].(string); ok {
			h.ID = v
		}
		if v, ok := row["name"].(string); ok {
			h.Name = v
		}
		if v, ok := row["degree"].(int64); ok {
			h.Degree = v
		}
		edges = append(edges, h)
	}
	return edges, nil
}

// kindForLabel is the inverse of labelFor.
func kindForLabel(label string) string {
	for kind, l := range labelFor {
		if l == label {
			return kind
		}
	}
	return label
}
