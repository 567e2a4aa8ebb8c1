package rca

import (
	"fmt"
	"sort"
	"time"

	"github.com/platformbuilds/hindsight/internal/models"
)

// CausalWindow is the maximum temporal distance between two events for
// a causal edge to be considered.
const CausalWindow = 5 * time.Minute

// tightCouplingWindow is the distance under which an edge is always
// scored at least 0.9.
const tightCouplingWindow = 30 * time.Second

// NodeNotFoundError reports a reference to a service that is not a
// node of the graph. This is programmatic misuse, not a data error.
type NodeNotFoundError struct {
	ID string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("causal graph: node %q not found", e.ID)
}

// GraphBuildError reports an attempt to build an inconsistent graph
// (duplicate node, self-loop, dangling edge endpoint).
type GraphBuildError struct {
	Reason string
}

func (e *GraphBuildError) Error() string {
	return fmt.Sprintf("causal graph: %s", e.Reason)
}

// CausalNode is one service observed in an incident group.
type CausalNode struct {
	ID         string                 `json:"id"`
	ErrorCount int                    `json:"error_count"`
	FirstError *time.Time             `json:"first_error,omitempty"`
	LastError  *time.Time             `json:"last_error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// CausalEdge is a directed, confidence-weighted temporal relationship
// between two services.
type CausalEdge struct {
	From       string        `json:"from"`
	To         string        `json:"to"`
	Evidence   []string      `json:"evidence,omitempty"`
	TimeDelta  time.Duration `json:"time_delta"`
	Confidence float64       `json:"confidence"`
}

type edgeKey struct {
	from string
	to   string
}

// CausalGraph is a directed graph over causal nodes. It is built once
// from an incident group and read-only afterwards; construction is
// single-threaded, so no locking here.
type CausalGraph struct {
	nodes    map[string]*CausalNode
	edges    map[edgeKey]*CausalEdge
	outgoing map[string][]string
	incoming map[string][]string
}

// NewCausalGraph returns an empty graph.
func NewCausalGraph() *CausalGraph {
	return &CausalGraph{
		nodes:    make(map[string]*CausalNode),
		edges:    make(map[edgeKey]*CausalEdge),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// AddNode inserts a node. Adding the same id twice is misuse.
func (g *CausalGraph) AddNode(n *CausalNode) error {
	if n == nil || n.ID == "" {
		return &GraphBuildError{Reason: "node must have an id"}
	}
	if _, ok := g.nodes[n.ID]; ok {
		return &GraphBuildError{Reason: fmt.Sprintf("duplicate node %q", n.ID)}
	}
	g.nodes[n.ID] = n
	return nil
}

// ensureNode returns the node for id, creating it when absent.
func (g *CausalGraph) ensureNode(id string) *CausalNode {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &CausalNode{ID: id}
	g.nodes[id] = n
	return n
}

// Node returns the node with the given id.
func (g *CausalGraph) Node(id string) (*CausalNode, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, &NodeNotFoundError{ID: id}
	}
	return n, nil
}

// HasNode reports whether id is a node of the graph.
func (g *CausalGraph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddEdge inserts a directed edge. Self-loops and dangling endpoints
// are rejected. When an edge for (from, to) already exists, the
// higher-confidence instance wins and evidence lists concatenate.
func (g *CausalGraph) AddEdge(e *CausalEdge) error {
	if e == nil {
		return &GraphBuildError{Reason: "nil edge"}
	}
	if e.From == e.To {
		return &GraphBuildError{Reason: fmt.Sprintf("self-loop on %q", e.From)}
	}
	if !g.HasNode(e.From) {
		return &NodeNotFoundError{ID: e.From}
	}
	if !g.HasNode(e.To) {
		return &NodeNotFoundError{ID: e.To}
	}

	key := edgeKey{from: e.From, to: e.To}
	if existing, ok := g.edges[key]; ok {
		existing.Evidence = append(existing.Evidence, e.Evidence...)
		if e.Confidence > existing.Confidence {
			existing.Confidence = e.Confidence
			existing.TimeDelta = e.TimeDelta
		}
		return nil
	}

	g.edges[key] = e
	g.outgoing[e.From] = append(g.outgoing[e.From], e.To)
	g.incoming[e.To] = append(g.incoming[e.To], e.From)
	return nil
}

// Edge returns the edge from → to when present.
func (g *CausalGraph) Edge(from, to string) (*CausalEdge, bool) {
	e, ok := g.edges[edgeKey{from: from, to: to}]
	return e, ok
}

// Nodes returns all nodes sorted by id.
func (g *CausalGraph) Nodes() []*CausalNode {
	out := make([]*CausalNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges sorted by (from, to).
func (g *CausalGraph) Edges() []*CausalEdge {
	out := make([]*CausalEdge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Outgoing returns the sorted targets of edges leaving id.
func (g *CausalGraph) Outgoing(id string) []string {
	out := append([]string(nil), g.outgoing[id]...)
	sort.Strings(out)
	return out
}

// Incoming returns the sorted sources of edges entering id.
func (g *CausalGraph) Incoming(id string) []string {
	in := append([]string(nil), g.incoming[id]...)
	sort.Strings(in)
	return in
}

// NodeCount returns the number of nodes.
func (g *CausalGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of merged edges.
func (g *CausalGraph) EdgeCount() int { return len(g.edges) }

// edgeConfidence scores an edge by temporal proximity: linear decay
// across the window, floored at 0.9 inside the tight-coupling range.
func edgeConfidence(delta, window time.Duration) float64 {
	if window <= 0 {
		window = CausalWindow
	}
	conf := 1.0 - delta.Seconds()/window.Seconds()
	if conf < 0 {
		conf = 0
	}
	if delta <= tightCouplingWindow && conf < 0.9 {
		conf = 0.9
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// BuildCausalGraph constructs the causal graph for one incident group.
//
// Nodes: every event with a non-empty service gets a node; events at
// error level increment the node's error count and stretch its
// first/last error bounds.
//
// Edges: over the time-sorted (service, timestamp) pairs, each pair A
// gains an edge to every subsequent pair B in a different service
// within the causal window. Duplicate (from, to) candidates merge,
// keeping the highest-confidence instance and concatenating evidence.
func BuildCausalGraph(group *IncidentGroup, window time.Duration) (*CausalGraph, error) {
	if window <= 0 {
		window = CausalWindow
	}
	g := NewCausalGraph()
	if group == nil {
		return g, nil
	}

	for _, e := range group.Events {
		if e.Service == "" {
			continue
		}
		node := g.ensureNode(e.Service)
		if e.Level.IsError() {
			node.ErrorCount++
			if e.HasTimestamp() {
				ts := e.When()
				if node.FirstError == nil || ts.Before(*node.FirstError) {
					t := ts
					node.FirstError = &t
				}
				if node.LastError == nil || ts.After(*node.LastError) {
					t := ts
					node.LastError = &t
				}
			}
		}
	}

	timed, _ := sortEventsByTime(group.Events)
	var pairs []*models.Event
	for _, e := range timed {
		if e.Service != "" {
			pairs = append(pairs, e)
		}
	}

	for i := 0; i < len(pairs); i++ {
		a := pairs[i]
		for j := i + 1; j < len(pairs); j++ {
			b := pairs[j]
			delta := b.When().Sub(a.When())
			if delta > window {
				break
			}
			if b.Service == a.Service {
				continue
			}
			edge := &CausalEdge{
				From:       a.Service,
				To:         b.Service,
				TimeDelta:  delta,
				Confidence: edgeConfidence(delta, window),
				Evidence: []string{fmt.Sprintf("%s at %s preceded %s by %s",
					a.Service, a.When().UTC().Format(time.RFC3339), b.Service, delta)},
			}
			if err := g.AddEdge(edge); err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}

// RootCauses computes the likely root-cause services from topology.
// Sources (nodes with outgoing edges and no incoming edges) win; when
// the graph has no sources the node with the earliest first error is
// taken, with all tied nodes emitted. The result is sorted.
func (g *CausalGraph) RootCauses() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.outgoing[id]) > 0 && len(g.incoming[id]) == 0 {
			roots = append(roots, id)
		}
	}
	if len(roots) > 0 {
		sort.Strings(roots)
		return roots
	}

	var earliest *time.Time
	for _, n := range g.nodes {
		if n.FirstError == nil {
			continue
		}
		if earliest == nil || n.FirstError.Before(*earliest) {
			earliest = n.FirstError
		}
	}
	if earliest == nil {
		return nil
	}
	for _, n := range g.nodes {
		if n.FirstError != nil && n.FirstError.Equal(*earliest) {
			roots = append(roots, n.ID)
		}
	}
	sort.Strings(roots)
	return roots
}

// Projection renders the graph in its serializable wire form.
func (g *CausalGraph) Projection() *models.CausalGraphProjection {
	p := &models.CausalGraphProjection{
		Nodes:      make([]models.GraphNode, 0, len(g.nodes)),
		Edges:      make([]models.GraphEdge, 0, len(g.edges)),
		RootCauses: g.RootCauses(),
	}
	if p.RootCauses == nil {
		p.RootCauses = []string{}
	}
	for _, n := range g.Nodes() {
		p.Nodes = append(p.Nodes, models.GraphNode{
			ID:         n.ID,
			ErrorCount: n.ErrorCount,
			FirstError: n.FirstError,
			LastError:  n.LastError,
		})
	}
	for _, e := range g.Edges() {
		p.Edges = append(p.Edges, models.GraphEdge{
			From:             e.From,
			To:               e.To,
			Confidence:       e.Confidence,
			TimeDeltaSeconds: e.TimeDelta.Seconds(),
			Evidence:         e.Evidence,
		})
	}
	return p
}
