// Package mirror holds the locally expanded subset of the topology graph.
//
// Nodes and edges are kept in insertion order so that the wire output and
// the persisted snapshot are deterministic. A Mirror is not safe for
// concurrent use; its owner serializes access.
package mirror

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"virtnet/internal/domain"
)

// Mirror is the graph container backing the virtual network.
type Mirror struct {
	nodes *orderedmap.OrderedMap[string, domain.Node]
	edges *orderedmap.OrderedMap[domain.EdgeKey, domain.Edge]
}

// New creates an empty mirror
func New() *Mirror {
	return &Mirror{
		nodes: orderedmap.New[string, domain.Node](),
		edges: orderedmap.New[domain.EdgeKey, domain.Edge](),
	}
}

// UpsertNode inserts or replaces a node. A replaced node keeps its position.
// It returns true when the node was not present before.
func (m *Mirror) UpsertNode(n domain.Node) bool {
	_, present := m.nodes.Set(n.ID, n.Clone())
	return !present
}

// RemoveNode deletes a node together with its incident edges and returns
// what was removed. Nodes grouped under a removed compound lose their
// parent. Unknown ids are a no-op.
func (m *Mirror) RemoveNode(id string) (domain.Node, []domain.Edge, bool) {
	node, ok := m.nodes.Delete(id)
	if !ok {
		return domain.Node{}, nil, false
	}

	var incident []domain.EdgeKey
	for pair := m.edges.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Involves(id) {
			incident = append(incident, pair.Key)
		}
	}
	removed := make([]domain.Edge, 0, len(incident))
	for _, key := range incident {
		if e, ok := m.edges.Delete(key); ok {
			removed = append(removed, e)
		}
	}

	if node.IsCompound() {
		for pair := m.nodes.Oldest(); pair != nil; pair = pair.Next() {
			if pair.Value.Parent == id {
				pair.Value.Parent = ""
			}
		}
	}

	return node, removed, true
}

// UpsertEdge inserts or replaces the edge between its endpoints. Both
// endpoints must already be in the mirror.
func (m *Mirror) UpsertEdge(e domain.Edge) error {
	for _, end := range []string{e.Source, e.Target} {
		if _, ok := m.nodes.Get(end); !ok {
			return fmt.Errorf("%w: edge %s->%s, missing node %q", domain.ErrDanglingEdge, e.Source, e.Target, end)
		}
	}
	e.Normalize()
	m.edges.Set(e.Key(), e)
	return nil
}

// RemoveEdge deletes the edge between source and target, if present.
func (m *Mirror) RemoveEdge(source, target string) (domain.Edge, bool) {
	return m.edges.Delete(domain.EdgeKey{Source: source, Target: target})
}

// Node returns a copy of the node with the given id
func (m *Mirror) Node(id string) (domain.Node, bool) {
	n, ok := m.nodes.Get(id)
	if !ok {
		return domain.Node{}, false
	}
	return n.Clone(), true
}

// HasNode reports whether id is in the mirror
func (m *Mirror) HasNode(id string) bool {
	_, ok := m.nodes.Get(id)
	return ok
}

// HasEdge reports whether an edge joins source to target
func (m *Mirror) HasEdge(source, target string) bool {
	_, ok := m.edges.Get(domain.EdgeKey{Source: source, Target: target})
	return ok
}

// SetNodeValue replaces the severity value of a node.
func (m *Mirror) SetNodeValue(id string, v domain.Severity) bool {
	pair := m.nodes.GetPair(id)
	if pair == nil {
		return false
	}
	pair.Value.Value = v
	return true
}

// Len returns the node and edge counts
func (m *Mirror) Len() (nodes, edges int) {
	return m.nodes.Len(), m.edges.Len()
}

// Nodes returns copies of all nodes in insertion order
func (m *Mirror) Nodes() []domain.Node {
	out := make([]domain.Node, 0, m.nodes.Len())
	for pair := m.nodes.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.Clone())
	}
	return out
}

// Edges returns all edges in insertion order
func (m *Mirror) Edges() []domain.Edge {
	out := make([]domain.Edge, 0, m.edges.Len())
	for pair := m.edges.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Elements renders the mirror in wire form, nodes first
func (m *Mirror) Elements() []domain.Element {
	out := make([]domain.Element, 0, m.nodes.Len()+m.edges.Len())
	for _, n := range m.Nodes() {
		out = append(out, domain.NodeElement(n))
	}
	for _, e := range m.Edges() {
		out = append(out, domain.EdgeElement(e))
	}
	return out
}

// Clear empties the mirror
func (m *Mirror) Clear() {
	m.nodes = orderedmap.New[string, domain.Node]()
	m.edges = orderedmap.New[domain.EdgeKey, domain.Edge]()
}

// Snapshot returns the serializable form of the mirror. Expansion records
// are owned by the caller and not included.
func (m *Mirror) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		Nodes: m.Nodes(),
		Edges: m.Edges(),
	}
}

// Restore replaces the contents of the mirror with s. Edges whose
// endpoints are missing from s are skipped and returned.
func (m *Mirror) Restore(s domain.Snapshot) []domain.Edge {
	m.Clear()
	for _, n := range s.Nodes {
		m.UpsertNode(n)
	}
	var skipped []domain.Edge
	for _, e := range s.Edges {
		if err := m.UpsertEdge(e); err != nil {
			skipped = append(skipped, e)
		}
	}
	return skipped
}
