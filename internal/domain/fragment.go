package domain

// GraphFragment is a batch of nodes and edges returned by a neighbor source
type GraphFragment struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// NewGraphFragment creates an empty graph fragment
func NewGraphFragment() *GraphFragment {
	return &GraphFragment{
		Nodes: make([]Node, 0),
		Edges: make([]Edge, 0),
	}
}

// AddNode adds a node unless one with the same ID is already in the fragment
func (g *GraphFragment) AddNode(node Node) {
	for _, n := range g.Nodes {
		if n.ID == node.ID {
			return
		}
	}
	g.Nodes = append(g.Nodes, node)
}

// AddEdge adds an edge, deriving its ID when missing
func (g *GraphFragment) AddEdge(edge Edge) {
	edge.Normalize()
	for _, e := range g.Edges {
		if e.ID == edge.ID {
			return
		}
	}
	g.Edges = append(g.Edges, edge)
}

// HasKind reports whether any node in the fragment has the given kind
func (g *GraphFragment) HasKind(kind NodeKind) bool {
	for _, n := range g.Nodes {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

// IsEmpty returns true when the fragment carries nothing
func (g *GraphFragment) IsEmpty() bool {
	return g == nil || (len(g.Nodes) == 0 && len(g.Edges) == 0)
}

// Elements converts the fragment to wire elements, nodes first
func (g *GraphFragment) Elements() []Element {
	out := make([]Element, 0, len(g.Nodes)+len(g.Edges))
	for i := range g.Nodes {
		out = append(out, NodeElement(g.Nodes[i]))
	}
	for i := range g.Edges {
		out = append(out, EdgeElement(g.Edges[i]))
	}
	return out
}
