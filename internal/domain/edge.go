package domain

// Edge represents a relation between two nodes
type Edge struct {
	ID       string `json:"id" yaml:"id"`
	Source   string `json:"source" yaml:"source"`
	Target   string `json:"target" yaml:"target"`
	Relation string `json:"label" yaml:"label"`
}

// NewEdge creates an edge with its derived ID
func NewEdge(source, target, relation string) Edge {
	return Edge{
		ID:       EdgeID(source, target),
		Source:   source,
		Target:   target,
		Relation: relation,
	}
}

// EdgeID derives the identifier of the edge between source and target
func EdgeID(source, target string) string {
	return source + "-" + target
}

// Normalize fills in a missing ID
func (e *Edge) Normalize() {
	if e.ID == "" {
		e.ID = EdgeID(e.Source, e.Target)
	}
}

// Involves returns true if the edge touches the given node
func (e Edge) Involves(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// Key identifies the edge by its endpoints
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target}
}

// EdgeKey is the (source, target) pair an edge is stored under
type EdgeKey struct {
	Source string
	Target string
}
