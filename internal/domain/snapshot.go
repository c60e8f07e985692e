package domain

import "fmt"

// ElementRef points at a node (ID only) or an edge (Source and Target).
type ElementRef struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
}

// NodeRef references a node
func NodeRef(id string) ElementRef {
	return ElementRef{ID: id}
}

// EdgeRef references an edge
func EdgeRef(e Edge) ElementRef {
	e.Normalize()
	return ElementRef{ID: e.ID, Source: e.Source, Target: e.Target}
}

// IsEdge reports whether the reference names an edge
func (r ElementRef) IsEdge() bool {
	return r.Source != "" || r.Target != ""
}

func (r ElementRef) String() string {
	if r.IsEdge() {
		return fmt.Sprintf("edge %s->%s", r.Source, r.Target)
	}
	return "node " + r.ID
}

// CompoundID names the primary compound created for an IP seed
func CompoundID(seed string) string {
	return "compound-" + seed
}

// VulnerabilityCompoundID names the nested compound grouping vulnerability
// related neighbors of an IP seed
func VulnerabilityCompoundID(seed string) string {
	return "vulnerability-compound-" + seed
}

// NewCompound creates a synthetic grouping node
func NewCompound(id, label, parent string) Node {
	return Node{ID: id, Kind: KindCompound, Label: label, Parent: parent}
}

// ExpansionRecord lists what expanding Seed added to the mirror, in order.
type ExpansionRecord struct {
	Seed     string       `json:"seed" yaml:"seed"`
	Elements []ElementRef `json:"elements" yaml:"elements"`
	// PriorValue is the seed's severity before the expansion set it.
	PriorValue Severity `json:"value,omitempty" yaml:"value,omitempty"`
}

// Snapshot is the persisted form of the mirror and its bookkeeping.
// Expansions are listed in expansion order, oldest first.
type Snapshot struct {
	Nodes      []Node            `json:"nodes" yaml:"nodes"`
	Edges      []Edge            `json:"edges" yaml:"edges"`
	Expansions []ExpansionRecord `json:"expansions,omitempty" yaml:"expansions,omitempty"`
}

// IsEmpty returns true when the snapshot has no nodes
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Nodes) == 0
}

// Elements converts the snapshot to wire elements, nodes first
func (s *Snapshot) Elements() []Element {
	if s == nil {
		return []Element{}
	}
	frag := GraphFragment{Nodes: s.Nodes, Edges: s.Edges}
	return frag.Elements()
}
