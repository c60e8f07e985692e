package domain

import (
	"fmt"
	"slices"
	"strings"
)

// NodeKind is the type of a node in the topology graph
type NodeKind string

const (
	KindOrganizationUnit NodeKind = "OrganizationUnit"
	KindSubnet           NodeKind = "Subnet"
	KindIP               NodeKind = "IP"
	KindDomainName       NodeKind = "DomainName"
	KindNetworkNode      NodeKind = "Node"
	KindHost             NodeKind = "Host"
	KindSoftwareVersion  NodeKind = "SoftwareVersion"
	KindNetworkService   NodeKind = "NetworkService"
	KindVulnerability    NodeKind = "Vulnerability"
	KindCVE              NodeKind = "CVE"
	KindCompound         NodeKind = "Compound"
)

// AllKinds lists every node kind in a stable order.
var AllKinds = []NodeKind{
	KindOrganizationUnit,
	KindSubnet,
	KindIP,
	KindDomainName,
	KindNetworkNode,
	KindHost,
	KindSoftwareVersion,
	KindNetworkService,
	KindVulnerability,
	KindCVE,
	KindCompound,
}

// Older clients name the organization unit after the D3 CIDR views.
var kindAliases = map[string]NodeKind{
	"cidr_node":   KindOrganizationUnit,
	"cidr_values": KindOrganizationUnit,
	"orgunit":     KindOrganizationUnit,
	"networknode": KindNetworkNode,
}

// ParseNodeKind resolves a kind name, accepting legacy aliases.
func ParseNodeKind(s string) (NodeKind, error) {
	s = strings.TrimSpace(s)
	for _, k := range AllKinds {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	if k, ok := kindAliases[strings.ToLower(s)]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// IsValid reports whether k is one of the known kinds
func (k NodeKind) IsValid() bool {
	return slices.Contains(AllKinds, k)
}

// Expandable reports whether a node of this kind can seed an expansion
func (k NodeKind) Expandable() bool {
	switch k {
	case KindOrganizationUnit, KindSubnet, KindIP:
		return true
	}
	return false
}

// VulnerabilityRelated reports whether the kind is grouped under the
// vulnerability compound of an IP expansion.
func (k NodeKind) VulnerabilityRelated() bool {
	switch k {
	case KindVulnerability, KindCVE, KindNetworkService, KindSoftwareVersion:
		return true
	}
	return false
}

// Node represents a vertex of the virtual network
type Node struct {
	ID      string   `json:"id" yaml:"id"`
	Kind    NodeKind `json:"type" yaml:"type"`
	Label   string   `json:"label" yaml:"label"`
	Details *Details `json:"details" yaml:"details,omitempty"`
	Parent  string   `json:"parent,omitempty" yaml:"parent,omitempty"`

	// Value is the severity bucket attached to an expanded IP seed.
	Value Severity `json:"value,omitempty" yaml:"value,omitempty"`

	// Hosts and Vulns are carried by the organization unit node only.
	Hosts []string `json:"hosts,omitempty" yaml:"hosts,omitempty"`
	Vulns []string `json:"vulns,omitempty" yaml:"vulns,omitempty"`
}

// NewNode creates a node without details
func NewNode(id string, kind NodeKind, label string) Node {
	return Node{ID: id, Kind: kind, Label: label}
}

// IsCompound reports whether the node is a synthetic grouping node
func (n Node) IsCompound() bool {
	return n.Kind == KindCompound
}

// Clone returns a deep copy
func (n Node) Clone() Node {
	out := n
	if n.Details != nil {
		d := *n.Details
		out.Details = &d
	}
	out.Hosts = slices.Clone(n.Hosts)
	out.Vulns = slices.Clone(n.Vulns)
	return out
}

// Score returns the numeric details value, if any.
func (n Node) Score() (float64, bool) {
	if n.Details == nil {
		return 0, false
	}
	return n.Details.Float()
}
