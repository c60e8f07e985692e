package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"virtnet/internal/domain"
)

// YAMLCodec handles generic YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// ContentType returns the MIME type of exported documents
func (c *YAMLCodec) ContentType() string {
	return "application/yaml"
}

// yamlFragment represents the YAML structure for graph data
type yamlFragment struct {
	Nodes      []yamlNode               `yaml:"nodes"`
	Edges      []yamlEdge               `yaml:"edges"`
	Expansions []domain.ExpansionRecord `yaml:"expansions,omitempty"`
}

type yamlNode struct {
	ID      string          `yaml:"id"`
	Type    string          `yaml:"type"`
	Label   string          `yaml:"label"`
	Details *domain.Details `yaml:"details,omitempty"`
	Parent  string          `yaml:"parent,omitempty"`
	Value   domain.Severity `yaml:"value,omitempty"`
	Hosts   []string        `yaml:"hosts,omitempty"`
	Vulns   []string        `yaml:"vulns,omitempty"`
}

type yamlEdge struct {
	ID     string `yaml:"id,omitempty"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Label  string `yaml:"label,omitempty"`

	// from_id / to_id / type spelling of hand-written inventories
	FromID string `yaml:"from_id,omitempty"`
	ToID   string `yaml:"to_id,omitempty"`
	Type   string `yaml:"type,omitempty"`
}

// Parse imports graph data from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*domain.GraphFragment, error) {
	var yf yamlFragment
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&yf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	fragment := domain.NewGraphFragment()

	for _, yn := range yf.Nodes {
		if yn.ID == "" {
			return nil, fmt.Errorf("node with label %q has no id", yn.Label)
		}
		node := domain.Node{
			ID:      yn.ID,
			Label:   yn.Label,
			Details: yn.Details,
			Parent:  yn.Parent,
			Value:   yn.Value,
			Hosts:   yn.Hosts,
			Vulns:   yn.Vulns,
		}
		if yn.Type != "" {
			kind, err := domain.ParseNodeKind(yn.Type)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", yn.ID, err)
			}
			node.Kind = kind
		}
		fragment.AddNode(node)
	}

	for _, ye := range yf.Edges {
		edge := domain.Edge{
			ID:       ye.ID,
			Source:   firstNonEmpty(ye.Source, ye.FromID),
			Target:   firstNonEmpty(ye.Target, ye.ToID),
			Relation: firstNonEmpty(ye.Label, ye.Type),
		}
		if edge.Source == "" || edge.Target == "" {
			return nil, fmt.Errorf("edge %q needs a source and a target", ye.ID)
		}
		fragment.AddEdge(edge)
	}

	return fragment, nil
}

// Export exports the snapshot to YAML
func (c *YAMLCodec) Export(snapshot *domain.Snapshot, w io.Writer) error {
	if snapshot == nil {
		snapshot = &domain.Snapshot{}
	}
	yf := yamlFragment{
		Nodes:      make([]yamlNode, 0, len(snapshot.Nodes)),
		Edges:      make([]yamlEdge, 0, len(snapshot.Edges)),
		Expansions: snapshot.Expansions,
	}

	for _, node := range snapshot.Nodes {
		yf.Nodes = append(yf.Nodes, yamlNode{
			ID:      node.ID,
			Type:    string(node.Kind),
			Label:   node.Label,
			Details: node.Details,
			Parent:  node.Parent,
			Value:   node.Value,
			Hosts:   node.Hosts,
			Vulns:   node.Vulns,
		})
	}

	for _, edge := range snapshot.Edges {
		yf.Edges = append(yf.Edges, yamlEdge{
			ID:     edge.ID,
			Source: edge.Source,
			Target: edge.Target,
			Label:  edge.Relation,
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&yf); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
