package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"virtnet/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// ContentType returns the MIME type of exported documents
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Parse imports graph data from JSON. Both a {"nodes", "edges"} document
// and a flat array of {"data": ...} elements are accepted.
func (c *JSONCodec) Parse(r io.Reader) (*domain.GraphFragment, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	if len(raw) > 0 && raw[0] == '[' {
		var elements []domain.Element
		if err := json.Unmarshal(raw, &elements); err != nil {
			return nil, fmt.Errorf("failed to parse JSON elements: %w", err)
		}
		fragment := domain.NewGraphFragment()
		for _, el := range elements {
			if el.IsEdge() {
				fragment.AddEdge(*el.Edge)
			} else if el.Node != nil {
				fragment.AddNode(*el.Node)
			}
		}
		return fragment, nil
	}

	var fragment domain.GraphFragment
	if err := json.Unmarshal(raw, &fragment); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return normalized(&fragment)
}

// Export writes the snapshot as indented JSON
func (c *JSONCodec) Export(snapshot *domain.Snapshot, w io.Writer) error {
	if snapshot == nil {
		snapshot = &domain.Snapshot{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// normalized re-adds every element so IDs are derived and duplicates dropped.
func normalized(in *domain.GraphFragment) (*domain.GraphFragment, error) {
	out := domain.NewGraphFragment()
	for _, n := range in.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node with label %q has no id", n.Label)
		}
		if n.Kind != "" {
			kind, err := domain.ParseNodeKind(string(n.Kind))
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", n.ID, err)
			}
			n.Kind = kind
		}
		out.AddNode(n)
	}
	for _, e := range in.Edges {
		if e.Source == "" || e.Target == "" {
			return nil, fmt.Errorf("edge %q needs a source and a target", e.ID)
		}
		out.AddEdge(e)
	}
	return out, nil
}
