package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Element is the wire envelope {"data": {...}} holding a node or an edge.
// Exactly one of Node and Edge is set.
type Element struct {
	Node *Node
	Edge *Edge
}

// NodeElement wraps a node
func NodeElement(n Node) Element {
	return Element{Node: &n}
}

// EdgeElement wraps an edge
func EdgeElement(e Edge) Element {
	return Element{Edge: &e}
}

// IsEdge reports whether the element carries an edge
func (e Element) IsEdge() bool {
	return e.Edge != nil
}

// ID returns the identifier of the wrapped node or edge
func (e Element) ID() string {
	switch {
	case e.Node != nil:
		return e.Node.ID
	case e.Edge != nil:
		return e.Edge.ID
	}
	return ""
}

// Ref returns the bookkeeping reference of the element
func (e Element) Ref() ElementRef {
	if e.Edge != nil {
		return EdgeRef(*e.Edge)
	}
	if e.Node != nil {
		return NodeRef(e.Node.ID)
	}
	return ElementRef{}
}

// MarshalJSON implements json.Marshaler
func (e Element) MarshalJSON() ([]byte, error) {
	switch {
	case e.Node != nil:
		return json.Marshal(struct {
			Data *Node `json:"data"`
		}{e.Node})
	case e.Edge != nil:
		return json.Marshal(struct {
			Data *Edge `json:"data"`
		}{e.Edge})
	}
	return nil, errors.New("element carries neither a node nor an edge")
}

// FlexID is an identifier that may arrive as a JSON string or number.
// Graph database ids are integers; synthetic ids are strings.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: id must be a string or a number", ErrInvalidSeed)
	}
	*f = FlexID(n.String())
	return nil
}

type elementData struct {
	ID       FlexID   `json:"id"`
	Type     string   `json:"type"`
	Label    string   `json:"label"`
	Details  *Details `json:"details"`
	Parent   FlexID   `json:"parent"`
	Source   FlexID   `json:"source"`
	Target   FlexID   `json:"target"`
	Value    Severity `json:"value"`
	Hosts    []string `json:"hosts"`
	Vulns    []string `json:"vulns"`
	Relation string   `json:"relation"`
}

// UnmarshalJSON accepts elements produced by this server or by the browser
// client. An element with both source and target is an edge.
func (e *Element) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Data *elementData `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	if wrapper.Data == nil {
		return errors.New("element has no data")
	}
	d := wrapper.Data

	if d.Source != "" && d.Target != "" {
		rel := d.Label
		if rel == "" {
			rel = d.Relation
		}
		edge := Edge{ID: string(d.ID), Source: string(d.Source), Target: string(d.Target), Relation: rel}
		edge.Normalize()
		*e = Element{Edge: &edge}
		return nil
	}

	if d.ID == "" {
		return errors.New("node element has no id")
	}
	node := Node{
		ID:      string(d.ID),
		Label:   d.Label,
		Details: d.Details,
		Parent:  string(d.Parent),
		Value:   d.Value,
		Hosts:   d.Hosts,
		Vulns:   d.Vulns,
	}
	if d.Type != "" {
		kind, err := ParseNodeKind(d.Type)
		if err != nil {
			return err
		}
		node.Kind = kind
	}
	*e = Element{Node: &node}
	return nil
}
