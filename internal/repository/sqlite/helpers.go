package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"virtnet/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals v to JSON, returning NULL for empty values
func marshalToNull(v any) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(data) == "null" || string(data) == "{}" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ============================================================================
// Row Types
// ============================================================================

// nodeData holds the node fields without their own column
type nodeData struct {
	Details *domain.Details `json:"details,omitempty"`
	Hosts   []string        `json:"hosts,omitempty"`
	Vulns   []string        `json:"vulns,omitempty"`
}

type nodeRow struct {
	id     string
	kind   string
	label  string
	parent sql.NullString
	value  sql.NullString
	data   sql.NullString
}

func (r *nodeRow) scanArgs() []any {
	return []any{&r.id, &r.kind, &r.label, &r.parent, &r.value, &r.data}
}

func (r *nodeRow) toDomain() (domain.Node, error) {
	node := domain.Node{
		ID:     r.id,
		Kind:   domain.NodeKind(r.kind),
		Label:  r.label,
		Parent: nullToString(r.parent),
		Value:  domain.Severity(nullToString(r.value)),
	}
	var data nodeData
	if err := unmarshalJSONField(r.data, &data); err != nil {
		return domain.Node{}, fmt.Errorf("node %s data: %w", r.id, err)
	}
	node.Details = data.Details
	node.Hosts = data.Hosts
	node.Vulns = data.Vulns
	return node, nil
}

func nodeInsertArgs(position int, node domain.Node) ([]any, error) {
	data, err := marshalToNull(nodeData{Details: node.Details, Hosts: node.Hosts, Vulns: node.Vulns})
	if err != nil {
		return nil, fmt.Errorf("node %s data: %w", node.ID, err)
	}
	return []any{
		node.ID,
		position,
		string(node.Kind),
		node.Label,
		stringToNull(node.Parent),
		stringToNull(string(node.Value)),
		data,
	}, nil
}

type edgeRow struct {
	id       string
	source   string
	target   string
	relation sql.NullString
}

func (r *edgeRow) scanArgs() []any {
	return []any{&r.id, &r.source, &r.target, &r.relation}
}

func (r *edgeRow) toDomain() domain.Edge {
	return domain.Edge{
		ID:       r.id,
		Source:   r.source,
		Target:   r.target,
		Relation: nullToString(r.relation),
	}
}

func edgeInsertArgs(position int, edge domain.Edge) []any {
	edge.Normalize()
	return []any{edge.ID, position, edge.Source, edge.Target, stringToNull(edge.Relation)}
}

type expansionRow struct {
	seed     string
	prior    sql.NullString
	elements sql.NullString
}

func (r *expansionRow) scanArgs() []any {
	return []any{&r.seed, &r.prior, &r.elements}
}

func (r *expansionRow) toDomain() (domain.ExpansionRecord, error) {
	rec := domain.ExpansionRecord{
		Seed:       r.seed,
		PriorValue: domain.Severity(nullToString(r.prior)),
	}
	if err := unmarshalJSONField(r.elements, &rec.Elements); err != nil {
		return domain.ExpansionRecord{}, fmt.Errorf("expansion %s elements: %w", r.seed, err)
	}
	return rec, nil
}

func expansionInsertArgs(position int, rec domain.ExpansionRecord) ([]any, error) {
	elements, err := marshalToNull(rec.Elements)
	if err != nil {
		return nil, fmt.Errorf("expansion %s elements: %w", rec.Seed, err)
	}
	return []any{rec.Seed, position, stringToNull(string(rec.PriorValue)), elements}, nil
}
