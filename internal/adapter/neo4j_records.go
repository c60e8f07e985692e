package adapter

import (
	"fmt"
	"math"
	"strconv"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"virtnet/internal/domain"
)

// fragmentFromRecords converts query records into a fragment. Nodes are
// keyed by database id. Relationships become edges keyed by their
// endpoints; those touching a node rejected by keep are left out.
func fragmentFromRecords(records []*neo4j.Record, keep func(domain.Node) bool) *domain.GraphFragment {
	frag := domain.NewGraphFragment()
	rejected := make(map[string]bool)
	var rels []neo4j.Relationship

	for _, rec := range records {
		if rec == nil {
			continue
		}
		for _, v := range rec.Values {
			switch val := v.(type) {
			case neo4j.Node:
				n, ok := nodeFromNeo4j(val)
				if !ok {
					continue
				}
				if keep != nil && !keep(n) {
					rejected[n.ID] = true
					continue
				}
				frag.AddNode(n)
			case neo4j.Relationship:
				rels = append(rels, val)
			}
		}
	}

	for _, r := range rels {
		source := strconv.FormatInt(r.StartId, 10)
		target := strconv.FormatInt(r.EndId, 10)
		if rejected[source] || rejected[target] {
			continue
		}
		frag.AddEdge(domain.NewEdge(source, target, r.Type))
	}
	return frag
}

// nodeFromNeo4j maps a database node onto the display label and details
// of its kind. Nodes without a known label are skipped.
func nodeFromNeo4j(n neo4j.Node) (domain.Node, bool) {
	var kind domain.NodeKind
	for _, l := range n.Labels {
		if k, err := domain.ParseNodeKind(l); err == nil && k != domain.KindCompound {
			kind = k
			break
		}
	}
	if kind == "" {
		return domain.Node{}, false
	}

	node := domain.NewNode(strconv.FormatInt(n.Id, 10), kind, "")
	p := n.Props

	switch kind {
	case domain.KindOrganizationUnit:
		node.Label = propString(p, "name")
	case domain.KindSubnet:
		node.Label = propString(p, "range")
		if note := propString(p, "note"); note != "" {
			node.Details = domain.StringDetails(note)
		} else {
			node.Details = domain.StringDetails("N/A")
		}
	case domain.KindIP:
		node.Label = propString(p, "address")
	case domain.KindDomainName:
		node.Label = propString(p, "domain_name")
		node.Details = optionalDetails(p, "tag")
	case domain.KindNetworkNode:
		node.Label = fmt.Sprintf("%.1f", propFloat(p, "topology_degree"))
		node.Details = domain.StringDetails(fmt.Sprintf("%.1f", propFloat(p, "topology_betweenness")))
	case domain.KindHost:
		node.Label = "Host"
	case domain.KindSoftwareVersion:
		node.Label = propString(p, "version")
		node.Details = optionalDetails(p, "tag")
	case domain.KindNetworkService:
		node.Label = propString(p, "protocol")
		node.Details = optionalDetails(p, "service")
	case domain.KindVulnerability:
		node.Label = "Vulnerability"
		node.Details = optionalDetails(p, "description")
	case domain.KindCVE:
		node.Label = cveImpact(p["impact"])
		if score, ok := p["base_score_v3"]; ok && score != nil {
			node.Details = domain.NumberDetails(math.Round(toFloat(score)*10) / 10)
		}
	}
	return node, true
}

func cveImpact(v any) string {
	switch val := v.(type) {
	case []any:
		if len(val) > 0 {
			return fmt.Sprint(val[0])
		}
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case string:
		return val
	}
	return "CVE"
}

func optionalDetails(props map[string]any, key string) *domain.Details {
	if s := propString(props, key); s != "" {
		return domain.StringDetails(s)
	}
	return nil
}

func propString(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func propFloat(props map[string]any, key string) float64 {
	return toFloat(props[key])
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	}
	return 0
}
