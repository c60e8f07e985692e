package mirror

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtnet/internal/domain"
)

func seeded(t *testing.T) *Mirror {
	t.Helper()
	m := New()
	m.UpsertNode(domain.NewNode("1", domain.KindSubnet, "10.0.0.0/24"))
	m.UpsertNode(domain.NewNode("2", domain.KindIP, "10.0.0.1"))
	m.UpsertNode(domain.NewNode("3", domain.KindIP, "10.0.0.2"))
	require.NoError(t, m.UpsertEdge(domain.NewEdge("1", "2", "HAS")))
	require.NoError(t, m.UpsertEdge(domain.NewEdge("1", "3", "HAS")))
	return m
}

func TestUpsertNodeKeepsPosition(t *testing.T) {
	m := seeded(t)

	added := m.UpsertNode(domain.NewNode("1", domain.KindSubnet, "renamed"))
	assert.False(t, added)

	nodes := m.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "1", nodes[0].ID)
	assert.Equal(t, "renamed", nodes[0].Label)
}

func TestRemoveNodeDropsIncidentEdges(t *testing.T) {
	m := seeded(t)

	node, edges, ok := m.RemoveNode("1")
	require.True(t, ok)
	assert.Equal(t, "1", node.ID)
	assert.Len(t, edges, 2)

	n, e := m.Len()
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, e)

	_, _, ok = m.RemoveNode("1")
	assert.False(t, ok, "removing an unknown id is a no-op")
}

func TestRemoveCompoundOrphansChildren(t *testing.T) {
	m := New()
	m.UpsertNode(domain.NewCompound("compound-2", "Compound Node for 2", ""))
	child := domain.NewNode("5", domain.KindHost, "Host")
	child.Parent = "compound-2"
	m.UpsertNode(child)

	m.RemoveNode("compound-2")

	got, ok := m.Node("5")
	require.True(t, ok)
	assert.Empty(t, got.Parent)
}

func TestUpsertEdgeRejectsDanglingEndpoints(t *testing.T) {
	m := seeded(t)

	err := m.UpsertEdge(domain.NewEdge("2", "99", "X"))
	assert.ErrorIs(t, err, domain.ErrDanglingEdge)
	assert.False(t, m.HasEdge("2", "99"))

	require.NoError(t, m.UpsertEdge(domain.Edge{Source: "2", Target: "3", Relation: "PEER"}))
	edges := m.Edges()
	assert.Equal(t, "2-3", edges[len(edges)-1].ID)
}

func TestRemoveEdge(t *testing.T) {
	m := seeded(t)

	e, ok := m.RemoveEdge("1", "2")
	require.True(t, ok)
	assert.Equal(t, "1-2", e.ID)
	assert.False(t, m.HasEdge("1", "2"))

	_, ok = m.RemoveEdge("1", "2")
	assert.False(t, ok)
}

func TestSetNodeValue(t *testing.T) {
	m := seeded(t)

	assert.True(t, m.SetNodeValue("2", domain.SeverityHigh))
	n, _ := m.Node("2")
	assert.Equal(t, domain.SeverityHigh, n.Value)
	assert.False(t, m.SetNodeValue("404", domain.SeverityHigh))
}

func TestNodeReturnsCopy(t *testing.T) {
	m := New()
	m.UpsertNode(domain.Node{ID: "org", Kind: domain.KindOrganizationUnit, Hosts: []string{"10.0.0.0/24"}})

	n, _ := m.Node("org")
	n.Hosts[0] = "mutated"

	again, _ := m.Node("org")
	assert.Equal(t, "10.0.0.0/24", again.Hosts[0])
}

func TestElementsWireOrder(t *testing.T) {
	m := seeded(t)

	data, err := json.Marshal(m.Elements())
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"data":{"id":"1","type":"Subnet","label":"10.0.0.0/24","details":null}},
		{"data":{"id":"2","type":"IP","label":"10.0.0.1","details":null}},
		{"data":{"id":"3","type":"IP","label":"10.0.0.2","details":null}},
		{"data":{"id":"1-2","source":"1","target":"2","label":"HAS"}},
		{"data":{"id":"1-3","source":"1","target":"3","label":"HAS"}}
	]`, string(data))
}

func TestRestoreSkipsDanglingEdges(t *testing.T) {
	m := New()
	skipped := m.Restore(domain.Snapshot{
		Nodes: []domain.Node{domain.NewNode("a", domain.KindIP, "a")},
		Edges: []domain.Edge{domain.NewEdge("a", "b", "X")},
	})

	require.Len(t, skipped, 1)
	_, edges := m.Len()
	assert.Zero(t, edges)
}

func TestSnapshotRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	kinds := make([]interface{}, 0, len(domain.AllKinds))
	for _, k := range domain.AllKinds {
		kinds = append(kinds, k)
	}

	properties.Property("restore(snapshot(g)) equals g", prop.ForAll(
		func(count int, kind domain.NodeKind, links []int, score float64) bool {
			src := New()
			for i := 0; i < count; i++ {
				n := domain.NewNode(fmt.Sprint(i), kind, fmt.Sprintf("node %d", i))
				if i%2 == 0 {
					n.Details = domain.NumberDetails(score)
				} else {
					n.Details = domain.StringDetails("note")
				}
				src.UpsertNode(n)
			}
			for i, l := range links {
				if count == 0 {
					break
				}
				_ = src.UpsertEdge(domain.NewEdge(fmt.Sprint(i%count), fmt.Sprint(l%count), "REL"))
			}

			snap := src.Snapshot()
			raw, err := json.Marshal(snap)
			if err != nil {
				return false
			}
			var decoded domain.Snapshot
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return false
			}

			dst := New()
			if skipped := dst.Restore(decoded); len(skipped) != 0 {
				return false
			}
			return cmp.Equal(snap, dst.Snapshot())
		},
		gen.IntRange(0, 30),
		gen.OneConstOf(kinds...),
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.Float64Range(0, 10),
	))

	properties.TestingRun(t)
}
