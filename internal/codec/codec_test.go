package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtnet/internal/domain"
)

const fixtureYAML = `
nodes:
  - id: "1"
    type: OrganizationUnit
    label: Research
    hosts: [10.0.0.0/24]
  - id: "2"
    type: subnet
    label: 10.0.0.0/24
    details: N/A
  - id: "3"
    type: CVE
    label: Remote code execution
    details: 9.8
edges:
  - source: "1"
    target: "2"
    label: HAS_SUBNET
  - from_id: "2"
    to_id: "3"
    type: EXPOSES
`

func TestYAMLParse(t *testing.T) {
	frag, err := NewYAMLCodec().Parse(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	require.Len(t, frag.Nodes, 3)
	assert.Equal(t, domain.KindSubnet, frag.Nodes[1].Kind)
	assert.Equal(t, []string{"10.0.0.0/24"}, frag.Nodes[0].Hosts)

	score, ok := frag.Nodes[2].Score()
	require.True(t, ok)
	assert.InDelta(t, 9.8, score, 1e-9)

	require.Len(t, frag.Edges, 2)
	assert.Equal(t, domain.NewEdge("1", "2", "HAS_SUBNET"), frag.Edges[0])
	assert.Equal(t, domain.NewEdge("2", "3", "EXPOSES"), frag.Edges[1])
}

func TestYAMLParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown kind", "nodes:\n  - id: a\n    type: Router\n"},
		{"missing id", "nodes:\n  - label: x\n"},
		{"half edge", "edges:\n  - source: a\n"},
		{"malformed", "nodes: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewYAMLCodec().Parse(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestYAMLEmptyDocument(t *testing.T) {
	frag, err := NewYAMLCodec().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.True(t, frag.IsEmpty())
}

func TestJSONParseElementArray(t *testing.T) {
	doc := `[
		{"data": {"id": 1, "type": "IP", "label": "10.0.0.1", "details": null}},
		{"data": {"id": "2", "type": "Host", "label": "Host"}},
		{"data": {"source": 1, "target": "2", "label": "RESOLVES_TO"}}
	]`
	frag, err := NewJSONCodec().Parse(strings.NewReader(doc))
	require.NoError(t, err)

	require.Len(t, frag.Nodes, 2)
	assert.Equal(t, "1", frag.Nodes[0].ID)
	assert.Equal(t, domain.KindIP, frag.Nodes[0].Kind)
	require.Len(t, frag.Edges, 1)
	assert.Equal(t, "1-2", frag.Edges[0].ID)
}

func TestJSONParseFragment(t *testing.T) {
	doc := `{"nodes": [{"id": "a", "type": "cidr_node", "label": "Org"}],
		"edges": [{"source": "a", "target": "b", "label": "R"}]}`
	frag, err := NewJSONCodec().Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, domain.KindOrganizationUnit, frag.Nodes[0].Kind)
	assert.Equal(t, "a-b", frag.Edges[0].ID)

	_, err = NewJSONCodec().Parse(strings.NewReader(`{"nodes": [{"label": "x"}]}`))
	assert.Error(t, err)
}

func TestExportRoundTrip(t *testing.T) {
	snap := &domain.Snapshot{
		Nodes: []domain.Node{
			{ID: "10", Kind: domain.KindIP, Label: "10.0.0.1", Value: domain.SeverityCritical},
			{ID: "23", Kind: domain.KindCVE, Label: "RCE", Details: domain.NumberDetails(9.8), Parent: "vulnerability-compound-10"},
		},
		Edges: []domain.Edge{domain.NewEdge("10", "23", "HAS")},
		Expansions: []domain.ExpansionRecord{
			{Seed: "10", Elements: []domain.ElementRef{domain.NodeRef("23")}},
		},
	}

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			c, err := ForFormat(format)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, c.Export(snap, &buf))
			assert.Contains(t, buf.String(), "expansions")

			frag, err := c.Parse(&buf)
			require.NoError(t, err)
			require.Len(t, frag.Nodes, 2)
			assert.Equal(t, snap.Nodes[0], frag.Nodes[0])
			assert.True(t, snap.Nodes[1].Details.Equal(frag.Nodes[1].Details))
			assert.Equal(t, snap.Edges, frag.Edges)
		})
	}
}

func TestForPath(t *testing.T) {
	c, err := ForPath("/etc/virtnet/graph.yml")
	require.NoError(t, err)
	assert.Equal(t, "yaml", c.Format())

	c, err = ForPath("graph.JSON")
	require.NoError(t, err)
	assert.Equal(t, "application/json", c.ContentType())

	_, err = ForPath("graph.xml")
	assert.Error(t, err)
}
