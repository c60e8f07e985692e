package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestElementMarshal(t *testing.T) {
	t.Run("node", func(t *testing.T) {
		n := NewNode("10", KindIP, "10.0.0.1")
		n.Parent = CompoundID("7")
		data, err := json.Marshal(NodeElement(n))
		if err != nil {
			t.Fatal(err)
		}
		want := `{"data":{"id":"10","type":"IP","label":"10.0.0.1","details":null,"parent":"compound-7"}}`
		if string(data) != want {
			t.Errorf("expected %s, got %s", want, data)
		}
	})

	t.Run("edge", func(t *testing.T) {
		data, err := json.Marshal(EdgeElement(NewEdge("1", "2", "PART_OF")))
		if err != nil {
			t.Fatal(err)
		}
		want := `{"data":{"id":"1-2","source":"1","target":"2","label":"PART_OF"}}`
		if string(data) != want {
			t.Errorf("expected %s, got %s", want, data)
		}
	})

	t.Run("empty element", func(t *testing.T) {
		if _, err := json.Marshal(Element{}); err == nil {
			t.Error("expected error for empty element")
		}
	})
}

func TestElementUnmarshal(t *testing.T) {
	var elems []Element
	body := `[
		{"data": {"id": 42, "type": "IP", "label": "10.0.0.1", "parent": "compound-7"}},
		{"data": {"id": "42-43", "source": 42, "target": 43, "label": "HAS_ASSIGNED"}},
		{"data": {"source": "a", "target": "b"}},
		{"data": {"id": "compound-42", "type": "Compound"}}
	]`
	if err := json.Unmarshal([]byte(body), &elems); err != nil {
		t.Fatal(err)
	}
	if len(elems) != 4 {
		t.Fatalf("expected 4 elements, got %d", len(elems))
	}

	if elems[0].IsEdge() || elems[0].Node.ID != "42" || elems[0].Node.Kind != KindIP {
		t.Errorf("unexpected first element %+v", elems[0].Node)
	}
	if !elems[1].IsEdge() || elems[1].Edge.Source != "42" || elems[1].Edge.Target != "43" {
		t.Errorf("unexpected edge %+v", elems[1].Edge)
	}
	if elems[2].Edge.ID != "a-b" {
		t.Errorf("expected derived id a-b, got %s", elems[2].Edge.ID)
	}
	if elems[3].Ref() != NodeRef("compound-42") {
		t.Errorf("unexpected ref %v", elems[3].Ref())
	}

	for _, bad := range []string{`{}`, `{"data":{"type":"IP"}}`, `{"data":{"id":"1","type":"Router"}}`, `{"data":{"id":true}}`} {
		var e Element
		if err := json.Unmarshal([]byte(bad), &e); err == nil {
			t.Errorf("expected error for %s", bad)
		}
	}
}

func TestEdgeRef(t *testing.T) {
	ref := EdgeRef(Edge{Source: "1", Target: "2"})
	if !ref.IsEdge() || ref.ID != "1-2" {
		t.Errorf("unexpected ref %+v", ref)
	}
	if NodeRef("1").IsEdge() {
		t.Error("node ref reported as edge")
	}
}

func TestGraphFragmentDedup(t *testing.T) {
	f := NewGraphFragment()
	f.AddNode(NewNode("1", KindIP, "a"))
	f.AddNode(NewNode("1", KindIP, "b"))
	f.AddEdge(Edge{Source: "1", Target: "2"})
	f.AddEdge(NewEdge("1", "2", "X"))

	if len(f.Nodes) != 1 || len(f.Edges) != 1 {
		t.Errorf("expected 1 node and 1 edge, got %d and %d", len(f.Nodes), len(f.Edges))
	}
	if !f.HasKind(KindIP) || f.HasKind(KindCVE) {
		t.Error("HasKind mismatch")
	}
	if got := len(f.Elements()); got != 2 {
		t.Errorf("expected 2 elements, got %d", got)
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Severity
		ok    bool
	}{
		{0, SeverityNone, true},
		{0.05, "", false},
		{0.1, SeverityLow, true},
		{3.9, SeverityLow, true},
		{3.91, SeverityMedium, true},
		{6.9, SeverityMedium, true},
		{6.91, SeverityHigh, true},
		{8.9, SeverityHigh, true},
		{8.91, SeverityCritical, true},
		{10.0, SeverityCritical, true},
		{10.1, "", false},
		{-1, "", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.score), func(t *testing.T) {
			got, ok := SeverityFor(tt.score)
			if ok != tt.ok || got != tt.want {
				t.Errorf("SeverityFor(%v) = %q, %v; want %q, %v", tt.score, got, ok, tt.want, tt.ok)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestAdapterError(t *testing.T) {
	if NewAdapterError("neo4j", "expand", nil) != nil {
		t.Error("nil cause should produce nil error")
	}

	err := NewAdapterError("neo4j", "expand", fmt.Errorf("run query: %w", context.DeadlineExceeded))
	var ae *AdapterError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AdapterError, got %T", err)
	}
	if !ae.Timeout() {
		t.Error("deadline exceeded should be a timeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected cause to unwrap")
	}
	if err.Error() != "neo4j expand: run query: context deadline exceeded" {
		t.Errorf("unexpected message %q", err.Error())
	}

	if !NewAdapterError("nmap", "scan", timeoutErr{}).(*AdapterError).Timeout() {
		t.Error("net.Error timeout should be a timeout")
	}
	if NewAdapterError("nmap", "scan", errors.New("boom")).(*AdapterError).Timeout() {
		t.Error("plain error should not be a timeout")
	}

	wrapped := NewAdapterError("outer", "op", err)
	if wrapped != err {
		t.Error("existing AdapterError should not be wrapped again")
	}
}
