package graph

import (
	"testing"

	"github.com/graphbolt/boltd/packstream"
)

func TestAddNodeAndRetrieve(t *testing.T) {
	g := New()
	g.AddNode("alice", []string{"Person"}, map[string]packstream.Value{"name": "Alice"})

	n, ok := g.Node("alice")
	if !ok {
		t.Fatal("expected node alice to exist")
	}
	if !n.HasLabel("Person") {
		t.Errorf("expected Person label, got %v", n.Labels)
	}
	if n.Properties["name"] != "Alice" {
		t.Errorf("got properties %v", n.Properties)
	}
}

func TestAddEdgeParallelEdgesGetDistinctKeys(t *testing.T) {
	g := New()
	g.AddNode("a", nil, nil)
	g.AddNode("b", nil, nil)

	k1 := g.AddEdge("a", "b", "KNOWS", map[string]packstream.Value{"since": int64(2020)})
	k2 := g.AddEdge("a", "b", "KNOWS", map[string]packstream.Value{"since": int64(2021)})

	if k1 == k2 {
		t.Fatalf("expected distinct edge keys, got %v == %v", k1, k2)
	}
	if k1.Seq != 0 || k2.Seq != 1 {
		t.Errorf("expected seq 0,1; got %d,%d", k1.Seq, k2.Seq)
	}

	e1, _ := g.Edge(k1)
	e2, _ := g.Edge(k2)
	if e1.Properties["since"] != int64(2020) || e2.Properties["since"] != int64(2021) {
		t.Errorf("edge properties mixed up: %v %v", e1, e2)
	}
}

func TestNodeRowShape(t *testing.T) {
	g := New()
	g.AddNode("alice", []string{"Person"}, map[string]packstream.Value{"name": "Alice", "age": int64(30)})

	row, ok := g.NodeRow("alice")
	if !ok {
		t.Fatal("expected row for alice")
	}
	if row["__node_id__"] != "alice" {
		t.Errorf("__node_id__ = %v", row["__node_id__"])
	}
	labels, ok := row["__labels__"].([]packstream.Value)
	if !ok || len(labels) != 1 || labels[0] != "Person" {
		t.Errorf("__labels__ = %v", row["__labels__"])
	}
	if row["name"] != "Alice" || row["age"] != int64(30) {
		t.Errorf("properties missing from row: %v", row)
	}
}

func TestEdgeRowShape(t *testing.T) {
	g := New()
	g.AddNode("a", nil, nil)
	g.AddNode("b", nil, nil)
	k := g.AddEdge("a", "b", "KNOWS", map[string]packstream.Value{"since": int64(2020)})

	row, ok := g.EdgeRow(k)
	if !ok {
		t.Fatal("expected row for edge")
	}
	if row["__rel_type__"] != "KNOWS" {
		t.Errorf("__rel_type__ = %v", row["__rel_type__"])
	}
	if row["__start_node__"] != "a" || row["__end_node__"] != "b" {
		t.Errorf("endpoints wrong: %v %v", row["__start_node__"], row["__end_node__"])
	}
	if row["since"] != int64(2020) {
		t.Errorf("properties missing: %v", row)
	}
}

func TestCloneDeepIsIndependent(t *testing.T) {
	g := New()
	g.AddNode("alice", []string{"Person"}, map[string]packstream.Value{"name": "Alice"})

	clone := g.CloneDeep()
	clone.AddNode("bob", []string{"Person"}, nil)
	clone.SetNodeProperty("alice", "name", "Changed")

	if g.NodeCount() != 1 {
		t.Errorf("original graph mutated: now has %d nodes", g.NodeCount())
	}
	n, _ := g.Node("alice")
	if n.Properties["name"] != "Alice" {
		t.Errorf("original node property mutated: %v", n.Properties["name"])
	}
}

func TestReplaceWith(t *testing.T) {
	live := New()
	live.AddNode("old", nil, nil)

	tx := New()
	tx.AddNode("new", []string{"Person"}, nil)
	tx.AddEdge("new", "new", "SELF", nil)

	live.ReplaceWith(tx)

	if live.NodeCount() != 1 {
		t.Fatalf("expected 1 node after replace, got %d", live.NodeCount())
	}
	if _, ok := live.Node("old"); ok {
		t.Error("old node should be gone after ReplaceWith")
	}
	if _, ok := live.Node("new"); !ok {
		t.Error("new node should be present after ReplaceWith")
	}
	if live.EdgeCount() != 1 {
		t.Errorf("expected 1 edge after replace, got %d", live.EdgeCount())
	}

	// Mutating tx after the fact must not affect live's copy.
	tx.AddNode("extra", nil, nil)
	if live.NodeCount() != 1 {
		t.Errorf("live graph mutated via tx after ReplaceWith: %d nodes", live.NodeCount())
	}
}

func TestEdgesFromOrder(t *testing.T) {
	g := New()
	g.AddNode("a", nil, nil)
	g.AddNode("b", nil, nil)
	g.AddNode("c", nil, nil)
	k1 := g.AddEdge("a", "b", "X", nil)
	g.AddEdge("b", "c", "X", nil)
	k3 := g.AddEdge("a", "c", "X", nil)

	from := g.EdgesFrom("a")
	if len(from) != 2 || from[0] != k1 || from[1] != k3 {
		t.Errorf("EdgesFrom(a) = %v", from)
	}
}
