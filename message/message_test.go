package message

import (
	"reflect"
	"testing"

	"github.com/graphbolt/boltd/packstream"
)

func TestNodeFieldOrderAndDefaultElementID(t *testing.T) {
	n := Node(7, []string{"Person"}, map[string]packstream.Value{"name": "Ada"}, "")
	if n.Tag != TagNode {
		t.Fatalf("tag = 0x%02X, want 0x%02X", n.Tag, TagNode)
	}
	want := []packstream.Value{
		int64(7),
		[]packstream.Value{"Person"},
		map[string]packstream.Value{"name": "Ada"},
		"7",
	}
	if !reflect.DeepEqual(n.Fields, want) {
		t.Errorf("fields = %#v, want %#v", n.Fields, want)
	}
}

func TestNodeExplicitElementID(t *testing.T) {
	n := Node(7, nil, nil, "node-7")
	if n.Fields[3] != "node-7" {
		t.Errorf("element_id = %v, want node-7", n.Fields[3])
	}
	if !reflect.DeepEqual(n.Fields[1], []packstream.Value{}) {
		t.Errorf("labels = %#v, want empty list", n.Fields[1])
	}
	if !reflect.DeepEqual(n.Fields[2], map[string]packstream.Value{}) {
		t.Errorf("properties = %#v, want empty map", n.Fields[2])
	}
}

func TestRelationshipFieldOrder(t *testing.T) {
	r := Relationship(1, 2, 3, "KNOWS", map[string]packstream.Value{"since": int64(2020)}, "", "", "")
	if r.Tag != TagRelationship {
		t.Fatalf("tag = 0x%02X, want 0x%02X", r.Tag, TagRelationship)
	}
	want := []packstream.Value{
		int64(1), int64(2), int64(3), "KNOWS",
		map[string]packstream.Value{"since": int64(2020)},
		"1", "2", "3",
	}
	if !reflect.DeepEqual(r.Fields, want) {
		t.Errorf("fields = %#v, want %#v", r.Fields, want)
	}
}

func TestUnboundRelationshipFieldOrder(t *testing.T) {
	r := UnboundRelationship(5, "KNOWS", nil, "")
	if r.Tag != TagUnboundRelationship {
		t.Fatalf("tag = 0x%02X, want 0x%02X", r.Tag, TagUnboundRelationship)
	}
	want := []packstream.Value{int64(5), "KNOWS", map[string]packstream.Value{}, "5"}
	if !reflect.DeepEqual(r.Fields, want) {
		t.Errorf("fields = %#v, want %#v", r.Fields, want)
	}
}

func TestPathStructure(t *testing.T) {
	n0 := Node(0, []string{"A"}, nil, "")
	n1 := Node(1, []string{"B"}, nil, "")
	r0 := UnboundRelationship(0, "REL", nil, "")
	p := Path([]*packstream.Struct{n0, n1}, []*packstream.Struct{r0}, []int64{0, 1, 1})

	if p.Tag != TagPath {
		t.Fatalf("tag = 0x%02X, want 0x%02X", p.Tag, TagPath)
	}
	if len(p.Fields) != 3 {
		t.Fatalf("path has %d fields, want 3", len(p.Fields))
	}
	nodes, ok := p.Fields[0].([]packstream.Value)
	if !ok || len(nodes) != 2 {
		t.Fatalf("nodes field: got %#v", p.Fields[0])
	}
	rels, ok := p.Fields[1].([]packstream.Value)
	if !ok || len(rels) != 1 {
		t.Fatalf("rels field: got %#v", p.Fields[1])
	}
	indices, ok := p.Fields[2].([]packstream.Value)
	if !ok || len(indices) != 3 {
		t.Fatalf("indices field: got %#v", p.Fields[2])
	}
}

func TestResponseConstructors(t *testing.T) {
	s := Success(map[string]packstream.Value{"server": "boltd/1.0"})
	if s.Tag != TagSuccess || len(s.Fields) != 1 {
		t.Fatalf("Success malformed: %#v", s)
	}

	f := Failure("Neo.ClientError.Statement.SyntaxError", "bad query")
	if f.Tag != TagFailure {
		t.Fatalf("Failure tag = 0x%02X", f.Tag)
	}
	meta := f.Fields[0].(map[string]packstream.Value)
	if meta["code"] != "Neo.ClientError.Statement.SyntaxError" || meta["message"] != "bad query" {
		t.Errorf("Failure metadata = %#v", meta)
	}

	r := Record([]packstream.Value{int64(1), "x"})
	if r.Tag != TagRecord || len(r.Fields) != 1 {
		t.Fatalf("Record malformed: %#v", r)
	}

	ig := Ignored()
	if ig.Tag != TagIgnored {
		t.Fatalf("Ignored tag = 0x%02X", ig.Tag)
	}
}

func TestRequestName(t *testing.T) {
	if Name(TagRun) != "RUN" {
		t.Errorf("Name(RUN) = %q", Name(TagRun))
	}
	if Name(0xAB) != "UNKNOWN" {
		t.Errorf("Name(unknown) = %q", Name(0xAB))
	}
}

func TestEncodableThroughPackstream(t *testing.T) {
	n := Node(1, []string{"Person"}, map[string]packstream.Value{"name": "Bob"}, "")
	if _, err := packstream.Encode(n); err != nil {
		t.Fatalf("Encode(Node): %v", err)
	}
}
