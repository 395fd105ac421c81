// Package graphio loads the graph a boltd instance serves, either from a
// newline-delimited JSON (JSONL) file or from a directory of CSV files, and
// supplies the built-in sample graph used when no source is given.
package graphio

import (
	"github.com/graphbolt/boltd/graph"
)

// NodeRecord is one node entry in a JSONL graph source.
type NodeRecord struct {
	Key    string                 `json:"key"`
	Labels []string               `json:"labels"`
	Props  map[string]interface{} `json:"props"`
}

// EdgeRecord is one edge entry in a JSONL graph source.
type EdgeRecord struct {
	Start string                 `json:"start"`
	End   string                 `json:"end"`
	Type  string                 `json:"type"`
	Props map[string]interface{} `json:"props"`
}

// Record is one line of a JSONL graph source: exactly one of Node or Edge is
// set.
type Record struct {
	Node *NodeRecord `json:"node,omitempty"`
	Edge *EdgeRecord `json:"edge,omitempty"`
}

// Apply adds the record's node or edge to g.
func (r *Record) Apply(g *graph.Graph) {
	switch {
	case r.Node != nil:
		g.AddNode(r.Node.Key, r.Node.Labels, toPackstreamProps(r.Node.Props))
	case r.Edge != nil:
		g.AddEdge(r.Edge.Start, r.Edge.End, r.Edge.Type, toPackstreamProps(r.Edge.Props))
	}
}

func toPackstreamProps(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	return m
}
