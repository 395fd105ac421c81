// Package graph implements the in-memory, property-graph store that the
// Bolt server exposes over the wire: a directed multigraph of nodes and
// typed, attributed edges, with the clone/replace operations transactions
// need and the metadata-annotated row shape the query engine and result
// converter consume.
package graph

import (
	"sync"

	"github.com/graphbolt/boltd/packstream"
)

// NodeKey identifies a node. Keys are caller-chosen strings, mirroring the
// arbitrary hashable node identifiers a property-graph store allows.
type NodeKey = string

// EdgeKey identifies one directed edge between two nodes. Seq distinguishes
// parallel edges of the same endpoints; the zero value is the first edge
// added between a given (Start, End) pair.
type EdgeKey struct {
	Start NodeKey
	End   NodeKey
	Seq   int
}

// Node holds a node's labels and properties.
type Node struct {
	Labels     []string
	Properties map[string]packstream.Value
}

// Edge holds a directed edge's relationship type and properties.
type Edge struct {
	Type       string
	Properties map[string]packstream.Value
}

// Graph is a directed, labeled, attributed multigraph. The zero value is not
// usable; construct with New. A Graph is safe for concurrent use: reads take
// a shared lock, ReplaceWith takes an exclusive one.
type Graph struct {
	mu    sync.RWMutex
	nodes map[NodeKey]*Node
	// order preserves node insertion order so iteration (and therefore the
	// converter's node-ID assignment when scanning the whole graph) is
	// deterministic across calls.
	order []NodeKey

	edges     map[EdgeKey]*Edge
	edgeOrder []EdgeKey
	// nextSeq tracks the next free Seq per (Start, End) pair, so repeated
	// AddEdge calls between the same two nodes create distinct parallel
	// edges rather than overwriting one another.
	nextSeq map[[2]NodeKey]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[NodeKey]*Node),
		edges:   make(map[EdgeKey]*Edge),
		nextSeq: make(map[[2]NodeKey]int),
	}
}

// AddNode inserts or overwrites the node at key. Properties should not
// contain double-underscore-prefixed keys; those are reserved for engine
// metadata added at query time.
func (g *Graph) AddNode(key NodeKey, labels []string, properties map[string]packstream.Value) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[key]; !exists {
		g.order = append(g.order, key)
	}
	g.nodes[key] = &Node{Labels: append([]string(nil), labels...), Properties: cloneProps(properties)}
}

// AddEdge inserts a new directed edge from start to end and returns the key
// assigned to it. Multiple calls with the same endpoints create parallel
// edges distinguished by EdgeKey.Seq.
func (g *Graph) AddEdge(start, end NodeKey, relType string, properties map[string]packstream.Value) EdgeKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	pair := [2]NodeKey{start, end}
	seq := g.nextSeq[pair]
	g.nextSeq[pair] = seq + 1
	key := EdgeKey{Start: start, End: end, Seq: seq}
	g.edges[key] = &Edge{Type: relType, Properties: cloneProps(properties)}
	g.edgeOrder = append(g.edgeOrder, key)
	return key
}

// Node returns the node at key, if present.
func (g *Graph) Node(key NodeKey) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[key]
	return n, ok
}

// SetNodeProperty sets a single property on an existing node. Used by SET.
func (g *Graph) SetNodeProperty(key NodeKey, prop string, value packstream.Value) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[key]
	if !ok {
		return false
	}
	if n.Properties == nil {
		n.Properties = map[string]packstream.Value{}
	}
	n.Properties[prop] = value
	return true
}

// Nodes returns all node keys in insertion order.
func (g *Graph) Nodes() []NodeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]NodeKey, len(g.order))
	copy(out, g.order)
	return out
}

// Edges returns all edge keys in insertion order.
func (g *Graph) Edges() []EdgeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]EdgeKey, len(g.edgeOrder))
	copy(out, g.edgeOrder)
	return out
}

// EdgesFrom returns, in insertion order, the keys of every edge starting at
// key.
func (g *Graph) EdgesFrom(key NodeKey) []EdgeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []EdgeKey
	for _, ek := range g.edgeOrder {
		if ek.Start == key {
			out = append(out, ek)
		}
	}
	return out
}

// Edge returns the edge at key, if present.
func (g *Graph) Edge(key EdgeKey) (*Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[key]
	return e, ok
}

// NodeCount reports the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount reports the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// HasLabel reports whether key's node carries label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// CloneDeep returns an independent deep copy of the graph, used by BEGIN to
// create the transaction's working graph.
func (g *Graph) CloneDeep() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clone := New()
	clone.order = append([]NodeKey(nil), g.order...)
	for k, n := range g.nodes {
		clone.nodes[k] = &Node{
			Labels:     append([]string(nil), n.Labels...),
			Properties: cloneProps(n.Properties),
		}
	}
	clone.edgeOrder = append([]EdgeKey(nil), g.edgeOrder...)
	for k, e := range g.edges {
		clone.edges[k] = &Edge{Type: e.Type, Properties: cloneProps(e.Properties)}
	}
	for k, v := range g.nextSeq {
		clone.nextSeq[k] = v
	}
	return clone
}

// ReplaceWith atomically replaces this graph's entire contents with other's,
// used by COMMIT to apply a transaction's working graph to the live graph.
func (g *Graph) ReplaceWith(other *Graph) {
	other.mu.RLock()
	newNodes := make(map[NodeKey]*Node, len(other.nodes))
	for k, n := range other.nodes {
		newNodes[k] = &Node{Labels: append([]string(nil), n.Labels...), Properties: cloneProps(n.Properties)}
	}
	newOrder := append([]NodeKey(nil), other.order...)
	newEdges := make(map[EdgeKey]*Edge, len(other.edges))
	for k, e := range other.edges {
		newEdges[k] = &Edge{Type: e.Type, Properties: cloneProps(e.Properties)}
	}
	newEdgeOrder := append([]EdgeKey(nil), other.edgeOrder...)
	newNextSeq := make(map[[2]NodeKey]int, len(other.nextSeq))
	for k, v := range other.nextSeq {
		newNextSeq[k] = v
	}
	other.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = newNodes
	g.order = newOrder
	g.edges = newEdges
	g.edgeOrder = newEdgeOrder
	g.nextSeq = newNextSeq
}

// NodeRow renders a node as the metadata-annotated row map the query engine
// produces and the result converter consumes: __node_id__ plus __labels__
// alongside the node's own properties.
func (g *Graph) NodeRow(key NodeKey) (map[string]packstream.Value, bool) {
	n, ok := g.Node(key)
	if !ok {
		return nil, false
	}
	row := map[string]packstream.Value{
		"__node_id__": key,
		"__labels__":  stringsToValues(n.Labels),
	}
	for k, v := range n.Properties {
		row[k] = v
	}
	return row, true
}

// EdgeRow renders an edge as the metadata-annotated row map the query
// engine produces and the result converter consumes.
func (g *Graph) EdgeRow(key EdgeKey) (map[string]packstream.Value, bool) {
	e, ok := g.Edge(key)
	if !ok {
		return nil, false
	}
	row := map[string]packstream.Value{
		"__rel_type__":   e.Type,
		"__edge_key__":   edgeKeyToken(key),
		"__start_node__": key.Start,
		"__end_node__":   key.End,
	}
	for k, v := range e.Properties {
		row[k] = v
	}
	return row, true
}

// edgeKeyToken renders an EdgeKey as a stable, opaque string suitable for use
// as a map key or element-id input.
func edgeKeyToken(k EdgeKey) string {
	return k.Start + "->" + k.End + "#" + itoa(k.Seq)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func cloneProps(props map[string]packstream.Value) map[string]packstream.Value {
	out := make(map[string]packstream.Value, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func stringsToValues(ss []string) []packstream.Value {
	out := make([]packstream.Value, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
