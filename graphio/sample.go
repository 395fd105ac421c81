package graphio

import "github.com/graphbolt/boltd/graph"

// SampleGraph returns the built-in demo graph served when boltd is started
// without --graph: a handful of people, the companies they work at, and the
// KNOWS/WORKS_AT edges between them.
func SampleGraph() *graph.Graph {
	g := graph.New()

	g.AddNode("alice", []string{"Person"}, map[string]interface{}{"name": "Alice", "age": int64(34)})
	g.AddNode("bob", []string{"Person"}, map[string]interface{}{"name": "Bob", "age": int64(29)})
	g.AddNode("carol", []string{"Person"}, map[string]interface{}{"name": "Carol", "age": int64(41)})
	g.AddNode("dave", []string{"Person"}, map[string]interface{}{"name": "Dave", "age": int64(37)})
	g.AddNode("acme", []string{"Company"}, map[string]interface{}{"name": "Acme"})
	g.AddNode("globex", []string{"Company"}, map[string]interface{}{"name": "Globex"})

	g.AddEdge("alice", "bob", "KNOWS", map[string]interface{}{"since": int64(2018)})
	g.AddEdge("bob", "carol", "KNOWS", map[string]interface{}{"since": int64(2020)})
	g.AddEdge("carol", "dave", "KNOWS", map[string]interface{}{"since": int64(2015)})
	g.AddEdge("dave", "alice", "KNOWS", map[string]interface{}{"since": int64(2022)})

	g.AddEdge("alice", "acme", "WORKS_AT", map[string]interface{}{"title": "Engineer"})
	g.AddEdge("bob", "acme", "WORKS_AT", map[string]interface{}{"title": "Designer"})
	g.AddEdge("carol", "globex", "WORKS_AT", map[string]interface{}{"title": "Manager"})
	g.AddEdge("dave", "globex", "WORKS_AT", map[string]interface{}{"title": "Engineer"})

	return g
}
