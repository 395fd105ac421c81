// Package graphengine implements the default query engine: a small,
// regexp-assisted interpreter for a documented subset of Cypher, run
// against an in-memory graph.Graph and returning the column-major result
// shape the result converter expects.
package graphengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/graphbolt/boltd/graph"
	"github.com/graphbolt/boltd/packstream"
)

// ErrUnsupportedQuery is returned for any query text outside the documented
// grammar subset.
var ErrUnsupportedQuery = errors.New("graphengine: unsupported query")

// Result is a column-major query result: Fields lists the projected column
// names in query-projection order (spec.md §4.6 requires RECORD field order
// to follow this list), and Columns holds each field's values, all columns
// the same length. Go's map has no defined iteration order, unlike the
// dict the external engine contract (spec.md §6.5) is modeled on, so Fields
// carries the order a bare map could not.
type Result struct {
	Fields  []string
	Columns map[string][]packstream.Value
}

// Engine executes a query string against a graph and returns an ordered
// column-major result.
type Engine interface {
	Run(ctx context.Context, query string, params map[string]packstream.Value, g *graph.Graph) (*Result, error)
}

// Default is the built-in Engine implementation, recognizing:
//
//	RETURN <literal>[ AS alias][, ...]
//	MATCH (n:Label) RETURN n.prop[, ...] [ORDER BY n.prop [DESC]] [LIMIT k]
//	MATCH (a:LabelA)-[:REL_TYPE]->(b:LabelB) RETURN a.prop, b.prop[, ...]
//	CREATE (n:Label {k: v, ...})
//	MATCH (n:Label {k: v}) SET n.prop = value
//
// Anything else returns ErrUnsupportedQuery.
type Default struct{}

// New returns the default engine.
func New() *Default {
	return &Default{}
}

// Run dispatches query to the first matching grammar rule.
func (e *Default) Run(ctx context.Context, query string, params map[string]packstream.Value, g *graph.Graph) (*Result, error) {
	q := normalizeSpace(query)

	if m := reReturnOnly.FindStringSubmatch(q); m != nil {
		return runReturnOnly(m[1], params)
	}
	if m := reMatchSetProp.FindStringSubmatch(q); m != nil {
		return runMatchSet(m, params, g)
	}
	if m := reMatchTwoHop.FindStringSubmatch(q); m != nil {
		return runMatchTwoHop(m, g)
	}
	if m := reMatchOneHop.FindStringSubmatch(q); m != nil {
		return runMatchOneHop(m, g)
	}
	if m := reCreateNode.FindStringSubmatch(q); m != nil {
		return runCreateNode(m, params, g)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedQuery, query)
}
