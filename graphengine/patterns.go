package graphengine

import "regexp"

// reReturnOnly matches a bare RETURN with no preceding MATCH/CREATE, e.g.
// "RETURN 1 AS x" — the liveness-probe style queries some drivers issue.
var reReturnOnly = regexp.MustCompile(`(?is)^RETURN\s+(.+)$`)

// reMatchOneHop matches MATCH (n:Label) RETURN ... [ORDER BY ...] [LIMIT ...].
var reMatchOneHop = regexp.MustCompile(
	`(?is)^MATCH\s*\(\s*(\w+)\s*:\s*(\w+)\s*\)\s*RETURN\s+(.+?)` +
		`(?:\s+ORDER\s+BY\s+(\w+)\.(\w+)(\s+DESC)?)?` +
		`(?:\s+LIMIT\s+(\d+))?$`)

// reMatchTwoHop matches MATCH (a:A)-[:REL]->(b:B) RETURN ....
var reMatchTwoHop = regexp.MustCompile(
	`(?is)^MATCH\s*\(\s*(\w+)\s*:\s*(\w+)\s*\)\s*-\s*\[\s*:\s*(\w+)\s*\]\s*->\s*\(\s*(\w+)\s*:\s*(\w+)\s*\)\s*RETURN\s+(.+)$`)

// reMatchSetProp matches MATCH (n:Label {k: v}) SET n.prop = value.
var reMatchSetProp = regexp.MustCompile(
	`(?is)^MATCH\s*\(\s*(\w+)\s*:\s*(\w+)\s*(\{[^}]*\})?\s*\)\s*SET\s+(\w+)\.(\w+)\s*=\s*(.+)$`)

// reCreateNode matches CREATE (n:Label {k: v, ...}).
var reCreateNode = regexp.MustCompile(
	`(?is)^CREATE\s*\(\s*(\w+)\s*:\s*(\w+)\s*(\{[^}]*\})?\s*\)$`)

// rePropPair extracts key:value pairs from inside a {...} property map body.
var rePropPair = regexp.MustCompile(`(\w+)\s*:\s*([^,}]+)`)

// reReturnItem splits one RETURN projection item into its expression and
// optional alias: "n.name AS name" or "n.name".
var reReturnItem = regexp.MustCompile(`(?is)^(.+?)(?:\s+AS\s+(\w+))?$`)

// reDotted matches a simple "var.prop" expression.
var reDotted = regexp.MustCompile(`^(\w+)\.(\w+)$`)
