package graphengine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/graphbolt/boltd/graph"
	"github.com/graphbolt/boltd/packstream"
)

// returnItem is one parsed RETURN projection: an expression plus its
// resulting column name (the alias, or the expression text itself).
type returnItem struct {
	expr  string
	alias string
}

func parseReturnItems(body string) []returnItem {
	var items []returnItem
	for _, part := range splitTopLevelCommas(body) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := reReturnItem.FindStringSubmatch(part)
		expr, alias := part, ""
		if m != nil {
			expr = strings.TrimSpace(m[1])
			alias = m[2]
		}
		if alias == "" {
			alias = expr
		}
		items = append(items, returnItem{expr: expr, alias: alias})
	}
	return items
}

// evalExpr resolves a RETURN expression against the current row bindings
// (variable name -> its bound row map) and query parameters.
func evalExpr(expr string, bindings map[string]map[string]packstream.Value, params map[string]packstream.Value) (packstream.Value, error) {
	if m := reDotted.FindStringSubmatch(expr); m != nil {
		row, ok := bindings[m[1]]
		if !ok {
			return nil, fmt.Errorf("graphengine: unbound variable %q", m[1])
		}
		return row[m[2]], nil
	}
	return parseLiteral(expr, params)
}

func fieldOrder(items []returnItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.alias
	}
	return out
}

func runReturnOnly(body string, params map[string]packstream.Value) (*Result, error) {
	items := parseReturnItems(body)
	columns := make(map[string][]packstream.Value, len(items))
	for _, it := range items {
		v, err := evalExpr(it.expr, nil, params)
		if err != nil {
			return nil, err
		}
		columns[it.alias] = []packstream.Value{v}
	}
	return &Result{Fields: fieldOrder(items), Columns: columns}, nil
}

func runMatchOneHop(m []string, g *graph.Graph) (*Result, error) {
	varName, label, returnBody := m[1], m[2], m[3]
	orderVar, orderProp, orderDesc, limitStr := m[4], m[5], m[6], m[7]

	items := parseReturnItems(returnBody)
	columns := make(map[string][]packstream.Value, len(items))
	for _, it := range items {
		columns[it.alias] = nil
	}

	type boundRow struct {
		row map[string]packstream.Value
	}
	var rows []boundRow
	for _, key := range g.Nodes() {
		row, ok := g.NodeRow(key)
		if !ok {
			continue
		}
		labels, _ := row["__labels__"].([]packstream.Value)
		if !hasLabel(labels, label) {
			continue
		}
		rows = append(rows, boundRow{row: row})
	}

	if orderVar != "" {
		desc := strings.TrimSpace(orderDesc) != ""
		sort.SliceStable(rows, func(i, j int) bool {
			vi := fmt.Sprint(rows[i].row[orderProp])
			vj := fmt.Sprint(rows[j].row[orderProp])
			if desc {
				return vi > vj
			}
			return vi < vj
		})
	}

	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err == nil && n < len(rows) {
			rows = rows[:n]
		}
	}

	for _, br := range rows {
		bindings := map[string]map[string]packstream.Value{varName: br.row}
		for _, it := range items {
			v, err := evalExpr(it.expr, bindings, nil)
			if err != nil {
				return nil, err
			}
			columns[it.alias] = append(columns[it.alias], v)
		}
	}
	return &Result{Fields: fieldOrder(items), Columns: columns}, nil
}

func runMatchTwoHop(m []string, g *graph.Graph) (*Result, error) {
	aVar, aLabel, relType, bVar, bLabel, returnBody := m[1], m[2], m[3], m[4], m[5], m[6]
	items := parseReturnItems(returnBody)
	columns := make(map[string][]packstream.Value, len(items))
	for _, it := range items {
		columns[it.alias] = nil
	}

	for _, startKey := range g.Nodes() {
		aRow, ok := g.NodeRow(startKey)
		if !ok {
			continue
		}
		aLabels, _ := aRow["__labels__"].([]packstream.Value)
		if !hasLabel(aLabels, aLabel) {
			continue
		}
		for _, ek := range g.EdgesFrom(startKey) {
			edge, ok := g.Edge(ek)
			if !ok || edge.Type != relType {
				continue
			}
			bRow, ok := g.NodeRow(ek.End)
			if !ok {
				continue
			}
			bLabels, _ := bRow["__labels__"].([]packstream.Value)
			if !hasLabel(bLabels, bLabel) {
				continue
			}
			bindings := map[string]map[string]packstream.Value{aVar: aRow, bVar: bRow}
			for _, it := range items {
				v, err := evalExpr(it.expr, bindings, nil)
				if err != nil {
					return nil, err
				}
				columns[it.alias] = append(columns[it.alias], v)
			}
		}
	}
	return &Result{Fields: fieldOrder(items), Columns: columns}, nil
}

func runCreateNode(m []string, params map[string]packstream.Value, g *graph.Graph) (*Result, error) {
	varName, label, propsBody := m[1], m[2], m[3]
	props, err := parsePropMap(propsBody, params)
	if err != nil {
		return nil, err
	}

	key, ok := props["key"].(string)
	if !ok || key == "" {
		key = fmt.Sprintf("%s_%d", strings.ToLower(label), g.NodeCount())
	}
	clean := map[string]packstream.Value{}
	for k, v := range props {
		if k != "key" {
			clean[k] = v
		}
	}
	g.AddNode(key, []string{label}, clean)

	_ = varName
	return &Result{}, nil
}

func runMatchSet(m []string, params map[string]packstream.Value, g *graph.Graph) (*Result, error) {
	matchVar, matchLabel, matchProps := m[1], m[2], m[3]
	setVar, setProp, valueExpr := m[4], m[5], m[6]

	if setVar != matchVar {
		return nil, fmt.Errorf("graphengine: SET target %q does not match bound variable %q", setVar, matchVar)
	}

	filter, err := parsePropMap(matchProps, params)
	if err != nil {
		return nil, err
	}
	value, err := parseLiteral(valueExpr, params)
	if err != nil {
		return nil, err
	}

	for _, key := range g.Nodes() {
		row, ok := g.NodeRow(key)
		if !ok {
			continue
		}
		labels, _ := row["__labels__"].([]packstream.Value)
		if !hasLabel(labels, matchLabel) {
			continue
		}
		if !matchesFilter(row, filter) {
			continue
		}
		g.SetNodeProperty(key, setProp, value)
	}
	_ = matchVar
	return &Result{}, nil
}

func hasLabel(labels []packstream.Value, want string) bool {
	for _, l := range labels {
		if s, ok := l.(string); ok && s == want {
			return true
		}
	}
	return false
}

func matchesFilter(row map[string]packstream.Value, filter map[string]packstream.Value) bool {
	for k, v := range filter {
		if row[k] != v {
			return false
		}
	}
	return true
}
