// Package convert implements the result converter (C6): it turns the
// column-major, metadata-annotated rows the query engine produces into
// row-major protocol records, assigning stable per-connection integer ids
// to nodes and relationships and assembling Node/Relationship/Path
// structures per spec.md §3 and §4.6.
package convert

import (
	"fmt"
	"strings"

	"github.com/graphbolt/boltd/graphengine"
	"github.com/graphbolt/boltd/message"
	"github.com/graphbolt/boltd/packstream"
	"github.com/graphbolt/boltd/session"
)

// Converter holds one connection's id tables. IDs never decrease and are
// never recycled for the lifetime of the Converter. The zero value is not
// usable; construct with New.
type Converter struct {
	nodeIDs    map[string]int64
	nextNodeID int64
	edgeIDs    map[string]int64
	nextEdgeID int64
}

// New returns an empty Converter.
func New() *Converter {
	return &Converter{
		nodeIDs: make(map[string]int64),
		edgeIDs: make(map[string]int64),
	}
}

func (c *Converter) nodeIDFor(key string) int64 {
	if id, ok := c.nodeIDs[key]; ok {
		return id
	}
	id := c.nextNodeID
	c.nextNodeID++
	c.nodeIDs[key] = id
	return id
}

func (c *Converter) edgeIDFor(token string) int64 {
	if id, ok := c.edgeIDs[token]; ok {
		return id
	}
	id := c.nextEdgeID
	c.nextEdgeID++
	c.edgeIDs[token] = id
	return id
}

// ToResult converts an engine result into the row-major session.Result the
// connection handler streams back via RECORD messages.
func (c *Converter) ToResult(r *graphengine.Result) (*session.Result, error) {
	if r == nil {
		return &session.Result{}, nil
	}
	rowCount := 0
	if len(r.Fields) > 0 {
		rowCount = len(r.Columns[r.Fields[0]])
	}
	records := make([][]packstream.Value, rowCount)
	for i := 0; i < rowCount; i++ {
		row := make([]packstream.Value, len(r.Fields))
		for j, field := range r.Fields {
			col := r.Columns[field]
			var raw packstream.Value
			if i < len(col) {
				raw = col[i]
			}
			converted, err := c.convertValue(raw)
			if err != nil {
				return nil, err
			}
			row[j] = converted
		}
		records[i] = row
	}
	return &session.Result{Fields: append([]string(nil), r.Fields...), Records: records}, nil
}

// convertValue recursively converts one engine value: metadata-annotated
// maps become Node/Relationship/Path structures, other maps and lists are
// recursed element-wise, and everything else passes through unchanged.
func (c *Converter) convertValue(v packstream.Value) (packstream.Value, error) {
	switch val := v.(type) {
	case map[string]packstream.Value:
		if _, ok := val["__path__"]; ok {
			seq, _ := val["__path__"].([]packstream.Value)
			return c.convertPath(seq)
		}
		if _, ok := val["__node_id__"]; ok {
			return c.convertNode(val)
		}
		if _, ok := val["__rel_type__"]; ok {
			return c.convertRelationship(val)
		}
		if _, ok := val["__edge_key__"]; ok {
			return c.convertRelationship(val)
		}
		out := make(map[string]packstream.Value, len(val))
		for k, item := range val {
			cv, err := c.convertValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	case []packstream.Value:
		out := make([]packstream.Value, len(val))
		for i, item := range val {
			cv, err := c.convertValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	default:
		return val, nil
	}
}

func (c *Converter) convertNode(row map[string]packstream.Value) (*packstream.Struct, error) {
	key, _ := row["__node_id__"].(string)
	labels := stringList(row["__labels__"])
	props, err := c.convertProps(row)
	if err != nil {
		return nil, err
	}
	return message.Node(c.nodeIDFor(key), labels, props, key), nil
}

func (c *Converter) convertRelationship(row map[string]packstream.Value) (*packstream.Struct, error) {
	startKey, _ := row["__start_node__"].(string)
	endKey, _ := row["__end_node__"].(string)
	relType, _ := row["__rel_type__"].(string)
	if relType == "" {
		if labels := stringList(row["__labels__"]); len(labels) > 0 {
			relType = labels[0]
		}
	}

	token, _ := row["__edge_key__"].(string)
	if token == "" {
		token = startKey + "->" + endKey
	}

	props, err := c.convertProps(row)
	if err != nil {
		return nil, err
	}

	id := c.edgeIDFor(token)
	startID := c.nodeIDFor(startKey)
	endID := c.nodeIDFor(endKey)
	return message.Relationship(id, startID, endID, relType, props, token, startKey, endKey), nil
}

// convertPath assembles a Path structure from a sequence alternating
// node-map, rel-map, node-map, ... Nodes are deduplicated by key; for each
// relationship, traversal direction is forward (index +r) iff the
// following node matches the relationship's __end_node__.
func (c *Converter) convertPath(seq []packstream.Value) (*packstream.Struct, error) {
	if len(seq) == 0 || len(seq)%2 == 0 {
		return nil, fmt.Errorf("convert: malformed path sequence of length %d", len(seq))
	}

	nodeIndex := map[string]int{}
	var nodeStructs []*packstream.Struct
	var relStructs []*packstream.Struct
	var indices []int64

	bindNode := func(item packstream.Value) (int, string, error) {
		row, ok := item.(map[string]packstream.Value)
		if !ok {
			return 0, "", fmt.Errorf("convert: path element is not a node map: %T", item)
		}
		key, _ := row["__node_id__"].(string)
		if idx, ok := nodeIndex[key]; ok {
			return idx, key, nil
		}
		nstruct, err := c.convertNode(row)
		if err != nil {
			return 0, "", err
		}
		idx := len(nodeStructs)
		nodeStructs = append(nodeStructs, nstruct)
		nodeIndex[key] = idx
		return idx, key, nil
	}

	firstIdx, _, err := bindNode(seq[0])
	if err != nil {
		return nil, err
	}
	indices = append(indices, int64(firstIdx))

	for i := 1; i < len(seq); i += 2 {
		relRow, ok := seq[i].(map[string]packstream.Value)
		if !ok {
			return nil, fmt.Errorf("convert: path element is not a relationship map: %T", seq[i])
		}
		relType, _ := relRow["__rel_type__"].(string)
		if relType == "" {
			if labels := stringList(relRow["__labels__"]); len(labels) > 0 {
				relType = labels[0]
			}
		}
		token, _ := relRow["__edge_key__"].(string)
		if token == "" {
			startKey, _ := relRow["__start_node__"].(string)
			endKey, _ := relRow["__end_node__"].(string)
			token = startKey + "->" + endKey
		}
		props, err := c.convertProps(relRow)
		if err != nil {
			return nil, err
		}
		relID := c.edgeIDFor(token)
		relStructs = append(relStructs, message.UnboundRelationship(relID, relType, props, token))
		relPos := int64(len(relStructs)) // 1-based

		endKey, _ := relRow["__end_node__"].(string)
		nextIdx, nextKey, err := bindNode(seq[i+1])
		if err != nil {
			return nil, err
		}
		if nextKey == endKey {
			indices = append(indices, relPos)
		} else {
			indices = append(indices, -relPos)
		}
		indices = append(indices, int64(nextIdx))
	}

	return message.Path(nodeStructs, relStructs, indices), nil
}

// convertProps strips metadata keys (double-underscore-prefixed, per
// spec.md §3) from a row and recursively converts what remains.
func (c *Converter) convertProps(row map[string]packstream.Value) (map[string]packstream.Value, error) {
	out := make(map[string]packstream.Value, len(row))
	for k, v := range row {
		if strings.HasPrefix(k, "__") {
			continue
		}
		cv, err := c.convertValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = cv
	}
	return out, nil
}

func stringList(v packstream.Value) []string {
	items, ok := v.([]packstream.Value)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
