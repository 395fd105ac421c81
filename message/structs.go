package message

import (
	"strconv"

	"github.com/graphbolt/boltd/packstream"
)

// Node builds a Node structure: (id, labels, properties, element_id).
func Node(id int64, labels []string, properties map[string]packstream.Value, elementID string) *packstream.Struct {
	if elementID == "" {
		elementID = strconv.FormatInt(id, 10)
	}
	return &packstream.Struct{
		Tag: TagNode,
		Fields: []packstream.Value{
			id,
			stringsToValues(labels),
			propsToValue(properties),
			elementID,
		},
	}
}

// Relationship builds a full (bound) Relationship structure:
// (id, start_id, end_id, type, properties, element_id, start_element_id, end_element_id).
func Relationship(id, startID, endID int64, relType string, properties map[string]packstream.Value, elementID, startElementID, endElementID string) *packstream.Struct {
	if elementID == "" {
		elementID = strconv.FormatInt(id, 10)
	}
	if startElementID == "" {
		startElementID = strconv.FormatInt(startID, 10)
	}
	if endElementID == "" {
		endElementID = strconv.FormatInt(endID, 10)
	}
	return &packstream.Struct{
		Tag: TagRelationship,
		Fields: []packstream.Value{
			id,
			startID,
			endID,
			relType,
			propsToValue(properties),
			elementID,
			startElementID,
			endElementID,
		},
	}
}

// UnboundRelationship builds an UnboundRelationship structure used inside
// Path values: (id, type, properties, element_id).
func UnboundRelationship(id int64, relType string, properties map[string]packstream.Value, elementID string) *packstream.Struct {
	if elementID == "" {
		elementID = strconv.FormatInt(id, 10)
	}
	return &packstream.Struct{
		Tag: TagUnboundRelationship,
		Fields: []packstream.Value{
			id,
			relType,
			propsToValue(properties),
			elementID,
		},
	}
}

// Path builds a Path structure: (nodes, rels, indices). indices alternates
// node index (>=0) and signed, 1-based relationship index; the sign encodes
// traversal direction.
func Path(nodes []*packstream.Struct, rels []*packstream.Struct, indices []int64) *packstream.Struct {
	nodeVals := make([]packstream.Value, len(nodes))
	for i, n := range nodes {
		nodeVals[i] = n
	}
	relVals := make([]packstream.Value, len(rels))
	for i, r := range rels {
		relVals[i] = r
	}
	idxVals := make([]packstream.Value, len(indices))
	for i, idx := range indices {
		idxVals[i] = idx
	}
	return &packstream.Struct{
		Tag:    TagPath,
		Fields: []packstream.Value{nodeVals, relVals, idxVals},
	}
}

// Success builds a SUCCESS response carrying the given metadata map.
func Success(metadata map[string]packstream.Value) *packstream.Struct {
	if metadata == nil {
		metadata = map[string]packstream.Value{}
	}
	return &packstream.Struct{Tag: TagSuccess, Fields: []packstream.Value{metadata}}
}

// Failure builds a FAILURE response with the given Neo4j status code and
// human-readable message.
func Failure(code, msg string) *packstream.Struct {
	return &packstream.Struct{
		Tag: TagFailure,
		Fields: []packstream.Value{
			map[string]packstream.Value{"code": code, "message": msg},
		},
	}
}

// Record builds a RECORD response carrying one row of field values.
func Record(fields []packstream.Value) *packstream.Struct {
	return &packstream.Struct{Tag: TagRecord, Fields: []packstream.Value{fields}}
}

// Ignored builds an IGNORED response.
func Ignored() *packstream.Struct {
	return &packstream.Struct{Tag: TagIgnored, Fields: []packstream.Value{map[string]packstream.Value{}}}
}

func stringsToValues(ss []string) []packstream.Value {
	out := make([]packstream.Value, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func propsToValue(props map[string]packstream.Value) map[string]packstream.Value {
	if props == nil {
		return map[string]packstream.Value{}
	}
	return props
}
