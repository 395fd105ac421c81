package graphio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/graphbolt/boltd/graph"
)

// nodeCSVRow is one row of a nodes.csv graph source. Labels is a
// comma-separated list; Props is a JSON object, both following the csvtool
// convention of flattening structured fields into single text columns.
type nodeCSVRow struct {
	Key    string `csv:"key"`
	Labels string `csv:"labels"`
	Props  string `csv:"props"`
}

// edgeCSVRow is one row of an edges.csv graph source.
type edgeCSVRow struct {
	Start string `csv:"start"`
	End   string `csv:"end"`
	Type  string `csv:"type"`
	Props string `csv:"props"`
}

// LoadCSVDir loads a graph from dir/nodes.csv and dir/edges.csv. edges.csv is
// optional; nodes.csv is required.
func LoadCSVDir(dir string, g *graph.Graph) error {
	nodesPath := filepath.Join(dir, "nodes.csv")
	if err := loadNodesCSV(nodesPath, g); err != nil {
		return fmt.Errorf("graphio: loading %s: %w", nodesPath, err)
	}

	edgesPath := filepath.Join(dir, "edges.csv")
	if _, err := os.Stat(edgesPath); err == nil {
		if err := loadEdgesCSV(edgesPath, g); err != nil {
			return fmt.Errorf("graphio: loading %s: %w", edgesPath, err)
		}
	}
	return nil
}

func loadNodesCSV(path string, g *graph.Graph) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var rows []*nodeCSVRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		props, err := parsePropsJSON(row.Props)
		if err != nil {
			return fmt.Errorf("node %q: %w", row.Key, err)
		}
		g.AddNode(row.Key, splitLabels(row.Labels), props)
	}
	return nil
}

func loadEdgesCSV(path string, g *graph.Graph) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var rows []*edgeCSVRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		props, err := parsePropsJSON(row.Props)
		if err != nil {
			return fmt.Errorf("edge %s->%s: %w", row.Start, row.End, err)
		}
		g.AddEdge(row.Start, row.End, row.Type, props)
	}
	return nil
}

func splitLabels(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePropsJSON(s string) (map[string]interface{}, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
