package graphio

import (
	"fmt"
	"os"

	"github.com/graphbolt/boltd/graph"
)

// Load builds a graph from path: a directory is loaded as a nodes.csv /
// edges.csv pair, anything else is loaded as a JSONL file.
func Load(path string) (*graph.Graph, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("graphio: %w", err)
	}

	g := graph.New()
	if info.IsDir() {
		if err := LoadCSVDir(path, g); err != nil {
			return nil, err
		}
		return g, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("graphio: %w", err)
	}
	defer f.Close()
	if err := LoadJSONL(f, g); err != nil {
		return nil, fmt.Errorf("graphio: loading %s: %w", path, err)
	}
	return g, nil
}
