package graphio

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/graphbolt/boltd/graph"
)

// Reader streams Records from a JSONL graph source one line at a time,
// mirroring loader.PMReader's Next()-returns-io.EOF shape.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader returns a Reader over rdr.
func NewReader(rdr io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(rdr)}
}

// Next returns the next Record, or io.EOF once the source is exhausted.
// Blank lines are skipped.
func (r *Reader) Next() (*Record, error) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// LoadJSONL reads every record from rdr and applies it to g.
func LoadJSONL(rdr io.Reader, g *graph.Graph) error {
	r := NewReader(rdr)
	for {
		rec, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		rec.Apply(g)
	}
}
