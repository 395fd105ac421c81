// Package connid generates connection identifiers of the form
// "<hostname>_<seq>": a cached per-process hostname prefix plus a
// monotonically incrementing, never-recycled sequence number.
package connid

import (
	"fmt"
	"os"
	"sync/atomic"
)

var cachedPrefix = ""

// prefix returns this process's hostname, cached because the hostname is
// constant for the life of the process.
func prefix() (string, error) {
	if cachedPrefix == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return "", err
		}
		cachedPrefix = hostname
	}
	return cachedPrefix, nil
}

// Generator produces connection ids unique for the lifetime of one process.
type Generator struct {
	seq int64
}

// New returns a Generator.
func New() *Generator {
	return &Generator{}
}

// Next returns the next connection id: "<hostname>_<seq>". The sequence
// counter never repeats or decreases within a process's lifetime.
func (g *Generator) Next() (string, error) {
	p, err := prefix()
	if err != nil {
		return "", err
	}
	seq := atomic.AddInt64(&g.seq, 1)
	return fmt.Sprintf("%s_%d", p, seq), nil
}
