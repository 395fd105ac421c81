// Package session implements the per-connection query and transaction
// state described in spec.md §3 and §4.5: the result cursor, the
// transaction working-copy lifecycle, and the monotonic query-id counter.
package session

import (
	"errors"

	"github.com/graphbolt/boltd/graph"
	"github.com/graphbolt/boltd/packstream"
)

// ErrAlreadyInTx is returned by BeginTransaction when a transaction is
// already open on this session.
var ErrAlreadyInTx = errors.New("session: already in a transaction")

// ErrNotInTx is returned by CommitTransaction or RollbackTransaction when no
// transaction is open.
var ErrNotInTx = errors.New("session: not in a transaction")

// Result is a staged query result: the field names in projection order and
// the row-major records, consumed incrementally by PULL/DISCARD.
type Result struct {
	Fields  []string
	Records [][]packstream.Value
	cursor  int
}

// HasMore reports whether any records remain unconsumed.
func (r *Result) HasMore() bool {
	return r.cursor < len(r.Records)
}

// Pull returns up to n remaining records (n<0 means all remaining),
// advancing the cursor.
func (r *Result) Pull(n int64) [][]packstream.Value {
	remaining := len(r.Records) - r.cursor
	take := remaining
	if n >= 0 && int(n) < remaining {
		take = int(n)
	}
	out := r.Records[r.cursor : r.cursor+take]
	r.cursor += take
	return out
}

// Discard advances the cursor by up to n records (n<0 means all remaining)
// without returning them.
func (r *Result) Discard(n int64) {
	remaining := len(r.Records) - r.cursor
	take := remaining
	if n >= 0 && int(n) < remaining {
		take = int(n)
	}
	r.cursor += take
}

// Session holds one connection's query/transaction state. The zero value is
// not usable; construct with New.
type Session struct {
	mainGraph *graph.Graph

	currentResult *Result
	inTransaction bool
	txGraph       *graph.Graph
	lastQid       int64
}

// New returns a Session bound to the given live graph. lastQid starts at -1
// per spec.md §3, so the first RUN that stages a result assigns qid 0.
func New(mainGraph *graph.Graph) *Session {
	return &Session{mainGraph: mainGraph, lastQid: -1}
}

// InTransaction reports whether a transaction is currently open.
func (s *Session) InTransaction() bool {
	return s.inTransaction
}

// BeginTransaction deep-clones the live graph into the session's working
// copy. Fails if a transaction is already open.
func (s *Session) BeginTransaction() error {
	if s.inTransaction {
		return ErrAlreadyInTx
	}
	s.txGraph = s.mainGraph.CloneDeep()
	s.inTransaction = true
	return nil
}

// CommitTransaction atomically replaces the live graph's contents with the
// working copy and clears the transaction. Fails if no transaction is open.
func (s *Session) CommitTransaction() error {
	if !s.inTransaction {
		return ErrNotInTx
	}
	s.mainGraph.ReplaceWith(s.txGraph)
	s.txGraph = nil
	s.inTransaction = false
	return nil
}

// RollbackTransaction discards the working copy and clears the transaction.
// Fails if no transaction is open.
func (s *Session) RollbackTransaction() error {
	if !s.inTransaction {
		return ErrNotInTx
	}
	s.txGraph = nil
	s.inTransaction = false
	return nil
}

// GetWorkingGraph returns the graph a query should execute against: the
// transaction's working copy if one is open, otherwise the live graph.
func (s *Session) GetWorkingGraph() *graph.Graph {
	if s.inTransaction {
		return s.txGraph
	}
	return s.mainGraph
}

// SetResult stages r as the current result and returns the newly assigned
// query id.
func (s *Session) SetResult(r *Result) int64 {
	s.currentResult = r
	s.lastQid++
	return s.lastQid
}

// CurrentResult returns the staged result cursor, or nil if none is staged.
func (s *Session) CurrentResult() *Result {
	return s.currentResult
}

// ClearResult drops the staged result cursor.
func (s *Session) ClearResult() {
	s.currentResult = nil
}

// Reset discards any staged result and, if a transaction is open, rolls it
// back. Used by the RESET message handler (spec.md §4.7).
func (s *Session) Reset() {
	s.ClearResult()
	if s.inTransaction {
		s.txGraph = nil
		s.inTransaction = false
	}
}
