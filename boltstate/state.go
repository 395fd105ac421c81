// Package boltstate implements the Bolt connection state machine: the set
// of legal states and the transition table governing movement between them.
package boltstate

import (
	"fmt"
)

// State is the enumeration of Bolt connection states.
type State int32

const (
	Negotiation State = iota
	Authentication
	Ready
	Streaming
	TxReady
	TxStreaming
	Failed
	Defunct
)

var stateName = map[State]string{
	Negotiation:    "NEGOTIATION",
	Authentication: "AUTHENTICATION",
	Ready:          "READY",
	Streaming:      "STREAMING",
	TxReady:        "TX_READY",
	TxStreaming:    "TX_STREAMING",
	Failed:         "FAILED",
	Defunct:        "DEFUNCT",
}

func (s State) String() string {
	n, ok := stateName[s]
	if !ok {
		return fmt.Sprintf("UNKNOWN_STATE_%d", s)
	}
	return n
}

// validTransitions enumerates the legal successor states for each state.
var validTransitions = map[State]map[State]bool{
	Negotiation:    {Authentication: true, Defunct: true},
	Authentication: {Ready: true, Defunct: true},
	Ready:          {Streaming: true, TxReady: true, Failed: true, Defunct: true},
	Streaming:      {Ready: true, Streaming: true, Failed: true, Defunct: true},
	TxReady:        {TxStreaming: true, Ready: true, Failed: true, Defunct: true},
	TxStreaming:    {TxReady: true, TxStreaming: true, Failed: true, Defunct: true},
	Failed:         {Ready: true, Defunct: true},
	Defunct:        {},
}

// BadTransitionError reports an attempted move between states with no edge
// in the transition table.
type BadTransitionError struct {
	From, To State
}

func (e *BadTransitionError) Error() string {
	return fmt.Sprintf("boltstate: invalid transition %s -> %s", e.From, e.To)
}

// Machine tracks a single connection's current state and enforces the
// transition table. The zero value starts in Negotiation.
type Machine struct {
	state State
}

// New returns a Machine starting in Negotiation.
func New() *Machine {
	return &Machine{state: Negotiation}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// CanTransitionTo reports whether moving to s is a legal edge from the
// current state.
func (m *Machine) CanTransitionTo(s State) bool {
	return validTransitions[m.state][s]
}

// TransitionTo moves to s, or returns a *BadTransitionError if the edge is
// not legal.
func (m *Machine) TransitionTo(s State) error {
	if !m.CanTransitionTo(s) {
		return &BadTransitionError{From: m.state, To: s}
	}
	m.state = s
	return nil
}

// Reset forces the machine to READY from any non-defunct state, per RESET's
// permissive handling: RESET is accepted regardless of the current state as
// long as the connection is not already dead.
func (m *Machine) Reset() {
	if m.state != Defunct {
		m.state = Ready
	}
}

// MarkDefunct moves the machine to DEFUNCT. Idempotent.
func (m *Machine) MarkDefunct() {
	m.state = Defunct
}

// IsDefunct reports whether the connection is terminally dead.
func (m *Machine) IsDefunct() bool {
	return m.state == Defunct
}

// InTransaction reports whether the current state belongs to a transaction.
func (m *Machine) InTransaction() bool {
	return m.state == TxReady || m.state == TxStreaming
}

// IsStreaming reports whether the current state is mid-result-delivery.
func (m *Machine) IsStreaming() bool {
	return m.state == Streaming || m.state == TxStreaming
}
