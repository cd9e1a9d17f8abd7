package chain

import (
	"time"

	"github.com/holiman/uint256"
)

// txState is shared by a transaction and every sub-call made within it.
type txState struct {
	id      string
	now     time.Time
	journal []func()
	events  []Event
}

// Tx is the context of one contract call: who is calling, with how much
// native currency attached, and at what time. Sub-calls into other
// contracts share the same journal, events and timestamp.
type Tx struct {
	state  *txState
	sender Address
	value  uint256.Int
}

// ID returns the transaction id.
func (tx *Tx) ID() string { return tx.state.id }

// Now returns the transaction timestamp. It is fixed for the whole transaction.
func (tx *Tx) Now() time.Time { return tx.state.now }

// Sender returns the immediate caller: the external account for the outer
// call, or the calling contract inside a sub-call.
func (tx *Tx) Sender() Address { return tx.sender }

// Value returns a copy of the native amount attached to this call.
func (tx *Tx) Value() *uint256.Int {
	v := tx.value
	return &v
}

// Sub returns the context for a call made by contract into another contract.
// No value is attached to sub-calls.
func (tx *Tx) Sub(contract Address) *Tx {
	return &Tx{state: tx.state, sender: contract}
}

// OnRevert registers undo to run if the transaction fails. Undo entries run
// in reverse registration order.
func (tx *Tx) OnRevert(undo func()) {
	tx.state.journal = append(tx.state.journal, undo)
}

// Emit buffers an event. Events are published only if the transaction commits.
func (tx *Tx) Emit(contract Address, name string, fields Fields) {
	tx.state.events = append(tx.state.events, Event{
		Contract: contract,
		Name:     name,
		Fields:   fields,
	})
}

func (tx *Tx) revert() {
	j := tx.state.journal
	for i := len(j) - 1; i >= 0; i-- {
		j[i]()
	}
	tx.state.journal = nil
	tx.state.events = nil
}

// Assign sets *p to v and restores the old value if the transaction reverts.
func Assign[T any](tx *Tx, p *T, v T) {
	old := *p
	tx.OnRevert(func() { *p = old })
	*p = v
}

// Put sets m[k] to v and restores the previous entry, or its absence, if the
// transaction reverts.
func Put[K comparable, V any](tx *Tx, m map[K]V, k K, v V) {
	old, existed := m[k]
	tx.OnRevert(func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

// Append appends v to *s and truncates it back if the transaction reverts.
func Append[T any](tx *Tx, s *[]T, v T) {
	n := len(*s)
	tx.OnRevert(func() { *s = (*s)[:n] })
	*s = append(*s, v)
}
