package chain

import (
	"github.com/holiman/uint256"
)

// Receiver is implemented by contracts that run code when they are sent
// native currency. A receiver may call back into other contracts; returning
// an error rejects the payment and reverts the transaction.
type Receiver interface {
	Receive(tx *Tx, from Address, amount *uint256.Int) error
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(tx *Tx, from Address, amount *uint256.Int) error

// Receive implements Receiver.
func (f ReceiverFunc) Receive(tx *Tx, from Address, amount *uint256.Int) error {
	return f(tx, from, amount)
}

// Bank holds native-currency balances.
type Bank struct {
	balances  map[Address]uint256.Int
	receivers map[Address]Receiver
}

func newBank() *Bank {
	return &Bank{
		balances:  make(map[Address]uint256.Int),
		receivers: make(map[Address]Receiver),
	}
}

// BalanceOf returns the native balance of a.
func (b *Bank) BalanceOf(a Address) *uint256.Int {
	v := b.balances[a]
	return &v
}

// SetReceiver installs the payment hook for a. Passing nil removes it.
func (b *Bank) SetReceiver(tx *Tx, a Address, r Receiver) {
	if r == nil {
		old, ok := b.receivers[a]
		if !ok {
			return
		}
		delete(b.receivers, a)
		tx.OnRevert(func() { b.receivers[a] = old })
		return
	}
	Put(tx, b.receivers, a, r)
}

// Credit creates amount out of thin air for to. It models genesis
// allocations and test faucets.
func (b *Bank) Credit(tx *Tx, to Address, amount *uint256.Int) error {
	if to.IsZero() {
		return ErrZeroAddress
	}
	bal := b.balances[to]
	next, overflow := new(uint256.Int).AddOverflow(&bal, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	Put(tx, b.balances, to, *next)
	return nil
}

// Transfer moves amount from one account to another and then runs the
// recipient's Receiver, if any, in a sub-call made by the recipient.
func (b *Bank) Transfer(tx *Tx, from, to Address, amount *uint256.Int) error {
	if to.IsZero() {
		return ErrZeroAddress
	}
	if amount.IsZero() {
		return nil
	}
	fromBal := b.balances[from]
	if fromBal.Lt(amount) {
		return ErrInsufficientNative
	}
	Put(tx, b.balances, from, *new(uint256.Int).Sub(&fromBal, amount))

	toBal := b.balances[to]
	next, overflow := new(uint256.Int).AddOverflow(&toBal, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	Put(tx, b.balances, to, *next)

	if r, ok := b.receivers[to]; ok {
		return r.Receive(tx.Sub(to), from, amount)
	}
	return nil
}
