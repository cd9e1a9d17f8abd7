// Package token implements the GENOME fungible token ledger: balances,
// allowances, minter authorization and a hard supply cap.
package token

import (
	"github.com/holiman/uint256"

	"github.com/genomechain/genome-ledger/internal/chain"
)

const (
	Name     = "Genome Token"
	Symbol   = "GENOME"
	Decimals = chain.Decimals
)

// DefaultMaxSupply is the hard cap on tokens in existence: ten billion GENOME.
var DefaultMaxSupply = chain.Units(10_000_000_000)

// Ledger errors.
var (
	ErrUnauthorized          = chain.NewError(chain.CodeUnauthorized, "Unauthorized")
	ErrSupplyCapExceeded     = chain.NewError(chain.CodeSupplyCapExceeded, "SupplyCapExceeded")
	ErrInsufficientBalance   = chain.NewError(chain.CodeInsufficientFunds, "InsufficientBalance")
	ErrInsufficientAllowance = chain.NewError(chain.CodeInsufficientFunds, "InsufficientAllowance")
	ErrZeroAmount            = chain.NewError(chain.CodeInvalidInput, "ZeroAmount")
	ErrAlreadyMinter         = chain.NewError(chain.CodeAlreadyDone, "AlreadyMinter")
	ErrNotMinter             = chain.NewError(chain.CodeInvalidState, "NotMinter")
)

// Config holds deployment parameters.
type Config struct {
	Owner     chain.Address
	MaxSupply *uint256.Int
}

// Ledger is the GENOME token contract.
type Ledger struct {
	addr        chain.Address
	ctl         chain.Controls
	minters     chain.RoleSet
	maxSupply   uint256.Int
	totalSupply uint256.Int
	balances    map[chain.Address]uint256.Int
	allowances  map[chain.Address]map[chain.Address]uint256.Int
}

// New deploys a ledger at addr. The owner starts as the only minter.
func New(addr chain.Address, cfg Config) *Ledger {
	l := &Ledger{
		addr:       addr,
		ctl:        chain.NewControls(cfg.Owner),
		minters:    chain.NewRoleSet(cfg.Owner),
		balances:   make(map[chain.Address]uint256.Int),
		allowances: make(map[chain.Address]map[chain.Address]uint256.Int),
	}
	if cfg.MaxSupply != nil {
		l.maxSupply = *cfg.MaxSupply
	} else {
		l.maxSupply = *DefaultMaxSupply
	}
	return l
}

// Address returns the contract address.
func (l *Ledger) Address() chain.Address { return l.addr }

// Owner returns the contract owner.
func (l *Ledger) Owner() chain.Address { return l.ctl.Owner() }

// Paused reports whether transfers are halted.
func (l *Ledger) Paused() bool { return l.ctl.Paused() }

// TotalSupply returns the amount of tokens in existence.
func (l *Ledger) TotalSupply() *uint256.Int {
	v := l.totalSupply
	return &v
}

// MaxSupply returns the supply cap.
func (l *Ledger) MaxSupply() *uint256.Int {
	v := l.maxSupply
	return &v
}

// BalanceOf returns the token balance of a.
func (l *Ledger) BalanceOf(a chain.Address) *uint256.Int {
	v := l.balances[a]
	return &v
}

// Allowance returns how much spender may still move on behalf of owner.
func (l *Ledger) Allowance(owner, spender chain.Address) *uint256.Int {
	v := l.allowances[owner][spender]
	return &v
}

// IsMinter reports whether a may mint.
func (l *Ledger) IsMinter(a chain.Address) bool { return l.minters.Has(a) }

// Minters returns the authorized minters.
func (l *Ledger) Minters() []chain.Address { return l.minters.Members() }

// Mint creates amount tokens for to. The caller must be a minter and the
// supply cap must hold. reason is recorded in the TokensMinted event.
func (l *Ledger) Mint(tx *chain.Tx, to chain.Address, amount *uint256.Int, reason string) error {
	if err := l.ctl.WhenNotPaused(); err != nil {
		return err
	}
	if !l.minters.Has(tx.Sender()) {
		return ErrUnauthorized
	}
	if to.IsZero() {
		return chain.ErrZeroAddress
	}
	if amount.IsZero() {
		return ErrZeroAmount
	}
	supply, overflow := new(uint256.Int).AddOverflow(&l.totalSupply, amount)
	if overflow || supply.Gt(&l.maxSupply) {
		return ErrSupplyCapExceeded
	}
	chain.Assign(tx, &l.totalSupply, *supply)
	bal := l.balances[to]
	chain.Put(tx, l.balances, to, *new(uint256.Int).Add(&bal, amount))

	tx.Emit(l.addr, "Transfer", chain.Fields{
		"from":   chain.ZeroAddress.Hex(),
		"to":     to.Hex(),
		"amount": amount.Dec(),
	})
	tx.Emit(l.addr, "TokensMinted", chain.Fields{
		"minter": tx.Sender().Hex(),
		"to":     to.Hex(),
		"amount": amount.Dec(),
		"reason": reason,
	})
	return nil
}

// Transfer moves amount from the caller to to.
func (l *Ledger) Transfer(tx *chain.Tx, to chain.Address, amount *uint256.Int) error {
	if err := l.ctl.WhenNotPaused(); err != nil {
		return err
	}
	return l.move(tx, tx.Sender(), to, amount)
}

// Approve sets how much spender may move on the caller's behalf.
func (l *Ledger) Approve(tx *chain.Tx, spender chain.Address, amount *uint256.Int) error {
	if err := l.ctl.WhenNotPaused(); err != nil {
		return err
	}
	if spender.IsZero() {
		return chain.ErrZeroAddress
	}
	l.setAllowance(tx, tx.Sender(), spender, amount)
	tx.Emit(l.addr, "Approval", chain.Fields{
		"owner":   tx.Sender().Hex(),
		"spender": spender.Hex(),
		"amount":  amount.Dec(),
	})
	return nil
}

// TransferFrom moves amount from from to to using the caller's allowance.
func (l *Ledger) TransferFrom(tx *chain.Tx, from, to chain.Address, amount *uint256.Int) error {
	if err := l.ctl.WhenNotPaused(); err != nil {
		return err
	}
	allowed := l.allowances[from][tx.Sender()]
	if allowed.Lt(amount) {
		return ErrInsufficientAllowance
	}
	if err := l.move(tx, from, to, amount); err != nil {
		return err
	}
	l.setAllowance(tx, from, tx.Sender(), new(uint256.Int).Sub(&allowed, amount))
	return nil
}

// Burn destroys amount of the caller's tokens.
func (l *Ledger) Burn(tx *chain.Tx, amount *uint256.Int) error {
	if err := l.ctl.WhenNotPaused(); err != nil {
		return err
	}
	from := tx.Sender()
	bal := l.balances[from]
	if bal.Lt(amount) {
		return ErrInsufficientBalance
	}
	chain.Put(tx, l.balances, from, *new(uint256.Int).Sub(&bal, amount))
	chain.Assign(tx, &l.totalSupply, *new(uint256.Int).Sub(&l.totalSupply, amount))
	tx.Emit(l.addr, "Transfer", chain.Fields{
		"from":   from.Hex(),
		"to":     chain.ZeroAddress.Hex(),
		"amount": amount.Dec(),
	})
	return nil
}

// AddMinter authorizes a to mint. Owner only.
func (l *Ledger) AddMinter(tx *chain.Tx, a chain.Address) error {
	if err := l.ctl.CheckOwner(tx.Sender()); err != nil {
		return err
	}
	if a.IsZero() {
		return chain.ErrZeroAddress
	}
	if !l.minters.Grant(tx, a) {
		return ErrAlreadyMinter
	}
	tx.Emit(l.addr, "MinterAdded", chain.Fields{"minter": a.Hex()})
	return nil
}

// RemoveMinter revokes a's minting authorization. Owner only.
func (l *Ledger) RemoveMinter(tx *chain.Tx, a chain.Address) error {
	if err := l.ctl.CheckOwner(tx.Sender()); err != nil {
		return err
	}
	if !l.minters.Revoke(tx, a) {
		return ErrNotMinter
	}
	tx.Emit(l.addr, "MinterRemoved", chain.Fields{"minter": a.Hex()})
	return nil
}

// SetPaused halts or resumes mint, transfer and burn. Owner only.
func (l *Ledger) SetPaused(tx *chain.Tx, paused bool) error {
	return l.ctl.SetPaused(tx, l.addr, paused)
}

// TransferOwnership hands the contract to newOwner. Owner only.
func (l *Ledger) TransferOwnership(tx *chain.Tx, newOwner chain.Address) error {
	return l.ctl.TransferOwnership(tx, l.addr, newOwner)
}

func (l *Ledger) move(tx *chain.Tx, from, to chain.Address, amount *uint256.Int) error {
	if to.IsZero() {
		return chain.ErrZeroAddress
	}
	fromBal := l.balances[from]
	if fromBal.Lt(amount) {
		return ErrInsufficientBalance
	}
	chain.Put(tx, l.balances, from, *new(uint256.Int).Sub(&fromBal, amount))
	toBal := l.balances[to]
	chain.Put(tx, l.balances, to, *new(uint256.Int).Add(&toBal, amount))
	tx.Emit(l.addr, "Transfer", chain.Fields{
		"from":   from.Hex(),
		"to":     to.Hex(),
		"amount": amount.Dec(),
	})
	return nil
}

func (l *Ledger) setAllowance(tx *chain.Tx, owner, spender chain.Address, amount *uint256.Int) {
	inner, ok := l.allowances[owner]
	if !ok {
		inner = make(map[chain.Address]uint256.Int)
		chain.Put(tx, l.allowances, owner, inner)
	}
	chain.Put(tx, inner, spender, *amount)
}
