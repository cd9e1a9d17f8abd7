package chain

// Ownable gates calls on a single owner account.
type Ownable struct {
	owner Address
}

// NewOwnable returns an Ownable owned by owner.
func NewOwnable(owner Address) Ownable {
	return Ownable{owner: owner}
}

// Owner returns the current owner.
func (o *Ownable) Owner() Address {
	return o.owner
}

// CheckOwner fails with ErrUnauthorized unless caller is the owner.
func (o *Ownable) CheckOwner(caller Address) error {
	if caller != o.owner {
		return ErrUnauthorized
	}
	return nil
}

// TransferOwnership hands the contract to newOwner. Only the owner may call it.
func (o *Ownable) TransferOwnership(tx *Tx, contract, newOwner Address) error {
	if err := o.CheckOwner(tx.Sender()); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return ErrZeroAddress
	}
	prev := o.owner
	Assign(tx, &o.owner, newOwner)
	tx.Emit(contract, "OwnershipTransferred", Fields{
		"previous_owner": prev.Hex(),
		"new_owner":      newOwner.Hex(),
	})
	return nil
}

// Pausable is a global on/off switch for state-mutating calls.
type Pausable struct {
	paused bool
}

// Paused reports whether the switch is on.
func (p *Pausable) Paused() bool {
	return p.paused
}

// WhenNotPaused fails with ErrPaused while paused.
func (p *Pausable) WhenNotPaused() error {
	if p.paused {
		return ErrPaused
	}
	return nil
}

// Guard is a call-scoped exclusivity lock. A contract enters it on each
// mutating entry point and leaves only after its own state is final.
type Guard struct {
	entered bool
}

// Enter takes the lock. The returned release must be called exactly once,
// normally deferred.
func (g *Guard) Enter() (release func(), err error) {
	if g.entered {
		return nil, ErrReentrantCall
	}
	g.entered = true
	return func() { g.entered = false }, nil
}

// RoleSet is a set of accounts holding some authorization.
type RoleSet struct {
	members map[Address]bool
}

// NewRoleSet returns a role set containing members.
func NewRoleSet(members ...Address) RoleSet {
	r := RoleSet{members: make(map[Address]bool, len(members))}
	for _, m := range members {
		r.members[m] = true
	}
	return r
}

// Has reports whether a holds the role.
func (r *RoleSet) Has(a Address) bool {
	return r.members[a]
}

// Grant adds a and reports whether it was newly added.
func (r *RoleSet) Grant(tx *Tx, a Address) bool {
	if r.members[a] {
		return false
	}
	Put(tx, r.members, a, true)
	return true
}

// Revoke removes a and reports whether it was a member.
func (r *RoleSet) Revoke(tx *Tx, a Address) bool {
	if !r.members[a] {
		return false
	}
	delete(r.members, a)
	tx.OnRevert(func() { r.members[a] = true })
	return true
}

// Members returns the accounts holding the role, in no particular order.
func (r *RoleSet) Members() []Address {
	out := make([]Address, 0, len(r.members))
	for a := range r.members {
		out = append(out, a)
	}
	return out
}

// Controls bundles the capabilities every ledger contract carries: an owner,
// a pause switch and a reentrancy lock.
type Controls struct {
	Ownable
	Pausable
	Guard
}

// NewControls returns unpaused controls owned by owner.
func NewControls(owner Address) Controls {
	return Controls{Ownable: NewOwnable(owner)}
}

// SetPaused flips the pause switch of contract. Only the owner may call it.
func (c *Controls) SetPaused(tx *Tx, contract Address, paused bool) error {
	if err := c.CheckOwner(tx.Sender()); err != nil {
		return err
	}
	if c.paused == paused {
		if paused {
			return ErrPaused
		}
		return ErrNotPaused
	}
	Assign(tx, &c.paused, paused)
	name := "Unpaused"
	if paused {
		name = "Paused"
	}
	tx.Emit(contract, name, Fields{"account": tx.Sender().Hex()})
	return nil
}
