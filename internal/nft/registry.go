// Package nft implements the genomic-discovery NFT registry. Each token
// records an analysed gene and its quality score; minting one can reward
// the contributor with GENOME tokens.
package nft

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/genomechain/genome-ledger/internal/chain"
)

// Registry errors.
var (
	ErrUnauthorized        = chain.NewError(chain.CodeUnauthorized, "Unauthorized")
	ErrNotTokenOwner       = chain.NewError(chain.CodeUnauthorized, "NotTokenOwner")
	ErrNonexistentToken    = chain.NewError(chain.CodeNotFound, "NonexistentToken")
	ErrEmptyField          = chain.NewError(chain.CodeInvalidInput, "EmptyField")
	ErrInvalidCID          = chain.NewError(chain.CodeInvalidInput, "InvalidIPFSHash")
	ErrInvalidQualityScore = chain.NewError(chain.CodeInvalidInput, "InvalidQualityScore")
	ErrAlreadyMinter       = chain.NewError(chain.CodeAlreadyDone, "AlreadyMinter")
	ErrNotMinter           = chain.NewError(chain.CodeInvalidState, "NotMinter")
)

// TokenMinter is the slice of the token ledger the registry needs to pay
// contributor rewards.
type TokenMinter interface {
	Mint(tx *chain.Tx, to chain.Address, amount *uint256.Int, reason string) error
}

// Genome is a minted discovery.
type Genome struct {
	TokenID      uint64
	Owner        chain.Address
	Contributor  chain.Address
	TokenURI     string
	GeneName     string
	Description  string
	IPFSHash     string
	QualityScore uint8
	MintedAt     time.Time
}

// Config holds deployment parameters.
type Config struct {
	Owner chain.Address
	// Rewards pays contributors. Nil disables rewards.
	Rewards TokenMinter
	// Reward is paid for a perfect quality score and scaled down linearly.
	Reward *uint256.Int
}

// Registry is the GenomeNFT contract.
type Registry struct {
	addr      chain.Address
	ctl       chain.Controls
	minters   chain.RoleSet
	rewards   TokenMinter
	reward    uint256.Int
	tokens    []*Genome
	approvals map[uint64]chain.Address
}

// New deploys a registry at addr. The owner starts as the only minter.
func New(addr chain.Address, cfg Config) *Registry {
	r := &Registry{
		addr:      addr,
		ctl:       chain.NewControls(cfg.Owner),
		minters:   chain.NewRoleSet(cfg.Owner),
		rewards:   cfg.Rewards,
		approvals: make(map[uint64]chain.Address),
	}
	if cfg.Reward != nil {
		r.reward = *cfg.Reward
	}
	return r
}

// Address returns the contract address.
func (r *Registry) Address() chain.Address { return r.addr }

// Owner returns the contract owner.
func (r *Registry) Owner() chain.Address { return r.ctl.Owner() }

// Paused reports whether minting and transfers are halted.
func (r *Registry) Paused() bool { return r.ctl.Paused() }

// TotalMinted returns the number of tokens minted so far.
func (r *Registry) TotalMinted() uint64 { return uint64(len(r.tokens)) }

// RewardFor returns the GENOME reward for a given quality score.
func (r *Registry) RewardFor(score uint8) *uint256.Int {
	out := new(uint256.Int).Mul(&r.reward, uint256.NewInt(uint64(score)))
	return out.Div(out, uint256.NewInt(MaxQualityScore))
}

// OwnerOf returns the holder of token id.
func (r *Registry) OwnerOf(id uint64) (chain.Address, error) {
	g, err := r.get(id)
	if err != nil {
		return chain.ZeroAddress, err
	}
	return g.Owner, nil
}

// Token returns a copy of token id.
func (r *Registry) Token(id uint64) (Genome, error) {
	g, err := r.get(id)
	if err != nil {
		return Genome{}, err
	}
	return *g, nil
}

// TokensOf returns the ids held by owner in mint order.
func (r *Registry) TokensOf(owner chain.Address) []uint64 {
	var ids []uint64
	for _, g := range r.tokens {
		if g.Owner == owner {
			ids = append(ids, g.TokenID)
		}
	}
	return ids
}

// Mint records a new discovery for to and returns its id. Ids start at 0.
func (r *Registry) Mint(tx *chain.Tx, to chain.Address, meta Metadata) (uint64, error) {
	if err := r.ctl.WhenNotPaused(); err != nil {
		return 0, err
	}
	if !r.minters.Has(tx.Sender()) {
		return 0, ErrUnauthorized
	}
	if to.IsZero() {
		return 0, chain.ErrZeroAddress
	}
	meta, err := meta.normalize()
	if err != nil {
		return 0, err
	}

	id := uint64(len(r.tokens))
	chain.Append(tx, &r.tokens, &Genome{
		TokenID:      id,
		Owner:        to,
		Contributor:  to,
		TokenURI:     meta.TokenURI,
		GeneName:     meta.GeneName,
		Description:  meta.Description,
		IPFSHash:     meta.IPFSHash,
		QualityScore: meta.QualityScore,
		MintedAt:     tx.Now(),
	})
	tx.Emit(r.addr, "NFTMinted", chain.Fields{
		"token_id":      fmt.Sprint(id),
		"to":            to.Hex(),
		"gene_name":     meta.GeneName,
		"ipfs_hash":     meta.IPFSHash,
		"token_uri":     meta.TokenURI,
		"quality_score": fmt.Sprint(meta.QualityScore),
	})

	if r.rewards != nil {
		if amount := r.RewardFor(meta.QualityScore); !amount.IsZero() {
			reason := fmt.Sprintf("genome discovery #%d", id)
			if err := r.rewards.Mint(tx.Sub(r.addr), to, amount, reason); err != nil {
				return 0, fmt.Errorf("contributor reward: %w", err)
			}
		}
	}
	return id, nil
}

// Approve lets operator transfer token id once. Token owner only.
func (r *Registry) Approve(tx *chain.Tx, operator chain.Address, id uint64) error {
	if err := r.ctl.WhenNotPaused(); err != nil {
		return err
	}
	g, err := r.get(id)
	if err != nil {
		return err
	}
	if g.Owner != tx.Sender() {
		return ErrNotTokenOwner
	}
	chain.Put(tx, r.approvals, id, operator)
	return nil
}

// TransferFrom moves token id from from to to. The caller must own the
// token or hold its approval.
func (r *Registry) TransferFrom(tx *chain.Tx, from, to chain.Address, id uint64) error {
	if err := r.ctl.WhenNotPaused(); err != nil {
		return err
	}
	g, err := r.get(id)
	if err != nil {
		return err
	}
	if g.Owner != from {
		return ErrNotTokenOwner
	}
	if caller := tx.Sender(); caller != from && r.approvals[id] != caller {
		return ErrNotTokenOwner
	}
	if to.IsZero() {
		return chain.ErrZeroAddress
	}
	chain.Assign(tx, &g.Owner, to)
	if _, ok := r.approvals[id]; ok {
		old := r.approvals[id]
		delete(r.approvals, id)
		tx.OnRevert(func() { r.approvals[id] = old })
	}
	tx.Emit(r.addr, "Transfer", chain.Fields{
		"from":     from.Hex(),
		"to":       to.Hex(),
		"token_id": fmt.Sprint(id),
	})
	return nil
}

// AddMinter authorizes a to mint discoveries. Owner only.
func (r *Registry) AddMinter(tx *chain.Tx, a chain.Address) error {
	if err := r.ctl.CheckOwner(tx.Sender()); err != nil {
		return err
	}
	if !r.minters.Grant(tx, a) {
		return ErrAlreadyMinter
	}
	tx.Emit(r.addr, "MinterAdded", chain.Fields{"minter": a.Hex()})
	return nil
}

// RemoveMinter revokes a's minting authorization. Owner only.
func (r *Registry) RemoveMinter(tx *chain.Tx, a chain.Address) error {
	if err := r.ctl.CheckOwner(tx.Sender()); err != nil {
		return err
	}
	if !r.minters.Revoke(tx, a) {
		return ErrNotMinter
	}
	tx.Emit(r.addr, "MinterRemoved", chain.Fields{"minter": a.Hex()})
	return nil
}

// SetReward changes the reward paid for a perfect score. Owner only.
func (r *Registry) SetReward(tx *chain.Tx, reward *uint256.Int) error {
	if err := r.ctl.CheckOwner(tx.Sender()); err != nil {
		return err
	}
	chain.Assign(tx, &r.reward, *reward)
	return nil
}

// SetPaused halts or resumes minting and transfers. Owner only.
func (r *Registry) SetPaused(tx *chain.Tx, paused bool) error {
	return r.ctl.SetPaused(tx, r.addr, paused)
}

func (r *Registry) get(id uint64) (*Genome, error) {
	if id >= uint64(len(r.tokens)) {
		return nil, ErrNonexistentToken
	}
	return r.tokens[id], nil
}
