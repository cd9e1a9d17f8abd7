// Package dao implements GenomeChain governance: GENOME holders propose,
// vote with their balance, and passed proposals pay out of the treasury.
//
// Voting weight is the voter's balance when the vote is cast. It is not
// snapshotted, so tokens moved after voting can be voted again by the
// recipient.
package dao

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/microcosm-cc/bluemonday"

	"github.com/genomechain/genome-ledger/internal/chain"
)

// Field limits for proposal text.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 10_000
	MaxReasonLength      = 1_000
)

// Governance errors.
var (
	ErrBelowThreshold       = chain.NewError(chain.CodeInsufficientFunds, "BelowThreshold")
	ErrEmptyField           = chain.NewError(chain.CodeInvalidInput, "EmptyField")
	ErrFieldTooLong         = chain.NewError(chain.CodeInvalidInput, "FieldTooLong")
	ErrInvalidProposalType  = chain.NewError(chain.CodeInvalidInput, "InvalidProposalType")
	ErrInvalidChoice        = chain.NewError(chain.CodeInvalidInput, "InvalidChoice")
	ErrInvalidParameters    = chain.NewError(chain.CodeInvalidInput, "InvalidParameters")
	ErrProposalNotFound     = chain.NewError(chain.CodeNotFound, "ProposalNotFound")
	ErrVotingNotStarted     = chain.NewError(chain.CodeInvalidState, "VotingNotStarted")
	ErrVotingClosed         = chain.NewError(chain.CodeInvalidState, "VotingClosed")
	ErrProposalInactive     = chain.NewError(chain.CodeInvalidState, "ProposalInactive")
	ErrAlreadyVoted         = chain.NewError(chain.CodeAlreadyDone, "AlreadyVoted")
	ErrNoVotingPower        = chain.NewError(chain.CodeInsufficientFunds, "NoVotingPower")
	ErrAlreadyExecuted      = chain.NewError(chain.CodeAlreadyDone, "AlreadyExecuted")
	ErrProposalCanceled     = chain.NewError(chain.CodeInvalidState, "ProposalCanceled")
	ErrTooEarly             = chain.NewError(chain.CodeInvalidState, "TooEarly")
	ErrDidNotPass           = chain.NewError(chain.CodeInvalidState, "DidNotPass")
	ErrInsufficientTreasury = chain.NewError(chain.CodeInsufficientFunds, "InsufficientTreasury")
	ErrNotProposerOrOwner   = chain.NewError(chain.CodeUnauthorized, "NotProposerOrOwner")
)

var textPolicy = bluemonday.StrictPolicy()

// VotingToken is what the DAO needs from the token ledger.
type VotingToken interface {
	BalanceOf(a chain.Address) *uint256.Int
	TotalSupply() *uint256.Int
	Transfer(tx *chain.Tx, to chain.Address, amount *uint256.Int) error
}

// Config holds deployment parameters. A nil Params uses DefaultParams.
type Config struct {
	Owner  chain.Address
	Params *Params
}

type voteKey struct {
	proposal uint64
	voter    chain.Address
}

// DAO is the governance contract. It holds a native and a GENOME treasury
// at its own address.
type DAO struct {
	addr      chain.Address
	ctl       chain.Controls
	bank      *chain.Bank
	token     VotingToken
	params    Params
	proposals []*Proposal
	votes     map[voteKey]*Vote
	voters    map[uint64][]chain.Address
}

// New deploys a DAO at addr.
func New(addr chain.Address, bank *chain.Bank, token VotingToken, cfg Config) (*DAO, error) {
	params := DefaultParams()
	if cfg.Params != nil {
		params = *cfg.Params
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &DAO{
		addr:   addr,
		ctl:    chain.NewControls(cfg.Owner),
		bank:   bank,
		token:  token,
		params: params,
		votes:  make(map[voteKey]*Vote),
		voters: make(map[uint64][]chain.Address),
	}, nil
}

// Address returns the contract address.
func (d *DAO) Address() chain.Address { return d.addr }

// Owner returns the contract owner.
func (d *DAO) Owner() chain.Address { return d.ctl.Owner() }

// Paused reports whether governance is halted.
func (d *DAO) Paused() bool { return d.ctl.Paused() }

// Params returns the current voting parameters.
func (d *DAO) Params() Params { return d.params }

// ProposalCount returns how many proposals were ever created. Ids start at 1
// and are never reused, so this is also the highest id assigned so far.
func (d *DAO) ProposalCount() uint64 { return uint64(len(d.proposals)) }

// Treasury returns the DAO's native and GENOME balances.
func (d *DAO) Treasury() (native, token *uint256.Int) {
	return d.bank.BalanceOf(d.addr), d.token.BalanceOf(d.addr)
}

// QuorumVotes returns how many votes a proposal needs to be valid at the
// current total supply.
func (d *DAO) QuorumVotes() *uint256.Int {
	q := new(uint256.Int).Mul(d.token.TotalSupply(), uint256.NewInt(d.params.QuorumPercent))
	return q.Div(q, uint256.NewInt(100))
}

// Proposal returns a copy of proposal id.
func (d *DAO) Proposal(id uint64) (Proposal, error) {
	p, err := d.get(id)
	if err != nil {
		return Proposal{}, err
	}
	return *p, nil
}

// Proposals returns copies of every proposal in id order.
func (d *DAO) Proposals() []Proposal {
	out := make([]Proposal, len(d.proposals))
	for i, p := range d.proposals {
		out[i] = *p
	}
	return out
}

// GetVote returns voter's ballot on proposal id.
func (d *DAO) GetVote(id uint64, voter chain.Address) (Vote, bool) {
	v, ok := d.votes[voteKey{id, voter}]
	if !ok {
		return Vote{}, false
	}
	return *v, true
}

// HasVoted reports whether voter has voted on proposal id.
func (d *DAO) HasVoted(id uint64, voter chain.Address) bool {
	_, ok := d.votes[voteKey{id, voter}]
	return ok
}

// Votes returns every ballot on proposal id in casting order.
func (d *DAO) Votes(id uint64) []Vote {
	voters := d.voters[id]
	out := make([]Vote, 0, len(voters))
	for _, v := range voters {
		out = append(out, *d.votes[voteKey{id, v}])
	}
	return out
}

// State projects proposal id against now. It never mutates.
func (d *DAO) State(now time.Time, id uint64) (State, error) {
	p, err := d.get(id)
	if err != nil {
		return 0, err
	}
	return d.state(now, p), nil
}

func (d *DAO) state(now time.Time, p *Proposal) State {
	switch {
	case p.Canceled:
		return StateCanceled
	case p.Executed:
		return StateExecuted
	case now.Before(p.VotingStart):
		return StatePending
	case !now.After(p.VotingEnd):
		return StateActive
	case !d.passed(p):
		return StateDefeated
	case now.Before(p.ExecutionTime):
		return StateSucceeded
	default:
		return StateQueued
	}
}

// passed applies the quorum and majority rules at the current total supply.
func (d *DAO) passed(p *Proposal) bool {
	return !p.TotalVotes().Lt(d.QuorumVotes()) && p.ForVotes.Gt(&p.AgainstVotes)
}

// Propose opens a proposal. The proposer must hold at least the proposal
// threshold. Title and description are stripped of markup and must not be empty.
func (d *DAO) Propose(tx *chain.Tx, title, description string, fundingNative, fundingToken *uint256.Int, typ ProposalType) (uint64, error) {
	release, err := d.ctl.Enter()
	if err != nil {
		return 0, err
	}
	defer release()

	if err := d.ctl.WhenNotPaused(); err != nil {
		return 0, err
	}
	proposer := tx.Sender()
	if d.token.BalanceOf(proposer).Lt(&d.params.ProposalThreshold) {
		return 0, ErrBelowThreshold
	}
	title, err = cleanText("title", title, MaxTitleLength, true)
	if err != nil {
		return 0, err
	}
	description, err = cleanText("description", description, MaxDescriptionLength, true)
	if err != nil {
		return 0, err
	}
	if int(typ) >= len(proposalTypeNames) {
		return 0, ErrInvalidProposalType
	}

	now := tx.Now()
	start := now.Add(d.params.VotingDelay)
	end := start.Add(d.params.VotingPeriod)
	p := &Proposal{
		ID:            uint64(len(d.proposals)) + 1,
		Proposer:      proposer,
		Title:         title,
		Description:   description,
		Type:          typ,
		FundingNative: *fundingNative,
		FundingToken:  *fundingToken,
		CreatedAt:     now,
		VotingStart:   start,
		VotingEnd:     end,
		ExecutionTime: end.Add(d.params.ExecutionDelay),
	}
	chain.Append(tx, &d.proposals, p)
	tx.Emit(d.addr, "ProposalCreated", chain.Fields{
		"proposal_id":    fmt.Sprint(p.ID),
		"proposer":       proposer.Hex(),
		"title":          title,
		"type":           typ.String(),
		"funding_native": fundingNative.Dec(),
		"funding_token":  fundingToken.Dec(),
		"voting_start":   fmt.Sprint(start.Unix()),
		"voting_end":     fmt.Sprint(end.Unix()),
	})
	return p.ID, nil
}

// Vote casts the sender's full current balance for choice.
func (d *DAO) Vote(tx *chain.Tx, id uint64, choice Choice, reason string) (*uint256.Int, error) {
	release, err := d.ctl.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := d.ctl.WhenNotPaused(); err != nil {
		return nil, err
	}
	p, err := d.get(id)
	if err != nil {
		return nil, err
	}
	now := tx.Now()
	switch {
	case now.Before(p.VotingStart):
		return nil, ErrVotingNotStarted
	case now.After(p.VotingEnd):
		return nil, ErrVotingClosed
	case p.Executed || p.Canceled:
		return nil, ErrProposalInactive
	}
	voter := tx.Sender()
	if d.HasVoted(id, voter) {
		return nil, ErrAlreadyVoted
	}
	weight := d.token.BalanceOf(voter)
	if weight.IsZero() {
		return nil, ErrNoVotingPower
	}
	if int(choice) >= len(choiceNames) {
		return nil, ErrInvalidChoice
	}
	reason, err = cleanText("reason", reason, MaxReasonLength, false)
	if err != nil {
		return nil, err
	}

	var tally *uint256.Int
	switch choice {
	case For:
		tally = &p.ForVotes
	case Against:
		tally = &p.AgainstVotes
	default:
		tally = &p.AbstainVotes
	}
	chain.Assign(tx, tally, *new(uint256.Int).Add(tally, weight))
	chain.Put(tx, d.votes, voteKey{id, voter}, &Vote{
		ProposalID: id,
		Voter:      voter,
		Choice:     choice,
		Weight:     *weight,
		Reason:     reason,
		CastAt:     now,
	})
	chain.Put(tx, d.voters, id, append(d.voters[id], voter))

	tx.Emit(d.addr, "VoteCast", chain.Fields{
		"proposal_id": fmt.Sprint(id),
		"voter":       voter.Hex(),
		"choice":      choice.String(),
		"weight":      weight.Dec(),
		"reason":      reason,
	})
	return weight, nil
}

// Execute settles a passed proposal once its execution time has come,
// paying its funding from the treasury to the proposer.
func (d *DAO) Execute(tx *chain.Tx, id uint64) error {
	release, err := d.ctl.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := d.ctl.WhenNotPaused(); err != nil {
		return err
	}
	p, err := d.get(id)
	if err != nil {
		return err
	}
	switch {
	case p.Executed:
		return ErrAlreadyExecuted
	case p.Canceled:
		return ErrProposalCanceled
	case tx.Now().Before(p.ExecutionTime):
		return ErrTooEarly
	case !d.passed(p):
		return ErrDidNotPass
	}
	native, tok := d.Treasury()
	if native.Lt(&p.FundingNative) || tok.Lt(&p.FundingToken) {
		return ErrInsufficientTreasury
	}

	chain.Assign(tx, &p.Executed, true)
	self := tx.Sub(d.addr)
	if err := d.bank.Transfer(self, d.addr, p.Proposer, &p.FundingNative); err != nil {
		return fmt.Errorf("native funding: %w", err)
	}
	if !p.FundingToken.IsZero() {
		if err := d.token.Transfer(self, p.Proposer, &p.FundingToken); err != nil {
			return fmt.Errorf("token funding: %w", err)
		}
	}
	tx.Emit(d.addr, "ProposalExecuted", chain.Fields{
		"proposal_id":    fmt.Sprint(id),
		"recipient":      p.Proposer.Hex(),
		"funding_native": p.FundingNative.Dec(),
		"funding_token":  p.FundingToken.Dec(),
	})
	return nil
}

// Cancel withdraws a proposal that has not been executed. Proposer or owner only.
func (d *DAO) Cancel(tx *chain.Tx, id uint64) error {
	release, err := d.ctl.Enter()
	if err != nil {
		return err
	}
	defer release()

	p, err := d.get(id)
	if err != nil {
		return err
	}
	caller := tx.Sender()
	if caller != p.Proposer && caller != d.ctl.Owner() {
		return ErrNotProposerOrOwner
	}
	switch {
	case p.Executed:
		return ErrAlreadyExecuted
	case p.Canceled:
		return ErrProposalCanceled
	}
	chain.Assign(tx, &p.Canceled, true)
	tx.Emit(d.addr, "ProposalCanceled", chain.Fields{
		"proposal_id": fmt.Sprint(id),
		"canceled_by": caller.Hex(),
	})
	return nil
}

// Deposit accepts the native value attached to the call into the treasury.
// GENOME is deposited with a plain token transfer to the DAO address.
func (d *DAO) Deposit(tx *chain.Tx) error {
	amount := tx.Value()
	if amount.IsZero() {
		return chain.ErrInvalidAmount
	}
	tx.Emit(d.addr, "FundsDeposited", chain.Fields{
		"from":   tx.Sender().Hex(),
		"amount": amount.Dec(),
	})
	return nil
}

// SetVotingParameters replaces the parameters used by future proposals.
// Owner only.
func (d *DAO) SetVotingParameters(tx *chain.Tx, params Params) error {
	release, err := d.ctl.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := d.ctl.CheckOwner(tx.Sender()); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	chain.Assign(tx, &d.params, params)
	tx.Emit(d.addr, "VotingParametersUpdated", chain.Fields{
		"voting_delay_secs":    fmt.Sprint(int64(params.VotingDelay / time.Second)),
		"voting_period_secs":   fmt.Sprint(int64(params.VotingPeriod / time.Second)),
		"execution_delay_secs": fmt.Sprint(int64(params.ExecutionDelay / time.Second)),
		"proposal_threshold":   params.ProposalThreshold.Dec(),
		"quorum_percent":       fmt.Sprint(params.QuorumPercent),
	})
	return nil
}

// SetPaused halts or resumes proposing, voting and execution. Owner only.
func (d *DAO) SetPaused(tx *chain.Tx, paused bool) error {
	return d.ctl.SetPaused(tx, d.addr, paused)
}

// TransferOwnership hands the contract to newOwner. Owner only.
func (d *DAO) TransferOwnership(tx *chain.Tx, newOwner chain.Address) error {
	return d.ctl.TransferOwnership(tx, d.addr, newOwner)
}

func (d *DAO) get(id uint64) (*Proposal, error) {
	if id == 0 || id > uint64(len(d.proposals)) {
		return nil, ErrProposalNotFound
	}
	return d.proposals[id-1], nil
}

// cleanText strips markup and stores the remaining text unescaped.
func cleanText(field, s string, limit int, required bool) (string, error) {
	s = strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
	if required && s == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyField, field)
	}
	if len(s) > limit {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrFieldTooLong, field, limit)
	}
	return s, nil
}
