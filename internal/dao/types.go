package dao

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/genomechain/genome-ledger/internal/chain"
)

// ProposalType classifies what a proposal asks for.
type ProposalType uint8

const (
	TypeGeneral ProposalType = iota
	TypeFunding
	TypeResearch
	TypeParameterChange
)

var proposalTypeNames = [...]string{"general", "funding", "research", "parameter_change"}

func (t ProposalType) String() string {
	if int(t) < len(proposalTypeNames) {
		return proposalTypeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseProposalType accepts a type name.
func ParseProposalType(s string) (ProposalType, error) {
	for i, name := range proposalTypeNames {
		if name == s {
			return ProposalType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidProposalType, s)
}

// Choice is a ballot option.
type Choice uint8

const (
	Against Choice = iota
	For
	Abstain
)

var choiceNames = [...]string{"against", "for", "abstain"}

func (c Choice) String() string {
	if int(c) < len(choiceNames) {
		return choiceNames[c]
	}
	return fmt.Sprintf("choice(%d)", uint8(c))
}

// ParseChoice accepts a choice name.
func ParseChoice(s string) (Choice, error) {
	for i, name := range choiceNames {
		if name == s {
			return Choice(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidChoice, s)
}

// State is where a proposal is in its lifecycle.
type State uint8

const (
	StatePending State = iota
	StateActive
	StateCanceled
	StateDefeated
	StateSucceeded
	StateQueued
	StateExecuted
)

var stateNames = [...]string{"pending", "active", "canceled", "defeated", "succeeded", "queued", "executed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Proposal is a governance proposal and its running tally.
type Proposal struct {
	ID            uint64
	Proposer      chain.Address
	Title         string
	Description   string
	Type          ProposalType
	FundingNative uint256.Int
	FundingToken  uint256.Int
	CreatedAt     time.Time
	VotingStart   time.Time
	VotingEnd     time.Time
	ExecutionTime time.Time
	ForVotes      uint256.Int
	AgainstVotes  uint256.Int
	AbstainVotes  uint256.Int
	Executed      bool
	Canceled      bool
}

// TotalVotes is the sum of all three tallies.
func (p *Proposal) TotalVotes() *uint256.Int {
	total := new(uint256.Int).Add(&p.ForVotes, &p.AgainstVotes)
	return total.Add(total, &p.AbstainVotes)
}

// Vote is one account's ballot on one proposal.
type Vote struct {
	ProposalID uint64
	Voter      chain.Address
	Choice     Choice
	Weight     uint256.Int
	Reason     string
	CastAt     time.Time
}

// Params are the voting parameters applied to new proposals.
type Params struct {
	VotingDelay       time.Duration
	VotingPeriod      time.Duration
	ExecutionDelay    time.Duration
	ProposalThreshold uint256.Int
	QuorumPercent     uint64
}

// MaxQuorumPercent caps the quorum.
const MaxQuorumPercent = 50

// DefaultParams returns one day of delay, a week of voting, two days before
// execution, a 1,000 GENOME threshold and a 10% quorum.
func DefaultParams() Params {
	return Params{
		VotingDelay:       24 * time.Hour,
		VotingPeriod:      7 * 24 * time.Hour,
		ExecutionDelay:    2 * 24 * time.Hour,
		ProposalThreshold: *chain.Units(1_000),
		QuorumPercent:     10,
	}
}

// Validate checks parameter bounds.
func (p Params) Validate() error {
	switch {
	case p.VotingDelay < 0 || p.ExecutionDelay < 0:
		return fmt.Errorf("%w: negative delay", ErrInvalidParameters)
	case p.VotingPeriod < time.Second:
		return fmt.Errorf("%w: voting period must be at least a second", ErrInvalidParameters)
	case p.QuorumPercent == 0 || p.QuorumPercent > MaxQuorumPercent:
		return fmt.Errorf("%w: quorum must be 1..%d percent", ErrInvalidParameters, MaxQuorumPercent)
	}
	return nil
}
