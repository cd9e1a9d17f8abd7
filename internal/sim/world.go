// Package sim deploys one independent set of GenomeChain contracts on a
// single engine and drives it, either call by call or from scenario files.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/dao"
	"github.com/genomechain/genome-ledger/internal/market"
	"github.com/genomechain/genome-ledger/internal/nft"
	"github.com/genomechain/genome-ledger/internal/token"
)

// DefaultInitialSupply is minted to the owner at genesis.
var DefaultInitialSupply = chain.Units(1_000_000_000)

// DefaultNFTReward is paid for a perfect quality score.
var DefaultNFTReward = chain.Units(100)

// Params configures a World.
type Params struct {
	Owner          chain.Address
	FeeRecipient   chain.Address
	InitialSupply  *uint256.Int
	MaxSupply      *uint256.Int
	PlatformFeeBps uint64
	NFTReward      *uint256.Int
	DAO            dao.Params
}

// DefaultParams returns the production deployment parameters for owner.
func DefaultParams(owner chain.Address) Params {
	return Params{
		Owner:          owner,
		FeeRecipient:   owner,
		InitialSupply:  DefaultInitialSupply,
		MaxSupply:      token.DefaultMaxSupply,
		PlatformFeeBps: market.DefaultPlatformFeeBps,
		NFTReward:      DefaultNFTReward,
		DAO:            dao.DefaultParams(),
	}
}

// World is a deployed set of contracts sharing one engine.
type World struct {
	Engine *chain.Engine
	Token  *token.Ledger
	NFT    *nft.Registry
	Market *market.Marketplace
	DAO    *dao.DAO

	params Params
}

// New deploys every contract from params.Owner and runs genesis: the
// initial supply is minted to the owner and the NFT registry becomes a
// token minter so it can pay contributor rewards.
func New(ctx context.Context, params Params, opts ...chain.Option) (*World, error) {
	if params.Owner.IsZero() {
		return nil, errors.New("sim: owner address is required")
	}
	if params.FeeRecipient.IsZero() {
		params.FeeRecipient = params.Owner
	}
	if params.InitialSupply == nil {
		params.InitialSupply = chain.Zero()
	}

	w := &World{Engine: chain.NewEngine(opts...), params: params}
	w.Token = token.New(chain.ContractAddress(params.Owner, 0), token.Config{
		Owner:     params.Owner,
		MaxSupply: params.MaxSupply,
	})
	w.NFT = nft.New(chain.ContractAddress(params.Owner, 1), nft.Config{
		Owner:   params.Owner,
		Rewards: w.Token,
		Reward:  params.NFTReward,
	})
	var err error
	w.Market, err = market.New(chain.ContractAddress(params.Owner, 2), w.Engine.Bank(), w.Token, w.NFT, market.Config{
		Owner:        params.Owner,
		FeeRecipient: params.FeeRecipient,
		FeeBps:       params.PlatformFeeBps,
	})
	if err != nil {
		return nil, fmt.Errorf("deploy marketplace: %w", err)
	}
	daoParams := params.DAO
	w.DAO, err = dao.New(chain.ContractAddress(params.Owner, 3), w.Engine.Bank(), w.Token, dao.Config{
		Owner:  params.Owner,
		Params: &daoParams,
	})
	if err != nil {
		return nil, fmt.Errorf("deploy dao: %w", err)
	}

	_, err = w.Engine.Execute(ctx, chain.Call{From: params.Owner, To: w.Token.Address(), Method: "genesis"}, func(tx *chain.Tx) error {
		if !params.InitialSupply.IsZero() {
			if err := w.Token.Mint(tx, params.Owner, params.InitialSupply, "initial supply"); err != nil {
				return err
			}
		}
		return w.Token.AddMinter(tx, w.NFT.Address())
	})
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	return w, nil
}

// Params returns the deployment parameters.
func (w *World) Params() Params { return w.params }

// Now returns the engine's current time.
func (w *World) Now() time.Time { return w.Engine.Clock().Now() }

// Contracts maps contract names to addresses.
func (w *World) Contracts() map[string]chain.Address {
	return map[string]chain.Address{
		"token":  w.Token.Address(),
		"nft":    w.NFT.Address(),
		"market": w.Market.Address(),
		"dao":    w.DAO.Address(),
	}
}

// Balances returns the native and GENOME balances of a.
func (w *World) Balances(a chain.Address) (native, tok *uint256.Int) {
	w.Engine.View(func(time.Time) {
		native = w.Engine.Bank().BalanceOf(a)
		tok = w.Token.BalanceOf(a)
	})
	return native, tok
}

// Fund credits amount of native currency to a, as a faucet would.
func (w *World) Fund(ctx context.Context, a chain.Address, amount *uint256.Int) error {
	_, err := w.Engine.Execute(ctx, chain.Call{From: a, To: a, Method: "bank.faucet"}, func(tx *chain.Tx) error {
		return w.Engine.Bank().Credit(tx, a, amount)
	})
	return err
}
