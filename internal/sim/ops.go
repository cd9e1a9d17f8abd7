package sim

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/dao"
	"github.com/genomechain/genome-ledger/internal/market"
	"github.com/genomechain/genome-ledger/internal/nft"
)

// ErrUnknownOperation is returned for an operation name not in the table.
var ErrUnknownOperation = chain.NewError(chain.CodeNotFound, "UnknownOperation")

// Output is the result of an operation, rendered as strings.
type Output map[string]string

// Result is a committed operation.
type Result struct {
	Receipt *chain.Receipt
	Output  Output
}

// Operation is one callable contract method.
type Operation struct {
	Name string
	// Admin operations are restricted to administrators by outer surfaces.
	Admin bool
	// Payable operations accept attached native value. All others revert
	// when value is attached.
	Payable bool
	// Target is the contract receiving the call and any attached value.
	Target func(w *World, a *Args) chain.Address
	Run    func(w *World, tx *chain.Tx, a *Args) (Output, error)
}

func contract(pick func(w *World) chain.Address) func(*World, *Args) chain.Address {
	return func(w *World, _ *Args) chain.Address { return pick(w) }
}

var (
	tokenContract  = contract(func(w *World) chain.Address { return w.Token.Address() })
	nftContract    = contract(func(w *World) chain.Address { return w.NFT.Address() })
	marketContract = contract(func(w *World) chain.Address { return w.Market.Address() })
	daoContract    = contract(func(w *World) chain.Address { return w.DAO.Address() })
)

var operations = map[string]Operation{}

func register(ops ...Operation) {
	for _, op := range ops {
		if _, dup := operations[op.Name]; dup {
			panic("sim: duplicate operation " + op.Name)
		}
		operations[op.Name] = op
	}
}

// pausable registers <prefix>.pause and <prefix>.unpause.
func pausable(prefix string, target func(*World, *Args) chain.Address, set func(w *World, tx *chain.Tx, paused bool) error) {
	for _, paused := range []bool{true, false} {
		name := prefix + ".unpause"
		if paused {
			name = prefix + ".pause"
		}
		register(Operation{Name: name, Target: target, Run: func(w *World, tx *chain.Tx, _ *Args) (Output, error) {
			return nil, set(w, tx, paused)
		}})
	}
}

// Operations returns the names of every operation, sorted.
func Operations() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupOperation returns the named operation.
func LookupOperation(name string) (Operation, bool) {
	op, ok := operations[name]
	return op, ok
}

// Call runs operation name as one transaction from from with value attached.
func (w *World) Call(ctx context.Context, from chain.Address, name string, value *uint256.Int, a *Args) (*Result, error) {
	op, ok := operations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	if a == nil {
		a = NewArgs(nil, nil)
	}
	var out Output
	receipt, err := w.Engine.Execute(ctx, chain.Call{
		From:   from,
		To:     op.Target(w, a),
		Value:  value,
		Method: name,
	}, func(tx *chain.Tx) error {
		if !op.Payable && !tx.Value().IsZero() {
			return chain.ErrUnexpectedValue
		}
		var err error
		out, err = op.Run(w, tx, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Result{Receipt: receipt, Output: out}, nil
}

func itoa(n uint64) string { return strconv.FormatUint(n, 10) }

func init() {
	register(
		Operation{
			Name:  "bank.faucet",
			Admin: true,
			Target: func(_ *World, a *Args) chain.Address {
				return a.Address("to")
			},
			Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
				to, amount := a.Address("to"), a.Amount("amount")
				if err := a.Err(); err != nil {
					return nil, err
				}
				return nil, w.Engine.Bank().Credit(tx, to, amount)
			},
		},
		Operation{
			Name:    "bank.transfer",
			Payable: true,
			Target:  func(_ *World, a *Args) chain.Address { return a.Address("to") },
			Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
				to, amount := a.Address("to"), a.Amount("amount")
				if err := a.Err(); err != nil {
					return nil, err
				}
				return nil, w.Engine.Bank().Transfer(tx, tx.Sender(), to, amount)
			},
		},
	)

	register(
		Operation{Name: "token.transfer", Target: tokenContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			to, amount := a.Address("to"), a.Amount("amount")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.Token.Transfer(tx, to, amount)
		}},
		Operation{Name: "token.approve", Target: tokenContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			spender, amount := a.Address("spender"), a.Amount("amount")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.Token.Approve(tx, spender, amount)
		}},
		Operation{Name: "token.transfer_from", Target: tokenContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			from, to, amount := a.Address("from"), a.Address("to"), a.Amount("amount")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.Token.TransferFrom(tx, from, to, amount)
		}},
		Operation{Name: "token.mint", Target: tokenContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			to, amount, reason := a.Address("to"), a.Amount("amount"), a.String("reason")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.Token.Mint(tx, to, amount, reason)
		}},
		Operation{Name: "token.burn", Target: tokenContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			amount := a.Amount("amount")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.Token.Burn(tx, amount)
		}},
		Operation{Name: "token.add_minter", Target: tokenContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			account := a.Address("account")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.Token.AddMinter(tx, account)
		}},
		Operation{Name: "token.remove_minter", Target: tokenContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			account := a.Address("account")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.Token.RemoveMinter(tx, account)
		}},
		Operation{Name: "token.transfer_ownership", Target: tokenContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			owner := a.Address("new_owner")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.Token.TransferOwnership(tx, owner)
		}},
	)
	pausable("token", tokenContract, func(w *World, tx *chain.Tx, p bool) error { return w.Token.SetPaused(tx, p) })

	register(
		Operation{Name: "nft.mint", Target: nftContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			to := a.Address("to")
			score := a.Uint("quality_score")
			meta := nft.Metadata{
				TokenURI:    a.String("token_uri"),
				GeneName:    a.String("gene_name"),
				Description: a.String("description"),
				IPFSHash:    a.String("ipfs_hash"),
			}
			if err := a.Err(); err != nil {
				return nil, err
			}
			if score > nft.MaxQualityScore {
				return nil, nft.ErrInvalidQualityScore
			}
			meta.QualityScore = uint8(score)
			tokenID, err := w.NFT.Mint(tx, to, meta)
			if err != nil {
				return nil, err
			}
			return Output{"token_id": itoa(tokenID), "reward": w.NFT.RewardFor(meta.QualityScore).Dec()}, nil
		}},
		Operation{Name: "nft.approve", Target: nftContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			operator, tokenID := a.Address("operator"), a.Uint("token_id")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.NFT.Approve(tx, operator, tokenID)
		}},
		Operation{Name: "nft.transfer_from", Target: nftContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			from, to, tokenID := a.Address("from"), a.Address("to"), a.Uint("token_id")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.NFT.TransferFrom(tx, from, to, tokenID)
		}},
		Operation{Name: "nft.add_minter", Target: nftContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			account := a.Address("account")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.NFT.AddMinter(tx, account)
		}},
		Operation{Name: "nft.remove_minter", Target: nftContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			account := a.Address("account")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.NFT.RemoveMinter(tx, account)
		}},
		Operation{Name: "nft.set_reward", Target: nftContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			amount := a.Amount("amount")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.NFT.SetReward(tx, amount)
		}},
	)
	pausable("nft", nftContract, func(w *World, tx *chain.Tx, p bool) error { return w.NFT.SetPaused(tx, p) })

	register(
		Operation{Name: "market.list", Target: marketContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			assetID := a.Uint("asset_id")
			native, tok := a.OptionalAmount("price_native"), a.OptionalAmount("price_token")
			duration := a.Duration("duration")
			level := market.AccessView
			if s := a.String("access_level"); s != "" {
				var err error
				if level, err = market.ParseAccessLevel(s); err != nil {
					return nil, err
				}
			}
			if err := a.Err(); err != nil {
				return nil, err
			}
			listingID, err := w.Market.ListData(tx, assetID, native, tok, duration, level)
			if err != nil {
				return nil, err
			}
			return Output{"listing_id": itoa(listingID)}, nil
		}},
		Operation{Name: "market.purchase_native", Payable: true, Target: marketContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			listingID := a.Uint("listing_id")
			if err := a.Err(); err != nil {
				return nil, err
			}
			sale, err := w.Market.PurchaseWithNative(tx, listingID)
			if err != nil {
				return nil, err
			}
			return saleOutput(sale), nil
		}},
		Operation{Name: "market.purchase_token", Target: marketContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			listingID := a.Uint("listing_id")
			if err := a.Err(); err != nil {
				return nil, err
			}
			sale, err := w.Market.PurchaseWithToken(tx, listingID)
			if err != nil {
				return nil, err
			}
			return saleOutput(sale), nil
		}},
		Operation{Name: "market.cancel", Target: marketContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			listingID := a.Uint("listing_id")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.Market.CancelListing(tx, listingID)
		}},
		Operation{Name: "market.revoke_access", Target: marketContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			grantee, assetID := a.Address("grantee"), a.Uint("asset_id")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.Market.RevokeAccess(tx, grantee, assetID)
		}},
		Operation{Name: "market.set_platform_fee", Target: marketContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			bps := a.Uint("bps")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.Market.SetPlatformFee(tx, bps)
		}},
		Operation{Name: "market.set_fee_recipient", Target: marketContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			recipient := a.Address("recipient")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.Market.SetFeeRecipient(tx, recipient)
		}},
	)
	pausable("market", marketContract, func(w *World, tx *chain.Tx, p bool) error { return w.Market.SetPaused(tx, p) })

	register(
		Operation{Name: "dao.propose", Target: daoContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			native, tok := a.OptionalAmount("funding_native"), a.OptionalAmount("funding_token")
			typ := dao.TypeGeneral
			if s := a.String("type"); s != "" {
				var err error
				if typ, err = dao.ParseProposalType(s); err != nil {
					return nil, err
				}
			}
			if err := a.Err(); err != nil {
				return nil, err
			}
			proposalID, err := w.DAO.Propose(tx, a.String("title"), a.String("description"), native, tok, typ)
			if err != nil {
				return nil, err
			}
			return Output{"proposal_id": itoa(proposalID)}, nil
		}},
		Operation{Name: "dao.vote", Target: daoContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			proposalID := a.Uint("proposal_id")
			choice, err := dao.ParseChoice(a.String("choice"))
			if err != nil {
				return nil, err
			}
			if err := a.Err(); err != nil {
				return nil, err
			}
			weight, err := w.DAO.Vote(tx, proposalID, choice, a.String("reason"))
			if err != nil {
				return nil, err
			}
			return Output{"weight": weight.Dec()}, nil
		}},
		Operation{Name: "dao.execute", Target: daoContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			proposalID := a.Uint("proposal_id")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.DAO.Execute(tx, proposalID)
		}},
		Operation{Name: "dao.cancel", Target: daoContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			proposalID := a.Uint("proposal_id")
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.DAO.Cancel(tx, proposalID)
		}},
		Operation{Name: "dao.deposit", Payable: true, Target: daoContract, Run: func(w *World, tx *chain.Tx, _ *Args) (Output, error) {
			return nil, w.DAO.Deposit(tx)
		}},
		Operation{Name: "dao.set_voting_parameters", Target: daoContract, Run: func(w *World, tx *chain.Tx, a *Args) (Output, error) {
			p := dao.Params{
				VotingDelay:       a.Duration("voting_delay"),
				VotingPeriod:      a.Duration("voting_period"),
				ExecutionDelay:    a.Duration("execution_delay"),
				ProposalThreshold: *a.Amount("proposal_threshold"),
				QuorumPercent:     a.Uint("quorum_percent"),
			}
			if err := a.Err(); err != nil {
				return nil, err
			}
			return nil, w.DAO.SetVotingParameters(tx, p)
		}},
	)
	pausable("dao", daoContract, func(w *World, tx *chain.Tx, p bool) error { return w.DAO.SetPaused(tx, p) })
}

func saleOutput(s *market.Sale) Output {
	return Output{
		"listing_id":    itoa(s.ListingID),
		"currency":      string(s.Currency),
		"price":         s.Price.Dec(),
		"platform_fee":  s.Fee.Dec(),
		"seller_amount": s.SellerAmount.Dec(),
		"refund":        s.Refund.Dec(),
		"expires_at":    strconv.FormatInt(s.Grant.ExpiresAt.Unix(), 10),
		"access_level":  s.Grant.Level.String(),
	}
}
