package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/dao"
	"github.com/genomechain/genome-ledger/internal/market"
	"github.com/genomechain/genome-ledger/internal/nft"
	"github.com/genomechain/genome-ledger/internal/storage"
	"github.com/genomechain/genome-ledger/internal/token"
)

// Every read runs inside Engine.View so it sees a committed state.

// resolveAddress accepts a contract name or a hex address.
func (h *Handler) resolveAddress(s string) (chain.Address, error) {
	if a, ok := h.world.Contracts()[s]; ok {
		return a, nil
	}
	return chain.ParseAddress(s)
}

func (h *Handler) addressParam(w http.ResponseWriter, r *http.Request, key string) (chain.Address, bool) {
	a, err := h.resolveAddress(chi.URLParam(r, key))
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid address: "+err.Error())
		return chain.Address{}, false
	}
	return a, true
}

func uintParam(w http.ResponseWriter, r *http.Request, key string) (uint64, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, key), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid "+key)
		return 0, false
	}
	return n, true
}

// HandleContracts lists the deployed contracts.
// GET /api/contracts
func (h *Handler) HandleContracts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.world.Contracts())
}

// HandleAccount returns the balances and holdings of an address.
// GET /api/accounts/{address}
func (h *Handler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	a, ok := h.addressParam(w, r, "address")
	if !ok {
		return
	}
	var v AccountView
	h.world.Engine.View(func(now time.Time) {
		v = AccountView{
			Address:      a,
			Native:       dec(h.world.Engine.Bank().BalanceOf(a)),
			Genome:       dec(h.world.Token.BalanceOf(a)),
			IsMinter:     h.world.Token.IsMinter(a),
			NFTs:         h.world.NFT.TokensOf(a),
			AccessGrants: []GrantView{},
		}
		for _, g := range h.world.Market.Grants().Of(a) {
			v.AccessGrants = append(v.AccessGrants, grantView(now, g))
		}
	})
	if v.NFTs == nil {
		v.NFTs = []uint64{}
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleAccountNFTs returns the genomes an address holds.
// GET /api/accounts/{address}/nfts
func (h *Handler) HandleAccountNFTs(w http.ResponseWriter, r *http.Request) {
	a, ok := h.addressParam(w, r, "address")
	if !ok {
		return
	}
	out := []GenomeView{}
	h.world.Engine.View(func(time.Time) {
		for _, id := range h.world.NFT.TokensOf(a) {
			g, err := h.world.NFT.Token(id)
			if err == nil {
				out = append(out, genomeView(g))
			}
		}
	})
	writeJSON(w, http.StatusOK, out)
}

// HandleAccess reports whether an address may use an asset right now.
// GET /api/accounts/{address}/access/{assetID}
func (h *Handler) HandleAccess(w http.ResponseWriter, r *http.Request) {
	a, ok := h.addressParam(w, r, "address")
	if !ok {
		return
	}
	assetID, ok := uintParam(w, r, "assetID")
	if !ok {
		return
	}
	var (
		has     bool
		level   market.AccessLevel
		expires time.Time
	)
	h.world.Engine.View(func(now time.Time) {
		has, level, expires = h.world.Market.HasAccess(now, a, assetID)
	})
	resp := map[string]any{"address": a, "asset_id": assetID, "has_access": has}
	if has {
		resp["level"] = level.String()
		resp["expires_at"] = expires
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleToken returns the GENOME ledger state.
// GET /api/token
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var v TokenView
	h.world.Engine.View(func(time.Time) {
		t := h.world.Token
		v = TokenView{
			Address:     t.Address(),
			Name:        token.Name,
			Symbol:      token.Symbol,
			Decimals:    token.Decimals,
			Owner:       t.Owner(),
			Paused:      t.Paused(),
			TotalSupply: dec(t.TotalSupply()),
			MaxSupply:   dec(t.MaxSupply()),
			Minters:     t.Minters(),
		}
	})
	writeJSON(w, http.StatusOK, v)
}

// HandleAllowance returns how much spender may move on owner's behalf.
// GET /api/token/allowance?owner=&spender=
func (h *Handler) HandleAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := h.resolveAddress(r.URL.Query().Get("owner"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid owner: "+err.Error())
		return
	}
	spender, err := h.resolveAddress(r.URL.Query().Get("spender"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid spender: "+err.Error())
		return
	}
	var amount string
	h.world.Engine.View(func(time.Time) {
		amount = dec(h.world.Token.Allowance(owner, spender))
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":     owner,
		"spender":   spender,
		"allowance": amount,
	})
}

// HandleNFT returns one genome.
// GET /api/nfts/{id}
func (h *Handler) HandleNFT(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var (
		g   nft.Genome
		err error
	)
	h.world.Engine.View(func(time.Time) { g, err = h.world.NFT.Token(id) })
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, genomeView(g))
}

// HandleListings returns active listings, or every listing with ?all=true.
// GET /api/listings
func (h *Handler) HandleListings(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	out := []ListingView{}
	h.world.Engine.View(func(time.Time) {
		m := h.world.Market
		if !all {
			for _, l := range m.ActiveListings() {
				out = append(out, listingView(l))
			}
			return
		}
		for id := range m.ListingCount() {
			if l, err := m.Listing(id); err == nil {
				out = append(out, listingView(l))
			}
		}
	})
	writeJSON(w, http.StatusOK, out)
}

// HandleListing returns one listing.
// GET /api/listings/{id}
func (h *Handler) HandleListing(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var (
		l   market.Listing
		err error
	)
	h.world.Engine.View(func(time.Time) { l, err = h.world.Market.Listing(id) })
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listingView(l))
}

// HandleMarket returns the marketplace configuration.
// GET /api/market
func (h *Handler) HandleMarket(w http.ResponseWriter, r *http.Request) {
	var v MarketView
	h.world.Engine.View(func(time.Time) {
		m := h.world.Market
		v = MarketView{
			Address:        m.Address(),
			Owner:          m.Owner(),
			FeeBps:         m.FeeBps(),
			FeeRecipient:   m.FeeRecipient(),
			ListingCount:   m.ListingCount(),
			ActiveListings: len(m.ActiveListings()),
		}
	})
	writeJSON(w, http.StatusOK, v)
}

// HandleDAO returns the DAO parameters and treasury.
// GET /api/dao
func (h *Handler) HandleDAO(w http.ResponseWriter, r *http.Request) {
	var v DAOView
	h.world.Engine.View(func(time.Time) {
		d := h.world.DAO
		p := d.Params()
		native, tok := d.Treasury()
		v = DAOView{
			Address:           d.Address(),
			Owner:             d.Owner(),
			VotingDelay:       p.VotingDelay.String(),
			VotingPeriod:      p.VotingPeriod.String(),
			ExecutionDelay:    p.ExecutionDelay.String(),
			ProposalThreshold: dec(&p.ProposalThreshold),
			QuorumPercent:     p.QuorumPercent,
			QuorumVotes:       dec(d.QuorumVotes()),
			ProposalCount:     d.ProposalCount(),
			TreasuryNative:    dec(native),
			TreasuryToken:     dec(tok),
		}
	})
	writeJSON(w, http.StatusOK, v)
}

// HandleProposals lists every proposal with its current state.
// GET /api/proposals
func (h *Handler) HandleProposals(w http.ResponseWriter, r *http.Request) {
	out := []ProposalView{}
	h.world.Engine.View(func(now time.Time) {
		for _, p := range h.world.DAO.Proposals() {
			state, err := h.world.DAO.State(now, p.ID)
			if err == nil {
				out = append(out, proposalView(p, state))
			}
		}
	})
	writeJSON(w, http.StatusOK, out)
}

// HandleProposal returns one proposal.
// GET /api/proposals/{id}
func (h *Handler) HandleProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var (
		p     dao.Proposal
		state dao.State
		err   error
	)
	h.world.Engine.View(func(now time.Time) {
		if p, err = h.world.DAO.Proposal(id); err == nil {
			state, err = h.world.DAO.State(now, id)
		}
	})
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposalView(p, state))
}

// HandleVotes lists the ballots cast on a proposal.
// GET /api/proposals/{id}/votes
func (h *Handler) HandleVotes(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var err error
	out := []VoteView{}
	h.world.Engine.View(func(time.Time) {
		if _, err = h.world.DAO.Proposal(id); err != nil {
			return
		}
		for _, v := range h.world.DAO.Votes(id) {
			out = append(out, voteView(v))
		}
	})
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleEvents pages through the committed event log.
// GET /api/events?contract=&name=&after=&limit=
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f storage.EventFilter
	var err error
	if c := q.Get("contract"); c != "" {
		if f.Contract, err = h.resolveAddress(c); err != nil {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid contract: "+err.Error())
			return
		}
	}
	f.Name = q.Get("name")
	if s := q.Get("after"); s != "" {
		if f.AfterSeq, err = strconv.ParseUint(s, 10, 64); err != nil {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid after")
			return
		}
	}
	if s := q.Get("limit"); s != "" {
		if f.Limit, err = strconv.Atoi(s); err != nil || f.Limit < 0 {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid limit")
			return
		}
	}

	events, err := h.storage.ListEvents(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	if events == nil {
		events = []chain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
