package api

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/dao"
	"github.com/genomechain/genome-ledger/internal/market"
	"github.com/genomechain/genome-ledger/internal/nft"
)

// Amounts are rendered as base-unit decimal strings; they overflow JSON
// numbers.

func dec(v *uint256.Int) string { return v.Dec() }

// AccountView is an address's balances and holdings.
type AccountView struct {
	Address      chain.Address `json:"address"`
	Native       string        `json:"native"`
	Genome       string        `json:"genome"`
	IsMinter     bool          `json:"is_minter"`
	NFTs         []uint64      `json:"nfts"`
	AccessGrants []GrantView   `json:"access_grants"`
}

// TokenView is the GENOME ledger's global state.
type TokenView struct {
	Address     chain.Address   `json:"address"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Decimals    uint8           `json:"decimals"`
	Owner       chain.Address   `json:"owner"`
	Paused      bool            `json:"paused"`
	TotalSupply string          `json:"total_supply"`
	MaxSupply   string          `json:"max_supply"`
	Minters     []chain.Address `json:"minters"`
}

// GenomeView is a minted genome NFT.
type GenomeView struct {
	TokenID      uint64        `json:"token_id"`
	Owner        chain.Address `json:"owner"`
	Contributor  chain.Address `json:"contributor"`
	TokenURI     string        `json:"token_uri"`
	GeneName     string        `json:"gene_name"`
	Description  string        `json:"description"`
	IPFSHash     string        `json:"ipfs_hash"`
	QualityScore uint8         `json:"quality_score"`
	MintedAt     time.Time     `json:"minted_at"`
}

func genomeView(g nft.Genome) GenomeView {
	return GenomeView{
		TokenID:      g.TokenID,
		Owner:        g.Owner,
		Contributor:  g.Contributor,
		TokenURI:     g.TokenURI,
		GeneName:     g.GeneName,
		Description:  g.Description,
		IPFSHash:     g.IPFSHash,
		QualityScore: g.QualityScore,
		MintedAt:     g.MintedAt,
	}
}

// ListingView is a marketplace listing.
type ListingView struct {
	ID             uint64        `json:"id"`
	Seller         chain.Address `json:"seller"`
	AssetID        uint64        `json:"asset_id"`
	PriceNative    string        `json:"price_native"`
	PriceToken     string        `json:"price_token"`
	Active         bool          `json:"active"`
	AccessDuration string        `json:"access_duration"`
	Level          string        `json:"level"`
	CreatedAt      time.Time     `json:"created_at"`
}

func listingView(l market.Listing) ListingView {
	return ListingView{
		ID:             l.ID,
		Seller:         l.Seller,
		AssetID:        l.AssetID,
		PriceNative:    dec(&l.PriceNative),
		PriceToken:     dec(&l.PriceToken),
		Active:         l.Active,
		AccessDuration: l.AccessDuration.String(),
		Level:          l.Level.String(),
		CreatedAt:      l.CreatedAt,
	}
}

// GrantView is an access grant.
type GrantView struct {
	Grantee   chain.Address `json:"grantee"`
	AssetID   uint64        `json:"asset_id"`
	Level     string        `json:"level"`
	ExpiresAt time.Time     `json:"expires_at"`
	Active    bool          `json:"active"`
	Valid     bool          `json:"valid"`
}

func grantView(now time.Time, g market.Grant) GrantView {
	return GrantView{
		Grantee:   g.Grantee,
		AssetID:   g.AssetID,
		Level:     g.Level.String(),
		ExpiresAt: g.ExpiresAt,
		Active:    g.Active,
		Valid:     g.ValidAt(now),
	}
}

// MarketView is the marketplace's configuration.
type MarketView struct {
	Address        chain.Address `json:"address"`
	Owner          chain.Address `json:"owner"`
	FeeBps         uint64        `json:"fee_bps"`
	FeeRecipient   chain.Address `json:"fee_recipient"`
	ListingCount   uint64        `json:"listing_count"`
	ActiveListings int           `json:"active_listings"`
}

// ProposalView is a proposal with its state at the time of the request.
type ProposalView struct {
	ID            uint64        `json:"id"`
	Proposer      chain.Address `json:"proposer"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Type          string        `json:"type"`
	State         string        `json:"state"`
	FundingNative string        `json:"funding_native"`
	FundingToken  string        `json:"funding_token"`
	CreatedAt     time.Time     `json:"created_at"`
	VotingStart   time.Time     `json:"voting_start"`
	VotingEnd     time.Time     `json:"voting_end"`
	ExecutionTime time.Time     `json:"execution_time"`
	ForVotes      string        `json:"for_votes"`
	AgainstVotes  string        `json:"against_votes"`
	AbstainVotes  string        `json:"abstain_votes"`
	Executed      bool          `json:"executed"`
	Canceled      bool          `json:"canceled"`
}

func proposalView(p dao.Proposal, state dao.State) ProposalView {
	return ProposalView{
		ID:            p.ID,
		Proposer:      p.Proposer,
		Title:         p.Title,
		Description:   p.Description,
		Type:          p.Type.String(),
		State:         state.String(),
		FundingNative: dec(&p.FundingNative),
		FundingToken:  dec(&p.FundingToken),
		CreatedAt:     p.CreatedAt,
		VotingStart:   p.VotingStart,
		VotingEnd:     p.VotingEnd,
		ExecutionTime: p.ExecutionTime,
		ForVotes:      dec(&p.ForVotes),
		AgainstVotes:  dec(&p.AgainstVotes),
		AbstainVotes:  dec(&p.AbstainVotes),
		Executed:      p.Executed,
		Canceled:      p.Canceled,
	}
}

// VoteView is a cast ballot.
type VoteView struct {
	ProposalID uint64        `json:"proposal_id"`
	Voter      chain.Address `json:"voter"`
	Choice     string        `json:"choice"`
	Weight     string        `json:"weight"`
	Reason     string        `json:"reason,omitempty"`
	CastAt     time.Time     `json:"cast_at"`
}

func voteView(v dao.Vote) VoteView {
	return VoteView{
		ProposalID: v.ProposalID,
		Voter:      v.Voter,
		Choice:     v.Choice.String(),
		Weight:     dec(&v.Weight),
		Reason:     v.Reason,
		CastAt:     v.CastAt,
	}
}

// DAOView is the DAO's parameters and treasury.
type DAOView struct {
	Address           chain.Address `json:"address"`
	Owner             chain.Address `json:"owner"`
	VotingDelay       string        `json:"voting_delay"`
	VotingPeriod      string        `json:"voting_period"`
	ExecutionDelay    string        `json:"execution_delay"`
	ProposalThreshold string        `json:"proposal_threshold"`
	QuorumPercent     uint64        `json:"quorum_percent"`
	QuorumVotes       string        `json:"quorum_votes"`
	ProposalCount     uint64        `json:"proposal_count"`
	TreasuryNative    string        `json:"treasury_native"`
	TreasuryToken     string        `json:"treasury_token"`
}
