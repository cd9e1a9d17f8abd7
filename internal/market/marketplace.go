// Package market implements the genomic data marketplace: sellers list
// assets they own, buyers pay in native currency or GENOME, the platform
// takes a fee, and the buyer receives a time-bounded access grant.
package market

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/genomechain/genome-ledger/internal/chain"
)

const (
	// MaxPlatformFeeBps caps the platform fee at 10%.
	MaxPlatformFeeBps = 1000
	// DefaultPlatformFeeBps is 2.5%.
	DefaultPlatformFeeBps = 250
)

// Marketplace errors.
var (
	ErrNotOwner              = chain.NewError(chain.CodeUnauthorized, "NotOwner")
	ErrNotSeller             = chain.NewError(chain.CodeUnauthorized, "NotSeller")
	ErrInvalidPrice          = chain.NewError(chain.CodeInvalidInput, "InvalidPrice")
	ErrInvalidDuration       = chain.NewError(chain.CodeInvalidInput, "InvalidDuration")
	ErrInvalidAccessLevel    = chain.NewError(chain.CodeInvalidInput, "InvalidAccessLevel")
	ErrFeeTooHigh            = chain.NewError(chain.CodeInvalidInput, "FeeTooHigh")
	ErrUnexpectedValue       = chain.ErrUnexpectedValue
	ErrListingNotFound       = chain.NewError(chain.CodeNotFound, "ListingNotFound")
	ErrListingInactive       = chain.NewError(chain.CodeInvalidState, "ListingInactive")
	ErrNoNativePriceAccepted = chain.NewError(chain.CodeInvalidState, "NoNativePriceAccepted")
	ErrNoTokenPriceAccepted  = chain.NewError(chain.CodeInvalidState, "NoTokenPriceAccepted")
	ErrInsufficientPayment   = chain.NewError(chain.CodeInsufficientFunds, "InsufficientPayment")
	ErrSelfPurchase          = chain.NewError(chain.CodeInvalidInput, "SelfPurchase")
	ErrNoGrant               = chain.NewError(chain.CodeNotFound, "NoAccessGrant")
	ErrGrantRevoked          = chain.NewError(chain.CodeAlreadyDone, "AccessAlreadyRevoked")
)

// AssetRegistry answers who holds an asset.
type AssetRegistry interface {
	OwnerOf(id uint64) (chain.Address, error)
}

// TokenLedger moves GENOME on a buyer's behalf.
type TokenLedger interface {
	TransferFrom(tx *chain.Tx, from, to chain.Address, amount *uint256.Int) error
}

// Listing offers access to an asset.
type Listing struct {
	ID             uint64
	Seller         chain.Address
	AssetID        uint64
	PriceNative    uint256.Int
	PriceToken     uint256.Int
	Active         bool
	AccessDuration time.Duration
	Level          AccessLevel
	CreatedAt      time.Time
}

// Currency is how a sale was paid.
type Currency string

const (
	CurrencyNative Currency = "native"
	CurrencyToken  Currency = "token"
)

// Sale is the settlement of a purchase.
type Sale struct {
	ListingID    uint64
	Buyer        chain.Address
	Seller       chain.Address
	Currency     Currency
	Price        uint256.Int
	Fee          uint256.Int
	SellerAmount uint256.Int
	Refund       uint256.Int
	Grant        Grant
}

// Config holds deployment parameters.
type Config struct {
	Owner        chain.Address
	FeeRecipient chain.Address
	FeeBps       uint64
}

// Marketplace is the data marketplace contract.
type Marketplace struct {
	addr         chain.Address
	ctl          chain.Controls
	bank         *chain.Bank
	token        TokenLedger
	assets       AssetRegistry
	grants       *GrantStore
	listings     []*Listing
	feeBps       uint64
	feeRecipient chain.Address
}

// New deploys a marketplace at addr. An empty fee recipient defaults to the owner.
func New(addr chain.Address, bank *chain.Bank, token TokenLedger, assets AssetRegistry, cfg Config) (*Marketplace, error) {
	if cfg.FeeBps > MaxPlatformFeeBps {
		return nil, ErrFeeTooHigh
	}
	recipient := cfg.FeeRecipient
	if recipient.IsZero() {
		recipient = cfg.Owner
	}
	return &Marketplace{
		addr:         addr,
		ctl:          chain.NewControls(cfg.Owner),
		bank:         bank,
		token:        token,
		assets:       assets,
		grants:       NewGrantStore(),
		feeBps:       cfg.FeeBps,
		feeRecipient: recipient,
	}, nil
}

// Address returns the contract address.
func (m *Marketplace) Address() chain.Address { return m.addr }

// Owner returns the contract owner.
func (m *Marketplace) Owner() chain.Address { return m.ctl.Owner() }

// Paused reports whether trading is halted.
func (m *Marketplace) Paused() bool { return m.ctl.Paused() }

// FeeBps returns the platform fee in basis points.
func (m *Marketplace) FeeBps() uint64 { return m.feeBps }

// FeeRecipient returns where platform fees go.
func (m *Marketplace) FeeRecipient() chain.Address { return m.feeRecipient }

// Grants exposes the access grant store for reads.
func (m *Marketplace) Grants() *GrantStore { return m.grants }

// ListingCount returns how many listings were ever created.
func (m *Marketplace) ListingCount() uint64 { return uint64(len(m.listings)) }

// Listing returns a copy of listing id.
func (m *Marketplace) Listing(id uint64) (Listing, error) {
	l, err := m.listing(id)
	if err != nil {
		return Listing{}, err
	}
	return *l, nil
}

// ActiveListings returns copies of all listings still for sale.
func (m *Marketplace) ActiveListings() []Listing {
	var out []Listing
	for _, l := range m.listings {
		if l.Active {
			out = append(out, *l)
		}
	}
	return out
}

// HasAccess reports whether grantee may use assetID at now.
func (m *Marketplace) HasAccess(now time.Time, grantee chain.Address, assetID uint64) (bool, AccessLevel, time.Time) {
	return m.grants.Check(now, grantee, assetID)
}

// ListData offers access to assetID. The caller must hold the asset, at
// least one price must be set, and the access duration must be at least a second.
func (m *Marketplace) ListData(tx *chain.Tx, assetID uint64, priceNative, priceToken *uint256.Int, duration time.Duration, level AccessLevel) (uint64, error) {
	release, err := m.ctl.Enter()
	if err != nil {
		return 0, err
	}
	defer release()

	if err := m.ctl.WhenNotPaused(); err != nil {
		return 0, err
	}
	seller := tx.Sender()
	holder, err := m.assets.OwnerOf(assetID)
	if err != nil || holder != seller {
		return 0, ErrNotOwner
	}
	if priceNative.IsZero() && priceToken.IsZero() {
		return 0, ErrInvalidPrice
	}
	duration = duration.Truncate(time.Second)
	if duration <= 0 {
		return 0, ErrInvalidDuration
	}
	if !level.Valid() {
		return 0, ErrInvalidAccessLevel
	}

	id := uint64(len(m.listings))
	chain.Append(tx, &m.listings, &Listing{
		ID:             id,
		Seller:         seller,
		AssetID:        assetID,
		PriceNative:    *priceNative,
		PriceToken:     *priceToken,
		Active:         true,
		AccessDuration: duration,
		Level:          level,
		CreatedAt:      tx.Now(),
	})
	tx.Emit(m.addr, "DataListed", chain.Fields{
		"listing_id":    fmt.Sprint(id),
		"seller":        seller.Hex(),
		"asset_id":      fmt.Sprint(assetID),
		"price_native":  priceNative.Dec(),
		"price_token":   priceToken.Dec(),
		"duration_secs": fmt.Sprint(int64(duration / time.Second)),
		"access_level":  level.String(),
	})
	return id, nil
}

// PurchaseWithNative buys listing id with the native currency attached to
// the call. The fee goes to the fee recipient, the remainder to the seller,
// the listing closes, the buyer gets a grant, and any overpayment is refunded.
func (m *Marketplace) PurchaseWithNative(tx *chain.Tx, id uint64) (*Sale, error) {
	release, err := m.ctl.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := m.ctl.WhenNotPaused(); err != nil {
		return nil, err
	}
	l, err := m.listing(id)
	if err != nil {
		return nil, err
	}
	if !l.Active {
		return nil, ErrListingInactive
	}
	if l.PriceNative.IsZero() {
		return nil, ErrNoNativePriceAccepted
	}
	paid := tx.Value()
	if paid.Lt(&l.PriceNative) {
		return nil, ErrInsufficientPayment
	}
	buyer := tx.Sender()
	if buyer == l.Seller {
		return nil, ErrSelfPurchase
	}

	sale := m.split(l, buyer, CurrencyNative, &l.PriceNative)
	self := tx.Sub(m.addr)
	if err := m.bank.Transfer(self, m.addr, m.feeRecipient, &sale.Fee); err != nil {
		return nil, fmt.Errorf("platform fee: %w", err)
	}
	if err := m.bank.Transfer(self, m.addr, l.Seller, &sale.SellerAmount); err != nil {
		return nil, fmt.Errorf("seller payment: %w", err)
	}

	sale.Grant = m.settle(tx, l, buyer)

	sale.Refund.Sub(paid, &l.PriceNative)
	if err := m.bank.Transfer(self, m.addr, buyer, &sale.Refund); err != nil {
		return nil, fmt.Errorf("refund: %w", err)
	}
	m.emitSale(tx, sale)
	return sale, nil
}

// PurchaseWithToken buys listing id with GENOME. The buyer must have
// approved the marketplace for at least the token price.
func (m *Marketplace) PurchaseWithToken(tx *chain.Tx, id uint64) (*Sale, error) {
	release, err := m.ctl.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := m.ctl.WhenNotPaused(); err != nil {
		return nil, err
	}
	if !tx.Value().IsZero() {
		return nil, ErrUnexpectedValue
	}
	l, err := m.listing(id)
	if err != nil {
		return nil, err
	}
	if !l.Active {
		return nil, ErrListingInactive
	}
	if l.PriceToken.IsZero() {
		return nil, ErrNoTokenPriceAccepted
	}
	buyer := tx.Sender()
	if buyer == l.Seller {
		return nil, ErrSelfPurchase
	}

	sale := m.split(l, buyer, CurrencyToken, &l.PriceToken)
	self := tx.Sub(m.addr)
	if !sale.Fee.IsZero() {
		if err := m.token.TransferFrom(self, buyer, m.feeRecipient, &sale.Fee); err != nil {
			return nil, fmt.Errorf("platform fee: %w", err)
		}
	}
	if err := m.token.TransferFrom(self, buyer, l.Seller, &sale.SellerAmount); err != nil {
		return nil, fmt.Errorf("seller payment: %w", err)
	}

	sale.Grant = m.settle(tx, l, buyer)
	m.emitSale(tx, sale)
	return sale, nil
}

// CancelListing withdraws an active listing. Seller only.
func (m *Marketplace) CancelListing(tx *chain.Tx, id uint64) error {
	release, err := m.ctl.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := m.ctl.WhenNotPaused(); err != nil {
		return err
	}
	l, err := m.listing(id)
	if err != nil {
		return err
	}
	if l.Seller != tx.Sender() {
		return ErrNotSeller
	}
	if !l.Active {
		return ErrListingInactive
	}
	chain.Assign(tx, &l.Active, false)
	tx.Emit(m.addr, "ListingCancelled", chain.Fields{
		"listing_id": fmt.Sprint(id),
		"seller":     l.Seller.Hex(),
	})
	return nil
}

// RevokeAccess cancels a grant regardless of expiry. Owner only.
func (m *Marketplace) RevokeAccess(tx *chain.Tx, grantee chain.Address, assetID uint64) error {
	release, err := m.ctl.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := m.ctl.CheckOwner(tx.Sender()); err != nil {
		return err
	}
	if err := m.grants.Revoke(tx, grantee, assetID); err != nil {
		return err
	}
	tx.Emit(m.addr, "AccessRevoked", chain.Fields{
		"grantee":  grantee.Hex(),
		"asset_id": fmt.Sprint(assetID),
	})
	return nil
}

// SetPlatformFee changes the fee, at most MaxPlatformFeeBps. Owner only.
func (m *Marketplace) SetPlatformFee(tx *chain.Tx, bps uint64) error {
	release, err := m.ctl.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := m.ctl.CheckOwner(tx.Sender()); err != nil {
		return err
	}
	if bps > MaxPlatformFeeBps {
		return ErrFeeTooHigh
	}
	old := m.feeBps
	chain.Assign(tx, &m.feeBps, bps)
	tx.Emit(m.addr, "PlatformFeeUpdated", chain.Fields{
		"old_bps": fmt.Sprint(old),
		"new_bps": fmt.Sprint(bps),
	})
	return nil
}

// SetFeeRecipient changes where fees go. Owner only.
func (m *Marketplace) SetFeeRecipient(tx *chain.Tx, recipient chain.Address) error {
	release, err := m.ctl.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := m.ctl.CheckOwner(tx.Sender()); err != nil {
		return err
	}
	if recipient.IsZero() {
		return chain.ErrZeroAddress
	}
	chain.Assign(tx, &m.feeRecipient, recipient)
	return nil
}

// SetPaused halts or resumes listing, buying and cancelling. Owner only.
func (m *Marketplace) SetPaused(tx *chain.Tx, paused bool) error {
	return m.ctl.SetPaused(tx, m.addr, paused)
}

// TransferOwnership hands the contract to newOwner. Owner only.
func (m *Marketplace) TransferOwnership(tx *chain.Tx, newOwner chain.Address) error {
	return m.ctl.TransferOwnership(tx, m.addr, newOwner)
}

func (m *Marketplace) listing(id uint64) (*Listing, error) {
	if id >= uint64(len(m.listings)) {
		return nil, ErrListingNotFound
	}
	return m.listings[id], nil
}

// split computes the fee and the seller's share. The seller receives
// whatever the truncated fee leaves, so the two always sum to price.
func (m *Marketplace) split(l *Listing, buyer chain.Address, cur Currency, price *uint256.Int) *Sale {
	s := &Sale{
		ListingID: l.ID,
		Buyer:     buyer,
		Seller:    l.Seller,
		Currency:  cur,
		Price:     *price,
		Fee:       *chain.BasisPoints(price, m.feeBps),
	}
	s.SellerAmount.Sub(price, &s.Fee)
	return s
}

// settle closes the listing and issues the buyer's grant.
func (m *Marketplace) settle(tx *chain.Tx, l *Listing, buyer chain.Address) Grant {
	chain.Assign(tx, &l.Active, false)
	return m.grants.Issue(tx, buyer, l.AssetID, tx.Now().Add(l.AccessDuration), l.Level)
}

func (m *Marketplace) emitSale(tx *chain.Tx, s *Sale) {
	tx.Emit(m.addr, "DataSold", chain.Fields{
		"listing_id":    fmt.Sprint(s.ListingID),
		"buyer":         s.Buyer.Hex(),
		"seller":        s.Seller.Hex(),
		"currency":      string(s.Currency),
		"price":         s.Price.Dec(),
		"platform_fee":  s.Fee.Dec(),
		"seller_amount": s.SellerAmount.Dec(),
	})
	tx.Emit(m.addr, "AccessGranted", chain.Fields{
		"grantee":      s.Buyer.Hex(),
		"asset_id":     fmt.Sprint(s.Grant.AssetID),
		"expires_at":   fmt.Sprint(s.Grant.ExpiresAt.Unix()),
		"access_level": s.Grant.Level.String(),
	})
}
