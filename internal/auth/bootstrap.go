package auth

import (
	"context"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/storage"
)

// BootstrapState represents the system configuration state.
type BootstrapState int

const (
	// StateUnconfigured means no admin token exists and the master key works.
	StateUnconfigured BootstrapState = iota
	// StateConfigured means an admin token exists and the master key is locked out.
	StateConfigured
)

func (s BootstrapState) String() string {
	switch s {
	case StateUnconfigured:
		return "UNCONFIGURED"
	case StateConfigured:
		return "CONFIGURED"
	default:
		return "UNKNOWN"
	}
}

// BootstrapService decides whether the master key may still be used. The
// master key acts as the ledger owner.
type BootstrapService struct {
	tokens        storage.TokenStore
	owner         chain.Address
	masterKeyHash []byte
}

// NewBootstrapService keeps only a bcrypt hash of masterKey in memory.
func NewBootstrapService(tokens storage.TokenStore, masterKey string, owner chain.Address) (*BootstrapService, error) {
	hash, err := bcrypt.GenerateFromPassword(prehash(masterKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash master key: %w", err)
	}
	return &BootstrapService{tokens: tokens, owner: owner, masterKeyHash: hash}, nil
}

// prehash fits keys of any length under bcrypt's 72 byte input limit.
func prehash(key string) []byte {
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}

// Owner is the address the master key acts as.
func (b *BootstrapService) Owner() chain.Address {
	return b.owner
}

// GetState reports whether any admin token exists.
func (b *BootstrapService) GetState(ctx context.Context) (BootstrapState, error) {
	hasAdmin, err := b.tokens.HasAnyAdminToken(ctx)
	if err != nil {
		return StateUnconfigured, err
	}
	if hasAdmin {
		return StateConfigured, nil
	}
	return StateUnconfigured, nil
}

// IsMasterKey reports whether key is the master key. The bcrypt comparison
// runs in constant time.
func (b *BootstrapService) IsMasterKey(key string) bool {
	return bcrypt.CompareHashAndPassword(b.masterKeyHash, prehash(key)) == nil
}

// CanUseMasterKey is true only while the system is unconfigured.
func (b *BootstrapService) CanUseMasterKey(ctx context.Context) (bool, error) {
	state, err := b.GetState(ctx)
	if err != nil {
		return false, err
	}
	return state == StateUnconfigured, nil
}

// ValidateMasterKey reports whether key is the master key and may be used.
func (b *BootstrapService) ValidateMasterKey(ctx context.Context, key string) (bool, error) {
	if !b.IsMasterKey(key) {
		return false, nil
	}
	return b.CanUseMasterKey(ctx)
}
