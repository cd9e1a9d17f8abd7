// Package auth resolves API keys to the ledger principal they act as.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/storage"
)

// Errors for authentication failures.
var (
	ErrMissingKey      = errors.New("auth: missing API key")
	ErrInvalidKey      = errors.New("auth: invalid API key")
	ErrMasterKeyLocked = errors.New("auth: master key is locked")
)

// HashToken computes the SHA-256 hash of a token for storage lookup.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Principal is an authenticated caller. Address is the sender of every
// transaction the caller submits.
type Principal struct {
	// TokenID is zero for the master key.
	TokenID  int64
	Name     string
	Address  chain.Address
	IsAdmin  bool
	IsMaster bool
}

// Authenticator checks API keys against stored tokens and the master key.
type Authenticator struct {
	tokens    storage.TokenStore
	bootstrap *BootstrapService
}

// NewAuthenticator returns an Authenticator. bootstrap may be nil, in which
// case the master key is never accepted.
func NewAuthenticator(tokens storage.TokenStore, bootstrap *BootstrapService) *Authenticator {
	return &Authenticator{tokens: tokens, bootstrap: bootstrap}
}

// Authenticate resolves key. Stored tokens are tried first; the master key
// is only considered after that and only while no admin token exists.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (*Principal, error) {
	if key == "" {
		return nil, ErrMissingKey
	}

	token, err := a.tokens.GetTokenByHash(ctx, HashToken(key))
	switch {
	case err == nil:
		return &Principal{
			TokenID: token.ID,
			Name:    token.Name,
			Address: token.Address,
			IsAdmin: token.IsAdmin,
		}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("look up token: %w", err)
	}

	if a.bootstrap == nil || !a.bootstrap.IsMasterKey(key) {
		return nil, ErrInvalidKey
	}
	canUse, err := a.bootstrap.CanUseMasterKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("check bootstrap state: %w", err)
	}
	if !canUse {
		return nil, ErrMasterKeyLocked
	}
	return &Principal{
		Name:     "master",
		Address:  a.bootstrap.Owner(),
		IsAdmin:  true,
		IsMaster: true,
	}, nil
}
