// Package mockstore provides a configurable storage.Storage for tests.
//
// Each method delegates to the matching function field when it is set and
// otherwise returns a neutral default: not found for lookups, empty lists,
// and success for writes.
package mockstore

import (
	"context"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/storage"
)

// MockStorage implements storage.Storage with overridable function fields.
type MockStorage struct {
	CreateTokenFunc      func(ctx context.Context, name string, isAdmin bool, address chain.Address, keyHash string) (*storage.Token, error)
	GetTokenByHashFunc   func(ctx context.Context, keyHash string) (*storage.Token, error)
	GetTokenByIDFunc     func(ctx context.Context, id int64) (*storage.Token, error)
	ListTokensFunc       func(ctx context.Context) ([]*storage.Token, error)
	DeleteTokenFunc      func(ctx context.Context, id int64) error
	HasAnyAdminTokenFunc func(ctx context.Context) (bool, error)
	CountAdminTokensFunc func(ctx context.Context) (int, error)

	AppendEventsFunc func(ctx context.Context, events []chain.Event) error
	ListEventsFunc   func(ctx context.Context, f storage.EventFilter) ([]chain.Event, error)

	PingFunc  func(ctx context.Context) error
	CloseFunc func() error
}

var _ storage.Storage = (*MockStorage)(nil)

// CreateToken creates a token.
func (m *MockStorage) CreateToken(ctx context.Context, name string, isAdmin bool, address chain.Address, keyHash string) (*storage.Token, error) {
	if m.CreateTokenFunc != nil {
		return m.CreateTokenFunc(ctx, name, isAdmin, address, keyHash)
	}
	return &storage.Token{ID: 1, Name: name, IsAdmin: isAdmin, Address: address, KeyHash: keyHash}, nil
}

// GetTokenByHash looks a token up by hash.
func (m *MockStorage) GetTokenByHash(ctx context.Context, keyHash string) (*storage.Token, error) {
	if m.GetTokenByHashFunc != nil {
		return m.GetTokenByHashFunc(ctx, keyHash)
	}
	return nil, storage.ErrNotFound
}

// GetTokenByID looks a token up by id.
func (m *MockStorage) GetTokenByID(ctx context.Context, id int64) (*storage.Token, error) {
	if m.GetTokenByIDFunc != nil {
		return m.GetTokenByIDFunc(ctx, id)
	}
	return nil, storage.ErrNotFound
}

// ListTokens lists tokens.
func (m *MockStorage) ListTokens(ctx context.Context) ([]*storage.Token, error) {
	if m.ListTokensFunc != nil {
		return m.ListTokensFunc(ctx)
	}
	return []*storage.Token{}, nil
}

// DeleteToken deletes a token.
func (m *MockStorage) DeleteToken(ctx context.Context, id int64) error {
	if m.DeleteTokenFunc != nil {
		return m.DeleteTokenFunc(ctx, id)
	}
	return nil
}

// HasAnyAdminToken reports whether an admin token exists.
func (m *MockStorage) HasAnyAdminToken(ctx context.Context) (bool, error) {
	if m.HasAnyAdminTokenFunc != nil {
		return m.HasAnyAdminTokenFunc(ctx)
	}
	return false, nil
}

// CountAdminTokens counts admin tokens.
func (m *MockStorage) CountAdminTokens(ctx context.Context) (int, error) {
	if m.CountAdminTokensFunc != nil {
		return m.CountAdminTokensFunc(ctx)
	}
	return 0, nil
}

// AppendEvents stores events.
func (m *MockStorage) AppendEvents(ctx context.Context, events []chain.Event) error {
	if m.AppendEventsFunc != nil {
		return m.AppendEventsFunc(ctx, events)
	}
	return nil
}

// ListEvents lists stored events.
func (m *MockStorage) ListEvents(ctx context.Context, f storage.EventFilter) ([]chain.Event, error) {
	if m.ListEventsFunc != nil {
		return m.ListEventsFunc(ctx, f)
	}
	return []chain.Event{}, nil
}

// Ping checks connectivity.
func (m *MockStorage) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Close releases the store.
func (m *MockStorage) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
