// Package storage persists API tokens and the committed event log in SQLite.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/genomechain/genome-ledger/internal/chain"
)

var (
	// ErrDuplicate is returned when attempting to create a resource that already exists.
	ErrDuplicate = errors.New("resource already exists")

	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("resource not found")
)

// Token is an API token. Only its SHA-256 hash is stored. Every token acts
// as one ledger address; admin tokens may also manage tokens and the node.
type Token struct {
	ID        int64
	KeyHash   string
	Name      string
	IsAdmin   bool
	Address   chain.Address
	CreatedAt time.Time
}

// EventFilter selects events from the log. Zero fields match everything.
type EventFilter struct {
	Contract chain.Address
	Name     string
	// AfterSeq returns only events of transactions after this sequence number.
	AfterSeq uint64
	// Limit caps the number of events returned. Zero means DefaultEventLimit.
	Limit int
}

// DefaultEventLimit is the page size when EventFilter.Limit is zero.
const DefaultEventLimit = 100

// TokenStore manages API tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, name string, isAdmin bool, address chain.Address, keyHash string) (*Token, error)
	GetTokenByHash(ctx context.Context, keyHash string) (*Token, error)
	GetTokenByID(ctx context.Context, id int64) (*Token, error)
	ListTokens(ctx context.Context) ([]*Token, error)
	DeleteToken(ctx context.Context, id int64) error
	HasAnyAdminToken(ctx context.Context) (bool, error)
	CountAdminTokens(ctx context.Context) (int, error)
}

// EventStore keeps the committed event log.
type EventStore interface {
	AppendEvents(ctx context.Context, events []chain.Event) error
	ListEvents(ctx context.Context, f EventFilter) ([]chain.Event, error)
}

// Storage is everything the service persists.
type Storage interface {
	TokenStore
	EventStore
	Ping(ctx context.Context) error
	Close() error
}
