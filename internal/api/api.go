// Package api exposes a running ledger over HTTP: authenticated contract
// calls, read views of every contract, the event log, and node
// administration.
package api

import (
	"context"
	"log/slog"

	"github.com/genomechain/genome-ledger/internal/auth"
	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/sim"
	"github.com/genomechain/genome-ledger/internal/storage"
)

// Storage is what the API needs from persistence.
type Storage interface {
	storage.TokenStore
	ListEvents(ctx context.Context, f storage.EventFilter) ([]chain.Event, error)
	Ping(ctx context.Context) error
}

// Handler serves the API.
type Handler struct {
	world    *sim.World
	storage  Storage
	auth     *auth.Authenticator
	clock    *chain.ManualClock
	logger   *slog.Logger
	logLevel *slog.LevelVar
}

// Option configures a Handler.
type Option func(*Handler)

// WithManualClock enables the clock administration endpoints. c must be the
// clock the world's engine runs on.
func WithManualClock(c *chain.ManualClock) Option {
	return func(h *Handler) { h.clock = c }
}

// WithLogger sets the logger and the level variable /api/loglevel adjusts.
func WithLogger(l *slog.Logger, level *slog.LevelVar) Option {
	return func(h *Handler) {
		h.logger = l
		h.logLevel = level
	}
}

// NewHandler returns a handler serving world. Tokens and events come from
// store; keys are checked by authn.
func NewHandler(world *sim.World, store Storage, authn *auth.Authenticator, opts ...Option) *Handler {
	h := &Handler{world: world, storage: store, auth: authn}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.logLevel == nil {
		h.logLevel = new(slog.LevelVar)
	}
	return h
}
