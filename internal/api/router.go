package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/genomechain/genome-ledger/internal/metrics"
	"github.com/genomechain/genome-ledger/internal/middleware"
)

// NewRouter creates the API router.
func (h *Handler) NewRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(metrics.Middleware)
	r.Use(middleware.HTTPLogging(h.logger))
	r.Use(middleware.MaxBodySize(middleware.DefaultMaxBodySize))
	r.Use(chimw.Recoverer)

	// Public endpoints (no auth)
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.TokenAuthMiddleware)

		r.Get("/whoami", h.HandleWhoami)
		r.Get("/operations", h.HandleOperations)
		r.Post("/calls/{method}", h.HandleCall)

		r.Get("/contracts", h.HandleContracts)
		r.Get("/accounts/{address}", h.HandleAccount)
		r.Get("/accounts/{address}/nfts", h.HandleAccountNFTs)
		r.Get("/accounts/{address}/access/{assetID}", h.HandleAccess)
		r.Get("/token", h.HandleToken)
		r.Get("/token/allowance", h.HandleAllowance)
		r.Get("/nfts/{id}", h.HandleNFT)
		r.Get("/listings", h.HandleListings)
		r.Get("/listings/{id}", h.HandleListing)
		r.Get("/market", h.HandleMarket)
		r.Get("/dao", h.HandleDAO)
		r.Get("/proposals", h.HandleProposals)
		r.Get("/proposals/{id}", h.HandleProposal)
		r.Get("/proposals/{id}/votes", h.HandleVotes)
		r.Get("/events", h.HandleEvents)
		r.Get("/admin/clock", h.HandleGetClock)

		// Admin only
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)

			r.Post("/loglevel", h.HandleSetLogLevel)
			r.Post("/admin/clock", h.HandleSetClock)

			r.Get("/tokens", h.HandleListTokens)
			r.Post("/tokens", h.HandleCreateToken)
			r.Get("/tokens/{id}", h.HandleGetToken)
			r.Delete("/tokens/{id}", h.HandleDeleteToken)
		})
	})

	return r
}
