package api

import (
	"context"
	"net/http"
	"time"
)

// readyTimeout bounds the storage ping behind /ready.
const readyTimeout = 5 * time.Second

// Contract states reported by /ready.
const (
	contractActive = "active"
	contractPaused = "paused"
)

// LedgerStatus summarizes the in-memory ledger for readiness probes.
type LedgerStatus struct {
	Seq       uint64            `json:"seq"`
	Time      time.Time         `json:"time"`
	Contracts map[string]string `json:"contracts"`
}

// ReadyResponse is the body of GET /ready.
type ReadyResponse struct {
	Status   string        `json:"status"`
	Database string        `json:"database"`
	Ledger   *LedgerStatus `json:"ledger,omitempty"`
}

// HandleHealth reports that the process is alive.
// GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady reports whether the event log is reachable and the ledger is
// deployed. A paused contract is still ready; its state is reported so
// operators can see it.
// GET /ready
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ok", Database: h.pingStorage(r.Context())}
	if resp.Database != "connected" {
		resp.Status = "error"
	}
	if h.world == nil {
		resp.Status = "error"
	} else {
		resp.Ledger = h.ledgerStatus()
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (h *Handler) pingStorage(ctx context.Context) string {
	if h.storage == nil {
		return "not configured"
	}
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := h.storage.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		return "unavailable"
	}
	return "connected"
}

func (h *Handler) ledgerStatus() *LedgerStatus {
	st := &LedgerStatus{Contracts: make(map[string]string, 4)}
	state := func(paused bool) string {
		if paused {
			return contractPaused
		}
		return contractActive
	}
	st.Seq = h.world.Engine.Seq()
	h.world.Engine.View(func(now time.Time) {
		st.Time = now
		st.Contracts["token"] = state(h.world.Token.Paused())
		st.Contracts["nft"] = state(h.world.NFT.Paused())
		st.Contracts["market"] = state(h.world.Market.Paused())
		st.Contracts["dao"] = state(h.world.DAO.Paused())
	})
	return st
}
