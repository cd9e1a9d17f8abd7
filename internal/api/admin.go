package api

import (
	"net/http"
	"time"

	"github.com/genomechain/genome-ledger/internal/logging"
	"github.com/genomechain/genome-ledger/internal/sim"
)

// SetLogLevelRequest changes the log level.
type SetLogLevelRequest struct {
	Level string `json:"level"`
}

// HandleSetLogLevel changes the log level at runtime.
// POST /api/loglevel
func (h *Handler) HandleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req SetLogLevelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	level, err := logging.ParseLevel(req.Level)
	if err != nil || req.Level == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			"Invalid level (must be: debug, info, warn, error)")
		return
	}

	h.logLevel.Set(level)
	h.logger.Info("log level changed", "new_level", req.Level)
	writeJSON(w, http.StatusOK, map[string]string{"level": req.Level})
}

// ClockRequest moves the manual clock. Exactly one of Advance and Set is
// given; Advance is Go duration syntax or whole seconds. The clock never
// moves backwards.
type ClockRequest struct {
	Advance string    `json:"advance,omitempty"`
	Set     time.Time `json:"set,omitempty"`
}

// HandleGetClock returns the ledger time.
// GET /api/admin/clock
func (h *Handler) HandleGetClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"now":    h.world.Now(),
		"manual": h.clock != nil,
	})
}

// HandleSetClock advances or sets the manual clock.
// POST /api/admin/clock
func (h *Handler) HandleSetClock(w http.ResponseWriter, r *http.Request) {
	if h.clock == nil {
		WriteErrorWithHint(w, http.StatusConflict, ErrCodeClockNotManual,
			"The ledger runs on the system clock",
			"Start the server with MANUAL_CLOCK=true to control time")
		return
	}
	var req ClockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	switch {
	case req.Advance != "" && !req.Set.IsZero():
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Give either advance or set, not both")
		return
	case req.Advance != "":
		d, err := sim.ParseDuration(req.Advance)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid advance duration")
			return
		}
		h.clock.Advance(d)
	case !req.Set.IsZero():
		if req.Set.Before(h.clock.Now()) {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Clock cannot move backwards")
			return
		}
		h.clock.Set(req.Set)
	default:
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Give advance or set")
		return
	}

	now := h.clock.Now()
	h.logger.Info("clock moved", "now", now)
	writeJSON(w, http.StatusOK, map[string]any{"now": now, "manual": true})
}
