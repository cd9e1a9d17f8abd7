package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"github.com/genomechain/genome-ledger/internal/auth"
	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/sim"
)

// CallRequest is the body of a contract call. Value is native currency
// attached to the call, in wei or with an "e18" suffix for whole units.
type CallRequest struct {
	Value string            `json:"value"`
	Args  map[string]string `json:"args"`
}

// CallResponse is a committed transaction.
type CallResponse struct {
	TxID   string            `json:"tx_id"`
	Seq    uint64            `json:"seq"`
	Time   time.Time         `json:"time"`
	Output map[string]string `json:"output"`
	Events []chain.Event     `json:"events"`
}

// OperationView describes a callable operation.
type OperationView struct {
	Name    string `json:"name"`
	Admin   bool   `json:"admin"`
	Payable bool   `json:"payable"`
}

// HandleOperations lists every callable operation.
// GET /api/operations
func (h *Handler) HandleOperations(w http.ResponseWriter, r *http.Request) {
	names := sim.Operations()
	out := make([]OperationView, 0, len(names))
	for _, name := range names {
		op, _ := sim.LookupOperation(name)
		out = append(out, OperationView{Name: op.Name, Admin: op.Admin, Payable: op.Payable})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCall submits one transaction as the caller's address. Arguments
// naming accounts accept contract names ("token", "nft", "market", "dao")
// or hex addresses.
// POST /api/calls/{method}
func (h *Handler) HandleCall(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Not authenticated")
		return
	}

	method := chi.URLParam(r, "method")
	op, ok := sim.LookupOperation(method)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Unknown operation: "+method)
		return
	}
	if op.Admin && !p.IsAdmin {
		writeAdminRequired(w)
		return
	}

	var req CallRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var value *uint256.Int
	if req.Value != "" {
		v, err := sim.ParseAmount(req.Value)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid value: "+err.Error())
			return
		}
		value = v
	}

	res, err := h.world.Call(r.Context(), p.Address, method, value, sim.NewArgs(req.Args, h.world.Contracts()))
	if err != nil {
		h.logger.Info("call reverted",
			"method", method,
			"from", p.Address.Hex(),
			"reason", chain.ReasonOf(err))
		h.writeLedgerError(w, r, err)
		return
	}

	resp := CallResponse{
		TxID:   res.Receipt.TxID,
		Seq:    res.Receipt.Seq,
		Time:   res.Receipt.Time,
		Output: res.Output,
		Events: res.Receipt.Events,
	}
	if resp.Output == nil {
		resp.Output = map[string]string{}
	}
	if resp.Events == nil {
		resp.Events = []chain.Event{}
	}
	writeJSON(w, http.StatusOK, resp)
}
