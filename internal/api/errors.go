package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/genomechain/genome-ledger/internal/chain"
)

// Error codes for responses that do not come from the ledger.
const (
	ErrCodeInvalidRequest        = "invalid_request"
	ErrCodeInvalidCredentials    = "invalid_credentials"
	ErrCodeAdminRequired         = "admin_required"
	ErrCodeMasterKeyLocked       = "master_key_locked"
	ErrCodeNotFound              = "not_found"
	ErrCodeCannotDeleteLastAdmin = "cannot_delete_last_admin"
	ErrCodeNoAdminTokenExists    = "no_admin_token_exists"
	ErrCodeClockNotManual        = "clock_not_manual"
	ErrCodeInternalError         = "internal_error"
)

// APIError is the standard error response format. Reverted transactions also
// carry the contract's failure reason, e.g. "ListingInactive".
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Error: code, Message: message})
}

// WriteErrorWithHint writes a JSON error response with a hint for resolving it.
func WriteErrorWithHint(w http.ResponseWriter, status int, code, message, hint string) {
	writeJSON(w, status, APIError{Error: code, Message: message, Hint: hint})
}

// statusFor maps a ledger error category to an HTTP status.
func statusFor(code chain.Code) int {
	switch code {
	case chain.CodeInvalidInput:
		return http.StatusBadRequest
	case chain.CodeUnauthorized:
		return http.StatusForbidden
	case chain.CodeNotFound:
		return http.StatusNotFound
	case chain.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case chain.CodeInvalidState, chain.CodeAlreadyDone, chain.CodeSupplyCapExceeded:
		return http.StatusConflict
	case chain.CodePaused:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// writeLedgerError reports a rejected read or transaction. Errors outside
// the ledger taxonomy are logged and hidden behind a 500.
func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var le *chain.Error
	if !errors.As(err, &le) {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	writeJSON(w, statusFor(le.Code), APIError{
		Error:   strings.ToLower(string(le.Code)),
		Message: err.Error(),
		Reason:  le.Reason,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // headers are already sent
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body, rejecting unknown fields. It writes the
// error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, ErrCodeInvalidRequest, "Request body too large")
			return false
		}
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}
