package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/genomechain/genome-ledger/internal/auth"
	"github.com/genomechain/genome-ledger/internal/metrics"
)

// AccessKeyHeader carries the API key.
const AccessKeyHeader = "AccessKey"

// TokenAuthMiddleware authenticates the AccessKey header and stores the
// resulting principal in the request context.
func (h *Handler) TokenAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(AccessKeyHeader))

		p, err := h.auth.Authenticate(r.Context(), key)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrMissingKey):
			metrics.RecordAuthFailure("missing_key")
			WriteErrorWithHint(w, http.StatusUnauthorized, ErrCodeInvalidCredentials,
				"Missing API key", "Send your token in the AccessKey header")
			return
		case errors.Is(err, auth.ErrInvalidKey):
			metrics.RecordAuthFailure("invalid_key")
			h.logger.Warn("invalid API key attempt", "remote_addr", r.RemoteAddr)
			WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid API key")
			return
		case errors.Is(err, auth.ErrMasterKeyLocked):
			metrics.RecordAuthFailure("master_key_locked")
			WriteError(w, http.StatusForbidden, ErrCodeMasterKeyLocked,
				"Master API key is locked. Use an admin token instead.")
			return
		default:
			h.logger.Error("failed to authenticate", "error", err)
			WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
			return
		}

		h.logger.Debug("API request authenticated",
			"token_name", p.Name,
			"address", p.Address.Hex(),
			"is_admin", p.IsAdmin,
			"is_master", p.IsMaster)
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// RequireAdmin rejects non-admin principals. It must run after
// TokenAuthMiddleware.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdminFromContext(r.Context()) {
			metrics.RecordAuthFailure("admin_required")
			writeAdminRequired(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAdminRequired(w http.ResponseWriter) {
	WriteErrorWithHint(w, http.StatusForbidden, ErrCodeAdminRequired,
		"This endpoint requires an admin token",
		"Use an admin token (is_admin: true) to access admin-only endpoints")
}
