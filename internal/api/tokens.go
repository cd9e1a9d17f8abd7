package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/genomechain/genome-ledger/internal/auth"
	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/storage"
)

// TokenResponse describes a token without its secret.
type TokenResponse struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	IsAdmin   bool          `json:"is_admin"`
	Address   chain.Address `json:"address"`
	CreatedAt time.Time     `json:"created_at"`
}

// CreateTokenRequest creates a token. Address defaults to the address
// derived from Name.
type CreateTokenRequest struct {
	Name    string        `json:"name"`
	IsAdmin bool          `json:"is_admin"`
	Address chain.Address `json:"address"`
}

// CreateTokenResponse carries the plaintext token. It is only ever
// returned here.
type CreateTokenResponse struct {
	TokenResponse
	Token string `json:"token"`
}

func tokenResponse(t *storage.Token) TokenResponse {
	return TokenResponse{
		ID:        t.ID,
		Name:      t.Name,
		IsAdmin:   t.IsAdmin,
		Address:   t.Address,
		CreatedAt: t.CreatedAt,
	}
}

// generateRandomToken returns 32 random bytes as a hex string.
func generateRandomToken() (string, error) {
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return hex.EncodeToString(token), nil
}

// HandleWhoami describes the calling principal.
// GET /api/whoami
func (h *Handler) HandleWhoami(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token_id":  p.TokenID,
		"name":      p.Name,
		"address":   p.Address,
		"is_admin":  p.IsAdmin,
		"is_master": p.IsMaster,
	})
}

// HandleListTokens lists all tokens.
// GET /api/tokens
func (h *Handler) HandleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.storage.ListTokens(r.Context())
	if err != nil {
		h.logger.Error("failed to list tokens", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	out := make([]TokenResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, tokenResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreateToken creates a token. While no admin token exists the only
// token that can be created is an admin one.
// POST /api/tokens
func (h *Handler) HandleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Name is required")
		return
	}

	ctx := r.Context()
	hasAdmin, err := h.storage.HasAnyAdminToken(ctx)
	if err != nil {
		h.logger.Error("failed to check admin tokens", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}
	if !hasAdmin && !req.IsAdmin {
		WriteErrorWithHint(w, http.StatusUnprocessableEntity, ErrCodeNoAdminTokenExists,
			"The first token must be an admin token",
			"Create an admin token with is_admin: true before creating other tokens")
		return
	}

	if req.Address.IsZero() {
		req.Address = chain.AddressFromName(req.Name)
	}

	plaintext, err := generateRandomToken()
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}

	token, err := h.storage.CreateToken(ctx, req.Name, req.IsAdmin, req.Address, auth.HashToken(plaintext))
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			WriteError(w, http.StatusConflict, ErrCodeInvalidRequest, "Token already exists")
			return
		}
		h.logger.Error("failed to create token", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
		return
	}

	h.logger.Info("token created",
		"token_id", token.ID,
		"name", token.Name,
		"is_admin", token.IsAdmin,
		"address", token.Address.Hex())
	writeJSON(w, http.StatusCreated, CreateTokenResponse{
		TokenResponse: tokenResponse(token),
		Token:         plaintext,
	})
}

// HandleGetToken returns one token.
// GET /api/tokens/{id}
func (h *Handler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDParam(w, r)
	if !ok {
		return
	}
	token, err := h.storage.GetTokenByID(r.Context(), id)
	if err != nil {
		h.writeTokenLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(token))
}

// HandleDeleteToken deletes a token. The last admin token cannot be deleted.
// DELETE /api/tokens/{id}
func (h *Handler) HandleDeleteToken(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	token, err := h.storage.GetTokenByID(ctx, id)
	if err != nil {
		h.writeTokenLookupError(w, err)
		return
	}
	if token.IsAdmin {
		count, err := h.storage.CountAdminTokens(ctx)
		if err != nil {
			h.logger.Error("failed to count admin tokens", "error", err)
			WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
			return
		}
		if count <= 1 {
			WriteErrorWithHint(w, http.StatusConflict, ErrCodeCannotDeleteLastAdmin,
				"Cannot delete the last admin token",
				"Create another admin token before deleting this one")
			return
		}
	}

	if err := h.storage.DeleteToken(ctx, id); err != nil {
		h.writeTokenLookupError(w, err)
		return
	}
	h.logger.Info("token deleted", "token_id", id, "name", token.Name)
	w.WriteHeader(http.StatusNoContent)
}

func tokenIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid token ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeTokenLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Token not found")
		return
	}
	h.logger.Error("token lookup failed", "error", err)
	WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
}
