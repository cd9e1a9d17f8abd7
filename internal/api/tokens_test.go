package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/genomechain/genome-ledger/internal/auth"
	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/storage"
	"github.com/genomechain/genome-ledger/internal/testutil/mockstore"
)

func TestTokenLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	w := f.do(http.MethodPost, "/api/tokens", ownerKey, CreateTokenRequest{Name: "carol"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	var created CreateTokenResponse
	decode(t, w, &created)
	if len(created.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(created.Token))
	}
	if created.Address != chain.AddressFromName("carol") {
		t.Errorf("address = %s, want address derived from name", created.Address)
	}

	stored, err := f.store.GetTokenByHash(context.Background(), auth.HashToken(created.Token))
	if err != nil {
		t.Fatalf("token not stored by hash: %v", err)
	}
	if stored.KeyHash == created.Token {
		t.Error("plaintext token stored")
	}

	path := "/api/tokens/" + strconv.FormatInt(created.ID, 10)
	w = f.do(http.MethodGet, path, ownerKey, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), created.Token) {
		t.Error("get response leaks the token")
	}

	w = f.do(http.MethodGet, "/api/tokens", ownerKey, nil)
	var list []TokenResponse
	decode(t, w, &list)
	if len(list) != 3 {
		t.Errorf("listed %d tokens, want 3", len(list))
	}

	if w := f.do(http.MethodDelete, path, ownerKey, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want 204", w.Code)
	}
	if w := f.do(http.MethodGet, path, ownerKey, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/whoami", created.Token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("deleted token still authenticates: status = %d", w.Code)
	}
}

func TestCreateToken_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"empty name", CreateTokenRequest{Name: "  "}, http.StatusBadRequest},
		{"unknown field", map[string]any{"name": "x", "scope": "all"}, http.StatusBadRequest},
		{"bad address", map[string]any{"name": "x", "address": "0x1234"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/tokens", ownerKey, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestDeleteToken_LastAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	owners, err := f.store.ListTokens(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var adminID int64
	for _, tok := range owners {
		if tok.IsAdmin {
			adminID = tok.ID
		}
	}

	w := f.do(http.MethodDelete, "/api/tokens/"+strconv.FormatInt(adminID, 10), ownerKey, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if got := decodeError(t, w).Error; got != ErrCodeCannotDeleteLastAdmin {
		t.Errorf("error = %q, want %q", got, ErrCodeCannotDeleteLastAdmin)
	}
}

func TestTokenIDParam(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/api/tokens/abc", http.StatusBadRequest},
		{"/api/tokens/0", http.StatusBadRequest},
		{"/api/tokens/999", http.StatusNotFound},
	}
	for _, tt := range tests {
		if w := f.do(http.MethodDelete, tt.path, ownerKey, nil); w.Code != tt.wantCode {
			t.Errorf("DELETE %s: status = %d, want %d", tt.path, w.Code, tt.wantCode)
		}
	}
}

func TestTokenHandlers_StoreErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	boom := errors.New("boom")
	admin := &storage.Token{ID: 1, Name: "admin", IsAdmin: true, Address: owner}
	store := &mockstore.MockStorage{
		GetTokenByHashFunc:   func(context.Context, string) (*storage.Token, error) { return admin, nil },
		ListTokensFunc:       func(context.Context) ([]*storage.Token, error) { return nil, boom },
		HasAnyAdminTokenFunc: func(context.Context) (bool, error) { return false, boom },
		GetTokenByIDFunc:     func(context.Context, int64) (*storage.Token, error) { return admin, nil },
		CountAdminTokensFunc: func(context.Context) (int, error) { return 0, boom },
	}
	h := NewHandler(f.world, store, auth.NewAuthenticator(store, nil), WithLogger(quietLogger(), nil))
	f.router = h.NewRouter()

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/tokens", nil},
		{http.MethodPost, "/api/tokens", CreateTokenRequest{Name: "x", IsAdmin: true}},
		{http.MethodDelete, "/api/tokens/1", nil},
	}
	for _, tt := range tests {
		w := f.do(tt.method, tt.path, "key", tt.body)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s %s: status = %d, want 500", tt.method, tt.path, w.Code)
		}
		if got := decodeError(t, w).Error; got != ErrCodeInternalError {
			t.Errorf("%s %s: error = %q", tt.method, tt.path, got)
		}
	}
}
