package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/genomechain/genome-ledger/internal/auth"
	"github.com/genomechain/genome-ledger/internal/testutil/mockstore"
)

func TestHandleHealth(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	w := f.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	tests := []struct {
		name     string
		store    Storage
		wantCode int
		wantDB   string
	}{
		{"connected", &mockstore.MockStorage{}, http.StatusOK, "connected"},
		{
			"ping fails",
			&mockstore.MockStorage{PingFunc: func(context.Context) error { return errors.New("disk gone") }},
			http.StatusServiceUnavailable,
			"unavailable",
		},
		{"no storage", nil, http.StatusServiceUnavailable, "not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewHandler(f.world, tt.store, auth.NewAuthenticator(&mockstore.MockStorage{}, nil),
				WithLogger(quietLogger(), nil))

			w := httptest.NewRecorder()
			h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var body ReadyResponse
			decode(t, w, &body)
			if body.Database != tt.wantDB {
				t.Errorf("database = %q, want %q", body.Database, tt.wantDB)
			}
			if body.Ledger == nil || len(body.Ledger.Contracts) != 4 {
				t.Errorf("ledger = %+v, want all four contracts", body.Ledger)
			}
		})
	}
}

func TestHandleReady_ReportsLedger(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.call(ownerKey, "market.pause", nil, "")

	w := f.do(http.MethodGet, "/ready", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 while a contract is paused", w.Code)
	}
	var body ReadyResponse
	decode(t, w, &body)
	if body.Ledger == nil {
		t.Fatal("ledger status missing")
	}
	if body.Ledger.Seq != f.world.Engine.Seq() {
		t.Errorf("seq = %d, want %d", body.Ledger.Seq, f.world.Engine.Seq())
	}
	if !body.Ledger.Time.Equal(f.clock.Now()) {
		t.Errorf("time = %v, want %v", body.Ledger.Time, f.clock.Now())
	}
	want := map[string]string{"token": "active", "nft": "active", "market": "paused", "dao": "active"}
	for name, state := range want {
		if body.Ledger.Contracts[name] != state {
			t.Errorf("%s = %q, want %q", name, body.Ledger.Contracts[name], state)
		}
	}
}

func TestHandleReady_NoLedger(t *testing.T) {
	t.Parallel()
	h := NewHandler(nil, &mockstore.MockStorage{}, auth.NewAuthenticator(&mockstore.MockStorage{}, nil),
		WithLogger(quietLogger(), nil))

	w := httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	var body ReadyResponse
	decode(t, w, &body)
	if body.Status != "error" || body.Ledger != nil {
		t.Errorf("body = %+v, want error without ledger", body)
	}
}
