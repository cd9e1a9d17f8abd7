package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/genomechain/genome-ledger/internal/chain"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code chain.Code
		want int
	}{
		{chain.CodeInvalidInput, http.StatusBadRequest},
		{chain.CodeUnauthorized, http.StatusForbidden},
		{chain.CodeNotFound, http.StatusNotFound},
		{chain.CodeInsufficientFunds, http.StatusPaymentRequired},
		{chain.CodeInvalidState, http.StatusConflict},
		{chain.CodeAlreadyDone, http.StatusConflict},
		{chain.CodeSupplyCapExceeded, http.StatusConflict},
		{chain.CodePaused, http.StatusLocked},
		{chain.CodeUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.code); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestWriteLedgerError(t *testing.T) {
	t.Parallel()
	h := &Handler{logger: quietLogger()}
	req := httptest.NewRequest(http.MethodPost, "/api/calls/x", nil)

	w := httptest.NewRecorder()
	h.writeLedgerError(w, req, fmt.Errorf("reward: %w", chain.ErrPaused))
	if w.Code != http.StatusLocked {
		t.Errorf("status = %d, want 423", w.Code)
	}
	e := decodeError(t, w)
	if e.Error != "paused" || e.Reason != "Paused" {
		t.Errorf("error = %+v", e)
	}

	w = httptest.NewRecorder()
	h.writeLedgerError(w, req, errors.New("disk on fire"))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if e := decodeError(t, w); e.Message == "disk on fire" {
		t.Error("internal error message leaked")
	}
}

func TestWriteErrorWithHint(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	WriteErrorWithHint(w, http.StatusForbidden, ErrCodeAdminRequired, "nope", "ask an admin")

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	e := decodeError(t, w)
	if e.Error != ErrCodeAdminRequired || e.Hint != "ask an admin" {
		t.Errorf("error = %+v", e)
	}
}
