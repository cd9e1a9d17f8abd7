package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	addr := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/api/listings/12", "/api/listings/:id"},
		{"/api/proposals/3/votes", "/api/proposals/:id/votes"},
		{"/api/accounts/" + addr, "/api/accounts/:address"},
		{"/api/accounts/" + addr + "/access/7", "/api/accounts/:address/access/:id"},
		{"/api/nfts/1/2", "/api/nfts/:id/:id"},
		{"/api/calls/market.list", "/api/calls/market.list"},
		{"/api/v2abc", "/api/v2abc"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		path    string
		status  int
		label   string
	}{
		{
			name:    "implicit ok",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) },
			path:    "/api/listings/1",
			status:  http.StatusOK,
			label:   "OK",
		},
		{
			name:    "conflict",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusConflict) },
			path:    "/api/listings/2",
			status:  http.StatusConflict,
			label:   "Conflict",
		},
		{
			name:    "panic",
			handler: func(w http.ResponseWriter, r *http.Request) { panic("boom") },
			path:    "/api/listings/3",
			status:  http.StatusInternalServerError,
			label:   "Internal Server Error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := requestsTotal.Load().WithLabelValues("GET", "/api/listings/:id", tt.label)
			before := testutil.ToFloat64(counter)

			w := httptest.NewRecorder()
			Middleware(tt.handler).ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("counter grew by %v, want 1", got)
			}
		})
	}
}

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusBadRequest)

	if rec.statusCode != http.StatusCreated || w.Code != http.StatusCreated {
		t.Errorf("got recorder %d, response %d; want 201", rec.statusCode, w.Code)
	}
}
