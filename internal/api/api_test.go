package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/genomechain/genome-ledger/internal/auth"
	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/sim"
	"github.com/genomechain/genome-ledger/internal/storage"
)

const (
	masterKey = "master-key-for-tests"
	ownerKey  = "owner-key"
	aliceKey  = "alice-key"
	cidReadme = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
)

var (
	owner = chain.AddressFromName("owner")
	alice = chain.AddressFromName("alice")
)

type fixture struct {
	t      *testing.T
	world  *sim.World
	store  *storage.SQLiteStorage
	clock  *chain.ManualClock
	router http.Handler
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture deploys a world on a manual clock whose events land in an
// in-memory store. With tokens set, an admin token for the owner and a
// regular token for alice exist.
func newFixture(t *testing.T, tokens bool, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clock := chain.NewManualClock(sim.DefaultStart)
	world, err := sim.New(ctx, sim.DefaultParams(owner),
		chain.WithClock(clock),
		chain.WithSink(store),
		chain.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}

	if tokens {
		if _, err := store.CreateToken(ctx, "owner", true, owner, auth.HashToken(ownerKey)); err != nil {
			t.Fatal(err)
		}
		if _, err := store.CreateToken(ctx, "alice", false, alice, auth.HashToken(aliceKey)); err != nil {
			t.Fatal(err)
		}
	}

	bootstrap, err := auth.NewBootstrapService(store, masterKey, owner)
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithLogger(quietLogger(), new(slog.LevelVar))}, opts...)
	h := NewHandler(world, store, auth.NewAuthenticator(store, bootstrap), opts...)

	return &fixture{t: t, world: world, store: store, clock: clock, router: h.NewRouter()}
}

func (f *fixture) do(method, path, key string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			f.t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if key != "" {
		req.Header.Set(AccessKeyHeader, key)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// call submits a contract call and fails the test unless it commits.
func (f *fixture) call(key, method string, args map[string]string, value string) CallResponse {
	f.t.Helper()
	w := f.do(http.MethodPost, "/api/calls/"+method, key, CallRequest{Value: value, Args: args})
	if w.Code != http.StatusOK {
		f.t.Fatalf("%s: status %d, body %s", method, w.Code, w.Body.String())
	}
	var resp CallResponse
	decode(f.t, w, &resp)
	return resp
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var e APIError
	decode(t, w, &e)
	return e
}
