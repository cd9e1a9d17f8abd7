package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/genomechain/genome-ledger/internal/chain"
)

var (
	alice = chain.AddressFromName("alice")
	bob   = chain.AddressFromName("bob")
)

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateToken(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	token, err := s.CreateToken(ctx, "ops", true, alice, hashToken("secret"))
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if token.ID <= 0 {
		t.Errorf("expected positive ID, got %d", token.ID)
	}
	if !token.IsAdmin || token.Name != "ops" || token.Address != alice {
		t.Errorf("unexpected token: %+v", token)
	}
	if token.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	got, err := s.GetTokenByHash(ctx, hashToken("secret"))
	if err != nil {
		t.Fatalf("GetTokenByHash failed: %v", err)
	}
	if got.ID != token.ID || got.Address != alice {
		t.Errorf("lookup returned %+v, want id %d bound to %s", got, token.ID, alice)
	}
}

func TestCreateTokenDuplicate(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.CreateToken(ctx, "one", false, alice, hashToken("same")); err != nil {
		t.Fatalf("first CreateToken failed: %v", err)
	}
	_, err := s.CreateToken(ctx, "two", false, bob, hashToken("same"))
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestTokenNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.GetTokenByHash(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTokenByHash: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetTokenByID(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTokenByID: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteToken(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteToken: expected ErrNotFound, got %v", err)
	}
}

func TestAdminTokenCounting(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	has, err := s.HasAnyAdminToken(ctx)
	if err != nil || has {
		t.Fatalf("fresh store: HasAnyAdminToken = %v, %v", has, err)
	}

	if _, err := s.CreateToken(ctx, "user", false, bob, hashToken("u")); err != nil {
		t.Fatal(err)
	}
	admin, err := s.CreateToken(ctx, "admin", true, alice, hashToken("a"))
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.CountAdminTokens(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountAdminTokens = %d, %v; want 1", n, err)
	}

	tokens, err := s.ListTokens(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 2 || tokens[0].Name != "user" {
		t.Errorf("ListTokens returned %d tokens, first %q", len(tokens), tokens[0].Name)
	}

	if err := s.DeleteToken(ctx, admin.ID); err != nil {
		t.Fatal(err)
	}
	if has, _ := s.HasAnyAdminToken(ctx); has {
		t.Error("expected no admin tokens after delete")
	}
}

func testEvents(seq uint64, contract chain.Address, names ...string) []chain.Event {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	events := make([]chain.Event, len(names))
	for i, n := range names {
		events[i] = chain.Event{
			TxID:     "tx-" + n,
			Seq:      seq,
			Index:    i,
			Time:     at,
			Contract: contract,
			Name:     n,
			Fields:   chain.Fields{"amount": "100", "to": alice.Hex()},
		}
	}
	return events
}

func TestEventLog(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()
	market := chain.AddressFromName("market")
	tokenAddr := chain.AddressFromName("token")

	if err := s.Publish(ctx, testEvents(1, tokenAddr, "Transfer", "TokensMinted")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := s.AppendEvents(ctx, testEvents(2, market, "DataSold", "AccessGranted")); err != nil {
		t.Fatalf("AppendEvents failed: %v", err)
	}

	all, err := s.ListEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 events, got %d", len(all))
	}
	first := all[0]
	if first.Seq != 1 || first.Index != 0 || first.Name != "Transfer" || first.Contract != tokenAddr {
		t.Errorf("unexpected first event: %+v", first)
	}
	if first.Fields["to"] != alice.Hex() || !first.Time.Equal(time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)) {
		t.Errorf("fields or time not preserved: %+v", first)
	}

	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"by contract", EventFilter{Contract: market}, []string{"DataSold", "AccessGranted"}},
		{"by name", EventFilter{Name: "TokensMinted"}, []string{"TokensMinted"}},
		{"after seq", EventFilter{AfterSeq: 1}, []string{"DataSold", "AccessGranted"}},
		{"limit", EventFilter{Limit: 1}, []string{"Transfer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListEvents(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, e := range got {
				if e.Name != tt.want[i] {
					t.Errorf("event %d = %s, want %s", i, e.Name, tt.want[i])
				}
			}
		})
	}
}

func TestAppendEventsIsAtomic(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()
	addr := chain.AddressFromName("token")

	if err := s.AppendEvents(ctx, testEvents(1, addr, "Transfer")); err != nil {
		t.Fatal(err)
	}
	// The second event of this batch collides with the stored one.
	batch := append(testEvents(2, addr, "Approval"), testEvents(1, addr, "Transfer")...)
	if err := s.AppendEvents(ctx, batch); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	got, err := s.ListEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("failed batch left %d events, want 1", len(got))
	}
}

func TestEngineWritesThroughStore(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	engine := chain.NewEngine(chain.WithSink(s))
	_, err := engine.Execute(ctx, chain.Call{From: alice, Method: "faucet"}, func(tx *chain.Tx) error {
		tx.Emit(alice, "Faucet", chain.Fields{"amount": "1"})
		return engine.Bank().Credit(tx, alice, chain.Units(1))
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.ListEvents(ctx, EventFilter{Name: "Faucet"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Seq != 1 || got[0].TxID == "" {
		t.Errorf("unexpected stored events: %+v", got)
	}
}

func TestPingAndReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if _, err := s.CreateToken(ctx, "keep", true, alice, hashToken("k")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = s.Close() }()
	if _, err := s.GetTokenByHash(ctx, hashToken("k")); err != nil {
		t.Errorf("token lost across reopen: %v", err)
	}
}
