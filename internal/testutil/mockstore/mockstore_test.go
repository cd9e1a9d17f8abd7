package mockstore

import (
	"context"
	"errors"
	"testing"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/storage"
)

func TestMockStorageDefaults(t *testing.T) {
	t.Parallel()
	mock := &MockStorage{}
	ctx := context.Background()
	addr := chain.AddressFromName("alice")

	token, err := mock.CreateToken(ctx, "test", true, addr, "hash123")
	if err != nil || token == nil {
		t.Fatalf("CreateToken default = %v, %v", token, err)
	}
	if token.Name != "test" || token.Address != addr || !token.IsAdmin {
		t.Errorf("CreateToken default token = %+v", token)
	}

	if _, err := mock.GetTokenByHash(ctx, "hash"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTokenByHash default = %v, want ErrNotFound", err)
	}
	if _, err := mock.GetTokenByID(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTokenByID default = %v, want ErrNotFound", err)
	}
	if tokens, err := mock.ListTokens(ctx); err != nil || len(tokens) != 0 {
		t.Errorf("ListTokens default = %v, %v", tokens, err)
	}
	if has, err := mock.HasAnyAdminToken(ctx); err != nil || has {
		t.Errorf("HasAnyAdminToken default = %v, %v", has, err)
	}
	if events, err := mock.ListEvents(ctx, storage.EventFilter{}); err != nil || len(events) != 0 {
		t.Errorf("ListEvents default = %v, %v", events, err)
	}
	if err := mock.Ping(ctx); err != nil {
		t.Errorf("Ping default = %v", err)
	}
	if err := mock.Close(); err != nil {
		t.Errorf("Close default = %v", err)
	}
}

func TestMockStorageOverrides(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pingErr := errors.New("db down")

	var appended []chain.Event
	mock := &MockStorage{
		PingFunc:             func(context.Context) error { return pingErr },
		CountAdminTokensFunc: func(context.Context) (int, error) { return 3, nil },
		AppendEventsFunc: func(_ context.Context, events []chain.Event) error {
			appended = append(appended, events...)
			return nil
		},
	}

	if err := mock.Ping(ctx); !errors.Is(err, pingErr) {
		t.Errorf("Ping = %v, want %v", err, pingErr)
	}
	if n, _ := mock.CountAdminTokens(ctx); n != 3 {
		t.Errorf("CountAdminTokens = %d, want 3", n)
	}
	if err := mock.AppendEvents(ctx, []chain.Event{{Name: "Transfer"}}); err != nil {
		t.Fatal(err)
	}
	if len(appended) != 1 || appended[0].Name != "Transfer" {
		t.Errorf("appended = %v", appended)
	}
}
