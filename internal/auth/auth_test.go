package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/storage"
	"github.com/genomechain/genome-ledger/internal/testutil/mockstore"
)

func TestHashToken(t *testing.T) {
	t.Parallel()
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashToken("abc"); got != want {
		t.Errorf("HashToken(abc) = %s, want %s", got, want)
	}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st, err := storage.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	bs, err := NewBootstrapService(st, "master", owner)
	if err != nil {
		t.Fatal(err)
	}
	a := NewAuthenticator(st, bs)

	// Unconfigured: the master key acts as the owner.
	p, err := a.Authenticate(ctx, "master")
	if err != nil {
		t.Fatalf("master key rejected while unconfigured: %v", err)
	}
	if !p.IsMaster || !p.IsAdmin || p.Address != owner || p.TokenID != 0 {
		t.Errorf("unexpected master principal: %+v", p)
	}

	alice := chain.AddressFromName("alice")
	if _, err := st.CreateToken(ctx, "alice", false, alice, HashToken("alice-key")); err != nil {
		t.Fatal(err)
	}
	p, err = a.Authenticate(ctx, "alice-key")
	if err != nil {
		t.Fatal(err)
	}
	if p.IsAdmin || p.IsMaster || p.Address != alice || p.Name != "alice" {
		t.Errorf("unexpected user principal: %+v", p)
	}

	if _, err := st.CreateToken(ctx, "ops", true, owner, HashToken("ops-key")); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Authenticate(ctx, "master"); !errors.Is(err, ErrMasterKeyLocked) {
		t.Errorf("master key after first admin: got %v, want ErrMasterKeyLocked", err)
	}
	p, err = a.Authenticate(ctx, "ops-key")
	if err != nil || !p.IsAdmin {
		t.Errorf("admin token: %+v, %v", p, err)
	}

	if _, err := a.Authenticate(ctx, ""); !errors.Is(err, ErrMissingKey) {
		t.Errorf("empty key: got %v, want ErrMissingKey", err)
	}
	if _, err := a.Authenticate(ctx, "nope"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("unknown key: got %v, want ErrInvalidKey", err)
	}
}

func TestAuthenticateWithoutBootstrap(t *testing.T) {
	t.Parallel()
	a := NewAuthenticator(&mockstore.MockStorage{}, nil)
	if _, err := a.Authenticate(context.Background(), "master"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("got %v, want ErrInvalidKey", err)
	}
}

func TestAuthenticateStoreError(t *testing.T) {
	t.Parallel()
	dbErr := errors.New("db down")
	store := &mockstore.MockStorage{
		GetTokenByHashFunc: func(context.Context, string) (*storage.Token, error) { return nil, dbErr },
	}
	a := NewAuthenticator(store, nil)
	_, err := a.Authenticate(context.Background(), "key")
	if !errors.Is(err, dbErr) {
		t.Errorf("got %v, want wrapped store error", err)
	}
	if errors.Is(err, ErrInvalidKey) {
		t.Error("a store failure must not look like a bad key")
	}
}

func TestPrincipalContext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if PrincipalFromContext(ctx) != nil || IsAdminFromContext(ctx) {
		t.Error("empty context should carry no principal")
	}
	ctx = WithPrincipal(ctx, &Principal{Name: "ops", IsAdmin: true})
	if p := PrincipalFromContext(ctx); p == nil || p.Name != "ops" {
		t.Errorf("PrincipalFromContext = %+v", p)
	}
	if !IsAdminFromContext(ctx) {
		t.Error("expected admin")
	}
}
