package sim

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/dao"
	"github.com/genomechain/genome-ledger/internal/market"
)

var (
	owner = chain.AddressFromName("owner")
	alice = chain.AddressFromName("alice")
)

func newWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(context.Background(), DefaultParams(owner),
		chain.WithClock(chain.NewManualClock(DefaultStart)))
	require.NoError(t, err)
	return w
}

func TestNew_Genesis(t *testing.T) {
	w := newWorld(t)

	assert.Equal(t, "1000000000000000000000000000", w.Token.TotalSupply().Dec())
	_, tok := w.Balances(owner)
	assert.Equal(t, DefaultInitialSupply, tok)
	assert.True(t, w.Token.IsMinter(w.NFT.Address()))
	assert.Equal(t, uint64(market.DefaultPlatformFeeBps), w.Market.FeeBps())
	assert.Equal(t, dao.DefaultParams(), w.DAO.Params())

	contracts := w.Contracts()
	require.Len(t, contracts, 4)
	seen := map[chain.Address]bool{}
	for _, addr := range contracts {
		assert.False(t, seen[addr], "contract addresses are distinct")
		seen[addr] = true
	}
}

func TestNew_RequiresOwner(t *testing.T) {
	_, err := New(context.Background(), Params{})
	require.Error(t, err)
}

func TestCall_UnknownOperation(t *testing.T) {
	w := newWorld(t)
	_, err := w.Call(context.Background(), owner, "token.print_money", nil, nil)
	require.ErrorIs(t, err, ErrUnknownOperation)
	assert.Equal(t, chain.CodeNotFound, chain.CodeOf(err))
}

func TestCall_ArgumentErrors(t *testing.T) {
	w := newWorld(t)
	tests := []struct {
		name string
		args map[string]string
	}{
		{"missing amount", map[string]string{"to": alice.Hex()}},
		{"bad address", map[string]string{"to": "alice", "amount": "1"}},
		{"bad amount", map[string]string{"to": alice.Hex(), "amount": "1.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.Call(context.Background(), owner, "token.transfer", nil, NewArgs(tt.args, nil))
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, chain.CodeInvalidInput, chain.CodeOf(err))
		})
	}
}

func TestCall_RejectsValueForNonPayableOperations(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	_, err := w.Call(ctx, owner, "bank.faucet", nil,
		NewArgs(map[string]string{"to": alice.Hex(), "amount": "5e18"}, nil))
	require.NoError(t, err)

	var payable []string
	for _, name := range Operations() {
		op, _ := LookupOperation(name)
		if op.Payable {
			payable = append(payable, name)
			continue
		}
		if strings.HasPrefix(name, "bank.") {
			continue
		}
		t.Run(name, func(t *testing.T) {
			_, err := w.Call(ctx, alice, name, chain.Units(3), nil)
			require.ErrorIs(t, err, chain.ErrUnexpectedValue)
			assert.Equal(t, chain.CodeInvalidInput, chain.CodeOf(err))
		})
	}
	assert.Equal(t, []string{"bank.transfer", "dao.deposit", "market.purchase_native"}, payable)

	native, _ := w.Balances(alice)
	assert.Equal(t, chain.Units(5), native)
	for name, addr := range w.Contracts() {
		assert.True(t, w.Engine.Bank().BalanceOf(addr).IsZero(), "%s kept native value", name)
	}
}

func TestCall_ResolvesAccountNames(t *testing.T) {
	w := newWorld(t)
	accounts := map[string]chain.Address{"alice": alice}
	res, err := w.Call(context.Background(), owner, "token.transfer", nil,
		NewArgs(map[string]string{"to": "alice", "amount": "2.5e18"}, accounts))
	require.NoError(t, err)
	require.NotNil(t, res.Receipt)
	assert.Equal(t, "Transfer", res.Receipt.Events[0].Name)

	_, tok := w.Balances(alice)
	assert.Equal(t, chain.MustParseUnits("2.5"), tok)
}

func TestOperations_CoverEveryContract(t *testing.T) {
	names := Operations()
	for _, prefix := range []string{"bank.", "token.", "nft.", "market.", "dao."} {
		found := false
		for _, n := range names {
			if strings.HasPrefix(n, prefix) {
				found = true
				break
			}
		}
		assert.True(t, found, "no operations for %s", prefix)
	}
	for _, c := range []string{"token", "nft", "market", "dao"} {
		_, ok := LookupOperation(c + ".pause")
		assert.True(t, ok)
		_, ok = LookupOperation(c + ".unpause")
		assert.True(t, ok)
	}
	faucet, ok := LookupOperation("bank.faucet")
	require.True(t, ok)
	assert.True(t, faucet.Admin)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "1500", want: "1500"},
		{in: "0.1e18", want: "100000000000000000"},
		{in: "1_000e18", want: "1000000000000000000000"},
		{in: "1.5", wantErr: true},
		{in: "-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Dec())
		})
	}
}

func TestScenarioFiles(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadFile(path)
			require.NoError(t, err)
			report, err := s.Run(context.Background())
			require.NoError(t, err)
			for _, step := range report.Steps {
				for _, f := range step.Failures {
					t.Errorf("step %d (%s %s): %s", step.Index, step.Call, step.Name, f)
				}
			}
			assert.Zero(t, report.Failed())
		})
	}
}

func TestScenario_RecordsMismatches(t *testing.T) {
	const doc = `
name: mismatches
owner: owner
accounts:
  alice: ""
steps:
  - from: alice
    call: token.transfer
    args: {to: owner, amount: 1e18}
    expect: ok
  - from: owner
    call: token.transfer
    args: {to: alice, amount: 1e18}
    expect: InsufficientBalance
    check:
      token:
        alice: 2e18
`
	s, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Steps, 2)
	assert.Equal(t, "InsufficientBalance", report.Steps[0].Error)
	assert.False(t, report.Steps[0].Passed())
	require.Len(t, report.Steps[1].Failures, 2)
	assert.Contains(t, report.Steps[1].Failures[0], "call succeeded")
	assert.Equal(t, 2, report.Failed())

	require.Len(t, report.Accounts, 2)
	assert.Equal(t, "alice", report.Accounts[0].Name)
	assert.Equal(t, chain.Units(1), report.Accounts[0].Token)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("owner: o\nsteps: [{call: x, form: o}]\n"))
	require.Error(t, err)
	_, err = Load(strings.NewReader("name: empty\nowner: o\n"))
	require.Error(t, err)
}
