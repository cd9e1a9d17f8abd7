package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	alice = AddressFromName("alice")
	bob   = AddressFromName("bob")
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *ManualClock) {
	t.Helper()
	clock := NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e := NewEngine(append([]Option{WithClock(clock)}, opts...)...)
	_, err := e.Execute(context.Background(), Call{From: alice, Method: "faucet"}, func(tx *Tx) error {
		return e.Bank().Credit(tx, alice, Units(10))
	})
	require.NoError(t, err)
	return e, clock
}

func TestAddress_ChecksumRoundTrip(t *testing.T) {
	// EIP-55 reference vector.
	const want = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	a, err := ParseAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, want, a.Hex())

	parsed, err := ParseAddress(want)
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
}

func TestParseAddress_Invalid(t *testing.T) {
	tests := []string{
		"",
		"0x1234",
		"0xzzzzb6053f3e94c9b9a09f33669435e7ef1beaed",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD", // bad checksum
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAddress(in)
			require.ErrorIs(t, err, ErrInvalidAddress)
			assert.Equal(t, CodeInvalidInput, CodeOf(err))
		})
	}
}

func TestContractAddress_IsDeterministic(t *testing.T) {
	assert.Equal(t, ContractAddress(alice, 1), ContractAddress(alice, 1))
	assert.NotEqual(t, ContractAddress(alice, 1), ContractAddress(alice, 2))
	assert.NotEqual(t, ContractAddress(alice, 1), ContractAddress(bob, 1))
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		format string
	}{
		{"1", "1000000000000000000", "1"},
		{"0.1", "100000000000000000", "0.1"},
		{".5", "500000000000000000", "0.5"},
		{"0.0975", "97500000000000000", "0.0975"},
		{"1000000000", "1000000000000000000000000000", "1000000000"},
		{"0.000000000000000001", "1", "0.000000000000000001"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUnits(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Dec())
			assert.Equal(t, tt.format, FormatUnits(got))
		})
	}

	for _, bad := range []string{"", "abc", "-1", "1.0000000000000000001", "1e18"} {
		_, err := ParseUnits(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "0", FormatUnits(Zero()))
	assert.Equal(t, "1", FormatUnits(Units(1)))
	assert.Equal(t, "0.0025", FormatUnits(MustParseUnits("0.0025")))
	assert.Equal(t, "1000000000.5", FormatUnits(MustParseUnits("1000000000.5")))
}

func TestBasisPoints_Truncates(t *testing.T) {
	assert.Equal(t, "2500000000000000", BasisPoints(MustParseUnits("0.1"), 250).Dec())
	assert.Equal(t, "0", BasisPoints(uint256.NewInt(39), 250).Dec())
	assert.Equal(t, "1", BasisPoints(uint256.NewInt(40), 250).Dec())
}

func TestExecute_CommitPublishesEvents(t *testing.T) {
	rec := &Recorder{}
	e, clock := newTestEngine(t, WithSink(rec))
	clock.Advance(time.Hour)

	receipt, err := e.Execute(context.Background(), Call{From: alice, To: bob, Method: "pay"}, func(tx *Tx) error {
		if err := e.Bank().Transfer(tx, alice, bob, Units(3)); err != nil {
			return err
		}
		tx.Emit(bob, "Paid", Fields{"amount": Units(3).Dec()})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, clock.Now(), receipt.Time)
	assert.Equal(t, receipt.TxID, receipt.Events[0].TxID)
	assert.Equal(t, uint64(2), receipt.Seq)

	assert.Len(t, rec.Named("Paid"), 1)
	e.View(func(time.Time) {
		assert.Equal(t, Units(7), e.Bank().BalanceOf(alice))
		assert.Equal(t, Units(3), e.Bank().BalanceOf(bob))
	})
}

func TestExecute_RevertUndoesEverything(t *testing.T) {
	rec := &Recorder{}
	e, _ := newTestEngine(t, WithSink(rec))
	counter := 0
	names := []string{"a"}
	m := map[string]int{"x": 1}
	boom := errors.New("boom")

	_, err := e.Execute(context.Background(), Call{From: alice, To: bob, Value: Units(1), Method: "fail"}, func(tx *Tx) error {
		Assign(tx, &counter, 5)
		Append(tx, &names, "b")
		Put(tx, m, "x", 2)
		Put(tx, m, "y", 3)
		if err := e.Bank().Transfer(tx, alice, bob, Units(2)); err != nil {
			return err
		}
		tx.Emit(bob, "Never", nil)
		return fmt.Errorf("wrapped: %w", boom)
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, counter)
	assert.Equal(t, []string{"a"}, names)
	assert.Equal(t, map[string]int{"x": 1}, m)
	assert.Empty(t, rec.Named("Never"))
	assert.Equal(t, uint64(1), e.Seq())
	e.View(func(time.Time) {
		assert.Equal(t, Units(10), e.Bank().BalanceOf(alice))
		assert.True(t, e.Bank().BalanceOf(bob).IsZero())
	})
}

func TestExecute_ValueRequiresFunds(t *testing.T) {
	e, _ := newTestEngine(t)
	called := false
	_, err := e.Execute(context.Background(), Call{From: bob, To: alice, Value: Units(1)}, func(tx *Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrInsufficientNative)
	assert.Equal(t, CodeInsufficientFunds, CodeOf(err))
	assert.False(t, called)
}

func TestExecute_ZeroSenderRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Execute(context.Background(), Call{}, func(tx *Tx) error { return nil })
	require.ErrorIs(t, err, ErrZeroAddress)
}

func TestExecute_PanicRevertsAndRepanics(t *testing.T) {
	e, _ := newTestEngine(t)
	v := 1
	assert.Panics(t, func() {
		_, _ = e.Execute(context.Background(), Call{From: alice}, func(tx *Tx) error {
			Assign(tx, &v, 2)
			panic("kaboom")
		})
	})
	assert.Equal(t, 1, v)

	// The engine lock must have been released.
	_, err := e.Execute(context.Background(), Call{From: alice}, func(tx *Tx) error { return nil })
	require.NoError(t, err)
}

func TestExecute_ObserverAndSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var outcomes []string
	e, _ := newTestEngine(t,
		WithTracerProvider(tp),
		WithObserver(func(method string, err error, _ time.Duration) {
			outcomes = append(outcomes, fmt.Sprintf("%s:%s", method, CodeOf(err)))
		}),
	)

	_, _ = e.Execute(context.Background(), Call{From: alice, Method: "ok"}, func(tx *Tx) error { return nil })
	_, _ = e.Execute(context.Background(), Call{From: alice, Method: "denied"}, func(tx *Tx) error { return ErrUnauthorized })

	assert.Equal(t, []string{"faucet:UNKNOWN", "ok:UNKNOWN", "denied:UNAUTHORIZED"}, outcomes)
	spans := sr.Ended()
	require.Len(t, spans, 3) // faucet, ok, denied
	assert.Equal(t, "denied", spans[2].Name())
	assert.Equal(t, "Unauthorized", spans[2].Status().Description)
}

func TestBank_ReceiverCanRejectPayment(t *testing.T) {
	e, _ := newTestEngine(t)
	reject := NewError(CodeInvalidState, "NoThanks")
	_, err := e.Execute(context.Background(), Call{From: alice}, func(tx *Tx) error {
		e.Bank().SetReceiver(tx, bob, ReceiverFunc(func(tx *Tx, from Address, amount *uint256.Int) error {
			assert.Equal(t, bob, tx.Sender())
			assert.Equal(t, alice, from)
			return reject
		}))
		return nil
	})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), Call{From: alice}, func(tx *Tx) error {
		return e.Bank().Transfer(tx, alice, bob, Units(1))
	})
	require.ErrorIs(t, err, reject)
	e.View(func(time.Time) {
		assert.Equal(t, Units(10), e.Bank().BalanceOf(alice))
	})
}

func TestGuard_BlocksReentry(t *testing.T) {
	var g Guard
	release, err := g.Enter()
	require.NoError(t, err)
	_, err = g.Enter()
	require.ErrorIs(t, err, ErrReentrantCall)
	release()
	release2, err := g.Enter()
	require.NoError(t, err)
	release2()
}

func TestControls_PauseIsOwnerGated(t *testing.T) {
	e, _ := newTestEngine(t)
	c := NewControls(alice)
	contract := ContractAddress(alice, 1)

	_, err := e.Execute(context.Background(), Call{From: bob}, func(tx *Tx) error {
		return c.SetPaused(tx, contract, true)
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	receipt, err := e.Execute(context.Background(), Call{From: alice}, func(tx *Tx) error {
		return c.SetPaused(tx, contract, true)
	})
	require.NoError(t, err)
	assert.Equal(t, "Paused", receipt.Events[0].Name)
	assert.ErrorIs(t, c.WhenNotPaused(), ErrPaused)

	_, err = e.Execute(context.Background(), Call{From: alice}, func(tx *Tx) error {
		return c.SetPaused(tx, contract, true)
	})
	require.ErrorIs(t, err, ErrPaused)
}

func TestRoleSet_GrantRevokeRevert(t *testing.T) {
	e, _ := newTestEngine(t)
	r := NewRoleSet(alice)

	_, err := e.Execute(context.Background(), Call{From: alice}, func(tx *Tx) error {
		assert.True(t, r.Grant(tx, bob))
		assert.False(t, r.Grant(tx, bob))
		assert.True(t, r.Revoke(tx, alice))
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.True(t, r.Has(alice))
	assert.False(t, r.Has(bob))
}

func TestManualClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	assert.Equal(t, start.Add(time.Minute), c.Advance(time.Minute))
	c.Set(start)
	assert.Equal(t, start.Add(time.Minute), c.Now())
}
