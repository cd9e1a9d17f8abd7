package sim

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/genomechain/genome-ledger/internal/chain"
)

// ErrInvalidArgument reports a missing or malformed call argument.
var ErrInvalidArgument = chain.NewError(chain.CodeInvalidInput, "InvalidArgument")

// Args are the string-valued arguments of an operation. Accessors record
// the first problem instead of returning it, so an operation can read all
// its arguments and check Err once.
type Args struct {
	Values map[string]string
	// Accounts resolves names to addresses. Values not found here must be
	// hex addresses.
	Accounts map[string]chain.Address

	err error
}

// NewArgs wraps values.
func NewArgs(values map[string]string, accounts map[string]chain.Address) *Args {
	return &Args{Values: values, Accounts: accounts}
}

// Err returns the first argument error.
func (a *Args) Err() error { return a.err }

func (a *Args) fail(key, format string, v ...any) {
	if a.err == nil {
		a.err = fmt.Errorf("%w: %s: %s", ErrInvalidArgument, key, fmt.Sprintf(format, v...))
	}
}

func (a *Args) lookup(key string, required bool) (string, bool) {
	s, ok := a.Values[key]
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		if required {
			a.fail(key, "required")
		}
		return "", false
	}
	return s, true
}

// String returns an optional text argument.
func (a *Args) String(key string) string {
	s, _ := a.lookup(key, false)
	return s
}

// Address returns a required account name or hex address.
func (a *Args) Address(key string) chain.Address {
	s, ok := a.lookup(key, true)
	if !ok {
		return chain.Address{}
	}
	if addr, ok := a.Accounts[s]; ok {
		return addr
	}
	addr, err := chain.ParseAddress(s)
	if err != nil {
		a.fail(key, "unknown account %q", s)
	}
	return addr
}

// Amount returns a required amount. Plain integers are wei; a decimal with
// an "e18" suffix is in whole units, so "0.1e18" is 10^17 wei.
func (a *Args) Amount(key string) *uint256.Int {
	s, ok := a.lookup(key, true)
	if !ok {
		return chain.Zero()
	}
	v, err := ParseAmount(s)
	if err != nil {
		a.fail(key, "%v", err)
		return chain.Zero()
	}
	return v
}

// OptionalAmount returns an amount that defaults to zero.
func (a *Args) OptionalAmount(key string) *uint256.Int {
	if _, ok := a.lookup(key, false); !ok {
		return chain.Zero()
	}
	return a.Amount(key)
}

// Uint returns a required unsigned integer.
func (a *Args) Uint(key string) uint64 {
	s, ok := a.lookup(key, true)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		a.fail(key, "not an unsigned integer")
	}
	return n
}

// Duration returns a required duration given as Go syntax ("36h") or whole seconds.
func (a *Args) Duration(key string) time.Duration {
	s, ok := a.lookup(key, true)
	if !ok {
		return 0
	}
	d, err := ParseDuration(s)
	if err != nil {
		a.fail(key, "%v", err)
	}
	return d
}

// ParseAmount parses wei ("1500") or whole units with an "e18" suffix ("1.5e18").
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if units, ok := strings.CutSuffix(s, "e18"); ok {
		return chain.ParseUnits(units)
	}
	return chain.ParseWei(s)
}

// ParseDuration accepts Go duration syntax or a count of seconds.
func ParseDuration(s string) (time.Duration, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
