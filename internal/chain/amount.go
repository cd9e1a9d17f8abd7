package chain

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Decimals is the number of fractional digits in every on-ledger amount.
const Decimals = 18

// unit is 10^Decimals, the amount representing one whole token or coin.
var unit = uint256.NewInt(1_000_000_000_000_000_000)

// Units returns n whole tokens scaled by 10^18.
func Units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), unit)
}

// Zero returns a fresh zero amount.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// ParseWei parses a base-10 integer amount already scaled by 10^18.
func ParseWei(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	if strings.TrimLeft(s, "0123456789") != "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return v, nil
}

// ParseUnits parses a human decimal such as "0.1" or "1000000000" into an
// amount scaled by 10^18. At most 18 fractional digits are accepted.
func ParseUnits(s string) (*uint256.Int, error) {
	if s == "" || s == "." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > Decimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, Decimals)
	}
	w, err := ParseWei(whole)
	if err != nil {
		return nil, err
	}
	out, overflow := new(uint256.Int).MulOverflow(w, unit)
	if overflow {
		return nil, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
	}
	if frac == "" {
		return out, nil
	}
	f, err := ParseWei(frac + strings.Repeat("0", Decimals-len(frac)))
	if err != nil {
		return nil, err
	}
	if _, overflow := out.AddOverflow(out, f); overflow {
		return nil, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
	}
	return out, nil
}

// MustParseUnits is like ParseUnits but panics on error.
func MustParseUnits(s string) *uint256.Int {
	v, err := ParseUnits(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatUnits renders an amount as a decimal number of whole units,
// trimming trailing fractional zeros.
func FormatUnits(v *uint256.Int) string {
	whole := new(uint256.Int).Div(v, unit)
	frac := new(uint256.Int).Mod(v, unit)
	if frac.IsZero() {
		return whole.Dec()
	}
	fs := strings.TrimRight(fmt.Sprintf("%018d", frac.Uint64()), "0")
	return whole.Dec() + "." + fs
}

// BasisPoints returns v * bps / 10000, truncated.
func BasisPoints(v *uint256.Int, bps uint64) *uint256.Int {
	out := new(uint256.Int).Mul(v, uint256.NewInt(bps))
	return out.Div(out, uint256.NewInt(10_000))
}
