package types

import (
	"fmt"
	"math/big"
)

// Decimals is the number of fixed-point decimal places carried by
// every Amount, matching common token conventions.
const Decimals = 18

// decimalFactor is 10^Decimals.
var decimalFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Amount is a non-negative fixed-point integer quantity of settlement
// currency, impact units or credits, scaled by 10^Decimals. The zero
// value is zero. All arithmetic is exact; Amount values are immutable
// and every operation returns a fresh value.
type Amount struct {
	i *big.Int
}

// NewAmount returns an Amount holding v raw (already-scaled) units.
func NewAmount(v uint64) Amount {
	return Amount{i: new(big.Int).SetUint64(v)}
}

// Tokens returns n whole units, i.e. n * 10^Decimals raw units.
func Tokens(n uint64) Amount {
	return Amount{i: new(big.Int).Mul(new(big.Int).SetUint64(n), decimalFactor)}
}

// ParseAmount parses a base-10 raw integer string.
func ParseAmount(s string) (Amount, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if i.Sign() < 0 {
		return Amount{}, fmt.Errorf("negative amount %q", s)
	}
	return Amount{i: i}, nil
}

func (a Amount) value() *big.Int {
	if a.i == nil {
		return new(big.Int)
	}
	return a.i
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.i == nil || a.i.Sign() == 0 }

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a.i != nil && a.i.Sign() > 0 }

// Cmp compares a and b, returning -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.value().Cmp(b.value()) }

// LT reports a < b.
func (a Amount) LT(b Amount) bool { return a.Cmp(b) < 0 }

// GTE reports a >= b.
func (a Amount) GTE(b Amount) bool { return a.Cmp(b) >= 0 }

// Equal reports a == b.
func (a Amount) Equal(b Amount) bool { return a.Cmp(b) == 0 }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{i: new(big.Int).Add(a.value(), b.value())}
}

// Sub returns a - b. Panics if the result would be negative: callers
// must establish a >= b first, so a negative result is an accounting
// invariant violation, not a recoverable error.
func (a Amount) Sub(b Amount) Amount {
	r := new(big.Int).Sub(a.value(), b.value())
	if r.Sign() < 0 {
		panic(fmt.Sprintf("types: amount underflow: %s - %s", a, b))
	}
	return Amount{i: r}
}

// Mul returns a * b, where b is a raw integer multiplier.
func (a Amount) Mul(b Amount) Amount {
	return Amount{i: new(big.Int).Mul(a.value(), b.value())}
}

// MulDiv returns floor(a * num / den). Panics if den is zero.
func (a Amount) MulDiv(num, den Amount) Amount {
	if den.IsZero() {
		panic("types: MulDiv by zero")
	}
	r := new(big.Int).Mul(a.value(), num.value())
	r.Quo(r, den.value())
	return Amount{i: r}
}

// MulBps returns floor(a * bps / 10000).
func (a Amount) MulBps(bps uint32) Amount {
	r := new(big.Int).Mul(a.value(), big.NewInt(int64(bps)))
	r.Quo(r, big.NewInt(10000))
	return Amount{i: r}
}

// ScaleDown returns floor(a / 10^Decimals) * b's scale removal:
// the exact product of two scaled fixed-point values, e.g.
// cost = credits.Mul(pricePerUnit).ScaleDown().
func (a Amount) ScaleDown() Amount {
	return Amount{i: new(big.Int).Quo(a.value(), decimalFactor)}
}

// String returns the raw integer decimal representation.
func (a Amount) String() string { return a.value().String() }

// Uint64 returns the amount as a uint64. Only meaningful for small
// unscaled quantities such as basis-point computations.
func (a Amount) Uint64() uint64 { return a.value().Uint64() }

// MarshalJSON encodes the amount as a decimal string, preserving
// precision exactly regardless of the consumer's number type.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes a decimal string (or bare number).
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
