package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits carried by every amount.
const MoneyScale = 2

var ErrInvalidMoney = errors.New("invalid money amount")

// Money is an exact fixed-point amount with MoneyScale fractional digits.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// Zero returns 0.00.
func Zero() Money {
	return Money{}
}

// NewMoney rounds d half-to-even to MoneyScale.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.RoundBank(MoneyScale)}
}

// MoneyFromCents builds an amount from minor units (1234 -> 12.34).
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -MoneyScale)}
}

// ParseMoney parses a canonical decimal string. More than MoneyScale
// significant fractional digits is an error, never a silent rounding.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	if !d.Equal(d.Truncate(MoneyScale)) {
		return Money{}, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidMoney, s, MoneyScale)
	}
	return Money{d: d}, nil
}

// MustParseMoney is ParseMoney for constants and tests.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }
func (m Money) Abs() Money        { return Money{d: m.d.Abs()} }

// MulInt multiplies by an integer scalar; the result is exact.
func (m Money) MulInt(n int64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(n))}
}

// Mul multiplies by an arbitrary decimal scalar, rounding half-to-even.
func (m Money) Mul(f decimal.Decimal) Money {
	return NewMoney(m.d.Mul(f))
}

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int          { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool       { return m.d.Equal(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) LessThan(o Money) bool    { return m.d.LessThan(o.d) }
func (m Money) IsNegative() bool         { return m.d.IsNegative() }
func (m Money) IsZero() bool             { return m.d.IsZero() }
func (m Money) IsPositive() bool         { return m.d.IsPositive() }

// Decimal exposes the underlying value for adapters that need it.
func (m Money) Decimal() decimal.Decimal { return m.d }

// String is the canonical storage form, e.g. "123.40".
func (m Money) String() string {
	return m.d.StringFixed(MoneyScale)
}

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	total := Zero()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both "12.34" and 12.34.
func (m *Money) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores the canonical string; NUMERIC columns parse it exactly.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan reads NUMERIC values, which pgx hands over as text.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Zero()
		return nil
	case string:
		return m.scanString(v)
	case []byte:
		return m.scanString(string(v))
	case int64:
		*m = Money{d: decimal.NewFromInt(v)}
		return nil
	case decimal.Decimal:
		*m = NewMoney(v)
		return nil
	case Money:
		*m = v
		return nil
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidMoney, src)
	}
}

func (m *Money) scanString(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	*m = NewMoney(d)
	return nil
}
