// Package core holds the club ledger's domain types.
//
// Money is kept as integer cents (paise). The JSON form is a plain number of
// rupees so documents written by older exports load unchanged.
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every formatted amount.
const CurrencySymbol = "₹"

// Rupees builds a Money from a whole rupee amount.
func Rupees(n int64) Money {
	return Money{Cents: n * 100}
}

// ParseAmount converts a decimal string to Money with half-up rounding on the
// third decimal place. It accepts both dot (12.34) and comma (12,34) separators.
// Negative values are rejected; zero is allowed.
//
// Examples:
//
//	ParseAmount("500")    -> ₹500
//	ParseAmount("12,345") -> ₹12.35
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return fromDecimal(d)
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// fromDecimal rounds rupees to whole paise, rejecting amounts that do not fit
// in an int64 count of paise.
func fromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return Money{}, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount in rupees.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Mul multiplies by a count, used for pending totals.
func (m Money) Mul(n int) Money { return Money{Cents: m.Cents * int64(n)} }

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsNegative() bool { return m.Cents < 0 }

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// Plain renders the amount without currency, e.g. "500" or "12.5".
func (m Money) Plain() string {
	return m.Decimal().String()
}

// String renders the amount for activity descriptions, e.g. "₹500".
func (m Money) String() string {
	if m.Cents < 0 {
		return "-" + CurrencySymbol + Money{Cents: -m.Cents}.Plain()
	}
	return CurrencySymbol + m.Plain()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Plain()), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, b)
	}
	v, err := fromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
