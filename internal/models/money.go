package models

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (cents). Arithmetic stays in integers;
// decimal is only used at the edges for parsing and display.
type Money int64

const moneyScale = 2

// MaxMoney is the largest representable amount.
const MaxMoney = Money(math.MaxInt64)

// ErrAmountOverflow is returned when an amount does not fit in Money.
var ErrAmountOverflow = errors.New("amount out of range")

var maxMoneyDecimal = decimal.New(math.MaxInt64, -moneyScale)

// ParseMoney parses a decimal string such as "120.5" or "99.99".
// More than two fractional digits or a negative value is rejected.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts a decimal amount to minor units.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative: %s", d.String())
	}
	if !d.Equal(d.Round(moneyScale)) {
		return 0, fmt.Errorf("amount has more than %d fractional digits: %s", moneyScale, d.String())
	}
	if d.GreaterThan(maxMoneyDecimal) {
		return 0, fmt.Errorf("%w: %s exceeds %s", ErrAmountOverflow, d.String(), MaxMoney)
	}
	return Money(d.Shift(moneyScale).IntPart()), nil
}

// Times multiplies a unit price by a quantity. Both must be non-negative.
func (m Money) Times(quantity int) (Money, error) {
	if m < 0 || quantity < 0 {
		return 0, fmt.Errorf("%w: %s x %d", ErrAmountOverflow, m, quantity)
	}
	if quantity != 0 && m > MaxMoney/Money(quantity) {
		return 0, fmt.Errorf("%w: %s x %d", ErrAmountOverflow, m, quantity)
	}
	return m * Money(quantity), nil
}

// Plus adds two non-negative amounts.
func (m Money) Plus(other Money) (Money, error) {
	if m < 0 || other < 0 || m > MaxMoney-other {
		return 0, fmt.Errorf("%w: %s + %s", ErrAmountOverflow, m, other)
	}
	return m + other, nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -moneyScale)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(moneyScale)
}

// MarshalJSON renders the amount as a JSON number with two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
