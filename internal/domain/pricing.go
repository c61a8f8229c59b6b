package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrMoneyPrecision reports an amount finer than currency precision.
	ErrMoneyPrecision = errors.New("money: more than two fractional digits")
	// ErrMoneyRange reports an amount that does not fit a NUMERIC(10,2) column.
	ErrMoneyRange = errors.New("money: more than eight integer digits")
	// ErrMoneyNegative reports an amount below zero.
	ErrMoneyNegative = errors.New("money: must not be negative")
)

const (
	// MoneyScale is the number of fractional digits kept for every monetary amount.
	MoneyScale int32 = 2
	// MoneyIntegerDigits bounds the integer part of stored amounts.
	MoneyIntegerDigits = 8
)

var moneyLimit = decimal.New(1, MoneyIntegerDigits)

// RoundMoney normalises an amount to currency precision.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyScale)
}

// ValidateMoney checks that amount is a non-negative value with at most two fractional
// and eight integer digits. Trailing zeros past the scale are accepted.
func ValidateMoney(amount decimal.Decimal) error {
	switch {
	case amount.IsNegative():
		return ErrMoneyNegative
	case !amount.Equal(amount.Round(MoneyScale)):
		return ErrMoneyPrecision
	case amount.GreaterThanOrEqual(moneyLimit):
		return ErrMoneyRange
	}
	return nil
}

// ParseMoney parses a decimal string and validates it with ValidateMoney.
func ParseMoney(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, err
	}
	if err := ValidateMoney(amount); err != nil {
		return decimal.Decimal{}, err
	}
	return RoundMoney(amount), nil
}

// FormatMoney renders an amount with exactly two fractional digits.
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(MoneyScale)
}

// CartSummary carries the aggregates derived from a cart's items.
type CartSummary struct {
	Total         decimal.Decimal
	PositionCount int
	UnitCount     int
}
