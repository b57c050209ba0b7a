package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the scale every stored amount is kept at.
const MoneyPlaces = 2

const DateLayout = "2006-01-02"

// MaxAmount is the largest magnitude a NUMERIC(14,2) column holds.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// ParseAmount parses a monetary amount from raw admin input ("1,250.50", " 400 ").
// Thousands separators are dropped. Values with more than MoneyPlaces
// significant decimals or beyond MaxAmount are rejected, never rounded.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if !amount.Equal(RoundMoney(amount)) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", raw, MoneyPlaces)
	}
	if amount.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, fmt.Errorf("amount %q exceeds %s", raw, MaxAmount.StringFixed(MoneyPlaces))
	}
	return amount, nil
}

// RoundMoney rounds to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ParseDate accepts yyyy-mm-dd or RFC 3339 and returns the calendar date as midnight UTC.
// For RFC 3339 input the date is taken in the timestamp's own offset.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format %q, expected yyyy-mm-dd", raw)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// ParseOptionalDate is ParseDate where blank input means "no date".
func ParseOptionalDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TrimPtr trims a string in place; nil stays nil.
func TrimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
