// Package core holds the subscription domain: entities, billing-date
// arithmetic, spending aggregation and the reminder rule.
//
// This file contains functions for parsing monetary amounts from user
// input and formatting them back.
package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrAmountRequired is returned when no amount was entered.
var ErrAmountRequired = errors.New("amount is required")

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Zero is accepted here and left
// to validation. Returns ErrAmountRequired for blank input and
// ErrInvalidAmount for malformed or negative values.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.344") -> 1234, nil (rounds down)
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrAmountRequired
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return 0, ErrInvalidAmount
	}
	// Split into integer and fractional part
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	// Convert integer part - check for overflow
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; then half-up rounding on third
	var fracCents int64 = 0
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracCents = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			fracCents += d2
			if len(fracPart) > 2 {
				if fracPart[2] >= '5' {
					fracCents++
				}
			}
		}
	}
	if parts[0] == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	// iv*100 + fracCents must fit in int64; rounding can push fracCents to 100.
	if iv > (math.MaxInt64-fracCents)/100 {
		return 0, ErrInvalidAmount
	}
	return iv*100 + fracCents, nil
}

// FormatCents renders minor units as a plain decimal, e.g. 999 -> "9.99".
func FormatCents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	out := strconv.FormatInt(cents/100, 10) + "." + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-" + out
	}
	return out
}

// NewMoney parses a decimal amount into Money in the given currency.
func NewMoney(amount, currency string) (Money, error) {
	cents, err := ParseDecimalToCents(amount)
	if err != nil {
		return Money{}, err
	}
	m := Money{Cents: cents, Currency: strings.ToUpper(strings.TrimSpace(currency))}
	if m.Currency == "" {
		m.Currency = DefaultCurrency
	}
	return m, nil
}

// CentsFromMajor converts a major-unit float, as stored in remote
// documents, to minor units.
func CentsFromMajor(v float64) int64 {
	return int64(math.Round(v * 100))
}
