// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between pence and pound representations.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimalToPence converts a decimal string to pence with half-up rounding
// on the third decimal place. It accepts both dot (12.34) and comma (12,34)
// separators. The result is always positive pence; invalid formats, negative
// values and zero amounts return an error.
//
// Examples:
//
//	ParseDecimalToPence("12.34") -> 1234, nil
//	ParseDecimalToPence("12.345") -> 1234, nil (rounds down)
//	ParseDecimalToPence("12.346") -> 1235, nil (rounds up)
func ParseDecimalToPence(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return 0, ErrInvalidAmount
	}
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
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; then half-up rounding on third
	var fracPence int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracPence = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			fracPence += d2
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracPence++
			}
		}
	}
	pence := iv*100 + fracPence
	if pence <= 0 {
		return 0, ErrInvalidAmount
	}
	return pence, nil
}

// Pounds returns the pound value as a float64 for display purposes.
// Use pence for calculations to avoid floating-point precision issues.
func (m Money) Pounds() float64 {
	return float64(m.Pence) / 100.0
}

// Decimal renders the amount with exactly two decimal places and no currency
// symbol, the format the CSV export contract requires.
func (m Money) Decimal() string {
	pence := m.Pence
	neg := pence < 0
	if neg {
		pence = -pence
	}
	s := fmt.Sprintf("%d.%02d", pence/100, pence%100)
	if neg {
		return "-" + s
	}
	return s
}
