package model

import (
	"math"
	"strconv"
)

// ParseCents converts decimal string amounts (major units) to cents (int64).
// The ordering backend returns billing_details amounts as decimal strings
// (e.g., "12.50" = 1250 cents). Handles empty strings, missing decimals,
// and large values.
// Examples: "12.50" → 1250, "1234.56" → 123456, "" → 0
func ParseCents(s string) int64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	// math.Round handles both positive and negative numbers correctly
	return int64(math.Round(f * 100))
}

// ParseMinorUnits converts string amounts already in minor units to int64.
// Item prices in cart_details arrive in this format ("8900" = 8900 cents).
// Examples: "8900" → 8900, "123456" → 123456, "" → 0
func ParseMinorUnits(s string) int64 {
	if s == "" {
		return 0
	}
	// Parse as float to handle potential decimal values, then truncate
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}
