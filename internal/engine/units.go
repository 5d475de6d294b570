package engine

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseUnits converts a decimal string ("1.5") into base units for the given decimals.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if decimals < 0 {
		decimals = 18
	}
	parts := strings.SplitN(amount, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return nil, fmt.Errorf("too many fractional digits for %d decimals", decimals)
	}
	fracPart = fracPart + strings.Repeat("0", decimals-len(fracPart))
	clean := strings.TrimLeft(intPart+fracPart, "0")
	if clean == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(clean, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("bad amount %q", amount)
	}
	return v, nil
}

// FormatUnits renders base units as a decimal string, trimming trailing zeros.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	if decimals <= 0 {
		return v.String()
	}
	s := new(big.Int).Abs(v).String()
	neg := v.Sign() < 0
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	frac := strings.TrimRight(s[len(s)-decimals:], "0")
	out := intPart
	if frac != "" {
		out = intPart + "." + frac
	}
	if neg {
		return "-" + out
	}
	return out
}
