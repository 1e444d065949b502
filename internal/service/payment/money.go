// internal/service/payment/money.go
package payment

import (
	"fmt"
	"strconv"
	"strings"
)

// Amounts are integer minor units everywhere inside the service. The decimal
// string form exists only on the provider wire, so the conversions live here.

// MinorToDecimal formats minor units as a two-decimal provider amount, e.g.
// 5000 -> "50.00".
func MinorToDecimal(amountMinor int64) string {
	sign := ""
	if amountMinor < 0 {
		sign = "-"
		amountMinor = -amountMinor
	}
	return fmt.Sprintf("%s%d.%02d", sign, amountMinor/100, amountMinor%100)
}

// DecimalToMinor parses a provider decimal amount into minor units without
// going through floating point, e.g. "50.00" -> 5000, "50.5" -> 5050.
func DecimalToMinor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	whole, frac, _ := strings.Cut(s, ".")

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if units < 0 || strings.HasPrefix(whole, "-") {
		return 0, fmt.Errorf("negative amount %q", s)
	}

	switch len(frac) {
	case 0:
		frac = "00"
	case 1:
		frac += "0"
	case 2:
	default:
		return 0, fmt.Errorf("invalid amount %q: more than two decimal places", s)
	}

	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	return units*100 + cents, nil
}
