// internal/validation/money.go
package validation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"readreward/internal/util"
)

// FormatAmount renders a value with exactly two decimals and a dot separator,
// the form used inside payment payloads ("45.00").
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// FormatBRL renders a value for display: "R$ 1.234,56".
func FormatBRL(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, grouped.String(), frac)
}

// ParsePositiveAmount parses a client-supplied amount, rejecting zero,
// negatives and more than two decimal places.
func ParsePositiveAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", util.ErrInvalidInput)
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return decimal.Zero, fmt.Errorf("%w: at most two decimal places", util.ErrInvalidInput)
	}
	return amount, nil
}
