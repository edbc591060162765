// internal/validation/document.go
package validation

import (
	"fmt"
	"strings"

	"readreward/internal/util"
)

// NormalizeDocument strips punctuation from a formatted CPF ("529.982.247-25").
func NormalizeDocument(doc string) string {
	var b strings.Builder
	b.Grow(len(doc))
	for _, r := range doc {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateDocument checks an 11-digit national id. The 10th and 11th digits are
// mod-11 check digits over the first 9 and first 10 digits; documents made of
// a single repeated digit are rejected even though their checksum holds.
func ValidateDocument(doc string) error {
	digits := NormalizeDocument(doc)
	if len(digits) != 11 {
		return fmt.Errorf("%w: expected 11 digits, got %d", util.ErrInvalidDocument, len(digits))
	}

	d := make([]int, 11)
	for i := range digits {
		d[i] = int(digits[i] - '0')
	}

	allSame := true
	for i := 1; i < 11; i++ {
		if d[i] != d[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("%w: repeated digits", util.ErrInvalidDocument)
	}

	if checkDigit(d[:9]) != d[9] || checkDigit(d[:10]) != d[10] {
		return fmt.Errorf("%w: check digits do not match", util.ErrInvalidDocument)
	}
	return nil
}

// checkDigit weights the digits from len+1 down to 2.
func checkDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, v := range digits {
		sum += v * weight
		weight--
	}
	r := (sum * 10) % 11
	if r == 10 {
		return 0
	}
	return r
}
