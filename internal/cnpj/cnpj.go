// Package cnpj validates 14-digit Brazilian company identifiers.
//
// The CNPJ carries two trailing check digits computed with a weighted
// modulo-11 scheme. Validation here is pure string/integer work with no
// side effects, so callers can run it per row without ceremony.
package cnpj

import "strings"

// Check-digit weights. The first digit is computed over the leading 12
// digits, the second over the leading 13 (including the first check
// digit). Both cycle down to 2 and restart at 9.
var (
	firstWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	secondWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// Clean strips every non-digit character from s.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Valid reports whether s is a checksum-valid CNPJ. Punctuation is
// stripped first; the cleaned value must be exactly 14 digits, must not
// be a single repeated digit, and both check digits must match.
func Valid(s string) bool {
	c := Clean(s)
	if len(c) != 14 {
		return false
	}
	if allSame(c) {
		return false
	}

	if digit(c[12]) != checkDigit(c[:12], firstWeights) {
		return false
	}
	return digit(c[13]) == checkDigit(c[:13], secondWeights)
}

// checkDigit computes one modulo-11 check digit over digits using the
// given weight cycle. Results above 9 collapse to 0.
func checkDigit(digits string, weights []int) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += digit(digits[i]) * weights[i]
	}
	d := 11 - (sum % 11)
	if d > 9 {
		return 0
	}
	return d
}

func digit(b byte) int {
	return int(b - '0')
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
