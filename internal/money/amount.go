// Package money normalizes heterogeneous currency values into float64.
//
// Source files mix numeric cells, Brazilian-formatted text ("R$
// 1.234,56"), plain decimals and garbage. The parser is deliberately
// permissive: anything unparseable becomes 0.0 rather than an error.
// That fallback is part of the observed contract of the pipeline, so
// tests assert it instead of treating it as a defect.
package money

import (
	"strconv"
	"strings"
)

// ParseString converts currency text to a float64, returning 0.0 on any
// parse failure. It strips currency symbols and whitespace, handles the
// accounting-negative "(1.234,56)" form, and disambiguates decimal
// commas from thousands separators.
func ParseString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("R$", "", "$", "", " ", "", " ", "", "\t", "").Replace(s)

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		// Brazilian: 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		// US: 1,234.56
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if len(s)-comma-1 <= 2 {
			// Decimal comma: 1234,5
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// Thousands comma: 1,234567 is implausible money, but keep digits
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if negative {
		return -f
	}
	return f
}
