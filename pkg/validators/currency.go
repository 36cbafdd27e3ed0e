package validators

import (
	"regexp"
	"strconv"
	"strings"
)

var currencyDigitsPattern = regexp.MustCompile(`^[\d.,]+$`)
var nonCurrencyChars = regexp.MustCompile(`[^\d.,]`)

// cleanCurrency strips currency symbols/whitespace and disambiguates the
// Brazilian "1.234,56" decimal-comma format from the plain "1,234.56" /
// "1234.56" formats.
func cleanCurrency(s string) string {
	s = strings.TrimSpace(s)
	s = nonCurrencyChars.ReplaceAllString(s, "")
	if s == "" {
		return s
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma != -1 && lastDot != -1:
		if lastComma > lastDot {
			// 1.234,56 -> 1234.56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			// 1,234.56 -> 1234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma != -1:
		// Comma with no dot: treat as decimal separator only if exactly two
		// trailing digits, else as a thousands separator.
		if len(s)-lastComma-1 == 2 {
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return s
}

// checkCurrency parses the cleaned value and rejects non-positive amounts.
func checkCurrency(s string) (bool, string) {
	if !currencyDigitsPattern.MatchString(s) {
		return false, ""
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false, ""
	}
	if v <= 0 {
		return false, "Orçamento deve ser maior que zero"
	}
	return true, ""
}
