package validators

import "fmt"

// The Format* helpers are the display-facing reverse of the cleaners; nothing
// in this module calls them. They assume already-cleaned digit-only input and
// are not part of the validation pipeline itself.

// FormatPhone renders a cleaned 10 or 11-digit phone as "(DD) NNNNN-NNNN".
func FormatPhone(digits string) string {
	switch len(digits) {
	case 11:
		return fmt.Sprintf("(%s) %s-%s", digits[0:2], digits[2:7], digits[7:11])
	case 10:
		return fmt.Sprintf("(%s) %s-%s", digits[0:2], digits[2:6], digits[6:10])
	default:
		return digits
	}
}

// FormatCPF renders a cleaned 11-digit CPF as "NNN.NNN.NNN-NN".
func FormatCPF(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return fmt.Sprintf("%s.%s.%s-%s", digits[0:3], digits[3:6], digits[6:9], digits[9:11])
}

// FormatCNPJ renders a cleaned 14-digit CNPJ as "NN.NNN.NNN/NNNN-NN".
func FormatCNPJ(digits string) string {
	if len(digits) != 14 {
		return digits
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s", digits[0:2], digits[2:5], digits[5:8], digits[8:12], digits[12:14])
}

// FormatCEP renders a cleaned 8-digit CEP as "NNNNN-NNN".
func FormatCEP(digits string) string {
	if len(digits) != 8 {
		return digits
	}
	return fmt.Sprintf("%s-%s", digits[0:5], digits[5:8])
}
