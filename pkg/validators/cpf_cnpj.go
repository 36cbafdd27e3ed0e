package validators

import "strconv"

// checkCPF validates an 11-digit CPF checksum (mod-11, two check digits),
// using the standard two-check-digit algorithm.
func checkCPF(digits string) (bool, string) {
	if len(digits) != 11 || allSameDigit(digits) {
		return false, ""
	}
	d1 := modCheckDigit(digits[:9], 10)
	d2 := modCheckDigit(digits[:9]+strconv.Itoa(d1), 11)
	if int(digits[9]-'0') != d1 || int(digits[10]-'0') != d2 {
		return false, ""
	}
	return true, ""
}

// checkCNPJ validates a 14-digit CNPJ checksum using the fixed weight vectors
// with the CNPJ weight vectors.
func checkCNPJ(digits string) (bool, string) {
	if len(digits) != 14 || allSameDigit(digits) {
		return false, ""
	}
	w1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	d1 := weightedCheckDigit(digits[:12], w1)
	d2 := weightedCheckDigit(digits[:12]+strconv.Itoa(d1), w2)
	if int(digits[12]-'0') != d1 || int(digits[13]-'0') != d2 {
		return false, ""
	}
	return true, ""
}

func allSameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// modCheckDigit implements the CPF-style weight-from-N-down-to-2 checksum.
func modCheckDigit(digits string, startWeight int) int {
	sum := 0
	weight := startWeight
	for _, c := range digits {
		sum += int(c-'0') * weight
		weight--
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

func weightedCheckDigit(digits string, weights []int) int {
	sum := 0
	for i, c := range digits {
		sum += int(c-'0') * weights[i]
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}
