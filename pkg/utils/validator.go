package utils

import (
	"fmt"
	"math"
	"regexp"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	nonDigits    = regexp.MustCompile(`\D`)
)

// ValidateAmount validates a budget line price
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("amount is not a number: %v", amount)
	}

	if amount < 0 {
		return fmt.Errorf("amount must not be negative: %.2f", amount)
	}

	if amount > 10_000_000 {
		return fmt.Errorf("amount exceeds maximum limit: %.2f", amount)
	}

	return nil
}

// ValidateCNPJ validates a Brazilian company registration number, formatted
// (12.345.678/0001-95) or bare
func ValidateCNPJ(cnpj string) error {
	digits := nonDigits.ReplaceAllString(cnpj, "")
	if len(digits) != 14 {
		return fmt.Errorf("CNPJ must have 14 digits: %s", cnpj)
	}

	allSame := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("invalid CNPJ: %s", cnpj)
	}

	if cnpjCheckDigit(digits[:12]) != digits[12] || cnpjCheckDigit(digits[:13]) != digits[13] {
		return fmt.Errorf("invalid CNPJ check digits: %s", cnpj)
	}

	return nil
}

func cnpjCheckDigit(base string) byte {
	weight := len(base) - 7
	sum := 0
	for i := 0; i < len(base); i++ {
		sum += int(base[i]-'0') * weight
		weight--
		if weight < 2 {
			weight = 9
		}
	}
	rem := sum % 11
	if rem < 2 {
		return '0'
	}
	return byte('0' + 11 - rem)
}

// SanitizeString removes control characters, keeping tabs and line breaks
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
