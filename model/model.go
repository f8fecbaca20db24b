package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateUUIDWithSuffix generates a UUID prefixed with a module name.
// This keeps identifiers self-describing (wdl_..., lde_..., aud_...).
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// FormatBRL renders a decimal amount in Brazilian currency notation,
// e.g. 10 -> "R$ 10,00" and 1234.5 -> "R$ 1.234,50". User-facing
// validation messages depend on this exact formatting.
func FormatBRL(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2) // "-1234.50"
	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	parts := strings.SplitN(fixed, ".", 2)
	intPart, decPart := parts[0], parts[1]

	// Group the integer part with dots every three digits.
	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, grouped.String(), decPart)
}

// DigitsOnly strips every non-digit rune from s. Fiscal identifiers
// arrive formatted ("12.345.678/0001-99") and are stored clean.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
