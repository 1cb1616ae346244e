// Package normalize contains canonicalization helpers for the identifiers
// that flow through the engine: service codes (LKN), diagnosis codes (ICD),
// medication identifiers (ATC, GTIN) and free-text names.
package normalize

import (
	"regexp"
	"strings"
)

var (
	serviceCode = regexp.MustCompile(`[^A-Z0-9.]`)
	digitsOnly  = regexp.MustCompile(`[^0-9]`)
	multiSpace  = regexp.MustCompile(`\s+`)
)

// Service canonicalizes an LKN service code: trim, uppercase, and strip
// everything except letters, digits and the section dots ("C03.AH.0010").
// Returns "" if nothing is left.
func Service(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return serviceCode.ReplaceAllString(s, "")
}

// Diagnosis canonicalizes an ICD code: trim, uppercase, drop internal
// whitespace, and strip a trailing dot ("K35." → "K35").
func Diagnosis(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	return strings.TrimSuffix(s, ".")
}

// ATC canonicalizes a pharmacological class code: trim and uppercase.
func ATC(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// GTIN reduces a product identifier to its digits.
// Returns "" if the input contains no digits.
func GTIN(s string) string {
	return digitsOnly.ReplaceAllString(strings.TrimSpace(s), "")
}

// Fold lowercases and collapses whitespace, for tolerant name matching.
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return multiSpace.ReplaceAllString(s, " ")
}

// TableName canonicalizes a reference-table name: trim and uppercase.
// Table names are unique under this form.
func TableName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
