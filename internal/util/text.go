package util

import "strings"

// SanitizePostgresText strips invalid UTF-8 sequences and NUL bytes, which
// Postgres text columns reject.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// NormalizeSpace collapses runs of whitespace to single spaces and trims
// the ends.
func NormalizeSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
