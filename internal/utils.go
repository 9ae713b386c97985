package internal

import (
	"strings"
	"unicode"
)

// Version is the k2a release version, overridden at build time via -ldflags.
var Version = "0.3.0"

// SanitizeFilename creates a safe filename from a string. Letters and digits
// of any script are kept so Japanese deck names survive.
func SanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isAlphaNumeric(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// isAlphaNumeric checks if a rune is a letter or digit in any script
func isAlphaNumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
