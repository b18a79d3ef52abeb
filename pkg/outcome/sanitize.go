package outcome

import (
	"regexp"
	"unicode/utf8"
)

const maxSanitizedLength = 500

const redactedMark = "[REDACTED]"

// Redaction patterns, applied most-specific first so that broad digit
// patterns do not mangle the placeholders of earlier passes.
var redactions = []*regexp.Regexp{
	// email addresses
	regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	// UUIDs
	regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`),
	// IBAN-like account numbers
	regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`),
	// card-like digit groups (13-19 digits, optional separators)
	regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),
	// SIN-like 3-3-3 digit groups
	regexp.MustCompile(`\b\d{3}[ -]?\d{3}[ -]?\d{3}\b`),
	// phone numbers
	regexp.MustCompile(`\+?\d[\d().\s-]{7,}\d`),
}

// Sanitize redacts PII from raw regulator error text and truncates the result
// so it is safe to log and persist on a queue entry.
func Sanitize(text string) string {
	for _, re := range redactions {
		text = re.ReplaceAllString(text, redactedMark)
	}
	if len(text) > maxSanitizedLength {
		// Regulator text is French; never cut an accented character in half.
		cut := maxSanitizedLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
