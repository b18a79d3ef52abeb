package outcome

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeRedactsPII(t *testing.T) {
	cases := []struct {
		name string
		in   string
		leak string
	}{
		{"email", "contact jean.tremblay@example.com for details", "jean.tremblay@example.com"},
		{"phone", "call +1 514-555-0182 now", "514-555-0182"},
		{"card", "card 4242 4242 4242 4242 declined", "4242 4242 4242 4242"},
		{"uuid", "entry 6ba7b810-9dad-11d1-80b4-00c04fd430c8 failed", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"iban", "account DE89370400440532013000 rejected", "DE89370400440532013000"},
		{"sin", "sin 046 454 286 on file", "046 454 286"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Sanitize(tc.in)
			if strings.Contains(got, tc.leak) {
				t.Fatalf("expected %q to be redacted, got %q", tc.leak, got)
			}
			if !strings.Contains(got, redactedMark) {
				t.Fatalf("expected redaction marker in %q", got)
			}
		})
	}
}

func TestSanitizeTruncates(t *testing.T) {
	long := strings.Repeat("x", 2000)
	got := Sanitize(long)
	if len(got) != maxSanitizedLength {
		t.Fatalf("length %d, want %d", len(got), maxSanitizedLength)
	}
	if got != long[:maxSanitizedLength] {
		t.Fatalf("truncation must keep the prefix")
	}
}

func TestSanitizeTruncatesOnRuneBoundary(t *testing.T) {
	// 499 ASCII bytes followed by é (2 bytes) puts the byte cap mid-rune.
	long := strings.Repeat("x", 499) + strings.Repeat("é", 300)
	got := Sanitize(long)
	if len(got) != 499 {
		t.Fatalf("length %d, want 499 (trimmed back to the rune boundary)", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("sanitized text is not valid UTF-8: %q", got[len(got)-4:])
	}

	aligned := strings.Repeat("é", 250) + strings.Repeat("x", 100)
	got = Sanitize(aligned)
	if len(got) != maxSanitizedLength || !utf8.ValidString(got) {
		t.Fatalf("aligned multi-byte text: len=%d valid=%v", len(got), utf8.ValidString(got))
	}
}

func TestSanitizeKeepsOrdinaryText(t *testing.T) {
	in := "entete ENVIRN manquante"
	if got := Sanitize(in); got != in {
		t.Fatalf("ordinary text must pass through unchanged, got %q", got)
	}
}
