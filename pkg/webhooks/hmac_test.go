package webhooks

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

const testSecret = "pos-shared-secret"

func TestVerifyAcceptsFreshSignature(t *testing.T) {
	now := time.Now()
	body := []byte(`{"no_trans":"1"}`)
	h := http.Header{}
	h.Set(SignatureHeader, Sign(testSecret, body, now))
	h.Set(DeviceHeader, "d1")

	res, err := NewVerifier().Verify(h, body, now, testSecret)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid, details: %v", res.Details)
	}
	if res.DeviceID != "d1" {
		t.Fatalf("DeviceID = %q, want d1", res.DeviceID)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	now := time.Now()
	h := http.Header{}
	h.Set(SignatureHeader, Sign(testSecret, []byte(`{"a":1}`), now))

	res, err := NewVerifier().Verify(h, []byte(`{"a":2}`), now, testSecret)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Valid {
		t.Fatal("expected invalid for tampered body")
	}
	if res.Details["reason"] != "signature mismatch" {
		t.Fatalf("unexpected reason: %v", res.Details)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	now := time.Now()
	body := []byte(`{}`)
	h := http.Header{}
	h.Set(SignatureHeader, Sign(testSecret, body, now.Add(-10*time.Minute)))

	res, err := NewVerifier().Verify(h, body, now, testSecret)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Valid || res.Details["reason"] != "timestamp outside tolerance" {
		t.Fatalf("expected stale rejection, got: %v", res.Details)
	}
}

func TestVerifyMalformedHeaders(t *testing.T) {
	cases := map[string]string{
		"missing":       "",
		"no pairs":      "garbage",
		"no timestamp":  "v1=" + strings.Repeat("ab", 32),
		"no signature":  "t=1700000000",
		"bad timestamp": "t=soon,v1=" + strings.Repeat("ab", 32),
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			h := http.Header{}
			if value != "" {
				h.Set(SignatureHeader, value)
			}
			res, err := NewVerifier().Verify(h, []byte(`{}`), time.Now(), testSecret)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if res.Valid {
				t.Fatal("expected invalid")
			}
		})
	}
}

func TestVerifyRequiresSecret(t *testing.T) {
	if _, err := NewVerifier().Verify(http.Header{}, nil, time.Now(), " "); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
