// Package webhooks authenticates inbound point-of-sale requests. A POS signs
// each enqueue body with a shared secret; the delivery service verifies the
// signature and its timestamp before accepting the transaction.
package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// SignatureHeader carries "t=<unix>,v1=<hex hmac>" computed over
	// "<unix>.<raw body>".
	SignatureHeader = "X-Srm-Signature"
	DeviceHeader    = "X-Srm-Device"

	Scheme = "srm-hmac-sha256/v1"

	// DefaultTolerance bounds replay of captured requests.
	DefaultTolerance = 5 * time.Minute
)

type VerificationResult struct {
	Valid    bool           `json:"valid"`
	Scheme   string         `json:"scheme"`
	DeviceID string         `json:"device_id,omitempty"`
	Details  map[string]any `json:"details"`
}

type Verifier struct {
	Tolerance time.Duration
}

func NewVerifier() *Verifier {
	return &Verifier{Tolerance: DefaultTolerance}
}

// Verify checks the signature header against the raw body. It never returns
// an error for an invalid signature; Valid is false and Details says why.
// Errors are reserved for caller misuse, like an empty secret.
func (v *Verifier) Verify(headers http.Header, rawBody []byte, receivedAt time.Time, secret string) (VerificationResult, error) {
	if strings.TrimSpace(secret) == "" {
		return VerificationResult{}, fmt.Errorf("webhook verifier secret is empty")
	}

	res := VerificationResult{
		Scheme:   Scheme,
		DeviceID: strings.TrimSpace(headers.Get(DeviceHeader)),
		Details: map[string]any{
			"signature_header_present": false,
			"timestamp_in_tolerance":   false,
		},
	}

	raw := strings.TrimSpace(headers.Get(SignatureHeader))
	if raw == "" {
		return res, nil
	}
	res.Details["signature_header_present"] = true

	ts, sigHex, ok := splitSignature(raw)
	if !ok {
		res.Details["reason"] = "malformed signature header"
		return res, nil
	}

	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	issued := time.Unix(ts, 0)
	drift := receivedAt.Sub(issued)
	if drift < -tolerance || drift > tolerance {
		res.Details["reason"] = "timestamp outside tolerance"
		return res, nil
	}
	res.Details["timestamp_in_tolerance"] = true

	provided, err := hex.DecodeString(sigHex)
	if err != nil {
		res.Details["reason"] = "signature not hex"
		return res, nil
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(rawBody)
	res.Valid = hmac.Equal(mac.Sum(nil), provided)
	if !res.Valid {
		res.Details["reason"] = "signature mismatch"
	}
	return res, nil
}

// Sign produces the header value for a body. POS SDKs and tests use it.
func Sign(secret string, body []byte, issuedAt time.Time) string {
	ts := issuedAt.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func splitSignature(raw string) (ts int64, sigHex string, ok bool) {
	for _, part := range strings.Split(raw, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, "", false
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, "", false
			}
			ts = n
		case "v1":
			sigHex = v
		}
	}
	return ts, sigHex, ts != 0 && sigHex != ""
}
