// Package verification derives the customer-facing receipt verification URL
// from a confirmed transaction's transmission signature.
package verification

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

var (
	ErrInvalidSignatureLength = errors.New("signature must be exactly 88 base64 characters")
	ErrInvalidSignatureChars  = errors.New("signature contains non-base64 characters")
)

const signatureLength = 88

// BuildURL produces `{base}?no=..&dt=..&tot=..&sig=..` with the transmission
// signature converted to unpadded URL-safe base64.
func BuildURL(baseURL string, tx domain.TransactionSummary, signature string) (string, error) {
	encoded, err := EncodeSignature(signature)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("no", tx.TransactionID)
	q.Set("dt", tx.Date)
	q.Set("tot", tx.Total)
	q.Set("sig", encoded)
	return baseURL + "?" + q.Encode(), nil
}

// EncodeSignature validates an 88-character standard-base64 signature and
// rewrites it URL-safe: `+`→`-`, `/`→`_`, padding stripped.
func EncodeSignature(signature string) (string, error) {
	if len(signature) != signatureLength {
		return "", fmt.Errorf("%w: got %d", ErrInvalidSignatureLength, len(signature))
	}
	for i := 0; i < len(signature); i++ {
		c := signature[i]
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '+' || c == '/' || c == '=') {
			return "", ErrInvalidSignatureChars
		}
	}
	encoded := strings.NewReplacer("+", "-", "/", "_").Replace(signature)
	return strings.TrimRight(encoded, "="), nil
}
