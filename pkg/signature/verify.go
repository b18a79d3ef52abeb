// Package signature verifies transmission signatures and certificate
// fingerprints the way the regulator does on receipt. The delivery path only
// signs; this package exists for certification tooling and tests that need to
// prove a signed request would be accepted.
package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"math/big"
	"strings"
)

var (
	ErrInvalidEncoding  = errors.New("invalid signature encoding")
	ErrInvalidSignature = errors.New("signature verification failed")
	ErrCertificate      = errors.New("invalid certificate")
)

// VerifyTransmission checks a SIGNATRANSM value against the canonical request
// string and the transmitting certificate. The signature must be the 88
// character base64 form of a 64 byte P1363 r||s pair over SHA-256 of the
// canonical string.
func VerifyTransmission(certPEM, canonicalString, signatureB64 string) error {
	pub, err := certPublicKey(certPEM)
	if err != nil {
		return err
	}

	if len(signatureB64) != 88 {
		return ErrInvalidEncoding
	}
	raw, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil || len(raw) != 64 {
		return ErrInvalidEncoding
	}
	r := new(big.Int).SetBytes(raw[:32])
	s := new(big.Int).SetBytes(raw[32:])
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return ErrInvalidEncoding
	}

	digest := sha256.Sum256([]byte(canonicalString))
	if !ecdsa.Verify(pub, digest[:], r, s) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyFingerprint checks an EMPRCERTIFTRANSM value: 40 lowercase hex
// characters of the SHA-1 digest of the certificate's DER bytes.
func VerifyFingerprint(certPEM, fingerprintHex string) error {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil || block.Type != "CERTIFICATE" {
		return ErrCertificate
	}
	if len(fingerprintHex) != 40 || fingerprintHex != strings.ToLower(fingerprintHex) {
		return ErrInvalidEncoding
	}
	provided, err := hex.DecodeString(fingerprintHex)
	if err != nil {
		return ErrInvalidEncoding
	}
	sum := sha1.Sum(block.Bytes)
	if subtle.ConstantTimeCompare(sum[:], provided) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func certPublicKey(certPEM string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, ErrCertificate
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, ErrCertificate
	}
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, ErrCertificate
	}
	return pub, nil
}
