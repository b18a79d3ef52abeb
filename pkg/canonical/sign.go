package canonical

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

var (
	ErrMalformedKey         = errors.New("malformed signing key")
	ErrMalformedCertificate = errors.New("malformed certificate")
	ErrSignatureEncoding    = errors.New("signature encoding fault")
)

const (
	// SignatureLength is the base64 length of a 64-byte P1363 signature.
	SignatureLength = 88
	// FingerprintLength is the hex length of a SHA-1 certificate digest.
	FingerprintLength = 40
)

// SignedHeaders is the complete signed transmission material for one attempt.
// A fresh value is produced per attempt; it is never reused because the
// signature covers the exact bytes transmitted.
type SignedHeaders struct {
	Request     CanonicalRequest  `json:"request"`
	Signature   string            `json:"signature"`
	Fingerprint string            `json:"fingerprint"`
	Headers     map[string]string `json:"headers"`
}

// Sign builds the canonical request for (method, path, body), signs its base
// string with the profile's P-256 key, and assembles the full header map.
// Every failure here is a configuration or signing fault; callers must not
// retry and must not touch the network.
func Sign(method, path string, body []byte, p domain.DeviceProfile) (SignedHeaders, error) {
	req, err := NewCanonicalRequest(method, path, body, p)
	if err != nil {
		return SignedHeaders{}, err
	}

	key, err := parseSigningKey(p.PrivateKeyPEM)
	if err != nil {
		return SignedHeaders{}, err
	}

	sig, err := signP1363(key, []byte(req.String()))
	if err != nil {
		return SignedHeaders{}, err
	}

	fingerprint, err := CertFingerprint(p.CertificatePEM)
	if err != nil {
		return SignedHeaders{}, err
	}

	headers := map[string]string{
		HeaderEnvironment:     string(p.Environment),
		HeaderDeviceInit:      deviceInitValue,
		HeaderSoftware:        p.SoftwareID,
		HeaderSoftwareVersion: p.SoftwareVersion,
		HeaderCertificateCode: p.CertificateCode,
		HeaderPartner:         p.PartnerID,
		HeaderProtocolVersion: p.ProtocolVersion,
		HeaderPartnerVersion:  p.PartnerVersion,
		HeaderSignature:       sig,
		HeaderFingerprint:     fingerprint,
	}
	if p.ApparatusID != "" {
		headers[HeaderApparatus] = p.ApparatusID
	}
	if p.TestCaseCode != "" {
		headers[HeaderTestCase] = p.TestCaseCode
	}

	return SignedHeaders{
		Request:     req,
		Signature:   sig,
		Fingerprint: fingerprint,
		Headers:     headers,
	}, nil
}

func parseSigningKey(keyPEM string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrMalformedKey)
	}
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedKey, block.Type)
		}
		return checkCurve(key)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedKey, block.Type)
		}
		key, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an EC key", ErrMalformedKey)
		}
		return checkCurve(key)
	default:
		return nil, fmt.Errorf("%w: unexpected block %q", ErrMalformedKey, block.Type)
	}
}

func checkCurve(key *ecdsa.PrivateKey) (*ecdsa.PrivateKey, error) {
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: curve must be P-256", ErrMalformedKey)
	}
	return key, nil
}

// signP1363 signs the message with ECDSA P-256/SHA-256 and converts the DER
// SEQUENCE{r,s} into the fixed-length 64-byte r||s encoding, base64'd.
func signP1363(key *ecdsa.PrivateKey, message []byte) (string, error) {
	digest := sha256.Sum256(message)
	der, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignatureEncoding, err)
	}
	raw, err := derToP1363(der)
	if err != nil {
		return "", err
	}
	sig := base64.StdEncoding.EncodeToString(raw)
	if len(sig) != SignatureLength {
		return "", fmt.Errorf("%w: got %d base64 chars, want %d", ErrSignatureEncoding, len(sig), SignatureLength)
	}
	return sig, nil
}

func derToP1363(der []byte) ([]byte, error) {
	var sig struct {
		R *big.Int
		S *big.Int
	}
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil || len(rest) != 0 || sig.R == nil || sig.S == nil {
		return nil, fmt.Errorf("%w: bad DER sequence", ErrSignatureEncoding)
	}
	if sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive integer", ErrSignatureEncoding)
	}
	if sig.R.BitLen() > 256 || sig.S.BitLen() > 256 {
		return nil, fmt.Errorf("%w: integer exceeds 32 bytes", ErrSignatureEncoding)
	}
	out := make([]byte, 64)
	sig.R.FillBytes(out[:32])
	sig.S.FillBytes(out[32:])
	return out, nil
}

// CertFingerprint extracts the DER body of a PEM certificate and returns its
// SHA-1 digest as 40 lowercase hex characters.
func CertFingerprint(certPEM string) (string, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil || block.Type != "CERTIFICATE" {
		return "", fmt.Errorf("%w: no CERTIFICATE block", ErrMalformedCertificate)
	}
	sum := sha1.Sum(block.Bytes)
	fp := hex.EncodeToString(sum[:])
	if len(fp) != FingerprintLength {
		return "", fmt.Errorf("%w: fingerprint length %d", ErrMalformedCertificate, len(fp))
	}
	return fp, nil
}
