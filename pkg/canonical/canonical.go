package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

var (
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrInvalidPath      = errors.New("invalid request path")
	ErrNonASCII         = errors.New("non-ascii header value")
	ErrEmptyHeader      = errors.New("empty required header")
)

// Protocol header names, literal per the WEB-SRM transmission contract.
const (
	HeaderApparatus       = "IDAPPRL"
	HeaderSoftware        = "IDSEV"
	HeaderSoftwareVersion = "IDVERSI"
	HeaderCertificateCode = "CODCERTIF"
	HeaderPartner         = "IDPARTN"
	HeaderProtocolVersion = "VERSI"
	HeaderPartnerVersion  = "VERSIPARN"
	HeaderEnvironment     = "ENVIRN"
	HeaderTestCase        = "CASESSAI"
	HeaderDeviceInit      = "APPRLINIT"
	HeaderSignature       = "SIGNATRANSM"
	HeaderFingerprint     = "EMPRCERTIFTRANSM"
)

// deviceInitValue marks the transmitter as a server-side recording system.
const deviceInitValue = "SRV"

type HeaderPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CanonicalRequest is the deterministic signing input for one transmission
// attempt. Header pairs carry a fixed order; the struct is built once per
// attempt and never mutated.
type CanonicalRequest struct {
	Method   string       `json:"method"`
	Path     string       `json:"path"`
	BodyHash string       `json:"body_hash"`
	Headers  []HeaderPair `json:"headers"`
}

// NewCanonicalRequest validates inputs and assembles the ordered header-pair
// list: IDAPPRL first when present, the seven required pairs in protocol
// order, CASESSAI last when present.
func NewCanonicalRequest(method, path string, body []byte, p domain.DeviceProfile) (CanonicalRequest, error) {
	if method != "POST" {
		return CanonicalRequest{}, fmt.Errorf("%w: %q", ErrMethodNotAllowed, method)
	}
	if !strings.HasPrefix(path, "/") {
		return CanonicalRequest{}, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if !isASCII(path) {
		return CanonicalRequest{}, fmt.Errorf("%w: path", ErrNonASCII)
	}

	required := []HeaderPair{
		{HeaderSoftware, p.SoftwareID},
		{HeaderSoftwareVersion, p.SoftwareVersion},
		{HeaderCertificateCode, p.CertificateCode},
		{HeaderPartner, p.PartnerID},
		{HeaderProtocolVersion, p.ProtocolVersion},
		{HeaderPartnerVersion, p.PartnerVersion},
		{HeaderEnvironment, string(p.Environment)},
	}

	pairs := make([]HeaderPair, 0, len(required)+2)
	if p.ApparatusID != "" {
		pairs = append(pairs, HeaderPair{HeaderApparatus, p.ApparatusID})
	}
	pairs = append(pairs, required...)
	if p.TestCaseCode != "" {
		pairs = append(pairs, HeaderPair{HeaderTestCase, p.TestCaseCode})
	}

	for _, hp := range pairs {
		if !isASCII(hp.Value) {
			return CanonicalRequest{}, fmt.Errorf("%w: %s", ErrNonASCII, hp.Name)
		}
	}
	for _, hp := range required {
		if hp.Value == "" {
			return CanonicalRequest{}, fmt.Errorf("%w: %s", ErrEmptyHeader, hp.Name)
		}
	}

	return CanonicalRequest{
		Method:   method,
		Path:     path,
		BodyHash: HashBody(body),
		Headers:  pairs,
	}, nil
}

// String renders the canonical base string: exactly four lines joined by
// three newlines, header pairs joined by semicolons, no trailing newline.
func (c CanonicalRequest) String() string {
	var b strings.Builder
	b.WriteString(c.Method)
	b.WriteByte('\n')
	b.WriteString(c.Path)
	b.WriteByte('\n')
	b.WriteString(c.BodyHash)
	b.WriteByte('\n')
	for i, hp := range c.Headers {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(hp.Name)
		b.WriteByte('=')
		b.WriteString(hp.Value)
	}
	return b.String()
}

// HashBody returns the lowercase hex SHA-256 of the UTF-8 body bytes.
func HashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
