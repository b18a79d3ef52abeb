// Package profile resolves the signing identity for a device scope: durable
// store first, built-in fallback second. Profiles are written by the external
// enrollment process; this package only reads and validates them.
package profile

import (
	"context"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

var (
	ErrMissingCredential = errors.New("no signing credential for device")
	ErrInvalidProfile    = errors.New("invalid device profile")
)

// Record is a stored profile row with its credential fields still encrypted.
type Record struct {
	Profile              domain.DeviceProfile
	EncryptedPrivateKey  string
	EncryptedCertificate string
}

// Source is the durable profile store contract. Implementations return
// ErrMissingCredential when no active profile exists for the scope.
type Source interface {
	ActiveProfile(ctx context.Context, scope domain.DeviceScope, env domain.Environment) (Record, error)
}

type Resolver struct {
	source    Source
	key       []byte
	env       domain.Environment
	fallbacks map[domain.Environment]domain.DeviceProfile
	log       *slog.Logger
}

// NewResolver builds a read-only resolver. source may be nil when only the
// fallback profiles are available (local development).
func NewResolver(source Source, key []byte, env domain.Environment, fallbacks map[domain.Environment]domain.DeviceProfile) (*Resolver, error) {
	if !env.Valid() {
		return nil, fmt.Errorf("%w: environment %q", ErrInvalidProfile, env)
	}
	if source != nil && len(key) != gcmKeySize {
		return nil, fmt.Errorf("%w: credential key must be %d bytes", ErrInvalidProfile, gcmKeySize)
	}
	return &Resolver{
		source:    source,
		key:       key,
		env:       env,
		fallbacks: fallbacks,
		log:       slog.Default().With("component", "profile"),
	}, nil
}

// Resolve returns the active signing profile for a device scope. Store
// lookups that fail or come back empty fall through to the environment's
// built-in profile; if neither source yields one, ErrMissingCredential.
func (r *Resolver) Resolve(ctx context.Context, tenantID, branchID, deviceID string) (domain.DeviceProfile, error) {
	scope := domain.DeviceScope{TenantID: tenantID, BranchID: branchID, DeviceID: deviceID}

	if r.source != nil {
		rec, err := r.source.ActiveProfile(ctx, scope, r.env)
		switch {
		case err == nil:
			p, decErr := r.decrypt(rec)
			if decErr != nil {
				return domain.DeviceProfile{}, decErr
			}
			if valErr := Validate(p); valErr != nil {
				return domain.DeviceProfile{}, valErr
			}
			return p, nil
		case errors.Is(err, ErrMissingCredential):
			// fall through to builtin
		default:
			r.log.WarnContext(ctx, "profile store lookup failed, using fallback",
				"scope", scope.Key(), "error", err.Error())
		}
	}

	fb, ok := r.fallbacks[r.env]
	if !ok {
		return domain.DeviceProfile{}, fmt.Errorf("%w: %s (%s)", ErrMissingCredential, scope.Key(), r.env)
	}
	fb.TenantID, fb.BranchID, fb.DeviceID = tenantID, branchID, deviceID
	if err := Validate(fb); err != nil {
		return domain.DeviceProfile{}, err
	}
	return fb, nil
}

func (r *Resolver) decrypt(rec Record) (domain.DeviceProfile, error) {
	p := rec.Profile
	keyPEM, err := DecryptField(r.key, rec.EncryptedPrivateKey)
	if err != nil {
		return domain.DeviceProfile{}, err
	}
	certPEM, err := DecryptField(r.key, rec.EncryptedCertificate)
	if err != nil {
		return domain.DeviceProfile{}, err
	}
	p.PrivateKeyPEM = keyPEM
	p.CertificatePEM = certPEM
	return p, nil
}

// Validate checks the invariants every resolved profile must satisfy before
// it may sign: recognized environment, non-empty ASCII identifiers, a PEM
// private key, a PEM certificate.
func Validate(p domain.DeviceProfile) error {
	if !p.Environment.Valid() {
		return fmt.Errorf("%w: environment %q", ErrInvalidProfile, p.Environment)
	}
	required := map[string]string{
		"partner_id":       p.PartnerID,
		"software_id":      p.SoftwareID,
		"software_version": p.SoftwareVersion,
		"certificate_code": p.CertificateCode,
		"protocol_version": p.ProtocolVersion,
		"partner_version":  p.PartnerVersion,
	}
	for name, v := range required {
		if v == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidProfile, name)
		}
		if !isASCII(v) {
			return fmt.Errorf("%w: %s is not ascii", ErrInvalidProfile, name)
		}
	}
	for name, v := range map[string]string{"apparatus_id": p.ApparatusID, "test_case_code": p.TestCaseCode} {
		if !isASCII(v) {
			return fmt.Errorf("%w: %s is not ascii", ErrInvalidProfile, name)
		}
	}
	if err := checkPEM(p.PrivateKeyPEM, "EC PRIVATE KEY", "PRIVATE KEY"); err != nil {
		return fmt.Errorf("%w: private key: %v", ErrInvalidProfile, err)
	}
	if err := checkPEM(p.CertificatePEM, "CERTIFICATE"); err != nil {
		return fmt.Errorf("%w: certificate: %v", ErrInvalidProfile, err)
	}
	return nil
}

func checkPEM(material string, acceptedTypes ...string) error {
	block, _ := pem.Decode([]byte(material))
	if block == nil {
		return errors.New("not PEM encoded")
	}
	for _, t := range acceptedTypes {
		if block.Type == t {
			return nil
		}
	}
	return fmt.Errorf("unexpected PEM block %q", block.Type)
}

func isASCII(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r > 127 }) < 0
}
