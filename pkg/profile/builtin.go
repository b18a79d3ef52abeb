package profile

import "github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"

// Builtin returns the fixed fallback identity for an environment, used when
// the durable store has no active profile for a device. Key and certificate
// material is deployment-supplied; identifiers are the registered constants
// for this software.
func Builtin(env domain.Environment, privateKeyPEM, certificatePEM string) domain.DeviceProfile {
	p := domain.DeviceProfile{
		Environment:     env,
		PartnerID:       "0000-0000-00",
		SoftwareID:      "00000000",
		SoftwareVersion: "1.0.0",
		CertificateCode: "FOB201999999",
		ProtocolVersion: "A",
		PartnerVersion:  "A",
		PrivateKeyPEM:   privateKeyPEM,
		CertificatePEM:  certificatePEM,
		Active:          true,
	}
	if env == domain.EnvEssai {
		p.TestCaseCode = "000.000"
	}
	return p
}
