package domain

import "time"

type Environment string

const (
	EnvDev   Environment = "DEV"
	EnvEssai Environment = "ESSAI"
	EnvProd  Environment = "PROD"
)

func (e Environment) Valid() bool {
	switch e {
	case EnvDev, EnvEssai, EnvProd:
		return true
	}
	return false
}

// DeviceScope identifies one independent FIFO ordering domain: a single
// registered sales-recording device of one branch of one tenant.
type DeviceScope struct {
	TenantID string `json:"tenant_id"`
	BranchID string `json:"branch_id"`
	DeviceID string `json:"device_id"`
}

func (s DeviceScope) Key() string {
	return s.TenantID + "/" + s.BranchID + "/" + s.DeviceID
}

// DeviceProfile is the signing identity for one device. It is written by the
// enrollment process and rotated on certificate renewal; the adapter only
// reads it.
type DeviceProfile struct {
	TenantID    string      `json:"tenant_id"`
	BranchID    string      `json:"branch_id"`
	DeviceID    string      `json:"device_id"`
	Environment Environment `json:"environment"`

	PartnerID       string `json:"partner_id"`        // IDPARTN
	SoftwareID      string `json:"software_id"`       // IDSEV
	SoftwareVersion string `json:"software_version"`  // IDVERSI
	CertificateCode string `json:"certificate_code"`  // CODCERTIF
	ProtocolVersion string `json:"protocol_version"`  // VERSI
	PartnerVersion  string `json:"partner_version"`   // VERSIPARN
	ApparatusID     string `json:"apparatus_id"`      // IDAPPRL, optional
	TestCaseCode    string `json:"test_case_code"`    // CASESSAI, optional

	PrivateKeyPEM  string `json:"-"`
	CertificatePEM string `json:"-"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (p DeviceProfile) Scope() DeviceScope {
	return DeviceScope{TenantID: p.TenantID, BranchID: p.BranchID, DeviceID: p.DeviceID}
}
