package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/profile"
)

// ProfileStore reads device enrolments from postgres. Key and certificate
// columns hold the packed iv:tag:ciphertext encryption envelope; decryption
// happens in the resolver, never here.
type ProfileStore struct {
	DB *pgxpool.Pool
}

func NewProfileStore(db *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{DB: db}
}

func (s *ProfileStore) ActiveProfile(ctx context.Context, scope domain.DeviceScope, env domain.Environment) (profile.Record, error) {
	var rec profile.Record
	err := s.DB.QueryRow(ctx, `
SELECT partner_id, software_id, software_version, certificate_code,
       protocol_version, partner_version,
       COALESCE(apparatus_id,''), COALESCE(test_case_code,''),
       encrypted_private_key, encrypted_certificate
FROM srm_device_profiles
WHERE tenant_id=$1 AND branch_id=$2 AND device_id=$3 AND environment=$4 AND active
`, scope.TenantID, scope.BranchID, scope.DeviceID, string(env)).Scan(
		&rec.Profile.PartnerID, &rec.Profile.SoftwareID, &rec.Profile.SoftwareVersion, &rec.Profile.CertificateCode,
		&rec.Profile.ProtocolVersion, &rec.Profile.PartnerVersion,
		&rec.Profile.ApparatusID, &rec.Profile.TestCaseCode,
		&rec.EncryptedPrivateKey, &rec.EncryptedCertificate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Record{}, profile.ErrMissingCredential
	}
	if err != nil {
		return profile.Record{}, fmt.Errorf("query device profile: %w", err)
	}
	rec.Profile.TenantID = scope.TenantID
	rec.Profile.BranchID = scope.BranchID
	rec.Profile.DeviceID = scope.DeviceID
	rec.Profile.Environment = env
	rec.Profile.Active = true
	return rec, nil
}
