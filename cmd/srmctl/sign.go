package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/canonical"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

// NewSignCommand signs a transaction document locally without sending it.
// Used during certification to compare signatures against expected values.
func NewSignCommand() *cobra.Command {
	var (
		keyPath  string
		certPath string
		path     string
		env      string

		partnerID       string
		softwareID      string
		softwareVersion string
		certificateCode string
		protocolVersion string
		partnerVersion  string
		apparatusID     string
		testCaseCode    string
	)
	cmd := &cobra.Command{
		Use:   "sign <payload-file>",
		Short: "Sign a transaction document and print the wire headers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			keyPEM, err := os.ReadFile(keyPath)
			if err != nil {
				return fmt.Errorf("read key: %w", err)
			}
			certPEM, err := os.ReadFile(certPath)
			if err != nil {
				return fmt.Errorf("read certificate: %w", err)
			}

			prof := domain.DeviceProfile{
				Environment:     domain.Environment(env),
				PartnerID:       partnerID,
				SoftwareID:      softwareID,
				SoftwareVersion: softwareVersion,
				CertificateCode: certificateCode,
				ProtocolVersion: protocolVersion,
				PartnerVersion:  partnerVersion,
				ApparatusID:     apparatusID,
				TestCaseCode:    testCaseCode,
				PrivateKeyPEM:   string(keyPEM),
				CertificatePEM:  string(certPEM),
			}
			signed, err := canonical.Sign("POST", path, payload, prof)
			if err != nil {
				return err
			}

			out := map[string]any{
				"canonical": signed.Request.String(),
				"signature": signed.Signature,
				"headers":   signed.Headers,
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "PEM private key file")
	cmd.Flags().StringVar(&certPath, "cert", "", "PEM certificate file")
	cmd.Flags().StringVar(&path, "path", "/transactions", "request path")
	cmd.Flags().StringVar(&env, "env", "ESSAI", "target environment (DEV|ESSAI|PROD)")
	cmd.Flags().StringVar(&partnerID, "partner-id", "", "IDPARTN header value")
	cmd.Flags().StringVar(&softwareID, "software-id", "", "IDSEV header value")
	cmd.Flags().StringVar(&softwareVersion, "software-version", "", "IDVERSI header value")
	cmd.Flags().StringVar(&certificateCode, "certificate-code", "", "CODCERTIF header value")
	cmd.Flags().StringVar(&protocolVersion, "protocol-version", "", "VERSI header value")
	cmd.Flags().StringVar(&partnerVersion, "partner-version", "", "VERSIPARN header value")
	cmd.Flags().StringVar(&apparatusID, "apparatus-id", "", "IDAPPRL header value")
	cmd.Flags().StringVar(&testCaseCode, "test-case", "", "CASESSAI header value")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("cert")
	return cmd
}
