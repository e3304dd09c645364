package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/primlab/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Verify, render and seal reports",
	Long: `Work with run reports.

Examples:
  # Create a sealing key pair: report-key.pem and report-key.pub.pem
  primlab report keygen --out report-key

  # Verify a sealed report and print it
  primlab report verify report.json.cose --pub report-key.pub.pem

  # Render a JSON report as text
  primlab report render report.json --format text`,
}

var reportVerifyCmd = &cobra.Command{
	Use:   "verify <sealed-report>",
	Short: "Verify a COSE_Sign1 sealed report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportVerify,
}

var reportRenderCmd = &cobra.Command{
	Use:   "render <report>",
	Short: "Re-encode a JSON, YAML or CBOR report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportRender,
}

var reportKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an Ed25519 report sealing key pair",
	Args:  cobra.NoArgs,
	RunE:  runReportKeygen,
}

var (
	verifyPub    string
	verifyFormat string
	renderFormat string
	keygenOut    string
)

func init() {
	reportVerifyCmd.Flags().StringVar(&verifyPub, "pub", "", "Ed25519 PEM public key (required)")
	reportVerifyCmd.Flags().StringVarP(&verifyFormat, "format", "f", "", "Also print the report in this format")
	_ = reportVerifyCmd.MarkFlagRequired("pub")

	reportRenderCmd.Flags().StringVarP(&renderFormat, "format", "f", "text", "Output format: text, json, yaml, cbor")

	reportKeygenCmd.Flags().StringVar(&keygenOut, "out", "report-key", "Key file prefix")

	reportCmd.AddCommand(reportVerifyCmd)
	reportCmd.AddCommand(reportRenderCmd)
	reportCmd.AddCommand(reportKeygenCmd)
}

func runReportVerify(cmd *cobra.Command, args []string) error {
	sealed, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read sealed report: %w", err)
	}
	pub, err := report.LoadPublicKey(verifyPub)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	r, err := report.Open(sealed, pub)
	if err != nil {
		fmt.Fprintln(out, "VERIFICATION FAILED")
		fmt.Fprintf(out, "  Error: %v\n", err)
		return fmt.Errorf("seal verification failed: %w", err)
	}

	fmt.Fprintln(out, "VERIFICATION PASSED")
	fmt.Fprintf(out, "  Key ID:  %s\n", hex.EncodeToString(report.KeyID(pub)))
	fmt.Fprintf(out, "  Run ID:  %s\n", r.RunID)
	fmt.Fprintf(out, "  Status:  %s\n", r.Status)
	fmt.Fprintf(out, "  Seed:    %d\n", r.Seed)

	if verifyFormat == "" {
		return nil
	}
	f, err := report.ParseFormat(verifyFormat)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	return report.Encode(out, r, f)
}

func runReportRender(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	r, err := report.Unmarshal(data, report.FormatFromPath(args[0]))
	if err != nil {
		return err
	}
	f, err := report.ParseFormat(renderFormat)
	if err != nil {
		return err
	}
	return report.Encode(cmd.OutOrStdout(), r, f)
}

func runReportKeygen(cmd *cobra.Command, args []string) error {
	pub, priv, err := report.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	privPEM, err := report.EncodePrivateKeyPEM(priv)
	if err != nil {
		return err
	}
	pubPEM, err := report.EncodePublicKeyPEM(pub)
	if err != nil {
		return err
	}

	privPath, pubPath := keygenOut+".pem", keygenOut+".pub.pem"
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Private key: %s\n", privPath)
	fmt.Fprintf(out, "Public key:  %s\n", pubPath)
	fmt.Fprintf(out, "Key ID:      %s\n", hex.EncodeToString(report.KeyID(pub)))
	return nil
}
