package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remiblancher/primlab/internal/ctaudit"
	"github.com/remiblancher/primlab/internal/result"
)

var ctauditCmd = &cobra.Command{
	Use:   "ctaudit",
	Short: "Run only the constant-time audit",
	Long: `Audit every secret input of the selected backends for secret-dependent
timing (timing mode) or control flow (trace mode, instrumented backends
only). Findings are warnings; they never fail the command.

Examples:
  primlab ctaudit --primitive aes --audit timing --trials 2000
  primlab ctaudit scan ./... --dir ../mylib`,
	Args: cobra.NoArgs,
	RunE: runCTAudit,
}

var ctauditScanCmd = &cobra.Command{
	Use:   "scan [packages...]",
	Short: "Statically scan Go packages for variable-time patterns",
	Long: `Scan Go packages for comparisons of byte data with bytes.Equal or ==
and for hex formatting of values named like secrets. Results are advisory.

Packages default to ./... relative to --dir.`,
	RunE: runCTAuditScan,
}

var scanDir string

func init() {
	flags := ctauditCmd.Flags()
	addSelectionFlags(flags)
	flags.Uint64("seed", 1, "Seed for the fixed inputs and secret variants")
	flags.String("audit", "both", "Audit mode: timing, trace, both")
	flags.Int("trials", 0, "Timing trials per input class (default 1000)")
	flags.Float64("threshold", 0, "Variance ratio above which timing is flagged (default 3)")
	flags.Int("parallel", 0, "Targets audited concurrently (default 1)")

	ctauditScanCmd.Flags().StringVar(&scanDir, "dir", ".", "Directory the package patterns are relative to")

	ctauditCmd.AddCommand(ctauditScanCmd)
}

func runCTAudit(cmd *cobra.Command, args []string) error {
	s, err := openSuite(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	cfg := s.Config()
	if cfg.Audit.Mode == ctaudit.ModeOff {
		return withExitCode(exitConfigError, fmt.Errorf("audit mode is off"))
	}

	set, _, overrides, err := s.Plan()
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	a, err := ctaudit.New(cfg.Audit, ctaudit.Options{Logger: log, CaseTimeout: cfg.CaseTimeout})
	if err != nil {
		return withExitCode(exitConfigError, err)
	}

	outcome, auditErr := a.Audit(cmd.Context(), set, overrides)
	if outcome != nil {
		printAudit(cmd, outcome)
	}
	return auditErr
}

func printAudit(cmd *cobra.Command, o *ctaudit.Outcome) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Audited targets: %d\n", o.Audited)

	for _, f := range o.Findings {
		fmt.Fprintf(out, "\n⚠ %s field %q: %s\n", f.BackendID(), f.Field, f.Evidence.Kind)
		fmt.Fprintf(out, "    %s\n", f.Evidence.Detail)
		if f.Evidence.Kind == result.EvidenceTiming {
			fmt.Fprintf(out, "    Ratio: %.2f (threshold %.2f, %d trials)\n", f.Evidence.Ratio, f.Evidence.Threshold, f.Evidence.Trials)
		}
	}
	for _, e := range o.Errors {
		fmt.Fprintf(out, "\n✗ %s: %s\n", e.BackendID(), e.Detail)
	}

	if len(o.Findings) == 0 && len(o.Errors) == 0 {
		fmt.Fprintln(out, "No findings")
	} else {
		fmt.Fprintf(out, "\nFindings: %d, errors: %d\n", len(o.Findings), len(o.Errors))
	}
}

func runCTAuditScan(cmd *cobra.Command, args []string) error {
	patterns := args
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	findings, err := ctaudit.Scan(scanDir, patterns...)
	out := cmd.OutOrStdout()
	for _, f := range findings {
		fmt.Fprintln(out, f.String())
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d findings\n", len(findings))
	return nil
}
