package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/primlab/internal/config"
	"github.com/remiblancher/primlab/internal/logging"
	"github.com/remiblancher/primlab/internal/report"
	"github.com/remiblancher/primlab/internal/suite"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the verification pipeline",
	Long: `Run known-answer vectors, randomized equivalence checks and the
constant-time audit over every selected backend, then write the report.

The exit status is 0 for a Green report, 1 for a Red report, 2 for a
configuration error and, with --strict, 3 for a Yellow report.

Examples:
  # Everything, text report on stdout
  primlab run

  # Hash primitives only, no timing audit, JSON report
  primlab run --primitive sha256,sha3-256 --audit off --format json

  # Reproduce a run and seal its report
  primlab run --seed 42 --output report.cbor --format cbor --sign-key key.pem

  # Record the run in a journal
  primlab run --journal primlab.jsonl`,
	RunE: runRun,
}

var runStrict bool

func init() {
	flags := runCmd.Flags()
	addSelectionFlags(flags)
	flags.Uint64("seed", 1, "Seed for randomized inputs and the timing audit")
	flags.Int("random-inputs", config.DefaultRandomInputs, "Randomized inputs per primitive")
	flags.Int("workers", 0, "Concurrent cases (default: GOMAXPROCS)")
	flags.Duration("case-timeout", 0, "Timeout of a single case (default 5s)")
	flags.String("audit", "both", "Constant-time audit mode: off, timing, trace, both")
	flags.Int("trials", 0, "Timing trials per input class (default 1000)")
	flags.Float64("threshold", 0, "Variance ratio above which timing is flagged (default 3)")
	flags.Int("parallel", 0, "Targets audited concurrently (default 1)")
	flags.String("journal", "", "Append run events to this journal file")
	flags.StringP("format", "f", "text", "Report format: text, json, yaml, cbor")
	flags.StringP("output", "o", "", "Report file (default: stdout)")
	flags.String("sign-key", "", "Ed25519 PEM private key; seals the report to <output>.cose")
	flags.BoolVar(&runStrict, "strict", false, "Treat a Yellow report as a failure")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	if cfg.Report.SignKey != "" && (cfg.Report.Output == "" || cfg.Report.Output == "-") {
		return withExitCode(exitConfigError, errors.New("--sign-key requires --output"))
	}
	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		return withExitCode(exitConfigError, err)
	}

	ctx := cmd.Context()
	s, cleanup, err := newJournaledSuite(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	out, runErr := s.Run(ctx)
	if out == nil {
		return runErr
	}
	if err := writeOutcome(cmd, cfg, out, format); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	switch r := out.Report; {
	case r.Status == report.Red:
		return withExitCode(exitRed, fmt.Errorf("run %s is red: %d failed, %d errors, %d equivalence findings",
			r.RunID, r.Summary.Fail, r.Summary.Error, r.Summary.Equivalence))
	case r.Status == report.Yellow && runStrict:
		return withExitCode(exitYellow, fmt.Errorf("run %s is yellow: %d timing findings", r.RunID, r.Summary.Timing))
	}
	return nil
}

func writeOutcome(cmd *cobra.Command, cfg *config.Config, out *suite.Outcome, format report.Format) error {
	w, err := createOutput(cmd, cfg.Report.Output)
	if err != nil {
		return err
	}
	if err := report.Encode(w, out.Report, format); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if out.Sealed != nil {
		path := cfg.Report.Output + ".cose"
		if err := os.WriteFile(path, out.Sealed, 0o644); err != nil {
			return fmt.Errorf("failed to write sealed report: %w", err)
		}
	}
	return nil
}

// newJournaledSuite builds a suite that journals to the configured journal
// and seals with the configured key. cleanup closes both.
func newJournaledSuite(ctx context.Context, cfg *config.Config, log logging.Logger) (*suite.Suite, func(), error) {
	var signKey ed25519.PrivateKey
	if cfg.Report.SignKey != "" {
		key, err := report.LoadPrivateKey(cfg.Report.SignKey)
		if err != nil {
			return nil, nil, withExitCode(exitConfigError, err)
		}
		signKey = key
	}

	jw, err := openJournal(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}

	s, err := suite.New(ctx, suite.Options{
		Config:  cfg,
		Logger:  log,
		Journal: jw,
		SignKey: signKey,
	})
	if err != nil {
		_ = jw.Close()
		return nil, nil, withExitCode(exitConfigError, err)
	}
	return s, func() {
		_ = s.Close()
		_ = jw.Close()
	}, nil
}
