// Command primlab runs known-answer, property, cross-backend equivalence
// and constant-time checks over cryptographic primitive implementations.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/remiblancher/primlab/internal/config"
	"github.com/remiblancher/primlab/internal/journal"
	"github.com/remiblancher/primlab/internal/logging"
	"github.com/remiblancher/primlab/internal/primitive"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes.
const (
	exitGreen       = 0
	exitRed         = 1
	exitConfigError = 2
	exitYellow      = 3
)

// Global flags
var cfgFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitGreen
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if primitive.IsConfigurationError(err) {
		return exitConfigError
	}
	return exitRed
}

var rootCmd = &cobra.Command{
	Use:   "primlab",
	Short: "primlab - cryptographic primitive verification harness",
	Long: `primlab checks implementations of the same cryptographic primitive
against canonical test vectors, against each other, and for secret-dependent
timing or control flow.

Every registered backend is run against the known-answer vectors of its
primitive and against seeded random inputs. Backends of one primitive must
agree on every input; the reference backend anchors disagreements. Secret
inputs are varied to detect timing variance and trace divergence.

The run status is Green when everything passes, Yellow when the only
findings are constant-time warnings, and Red otherwise.

Examples:
  # Run everything with the default configuration
  primlab run

  # Run two primitives, write a sealed JSON report
  primlab report keygen --out report-key
  primlab run --primitive sha256,aes --output report.json --sign-key report-key.pem

  # Verify a sealed report
  primlab report verify report.json.cose --pub report-key.pub.pem

  # Serve the latest report over HTTP
  primlab serve --addr 127.0.0.1:8080`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML configuration file (or set PRIMLAB_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(backendsCmd)
	rootCmd.AddCommand(vectorsCmd)
	rootCmd.AddCommand(ctauditCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"seed":          "seed",
	"random-inputs": "random_inputs",
	"workers":       "workers",
	"case-timeout":  "case_timeout",
	"primitive":     "primitives",
	"backend":       "backends",
	"vectors":       "vectors.paths",
	"embedded":      "vectors.embedded",
	"audit":         "audit.mode",
	"trials":        "audit.trials",
	"threshold":     "audit.threshold",
	"parallel":      "audit.parallel",
	"journal":       "journal.path",
	"format":        "report.format",
	"output":        "report.output",
	"sign-key":      "report.sign_key",
	"addr":          "server.addr",
}

// loadConfig builds the configuration of cmd from defaults, the config
// file, the environment and the flags cmd defines. Configuration problems
// exit with exitConfigError.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.NewViper()
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}

	path := cfgFile
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "_CONFIG")
	}
	cfg, err := config.Load(v, path)
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}
	return cfg, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

// newLogger builds the technical logger on the command's error stream.
func newLogger(cmd *cobra.Command, cfg *config.Config) (logging.Logger, error) {
	h, err := logging.NewHandler(cmd.ErrOrStderr(), cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}
	return logging.New(slog.New(h)), nil
}

// openJournal opens the configured journal, or a writer that discards.
func openJournal(cfg *config.Config) (journal.Writer, error) {
	if cfg.Journal.Path == "" {
		return journal.NopWriter{}, nil
	}
	w, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// createOutput opens path for writing, or returns stdout for "" and "-".
func createOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
