package main

import (
	"github.com/spf13/cobra"

	"github.com/remiblancher/primlab/internal/api/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the latest report over HTTP",
	Long: `Start an HTTP server exposing the backends, the vectors and the latest
run report. A run starts when the server is up unless --no-run is set;
further runs are started with POST /api/v1/runs, one at a time.

Examples:
  primlab serve --addr 127.0.0.1:8080 --audit off
  curl -X POST http://127.0.0.1:8080/api/v1/runs
  curl http://127.0.0.1:8080/api/v1/runs/latest?format=text`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveNoRun bool

func init() {
	flags := serveCmd.Flags()
	addSelectionFlags(flags)
	flags.String("addr", "127.0.0.1:8080", "Listen address")
	flags.Uint64("seed", 1, "Seed for randomized inputs and the timing audit")
	flags.String("audit", "both", "Constant-time audit mode: off, timing, trace, both")
	flags.String("journal", "", "Append run events to this journal file")
	flags.String("sign-key", "", "Ed25519 PEM private key used to seal every report")
	flags.BoolVar(&serveNoRun, "no-run", false, "Do not start a run on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, cleanup, err := newJournaledSuite(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	scfg := server.DefaultConfig()
	scfg.Addr = cfg.Server.Addr
	scfg.RunOnStart = !serveNoRun

	return server.New(ctx, scfg, version, s, log, cmd.OutOrStdout()).Start(ctx)
}
