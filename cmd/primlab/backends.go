package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/suite"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "Inspect registered backends",
}

var backendsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the backends a run would exercise",
	Long: `List the selected backends, reference first within each primitive.

Examples:
  primlab backends list
  primlab backends list --primitive aes --json`,
	Args: cobra.NoArgs,
	RunE: runBackendsList,
}

var backendsJSON bool

func init() {
	addSelectionFlags(backendsListCmd.Flags())
	backendsListCmd.Flags().BoolVar(&backendsJSON, "json", false, "Print JSON")

	backendsCmd.AddCommand(backendsListCmd)
}

// addSelectionFlags adds the flags that choose backends and vectors.
func addSelectionFlags(fs *pflag.FlagSet) {
	fs.StringSlice("primitive", nil, "Restrict to these primitives (comma-separated)")
	fs.StringSlice("backend", nil, "Restrict to these backends, as primitive/backend (comma-separated)")
	fs.StringSlice("vectors", nil, "Extra vector files or directories")
	fs.Bool("embedded", true, "Load the built-in vector corpus")
}

// openSuite builds a suite from the configuration of cmd, without a
// journal.
func openSuite(cmd *cobra.Command) (*suite.Suite, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}
	s, err := suite.New(cmd.Context(), suite.Options{Config: cfg, Logger: log})
	if err != nil {
		return nil, withExitCode(exitConfigError, err)
	}
	return s, nil
}

func runBackendsList(cmd *cobra.Command, args []string) error {
	s, err := openSuite(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	set, err := s.Backends()
	if err != nil {
		return err
	}

	descs := make([]primitive.Descriptor, 0, set.Len())
	for _, b := range set.All() {
		descs = append(descs, b.Descriptor)
	}

	out := cmd.OutOrStdout()
	if backendsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(descs)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tREFERENCE\tDESCRIPTION")
	for _, d := range descs {
		ref := ""
		if d.Reference {
			ref = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID(), d.Category, ref, d.Description)
	}
	return w.Flush()
}
