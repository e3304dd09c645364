package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/remiblancher/primlab/internal/vectors"
)

var vectorsCmd = &cobra.Command{
	Use:   "vectors",
	Short: "Inspect, validate and convert test vectors",
	Long: `Inspect, validate and convert test vector files.

Vector files are YAML, JSON or CBOR, optionally LZ4 compressed (.lz4
suffix). The format is chosen by the file extension.`,
}

var vectorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded vectors",
	Long: `List the vectors loaded from the built-in corpus and --vectors paths.

Examples:
  primlab vectors list
  primlab vectors list --primitive sha256 --vectors ./kat`,
	Args: cobra.NoArgs,
	RunE: runVectorsList,
}

var vectorsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check vectors against the selected backends",
	Long: `Load every vector and check that each names a registered primitive and
has the shape its category requires. Vectors of primitives excluded by
--primitive or --backend are reported as skipped.

Examples:
  primlab vectors validate --vectors ./kat`,
	Args: cobra.NoArgs,
	RunE: runVectorsValidate,
}

var vectorsConvertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Convert a vector file to another format",
	Long: `Convert a vector file. Formats follow the file extensions.

Examples:
  primlab vectors convert sha256.yaml sha256.cbor.lz4`,
	Args: cobra.ExactArgs(2),
	RunE: runVectorsConvert,
}

var (
	vectorsJSON   bool
	convertSource string
)

func init() {
	addSelectionFlags(vectorsListCmd.Flags())
	vectorsListCmd.Flags().BoolVar(&vectorsJSON, "json", false, "Print JSON")
	addSelectionFlags(vectorsValidateCmd.Flags())
	vectorsConvertCmd.Flags().StringVar(&convertSource, "source", "", "Provenance recorded in the output (default: input file name)")

	vectorsCmd.AddCommand(vectorsListCmd)
	vectorsCmd.AddCommand(vectorsValidateCmd)
	vectorsCmd.AddCommand(vectorsConvertCmd)
}

type vectorRow struct {
	ID            string `json:"id"`
	Primitive     string `json:"primitive"`
	Category      string `json:"category"`
	ExpectFailure bool   `json:"expect_failure,omitempty"`
	Origin        string `json:"origin"`
}

func runVectorsList(cmd *cobra.Command, args []string) error {
	s, err := openSuite(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	st, err := s.LoadVectors()
	if err != nil {
		return withExitCode(exitConfigError, err)
	}

	filter := s.Config().Primitives
	rows := []vectorRow{}
	for _, v := range st.All() {
		if len(filter) > 0 && !slices.Contains(filter, v.Primitive) {
			continue
		}
		rows = append(rows, vectorRow{
			ID:            v.ID,
			Primitive:     v.Primitive,
			Category:      string(v.Category),
			ExpectFailure: v.ExpectFailure,
			Origin:        v.Origin,
		})
	}

	out := cmd.OutOrStdout()
	if vectorsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRIMITIVE\tCATEGORY\tEXPECT\tORIGIN")
	for _, r := range rows {
		expect := "pass"
		if r.ExpectFailure {
			expect = "fail"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Primitive, r.Category, expect, r.Origin)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d vectors\n", len(rows))
	return nil
}

func runVectorsValidate(cmd *cobra.Command, args []string) error {
	s, err := openSuite(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	set, plan, _, err := s.Plan()
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "VALIDATION FAILED")
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "VALIDATION PASSED")
	fmt.Fprintf(out, "  Backends:  %d\n", set.Len())
	fmt.Fprintf(out, "  Vectors:   %d\n", plan.Store.Len())
	fmt.Fprintf(out, "  Skipped:   %d\n", len(plan.Skipped))
	return nil
}

func runVectorsConvert(cmd *cobra.Command, args []string) error {
	in, outPath := args[0], args[1]

	vs, err := vectors.LoadFile(in)
	if err != nil {
		return withExitCode(exitConfigError, err)
	}
	source := convertSource
	if source == "" {
		source = filepath.Base(in)
	}
	if err := vectors.WriteFile(outPath, source, vs); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Converted %d vectors: %s -> %s\n", len(vs), in, outPath)
	return nil
}
