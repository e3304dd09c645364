package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/remiblancher/primlab/internal/result"
)

// Format is a serialization of a report.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML, FormatCBOR:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (expected text, json, yaml or cbor)", s)
	}
}

// FormatFromPath guesses a format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".cbor":
		return FormatCBOR
	case ".txt":
		return FormatText
	default:
		return FormatJSON
	}
}

// Marshal serializes r.
func Marshal(r *Report, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, r, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes r to w in format f.
func Encode(w io.Writer, r *Report, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	case FormatCBOR:
		data, err := canonical.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatText:
		return renderText(w, r)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

// Unmarshal parses a JSON, YAML or CBOR report.
func Unmarshal(data []byte, f Format) (*Report, error) {
	var r Report
	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(data, &r)
	case FormatYAML:
		err = yaml.Unmarshal(data, &r)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &r)
	default:
		return nil, fmt.Errorf("cannot parse %s reports", f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s report: %w", f, err)
	}
	if _, err := ParseStatus(string(r.Status)); err != nil {
		return nil, fmt.Errorf("failed to parse %s report: %w", f, err)
	}
	return &r, nil
}

func renderText(out io.Writer, r *Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	s := r.Summary

	_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.RunID)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", strings.ToUpper(string(r.Status)))
	_, _ = fmt.Fprintf(w, "Seed:\t%d\n", r.Seed)
	if r.Partial {
		_, _ = fmt.Fprintln(w, "Partial:\tyes (run cancelled)")
	}
	_, _ = fmt.Fprintf(w, "Backends:\t%d across %d primitives\n", s.Backends, s.Primitives)
	_, _ = fmt.Fprintf(w, "Cases:\t%d (pass %d, fail %d, error %d)\n", s.Cases, s.Pass, s.Fail, s.Error)
	_, _ = fmt.Fprintf(w, "Findings:\t%d equivalence, %d timing\n", s.Equivalence, s.Timing)

	if failures := r.Failures(); len(failures) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "OUTCOME\tKIND\tBACKEND\tCASE\tDETAIL")
		_, _ = fmt.Fprintln(w, "-------\t----\t-------\t----\t------")
		for _, f := range failures {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.Outcome, f.Kind, f.BackendID(), f.CaseID, oneLine(f.Detail))
		}
	}

	if len(r.Equivalence) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "PRIMITIVE\tCASE\tMAJORITY\tDISAGREEING\tGROUPS")
		_, _ = fmt.Fprintln(w, "---------\t----\t--------\t-----------\t------")
		for _, f := range r.Equivalence {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", f.Primitive, f.CaseID, f.Majority,
				strings.Join(f.Disagreeing, ","), groups(f.Groups))
		}
	}

	if len(r.Timing) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "SEVERITY\tBACKEND\tFIELD\tEVIDENCE\tDETAIL")
		_, _ = fmt.Fprintln(w, "--------\t-------\t-----\t--------\t------")
		for _, f := range r.Timing {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.Severity, f.BackendID(), f.Field, f.Evidence.Kind, oneLine(f.Evidence.Detail))
		}
	}
	return w.Flush()
}

func groups(gs []result.OutputGroup) string {
	parts := make([]string, len(gs))
	for i, g := range gs {
		parts[i] = fmt.Sprintf("[%s]=%s", strings.Join(g.Backends, ","), abbrev(g.Output))
	}
	return strings.Join(parts, " ")
}

func abbrev(hexOutput string) string {
	if len(hexOutput) > 16 {
		return hexOutput[:16] + "..."
	}
	return hexOutput
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
