// Package report aggregates the results of a run into a single report with
// one top-level status, and serializes it.
//
// A report is a pure function of its inputs: collections are sorted before
// presentation and the run identifier is derived from the content, so two
// runs over identical inputs serialize to identical bytes.
package report

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/result"
)

// Status is the single externally consumed summary of a run.
type Status string

const (
	// Green means every case passed and nothing was flagged.
	Green Status = "green"
	// Yellow means the only findings are timing warnings.
	Yellow Status = "yellow"
	// Red means a case failed or errored, or backends disagreed.
	Red Status = "red"
)

// ParseStatus parses a status name.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case Green, Yellow, Red:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status: %s", s)
	}
}

// Level maps a status to 0 (green), 1 (yellow) or 2 (red).
func (s Status) Level() int {
	switch s {
	case Green:
		return 0
	case Yellow:
		return 1
	default:
		return 2
	}
}

// runNamespace scopes run identifiers.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/remiblancher/primlab/runs"))

// Summary counts what a report contains.
type Summary struct {
	Primitives  int `json:"primitives" yaml:"primitives" cbor:"primitives"`
	Backends    int `json:"backends" yaml:"backends" cbor:"backends"`
	Cases       int `json:"cases" yaml:"cases" cbor:"cases"`
	Pass        int `json:"pass" yaml:"pass" cbor:"pass"`
	Fail        int `json:"fail" yaml:"fail" cbor:"fail"`
	Error       int `json:"error" yaml:"error" cbor:"error"`
	Equivalence int `json:"equivalence_findings" yaml:"equivalence_findings" cbor:"equivalence_findings"`
	Timing      int `json:"timing_findings" yaml:"timing_findings" cbor:"timing_findings"`
}

// Report is the structured outcome of one run.
type Report struct {
	RunID  string `json:"run_id" yaml:"run_id" cbor:"run_id"`
	Status Status `json:"status" yaml:"status" cbor:"status"`
	Seed   uint64 `json:"seed" yaml:"seed" cbor:"seed"`
	// Partial is set when the run was cancelled before completing. The
	// results it holds are still valid.
	Partial     bool                        `json:"partial,omitempty" yaml:"partial,omitempty" cbor:"partial,omitempty"`
	Summary     Summary                     `json:"summary" yaml:"summary" cbor:"summary"`
	Backends    []primitive.Descriptor      `json:"backends" yaml:"backends" cbor:"backends"`
	Results     []result.RunResult          `json:"results" yaml:"results" cbor:"results"`
	Equivalence []result.EquivalenceFinding `json:"equivalence_findings" yaml:"equivalence_findings" cbor:"equivalence_findings"`
	Timing      []result.TimingFinding      `json:"timing_findings" yaml:"timing_findings" cbor:"timing_findings"`
}

// Input is everything a report is built from.
type Input struct {
	Seed        uint64
	Partial     bool
	Backends    []primitive.Descriptor
	Results     []result.RunResult
	Equivalence []result.EquivalenceFinding
	Timing      []result.TimingFinding
}

// Build aggregates in into a report. The input slices are copied, never
// reordered in place.
func Build(in Input) (*Report, error) {
	r := &Report{
		Seed:        in.Seed,
		Partial:     in.Partial,
		Backends:    append([]primitive.Descriptor{}, in.Backends...),
		Results:     append([]result.RunResult{}, in.Results...),
		Equivalence: append([]result.EquivalenceFinding{}, in.Equivalence...),
		Timing:      append([]result.TimingFinding{}, in.Timing...),
	}
	r.sort()
	r.Status = ComputeStatus(r.Results, r.Equivalence, r.Timing)
	r.Summary = summarize(r)

	id, err := runID(r)
	if err != nil {
		return nil, err
	}
	r.RunID = id
	return r, nil
}

// ComputeStatus derives the run status. Any failed or errored case and any
// equivalence finding is Red; timing findings alone are Yellow.
func ComputeStatus(results []result.RunResult, eq []result.EquivalenceFinding, timing []result.TimingFinding) Status {
	if len(eq) > 0 {
		return Red
	}
	for _, r := range results {
		if r.Outcome != result.Pass {
			return Red
		}
	}
	if len(timing) > 0 {
		return Yellow
	}
	return Green
}

func summarize(r *Report) Summary {
	s := Summary{
		Backends:    len(r.Backends),
		Cases:       len(r.Results),
		Equivalence: len(r.Equivalence),
		Timing:      len(r.Timing),
	}
	prims := map[string]bool{}
	for _, d := range r.Backends {
		prims[d.Primitive] = true
	}
	s.Primitives = len(prims)
	for _, res := range r.Results {
		switch res.Outcome {
		case result.Pass:
			s.Pass++
		case result.Fail:
			s.Fail++
		default:
			s.Error++
		}
	}
	return s
}

func (r *Report) sort() {
	sort.SliceStable(r.Backends, func(i, j int) bool {
		a, b := r.Backends[i], r.Backends[j]
		if a.Primitive != b.Primitive {
			return a.Primitive < b.Primitive
		}
		if a.Reference != b.Reference {
			return a.Reference
		}
		return a.Backend < b.Backend
	})
	sort.SliceStable(r.Results, func(i, j int) bool {
		a, b := r.Results[i], r.Results[j]
		if a.Primitive != b.Primitive {
			return a.Primitive < b.Primitive
		}
		if a.Backend != b.Backend {
			return a.Backend < b.Backend
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.CaseID != b.CaseID {
			return a.CaseID < b.CaseID
		}
		return a.Detail < b.Detail
	})
	sort.SliceStable(r.Equivalence, func(i, j int) bool {
		a, b := r.Equivalence[i], r.Equivalence[j]
		if a.Primitive != b.Primitive {
			return a.Primitive < b.Primitive
		}
		return a.CaseID < b.CaseID
	})
	sort.SliceStable(r.Timing, func(i, j int) bool {
		a, b := r.Timing[i], r.Timing[j]
		if a.Primitive != b.Primitive {
			return a.Primitive < b.Primitive
		}
		if a.Backend != b.Backend {
			return a.Backend < b.Backend
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		return a.Evidence.Kind < b.Evidence.Kind
	})
}

// runID derives a UUIDv5 from the canonical CBOR encoding of the report
// without its identifier.
func runID(r *Report) (string, error) {
	c := *r
	c.RunID = ""
	data, err := canonical.Marshal(&c)
	if err != nil {
		return "", fmt.Errorf("failed to encode report for run id: %w", err)
	}
	return uuid.NewSHA1(runNamespace, data).String(), nil
}

// canonical is the deterministic CBOR encoding used for run identifiers,
// the CBOR report format and sealing.
var canonical = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Failures returns the results that did not pass.
func (r *Report) Failures() []result.RunResult {
	var out []result.RunResult
	for _, res := range r.Results {
		if res.Outcome != result.Pass {
			out = append(out, res)
		}
	}
	return out
}
