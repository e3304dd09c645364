// Package result holds the immutable findings produced during a run.
package result

import "github.com/remiblancher/primlab/internal/primitive"

// Outcome of a single test case.
type Outcome string

const (
	Pass  Outcome = "pass"
	Fail  Outcome = "fail"
	Error Outcome = "error"
)

// Kind says which stage produced a RunResult.
type Kind string

const (
	KindVector      Kind = "vector"
	KindProperty    Kind = "property"
	KindEquivalence Kind = "equivalence"
	KindAudit       Kind = "ctaudit"
)

// RunResult records the outcome of one backend on one test case.
type RunResult struct {
	Kind      Kind    `json:"kind" yaml:"kind" cbor:"kind"`
	CaseID    string  `json:"case_id" yaml:"case_id" cbor:"case_id"`
	Primitive string  `json:"primitive" yaml:"primitive" cbor:"primitive"`
	Backend   string  `json:"backend" yaml:"backend" cbor:"backend"`
	Outcome   Outcome `json:"outcome" yaml:"outcome" cbor:"outcome"`
	Detail    string  `json:"detail,omitempty" yaml:"detail,omitempty" cbor:"detail,omitempty"`
}

// BackendID returns "<primitive>/<backend>".
func (r RunResult) BackendID() string {
	return r.Primitive + "/" + r.Backend
}

// Field is one named input of an invocation, hex encoded.
type Field struct {
	Name  string `json:"name" yaml:"name" cbor:"name"`
	Value string `json:"value" yaml:"value" cbor:"value"`
}

// OutputGroup is a set of backends that produced the same output.
type OutputGroup struct {
	Output   string   `json:"output" yaml:"output" cbor:"output"`
	Backends []string `json:"backends" yaml:"backends" cbor:"backends"`
}

// EquivalenceFinding records backends of one primitive disagreeing on one input.
type EquivalenceFinding struct {
	Primitive string        `json:"primitive" yaml:"primitive" cbor:"primitive"`
	CaseID    string        `json:"case_id" yaml:"case_id" cbor:"case_id"`
	Input     []Field       `json:"input" yaml:"input" cbor:"input"`
	Groups    []OutputGroup `json:"groups" yaml:"groups" cbor:"groups"`
	// Majority is true when one group holds more than half of the backends.
	Majority bool `json:"majority" yaml:"majority" cbor:"majority"`
	// Disagreeing names the backends outside the majority group, or outside
	// the reference backend's group when there is no majority.
	Disagreeing []string `json:"disagreeing" yaml:"disagreeing" cbor:"disagreeing"`
}

// EvidenceKind is the signal behind a TimingFinding.
type EvidenceKind string

const (
	EvidenceTrace  EvidenceKind = "trace-divergence"
	EvidenceTiming EvidenceKind = "timing-variance"
)

// Evidence explains a TimingFinding.
type Evidence struct {
	Kind      EvidenceKind `json:"kind" yaml:"kind" cbor:"kind"`
	Detail    string       `json:"detail" yaml:"detail" cbor:"detail"`
	Ratio     float64      `json:"ratio,omitempty" yaml:"ratio,omitempty" cbor:"ratio,omitempty"`
	Threshold float64      `json:"threshold,omitempty" yaml:"threshold,omitempty" cbor:"threshold,omitempty"`
	Trials    int          `json:"trials,omitempty" yaml:"trials,omitempty" cbor:"trials,omitempty"`
}

// Severity of a finding. Timing findings are always warnings.
type Severity string

const SeverityWarning Severity = "warning"

// TimingFinding flags secret-dependent behavior of a backend.
type TimingFinding struct {
	Primitive string             `json:"primitive" yaml:"primitive" cbor:"primitive"`
	Backend   string             `json:"backend" yaml:"backend" cbor:"backend"`
	Category  primitive.Category `json:"category" yaml:"category" cbor:"category"`
	Field     string             `json:"field" yaml:"field" cbor:"field"`
	Severity  Severity           `json:"severity" yaml:"severity" cbor:"severity"`
	Evidence  Evidence           `json:"evidence" yaml:"evidence" cbor:"evidence"`
}

// BackendID returns "<primitive>/<backend>".
func (f TimingFinding) BackendID() string {
	return f.Primitive + "/" + f.Backend
}
