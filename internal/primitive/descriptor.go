package primitive

import (
	"fmt"
	"regexp"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Capabilities are optional behaviors a backend declares.
type Capabilities struct {
	// Streaming means the backend implements Streamer.
	Streaming bool `json:"streaming,omitempty" yaml:"streaming,omitempty" cbor:"streaming,omitempty"`
	// DeterministicSign means Sign produces the same signature for the same
	// key and message, so signature vectors with a seed are compared exactly.
	DeterministicSign bool `json:"deterministic_sign,omitempty" yaml:"deterministic_sign,omitempty" cbor:"deterministic_sign,omitempty"`
	// FixedSizeOnly means the backend only accepts its declared sizes.
	FixedSizeOnly bool `json:"fixed_size_only,omitempty" yaml:"fixed_size_only,omitempty" cbor:"fixed_size_only,omitempty"`
	// Hardware means the backend delegates to a device (HSM, accelerator).
	Hardware bool `json:"hardware,omitempty" yaml:"hardware,omitempty" cbor:"hardware,omitempty"`
}

// Descriptor identifies a backend. It is immutable once registered.
type Descriptor struct {
	Category     Category     `json:"category" yaml:"category" cbor:"category"`
	Primitive    string       `json:"primitive" yaml:"primitive" cbor:"primitive"`
	Backend      string       `json:"backend" yaml:"backend" cbor:"backend"`
	Reference    bool         `json:"reference,omitempty" yaml:"reference,omitempty" cbor:"reference,omitempty"`
	Capabilities Capabilities `json:"capabilities" yaml:"capabilities" cbor:"capabilities"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty" cbor:"description,omitempty"`
}

// ID returns "<primitive>/<backend>".
func (d Descriptor) ID() string {
	return d.Primitive + "/" + d.Backend
}

// Validate checks names and category.
func (d Descriptor) Validate() error {
	if !d.Category.IsValid() {
		return fmt.Errorf("unknown category %q", d.Category)
	}
	if !namePattern.MatchString(d.Primitive) {
		return fmt.Errorf("invalid primitive name %q", d.Primitive)
	}
	if !namePattern.MatchString(d.Backend) {
		return fmt.Errorf("invalid backend name %q", d.Backend)
	}
	return nil
}
