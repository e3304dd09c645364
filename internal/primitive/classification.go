package primitive

import (
	"fmt"
	"sort"
)

// Sensitivity marks whether an input may influence observable behavior.
type Sensitivity string

const (
	Public Sensitivity = "public"
	Secret Sensitivity = "secret"
)

// ParseSensitivity parses "public" or "secret".
func ParseSensitivity(s string) (Sensitivity, error) {
	switch Sensitivity(s) {
	case Public, Secret:
		return Sensitivity(s), nil
	default:
		return "", fmt.Errorf("unknown sensitivity: %s", s)
	}
}

// Classification maps each invocation field of a primitive to its sensitivity.
// Treat it as read-only once built.
type Classification map[string]Sensitivity

// DefaultClassification returns the default classification for a category:
// keys and key seeds are secret, messages and blocks are public.
func DefaultClassification(c Category) Classification {
	out := Classification{}
	for _, f := range c.Fields() {
		switch f {
		case FieldKey, FieldSeed:
			out[f] = Secret
		default:
			out[f] = Public
		}
	}
	return out
}

// Merge returns a copy of c with the override applied.
func (c Classification) Merge(override map[string]Sensitivity) Classification {
	out := make(Classification, len(c)+len(override))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// SecretFields returns the secret fields in sorted order.
func (c Classification) SecretFields() []string {
	var fields []string
	for f, s := range c {
		if s == Secret {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)
	return fields
}

// Validate checks that every field belongs to the category.
func (c Classification) Validate(cat Category) error {
	for f, s := range c {
		if !cat.HasField(f) {
			return fmt.Errorf("field %q is not an input of %s primitives", f, cat)
		}
		if s != Public && s != Secret {
			return fmt.Errorf("field %q has unknown sensitivity %q", f, s)
		}
	}
	return nil
}
