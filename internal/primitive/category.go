// Package primitive defines the contracts every primitive backend implements,
// the descriptors that identify a backend, and the error taxonomy shared by
// the rest of primlab.
package primitive

import "fmt"

// Category identifies the contract shape of a primitive.
type Category string

// Supported categories.
const (
	CategoryHash        Category = "hash"
	CategoryBlockCipher Category = "block-cipher"
	CategorySignature   Category = "signature"
)

// Field names used by vectors, corpus cases and secret classifications.
const (
	FieldMessage = "message"
	FieldBlock   = "block"
	FieldKey     = "key"
	FieldSeed    = "seed"
)

// Vector parameter names.
const (
	ParamKey       = "key"
	ParamPublicKey = "public_key"
	ParamSeed      = "seed"
)

// categoryInfo holds metadata about a category.
type categoryInfo struct {
	Description string
	// InputField names the field carried in a vector's input bytes.
	InputField string
	// Fields lists every field an invocation of the category consumes.
	Fields []string
	// Required lists the vector parameters that must be present.
	Required []string
	// Allowed lists every vector parameter the category understands.
	Allowed []string
}

var categories = map[Category]categoryInfo{
	CategoryHash: {
		Description: "fixed-output hash function",
		InputField:  FieldMessage,
		Fields:      []string{FieldMessage},
	},
	CategoryBlockCipher: {
		Description: "fixed-width block cipher",
		InputField:  FieldBlock,
		Fields:      []string{FieldKey, FieldBlock},
		Required:    []string{ParamKey},
		Allowed:     []string{ParamKey},
	},
	CategorySignature: {
		Description: "digital signature scheme",
		InputField:  FieldMessage,
		Fields:      []string{FieldSeed, FieldMessage},
		Required:    []string{ParamPublicKey},
		Allowed:     []string{ParamPublicKey, ParamSeed},
	},
}

// IsValid returns true if the category is known.
func (c Category) IsValid() bool {
	_, ok := categories[c]
	return ok
}

// Description returns a human-readable description.
func (c Category) Description() string {
	return categories[c].Description
}

// InputField returns the field name a vector's input bytes represent.
func (c Category) InputField() string {
	return categories[c].InputField
}

// Fields returns the invocation fields of the category.
func (c Category) Fields() []string {
	return append([]string(nil), categories[c].Fields...)
}

// RequiredParams returns the vector parameters the category cannot run without.
func (c Category) RequiredParams() []string {
	return append([]string(nil), categories[c].Required...)
}

// AllowsParam reports whether name is a parameter the category understands.
func (c Category) AllowsParam(name string) bool {
	for _, p := range categories[c].Allowed {
		if p == name {
			return true
		}
	}
	return false
}

// HasField reports whether name is one of the category's invocation fields.
func (c Category) HasField(name string) bool {
	for _, f := range categories[c].Fields {
		if f == name {
			return true
		}
	}
	return false
}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// ParseCategory parses a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown category: %s", s)
	}
	return c, nil
}

// AllCategories returns every category in a stable order.
func AllCategories() []Category {
	return []Category{CategoryHash, CategoryBlockCipher, CategorySignature}
}
