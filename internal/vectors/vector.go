// Package vectors is the test vector store: it loads canonical known-answer
// records from YAML, JSON or CBOR files (optionally LZ4-compressed),
// validates them against the registered backends and exposes them as an
// immutable snapshot.
package vectors

import (
	"sort"

	"github.com/remiblancher/primlab/internal/primitive"
)

// Vector is a known-answer record. Vectors are read-only after loading;
// callers must not modify the byte slices they expose.
//
// Per category:
//   - hash: Input is the message, Expected the digest.
//   - block-cipher: Input is the plaintext block, Params["key"] the key,
//     Expected the ciphertext block.
//   - signature: Input is the message, Params["public_key"] the public key,
//     Expected the signature. Params["seed"] optionally holds the key
//     generation randomness. ExpectFailure marks vectors where Verify
//     must return false.
type Vector struct {
	ID            string
	Primitive     string
	Category      primitive.Category
	Input         []byte
	Params        map[string][]byte
	Expected      []byte
	ExpectFailure bool
	// Origin is the file the vector was loaded from.
	Origin string
}

// Param returns a parameter or nil.
func (v Vector) Param(name string) []byte {
	return v.Params[name]
}

// ParamNames returns the parameter names in sorted order.
func (v Vector) ParamNames() []string {
	names := make([]string, 0, len(v.Params))
	for n := range v.Params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func fromRecord(f *File, r Record, origin string) Vector {
	v := Vector{
		ID:            r.ID,
		Primitive:     r.Primitive,
		Category:      primitive.Category(r.Category),
		Input:         nonNil(r.Input),
		Expected:      nonNil(r.Expected),
		ExpectFailure: r.ExpectFailure,
		Origin:        origin,
	}
	if v.Primitive == "" {
		v.Primitive = f.Primitive
	}
	if v.Category == "" {
		v.Category = primitive.Category(f.Category)
	}
	if len(r.Params) > 0 {
		v.Params = make(map[string][]byte, len(r.Params))
		for k, p := range r.Params {
			v.Params[k] = nonNil(p)
		}
	}
	return v
}

func toRecord(v Vector) Record {
	r := Record{
		ID:            v.ID,
		Primitive:     v.Primitive,
		Category:      string(v.Category),
		Input:         v.Input,
		Expected:      v.Expected,
		ExpectFailure: v.ExpectFailure,
	}
	if len(v.Params) > 0 {
		r.Params = make(map[string]HexBytes, len(v.Params))
		for k, p := range v.Params {
			r.Params[k] = p
		}
	}
	return r
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
