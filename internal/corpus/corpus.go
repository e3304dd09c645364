// Package corpus builds the shared input corpus a primitive's backends are
// compared on: every test vector plus a seeded set of randomized inputs.
// The corpus is a pure function of (seed, primitive, vectors, count), so
// two runs with the same seed see byte-identical inputs.
package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/result"
	"github.com/remiblancher/primlab/internal/vectors"
)

// Signature case kinds. Only KindValid must verify.
const (
	KindVector           = "vector"
	KindRandom           = "random"
	KindValid            = "valid"
	KindMutatedMessage   = "mutated-message"
	KindForeignKey       = "foreign-key"
	KindMutatedSignature = "mutated-signature"
)

// ParamSignature carries the signature of a signature case in Fields output.
const ParamSignature = "signature"

const (
	maxHashMessage      = 256
	maxSignatureMessage = 128
)

// Case is one input of the shared corpus.
type Case struct {
	// ID is "vec:<vector id>" or "rand:<n>".
	ID        string
	Primitive string
	Category  primitive.Category
	Kind      string
	Input     []byte
	Params    map[string][]byte
	// Expected is the vector's expected output, or the signature for
	// signature cases. Nil for random hash and block cipher inputs.
	Expected      []byte
	ExpectFailure bool
}

// Fields returns the case inputs, hex encoded, in a stable order.
func (c Case) Fields() []result.Field {
	var out []result.Field
	names := make([]string, 0, len(c.Params))
	for n := range c.Params {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		out = append(out, result.Field{Name: n, Value: hex.EncodeToString(c.Params[n])})
	}
	out = append(out, result.Field{Name: c.Category.InputField(), Value: hex.EncodeToString(c.Input)})
	if c.Category == primitive.CategorySignature {
		out = append(out, result.Field{Name: ParamSignature, Value: hex.EncodeToString(c.Expected)})
	}
	return out
}

// FromVector turns a test vector into a corpus case.
func FromVector(v vectors.Vector) Case {
	return Case{
		ID:            "vec:" + v.ID,
		Primitive:     v.Primitive,
		Category:      v.Category,
		Kind:          KindVector,
		Input:         v.Input,
		Params:        v.Params,
		Expected:      v.Expected,
		ExpectFailure: v.ExpectFailure,
	}
}

// Options control randomized input generation.
type Options struct {
	Seed  uint64
	Count int
}

// NewRand returns the deterministic generator for one primitive and stream.
// Different streams of the same seed are independent.
func NewRand(seed uint64, stream string) *rand.Rand {
	h := sha256.New()
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], seed)
	h.Write(b[:])
	h.Write([]byte(stream))
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return rand.New(rand.NewChaCha8(key))
}

// Bytes fills a fresh slice of n random bytes.
func Bytes(r *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := 0; i+8 <= n; i += 8 {
		binary.LittleEndian.PutUint64(b[i:], r.Uint64())
	}
	if rem := n % 8; rem != 0 {
		var tail [8]byte
		binary.LittleEndian.PutUint64(tail[:], r.Uint64())
		copy(b[n-rem:], tail[:rem])
	}
	return b
}

// Build returns the corpus of one primitive: its vectors in ID order
// followed by opts.Count random inputs. Signature inputs are fixed
// (public key, message, signature) triples produced by the reference
// backend; a reference fault while producing one is returned as an Error
// result and the case is dropped.
func Build(ctx context.Context, ref primitive.Backend, vs []vectors.Vector, opts Options) ([]Case, []result.RunResult) {
	d := ref.Descriptor
	cases := make([]Case, 0, len(vs)+opts.Count)
	for _, v := range vs {
		c := FromVector(v)
		c.Category = d.Category
		cases = append(cases, c)
	}

	r := NewRand(opts.Seed, "corpus/"+d.Primitive)
	var faults []result.RunResult

	for i := 0; i < opts.Count; i++ {
		if ctx.Err() != nil {
			break
		}
		id := fmt.Sprintf("rand:%d", i)
		base := Case{ID: id, Primitive: d.Primitive, Category: d.Category, Kind: KindRandom}

		switch d.Category {
		case primitive.CategoryHash:
			base.Input = Bytes(r, r.IntN(maxHashMessage+1))
			cases = append(cases, base)

		case primitive.CategoryBlockCipher:
			c := ref.BlockCipher()
			sizes := c.KeySizes()
			base.Params = map[string][]byte{primitive.ParamKey: Bytes(r, sizes[i%len(sizes)])}
			base.Input = Bytes(r, c.BlockSize())
			cases = append(cases, base)

		case primitive.CategorySignature:
			c, err := signatureCase(ref.Signature(), r, i, base)
			if err != nil {
				faults = append(faults, result.RunResult{
					Kind:      result.KindEquivalence,
					CaseID:    id,
					Primitive: d.Primitive,
					Backend:   d.Backend,
					Outcome:   result.Error,
					Detail:    fmt.Sprintf("corpus generation: %v", err),
				})
				continue
			}
			cases = append(cases, c)
		}
	}
	return cases, faults
}

// signatureCase cycles through valid, mutated-message, foreign-key and
// mutated-signature triples. Both keys are always drawn so that the random
// stream does not depend on which kind is produced.
func signatureCase(s primitive.SignatureScheme, r *rand.Rand, i int, c Case) (c2 Case, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", primitive.ErrPanic, p)
		}
	}()

	seed := Bytes(r, s.SeedSize())
	otherSeed := Bytes(r, s.SeedSize())
	msg := Bytes(r, r.IntN(maxSignatureMessage+1))
	flip := r.Uint32()

	pk, sk, err := s.GenerateKey(seed)
	if err != nil {
		return c, err
	}
	sig, err := s.Sign(sk, msg)
	if err != nil {
		return c, err
	}

	c.Params = map[string][]byte{primitive.ParamPublicKey: pk}
	c.Input = msg
	c.Expected = sig

	switch i % 4 {
	case 0:
		c.Kind = KindValid
		c.Params[primitive.ParamSeed] = seed
	case 1:
		c.Kind = KindMutatedMessage
		c.ExpectFailure = true
		c.Input = mutate(msg, flip)
	case 2:
		c.Kind = KindForeignKey
		c.ExpectFailure = true
		otherPK, _, err := s.GenerateKey(otherSeed)
		if err != nil {
			return c, err
		}
		c.Params[primitive.ParamPublicKey] = otherPK
	case 3:
		c.Kind = KindMutatedSignature
		c.ExpectFailure = true
		c.Expected = mutate(sig, flip)
	}
	return c, nil
}

// mutate flips one bit of a copy of b; an empty b becomes one byte.
func mutate(b []byte, flip uint32) []byte {
	if len(b) == 0 {
		return []byte{byte(flip) | 1}
	}
	out := append([]byte(nil), b...)
	out[int(flip>>8)%len(out)] ^= 1 << (flip % 8)
	return out
}
