package vectors

import (
	"slices"

	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/registry"
)

// Plan is the outcome of validating a store against a backend set.
type Plan struct {
	// Store holds the vectors that will run.
	Store *Store
	// Skipped holds vectors for primitives with no registered backend.
	Skipped []Vector
}

// Validate checks every vector against the backends of its primitive.
// Vectors whose primitive has no backend in set are skipped, not rejected,
// so that a filtered run can share a corpus. Every other inconsistency is a
// ConfigurationError and all of them are reported together.
func (s *Store) Validate(set *registry.Set) (*Plan, error) {
	var errs primitive.ConfigErrors
	var keep, skipped []Vector

	for _, v := range s.vectors {
		backends := set.Backends(v.Primitive)
		if len(backends) == 0 {
			skipped = append(skipped, v)
			continue
		}
		cat := backends[0].Descriptor.Category
		if v.Category != "" && v.Category != cat {
			e := primitive.NewConfigError(primitive.ErrCategoryMismatch, v.Primitive, "",
				"vector declares %s, backends implement %s", v.Category, cat)
			e.Vector = v.ID
			errs = append(errs, e)
			continue
		}
		if err := checkShape(v, cat, backends[0]); err != nil {
			errs = append(errs, err)
			continue
		}
		v.Category = cat
		keep = append(keep, v)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	st, err := NewStore(keep)
	if err != nil {
		return nil, err
	}
	return &Plan{Store: st, Skipped: skipped}, nil
}

func checkShape(v Vector, cat primitive.Category, b primitive.Backend) *primitive.ConfigurationError {
	bad := func(format string, args ...any) *primitive.ConfigurationError {
		e := malformed(v.Origin, v.ID, format, args...)
		e.Primitive = v.Primitive
		return e
	}

	for _, name := range cat.RequiredParams() {
		if _, ok := v.Params[name]; !ok {
			return bad("missing required parameter %q", name)
		}
	}
	for _, name := range v.ParamNames() {
		if !cat.AllowsParam(name) {
			return bad("unknown parameter %q for %s", name, cat)
		}
	}

	switch cat {
	case primitive.CategoryHash:
		if v.ExpectFailure {
			return bad("expect_failure is only meaningful for signature vectors")
		}
		if n := b.Hash().Size(); len(v.Expected) != n {
			return bad("expected digest is %d bytes, want %d", len(v.Expected), n)
		}
	case primitive.CategoryBlockCipher:
		c := b.BlockCipher()
		if v.ExpectFailure {
			return bad("expect_failure is only meaningful for signature vectors")
		}
		if k := len(v.Params[primitive.ParamKey]); !slices.Contains(c.KeySizes(), k) {
			return bad("key is %d bytes, want one of %v", k, c.KeySizes())
		}
		if len(v.Input) != c.BlockSize() || len(v.Expected) != c.BlockSize() {
			return bad("block and expected must be %d bytes", c.BlockSize())
		}
	case primitive.CategorySignature:
		if len(v.Expected) == 0 {
			return bad("missing expected signature")
		}
		if seed, ok := v.Params[primitive.ParamSeed]; ok && len(seed) != b.Signature().SeedSize() {
			return bad("seed is %d bytes, want %d", len(seed), b.Signature().SeedSize())
		}
	}
	return nil
}
