// Package registry holds the backends registered for a run.
//
// Registration is explicit and typed: each backend package calls one of
// RegisterHash, RegisterBlockCipher or RegisterSignatureScheme at startup.
// A registry is append-only; Snapshot freezes its current content into an
// immutable Set that a run operates on.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/remiblancher/primlab/internal/primitive"
)

type key struct {
	primitive string
	backend   string
}

// Registry is an append-only table of backends keyed by
// (category, primitive, backend). It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends map[key]primitive.Backend
	// categories pins each primitive to the category of its first backend.
	categories map[string]primitive.Category
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		backends:   make(map[key]primitive.Backend),
		categories: make(map[string]primitive.Category),
	}
}

// RegisterHash registers a Hash backend.
func (r *Registry) RegisterHash(d primitive.Descriptor, h primitive.Hash) error {
	return r.register(primitive.CategoryHash, d, h)
}

// RegisterBlockCipher registers a BlockCipher backend.
func (r *Registry) RegisterBlockCipher(d primitive.Descriptor, c primitive.BlockCipher) error {
	return r.register(primitive.CategoryBlockCipher, d, c)
}

// RegisterSignatureScheme registers a SignatureScheme backend.
func (r *Registry) RegisterSignatureScheme(d primitive.Descriptor, s primitive.SignatureScheme) error {
	return r.register(primitive.CategorySignature, d, s)
}

// Register registers impl under the category declared in d. It is the
// untyped entry point used by loaders that only know the descriptor; the
// implementation must satisfy exactly the declared contract.
func (r *Registry) Register(d primitive.Descriptor, impl any) error {
	return r.register(d.Category, d, impl)
}

func (r *Registry) register(expected primitive.Category, d primitive.Descriptor, impl any) error {
	if d.Category == "" {
		d.Category = expected
	}
	if d.Category != expected {
		return primitive.NewConfigError(primitive.ErrCategoryMismatch, d.Primitive, d.Backend,
			"declared %s but registered as %s", d.Category, expected)
	}
	if err := d.Validate(); err != nil {
		return primitive.NewConfigError(primitive.ErrInvalidBackend, d.Primitive, d.Backend, "%v", err)
	}
	if impl == nil {
		return primitive.NewConfigError(primitive.ErrInvalidBackend, d.Primitive, d.Backend, "nil implementation")
	}

	provided, err := primitive.CategoryOf(impl)
	if err != nil {
		return primitive.NewConfigError(primitive.ErrCategoryMismatch, d.Primitive, d.Backend, "%v", err)
	}
	if provided != d.Category {
		return primitive.NewConfigError(primitive.ErrCategoryMismatch, d.Primitive, d.Backend,
			"declared %s but implementation provides %s operations", d.Category, provided)
	}

	b := primitive.Backend{Descriptor: d, Impl: impl}
	if err := checkCapabilities(b); err != nil {
		return err
	}
	if err := checkSizes(b); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{primitive: d.Primitive, backend: d.Backend}
	if _, exists := r.backends[k]; exists {
		return primitive.NewConfigError(primitive.ErrDuplicateBackend, d.Primitive, d.Backend,
			"backend already registered")
	}
	if cat, ok := r.categories[d.Primitive]; ok && cat != d.Category {
		return primitive.NewConfigError(primitive.ErrCategoryMismatch, d.Primitive, d.Backend,
			"primitive already registered as %s", cat)
	}
	if err := r.checkDimensions(b); err != nil {
		return err
	}

	r.backends[k] = b
	r.categories[d.Primitive] = d.Category
	return nil
}

func checkCapabilities(b primitive.Backend) error {
	d := b.Descriptor
	if d.Capabilities.Streaming {
		if d.Category != primitive.CategoryHash || b.Streamer() == nil {
			return primitive.NewConfigError(primitive.ErrInvalidBackend, d.Primitive, d.Backend,
				"declares streaming but does not implement New() hash.Hash")
		}
	}
	if d.Capabilities.DeterministicSign && d.Category != primitive.CategorySignature {
		return primitive.NewConfigError(primitive.ErrInvalidBackend, d.Primitive, d.Backend,
			"deterministic signing declared on a %s backend", d.Category)
	}
	return nil
}

// checkSizes rejects declared sizes no input could be generated for.
func checkSizes(b primitive.Backend) error {
	d := b.Descriptor
	invalid := func(format string, args ...any) error {
		return primitive.NewConfigError(primitive.ErrInvalidBackend, d.Primitive, d.Backend, format, args...)
	}
	switch d.Category {
	case primitive.CategoryHash:
		if n := b.Hash().Size(); n <= 0 {
			return invalid("digest size must be positive, got %d", n)
		}
	case primitive.CategoryBlockCipher:
		c := b.BlockCipher()
		if n := c.BlockSize(); n <= 0 {
			return invalid("block size must be positive, got %d", n)
		}
		sizes := c.KeySizes()
		if len(sizes) == 0 {
			return invalid("declares no key sizes")
		}
		for _, n := range sizes {
			if n <= 0 {
				return invalid("key sizes must be positive, got %v", sizes)
			}
		}
	case primitive.CategorySignature:
		if n := b.Signature().SeedSize(); n < 0 {
			return invalid("seed size must not be negative, got %d", n)
		}
	}
	return nil
}

// checkDimensions ensures backends of one primitive agree on declared sizes.
// Caller holds r.mu.
func (r *Registry) checkDimensions(b primitive.Backend) error {
	d := b.Descriptor
	for k, other := range r.backends {
		if k.primitive != d.Primitive {
			continue
		}
		want, got := dimensions(other), dimensions(b)
		if want != got {
			return primitive.NewConfigError(primitive.ErrInvalidBackend, d.Primitive, d.Backend,
				"declares %s, %s declares %s", got, other.ID(), want)
		}
		return nil
	}
	return nil
}

func dimensions(b primitive.Backend) string {
	switch b.Descriptor.Category {
	case primitive.CategoryHash:
		return fmt.Sprintf("digest size %d", b.Hash().Size())
	case primitive.CategoryBlockCipher:
		c := b.BlockCipher()
		sizes := append([]int(nil), c.KeySizes()...)
		sort.Ints(sizes)
		return fmt.Sprintf("block size %d, key sizes %v", c.BlockSize(), sizes)
	case primitive.CategorySignature:
		return fmt.Sprintf("seed size %d", b.Signature().SeedSize())
	}
	return ""
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

// Snapshot freezes the registry into a Set. Every primitive must have at
// least one reference backend.
func (r *Registry) Snapshot() (*Set, error) {
	r.mu.RLock()
	all := make([]primitive.Backend, 0, len(r.backends))
	for _, b := range r.backends {
		all = append(all, b)
	}
	r.mu.RUnlock()

	return newSet(all)
}
