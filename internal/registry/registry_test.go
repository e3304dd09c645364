package registry

import (
	"crypto/sha256"
	"errors"
	"hash"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiblancher/primlab/internal/primitive"
)

type sha struct{}

func (sha) Size() int { return sha256.Size }

func (sha) Digest(m []byte) ([]byte, error) {
	d := sha256.Sum256(m)
	return d[:], nil
}

type streamingSHA struct{ sha }

func (streamingSHA) New() hash.Hash { return sha256.New() }

type shortHash struct{}

func (shortHash) Size() int                     { return 20 }
func (shortHash) Digest([]byte) ([]byte, error) { return make([]byte, 20), nil }

type nopCipher struct{}

func (nopCipher) BlockSize() int                           { return 16 }
func (nopCipher) KeySizes() []int                          { return []int{16} }
func (nopCipher) EncryptBlock(_, b []byte) ([]byte, error) { return b, nil }
func (nopCipher) DecryptBlock(_, b []byte) ([]byte, error) { return b, nil }

// sizedCipher declares whatever sizes it is given.
type sizedCipher struct {
	nopCipher
	block int
	keys  []int
}

func (c sizedCipher) BlockSize() int  { return c.block }
func (c sizedCipher) KeySizes() []int { return c.keys }

type sizedHash struct {
	shortHash
	size int
}

func (h sizedHash) Size() int { return h.size }

type badSeedScheme struct{}

func (badSeedScheme) SeedSize() int                              { return -1 }
func (badSeedScheme) GenerateKey([]byte) ([]byte, []byte, error) { return nil, nil, nil }
func (badSeedScheme) Sign([]byte, []byte) ([]byte, error)        { return nil, nil }
func (badSeedScheme) Verify(_, _, _ []byte) bool                 { return false }

type both struct {
	sha
	nopCipher
}

func desc(p, b string, ref bool) primitive.Descriptor {
	return primitive.Descriptor{Primitive: p, Backend: b, Reference: ref}
}

// =============================================================================
// Registration
// =============================================================================

func TestU_Registry_RegisterHash(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterHash(desc("sha256", "stdlib", true), sha{}))
	require.NoError(t, r.RegisterHash(desc("sha256", "alt", false), sha{}))
	assert.Equal(t, 2, r.Len())

	set, err := r.Snapshot()
	require.NoError(t, err)
	bs := set.Backends("sha256")
	require.Len(t, bs, 2)
	assert.Equal(t, "sha256/stdlib", bs[0].ID(), "reference sorts first")
	assert.Equal(t, primitive.CategoryHash, bs[0].Descriptor.Category, "category filled from registration call")
}

func TestU_Registry_Duplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterHash(desc("sha256", "stdlib", true), sha{}))

	err := r.RegisterHash(desc("sha256", "stdlib", false), sha{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, primitive.ErrDuplicateBackend))
	assert.True(t, primitive.IsConfigurationError(err))

	set, err := r.Snapshot()
	require.NoError(t, err)
	b, ok := set.Lookup("sha256/stdlib")
	require.True(t, ok)
	assert.True(t, b.Descriptor.Reference, "first registration is not overwritten")
}

func TestU_Registry_CategoryMismatch(t *testing.T) {
	t.Run("[Unit] Register: declared category differs from operations", func(t *testing.T) {
		r := New()
		d := desc("aes", "x", true)
		d.Category = primitive.CategoryBlockCipher
		err := r.Register(d, sha{})
		assert.True(t, errors.Is(err, primitive.ErrCategoryMismatch))
	})

	t.Run("[Unit] Register: typed call with wrong declared category", func(t *testing.T) {
		r := New()
		d := desc("sha256", "x", true)
		d.Category = primitive.CategorySignature
		err := r.RegisterHash(d, sha{})
		assert.True(t, errors.Is(err, primitive.ErrCategoryMismatch))
	})

	t.Run("[Unit] Register: implementation satisfies two contracts", func(t *testing.T) {
		r := New()
		err := r.RegisterHash(desc("sha256", "x", true), both{})
		assert.True(t, errors.Is(err, primitive.ErrCategoryMismatch))
	})

	t.Run("[Unit] Register: primitive already bound to another category", func(t *testing.T) {
		r := New()
		require.NoError(t, r.RegisterHash(desc("mixed", "a", true), sha{}))
		err := r.RegisterBlockCipher(desc("mixed", "b", false), nopCipher{})
		assert.True(t, errors.Is(err, primitive.ErrCategoryMismatch))
	})
}

func TestU_Registry_Capabilities(t *testing.T) {
	r := New()
	d := desc("sha256", "plain", true)
	d.Capabilities.Streaming = true
	err := r.RegisterHash(d, sha{})
	assert.True(t, errors.Is(err, primitive.ErrInvalidBackend))

	d.Backend = "streaming"
	assert.NoError(t, r.RegisterHash(d, streamingSHA{}))

	d2 := desc("aes", "det", true)
	d2.Capabilities.DeterministicSign = true
	err = r.RegisterBlockCipher(d2, nopCipher{})
	assert.True(t, errors.Is(err, primitive.ErrInvalidBackend))
}

func TestU_Registry_Dimensions(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterHash(desc("sha256", "stdlib", true), sha{}))
	err := r.RegisterHash(desc("sha256", "short", false), shortHash{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, primitive.ErrInvalidBackend))
	assert.Contains(t, err.Error(), "digest size 20")
}

func TestU_Registry_InvalidSizes(t *testing.T) {
	tests := []struct {
		name     string
		register func(r *Registry) error
		want     string
	}{
		{"[Unit] Sizes: zero digest size", func(r *Registry) error {
			return r.RegisterHash(desc("sha256", "empty", true), sizedHash{size: 0})
		}, "digest size must be positive"},
		{"[Unit] Sizes: zero block size", func(r *Registry) error {
			return r.RegisterBlockCipher(desc("aes", "noblock", true), sizedCipher{block: 0, keys: []int{16}})
		}, "block size must be positive"},
		{"[Unit] Sizes: no key sizes", func(r *Registry) error {
			return r.RegisterBlockCipher(desc("aes", "nokeys", true), sizedCipher{block: 16})
		}, "declares no key sizes"},
		{"[Unit] Sizes: negative key size", func(r *Registry) error {
			return r.RegisterBlockCipher(desc("aes", "negkey", true), sizedCipher{block: 16, keys: []int{16, -8}})
		}, "key sizes must be positive"},
		{"[Unit] Sizes: negative seed size", func(r *Registry) error {
			return r.RegisterSignatureScheme(desc("ed25519", "badseed", true), badSeedScheme{})
		}, "seed size must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			err := tt.register(r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, primitive.ErrInvalidBackend))
			assert.True(t, primitive.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.want)
			assert.Zero(t, r.Len())
		})
	}
}

func TestU_Registry_InvalidDescriptor(t *testing.T) {
	r := New()
	err := r.RegisterHash(desc("SHA 256", "stdlib", true), sha{})
	assert.True(t, errors.Is(err, primitive.ErrInvalidBackend))

	err = r.RegisterHash(desc("sha256", "nil", true), nil)
	assert.True(t, errors.Is(err, primitive.ErrInvalidBackend))
}

func TestU_Registry_ConcurrentRegister(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.RegisterHash(desc("sha256", "stdlib", true), sha{})
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, primitive.ErrDuplicateBackend):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 15, dup)
}

// =============================================================================
// Snapshot and Set
// =============================================================================

func TestU_Snapshot_MissingReference(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterHash(desc("sha256", "a", false), sha{}))
	require.NoError(t, r.RegisterBlockCipher(desc("aes", "b", false), nopCipher{}))

	_, err := r.Snapshot()
	require.Error(t, err)
	assert.True(t, errors.Is(err, primitive.ErrMissingReference))
	assert.Contains(t, err.Error(), "2 configuration errors")
}

func TestU_Snapshot_Isolated(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterHash(desc("sha256", "stdlib", true), sha{}))
	first, err := r.Snapshot()
	require.NoError(t, err)

	require.NoError(t, r.RegisterHash(desc("sha256", "alt", false), sha{}))
	second, err := r.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, 1, first.Len(), "earlier snapshot does not see later registrations")
	assert.Equal(t, 2, second.Len())
}

func TestU_Set_Filter(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterHash(desc("sha256", "stdlib", true), sha{}))
	require.NoError(t, r.RegisterHash(desc("sha256", "alt", false), sha{}))
	require.NoError(t, r.RegisterBlockCipher(desc("aes", "portable", true), nopCipher{}))
	require.NoError(t, r.RegisterBlockCipher(desc("aes", "stdlib", false), nopCipher{}))
	set, err := r.Snapshot()
	require.NoError(t, err)

	t.Run("[Unit] Filter: by primitive", func(t *testing.T) {
		sub, err := set.Filter([]string{"aes"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"aes"}, sub.Primitives())
		assert.Equal(t, 2, sub.Len())
	})

	t.Run("[Unit] Filter: by backend keeps reference", func(t *testing.T) {
		sub, err := set.Filter(nil, []string{"sha256/alt"})
		require.NoError(t, err)
		assert.Equal(t, []string{"sha256"}, sub.Primitives())
		_, ok := sub.Lookup("sha256/stdlib")
		assert.True(t, ok)
	})

	t.Run("[Unit] Filter: backend name matches every primitive", func(t *testing.T) {
		sub, err := set.Filter(nil, []string{"stdlib"})
		require.NoError(t, err)
		assert.Equal(t, []string{"aes", "sha256"}, sub.Primitives())
		assert.Equal(t, 3, sub.Len())
	})

	t.Run("[Unit] Filter: unknown primitive", func(t *testing.T) {
		_, err := set.Filter([]string{"md5"}, nil)
		assert.True(t, errors.Is(err, primitive.ErrUnknownPrimitive))
	})
}
