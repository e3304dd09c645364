package corpus

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/result"
	"github.com/remiblancher/primlab/internal/vectors"
)

type sha struct{}

func (sha) Size() int { return sha256.Size }

func (sha) Digest(m []byte) ([]byte, error) {
	d := sha256.Sum256(m)
	return d[:], nil
}

type xorCipher struct{}

func (xorCipher) BlockSize() int                           { return 16 }
func (xorCipher) KeySizes() []int                          { return []int{16, 32} }
func (xorCipher) EncryptBlock(k, b []byte) ([]byte, error) { return b, nil }
func (xorCipher) DecryptBlock(k, b []byte) ([]byte, error) { return b, nil }

type edScheme struct{ failSign bool }

func (edScheme) SeedSize() int { return ed25519.SeedSize }

func (edScheme) GenerateKey(seed []byte) ([]byte, []byte, error) {
	sk := ed25519.NewKeyFromSeed(seed)
	return sk.Public().(ed25519.PublicKey), sk, nil
}

func (e edScheme) Sign(sk, m []byte) ([]byte, error) {
	if e.failSign {
		return nil, errors.New("sign failed")
	}
	return ed25519.Sign(sk, m), nil
}

func (edScheme) Verify(pk, m, sig []byte) bool {
	return len(pk) == ed25519.PublicKeySize && ed25519.Verify(pk, m, sig)
}

func backend(p string, cat primitive.Category, impl any) primitive.Backend {
	return primitive.Backend{
		Descriptor: primitive.Descriptor{Category: cat, Primitive: p, Backend: "ref", Reference: true},
		Impl:       impl,
	}
}

func TestU_Build_Deterministic(t *testing.T) {
	ref := backend("sha256", primitive.CategoryHash, sha{})
	vs := []vectors.Vector{{ID: "abc", Primitive: "sha256", Input: []byte("abc")}}

	a, faults := Build(context.Background(), ref, vs, Options{Seed: 7, Count: 20})
	require.Empty(t, faults)
	b, _ := Build(context.Background(), ref, vs, Options{Seed: 7, Count: 20})
	c, _ := Build(context.Background(), ref, vs, Options{Seed: 8, Count: 20})

	require.Len(t, a, 21)
	assert.Equal(t, "vec:abc", a[0].ID)
	assert.Equal(t, KindVector, a[0].Kind)
	assert.Equal(t, "rand:0", a[1].ID)
	assert.Equal(t, a, b, "same seed yields the same corpus")
	assert.NotEqual(t, a[1].Input, c[1].Input, "different seed yields different inputs")
	for _, cs := range a[1:] {
		assert.LessOrEqual(t, len(cs.Input), maxHashMessage)
	}
}

func TestU_Build_StreamsIndependent(t *testing.T) {
	x := NewRand(1, "corpus/a").Uint64()
	y := NewRand(1, "corpus/b").Uint64()
	assert.NotEqual(t, x, y)
}

func TestU_Build_BlockCipherKeySizes(t *testing.T) {
	ref := backend("aes", primitive.CategoryBlockCipher, xorCipher{})
	cases, _ := Build(context.Background(), ref, nil, Options{Seed: 1, Count: 4})
	require.Len(t, cases, 4)
	assert.Len(t, cases[0].Params[primitive.ParamKey], 16)
	assert.Len(t, cases[1].Params[primitive.ParamKey], 32)
	assert.Len(t, cases[2].Input, 16)
}

func TestU_Build_SignatureTriples(t *testing.T) {
	s := edScheme{}
	ref := backend("ed25519", primitive.CategorySignature, s)
	cases, faults := Build(context.Background(), ref, nil, Options{Seed: 3, Count: 8})
	require.Empty(t, faults)
	require.Len(t, cases, 8)

	for _, c := range cases {
		ok := s.Verify(c.Params[primitive.ParamPublicKey], c.Input, c.Expected)
		assert.Equal(t, !c.ExpectFailure, ok, "%s (%s)", c.ID, c.Kind)
	}
	assert.Equal(t, KindValid, cases[0].Kind)
	assert.NotNil(t, cases[0].Params[primitive.ParamSeed])
	assert.Equal(t, KindMutatedMessage, cases[1].Kind)
	assert.Equal(t, KindForeignKey, cases[2].Kind)
	assert.Equal(t, KindMutatedSignature, cases[3].Kind)

	fields := cases[0].Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"public_key", "seed", "message", "signature"}, names)
}

func TestU_Build_ReferenceFault(t *testing.T) {
	ref := backend("ed25519", primitive.CategorySignature, edScheme{failSign: true})
	cases, faults := Build(context.Background(), ref, nil, Options{Seed: 3, Count: 2})
	assert.Empty(t, cases)
	require.Len(t, faults, 2)
	assert.Equal(t, result.Error, faults[0].Outcome)
	assert.Equal(t, "ref", faults[0].Backend)
}

func TestU_Build_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ref := backend("sha256", primitive.CategoryHash, sha{})
	cases, _ := Build(ctx, ref, nil, Options{Seed: 1, Count: 100})
	assert.Empty(t, cases)
}

func TestU_Mutate(t *testing.T) {
	in := []byte{0, 0, 0}
	out := mutate(in, 0x0102)
	assert.Equal(t, []byte{0, 0, 0}, in, "input untouched")
	assert.NotEqual(t, in, out)
	assert.Len(t, mutate(nil, 0), 1)
}
