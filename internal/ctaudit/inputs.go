package ctaudit

import (
	"bytes"
	"fmt"
	"math/rand/v2"

	"github.com/remiblancher/primlab/internal/corpus"
	"github.com/remiblancher/primlab/internal/primitive"
)

// auditMessageSize is the length of fixed and secret messages.
const auditMessageSize = 64

// variant is one value of the secret field.
type variant struct {
	name  string
	value []byte
}

// variantPairs indexes into the slice returned by secretVariants. The
// extreme values are each compared with a random one before two random
// values are compared with each other.
var variantPairs = [][2]int{{0, 2}, {1, 2}, {2, 3}}

func secretVariants(r *rand.Rand, size int) []variant {
	return []variant{
		{name: "zero", value: make([]byte, size)},
		{name: "ones", value: bytes.Repeat([]byte{0xff}, size)},
		{name: "random-1", value: corpus.Bytes(r, size)},
		{name: "random-2", value: corpus.Bytes(r, size)},
	}
}

// fixture holds the public inputs kept constant across every variant.
type fixture struct {
	key     []byte
	block   []byte
	seed    []byte
	message []byte
}

func newFixture(r *rand.Rand, b primitive.Backend) fixture {
	var fx fixture
	switch b.Descriptor.Category {
	case primitive.CategoryBlockCipher:
		c := b.BlockCipher()
		fx.key = corpus.Bytes(r, c.KeySizes()[0])
		fx.block = corpus.Bytes(r, c.BlockSize())
	case primitive.CategorySignature:
		fx.seed = corpus.Bytes(r, b.Signature().SeedSize())
		fx.message = corpus.Bytes(r, auditMessageSize)
	default:
		fx.message = corpus.Bytes(r, auditMessageSize)
	}
	return fx
}

// fieldSize returns the length of the values a secret field takes.
func fieldSize(b primitive.Backend, field string) (int, error) {
	switch {
	case b.Descriptor.Category == primitive.CategoryBlockCipher && field == primitive.FieldKey:
		return b.BlockCipher().KeySizes()[0], nil
	case b.Descriptor.Category == primitive.CategoryBlockCipher && field == primitive.FieldBlock:
		return b.BlockCipher().BlockSize(), nil
	case b.Descriptor.Category == primitive.CategorySignature && field == primitive.FieldSeed:
		return b.Signature().SeedSize(), nil
	case field == primitive.FieldMessage:
		return auditMessageSize, nil
	}
	return 0, fmt.Errorf("field %q is not an input of %s primitives", field, b.Descriptor.Category)
}

// prepare returns a closure invoking impl once with field set to secret and
// every other input taken from fx. Work that is not part of the audited
// operation, such as deriving a signing key from a secret seed, happens here
// and is not timed.
func prepare(cat primitive.Category, impl any, field string, fx fixture, secret []byte) (func() error, error) {
	switch cat {
	case primitive.CategoryHash:
		h, ok := impl.(primitive.Hash)
		if !ok {
			return nil, fmt.Errorf("%T does not implement the hash contract", impl)
		}
		return func() error {
			_, err := h.Digest(secret)
			return err
		}, nil

	case primitive.CategoryBlockCipher:
		c, ok := impl.(primitive.BlockCipher)
		if !ok {
			return nil, fmt.Errorf("%T does not implement the block cipher contract", impl)
		}
		key, block := fx.key, fx.block
		if field == primitive.FieldKey {
			key = secret
		} else {
			block = secret
		}
		return func() error {
			_, err := c.EncryptBlock(key, block)
			return err
		}, nil

	case primitive.CategorySignature:
		s, ok := impl.(primitive.SignatureScheme)
		if !ok {
			return nil, fmt.Errorf("%T does not implement the signature contract", impl)
		}
		seed, msg := fx.seed, fx.message
		if field == primitive.FieldSeed {
			seed = secret
		} else {
			msg = secret
		}
		_, sk, err := s.GenerateKey(seed)
		if err != nil {
			return nil, fmt.Errorf("key generation: %w", err)
		}
		return func() error {
			_, err := s.Sign(sk, msg)
			return err
		}, nil
	}
	return nil, fmt.Errorf("unknown category %q", cat)
}
