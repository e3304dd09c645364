package primitive

import (
	"fmt"
	"hash"
)

// Hash is the contract of a fixed-output hash function.
// Digest must be deterministic for a given backend.
type Hash interface {
	// Size returns the digest length in bytes.
	Size() int
	Digest(message []byte) ([]byte, error)
}

// Streamer is implemented by Hash backends that also expose an incremental
// interface. Backends declaring the Streaming capability must implement it.
type Streamer interface {
	New() hash.Hash
}

// BlockCipher is the contract of a block cipher.
// DecryptBlock(key, EncryptBlock(key, b)) must equal b for every valid key and block.
type BlockCipher interface {
	BlockSize() int
	// KeySizes returns the accepted key lengths in bytes.
	KeySizes() []int
	EncryptBlock(key, block []byte) ([]byte, error)
	DecryptBlock(key, block []byte) ([]byte, error)
}

// SignatureScheme is the contract of a digital signature scheme.
//
// GenerateKey must be deterministic in the supplied randomness so that
// corpus generation is reproducible. Verify must return false, never panic,
// for signatures made under another key or over a different message.
type SignatureScheme interface {
	// SeedSize returns the number of random bytes GenerateKey consumes.
	SeedSize() int
	GenerateKey(randomness []byte) (publicKey, privateKey []byte, err error)
	Sign(privateKey, message []byte) ([]byte, error)
	Verify(publicKey, message, signature []byte) bool
}

// CategoryOf reports which contract impl satisfies. An implementation that
// satisfies none or more than one contract is rejected.
func CategoryOf(impl any) (Category, error) {
	var found []Category
	if _, ok := impl.(Hash); ok {
		found = append(found, CategoryHash)
	}
	if _, ok := impl.(BlockCipher); ok {
		found = append(found, CategoryBlockCipher)
	}
	if _, ok := impl.(SignatureScheme); ok {
		found = append(found, CategorySignature)
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("%T implements no primitive contract", impl)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%T implements more than one primitive contract %v", impl, found)
	}
}

// Backend pairs a descriptor with its implementation.
type Backend struct {
	Descriptor Descriptor
	Impl       any
}

// ID returns the descriptor ID.
func (b Backend) ID() string {
	return b.Descriptor.ID()
}

// Hash returns the Hash implementation or nil.
func (b Backend) Hash() Hash {
	h, _ := b.Impl.(Hash)
	return h
}

// BlockCipher returns the BlockCipher implementation or nil.
func (b Backend) BlockCipher() BlockCipher {
	c, _ := b.Impl.(BlockCipher)
	return c
}

// Signature returns the SignatureScheme implementation or nil.
func (b Backend) Signature() SignatureScheme {
	s, _ := b.Impl.(SignatureScheme)
	return s
}

// Streamer returns the streaming interface or nil.
func (b Backend) Streamer() Streamer {
	s, _ := b.Impl.(Streamer)
	return s
}
