package backends

import (
	"crypto/sha256"
	stdsha3 "crypto/sha3"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // RIPEMD-160 is under test here, not used for security
	"golang.org/x/crypto/sha3"
)

type stdlibSHA256 struct{}

func (stdlibSHA256) Size() int { return sha256.Size }

func (stdlibSHA256) Digest(msg []byte) ([]byte, error) {
	d := sha256.Sum256(msg)
	return d[:], nil
}

func (stdlibSHA256) New() hash.Hash { return sha256.New() }

type xcryptoSHA3 struct{}

func (xcryptoSHA3) Size() int { return 32 }

func (xcryptoSHA3) Digest(msg []byte) ([]byte, error) {
	d := sha3.Sum256(msg)
	return d[:], nil
}

func (xcryptoSHA3) New() hash.Hash { return sha3.New256() }

type stdlibSHA3 struct{}

func (stdlibSHA3) Size() int { return 32 }

func (stdlibSHA3) Digest(msg []byte) ([]byte, error) {
	d := stdsha3.Sum256(msg)
	return d[:], nil
}

func (stdlibSHA3) New() hash.Hash { return stdsha3.New256() }

// blake2bSum is the one-shot Sum256 path.
type blake2bSum struct{}

func (blake2bSum) Size() int { return blake2b.Size256 }

func (blake2bSum) Digest(msg []byte) ([]byte, error) {
	d := blake2b.Sum256(msg)
	return d[:], nil
}

// blake2bStream digests through the unkeyed New256 hash.Hash.
type blake2bStream struct{}

func (blake2bStream) Size() int { return blake2b.Size256 }

func (blake2bStream) Digest(msg []byte) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	h.Write(msg)
	return h.Sum(nil), nil
}

func (blake2bStream) New() hash.Hash {
	h, _ := blake2b.New256(nil)
	return h
}

type xcryptoRIPEMD160 struct{}

func (xcryptoRIPEMD160) Size() int { return ripemd160.Size }

func (xcryptoRIPEMD160) Digest(msg []byte) ([]byte, error) {
	h := ripemd160.New()
	h.Write(msg)
	return h.Sum(nil), nil
}

func (xcryptoRIPEMD160) New() hash.Hash { return ripemd160.New() }
