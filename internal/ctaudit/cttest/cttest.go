// Package cttest provides toy block ciphers with known timing behavior for
// exercising the constant-time auditor. Both encrypt by XOR with the key
// after screening the key against the all-zero weak key; they differ only in
// how the screening is done.
package cttest

import (
	"errors"
	"sync/atomic"

	"github.com/remiblancher/primlab/internal/primitive"
)

const (
	BlockSize = 16
	KeySize   = 16
	// DefaultWork is the number of mixing rounds spent per key byte examined.
	DefaultWork = 512
)

var errSize = errors.New("cttest: wrong key or block size")

// sink keeps the mixing work observable so it is not optimized away.
var sink atomic.Uint64

func mix(n int, b byte) uint64 {
	x := uint64(b) | 1
	for i := 0; i < n; i++ {
		x = x*6364136223846793005 + 1442695040888963407
	}
	return x
}

func xorBlock(key, block []byte) ([]byte, error) {
	if len(key) != KeySize || len(block) != BlockSize {
		return nil, errSize
	}
	out := make([]byte, BlockSize)
	for i := range out {
		out[i] = block[i] ^ key[i]
	}
	return out, nil
}

func work(w int) int {
	if w <= 0 {
		return DefaultWork
	}
	return w
}

// Leaky screens the key with an early-exit comparison: it stops at the first
// byte that is not zero, so an all-zero key takes sixteen times longer than
// a typical one.
type Leaky struct {
	Work   int
	tracer primitive.Tracer
}

func (Leaky) BlockSize() int  { return BlockSize }
func (Leaky) KeySizes() []int { return []int{KeySize} }

func (l Leaky) screen(key []byte) {
	var acc uint64
	for _, b := range key {
		acc ^= mix(work(l.Work), b)
		weak := b == 0
		if l.tracer != nil {
			l.tracer.Branch("weak-key-scan", weak)
		}
		if !weak {
			break
		}
	}
	sink.Add(acc)
}

func (l Leaky) EncryptBlock(key, block []byte) ([]byte, error) {
	if len(key) == KeySize {
		l.screen(key)
	}
	return xorBlock(key, block)
}

func (l Leaky) DecryptBlock(key, block []byte) ([]byte, error) {
	return l.EncryptBlock(key, block)
}

// Instrumented implements primitive.Instrumentable.
func (l Leaky) Instrumented(t primitive.Tracer) any {
	l.tracer = t
	return l
}

// FixedTime screens every key byte and folds the result without branching.
type FixedTime struct {
	Work   int
	tracer primitive.Tracer
}

func (FixedTime) BlockSize() int  { return BlockSize }
func (FixedTime) KeySizes() []int { return []int{KeySize} }

func (f FixedTime) screen(key []byte) {
	var acc uint64
	var nonzero byte
	for i, b := range key {
		acc ^= mix(work(f.Work), b)
		nonzero |= b
		if f.tracer != nil {
			f.tracer.Access("weak-key-scan", i)
		}
	}
	sink.Add(acc ^ uint64(nonzero))
}

func (f FixedTime) EncryptBlock(key, block []byte) ([]byte, error) {
	if len(key) == KeySize {
		f.screen(key)
	}
	return xorBlock(key, block)
}

func (f FixedTime) DecryptBlock(key, block []byte) ([]byte, error) {
	return f.EncryptBlock(key, block)
}

// Instrumented implements primitive.Instrumentable.
func (f FixedTime) Instrumented(t primitive.Tracer) any {
	f.tracer = t
	return f
}
