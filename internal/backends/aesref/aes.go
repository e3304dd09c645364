// Package aesref is a portable, byte-oriented AES (FIPS-197) used as the
// reference block cipher. It has no T-tables; every S-box lookup scans the
// whole table under a mask so the memory access pattern does not depend on
// the data.
package aesref

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// BlockSize is the AES block size in bytes.
const BlockSize = 16

var errBlockSize = errors.New("aesref: block must be 16 bytes")

var sbox, invSbox [256]byte

var rcon = [10]byte{0x01, 0x02, 0x04, 0x08, 0x10, 0x20, 0x40, 0x80, 0x1b, 0x36}

func init() {
	for x := 0; x < 256; x++ {
		inv := gfInverse(byte(x))
		s := inv ^ rotl(inv, 1) ^ rotl(inv, 2) ^ rotl(inv, 3) ^ rotl(inv, 4) ^ 0x63
		sbox[x] = s
		invSbox[s] = byte(x)
	}
}

func rotl(b byte, n uint) byte { return b<<n | b>>(8-n) }

// gfMul multiplies in GF(2^8) modulo x^8+x^4+x^3+x+1.
func gfMul(a, b byte) byte {
	var p byte
	for i := 0; i < 8; i++ {
		p ^= -(b & 1) & a
		hi := -(a >> 7)
		a = a<<1 ^ hi&0x1b
		b >>= 1
	}
	return p
}

// gfInverse returns a^254, which is a^-1 for a != 0 and 0 for a == 0.
func gfInverse(a byte) byte {
	r := byte(1)
	for e := 254; e > 0; e >>= 1 {
		if e&1 == 1 {
			r = gfMul(r, a)
		}
		a = gfMul(a, a)
	}
	return r
}

// lookup reads t[x] by touching every entry.
func lookup(t *[256]byte, x byte) byte {
	var r byte
	for i := 0; i < 256; i++ {
		d := uint32(byte(i)^x) - 1
		r |= t[i] & byte(d>>24)
	}
	return r
}

// Schedule is an expanded key: 4*(rounds+1) big-endian round key words.
type Schedule struct {
	w      []uint32
	rounds int
}

// ExpandKey runs the FIPS-197 key expansion for a 16, 24 or 32 byte key.
func ExpandKey(key []byte) (*Schedule, error) {
	nk := len(key) / 4
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("aesref: invalid key size %d", len(key))
	}
	rounds := nk + 6
	w := make([]uint32, 4*(rounds+1))
	for i := 0; i < nk; i++ {
		w[i] = binary.BigEndian.Uint32(key[4*i:])
	}
	for i := nk; i < len(w); i++ {
		t := w[i-1]
		switch {
		case i%nk == 0:
			t = subWord(t<<8|t>>24) ^ uint32(rcon[i/nk-1])<<24
		case nk > 6 && i%nk == 4:
			t = subWord(t)
		}
		w[i] = w[i-nk] ^ t
	}
	return &Schedule{w: w, rounds: rounds}, nil
}

// NewScheduleFromWords builds a schedule from explicit round key words,
// which lets callers run AES under a modified key schedule.
func NewScheduleFromWords(words []uint32) (*Schedule, error) {
	switch len(words) {
	case 44, 52, 60:
	default:
		return nil, fmt.Errorf("aesref: %d round key words", len(words))
	}
	return &Schedule{w: append([]uint32(nil), words...), rounds: len(words)/4 - 1}, nil
}

// Words returns a copy of the round key words.
func (s *Schedule) Words() []uint32 { return append([]uint32(nil), s.w...) }

// Rounds is 10, 12 or 14.
func (s *Schedule) Rounds() int { return s.rounds }

func subWord(w uint32) uint32 {
	return uint32(lookup(&sbox, byte(w>>24)))<<24 |
		uint32(lookup(&sbox, byte(w>>16)))<<16 |
		uint32(lookup(&sbox, byte(w>>8)))<<8 |
		uint32(lookup(&sbox, byte(w)))
}

type state [16]byte

func (st *state) addRoundKey(w []uint32) {
	for c := 0; c < 4; c++ {
		st[4*c] ^= byte(w[c] >> 24)
		st[4*c+1] ^= byte(w[c] >> 16)
		st[4*c+2] ^= byte(w[c] >> 8)
		st[4*c+3] ^= byte(w[c])
	}
}

func (st *state) sub(t *[256]byte) {
	for i := range st {
		st[i] = lookup(t, st[i])
	}
}

func (st *state) shiftRows() {
	old := *st
	for r := 1; r < 4; r++ {
		for c := 0; c < 4; c++ {
			st[r+4*c] = old[r+4*((c+r)%4)]
		}
	}
}

func (st *state) invShiftRows() {
	old := *st
	for r := 1; r < 4; r++ {
		for c := 0; c < 4; c++ {
			st[r+4*((c+r)%4)] = old[r+4*c]
		}
	}
}

func (st *state) mixColumns() {
	for c := 0; c < 4; c++ {
		a0, a1, a2, a3 := st[4*c], st[4*c+1], st[4*c+2], st[4*c+3]
		st[4*c] = gfMul(a0, 2) ^ gfMul(a1, 3) ^ a2 ^ a3
		st[4*c+1] = a0 ^ gfMul(a1, 2) ^ gfMul(a2, 3) ^ a3
		st[4*c+2] = a0 ^ a1 ^ gfMul(a2, 2) ^ gfMul(a3, 3)
		st[4*c+3] = gfMul(a0, 3) ^ a1 ^ a2 ^ gfMul(a3, 2)
	}
}

func (st *state) invMixColumns() {
	for c := 0; c < 4; c++ {
		a0, a1, a2, a3 := st[4*c], st[4*c+1], st[4*c+2], st[4*c+3]
		st[4*c] = gfMul(a0, 14) ^ gfMul(a1, 11) ^ gfMul(a2, 13) ^ gfMul(a3, 9)
		st[4*c+1] = gfMul(a0, 9) ^ gfMul(a1, 14) ^ gfMul(a2, 11) ^ gfMul(a3, 13)
		st[4*c+2] = gfMul(a0, 13) ^ gfMul(a1, 9) ^ gfMul(a2, 14) ^ gfMul(a3, 11)
		st[4*c+3] = gfMul(a0, 11) ^ gfMul(a1, 13) ^ gfMul(a2, 9) ^ gfMul(a3, 14)
	}
}

func (s *Schedule) roundKey(r int) []uint32 { return s.w[4*r : 4*r+4] }

// Encrypt enciphers one 16-byte block from src into dst.
func (s *Schedule) Encrypt(dst, src []byte) {
	var st state
	copy(st[:], src[:BlockSize])
	st.addRoundKey(s.roundKey(0))
	for r := 1; r < s.rounds; r++ {
		st.sub(&sbox)
		st.shiftRows()
		st.mixColumns()
		st.addRoundKey(s.roundKey(r))
	}
	st.sub(&sbox)
	st.shiftRows()
	st.addRoundKey(s.roundKey(s.rounds))
	copy(dst, st[:])
}

// Decrypt deciphers one 16-byte block from src into dst.
func (s *Schedule) Decrypt(dst, src []byte) {
	var st state
	copy(st[:], src[:BlockSize])
	st.addRoundKey(s.roundKey(s.rounds))
	for r := s.rounds - 1; r > 0; r-- {
		st.invShiftRows()
		st.sub(&invSbox)
		st.addRoundKey(s.roundKey(r))
		st.invMixColumns()
	}
	st.invShiftRows()
	st.sub(&invSbox)
	st.addRoundKey(s.roundKey(0))
	copy(dst, st[:])
}

// Cipher adapts the package to the block cipher contract. Schedule, when
// set, maps a key to the schedule to use in place of ExpandKey.
type Cipher struct {
	Schedule func(key []byte) (*Schedule, error)
}

func (Cipher) BlockSize() int { return BlockSize }

func (Cipher) KeySizes() []int { return []int{16, 24, 32} }

func (c Cipher) expand(key []byte) (*Schedule, error) {
	if c.Schedule != nil {
		return c.Schedule(key)
	}
	return ExpandKey(key)
}

func (c Cipher) EncryptBlock(key, block []byte) ([]byte, error) {
	if len(block) != BlockSize {
		return nil, errBlockSize
	}
	s, err := c.expand(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, BlockSize)
	s.Encrypt(out, block)
	return out, nil
}

func (c Cipher) DecryptBlock(key, block []byte) ([]byte, error) {
	if len(block) != BlockSize {
		return nil, errBlockSize
	}
	s, err := c.expand(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, BlockSize)
	s.Decrypt(out, block)
	return out, nil
}
