package aesref

import (
	"crypto/aes"
	"encoding/hex"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestU_SBox_KnownEntries(t *testing.T) {
	assert.Equal(t, byte(0x63), sbox[0x00])
	assert.Equal(t, byte(0x7c), sbox[0x01])
	assert.Equal(t, byte(0xed), sbox[0x53])
	assert.Equal(t, byte(0x16), sbox[0xff])
	for x := 0; x < 256; x++ {
		assert.Equal(t, byte(x), invSbox[sbox[x]])
		assert.Equal(t, sbox[x], lookup(&sbox, byte(x)))
	}
}

func TestU_Cipher_FIPS197(t *testing.T) {
	pt := "00112233445566778899aabbccddeeff"
	tests := []struct {
		name string
		key  []byte
		ct   string
	}{
		{"[Unit] AES: 128-bit key", seq(16), "69c4e0d86a7b0430d8cdb78070b4c55a"},
		{"[Unit] AES: 192-bit key", seq(24), "dda97ca4864cdfe06eaf70a0ec0d7191"},
		{"[Unit] AES: 256-bit key", seq(32), "8ea2b7ca516745bfeafc49904b496089"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Cipher{}
			ct, err := c.EncryptBlock(tt.key, mustHex(t, pt))
			require.NoError(t, err)
			assert.Equal(t, tt.ct, hex.EncodeToString(ct))

			back, err := c.DecryptBlock(tt.key, ct)
			require.NoError(t, err)
			assert.Equal(t, pt, hex.EncodeToString(back))
		})
	}
}

func TestU_Cipher_MatchesStdlib(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 60; i++ {
		key := make([]byte, []int{16, 24, 32}[i%3])
		block := make([]byte, BlockSize)
		for j := range key {
			key[j] = byte(r.Uint32())
		}
		for j := range block {
			block[j] = byte(r.Uint32())
		}

		std, err := aes.NewCipher(key)
		require.NoError(t, err)
		want := make([]byte, BlockSize)
		std.Encrypt(want, block)

		got, err := Cipher{}.EncryptBlock(key, block)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestU_Cipher_Errors(t *testing.T) {
	_, err := Cipher{}.EncryptBlock(make([]byte, 15), make([]byte, 16))
	assert.Error(t, err)
	_, err = Cipher{}.DecryptBlock(make([]byte, 16), make([]byte, 8))
	assert.Error(t, err)
}

func TestU_Schedule_Words(t *testing.T) {
	s, err := ExpandKey(seq(16))
	require.NoError(t, err)
	assert.Equal(t, 10, s.Rounds())

	w := s.Words()
	require.Len(t, w, 44)
	assert.Equal(t, uint32(0x00010203), w[0])
	s2, err := NewScheduleFromWords(w)
	require.NoError(t, err)
	a, b := make([]byte, 16), make([]byte, 16)
	s.Encrypt(a, seq(16))
	s2.Encrypt(b, seq(16))
	assert.Equal(t, a, b)

	w[0] ^= 1
	assert.Equal(t, uint32(0x00010203), s.Words()[0], "Words returns a copy")

	_, err = NewScheduleFromWords(make([]uint32, 40))
	assert.Error(t, err)
}

func TestU_Cipher_CustomSchedule(t *testing.T) {
	swapped := Cipher{Schedule: func(key []byte) (*Schedule, error) {
		s, err := ExpandKey(key)
		if err != nil {
			return nil, err
		}
		w := s.Words()
		w[0] = w[0]&0x0000ffff | (w[0]>>16&0xff)<<24 | (w[0]>>24)<<16
		return NewScheduleFromWords(w)
	}}

	same := make([]byte, 16)
	same[0], same[1] = 7, 7
	block := seq(16)
	a, _ := Cipher{}.EncryptBlock(same, block)
	b, _ := swapped.EncryptBlock(same, block)
	assert.Equal(t, a, b, "equal leading bytes hide the swap")

	a, _ = Cipher{}.EncryptBlock(seq(16), block)
	b, _ = swapped.EncryptBlock(seq(16), block)
	assert.NotEqual(t, a, b)
}
