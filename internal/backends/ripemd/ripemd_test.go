package ripemd

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // used as an independent oracle
)

func TestU_Sum_ReferenceVectors(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "9c1185a5c5e9fc54612808977ee8f548b2258d31"},
		{"a", "0bdc9d2d256b3ee9daae347be6f4dc835a467ffe"},
		{"abc", "8eb208f7e05d987a9b044a8e98c6b087f15a0bfc"},
		{"message digest", "5d0689ef49d2fae572b881b123a85ffa21595f36"},
		{"abcdefghijklmnopqrstuvwxyz", "f71c27109c692c1b56bbdceb5b9d2865b3708dbc"},
		{strings.Repeat("1234567890", 8), "9b752e45573d4b39f4dbd3323cab82bf63326bfb"},
	}
	for _, tt := range tests {
		got := Sum([]byte(tt.in))
		assert.Equal(t, tt.want, hex.EncodeToString(got[:]), "input %q", tt.in)
	}
}

func TestU_Sum_MillionA(t *testing.T) {
	if testing.Short() {
		t.Skip("long input")
	}
	got := Sum([]byte(strings.Repeat("a", 1000000)))
	assert.Equal(t, "52783243c1697bdbe16d37f97f68f08325dc1528", hex.EncodeToString(got[:]))
}

func TestU_New_StreamingMatchesOneShot(t *testing.T) {
	msg := make([]byte, 300)
	for i := range msg {
		msg[i] = byte(i * 7)
	}
	for _, chunk := range []int{1, 3, 55, 56, 63, 64, 65, 300} {
		h := New()
		for off := 0; off < len(msg); off += chunk {
			end := min(off+chunk, len(msg))
			_, err := h.Write(msg[off:end])
			require.NoError(t, err)
		}
		want := Sum(msg)
		assert.Equal(t, want[:], h.Sum(nil), "chunk %d", chunk)
	}
}

func TestU_Sum_DoesNotFinalize(t *testing.T) {
	h := New()
	h.Write([]byte("ab"))
	_ = h.Sum(nil)
	h.Write([]byte("c"))
	want := Sum([]byte("abc"))
	assert.Equal(t, want[:], h.Sum(nil))

	h.Reset()
	empty := Sum(nil)
	assert.Equal(t, empty[:], h.Sum(nil))
}

func TestU_Sum_MatchesXCrypto(t *testing.T) {
	for n := 0; n < 200; n++ {
		msg := []byte(strings.Repeat("x", n))
		o := ripemd160.New()
		o.Write(msg)
		got := Sum(msg)
		require.Equal(t, o.Sum(nil), got[:], "length %d", n)
	}
}
