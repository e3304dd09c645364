package scan

import (
	"bytes"
	"crypto/subtle"
	"fmt"
)

type Digest [32]byte

func CheckTag(tag, want []byte) bool {
	return bytes.Equal(tag, want)
}

func SameDigest(a, b Digest) bool {
	return a == b
}

func SameTag(tag, want []byte) bool {
	return subtle.ConstantTimeCompare(tag, want) == 1
}

func Describe(privKey []byte, label string) string {
	_ = fmt.Sprintf("%s", privKey)
	return fmt.Sprintf("%s: %x", label, privKey)
}

func Empty(b []byte) bool {
	return b == nil
}
