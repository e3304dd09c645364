package backends

import (
	"crypto/aes"
	"fmt"
)

type stdlibAES struct{}

func (stdlibAES) BlockSize() int { return aes.BlockSize }

func (stdlibAES) KeySizes() []int { return []int{16, 24, 32} }

func (stdlibAES) EncryptBlock(key, block []byte) ([]byte, error) {
	if len(block) != aes.BlockSize {
		return nil, fmt.Errorf("aes: block must be %d bytes", aes.BlockSize)
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, aes.BlockSize)
	c.Encrypt(out, block)
	return out, nil
}

func (stdlibAES) DecryptBlock(key, block []byte) ([]byte, error) {
	if len(block) != aes.BlockSize {
		return nil, fmt.Errorf("aes: block must be %d bytes", aes.BlockSize)
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, aes.BlockSize)
	c.Decrypt(out, block)
	return out, nil
}
