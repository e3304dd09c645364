//go:build cgo

package pkcs11

import (
	"fmt"

	"github.com/miekg/pkcs11"
)

// SHA256 digests with CKM_SHA256 on the token.
type SHA256 struct {
	pool *sessionPool
}

// Open loads the module and locates the token.
func Open(cfg Config) (*SHA256, error) {
	pool, err := openPool(cfg)
	if err != nil {
		return nil, err
	}
	return &SHA256{pool: pool}, nil
}

func (*SHA256) Size() int { return 32 }

func (h *SHA256) Digest(msg []byte) ([]byte, error) {
	session, release, err := h.pool.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_SHA256, nil)}
	if err := h.pool.ctx.DigestInit(session, mech); err != nil {
		return nil, fmt.Errorf("C_DigestInit: %w", err)
	}
	out, err := h.pool.ctx.Digest(session, msg)
	if err != nil {
		return nil, fmt.Errorf("C_Digest: %w", err)
	}
	return out, nil
}

// Close releases every session and finalizes the module.
func (h *SHA256) Close() error { return h.pool.close() }
