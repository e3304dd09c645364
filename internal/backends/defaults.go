// Package backends wires the concrete primitive implementations shipped
// with primlab into a registry.
package backends

import (
	"context"
	"fmt"
	"io"

	"github.com/remiblancher/primlab/internal/backends/aesref"
	"github.com/remiblancher/primlab/internal/backends/pkcs11"
	"github.com/remiblancher/primlab/internal/backends/ripemd"
	"github.com/remiblancher/primlab/internal/backends/secp256k1"
	"github.com/remiblancher/primlab/internal/logging"
	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/registry"
)

// Options configures RegisterDefaults.
type Options struct {
	// PKCS11 adds sha256/pkcs11 when a library is configured.
	PKCS11 pkcs11.Config
	Logger logging.Logger
}

// Entry is one built-in backend.
type Entry struct {
	Descriptor primitive.Descriptor
	Impl       any
}

// Catalogue lists the built-in software backends, reference first within
// each primitive.
func Catalogue() []Entry {
	streaming := primitive.Capabilities{Streaming: true}
	deterministic := primitive.Capabilities{DeterministicSign: true}
	hashD := func(p, b string, ref bool, caps primitive.Capabilities, desc string) primitive.Descriptor {
		return primitive.Descriptor{Category: primitive.CategoryHash, Primitive: p, Backend: b, Reference: ref, Capabilities: caps, Description: desc}
	}
	sigD := func(p, b string, ref bool, desc string) primitive.Descriptor {
		return primitive.Descriptor{Category: primitive.CategorySignature, Primitive: p, Backend: b, Reference: ref, Capabilities: deterministic, Description: desc}
	}

	return []Entry{
		{hashD("sha256", "stdlib", true, streaming, "crypto/sha256"), stdlibSHA256{}},
		{hashD("sha3-256", "xcrypto", true, streaming, "golang.org/x/crypto/sha3"), xcryptoSHA3{}},
		{hashD("sha3-256", "stdlib", false, streaming, "crypto/sha3"), stdlibSHA3{}},
		{hashD("blake2b-256", "xcrypto", true, primitive.Capabilities{}, "golang.org/x/crypto/blake2b Sum256"), blake2bSum{}},
		{hashD("blake2b-256", "xcrypto-stream", false, streaming, "golang.org/x/crypto/blake2b New256"), blake2bStream{}},
		{hashD("ripemd160", "portable", true, streaming, "portable RIPEMD-160"), ripemd.Hash{}},
		{hashD("ripemd160", "xcrypto", false, streaming, "golang.org/x/crypto/ripemd160"), xcryptoRIPEMD160{}},

		{primitive.Descriptor{
			Category: primitive.CategoryBlockCipher, Primitive: "aes", Backend: "portable", Reference: true,
			Description: "byte-oriented FIPS-197 without T-tables",
		}, aesref.Cipher{}},
		{primitive.Descriptor{
			Category: primitive.CategoryBlockCipher, Primitive: "aes", Backend: "stdlib",
			Description: "crypto/aes",
		}, stdlibAES{}},

		{sigD("ed25519", "circl", true, "github.com/cloudflare/circl/sign/ed25519"), circlEd25519{}},
		{sigD("ed25519", "stdlib", false, "crypto/ed25519"), stdlibEd25519{}},
		{sigD("ed448", "circl", true, "github.com/cloudflare/circl/sign/ed448, empty context"), circlEd448{}},
		{sigD("secp256k1-ecdsa", "portable", true, "affine math/big ECDSA, RFC 6979"), secp256k1.Scheme{}},
		{sigD("secp256k1-ecdsa", "btcec", false, "github.com/btcsuite/btcd/btcec/v2/ecdsa"), btcecScheme{}},
		{sigD("ml-dsa-44", "circl", true, "github.com/cloudflare/circl/sign/mldsa/mldsa44, deterministic; signing time varies with the key (rejection sampling)"), circlMLDSA44{}},
	}
}

// RegisterDefaults registers every built-in backend, plus the token-backed
// SHA-256 when opts.PKCS11 names a library. The returned Closer releases
// the token; it is never nil.
func RegisterDefaults(ctx context.Context, reg *registry.Registry, opts Options) (io.Closer, error) {
	log := logging.OrDiscard(opts.Logger)

	for _, e := range Catalogue() {
		if err := reg.Register(e.Descriptor, e.Impl); err != nil {
			return nopCloser{}, err
		}
	}

	if !opts.PKCS11.Enabled() {
		return nopCloser{}, nil
	}
	h, err := pkcs11.Open(opts.PKCS11)
	if err != nil {
		return nopCloser{}, fmt.Errorf("pkcs11 backend: %w", err)
	}
	d := primitive.Descriptor{
		Category:     primitive.CategoryHash,
		Primitive:    "sha256",
		Backend:      "pkcs11",
		Capabilities: primitive.Capabilities{Hardware: true},
		Description:  "CKM_SHA256 on " + opts.PKCS11.Lib,
	}
	if err := reg.RegisterHash(d, h); err != nil {
		_ = h.Close()
		return nopCloser{}, err
	}
	log.Info(ctx, "registered token backend", "backend", d.ID(), "lib", opts.PKCS11.Lib)
	return h, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
