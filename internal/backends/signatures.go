package backends

import (
	stded25519 "crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

var errSeedSize = errors.New("wrong seed size")

// =============================================================================
// Ed25519
// =============================================================================

type circlEd25519 struct{}

func (circlEd25519) SeedSize() int { return ed25519.SeedSize }

func (circlEd25519) GenerateKey(seed []byte) ([]byte, []byte, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, nil, errSeedSize
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return []byte(priv.Public().(ed25519.PublicKey)), []byte(priv), nil
}

func (circlEd25519) Sign(priv, msg []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ed25519: private key must be %d bytes", ed25519.PrivateKeySize)
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), msg), nil
}

func (circlEd25519) Verify(pub, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

type stdlibEd25519 struct{}

func (stdlibEd25519) SeedSize() int { return stded25519.SeedSize }

func (stdlibEd25519) GenerateKey(seed []byte) ([]byte, []byte, error) {
	if len(seed) != stded25519.SeedSize {
		return nil, nil, errSeedSize
	}
	priv := stded25519.NewKeyFromSeed(seed)
	return []byte(priv.Public().(stded25519.PublicKey)), []byte(priv), nil
}

func (stdlibEd25519) Sign(priv, msg []byte) ([]byte, error) {
	if len(priv) != stded25519.PrivateKeySize {
		return nil, fmt.Errorf("ed25519: private key must be %d bytes", stded25519.PrivateKeySize)
	}
	return stded25519.Sign(priv, msg), nil
}

func (stdlibEd25519) Verify(pub, msg, sig []byte) bool {
	if len(pub) != stded25519.PublicKeySize {
		return false
	}
	return stded25519.Verify(pub, msg, sig)
}

// =============================================================================
// Ed448 (empty context)
// =============================================================================

type circlEd448 struct{}

func (circlEd448) SeedSize() int { return ed448.SeedSize }

func (circlEd448) GenerateKey(seed []byte) ([]byte, []byte, error) {
	if len(seed) != ed448.SeedSize {
		return nil, nil, errSeedSize
	}
	priv := ed448.NewKeyFromSeed(seed)
	return []byte(priv.Public().(ed448.PublicKey)), []byte(priv), nil
}

func (circlEd448) Sign(priv, msg []byte) ([]byte, error) {
	if len(priv) != ed448.PrivateKeySize {
		return nil, fmt.Errorf("ed448: private key must be %d bytes", ed448.PrivateKeySize)
	}
	return ed448.Sign(ed448.PrivateKey(priv), msg, ""), nil
}

func (circlEd448) Verify(pub, msg, sig []byte) bool {
	if len(pub) != ed448.PublicKeySize || len(sig) != ed448.SignatureSize {
		return false
	}
	return ed448.Verify(ed448.PublicKey(pub), msg, sig, "")
}

// =============================================================================
// ML-DSA-44 (FIPS 204, deterministic variant, empty context)
// =============================================================================

type circlMLDSA44 struct{}

func (circlMLDSA44) SeedSize() int { return mldsa44.SeedSize }

func (circlMLDSA44) GenerateKey(seed []byte) ([]byte, []byte, error) {
	if len(seed) != mldsa44.SeedSize {
		return nil, nil, errSeedSize
	}
	var s [mldsa44.SeedSize]byte
	copy(s[:], seed)
	pk, sk := mldsa44.NewKeyFromSeed(&s)
	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

func (circlMLDSA44) Sign(priv, msg []byte) ([]byte, error) {
	var sk mldsa44.PrivateKey
	if err := sk.UnmarshalBinary(priv); err != nil {
		return nil, fmt.Errorf("ml-dsa-44: %w", err)
	}
	sig := make([]byte, mldsa44.SignatureSize)
	if err := mldsa44.SignTo(&sk, msg, nil, false, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

func (circlMLDSA44) Verify(pub, msg, sig []byte) bool {
	var pk mldsa44.PublicKey
	if err := pk.UnmarshalBinary(pub); err != nil {
		return false
	}
	return mldsa44.Verify(&pk, msg, nil, sig)
}

// =============================================================================
// secp256k1 ECDSA via btcec
// =============================================================================

// btcecScheme follows the portable backend's conventions: SHA-256 message
// digest, compressed keys, 64-byte low-S r || s signatures.
type btcecScheme struct{}

func (btcecScheme) SeedSize() int { return 32 }

func (btcecScheme) GenerateKey(seed []byte) ([]byte, []byte, error) {
	if len(seed) != 32 {
		return nil, nil, errSeedSize
	}
	n := btcec.S256().Params().N
	d := new(big.Int).SetBytes(seed)
	d.Mod(d, new(big.Int).Sub(n, big.NewInt(1)))
	d.Add(d, big.NewInt(1))

	priv := make([]byte, 32)
	d.FillBytes(priv)
	key, pub := btcec.PrivKeyFromBytes(priv)
	key.Zero()
	return pub.SerializeCompressed(), priv, nil
}

func (btcecScheme) Sign(priv, msg []byte) ([]byte, error) {
	if len(priv) != 32 {
		return nil, errors.New("secp256k1: private key must be 32 bytes")
	}
	var k btcec.ModNScalar
	if overflow := k.SetByteSlice(priv); overflow || k.IsZero() {
		return nil, errors.New("secp256k1: private key out of range")
	}
	key := btcec.PrivKeyFromScalar(&k)
	defer key.Zero()

	digest := sha256.Sum256(msg)
	der := btcecdsa.Sign(key, digest[:]).Serialize()
	return derToCompact(der)
}

func (btcecScheme) Verify(pub, msg, sig []byte) bool {
	if len(sig) != 64 {
		return false
	}
	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return false
	}
	var r, s btcec.ModNScalar
	if r.SetByteSlice(sig[:32]) || s.SetByteSlice(sig[32:]) {
		return false
	}
	if r.IsZero() || s.IsZero() || s.IsOverHalfOrder() {
		return false
	}
	digest := sha256.Sum256(msg)
	return btcecdsa.NewSignature(&r, &s).Verify(digest[:], key)
}

// derToCompact converts an ASN.1 ECDSA-Sig-Value into r || s.
func derToCompact(der []byte) ([]byte, error) {
	var (
		r, s  = new(big.Int), new(big.Int)
		inner cryptobyte.String
	)
	input := cryptobyte.String(der)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) || !input.Empty() ||
		!inner.ReadASN1Integer(r) || !inner.ReadASN1Integer(s) || !inner.Empty() {
		return nil, errors.New("secp256k1: malformed DER signature")
	}
	out := make([]byte, 64)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out, nil
}
