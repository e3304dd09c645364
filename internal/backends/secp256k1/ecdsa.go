package secp256k1

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"math/big"
)

// SeedSize is the length of the randomness a key pair is derived from.
const SeedSize = 32

// SignatureSize is the length of an r || s signature.
const SignatureSize = 64

var one = big.NewInt(1)

// ErrPrivateKey reports a private key outside [1, n-1].
var ErrPrivateKey = errors.New("secp256k1: invalid private key")

// KeyFromSeed maps seed to a private scalar in [1, n-1] as
// int(seed) mod (n-1) + 1.
func KeyFromSeed(seed []byte) *big.Int {
	nMinus1 := new(big.Int).Sub(N, one)
	d := new(big.Int).SetBytes(seed)
	d.Mod(d, nMinus1)
	return d.Add(d, one)
}

func validScalar(k *big.Int) bool {
	return k.Sign() > 0 && k.Cmp(N) < 0
}

// nonce derives k per RFC 6979 section 3.2 with HMAC-SHA256. retry is
// called to advance the generator when a candidate is rejected.
type nonce struct {
	k, v []byte
}

func newNonce(d *big.Int, h1 []byte) *nonce {
	x := make([]byte, 32)
	d.FillBytes(x)
	e := new(big.Int).SetBytes(h1)
	e.Mod(e, N)
	h := make([]byte, 32)
	e.FillBytes(h)

	g := &nonce{k: make([]byte, 32), v: make([]byte, 32)}
	for i := range g.v {
		g.v[i] = 0x01
	}
	g.k = g.mac(g.v, []byte{0x00}, x, h)
	g.v = g.mac(g.v)
	g.k = g.mac(g.v, []byte{0x01}, x, h)
	g.v = g.mac(g.v)
	return g
}

func (g *nonce) mac(parts ...[]byte) []byte {
	m := hmac.New(sha256.New, g.k)
	for _, p := range parts {
		m.Write(p)
	}
	return m.Sum(nil)
}

func (g *nonce) next() *big.Int {
	for {
		g.v = g.mac(g.v)
		k := new(big.Int).SetBytes(g.v)
		if validScalar(k) {
			return k
		}
		g.retry()
	}
}

func (g *nonce) retry() {
	g.k = g.mac(g.v, []byte{0x00})
	g.v = g.mac(g.v)
}

// SignHash signs a 32-byte digest with d. The returned s is low-S.
func SignHash(d *big.Int, digest []byte) (r, s *big.Int, err error) {
	if !validScalar(d) {
		return nil, nil, ErrPrivateKey
	}
	e := new(big.Int).SetBytes(digest)
	g := newNonce(d, digest)
	for {
		k := g.next()
		r = ScalarBaseMult(k).X
		r.Mod(r, N)
		if r.Sign() == 0 {
			g.retry()
			continue
		}
		s = new(big.Int).Mul(r, d)
		s.Add(s, e)
		s.Mul(s, new(big.Int).ModInverse(k, N))
		s.Mod(s, N)
		if s.Sign() == 0 {
			g.retry()
			continue
		}
		if s.Cmp(halfN) > 0 {
			s.Sub(N, s)
		}
		return r, s, nil
	}
}

// VerifyHash checks (r, s) over digest. High-S signatures are rejected.
func VerifyHash(q Point, digest []byte, r, s *big.Int) bool {
	if q.IsInfinity() || !q.IsOnCurve() {
		return false
	}
	if !validScalar(r) || !validScalar(s) || s.Cmp(halfN) > 0 {
		return false
	}
	e := new(big.Int).SetBytes(digest)
	w := new(big.Int).ModInverse(s, N)
	u1 := e.Mul(e, w)
	u1.Mod(u1, N)
	u2 := new(big.Int).Mul(r, w)
	u2.Mod(u2, N)

	x := Add(ScalarBaseMult(u1), ScalarMult(u2, q))
	if x.IsInfinity() {
		return false
	}
	v := new(big.Int).Mod(x.X, N)
	return v.Cmp(r) == 0
}

// Scheme adapts the package to the signature contract. Messages are
// hashed with SHA-256; public keys are compressed; signatures are r || s.
type Scheme struct{}

func (Scheme) SeedSize() int { return SeedSize }

func (Scheme) GenerateKey(seed []byte) (pub, priv []byte, err error) {
	if len(seed) != SeedSize {
		return nil, nil, errors.New("secp256k1: seed must be 32 bytes")
	}
	d := KeyFromSeed(seed)
	priv = make([]byte, 32)
	d.FillBytes(priv)
	return ScalarBaseMult(d).Compress(), priv, nil
}

func (Scheme) Sign(priv, msg []byte) ([]byte, error) {
	if len(priv) != 32 {
		return nil, ErrPrivateKey
	}
	digest := sha256.Sum256(msg)
	r, s, err := SignHash(new(big.Int).SetBytes(priv), digest[:])
	if err != nil {
		return nil, err
	}
	sig := make([]byte, SignatureSize)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	return sig, nil
}

func (Scheme) Verify(pub, msg, sig []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}
	q, err := Decompress(pub)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(msg)
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	return VerifyHash(q, digest[:], r, s)
}
