// Package secp256k1 is a portable reference implementation of ECDSA over
// secp256k1 in affine coordinates on math/big. It favors legibility over
// speed and is not constant time.
package secp256k1

import (
	"errors"
	"math/big"
)

// Curve parameters for y^2 = x^3 + 7 over F_p.
var (
	P  = mustInt("fffffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2f", 16)
	N  = mustInt("115792089237316195423570985008687907852837564279074904382605163141518161494337", 10)
	Gx = mustInt("55066263022277343669578718895168534326250603453777594175500187360389116729240", 10)
	Gy = mustInt("32670510020758816978083085130507043184471273380659243275938904335757337482424", 10)
	B  = big.NewInt(7)

	halfN   = new(big.Int).Rsh(N, 1)
	sqrtExp = new(big.Int).Rsh(new(big.Int).Add(P, big.NewInt(1)), 2)
)

var (
	ErrPointEncoding = errors.New("secp256k1: invalid point encoding")
	ErrNotOnCurve    = errors.New("secp256k1: point not on curve")
)

func mustInt(s string, base int) *big.Int {
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		panic("secp256k1: bad constant " + s)
	}
	return v
}

// Point is an affine point. The zero value is the point at infinity.
type Point struct {
	X, Y *big.Int
}

// Generator returns the base point G.
func Generator() Point {
	return Point{X: new(big.Int).Set(Gx), Y: new(big.Int).Set(Gy)}
}

// IsInfinity reports whether p is the identity.
func (p Point) IsInfinity() bool { return p.X == nil }

// Equal compares two points.
func (p Point) Equal(q Point) bool {
	if p.IsInfinity() || q.IsInfinity() {
		return p.IsInfinity() == q.IsInfinity()
	}
	return p.X.Cmp(q.X) == 0 && p.Y.Cmp(q.Y) == 0
}

// IsOnCurve reports whether p satisfies the curve equation.
func (p Point) IsOnCurve() bool {
	if p.IsInfinity() {
		return true
	}
	if p.X.Sign() < 0 || p.X.Cmp(P) >= 0 || p.Y.Sign() < 0 || p.Y.Cmp(P) >= 0 {
		return false
	}
	lhs := new(big.Int).Mul(p.Y, p.Y)
	lhs.Mod(lhs, P)
	return lhs.Cmp(rhs(p.X)) == 0
}

// rhs returns x^3 + 7 mod p.
func rhs(x *big.Int) *big.Int {
	r := new(big.Int).Mul(x, x)
	r.Mul(r, x)
	r.Add(r, B)
	return r.Mod(r, P)
}

// Add returns p + q.
func Add(p, q Point) Point {
	switch {
	case p.IsInfinity():
		return q
	case q.IsInfinity():
		return p
	}
	if p.X.Cmp(q.X) == 0 {
		sum := new(big.Int).Add(p.Y, q.Y)
		if sum.Mod(sum, P).Sign() == 0 {
			return Point{}
		}
		return Double(p)
	}

	// lambda = (qy - py) / (qx - px)
	num := new(big.Int).Sub(q.Y, p.Y)
	den := new(big.Int).Sub(q.X, p.X)
	den.ModInverse(den.Mod(den, P), P)
	lambda := num.Mul(num, den)
	lambda.Mod(lambda, P)
	return chord(lambda, p, q.X)
}

// Double returns 2p.
func Double(p Point) Point {
	if p.IsInfinity() || p.Y.Sign() == 0 {
		return Point{}
	}
	// lambda = 3x^2 / 2y
	num := new(big.Int).Mul(p.X, p.X)
	num.Mul(num, big.NewInt(3))
	den := new(big.Int).Lsh(p.Y, 1)
	den.ModInverse(den.Mod(den, P), P)
	lambda := num.Mul(num, den)
	lambda.Mod(lambda, P)
	return chord(lambda, p, p.X)
}

// chord completes an addition given the slope through p and a point with
// abscissa qx.
func chord(lambda *big.Int, p Point, qx *big.Int) Point {
	x := new(big.Int).Mul(lambda, lambda)
	x.Sub(x, p.X)
	x.Sub(x, qx)
	x.Mod(x, P)

	y := new(big.Int).Sub(p.X, x)
	y.Mul(y, lambda)
	y.Sub(y, p.Y)
	y.Mod(y, P)
	return Point{X: x, Y: y}
}

// ScalarMult returns k*p by left-to-right double-and-add.
func ScalarMult(k *big.Int, p Point) Point {
	var r Point
	for i := k.BitLen() - 1; i >= 0; i-- {
		r = Double(r)
		if k.Bit(i) == 1 {
			r = Add(r, p)
		}
	}
	return r
}

// ScalarBaseMult returns k*G.
func ScalarBaseMult(k *big.Int) Point {
	return ScalarMult(k, Generator())
}

// Compress encodes a finite point in 33-byte SEC1 compressed form.
func (p Point) Compress() []byte {
	out := make([]byte, 33)
	out[0] = 0x02 | byte(p.Y.Bit(0))
	p.X.FillBytes(out[1:])
	return out
}

// Decompress parses a 33-byte SEC1 compressed point.
func Decompress(b []byte) (Point, error) {
	if len(b) != 33 || (b[0] != 0x02 && b[0] != 0x03) {
		return Point{}, ErrPointEncoding
	}
	x := new(big.Int).SetBytes(b[1:])
	if x.Cmp(P) >= 0 {
		return Point{}, ErrPointEncoding
	}
	y2 := rhs(x)
	y := new(big.Int).Exp(y2, sqrtExp, P)
	check := new(big.Int).Mul(y, y)
	if check.Mod(check, P).Cmp(y2) != 0 {
		return Point{}, ErrNotOnCurve
	}
	if y.Bit(0) != uint(b[0]&1) {
		y.Sub(P, y)
	}
	return Point{X: x, Y: y}, nil
}
