package crypto

import (
	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"

	"github.com/screa/onion-vanity-miner/pkg/types"
)

// ReduceScalar reduces a 256-bit value modulo the edwards25519 group order.
func ReduceScalar(s types.Scalar256) *edwards25519.Scalar {
	var wide [64]byte
	b := s.Bytes()
	copy(wide[:], b[:])

	sc, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
	if err != nil {
		// only possible for a wrong input length
		panic(err)
	}
	return sc
}

// ScalarBaseMult returns s*B for the edwards25519 base point B.
func ScalarBaseMult(s types.Scalar256) *edwards25519.Point {
	return new(edwards25519.Point).ScalarBaseMult(ReduceScalar(s))
}

// PublicKeyFor returns the encoded public key for a raw scalar.
func PublicKeyFor(s types.Scalar256) [PublicKeyLen]byte {
	var out [PublicKeyLen]byte
	copy(out[:], ScalarBaseMult(s).Bytes())
	return out
}

// BatchEncoder converts runs of points to their 32-byte encoding using a
// single field inversion per run (Montgomery's simultaneous inversion).
type BatchEncoder struct {
	acc  []field.Element
	zInv []field.Element
}

// NewBatchEncoder allocates scratch space for runs of up to n points.
func NewBatchEncoder(n int) *BatchEncoder {
	return &BatchEncoder{
		acc:  make([]field.Element, n),
		zInv: make([]field.Element, n),
	}
}

// Encode writes the canonical encoding of points[i] into out[i].
// len(points) must not exceed the size given to NewBatchEncoder.
func (e *BatchEncoder) Encode(points []edwards25519.Point, out [][PublicKeyLen]byte) {
	n := len(points)
	if n == 0 {
		return
	}

	// acc[i] = Z0*Z1*...*Zi
	_, _, z, _ := points[0].ExtendedCoordinates()
	e.acc[0].Set(z)
	for i := 1; i < n; i++ {
		_, _, z, _ = points[i].ExtendedCoordinates()
		e.acc[i].Multiply(&e.acc[i-1], z)
	}

	inv := new(field.Element).Invert(&e.acc[n-1])
	for i := n - 1; i > 0; i-- {
		_, _, z, _ = points[i].ExtendedCoordinates()
		e.zInv[i].Multiply(inv, &e.acc[i-1])
		inv.Multiply(inv, z)
	}
	e.zInv[0].Set(inv)

	var x, y field.Element
	for i := 0; i < n; i++ {
		X, Y, _, _ := points[i].ExtendedCoordinates()
		x.Multiply(X, &e.zInv[i])
		y.Multiply(Y, &e.zInv[i])

		copy(out[i][:], y.Bytes())
		out[i][PublicKeyLen-1] |= byte(x.IsNegative() << 7)
	}
}
