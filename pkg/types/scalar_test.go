package types

import (
	"math"
	"math/big"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

func scalarToBig(s Scalar256) *big.Int {
	b := s.Bytes()
	// big.Int wants big-endian
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return new(big.Int).SetBytes(b[:])
}

func scalarToUint256(s Scalar256) *uint256.Int {
	b := s.Bytes()
	return new(uint256.Int).SetBytes(reverse(b[:]))
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

func TestScalarAddEdgeCases(t *testing.T) {
	top := Scalar256{math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32}

	tests := []struct {
		name string
		base Scalar256
		add  uint64
		want Scalar256
	}{
		{"zero plus zero", Scalar256{}, 0, Scalar256{}},
		{"no carry", Scalar256{1}, 2, Scalar256{3}},
		{"carry into word 1", Scalar256{math.MaxUint32}, 1, Scalar256{0, 1}},
		{"high half of addend", Scalar256{}, 1 << 40, Scalar256{0, 1 << 8}},
		{"max addend", Scalar256{1}, math.MaxUint64, Scalar256{0, 0, 1}},
		{"carry ripples to top", Scalar256{math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32, 0}, 1, Scalar256{0, 0, 0, 0, 0, 0, 0, 1}},
		{"wraparound", top, 1, Scalar256{}},
		{"wraparound with remainder", top, 5, Scalar256{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.base
			got.Add(tt.add)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScalarAddMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		var s Scalar256
		for j := range s {
			s[j] = rng.Uint32()
		}
		// bias some samples towards carry chains
		if i%4 == 0 {
			for j := 0; j < 1+rng.Intn(ScalarWords); j++ {
				s[j] = math.MaxUint32
			}
		}
		n := rng.Uint64()

		wantBig := new(big.Int).Add(scalarToBig(s), new(big.Int).SetUint64(n))
		wantBig.Mod(wantBig, two256)

		wantU := scalarToUint256(s)
		wantU.Add(wantU, uint256.NewInt(n))

		got := s.Plus(n)
		require.Equal(t, 0, wantBig.Cmp(scalarToBig(got)), "big.Int mismatch for %x + %d", s, n)
		require.True(t, wantU.Eq(scalarToUint256(got)), "uint256 mismatch for %x + %d", s, n)
	}
}

func TestScalarBytesRoundTrip(t *testing.T) {
	s := Scalar256{0x04030201, 0x08070605, 0, 0, 0, 0, 0, 0xdeadbeef}
	b := s.Bytes()
	assert.Equal(t, byte(0x01), b[0])
	assert.Equal(t, byte(0xde), b[31])
	assert.Equal(t, "0102030405060708", s.Hex()[:16])

	back, err := ScalarFromBytes(b[:])
	require.NoError(t, err)
	assert.Equal(t, s, back)

	_, err = ScalarFromBytes(b[:31])
	require.Error(t, err)

	assert.True(t, Scalar256{}.IsZero())
	assert.False(t, s.IsZero())
}

func TestScalarCmpMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	assert.Equal(t, 0, Scalar256{}.Cmp(Scalar256{}))
	assert.Equal(t, 1, Scalar256{0, 0, 0, 0, 0, 0, 0, 1}.Cmp(Scalar256{math.MaxUint32}))
	assert.Equal(t, -1, Scalar256{5}.Cmp(Scalar256{6}))

	for i := 0; i < 500; i++ {
		var a, b Scalar256
		for j := range a {
			a[j] = rng.Uint32()
			b[j] = a[j]
		}
		// differ in a random word so high and low words are both exercised
		b[rng.Intn(ScalarWords)] = rng.Uint32()

		require.Equal(t, scalarToUint256(a).Cmp(scalarToUint256(b)), a.Cmp(b), "%x vs %x", a, b)
	}
}
