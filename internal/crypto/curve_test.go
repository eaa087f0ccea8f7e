package crypto

import (
	"encoding/hex"
	"testing"

	"filippo.io/edwards25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screa/onion-vanity-miner/pkg/types"
)

func TestPublicKeyFor(t *testing.T) {
	tests := []struct {
		name   string
		scalar types.Scalar256
		pub    string
	}{
		{"one", types.Scalar256{1}, "5866666666666666666666666666666666666666666666666666666666666666"},
		{"two", types.Scalar256{2}, "c9a3f86aae465f0e56513864510f3997561fa2c9e85ea21dc2292309f3cd6022"},
		{"three", types.Scalar256{3}, "d4b4f5784868c3020403246717ec169ff79e26608ea126a1ab69ee77d1b16712"},
		{"12345", types.Scalar256{12345}, "ef4f62f8479733ad879cfaced3c89a9c39dd4fc795ef2efa1c3eafe4d729a081"},
		{
			"all ones reduces mod l",
			types.Scalar256{0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff},
			"db27fe4b7a4beb8c1b8c38a21e943a852304c9bb3035a5f36626b51162a68f9c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := PublicKeyFor(tt.scalar)
			assert.Equal(t, tt.pub, hex.EncodeToString(pub[:]))
		})
	}
}

func TestBatchEncoderMatchesPointBytes(t *testing.T) {
	const n = 37
	start := types.Scalar256{0x01020304, 0x05060708, 0x090a0b0c, 0x0d0e0f10, 0x11121314, 0x15161718, 0x191a1b1c, 0x1d1e1f20}

	points := make([]edwards25519.Point, n)
	points[0].Set(ScalarBaseMult(start))
	for i := 1; i < n; i++ {
		points[i].Add(&points[i-1], edwards25519.NewGeneratorPoint())
	}

	out := make([][PublicKeyLen]byte, n)
	NewBatchEncoder(n).Encode(points, out)

	for i := 0; i < n; i++ {
		want := PublicKeyFor(start.Plus(uint64(i)))
		require.Equal(t, want, out[i], "point %d", i)
		assert.Equal(t, points[i].Bytes(), out[i][:], "point %d", i)
	}
}

func TestBatchEncoderShortRun(t *testing.T) {
	enc := NewBatchEncoder(8)

	points := make([]edwards25519.Point, 1)
	points[0].Set(edwards25519.NewGeneratorPoint())
	out := make([][PublicKeyLen]byte, 1)
	enc.Encode(points, out)
	assert.Equal(t, "5866666666666666666666666666666666666666666666666666666666666666", hex.EncodeToString(out[0][:]))

	// empty run is a no-op
	enc.Encode(nil, nil)
}
