package worker

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screa/onion-vanity-miner/internal/crypto"
	"github.com/screa/onion-vanity-miner/pkg/prefix"
	"github.com/screa/onion-vanity-miner/pkg/types"
)

func mustTable(t *testing.T, prefixes ...string) *prefix.Table {
	t.Helper()
	table, rejected := prefix.Load(prefixes)
	require.Empty(t, rejected)
	return table
}

func TestNewWorker(t *testing.T) {
	attempts := int64(0)
	worker := NewWorker(Geometry{Blocks: 1, Threads: 1}, &attempts)
	require.NotNil(t, worker)
	assert.Len(t, worker.points, BatchSize)
	assert.Len(t, worker.keys, BatchSize)
}

func TestProcessLane(t *testing.T) {
	geometry := Geometry{Blocks: 2, Threads: 3}

	t.Run("first key of lane", func(t *testing.T) {
		attempts := int64(0)
		w := NewWorker(geometry, &attempts)

		// the base point's address starts with "lbtg"
		m, ok := w.ProcessLane(types.Scalar256{1}, 0, mustTable(t, "lbtg"))
		require.True(t, ok)
		assert.Equal(t, types.Scalar256{1}, m.PrivateKey)
		assert.Equal(t, crypto.PublicKeyFor(types.Scalar256{1}), m.PublicKey)
		assert.Equal(t, uint32(0), m.PrefixIndex)
		assert.Equal(t, int64(1), attempts)
	})

	t.Run("later lane", func(t *testing.T) {
		attempts := int64(0)
		w := NewWorker(geometry, &attempts)

		// lane 7 starts at base + 7*BatchSize; pick the address of its 101st key
		base := types.Scalar256{0xdeadbeef, 0x12345678}
		target := base.Plus(7*BatchSize + 100)
		pub := crypto.PublicKeyFor(target)
		p := crypto.OnionAddress(pub[:])[:5]

		m, ok := w.ProcessLane(base, 7, mustTable(t, "zzzzzz", p))
		require.True(t, ok)
		assert.Equal(t, uint32(1), m.PrefixIndex)
		assert.Equal(t, uint32(1), m.ThreadID)
		assert.Equal(t, uint32(1), m.BatchIndex)
		assert.Equal(t, crypto.PublicKeyFor(m.PrivateKey), m.PublicKey)
		assert.True(t, strings.HasPrefix(crypto.OnionAddress(m.PublicKey[:]), p))

		// the match is the first hit in the lane, never past the planted key
		offset := m.PrivateKey[0] - base.Plus(7 * BatchSize)[0]
		assert.LessOrEqual(t, offset, uint32(100))
		assert.Equal(t, int64(offset)+1, attempts)
	})

	t.Run("no match", func(t *testing.T) {
		attempts := int64(0)
		w := NewWorker(geometry, &attempts)

		_, ok := w.ProcessLane(types.Scalar256{5}, 0, mustTable(t, "aaaaaaaaaaaaaaaa"))
		assert.False(t, ok)
		assert.Equal(t, int64(BatchSize), attempts)
	})

	t.Run("wraps around 2^256", func(t *testing.T) {
		attempts := int64(0)
		w := NewWorker(geometry, &attempts)

		top := types.Scalar256{math.MaxUint32 - 9, math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32, math.MaxUint32}
		// base + 20 wraps to 10, whose key is 10*B
		pub := crypto.PublicKeyFor(types.Scalar256{10})
		p := crypto.OnionAddress(pub[:])[:6]

		m, ok := w.ProcessLane(top, 0, mustTable(t, p))
		require.True(t, ok)
		assert.Equal(t, crypto.PublicKeyFor(m.PrivateKey), m.PublicKey)
	})

	t.Run("every key of a wrapping lane matches its scalar", func(t *testing.T) {
		attempts := int64(0)
		w := NewWorker(geometry, &attempts)

		top := nearTop(101)
		_, ok := w.ProcessLane(top, 0, mustTable(t, "aaaaaaaaaaaaaaaa"))
		require.False(t, ok)

		for _, i := range []int{0, 99, 100, 101, 102, 150, BatchSize - 1} {
			assert.Equal(t, crypto.PublicKeyFor(top.Plus(uint64(i))), w.keys[i], "key %d", i)
		}
	})
}

// nearTop returns 2^256 - k for 0 < k <= 2^32.
func nearTop(k uint32) types.Scalar256 {
	var s types.Scalar256
	for i := range s {
		s[i] = math.MaxUint32
	}
	s[0] -= k - 1
	return s
}

func TestWrapIndex(t *testing.T) {
	tests := []struct {
		name   string
		scalar types.Scalar256
		want   int
	}{
		{"small", types.Scalar256{1}, BatchSize},
		{"ends exactly at 2^256-1", nearTop(BatchSize), BatchSize},
		{"wraps on last key", nearTop(BatchSize - 1), BatchSize - 1},
		{"wraps after ten keys", nearTop(10), 10},
		{"wraps on second key", nearTop(1), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapIndex(tt.scalar)
			assert.Equal(t, tt.want, got)
			if got < BatchSize {
				assert.True(t, tt.scalar.Plus(uint64(got)).IsZero())
			}
		})
	}
}

func TestGeometry(t *testing.T) {
	g := Geometry{Blocks: 2, Threads: 3}
	assert.Equal(t, uint64(24), g.Lanes(4))
	assert.Equal(t, uint64(24*BatchSize), g.Span(4))

	tests := []struct {
		lane   uint64
		thread uint32
		batch  uint32
	}{
		{0, 0, 0},
		{5, 5, 0},
		{6, 0, 1},
		{7, 1, 1},
		{23, 5, 3},
	}
	for _, tt := range tests {
		thread, batch := g.Coordinates(tt.lane)
		assert.Equal(t, tt.thread, thread, "lane %d", tt.lane)
		assert.Equal(t, tt.batch, batch, "lane %d", tt.lane)
	}
}
