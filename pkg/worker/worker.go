package worker

import (
	"sync/atomic"

	"filippo.io/edwards25519"

	"github.com/screa/onion-vanity-miner/internal/crypto"
	"github.com/screa/onion-vanity-miner/pkg/prefix"
	"github.com/screa/onion-vanity-miner/pkg/types"
)

var generator = edwards25519.NewGeneratorPoint()

// Worker runs lanes one after another on a single goroutine
type Worker struct {
	geometry Geometry
	attempts *int64

	// Pre-allocated buffers for performance
	points  []edwards25519.Point
	keys    [][crypto.PublicKeyLen]byte
	encoder *crypto.BatchEncoder
}

// NewWorker creates a new worker instance
func NewWorker(geometry Geometry, attempts *int64) *Worker {
	return &Worker{
		geometry: geometry,
		attempts: attempts,
		points:   make([]edwards25519.Point, BatchSize),
		keys:     make([][crypto.PublicKeyLen]byte, BatchSize),
		encoder:  crypto.NewBatchEncoder(BatchSize),
	}
}

// ProcessLane derives and tests the BatchSize keys of one lane.
// The lane's first key is base + lane*BatchSize; only the first point costs a
// scalar multiplication, the rest are reached by adding the generator.
func (w *Worker) ProcessLane(base types.Scalar256, lane uint64, table *prefix.Table) (types.Match, bool) {
	scalar := base.Plus(lane * BatchSize)
	wrapAt := wrapIndex(scalar)

	w.points[0].Set(crypto.ScalarBaseMult(scalar))
	for i := 1; i < BatchSize; i++ {
		if i == wrapAt {
			// scalar+i wrapped mod 2^256, which is not a multiple of the group
			// order, so the chain restarts from the wrapped value
			w.points[i].Set(crypto.ScalarBaseMult(scalar.Plus(uint64(i))))
			continue
		}
		w.points[i].Add(&w.points[i-1], generator)
	}
	w.encoder.Encode(w.points, w.keys)

	for i := range w.keys {
		idx, ok := table.Match(w.keys[i][:])
		if !ok {
			continue
		}

		atomic.AddInt64(w.attempts, int64(i+1))
		threadID, batch := w.geometry.Coordinates(lane)
		return types.Match{
			ThreadID:    threadID,
			BatchIndex:  batch,
			PrefixIndex: uint32(idx),
			PublicKey:   w.keys[i],
			PrivateKey:  scalar.Plus(uint64(i)),
		}, true
	}

	atomic.AddInt64(w.attempts, BatchSize)
	return types.Match{}, false
}

// wrapIndex returns the offset within a lane starting at scalar whose value
// wraps past 2^256 to zero, or BatchSize when the lane does not wrap.
func wrapIndex(scalar types.Scalar256) int {
	last := scalar.Plus(BatchSize - 1)
	if last.Cmp(scalar) >= 0 {
		return BatchSize
	}
	// last = scalar + BatchSize-1 - 2^256 is below BatchSize-1
	return BatchSize - 1 - int(last[0])
}
