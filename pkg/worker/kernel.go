package worker

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/screa/onion-vanity-miner/pkg/prefix"
	"github.com/screa/onion-vanity-miner/pkg/types"
)

const (
	// BatchSize is the number of consecutive keys each lane tests.
	BatchSize = 256

	// DefaultThreadsPerBlock is the lane count per block when none is configured.
	DefaultThreadsPerBlock = 64
)

// Errors
var (
	ErrInvalidLaunch = errors.New("invalid kernel launch")
	ErrKernelFault   = errors.New("kernel fault")
	ErrKernelClosed  = errors.New("kernel closed")
)

// Geometry is the block/thread shape of one invocation.
type Geometry struct {
	Blocks  int
	Threads int
}

// Lanes returns the number of lanes for the given batch count.
func (g Geometry) Lanes(batches int) uint64 {
	return uint64(g.Blocks) * uint64(g.Threads) * uint64(batches)
}

// Span returns the number of keys one invocation covers.
func (g Geometry) Span(batches int) uint64 {
	return g.Lanes(batches) * BatchSize
}

// Coordinates maps a linear lane index to its thread and batch index.
// Lanes are ordered batch-major: lane = (batch*blocks + block)*threads + thread.
func (g Geometry) Coordinates(lane uint64) (threadID, batch uint32) {
	perBatch := uint64(g.Blocks) * uint64(g.Threads)
	return uint32(lane % perBatch), uint32(lane / perBatch)
}

func (g Geometry) validate() error {
	if g.Blocks <= 0 || g.Threads <= 0 {
		return fmt.Errorf("%w: geometry %dx%d", ErrInvalidLaunch, g.Blocks, g.Threads)
	}
	return nil
}

// Launch is the input of one kernel invocation.
type Launch struct {
	Base    types.Scalar256
	Table   *prefix.Table
	Batches int
}

// Kernel searches one span of scalars per call to Run.
// Run blocks until every lane has finished and writes at most one match into result.
type Kernel interface {
	Run(launch Launch, result *types.SearchResult) error
	Span(batches int) uint64
	Close() error
}

// CPUKernel runs lanes on a bounded pool of goroutines.
type CPUKernel struct {
	geometry Geometry
	workers  int
	attempts int64
	closed   atomic.Bool
	pool     []*Worker
}

// NewCPUKernel creates a kernel with the given geometry executed by workers goroutines.
func NewCPUKernel(geometry Geometry, workers int) (*CPUKernel, error) {
	if err := geometry.validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	k := &CPUKernel{
		geometry: geometry,
		workers:  workers,
		pool:     make([]*Worker, workers),
	}
	for i := range k.pool {
		k.pool[i] = NewWorker(geometry, &k.attempts)
	}
	return k, nil
}

// Span returns the number of keys one invocation covers.
func (k *CPUKernel) Span(batches int) uint64 {
	return k.geometry.Span(batches)
}

// Attempts returns the number of keys tested since creation.
func (k *CPUKernel) Attempts() int64 {
	return atomic.LoadInt64(&k.attempts)
}

// Run executes every lane of one invocation.
func (k *CPUKernel) Run(launch Launch, result *types.SearchResult) error {
	if k.closed.Load() {
		return ErrKernelClosed
	}
	if launch.Batches <= 0 {
		return fmt.Errorf("%w: batches must be positive, got %d", ErrInvalidLaunch, launch.Batches)
	}
	if launch.Table == nil || launch.Table.Len() == 0 {
		return fmt.Errorf("%w: empty prefix table", ErrInvalidLaunch)
	}
	if result == nil {
		return fmt.Errorf("%w: nil result slot", ErrInvalidLaunch)
	}

	lanes := k.geometry.Lanes(launch.Batches)
	var next atomic.Uint64

	var g errgroup.Group
	for _, w := range k.pool {
		w := w
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrKernelFault, r)
				}
			}()

			for {
				lane := next.Add(1) - 1
				if lane >= lanes {
					return nil
				}
				if m, ok := w.ProcessLane(launch.Base, lane, launch.Table); ok {
					result.Claim(m)
				}
			}
		})
	}

	return g.Wait()
}

// Close releases the kernel. Later calls to Run fail.
func (k *CPUKernel) Close() error {
	k.closed.Store(true)
	return nil
}
