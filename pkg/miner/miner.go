// Package miner drives the key search: it seeds the search base from
// entropy, dispatches kernel invocations over disjoint spans, finalizes
// matches and enforces the count, timeout and cancellation stop conditions.
package miner

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/looplab/fsm"

	"github.com/screa/onion-vanity-miner/internal/config"
	"github.com/screa/onion-vanity-miner/internal/crypto"
	"github.com/screa/onion-vanity-miner/internal/logger"
	"github.com/screa/onion-vanity-miner/pkg/finalizer"
	"github.com/screa/onion-vanity-miner/pkg/prefix"
	"github.com/screa/onion-vanity-miner/pkg/types"
	"github.com/screa/onion-vanity-miner/pkg/worker"
)

// States
const (
	StateSeeding      = "SEEDING"
	StateSearching    = "SEARCHING"
	StateMatched      = "MATCHED"
	StateTimedOut     = "TIMED_OUT"
	StateLimitReached = "LIMIT_REACHED"
	StateCancelled    = "CANCELLED"
	StateStopped      = "STOPPED"
)

// Events
const (
	EventSeeded  = "seeded"
	EventMatch   = "match"
	EventReseed  = "reseed"
	EventTimeout = "timeout"
	EventLimit   = "limit"
	EventCancel  = "cancel"
	EventStop    = "stop"
	EventFail    = "fail"
)

// Finalizer turns a claimed match into a persisted record.
type Finalizer interface {
	Finalize(m types.Match) (*types.OnionRecord, error)
}

// Option configures a Miner
type Option func(*Miner)

// WithKernel replaces the CPU kernel.
func WithKernel(k worker.Kernel) Option {
	return func(m *Miner) {
		m.kernel = k
	}
}

// WithEntropy replaces the system entropy source.
func WithEntropy(src crypto.EntropySource) Option {
	return func(m *Miner) {
		m.entropy = src
	}
}

// WithFinalizer replaces the file-backed finalizer.
func WithFinalizer(f Finalizer) Option {
	return func(m *Miner) {
		m.finalizer = f
	}
}

// WithClock replaces time.Now for timeout and rate accounting.
func WithClock(now func() time.Time) Option {
	return func(m *Miner) {
		m.now = now
	}
}

// Miner provides key search coordination
type Miner struct {
	config    *config.Config
	logger    *logger.Logger
	table     *prefix.Table
	kernel    worker.Kernel
	entropy   crypto.EntropySource
	finalizer Finalizer
	fsm       *fsm.FSM
	now       func() time.Time

	base        types.Scalar256
	result      types.SearchResult
	keysChecked atomic.Uint64
	invocations atomic.Uint64
	matches     atomic.Int64
}

// NewMiner creates a miner for a validated configuration.
func NewMiner(cfg *config.Config, log *logger.Logger, opts ...Option) (*Miner, error) {
	if log == nil {
		log = logger.Nop()
	}
	table := cfg.Table()
	if table == nil || table.Len() == 0 {
		return nil, config.ErrNoPrefixes
	}

	m := &Miner{
		config:  cfg,
		logger:  log,
		table:   table,
		entropy: crypto.SystemEntropy,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.kernel == nil {
		k, err := worker.NewCPUKernel(cfg.Geometry(), cfg.Workers)
		if err != nil {
			return nil, err
		}
		m.kernel = k
	}
	if m.finalizer == nil {
		var fopts []finalizer.Option
		if cfg.HSDir != "" {
			fopts = append(fopts, finalizer.WithHiddenServiceDir(cfg.HSDir))
		}
		m.finalizer = finalizer.New(cfg.OutputDir, table.Prefixes(), log, fopts...)
	}

	m.fsm = newStateMachine()
	initPrometheusMetrics()

	return m, nil
}

func newStateMachine() *fsm.FSM {
	return fsm.NewFSM(
		StateSeeding,
		fsm.Events{
			{Name: EventSeeded, Src: []string{StateSeeding}, Dst: StateSearching},
			{Name: EventMatch, Src: []string{StateSearching}, Dst: StateMatched},
			{Name: EventReseed, Src: []string{StateMatched}, Dst: StateSeeding},
			{Name: EventTimeout, Src: []string{StateSearching}, Dst: StateTimedOut},
			{Name: EventLimit, Src: []string{StateSearching}, Dst: StateLimitReached},
			{Name: EventCancel, Src: []string{StateSearching}, Dst: StateCancelled},
			{
				Name: EventStop,
				Src:  []string{StateTimedOut, StateLimitReached, StateCancelled},
				Dst:  StateStopped,
			},
			{
				Name: EventFail,
				Src:  []string{StateSeeding, StateSearching, StateMatched},
				Dst:  StateStopped,
			},
		},
		fsm.Callbacks{},
	)
}

// event fires a transition. Cancellation of ctx must not veto the
// transition into CANCELLED, so the fsm only sees ctx's values.
func (m *Miner) event(ctx context.Context, name string) error {
	return m.fsm.Event(context.WithoutCancel(ctx), name)
}

// State returns the current orchestrator state.
func (m *Miner) State() string {
	return m.fsm.Current()
}

// Base returns the current search base.
func (m *Miner) Base() types.Scalar256 {
	return m.base
}

// Mine runs the search loop until a stop condition holds or a fatal error
// occurs. Cancellation of ctx is observed between invocations. The kernel is
// closed on return, so Mine runs once per Miner.
func (m *Miner) Mine(ctx context.Context) (*types.Summary, error) {
	start := m.now()
	summary := &types.Summary{}
	defer func() {
		if err := m.kernel.Close(); err != nil {
			m.logger.Warnf("Failed to close kernel: %v", err)
		}
	}()

	interval := time.Duration(m.config.LogInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	logTicker := time.NewTicker(interval)
	logDone := make(chan struct{})
	go m.periodicLogger(logTicker, logDone, start)
	defer func() {
		logTicker.Stop()
		close(logDone)
	}()

	span := m.kernel.Span(m.config.Batches)
	m.logger.Infof("Mining started: %s, %s keys per invocation",
		describeTable(m.table), humanize.Comma(int64(span)))

	if err := m.seed(ctx); err != nil {
		return m.fail(ctx, summary, start, err)
	}

	for {
		if event := m.stopEvent(ctx, start); event != "" {
			if err := m.event(ctx, event); err != nil {
				return m.fail(ctx, summary, start, err)
			}
			summary.State = m.fsm.Current()
			if err := m.event(ctx, EventStop); err != nil {
				return m.fail(ctx, summary, start, err)
			}
			break
		}

		m.result.Reset()
		launch := worker.Launch{Base: m.base, Table: m.table, Batches: m.config.Batches}
		invocationStart := time.Now()
		if err := m.kernel.Run(launch, &m.result); err != nil {
			return m.fail(ctx, summary, start, fmt.Errorf("kernel invocation: %w", err))
		}
		prometheusInvocationDuration.Observe(time.Since(invocationStart).Seconds())
		prometheusInvocations.Inc()
		prometheusKeysChecked.Add(float64(span))
		m.invocations.Add(1)
		m.keysChecked.Add(span)

		if !m.result.Found() {
			m.base.Add(span)
			continue
		}

		if err := m.handleMatch(ctx, summary); err != nil {
			return m.fail(ctx, summary, start, err)
		}
	}

	m.fillSummary(summary, start)
	m.logger.Infof("Mining stopped (%s): %d matches, %s keys checked",
		summary.State, summary.Matches, humanize.Comma(int64(summary.KeysChecked)))
	return summary, nil
}

// handleMatch finalizes the claimed match and re-seeds the search base.
// A record that cannot be written is a warning; the search continues.
func (m *Miner) handleMatch(ctx context.Context, summary *types.Summary) error {
	if err := m.event(ctx, EventMatch); err != nil {
		return err
	}

	match := m.result.Match()
	rec, err := m.finalizer.Finalize(match)
	if err != nil {
		prometheusPersistErrors.Inc()
		m.logger.Warnf("Failed to persist match %s: %v", recordAddress(rec), err)
	}
	if rec != nil {
		summary.Records = append(summary.Records, rec)
	}
	m.matches.Add(1)
	prometheusMatches.Inc()
	m.result.Reset()

	if err := m.event(ctx, EventReseed); err != nil {
		return err
	}
	return m.seed(ctx)
}

// seed draws a fresh base from entropy. The next search never continues
// from the matched region.
func (m *Miner) seed(ctx context.Context) error {
	base, err := crypto.RandomScalar(m.entropy)
	if err != nil {
		return err
	}
	m.base = base
	m.logger.Debugf("Search base seeded: %s", base.Hex())
	return m.event(ctx, EventSeeded)
}

func (m *Miner) stopEvent(ctx context.Context, start time.Time) string {
	if ctx.Err() != nil {
		return EventCancel
	}
	if m.config.Count > 0 && m.matches.Load() >= int64(m.config.Count) {
		return EventLimit
	}
	if timeout := m.config.TimeoutDuration(); timeout > 0 && m.now().Sub(start) >= timeout {
		return EventTimeout
	}
	return ""
}

func (m *Miner) fail(ctx context.Context, summary *types.Summary, start time.Time, err error) (*types.Summary, error) {
	if m.fsm.Can(EventFail) {
		_ = m.event(ctx, EventFail)
	}
	summary.State = StateStopped
	m.fillSummary(summary, start)
	return summary, err
}

func (m *Miner) fillSummary(summary *types.Summary, start time.Time) {
	summary.Matches = int(m.matches.Load())
	summary.KeysChecked = m.keysChecked.Load()
	summary.Invocations = m.invocations.Load()
	summary.Duration = m.now().Sub(start)
}

// periodicLogger logs mining progress at regular intervals
func (m *Miner) periodicLogger(ticker *time.Ticker, done chan struct{}, start time.Time) {
	expected := ExpectedAttempts(m.table.ShortestLen())
	for {
		select {
		case <-ticker.C:
			keys := m.keysChecked.Load()
			rate := Rate(keys, m.now().Sub(start))
			prometheusKeysPerSecond.Set(rate)

			m.logger.Infof("Progress: %s keys, %s, %d found, ~%s keys per match",
				humanize.Comma(int64(keys)),
				humanize.SIWithDigits(rate, 2, "keys/s"),
				m.matches.Load(),
				humanize.BigComma(expected))
		case <-done:
			return
		}
	}
}

// Rate returns keys per second over elapsed, 0 before any time has passed.
func Rate(keys uint64, elapsed time.Duration) float64 {
	if elapsed.Seconds() <= 0 {
		return 0
	}
	return float64(keys) / elapsed.Seconds()
}

// ExpectedAttempts returns 32^n, the mean number of candidates needed to hit
// a given prefix of n base32 characters.
func ExpectedAttempts(n int) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(5*n))
}

func describeTable(t *prefix.Table) string {
	return fmt.Sprintf("%d prefixes %v", t.Len(), t.Prefixes())
}

func recordAddress(rec *types.OnionRecord) string {
	if rec == nil {
		return "<unknown>"
	}
	return rec.Address
}
