package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultPeriod is the producer pacing delay (~60 fps target).
const DefaultPeriod = 16666 * time.Microsecond

// ProducerState is a step of the producer cycle.
type ProducerState int32

const (
	StateIdle ProducerState = iota
	StateComputing
	StateAcquiring
	StateMutating
	StateReleasing
	StatePacing
	StateSignaling
	StateStopped
)

// String returns a human-readable state name.
func (s ProducerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComputing:
		return "computing"
	case StateAcquiring:
		return "acquiring"
	case StateMutating:
		return "mutating"
	case StateReleasing:
		return "releasing"
	case StatePacing:
		return "pacing"
	case StateSignaling:
		return "signaling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TransitionObserver is notified on every producer state change, from the
// producer goroutine. Used by tests and tracing; must not block.
type TransitionObserver func(state ProducerState, generation uint64)

// ProducerConfig configures a Producer.
type ProducerConfig struct {
	Resource *Resource
	Barrier  Barrier
	Kernel   Kernel
	Signal   *ReadySignal
	Shutdown *ShutdownFlag

	// Period is the fixed pacing delay after each release (DefaultPeriod if 0).
	Period time.Duration
	// Step is the animation increment (DefaultAnimationStep if 0).
	Step float64

	Observer TransitionObserver
	Logger   *slog.Logger
}

// Producer runs the compute side of the handoff.
//
// Cycle (one goroutine, strictly ordered):
//
//	Computing → Acquiring → Mutating → Releasing → Pacing → Signaling → Computing …
//
// Guarantees:
//   - Shutdown is observed at the top of each cycle only; a cycle that
//     acquired always releases before the loop can stop
//   - Kernel errors are transient: the cycle continues through release,
//     pacing and signal (the consumer is never starved of the resource)
//   - Acquire errors skip mutate/release/signal but still pace
//   - Pacing is a fixed delay, not deadline-corrected: achieved period is
//     Period + mutate cost. The delay ends early on shutdown.
type Producer struct {
	res      *Resource
	barrier  Barrier
	kernel   Kernel
	signal   *ReadySignal
	shutdown *ShutdownFlag
	observer TransitionObserver
	logger   *slog.Logger
	throttle *throttledLog

	anim   Animation
	period atomic.Int64 // time.Duration
	state  atomic.Int32 // ProducerState

	cycles          atomic.Uint64
	computeFailures atomic.Uint64
	acquireFailures atomic.Uint64
	releaseFailures atomic.Uint64
}

// NewProducer validates cfg and builds a Producer.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if cfg.Resource == nil || cfg.Barrier == nil || cfg.Kernel == nil || cfg.Signal == nil || cfg.Shutdown == nil {
		return nil, fmt.Errorf("producer: resource, barrier, kernel, signal and shutdown are required")
	}
	if cfg.Period < 0 {
		return nil, fmt.Errorf("producer: %w", ErrInvalidPeriod)
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	logger := cfg.Logger
	if logger == nil {
		logger = Logger()
	}

	p := &Producer{
		res:      cfg.Resource,
		barrier:  cfg.Barrier,
		kernel:   cfg.Kernel,
		signal:   cfg.Signal,
		shutdown: cfg.Shutdown,
		observer: cfg.Observer,
		logger:   logger.With("component", "producer"),
		throttle: newThrottledLog(),
		anim:     NewAnimation(cfg.Step),
	}
	p.period.Store(int64(cfg.Period))
	return p, nil
}

// Run executes cycles until the shutdown flag is observed. Always returns
// nil; failures inside a cycle are reported, never propagated.
func (p *Producer) Run(ctx context.Context) error {
	p.logger.Debug("producer started", "period", p.Period())

	for {
		if p.shutdown.IsSet() {
			p.setState(StateStopped)
			p.logger.Debug("producer stopped",
				"cycles", p.cycles.Load(),
				"generation", p.res.Generation(),
				"reason", p.shutdown.Reason())
			return nil
		}
		p.cycle(ctx)
	}
}

// cycle runs one full Computing → Signaling pass.
func (p *Producer) cycle(ctx context.Context) {
	p.cycles.Add(1)

	p.setState(StateComputing)
	x := p.anim.Advance()

	p.setState(StateAcquiring)
	if err := p.barrier.Acquire(ctx, p.res); err != nil {
		p.acquireFailures.Add(1)
		p.throttle.warn(p.logger, "acquire", "acquire failed, skipping cycle", "error", err)
		p.setState(StatePacing)
		p.pace()
		return
	}

	p.setState(StateMutating)
	if err := p.kernel.Step(ctx, x, p.res); err != nil {
		p.computeFailures.Add(1)
		p.throttle.warn(p.logger, "compute", "compute step failed", "x", x, "error", err)
	} else {
		p.res.bumpGeneration()
	}

	// Release must complete even when shutdown cancelled ctx.
	p.setState(StateReleasing)
	if err := p.barrier.Release(context.WithoutCancel(ctx), p.res); err != nil {
		p.releaseFailures.Add(1)
		p.throttle.warn(p.logger, "release", "release failed", "error", err)
	}

	p.setState(StatePacing)
	p.pace()

	p.setState(StateSignaling)
	p.signal.Signal(p.res.Generation())
}

// pace sleeps for the configured period or until shutdown.
func (p *Producer) pace() {
	timer := time.NewTimer(p.Period())
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-p.shutdown.Done():
	}
}

func (p *Producer) setState(s ProducerState) {
	p.state.Store(int32(s))
	if p.observer != nil {
		p.observer(s, p.res.Generation())
	}
}

// State returns the current producer state.
func (p *Producer) State() ProducerState {
	return ProducerState(p.state.Load())
}

// Period returns the current pacing period.
func (p *Producer) Period() time.Duration {
	return time.Duration(p.period.Load())
}

// SetPeriod changes the pacing period, effective from the next pacing step.
func (p *Producer) SetPeriod(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("set period %v: %w", d, ErrInvalidPeriod)
	}
	old := time.Duration(p.period.Swap(int64(d)))
	if old != d {
		p.logger.Info("pacing period changed", "old", old, "new", d)
	}
	return nil
}

// ProducerStats is a snapshot of producer counters.
type ProducerStats struct {
	State           ProducerState
	Cycles          uint64
	ComputeFailures uint64
	AcquireFailures uint64
	ReleaseFailures uint64
	Period          time.Duration
}

// Stats returns counters (atomic reads, no locking).
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		State:           p.State(),
		Cycles:          p.cycles.Load(),
		ComputeFailures: p.computeFailures.Load(),
		AcquireFailures: p.acquireFailures.Load(),
		ReleaseFailures: p.releaseFailures.Load(),
		Period:          p.Period(),
	}
}
