package internal

import (
	"sync"
	"sync/atomic"
	"time"
)

// WaitResult is the outcome of ReadySignal.Wait.
type WaitResult int

const (
	// WaitReady: a frame is pending. The signal's mutex is held until Clear.
	WaitReady WaitResult = iota
	// WaitTimedOut: no frame within the timeout. Not an error.
	WaitTimedOut
	// WaitShutdown: the shutdown flag was observed. Nothing was consumed.
	WaitShutdown
)

// String returns a human-readable name for the result.
func (r WaitResult) String() string {
	switch r {
	case WaitReady:
		return "ready"
	case WaitTimedOut:
		return "timed_out"
	case WaitShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ReadySignal is the single-slot handoff between producer and consumer.
//
// Architecture:
//   - Single slot (ready bool + pending generation), never a queue
//   - Overwrite policy: a Signal while a frame is pending replaces it
//     (coalescing, counted in Coalesced)
//   - Timed wait: sync.Cond has no deadline, so wakeups travel through a
//     1-buffered channel selected together with a timer and ShutdownFlag.Done
//
// Roles:
//   - Signal: producer only, after a completed release
//   - Wait/Clear/Consume: consumer only (single goroutine)
//
// Invariant: ready is true iff the producer completed a release since the
// consumer last cleared. The mutex totally orders every Signal/Wait/Clear.
type ReadySignal struct {
	mu         sync.Mutex
	ready      bool
	generation uint64

	wake     chan struct{} // 1-buffered, non-blocking send from Signal
	shutdown *ShutdownFlag

	signals   atomic.Uint64
	coalesced atomic.Uint64
	cleared   atomic.Uint64
}

// SignalStats is a snapshot of ReadySignal counters.
type SignalStats struct {
	// Signals counts every Signal call.
	Signals uint64
	// Coalesced counts signals that overwrote a pending, unconsumed frame.
	// Expected whenever the producer outpaces the consumer.
	Coalesced uint64
	// Cleared counts frames consumed by the consumer.
	Cleared uint64
}

// NewReadySignal creates a signal bound to shutdown. Wait returns
// WaitShutdown as soon as shutdown is set.
func NewReadySignal(shutdown *ShutdownFlag) *ReadySignal {
	return &ReadySignal{
		wake:     make(chan struct{}, 1),
		shutdown: shutdown,
	}
}

// Signal publishes generation as the latest completed frame.
//
// Algorithm:
//  1. Lock mutex
//  2. If a frame is still pending, count a coalesce (older frame dropped)
//  3. Set ready, record generation
//  4. Non-blocking send on wake (wakes the waiter if blocked)
//  5. Unlock
//
// Blocks only while the consumer holds the mutex (between a WaitReady and
// the matching Clear).
func (s *ReadySignal) Signal(generation uint64) {
	s.mu.Lock()
	if s.ready {
		s.coalesced.Add(1)
	}
	s.ready = true
	s.generation = generation
	s.signals.Add(1)

	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.mu.Unlock()
}

// Wait blocks until a frame is ready, timeout elapses, or shutdown is set.
//
// On WaitReady the mutex is HELD and the caller MUST call Clear after
// consuming. On WaitTimedOut and WaitShutdown the mutex is not held and the
// returned generation is 0.
//
// Shutdown is checked before every ready check, so a pending frame is not
// consumed once shutdown was requested.
func (s *ReadySignal) Wait(timeout time.Duration) (WaitResult, uint64) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if s.shutdown.IsSet() {
			return WaitShutdown, 0
		}

		s.mu.Lock()
		if s.ready {
			return WaitReady, s.generation
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
			// Re-check (wake tokens may be stale after a previous consume)
		case <-s.shutdown.Done():
			return WaitShutdown, 0
		case <-timer.C:
			return WaitTimedOut, 0
		}
	}
}

// Clear marks the pending frame consumed and releases the mutex taken by a
// WaitReady. Calling Clear without a preceding WaitReady is a programming
// error (unlock of unlocked mutex).
func (s *ReadySignal) Clear() {
	s.ready = false
	s.cleared.Add(1)
	s.mu.Unlock()
}

// Consume waits like Wait and, on WaitReady, runs fn with the pending
// generation while the mutex is held, then clears. The clear happens even
// if fn panics, so the producer is never locked out.
func (s *ReadySignal) Consume(timeout time.Duration, fn func(generation uint64)) WaitResult {
	res, gen := s.Wait(timeout)
	if res != WaitReady {
		return res
	}
	defer s.Clear()
	fn(gen)
	return res
}

// Pending reports whether a frame is waiting to be consumed. Intended for
// diagnostics; the answer may be stale by the time it is used.
func (s *ReadySignal) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Stats returns counters without taking the mutex.
func (s *ReadySignal) Stats() SignalStats {
	return SignalStats{
		Signals:   s.signals.Load(),
		Coalesced: s.coalesced.Load(),
		Cleared:   s.cleared.Load(),
	}
}
