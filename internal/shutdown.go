package internal

import (
	"sync"
	"sync/atomic"
)

// ShutdownFlag is the session-wide stop request observed by both loops.
//
// Semantics:
//   - Monotonic: false → true, never reset during a run
//   - Idempotent: Set may be called any number of times, from any goroutine
//     (producer, consumer, input collaborators, context cancellation)
//   - Wakeup: Done() is closed exactly once, unblocking any select waiting
//     on it (ReadySignal.Wait, producer pacing)
//
// The first reason passed to Set is retained for diagnostics.
type ShutdownFlag struct {
	set    atomic.Bool
	once   sync.Once
	done   chan struct{}
	reason atomic.Pointer[string]
}

// NewShutdownFlag creates a flag in the running (unset) state.
func NewShutdownFlag() *ShutdownFlag {
	return &ShutdownFlag{done: make(chan struct{})}
}

// Set requests shutdown. Reports whether this call flipped the flag (true
// exactly once per flag); later calls are no-ops.
func (f *ShutdownFlag) Set(reason string) bool {
	flipped := false
	f.once.Do(func() {
		f.reason.Store(&reason)
		f.set.Store(true)
		close(f.done)
		flipped = true
	})
	return flipped
}

// IsSet reports whether shutdown has been requested.
func (f *ShutdownFlag) IsSet() bool {
	return f.set.Load()
}

// Done returns a channel closed when shutdown is requested.
func (f *ShutdownFlag) Done() <-chan struct{} {
	return f.done
}

// Reason returns the reason given to the first Set call, or "" if unset.
func (f *ShutdownFlag) Reason() string {
	if r := f.reason.Load(); r != nil {
		return *r
	}
	return ""
}
