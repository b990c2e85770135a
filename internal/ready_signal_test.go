package internal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReadySignal_Coalescing verifies the single-slot overwrite policy.
//
// Contract: signals arriving while a frame is pending replace it; the
// consumer sees exactly one Ready carrying the latest generation.
func TestReadySignal_Coalescing(t *testing.T) {
	sig := NewReadySignal(NewShutdownFlag())

	sig.Signal(1)
	sig.Signal(2)
	sig.Signal(3)

	var got []uint64
	res := sig.Consume(10*time.Millisecond, func(gen uint64) {
		got = append(got, gen)
	})
	require.Equal(t, WaitReady, res)
	assert.Equal(t, []uint64{3}, got, "only the latest generation is consumed")

	res = sig.Consume(5*time.Millisecond, func(gen uint64) {
		t.Fatalf("unexpected second consume of generation %d", gen)
	})
	assert.Equal(t, WaitTimedOut, res)

	st := sig.Stats()
	assert.Equal(t, uint64(3), st.Signals)
	assert.Equal(t, uint64(2), st.Coalesced)
	assert.Equal(t, uint64(1), st.Cleared)
}

// TestReadySignal_Timeout verifies that an idle wait returns TimedOut
// within a reasonable bound and does not hold the mutex.
func TestReadySignal_Timeout(t *testing.T) {
	sig := NewReadySignal(NewShutdownFlag())

	start := time.Now()
	res, gen := sig.Wait(5 * time.Millisecond)
	elapsed := time.Since(start)

	assert.Equal(t, WaitTimedOut, res)
	assert.Zero(t, gen)
	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	// Mutex must be free: Signal would deadlock otherwise.
	sig.Signal(7)
	assert.True(t, sig.Pending())
}

// TestReadySignal_WakesWaiter verifies that Signal wakes a blocked waiter
// well before its timeout.
func TestReadySignal_WakesWaiter(t *testing.T) {
	sig := NewReadySignal(NewShutdownFlag())

	done := make(chan WaitResult, 1)
	go func() {
		done <- sig.Consume(5*time.Second, func(uint64) {})
	}()

	time.Sleep(10 * time.Millisecond)
	sig.Signal(1)

	select {
	case res := <-done:
		assert.Equal(t, WaitReady, res)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken by Signal")
	}
	assert.False(t, sig.Pending(), "Consume must clear the slot")
}

// TestReadySignal_ShutdownWins verifies that a pending frame is not consumed
// once shutdown is set.
func TestReadySignal_ShutdownWins(t *testing.T) {
	flag := NewShutdownFlag()
	sig := NewReadySignal(flag)

	sig.Signal(1)
	flag.Set("test")

	res := sig.Consume(time.Second, func(uint64) {
		t.Fatal("frame consumed after shutdown")
	})
	assert.Equal(t, WaitShutdown, res)
	assert.True(t, sig.Pending(), "pending frame stays uncleared")
}

// TestReadySignal_ShutdownWakesWaiter verifies that setting the flag unblocks
// a wait with a long timeout.
func TestReadySignal_ShutdownWakesWaiter(t *testing.T) {
	flag := NewShutdownFlag()
	sig := NewReadySignal(flag)

	done := make(chan WaitResult, 1)
	go func() {
		res, _ := sig.Wait(time.Hour)
		done <- res
	}()

	time.Sleep(10 * time.Millisecond)
	flag.Set("test")

	select {
	case res := <-done:
		assert.Equal(t, WaitShutdown, res)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken by shutdown")
	}
}

// TestReadySignal_ConsumeClearsOnPanic verifies the slot is cleared and the
// mutex released even if the consume callback panics.
func TestReadySignal_ConsumeClearsOnPanic(t *testing.T) {
	sig := NewReadySignal(NewShutdownFlag())
	sig.Signal(1)

	func() {
		defer func() { _ = recover() }()
		sig.Consume(time.Second, func(uint64) { panic("boom") })
	}()

	assert.False(t, sig.Pending())
	sig.Signal(2) // would deadlock if the mutex leaked
	assert.True(t, sig.Pending())
}

// TestReadySignal_ConcurrentSignals stresses Signal against Consume.
//
// Invariant: every signal is either consumed or coalesced, except at most
// one left pending at the end.
func TestReadySignal_ConcurrentSignals(t *testing.T) {
	flag := NewShutdownFlag()
	sig := NewReadySignal(flag)

	const n = 2000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= n; i++ {
			sig.Signal(i)
		}
	}()

	var last uint64
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for {
			res := sig.Consume(time.Millisecond, func(gen uint64) {
				if gen < last {
					t.Errorf("generation went backwards: %d after %d", gen, last)
				}
				last = gen
			})
			if res == WaitShutdown {
				return
			}
		}
	}()

	wg.Wait()
	time.Sleep(20 * time.Millisecond)
	flag.Set("done")
	<-consumerDone

	st := sig.Stats()
	pending := uint64(0)
	if sig.Pending() {
		pending = 1
	}
	assert.Equal(t, uint64(n), st.Signals)
	assert.Equal(t, st.Signals, st.Cleared+st.Coalesced+pending)
}

func TestWaitResult_String(t *testing.T) {
	assert.Equal(t, "ready", WaitReady.String())
	assert.Equal(t, "timed_out", WaitTimedOut.String())
	assert.Equal(t, "shutdown", WaitShutdown.String())
	assert.Equal(t, "unknown", WaitResult(42).String())
}
