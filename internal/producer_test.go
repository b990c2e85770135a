package internal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stateRecorder collects producer transitions from the producer goroutine.
type stateRecorder struct {
	mu     sync.Mutex
	states []ProducerState
}

func (r *stateRecorder) observe(s ProducerState, _ uint64) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) snapshot() []ProducerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProducerState(nil), r.states...)
}

type producerFixture struct {
	res     *Resource
	barrier *ExclusiveBarrier
	signal  *ReadySignal
	flag    *ShutdownFlag
	rec     *stateRecorder
}

func newProducerFixture(t *testing.T, kernel Kernel, barrier *ExclusiveBarrier) (*producerFixture, *Producer) {
	t.Helper()
	f := &producerFixture{
		res:     newTestResource(t),
		barrier: barrier,
		flag:    NewShutdownFlag(),
		rec:     &stateRecorder{},
	}
	f.signal = NewReadySignal(f.flag)

	p, err := NewProducer(ProducerConfig{
		Resource: f.res,
		Barrier:  f.barrier,
		Kernel:   kernel,
		Signal:   f.signal,
		Shutdown: f.flag,
		Period:   time.Millisecond,
		Observer: f.rec.observe,
	})
	require.NoError(t, err)
	return f, p
}

func runProducer(p *Producer) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(context.Background())
	}()
	return done
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

// TestProducer_CycleOrder verifies one cycle walks the states in order.
func TestProducer_CycleOrder(t *testing.T) {
	kernel := KernelFunc(func(_ context.Context, _ float64, res *Resource) error {
		assert.Equal(t, RoleProducer, res.Owner(), "kernel runs while producer owns the resource")
		return nil
	})
	f, p := newProducerFixture(t, kernel, &ExclusiveBarrier{})

	done := runProducer(p)
	require.Eventually(t, func() bool { return f.signal.Stats().Signals >= 2 }, 2*time.Second, time.Millisecond)
	f.flag.Set("test")
	waitClosed(t, done, "producer stop")

	states := f.rec.snapshot()
	want := []ProducerState{StateComputing, StateAcquiring, StateMutating, StateReleasing, StatePacing, StateSignaling}
	require.GreaterOrEqual(t, len(states), len(want))
	assert.Equal(t, want, states[:len(want)])
	assert.Equal(t, StateStopped, states[len(states)-1])
	assert.Equal(t, StateStopped, p.State())

	assert.GreaterOrEqual(t, f.res.Generation(), uint64(2))
	acquires, releases := f.barrier.Counts()
	assert.Equal(t, acquires, releases, "every acquire is released")
	assert.Equal(t, RoleConsumer, f.res.Owner())
}

// TestProducer_ComputeFailureStillReleasesAndSignals verifies that a failing
// compute step is transient.
//
// Contract: release, pacing and signal still happen; generation is not
// bumped.
func TestProducer_ComputeFailureStillReleasesAndSignals(t *testing.T) {
	boom := errors.New("kernel exploded")
	kernel := KernelFunc(func(context.Context, float64, *Resource) error { return boom })
	f, p := newProducerFixture(t, kernel, &ExclusiveBarrier{})

	done := runProducer(p)
	require.Eventually(t, func() bool { return f.signal.Stats().Signals >= 3 }, 2*time.Second, time.Millisecond)
	f.flag.Set("test")
	waitClosed(t, done, "producer stop")

	st := p.Stats()
	assert.GreaterOrEqual(t, st.ComputeFailures, uint64(3))
	assert.Zero(t, st.ReleaseFailures)
	assert.Zero(t, f.res.Generation(), "failed steps do not bump generation")

	acquires, releases := f.barrier.Counts()
	assert.Equal(t, acquires, releases)
	assert.GreaterOrEqual(t, releases, uint64(3))
}

// TestProducer_ShutdownDuringAcquireStillReleases verifies the scenario:
// shutdown set while the producer is acquiring.
//
// Expected: the cycle completes Mutating and Releasing before Stopped; the
// resource ends owned by the consumer.
func TestProducer_ShutdownDuringAcquireStillReleases(t *testing.T) {
	flagged := make(chan *ShutdownFlag, 1)
	barrier := &ExclusiveBarrier{
		OnAcquire: func(context.Context, *Resource) error {
			flag := <-flagged
			flag.Set("during acquire")
			return nil
		},
	}
	f, p := newProducerFixture(t, KernelFunc(func(context.Context, float64, *Resource) error { return nil }), barrier)
	flagged <- f.flag

	done := runProducer(p)
	waitClosed(t, done, "producer stop")

	states := f.rec.snapshot()
	assert.Equal(t, []ProducerState{
		StateComputing, StateAcquiring, StateMutating, StateReleasing,
		StatePacing, StateSignaling, StateStopped,
	}, states)

	acquires, releases := f.barrier.Counts()
	assert.Equal(t, uint64(1), acquires)
	assert.Equal(t, uint64(1), releases)
	assert.Equal(t, RoleConsumer, f.res.Owner())
}

// TestProducer_AcquireFailureSkipsCycle verifies that a failed acquire skips
// mutate, release and signal, but still paces.
func TestProducer_AcquireFailureSkipsCycle(t *testing.T) {
	barrier := &ExclusiveBarrier{
		OnAcquire: func(context.Context, *Resource) error { return errors.New("queue busy") },
	}
	kernel := KernelFunc(func(context.Context, float64, *Resource) error {
		t.Error("kernel must not run without ownership")
		return nil
	})
	f, p := newProducerFixture(t, kernel, barrier)

	done := runProducer(p)
	require.Eventually(t, func() bool { return p.Stats().AcquireFailures >= 3 }, 2*time.Second, time.Millisecond)
	f.flag.Set("test")
	waitClosed(t, done, "producer stop")

	assert.Zero(t, f.signal.Stats().Signals)
	_, releases := f.barrier.Counts()
	assert.Zero(t, releases)
	assert.NotContains(t, f.rec.snapshot(), StateMutating)
	assert.NotContains(t, f.rec.snapshot(), StateSignaling)
}

// TestProducer_PacingInterruptedByShutdown verifies that a long pacing delay
// does not delay shutdown.
func TestProducer_PacingInterruptedByShutdown(t *testing.T) {
	f, p := newProducerFixture(t, KernelFunc(func(context.Context, float64, *Resource) error { return nil }), &ExclusiveBarrier{})
	require.NoError(t, p.SetPeriod(time.Hour))

	done := runProducer(p)
	require.Eventually(t, func() bool { return p.State() == StatePacing }, 2*time.Second, time.Millisecond)

	start := time.Now()
	f.flag.Set("test")
	waitClosed(t, done, "producer stop")
	assert.Less(t, time.Since(start), time.Second)
}

func TestProducer_SetPeriod(t *testing.T) {
	_, p := newProducerFixture(t, KernelFunc(func(context.Context, float64, *Resource) error { return nil }), &ExclusiveBarrier{})

	assert.ErrorIs(t, p.SetPeriod(0), ErrInvalidPeriod)
	assert.ErrorIs(t, p.SetPeriod(-time.Second), ErrInvalidPeriod)

	require.NoError(t, p.SetPeriod(5*time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, p.Period())
	assert.Equal(t, 5*time.Millisecond, p.Stats().Period)
}

func TestNewProducer_Validation(t *testing.T) {
	_, err := NewProducer(ProducerConfig{})
	assert.Error(t, err)

	res := newTestResource(t)
	flag := NewShutdownFlag()
	_, err = NewProducer(ProducerConfig{
		Resource: res,
		Barrier:  &ExclusiveBarrier{},
		Kernel:   KernelFunc(func(context.Context, float64, *Resource) error { return nil }),
		Signal:   NewReadySignal(flag),
		Shutdown: flag,
		Period:   -time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
