// Package internal implements the frame handoff core: the single-slot ready
// signal, the ownership barrier, the producer and consumer loops, and the
// session that coordinates their startup and shutdown.
//
// This package is INTERNAL - clients MUST use the public API in the parent
// package.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionConfig wires the collaborators and tuning of one session.
type SessionConfig struct {
	// SessionID identifies the session in logs and reports (uuid if empty).
	SessionID string

	Device    Device
	Kernel    Kernel
	Presenter Presenter
	Input     InputSource // optional
	Reporter  Reporter    // optional

	Period         time.Duration // producer pacing (DefaultPeriod)
	Step           float64       // animation step (DefaultAnimationStep)
	WaitTimeout    time.Duration // consumer wait bound (DefaultWaitTimeout)
	ReportInterval time.Duration // rate window (DefaultReportInterval)

	Observer TransitionObserver
	Now      func() time.Time
	Logger   *slog.Logger
}

// Session coordinates one producer/consumer run over one shared resource.
//
// Goroutine topology:
//   - 1 spawned: producer loop (joined before teardown)
//   - 1 borrowed: the goroutine calling Run executes the consumer loop
//
// Lifecycle:
//  1. Device.Setup (fatal on error, neither loop starts)
//  2. Producer started, consumer runs on the caller
//  3. ShutdownFlag set (input, context, Shutdown, or either loop)
//  4. Consumer returns, producer joined (last cycle released)
//  5. Device.Teardown, strictly after the join
//
// Shutdown is idempotent and safe from any goroutine.
type Session struct {
	cfg      SessionConfig
	id       string
	shutdown *ShutdownFlag
	signal   *ReadySignal
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	started time.Time

	producer atomic.Pointer[Producer]
	consumer atomic.Pointer[Consumer]
	resource atomic.Pointer[Resource]
	period   atomic.Int64 // applied to the producer once it exists

	done chan struct{}
}

// NewSession validates cfg. Nothing is allocated on the device until Run.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("session: device is required")
	}
	if cfg.Kernel == nil {
		return nil, fmt.Errorf("session: kernel is required")
	}
	if cfg.Presenter == nil {
		return nil, fmt.Errorf("session: presenter is required")
	}
	if cfg.Period < 0 {
		return nil, fmt.Errorf("session: %w", ErrInvalidPeriod)
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = Logger()
	}

	shutdown := NewShutdownFlag()
	s := &Session{
		cfg:      cfg,
		id:       cfg.SessionID,
		shutdown: shutdown,
		signal:   NewReadySignal(shutdown),
		logger:   logger.With("session", cfg.SessionID),
		done:     make(chan struct{}),
	}
	s.period.Store(int64(cfg.Period))
	return s, nil
}

// Run executes the session and blocks until both loops stopped and the
// device was torn down.
//
// Returns:
//   - ErrSetup (wrapping the device error) if setup failed; loops never ran
//   - ErrAlreadyRunning on a second call
//   - the teardown error, if any
//   - nil after a clean shutdown, whatever triggered it
//
// Cancelling ctx requests shutdown.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.started = time.Now()
	s.mu.Unlock()
	defer close(s.done)

	res, barrier, err := s.cfg.Device.Setup(ctx)
	if err != nil {
		s.shutdown.Set("setup failed")
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}
	s.resource.Store(res)

	producer, consumer, err := s.buildLoops(res, barrier)
	if err != nil {
		s.shutdown.Set("setup failed")
		if tdErr := s.cfg.Device.Teardown(context.WithoutCancel(ctx)); tdErr != nil {
			s.logger.Error("teardown after failed setup", "error", tdErr)
		}
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}
	s.producer.Store(producer)
	s.consumer.Store(consumer)

	stop := context.AfterFunc(ctx, func() {
		s.RequestShutdown(fmt.Sprintf("context: %v", context.Cause(ctx)))
	})
	defer stop()

	s.logger.Info("session started",
		"resource", res.ID,
		"size", fmt.Sprintf("%dx%d", res.Width, res.Height),
		"period", producer.Period(),
		"wait_timeout", consumer.waitTimeout)

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		_ = producer.Run(ctx)
	}()

	_ = consumer.Run(ctx)

	// Consumer exit always implies shutdown (no-op if already set).
	s.shutdown.Set("consumer exited")

	// Join before touching device registrations.
	<-producerDone

	if err := s.cfg.Device.Teardown(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("teardown: %w", err)
	}

	s.logger.Info("session stopped",
		"reason", s.shutdown.Reason(),
		"cycles", producer.Stats().Cycles,
		"presented", consumer.Stats().Presented)
	return nil
}

func (s *Session) buildLoops(res *Resource, barrier Barrier) (*Producer, *Consumer, error) {
	producer, err := NewProducer(ProducerConfig{
		Resource: res,
		Barrier:  barrier,
		Kernel:   s.cfg.Kernel,
		Signal:   s.signal,
		Shutdown: s.shutdown,
		Period:   time.Duration(s.period.Load()),
		Step:     s.cfg.Step,
		Observer: s.cfg.Observer,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	consumer, err := NewConsumer(ConsumerConfig{
		SessionID:      s.id,
		Resource:       res,
		Signal:         s.signal,
		Shutdown:       s.shutdown,
		Presenter:      s.cfg.Presenter,
		Input:          s.cfg.Input,
		Controller:     s,
		Reporter:       s.cfg.Reporter,
		WaitTimeout:    s.cfg.WaitTimeout,
		ReportInterval: s.cfg.ReportInterval,
		Now:            s.cfg.Now,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return producer, consumer, nil
}

// RequestShutdown sets the shutdown flag (implements Controller). Idempotent.
func (s *Session) RequestShutdown(reason string) {
	if s.shutdown.Set(reason) {
		s.logger.Info("shutdown requested", "reason", reason)
	}
}

// Shutdown requests shutdown and waits until Run returned or ctx is done.
// Calling it before Run only sets the flag.
func (s *Session) Shutdown(ctx context.Context, reason string) error {
	s.RequestShutdown(reason)

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session shutdown: %w", ctx.Err())
	}
}

// SetPeriod changes the producer pacing period (implements Controller).
func (s *Session) SetPeriod(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("set period %v: %w", d, ErrInvalidPeriod)
	}
	s.period.Store(int64(d))
	if p := s.producer.Load(); p != nil {
		return p.SetPeriod(d)
	}
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// ShutdownFlag exposes the session's flag (for collaborators that own their
// own goroutines, e.g. signal handlers).
func (s *Session) ShutdownFlag() *ShutdownFlag { return s.shutdown }

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stats returns a snapshot (implements Controller). Safe before, during and
// after Run.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	running, started := s.running, s.started
	s.mu.Unlock()

	sig := s.signal.Stats()
	st := Stats{
		SessionID:      s.id,
		ProducerState:  StateIdle.String(),
		Running:        running && !isClosed(s.done),
		Period:         time.Duration(s.period.Load()),
		Signals:        sig.Signals,
		Coalesced:      sig.Coalesced,
		ShutdownReason: s.shutdown.Reason(),
	}
	if !started.IsZero() {
		st.Uptime = time.Since(started)
	}
	if res := s.resource.Load(); res != nil {
		st.ResourceID = res.ID
		st.Generation = res.Generation()
	}
	if p := s.producer.Load(); p != nil {
		ps := p.Stats()
		st.ProducerState = ps.State.String()
		st.Cycles = ps.Cycles
		st.ComputeFailures = ps.ComputeFailures
		st.AcquireFailures = ps.AcquireFailures
		st.ReleaseFailures = ps.ReleaseFailures
		st.Period = ps.Period
	}
	if c := s.consumer.Load(); c != nil {
		cs := c.Stats()
		st.Presented = cs.Presented
		st.PresentFailures = cs.PresentFailures
		st.Timeouts = cs.Timeouts
		st.Reports = cs.Reports
		st.LastPresented = cs.LastGeneration
		st.LastFPS = cs.LastFPS
	}
	return st
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
