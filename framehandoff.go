package framehandoff

import (
	"context"
	"log/slog"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

// Core types re-exported from the internal package.
// See internal/*.go for full documentation.
type (
	Resource         = internal.Resource
	Barrier          = internal.Barrier
	ExclusiveBarrier = internal.ExclusiveBarrier
	DeviceHook       = internal.DeviceHook
	Role             = internal.Role

	Device        = internal.Device
	Kernel        = internal.Kernel
	KernelFunc    = internal.KernelFunc
	Frame         = internal.Frame
	Presenter     = internal.Presenter
	PresenterFunc = internal.PresenterFunc
	Controller    = internal.Controller
	InputSource   = internal.InputSource
	InputFunc     = internal.InputFunc
	RateReport    = internal.RateReport
	Reporter      = internal.Reporter
	ReporterFunc  = internal.ReporterFunc

	ProducerState      = internal.ProducerState
	TransitionObserver = internal.TransitionObserver
	Stats              = internal.Stats

	ShutdownFlag = internal.ShutdownFlag
	ReadySignal  = internal.ReadySignal
	WaitResult   = internal.WaitResult
	SignalStats  = internal.SignalStats
)

// Wait outcomes.
const (
	WaitReady    = internal.WaitReady
	WaitTimedOut = internal.WaitTimedOut
	WaitShutdown = internal.WaitShutdown
)

// Ownership roles.
const (
	RoleConsumer      = internal.RoleConsumer
	RoleTransitioning = internal.RoleTransitioning
	RoleProducer      = internal.RoleProducer
)

// Producer states, in cycle order.
const (
	StateIdle      = internal.StateIdle
	StateComputing = internal.StateComputing
	StateAcquiring = internal.StateAcquiring
	StateMutating  = internal.StateMutating
	StateReleasing = internal.StateReleasing
	StatePacing    = internal.StatePacing
	StateSignaling = internal.StateSignaling
	StateStopped   = internal.StateStopped
)

// Defaults.
const (
	DefaultPeriod         = internal.DefaultPeriod
	DefaultWaitTimeout    = internal.DefaultWaitTimeout
	DefaultReportInterval = internal.DefaultReportInterval
	DefaultAnimationStep  = internal.DefaultAnimationStep
)

// Sentinel errors (match with errors.Is).
var (
	ErrSetup                 = internal.ErrSetup
	ErrAlreadyAcquired       = internal.ErrAlreadyAcquired
	ErrNotAcquired           = internal.ErrNotAcquired
	ErrTeardownWhileAcquired = internal.ErrTeardownWhileAcquired
	ErrAlreadyRunning        = internal.ErrAlreadyRunning
	ErrInvalidPeriod         = internal.ErrInvalidPeriod
)

// Config wires one session. Device, Kernel and Presenter are required.
type Config = internal.SessionConfig

// Session is the public interface of one handoff run.
//
// Design:
//   - Lifecycle: New() → Run(ctx) (blocks) → returns after teardown
//   - Run borrows the calling goroutine for the consumer loop; callers with
//     a display thread requirement call Run from that thread
//   - Thread-safe: every method other than Run may be called from any
//     goroutine, before, during or after Run
type Session interface {
	// Run performs setup, runs both loops until shutdown, joins the
	// producer and tears the device down.
	//
	// Returns:
	//   - ErrSetup (wrapping the cause) if setup failed; loops never ran
	//   - ErrAlreadyRunning if called twice
	//   - nil after a clean shutdown (input quit, ctx, Shutdown)
	Run(ctx context.Context) error

	// RequestShutdown sets the shutdown flag without waiting. Idempotent.
	RequestShutdown(reason string)

	// Shutdown sets the shutdown flag and waits until Run returned or ctx
	// expires. Idempotent.
	Shutdown(ctx context.Context, reason string) error

	// SetPeriod changes the producer pacing period (live).
	SetPeriod(d time.Duration) error

	// Stats returns a non-blocking snapshot.
	Stats() Stats

	// ID returns the session identifier.
	ID() string

	// ShutdownFlag returns the session's flag; its Done channel closes as
	// soon as shutdown is requested, before the loops have exited.
	ShutdownFlag() *ShutdownFlag

	// Done is closed when Run returns.
	Done() <-chan struct{}
}

// New creates a Session. Nothing touches the device until Run.
func New(cfg Config) (Session, error) {
	s, err := internal.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewResource allocates an RGBA resource owned by the consumer side, for
// Device implementations.
func NewResource(id string, width, height int) (*Resource, error) {
	return internal.NewResource(id, width, height)
}

// NewShutdownFlag creates an unset flag, for building custom loops on the
// handoff primitives.
func NewShutdownFlag() *ShutdownFlag {
	return internal.NewShutdownFlag()
}

// NewReadySignal creates a single-slot ready signal bound to shutdown.
func NewReadySignal(shutdown *ShutdownFlag) *ReadySignal {
	return internal.NewReadySignal(shutdown)
}

// SetLogger sets the package logger (silent by default). Passing nil
// restores the silent default.
func SetLogger(l *slog.Logger) {
	internal.SetLogger(l)
}
