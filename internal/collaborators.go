package internal

import (
	"context"
	"image"
	"time"
)

// Device is the setup collaborator: it allocates and registers the shared
// resource and supplies the barrier. Setup runs once before either loop
// starts; any error is fatal for the session. Teardown runs once, strictly
// after the producer has been joined.
type Device interface {
	Setup(ctx context.Context) (*Resource, Barrier, error)
	Teardown(ctx context.Context) error
}

// Kernel is the compute-step collaborator. Step mutates res as a function
// of x while the producer owns it. A returned error is transient: the cycle
// still releases, paces and signals.
type Kernel interface {
	Step(ctx context.Context, x float64, res *Resource) error
}

// KernelFunc adapts a function to Kernel.
type KernelFunc func(ctx context.Context, x float64, res *Resource) error

// Step implements Kernel.
func (f KernelFunc) Step(ctx context.Context, x float64, res *Resource) error {
	return f(ctx, x, res)
}

// Frame is the consumer-side view handed to a Presenter. Content is only
// valid for the duration of Present; presenters that keep pixels must copy.
type Frame struct {
	ResourceID string
	Content    *image.RGBA
	// Generation of the content at the time View was entered.
	Generation uint64
	// Signaled is the generation carried by the ready signal. It may lag
	// Generation when the producer finished another mutate in between.
	Signaled uint64
	// Seq counts presented frames, starting at 1.
	Seq       uint64
	Timestamp time.Time
}

// Presenter is the presentation collaborator, called once per Ready cycle
// from the consumer goroutine. It must stay well inside the consumer's wait
// timeout budget.
type Presenter interface {
	Present(ctx context.Context, frame Frame) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, frame Frame) error

// Present implements Presenter.
func (f PresenterFunc) Present(ctx context.Context, frame Frame) error {
	return f(ctx, frame)
}

// Controller is what input collaborators may drive.
type Controller interface {
	// RequestShutdown sets the session's ShutdownFlag. Idempotent.
	RequestShutdown(reason string)
	// SetPeriod changes the producer pacing period.
	SetPeriod(d time.Duration) error
	// Stats returns a session snapshot.
	Stats() Stats
}

// InputSource is the input/event collaborator, polled from the consumer
// goroutine on every wait timeout and after every presented frame. Poll must
// not block.
type InputSource interface {
	Poll(ctx context.Context, c Controller)
}

// InputFunc adapts a function to InputSource.
type InputFunc func(ctx context.Context, c Controller)

// Poll implements InputSource.
func (f InputFunc) Poll(ctx context.Context, c Controller) {
	f(ctx, c)
}

// RateReport is handed to the Reporter once per reporting interval.
type RateReport struct {
	SessionID  string        `json:"session_id" msgpack:"session_id"`
	Frames     uint64        `json:"frames" msgpack:"frames"`
	Interval   time.Duration `json:"interval_ns" msgpack:"interval_ns"`
	FPS        float64       `json:"fps" msgpack:"fps"`
	Generation uint64        `json:"generation" msgpack:"generation"`
	Coalesced  uint64        `json:"coalesced" msgpack:"coalesced"`
	At         time.Time     `json:"at" msgpack:"at"`
}

// Reporter is the reporting collaborator (window title, log line, broker).
// Called from the consumer goroutine at most once per interval.
type Reporter interface {
	Report(ctx context.Context, report RateReport) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, report RateReport) error

// Report implements Reporter.
func (f ReporterFunc) Report(ctx context.Context, report RateReport) error {
	return f(ctx, report)
}
