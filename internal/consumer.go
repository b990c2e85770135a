package internal

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	// DefaultWaitTimeout bounds each consumer wait and therefore the
	// worst-case latency of input polling and shutdown observation.
	DefaultWaitTimeout = 5 * time.Millisecond

	// DefaultReportInterval is the rate-reporting window.
	DefaultReportInterval = 3 * time.Second
)

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	SessionID string
	Resource  *Resource
	Signal    *ReadySignal
	Shutdown  *ShutdownFlag
	Presenter Presenter

	// Input is polled on every wait timeout and after every presented frame.
	Input InputSource
	// Controller is handed to Input. Required when Input is set.
	Controller Controller
	// Reporter receives the frame rate at most once per ReportInterval.
	Reporter Reporter

	WaitTimeout    time.Duration
	ReportInterval time.Duration

	// Now is the clock used for reporting (time.Now if nil).
	Now    func() time.Time
	Logger *slog.Logger
}

// Consumer runs the presentation side of the handoff on the caller's
// goroutine.
//
// Loop:
//  1. Consume(WaitTimeout): on Ready, present under Resource.View while the
//     signal mutex is held, then clear (atomic w.r.t. the next Signal)
//  2. On TimedOut: poll input (not an error, the steady state whenever the
//     producer period exceeds the timeout)
//  3. On Shutdown: return without consuming
//  4. Every iteration: emit a rate report if ReportInterval elapsed
//
// Present failures are reported and counted; they never stop the loop.
type Consumer struct {
	sessionID  string
	res        *Resource
	signal     *ReadySignal
	shutdown   *ShutdownFlag
	presenter  Presenter
	input      InputSource
	controller Controller
	reporter   Reporter

	waitTimeout    time.Duration
	reportInterval time.Duration
	now            func() time.Time
	logger         *slog.Logger
	throttle       *throttledLog

	// Reporting window (consumer goroutine only)
	windowFrames uint64
	lastReport   time.Time

	presented       atomic.Uint64
	presentFailures atomic.Uint64
	timeouts        atomic.Uint64
	reports         atomic.Uint64
	lastGeneration  atomic.Uint64
	lastFPS         atomic.Uint64 // math.Float64bits
}

// NewConsumer validates cfg and builds a Consumer.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if cfg.Resource == nil || cfg.Signal == nil || cfg.Shutdown == nil || cfg.Presenter == nil {
		return nil, fmt.Errorf("consumer: resource, signal, shutdown and presenter are required")
	}
	if cfg.Input != nil && cfg.Controller == nil {
		return nil, fmt.Errorf("consumer: controller is required when input is set")
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = DefaultReportInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = Logger()
	}

	// The first report window opens at construction, not when Run is
	// scheduled.
	return &Consumer{
		lastReport:     cfg.Now(),
		sessionID:      cfg.SessionID,
		res:            cfg.Resource,
		signal:         cfg.Signal,
		shutdown:       cfg.Shutdown,
		presenter:      cfg.Presenter,
		input:          cfg.Input,
		controller:     cfg.Controller,
		reporter:       cfg.Reporter,
		waitTimeout:    cfg.WaitTimeout,
		reportInterval: cfg.ReportInterval,
		now:            cfg.Now,
		logger:         logger.With("component", "consumer"),
		throttle:       newThrottledLog(),
	}, nil
}

// Run blocks until the shutdown flag is observed. Always returns nil.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Debug("consumer started",
		"wait_timeout", c.waitTimeout,
		"report_interval", c.reportInterval)

	for {
		res := c.signal.Consume(c.waitTimeout, func(signaled uint64) {
			c.present(ctx, signaled)
		})

		switch res {
		case WaitShutdown:
			c.logger.Debug("consumer stopped",
				"presented", c.presented.Load(),
				"reason", c.shutdown.Reason())
			return nil
		case WaitTimedOut:
			c.timeouts.Add(1)
			c.poll(ctx)
		case WaitReady:
			c.poll(ctx)
		}

		c.maybeReport(ctx)
	}
}

// present runs with the signal mutex held (inside Consume).
func (c *Consumer) present(ctx context.Context, signaled uint64) {
	seq := c.presented.Load() + 1

	err := c.res.View(func(content *image.RGBA, generation uint64) error {
		c.lastGeneration.Store(generation)
		return c.presenter.Present(ctx, Frame{
			ResourceID: c.res.ID,
			Content:    content,
			Generation: generation,
			Signaled:   signaled,
			Seq:        seq,
			Timestamp:  c.now(),
		})
	})

	c.presented.Add(1)
	c.windowFrames++

	if err != nil {
		c.presentFailures.Add(1)
		c.throttle.warn(c.logger, "present", "present failed", "seq", seq, "error", err)
	}
}

func (c *Consumer) poll(ctx context.Context) {
	if c.input != nil {
		c.input.Poll(ctx, c.controller)
	}
}

// maybeReport computes frames / interval_seconds once the window elapsed.
func (c *Consumer) maybeReport(ctx context.Context) {
	now := c.now()
	if now.Sub(c.lastReport) < c.reportInterval {
		return
	}

	fps := float64(c.windowFrames) / c.reportInterval.Seconds()
	report := RateReport{
		SessionID:  c.sessionID,
		Frames:     c.windowFrames,
		Interval:   c.reportInterval,
		FPS:        fps,
		Generation: c.lastGeneration.Load(),
		Coalesced:  c.signal.Stats().Coalesced,
		At:         now,
	}

	c.lastReport = now
	c.windowFrames = 0
	c.storeFPS(fps)
	c.reports.Add(1)

	if c.reporter == nil {
		return
	}
	if err := c.reporter.Report(ctx, report); err != nil {
		c.throttle.warn(c.logger, "report", "rate report failed", "error", err)
	}
}

// ConsumerStats is a snapshot of consumer counters.
type ConsumerStats struct {
	Presented       uint64
	PresentFailures uint64
	Timeouts        uint64
	Reports         uint64
	LastGeneration  uint64
	LastFPS         float64
}

// Stats returns counters (atomic reads, no locking).
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Presented:       c.presented.Load(),
		PresentFailures: c.presentFailures.Load(),
		Timeouts:        c.timeouts.Load(),
		Reports:         c.reports.Load(),
		LastGeneration:  c.lastGeneration.Load(),
		LastFPS:         c.loadFPS(),
	}
}
