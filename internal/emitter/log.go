// Package emitter delivers frame rate reports: as a title line in the log,
// and as messages on an MQTT broker.
package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

// LogReporter renders each report as a window-title style line
// ("framehandoff - FPS: 59.94") and logs it.
type LogReporter struct {
	name   string
	logger *slog.Logger

	mu    sync.Mutex
	title string
}

// NewLogReporter creates a reporter logging through logger (slog.Default if
// nil). name prefixes the title (default "framehandoff").
func NewLogReporter(name string, logger *slog.Logger) *LogReporter {
	if name == "" {
		name = "framehandoff"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{name: name, logger: logger}
}

// Title formats the title text for fps.
func Title(name string, fps float64) string {
	return fmt.Sprintf("%s - FPS: %.2f", name, fps)
}

// Report implements internal.Reporter.
func (r *LogReporter) Report(_ context.Context, report internal.RateReport) error {
	title := Title(r.name, report.FPS)

	r.mu.Lock()
	r.title = title
	r.mu.Unlock()

	r.logger.Info(title,
		"frames", report.Frames,
		"interval", report.Interval,
		"generation", report.Generation,
		"coalesced", report.Coalesced,
	)
	return nil
}

// LastTitle returns the most recent title ("" before the first report).
func (r *LogReporter) LastTitle() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title
}

// Multi delivers each report to every reporter; errors are returned for the
// first failing one after all were called.
func Multi(reporters ...internal.Reporter) internal.Reporter {
	return internal.ReporterFunc(func(ctx context.Context, report internal.RateReport) error {
		var first error
		for _, rep := range reporters {
			if err := rep.Report(ctx, report); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
