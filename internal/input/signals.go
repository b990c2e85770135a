package input

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

// Signals turns OS signals (SIGINT, SIGTERM by default) into a shutdown
// request on the next poll.
type Signals struct {
	ch       chan os.Signal
	stopOnce sync.Once
}

// NewSignals subscribes to sigs (SIGINT and SIGTERM if none given).
func NewSignals(sigs ...os.Signal) *Signals {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	s := &Signals{ch: make(chan os.Signal, 1)}
	signal.Notify(s.ch, sigs...)
	return s
}

// Poll implements internal.InputSource.
func (s *Signals) Poll(_ context.Context, ctl internal.Controller) {
	select {
	case sig := <-s.ch:
		ctl.RequestShutdown("signal: " + sig.String())
	default:
	}
}

// Stop unsubscribes from OS signals. Idempotent.
func (s *Signals) Stop() {
	s.stopOnce.Do(func() {
		signal.Stop(s.ch)
	})
}

// Multi polls several sources in order, every poll.
func Multi(sources ...internal.InputSource) internal.InputSource {
	return internal.InputFunc(func(ctx context.Context, ctl internal.Controller) {
		for _, src := range sources {
			src.Poll(ctx, ctl)
		}
	})
}
