package display

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

// Multi fans one presented frame out to several presenters, in order. Every
// presenter is called even if an earlier one fails; errors are joined.
func Multi(presenters ...internal.Presenter) internal.Presenter {
	return internal.PresenterFunc(func(ctx context.Context, frame internal.Frame) error {
		var errs []error
		for _, p := range presenters {
			if err := p.Present(ctx, frame); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Counter is a Presenter that only counts frames (headless runs, "none"
// display mode).
type Counter struct {
	frames         atomic.Uint64
	lastGeneration atomic.Uint64
}

// Present implements internal.Presenter.
func (c *Counter) Present(_ context.Context, frame internal.Frame) error {
	c.frames.Add(1)
	c.lastGeneration.Store(frame.Generation)
	return nil
}

// Frames returns the number of presented frames.
func (c *Counter) Frames() uint64 { return c.frames.Load() }

// LastGeneration returns the generation of the last presented frame.
func (c *Counter) LastGeneration() uint64 { return c.lastGeneration.Load() }
