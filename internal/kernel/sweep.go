// Package kernel provides compute steps for the handoff producer.
package kernel

import (
	"context"
	"fmt"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

// SweepOptions configures a Sweep kernel.
type SweepOptions struct {
	// CanvasWidth and CanvasHeight set the render size. Zero means the
	// resource size; a different size is scaled into the resource.
	CanvasWidth  int
	CanvasHeight int
}

// Sweep renders an animated frame from the animation scalar x:
// a hue-cycling background, a vertical bar sweeping left to right and a
// pulsing disc. The same x always renders the same pixels.
//
// Owned by the producer goroutine. Close releases the canvas.
type Sweep struct {
	opts SweepOptions
	dc   *gg.Context
}

// NewSweep creates a sweep kernel. The canvas is allocated on first Step.
func NewSweep(opts SweepOptions) *Sweep {
	return &Sweep{opts: opts}
}

// Step implements internal.Kernel. Runs while the producer owns res.
func (s *Sweep) Step(ctx context.Context, x float64, res *internal.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if x < 0 || x > 1 {
		return fmt.Errorf("sweep: x=%v out of [0, 1]", x)
	}

	dc := s.canvas(res)
	w, h := float64(dc.Width()), float64(dc.Height())

	dc.ClearWithColor(gg.HSL(x*360, 0.45, 0.18))

	barWidth := w / 20
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(x*(w-barWidth), 0, barWidth, h)
	if err := dc.Fill(); err != nil {
		return fmt.Errorf("sweep: bar: %w", err)
	}

	radius := (0.1 + 0.15*x) * min(w, h)
	dc.SetRGBA(1, 0.6, 0.1, 0.85)
	dc.DrawCircle(w/2, h/2, radius)
	if err := dc.Fill(); err != nil {
		return fmt.Errorf("sweep: disc: %w", err)
	}

	dst := res.Content()
	src := dc.Image()
	if src.Bounds().Size() == dst.Bounds().Size() {
		xdraw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, xdraw.Src)
	} else {
		xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}
	return nil
}

// Close releases the canvas. Safe to call more than once.
func (s *Sweep) Close() error {
	if s.dc == nil {
		return nil
	}
	err := s.dc.Close()
	s.dc = nil
	return err
}

func (s *Sweep) canvas(res *internal.Resource) *gg.Context {
	if s.dc != nil {
		return s.dc
	}
	w, h := s.opts.CanvasWidth, s.opts.CanvasHeight
	if w <= 0 || h <= 0 {
		w, h = res.Width, res.Height
	}
	s.dc = gg.NewContext(w, h)
	return s.dc
}

// Compile-time interface check.
var _ internal.Kernel = (*Sweep)(nil)

