// Package gstsink presents frames in a live window through GStreamer:
//
//	appsrc (RGBA) → videoconvert → autovideosink
//
// Requires GStreamer 1.x with the base and good plugins installed.
package gstsink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

// Options configures a Window.
type Options struct {
	Width  int
	Height int
	// Sink is the GStreamer sink element (default "autovideosink"; use
	// "fakesink" for headless runs).
	Sink string
	// Title is logged when the window starts.
	Title string
}

// Window is a Presenter that pushes every presented frame into a GStreamer
// pipeline.
//
// Present copies the frame into a new GStreamer buffer, so the pipeline
// never references the shared resource after Present returns.
type Window struct {
	opts     Options
	pipeline *gst.Pipeline
	src      *app.Source

	closeOnce sync.Once

	pushed atomic.Uint64
	failed atomic.Uint64
}

// CapsString returns the raw video caps fed into appsrc.
func CapsString(width, height int) string {
	return fmt.Sprintf("video/x-raw,format=RGBA,width=%d,height=%d,framerate=0/1", width, height)
}

// NewWindow builds the pipeline. Call Start before presenting.
func NewWindow(opts Options) (*Window, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("gstsink: invalid dimensions %dx%d", opts.Width, opts.Height)
	}
	if opts.Sink == "" {
		opts.Sink = "autovideosink"
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := app.NewAppSrc()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsrc: %w", err)
	}
	src.SetCaps(gst.NewCapsFromString(CapsString(opts.Width, opts.Height)))
	src.SetProperty("is-live", true)      // Frames arrive in real time
	src.SetProperty("do-timestamp", true) // Stamp buffers on push
	src.SetProperty("format", gst.FormatTime)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}

	sink, err := gst.NewElement(opts.Sink)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", opts.Sink, err)
	}
	sink.SetProperty("sync", false) // Present as soon as pushed

	pipeline.AddMany(src.Element, converter, sink)
	if err := gst.ElementLinkMany(src.Element, converter, sink); err != nil {
		return nil, fmt.Errorf("failed to link window pipeline: %w", err)
	}

	slog.Debug("gstsink: pipeline built",
		"caps", CapsString(opts.Width, opts.Height),
		"sink", opts.Sink,
	)

	return &Window{opts: opts, pipeline: pipeline, src: src}, nil
}

// Start sets the pipeline to PLAYING.
func (w *Window) Start() error {
	if err := w.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("failed to start window pipeline: %w", err)
	}
	slog.Info("gstsink: window started",
		"title", w.opts.Title,
		"size", fmt.Sprintf("%dx%d", w.opts.Width, w.opts.Height),
	)
	return nil
}

// Present implements internal.Presenter.
func (w *Window) Present(_ context.Context, frame internal.Frame) error {
	b := frame.Content.Bounds()
	if b.Dx() != w.opts.Width || b.Dy() != w.opts.Height {
		w.failed.Add(1)
		return fmt.Errorf("gstsink: frame %dx%d does not match caps %dx%d",
			b.Dx(), b.Dy(), w.opts.Width, w.opts.Height)
	}

	data := make([]byte, len(frame.Content.Pix))
	copy(data, frame.Content.Pix)

	if ret := w.src.PushBuffer(gst.NewBufferFromBytes(data)); ret != gst.FlowOK {
		w.failed.Add(1)
		return fmt.Errorf("gstsink: push buffer: %v", ret)
	}
	w.pushed.Add(1)
	return nil
}

// Close sends EOS and stops the pipeline. Idempotent.
func (w *Window) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.src.EndStream()
		if stateErr := w.pipeline.SetState(gst.StateNull); stateErr != nil {
			err = fmt.Errorf("failed to set pipeline to NULL: %w", stateErr)
		}
	})
	return err
}

// Stats returns pushed and failed frame counts.
func (w *Window) Stats() (pushed, failed uint64) {
	return w.pushed.Load(), w.failed.Load()
}
