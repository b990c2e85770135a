// Package display provides Presenter implementations for the consumer side.
package display

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/bmp"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

// SaverOptions configures a Saver.
type SaverOptions struct {
	OutputDir   string
	Format      string // png, jpeg (jpg), bmp
	JPEGQuality int    // 1-100, jpeg only
	EveryN      int    // save one of every N presented frames (default 1)
	QueueSize   int    // pending snapshots before dropping (default 4)
}

// snapshot is a private copy of a presented frame.
type snapshot struct {
	seq       uint64
	timestamp time.Time
	img       *image.RGBA
}

// Saver writes presented frames to disk as PNG, JPEG or BMP.
//
// Present runs on the consumer goroutine inside the frame's view, so it
// only copies the pixels and hands them to a writer goroutine. When the
// writer falls behind, snapshots are dropped (never queued unbounded) and
// counted.
//
// Filename format: frame_{seq:06d}_{timestamp}.{ext}
// Example: frame_000042_20251105_234517.123.png
type Saver struct {
	opts  SaverOptions
	queue chan snapshot
	wg    sync.WaitGroup
	once  sync.Once

	framesSaved   atomic.Uint64
	framesDropped atomic.Uint64
	framesFailed  atomic.Uint64
}

// NewSaver validates opts, creates the output directory and starts the
// writer goroutine. Close stops it.
func NewSaver(opts SaverOptions) (*Saver, error) {
	switch opts.Format {
	case "png", "bmp":
	case "jpeg", "jpg":
		opts.Format = "jpeg"
		if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
			opts.JPEGQuality = 90
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s (must be png, jpeg or bmp)", opts.Format)
	}
	if opts.EveryN <= 0 {
		opts.EveryN = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	s := &Saver{
		opts:  opts,
		queue: make(chan snapshot, opts.QueueSize),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// Present implements internal.Presenter.
func (s *Saver) Present(_ context.Context, frame internal.Frame) error {
	if frame.Seq%uint64(s.opts.EveryN) != 0 {
		return nil
	}

	img := image.NewRGBA(frame.Content.Bounds())
	copy(img.Pix, frame.Content.Pix)

	select {
	case s.queue <- snapshot{seq: frame.Seq, timestamp: frame.Timestamp, img: img}:
	default:
		s.framesDropped.Add(1)
	}
	return nil
}

// Close stops accepting frames, writes what is queued and waits for the
// writer to finish. Idempotent. Present must not be called after Close.
func (s *Saver) Close() error {
	s.once.Do(func() {
		close(s.queue)
	})
	s.wg.Wait()
	return nil
}

// Stats returns current save statistics.
func (s *Saver) Stats() (saved, dropped, failed uint64) {
	return s.framesSaved.Load(), s.framesDropped.Load(), s.framesFailed.Load()
}

func (s *Saver) writeLoop() {
	defer s.wg.Done()
	for snap := range s.queue {
		if err := s.write(snap); err != nil {
			s.framesFailed.Add(1)
			slog.Warn("frame snapshot failed", "seq", snap.seq, "error", err)
			continue
		}
		s.framesSaved.Add(1)
	}
}

func (s *Saver) write(snap snapshot) error {
	filename := fmt.Sprintf("frame_%06d_%s.%s",
		snap.seq,
		snap.timestamp.Format("20060102_150405.000"),
		s.opts.Format)
	path := filepath.Join(s.opts.OutputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	switch s.opts.Format {
	case "png":
		if err := png.Encode(file, snap.img); err != nil {
			return fmt.Errorf("PNG encode failed: %w", err)
		}
	case "jpeg":
		if err := jpeg.Encode(file, snap.img, &jpeg.Options{Quality: s.opts.JPEGQuality}); err != nil {
			return fmt.Errorf("JPEG encode failed: %w", err)
		}
	case "bmp":
		if err := bmp.Encode(file, snap.img); err != nil {
			return fmt.Errorf("BMP encode failed: %w", err)
		}
	}
	return file.Close()
}
