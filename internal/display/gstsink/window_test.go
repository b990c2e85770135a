package gstsink

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

func TestCapsString(t *testing.T) {
	assert.Equal(t,
		"video/x-raw,format=RGBA,width=640,height=480,framerate=0/1",
		CapsString(640, 480))
}

func TestNewWindow_InvalidDimensions(t *testing.T) {
	_, err := NewWindow(Options{Width: 0, Height: 10})
	assert.Error(t, err)
}

// TestWindow_FakeSink pushes frames through a headless pipeline. Skipped when
// the GStreamer plugins are not installed.
func TestWindow_FakeSink(t *testing.T) {
	w, err := NewWindow(Options{Width: 16, Height: 8, Sink: "fakesink"})
	if err != nil {
		t.Skipf("GStreamer not available: %v", err)
	}
	require.NoError(t, w.Start())
	defer w.Close()

	frame := internal.Frame{Content: image.NewRGBA(image.Rect(0, 0, 16, 8)), Seq: 1}
	require.NoError(t, w.Present(context.Background(), frame))

	wrong := internal.Frame{Content: image.NewRGBA(image.Rect(0, 0, 4, 4)), Seq: 2}
	assert.Error(t, w.Present(context.Background(), wrong))

	pushed, failed := w.Stats()
	assert.Equal(t, uint64(1), pushed)
	assert.Equal(t, uint64(1), failed)

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close(), "close is idempotent")
}
