package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

func TestMemory_SetupTeardownOrder(t *testing.T) {
	dev := NewMemory(Options{Width: 32, Height: 16})
	ctx := context.Background()

	res, barrier, err := dev.Setup(ctx)
	require.NoError(t, err)
	require.NotNil(t, barrier)
	assert.Equal(t, 32, res.Width)
	assert.Equal(t, 32*16*4, res.SizeBytes())
	assert.Contains(t, res.ID, "img-")

	_, _, err = dev.Setup(ctx)
	assert.Error(t, err, "second setup rejected")

	require.NoError(t, dev.Teardown(ctx))
	assert.Equal(t, []string{
		"display image allocated",
		"compute registration created",
		"compute registration released",
		"display image released",
	}, dev.Steps())

	require.NoError(t, dev.Teardown(ctx), "teardown is idempotent")
}

func TestMemory_TeardownWhileAcquired(t *testing.T) {
	dev := NewMemory(Options{Width: 4, Height: 4})
	ctx := context.Background()

	res, barrier, err := dev.Setup(ctx)
	require.NoError(t, err)
	require.NoError(t, barrier.Acquire(ctx, res))

	err = dev.Teardown(ctx)
	assert.ErrorIs(t, err, internal.ErrTeardownWhileAcquired)

	require.NoError(t, barrier.Release(ctx, res))
	assert.NoError(t, dev.Teardown(ctx))
}

func TestMemory_InvalidDimensions(t *testing.T) {
	_, _, err := NewMemory(Options{}).Setup(context.Background())
	assert.Error(t, err)
}

// TestMemory_AcquireLatency verifies the simulated device cost and that a
// cancelled acquire leaves the image with the consumer.
func TestMemory_AcquireLatency(t *testing.T) {
	dev := NewMemory(Options{Width: 4, Height: 4, AcquireLatency: 20 * time.Millisecond})
	res, barrier, err := dev.Setup(context.Background())
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, barrier.Acquire(context.Background(), res))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.NoError(t, barrier.Release(context.Background(), res))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = barrier.Acquire(ctx, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, internal.RoleConsumer, res.Owner())
}

// TestMemory_Session runs a full session on the memory device.
func TestMemory_Session(t *testing.T) {
	dev := NewMemory(Options{Width: 8, Height: 8, ReleaseLatency: 100 * time.Microsecond})
	s, err := internal.NewSession(internal.SessionConfig{
		Device:    dev,
		Kernel:    internal.KernelFunc(func(context.Context, float64, *internal.Resource) error { return nil }),
		Presenter: internal.PresenterFunc(func(context.Context, internal.Frame) error { return nil }),
		Period:    time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	steps := dev.Steps()
	assert.Equal(t, "display image released", steps[len(steps)-1])
}
