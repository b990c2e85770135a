package framehandoff_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff"
)

// memDevice is the smallest Device: one resource, an in-process barrier.
type memDevice struct {
	torn atomic.Bool
}

func (d *memDevice) Setup(context.Context) (*framehandoff.Resource, framehandoff.Barrier, error) {
	res, err := framehandoff.NewResource("facade", 4, 4)
	if err != nil {
		return nil, nil, err
	}
	return res, &framehandoff.ExclusiveBarrier{}, nil
}

func (d *memDevice) Teardown(context.Context) error {
	d.torn.Store(true)
	return nil
}

// TestNew_RunUntilContextDone exercises the public API end to end.
func TestNew_RunUntilContextDone(t *testing.T) {
	dev := &memDevice{}
	var presented atomic.Uint64

	sess, err := framehandoff.New(framehandoff.Config{
		Device: dev,
		Kernel: framehandoff.KernelFunc(func(_ context.Context, x float64, res *framehandoff.Resource) error {
			res.Content().Pix[0] = byte(x * 255)
			return nil
		}),
		Presenter: framehandoff.PresenterFunc(func(context.Context, framehandoff.Frame) error {
			presented.Add(1)
			return nil
		}),
		Period: 2 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, sess.Run(ctx))

	<-sess.Done()
	assert.True(t, dev.torn.Load())
	assert.Positive(t, presented.Load())
	st := sess.Stats()
	assert.Equal(t, presented.Load(), st.Presented)
	assert.Equal(t, framehandoff.StateStopped.String(), st.ProducerState)
}

func TestNew_InvalidConfig(t *testing.T) {
	sess, err := framehandoff.New(framehandoff.Config{})
	assert.Error(t, err)
	assert.Nil(t, sess, "no typed-nil session on error")
}

func TestNew_SetupError(t *testing.T) {
	sess, err := framehandoff.New(framehandoff.Config{
		Device:    failingDevice{},
		Kernel:    framehandoff.KernelFunc(func(context.Context, float64, *framehandoff.Resource) error { return nil }),
		Presenter: framehandoff.PresenterFunc(func(context.Context, framehandoff.Frame) error { return nil }),
	})
	require.NoError(t, err)

	err = sess.Run(context.Background())
	assert.True(t, errors.Is(err, framehandoff.ErrSetup))
}

type failingDevice struct{}

func (failingDevice) Setup(context.Context) (*framehandoff.Resource, framehandoff.Barrier, error) {
	return nil, nil, errors.New("no device")
}

func (failingDevice) Teardown(context.Context) error { return nil }

// TestPrimitives verifies the exported handoff primitives compose without a
// Session.
func TestPrimitives(t *testing.T) {
	flag := framehandoff.NewShutdownFlag()
	sig := framehandoff.NewReadySignal(flag)

	sig.Signal(5)
	var got uint64
	res := sig.Consume(time.Millisecond, func(gen uint64) { got = gen })
	assert.Equal(t, framehandoff.WaitReady, res)
	assert.Equal(t, uint64(5), got)

	flag.Set("done")
	res = sig.Consume(time.Second, func(uint64) {})
	assert.Equal(t, framehandoff.WaitShutdown, res)
}
