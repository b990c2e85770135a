package internal

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResource(t *testing.T) *Resource {
	t.Helper()
	res, err := NewResource("test-res", 8, 4)
	require.NoError(t, err)
	return res
}

func TestNewResource_InvalidDimensions(t *testing.T) {
	_, err := NewResource("bad", 0, 10)
	assert.Error(t, err)
	_, err = NewResource("bad", 10, -1)
	assert.Error(t, err)

	res, err := NewResource("ok", 8, 4)
	require.NoError(t, err)
	assert.Equal(t, 8*4*4, res.SizeBytes())
	assert.Equal(t, RoleConsumer, res.Owner())
}

func TestExclusiveBarrier_AcquireRelease(t *testing.T) {
	res := newTestResource(t)
	b := &ExclusiveBarrier{}
	ctx := context.Background()

	require.NoError(t, b.Acquire(ctx, res))
	assert.Equal(t, RoleProducer, res.Owner())

	err := b.Acquire(ctx, res)
	assert.ErrorIs(t, err, ErrAlreadyAcquired)

	require.NoError(t, b.Release(ctx, res))
	assert.Equal(t, RoleConsumer, res.Owner())

	err = b.Release(ctx, res)
	assert.ErrorIs(t, err, ErrNotAcquired)

	acquires, releases := b.Counts()
	assert.Equal(t, uint64(1), acquires)
	assert.Equal(t, uint64(1), releases)
}

// TestExclusiveBarrier_HookFailures verifies ownership after device hook
// errors: a failed acquire rolls back to the consumer, a failed release
// still hands the resource back.
func TestExclusiveBarrier_HookFailures(t *testing.T) {
	res := newTestResource(t)
	ctx := context.Background()
	boom := errors.New("device lost")

	b := &ExclusiveBarrier{
		OnAcquire: func(context.Context, *Resource) error { return boom },
	}
	err := b.Acquire(ctx, res)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, RoleConsumer, res.Owner())

	b = &ExclusiveBarrier{
		OnRelease: func(context.Context, *Resource) error { return boom },
	}
	require.NoError(t, b.Acquire(ctx, res))
	err = b.Release(ctx, res)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, RoleConsumer, res.Owner())
}

// TestResource_ViewExcludesAcquire verifies mutual exclusion between the
// consumer's View and the producer's Acquire, in both directions.
func TestResource_ViewExcludesAcquire(t *testing.T) {
	res := newTestResource(t)
	b := &ExclusiveBarrier{}
	ctx := context.Background()

	// Direction 1: Acquire waits while View is running.
	inView := make(chan struct{})
	leaveView := make(chan struct{})
	go func() {
		_ = res.View(func(*image.RGBA, uint64) error {
			close(inView)
			<-leaveView
			return nil
		})
	}()
	<-inView

	var acquired atomic.Bool
	acquireDone := make(chan struct{})
	go func() {
		defer close(acquireDone)
		assert.NoError(t, b.Acquire(ctx, res))
		acquired.Store(true)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, acquired.Load(), "acquire must wait for the view to end")

	close(leaveView)
	<-acquireDone
	assert.True(t, acquired.Load())

	// Direction 2: View waits while the producer owns the resource.
	var viewed atomic.Bool
	viewDone := make(chan struct{})
	go func() {
		defer close(viewDone)
		_ = res.View(func(*image.RGBA, uint64) error {
			viewed.Store(true)
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, viewed.Load(), "view must wait for release")

	require.NoError(t, b.Release(ctx, res))
	<-viewDone
	assert.True(t, viewed.Load())
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "consumer", RoleConsumer.String())
	assert.Equal(t, "transitioning", RoleTransitioning.String())
	assert.Equal(t, "producer", RoleProducer.String())
}
