package internal

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Barrier transfers usability of the resource between the two roles.
//
// Contract:
//   - Acquire: called by the producer before any mutation
//   - Release: called exactly once per successful Acquire, after mutation,
//     before the frame is signaled to the consumer
//   - Both may block on the device; neither is ever called while holding
//     the ReadySignal mutex
type Barrier interface {
	Acquire(ctx context.Context, res *Resource) error
	Release(ctx context.Context, res *Resource) error
}

// DeviceHook performs the device-side part of an acquire or release (e.g.
// registering the shared image with the compute queue). It runs while the
// resource is RoleTransitioning.
type DeviceHook func(ctx context.Context, res *Resource) error

// ExclusiveBarrier is the in-process Barrier.
//
// Acquire:
//  1. Wait until the consumer is not presenting and no transition is running
//  2. Fail fast with ErrAlreadyAcquired if the producer already owns it
//  3. Owner → Transitioning, run OnAcquire, owner → Producer
//
// Release:
//  1. Fail with ErrNotAcquired unless the producer owns it
//  2. Owner → Transitioning, run OnRelease, owner → Consumer (always, even
//     when the hook fails, so the consumer is never starved)
//
// Thread-safety: state lives in the Resource and is mutex-protected.
type ExclusiveBarrier struct {
	OnAcquire DeviceHook
	OnRelease DeviceHook

	acquires atomic.Uint64
	releases atomic.Uint64
}

// Acquire implements Barrier.
func (b *ExclusiveBarrier) Acquire(ctx context.Context, res *Resource) error {
	res.mu.Lock()
	for res.presenting || res.owner == RoleTransitioning {
		res.cond.Wait()
	}
	if res.owner == RoleProducer {
		res.mu.Unlock()
		return fmt.Errorf("acquire %s: %w", res.ID, ErrAlreadyAcquired)
	}
	res.owner = RoleTransitioning
	res.mu.Unlock()

	if b.OnAcquire != nil {
		if err := b.OnAcquire(ctx, res); err != nil {
			b.transfer(res, RoleConsumer)
			return fmt.Errorf("acquire %s: %w", res.ID, err)
		}
	}

	b.transfer(res, RoleProducer)
	b.acquires.Add(1)
	return nil
}

// Release implements Barrier.
func (b *ExclusiveBarrier) Release(ctx context.Context, res *Resource) error {
	res.mu.Lock()
	if res.owner != RoleProducer {
		owner := res.owner
		res.mu.Unlock()
		return fmt.Errorf("release %s (owner=%s): %w", res.ID, owner, ErrNotAcquired)
	}
	res.owner = RoleTransitioning
	res.mu.Unlock()

	var hookErr error
	if b.OnRelease != nil {
		hookErr = b.OnRelease(ctx, res)
	}

	b.transfer(res, RoleConsumer)
	b.releases.Add(1)

	if hookErr != nil {
		return fmt.Errorf("release %s: %w", res.ID, hookErr)
	}
	return nil
}

// Counts returns completed acquires and releases.
func (b *ExclusiveBarrier) Counts() (acquires, releases uint64) {
	return b.acquires.Load(), b.releases.Load()
}

func (b *ExclusiveBarrier) transfer(res *Resource, to Role) {
	res.mu.Lock()
	res.owner = to
	res.cond.Broadcast()
	res.mu.Unlock()
}
