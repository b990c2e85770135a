package internal

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
)

// Role identifies who may touch the resource content.
type Role int32

const (
	// RoleConsumer: display side owns the resource (initial state, and the
	// state after every producer release).
	RoleConsumer Role = iota
	// RoleTransitioning: a device-side acquire or release is in progress.
	// Neither loop may touch content.
	RoleTransitioning
	// RoleProducer: compute side owns the resource between Acquire and Release.
	RoleProducer
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleConsumer:
		return "consumer"
	case RoleTransitioning:
		return "transitioning"
	case RoleProducer:
		return "producer"
	default:
		return "unknown"
	}
}

// Resource is the shared, exclusively-owned frame buffer.
//
// Ownership (enforced by ExclusiveBarrier and View):
//   - Producer mutates Content only between Acquire and Release
//   - Consumer reads Content only inside View, which waits out producer
//     ownership and blocks the next Acquire until it returns
//
// Lifecycle: allocated by a Device before the loops start, referenced (not
// owned) by both loops, torn down by the Device after the producer joined.
type Resource struct {
	// ID identifies the resource in logs and reports.
	ID string

	// Width and Height in pixels.
	Width  int
	Height int

	content *image.RGBA

	mu         sync.Mutex
	cond       *sync.Cond
	owner      Role
	presenting bool

	generation atomic.Uint64
}

// NewResource allocates an RGBA resource owned by the consumer side.
func NewResource(id string, width, height int) (*Resource, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resource dimensions %dx%d", width, height)
	}
	r := &Resource{
		ID:      id,
		Width:   width,
		Height:  height,
		content: image.NewRGBA(image.Rect(0, 0, width, height)),
		owner:   RoleConsumer,
	}
	r.cond = sync.NewCond(&r.mu)
	return r, nil
}

// Content returns the pixel buffer. Only valid to write between Acquire and
// Release, and to read inside View.
func (r *Resource) Content() *image.RGBA {
	return r.content
}

// SizeBytes returns the content buffer size.
func (r *Resource) SizeBytes() int {
	return len(r.content.Pix)
}

// Generation returns the number of successful producer updates.
func (r *Resource) Generation() uint64 {
	return r.generation.Load()
}

// bumpGeneration is called by the producer after a successful mutate, while
// it still owns the resource.
func (r *Resource) bumpGeneration() uint64 {
	return r.generation.Add(1)
}

// Owner returns the current owner.
func (r *Resource) Owner() Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// Presenting reports whether the consumer is inside View.
func (r *Resource) Presenting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presenting
}

// View runs fn with consumer-side read access to the content.
//
// Blocks while the producer owns the resource (or a transition is in
// flight), then marks the resource as presenting so a concurrent Acquire
// waits until fn returns. fn receives the generation current at entry.
func (r *Resource) View(fn func(content *image.RGBA, generation uint64) error) error {
	r.mu.Lock()
	for r.owner != RoleConsumer {
		r.cond.Wait()
	}
	r.presenting = true
	gen := r.generation.Load()
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.presenting = false
		r.cond.Broadcast()
		r.mu.Unlock()
	}()

	return fn(r.content, gen)
}
