// Package device provides Device implementations for the handoff session.
//
// Memory is the in-process device: the shared image lives in host memory,
// and the acquire/release hooks stand in for registering the image with a
// compute queue (optionally with simulated latency).
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

// Options configures a Memory device.
type Options struct {
	// Width and Height of the shared image in pixels.
	Width  int
	Height int

	// AcquireLatency and ReleaseLatency simulate the device-side cost of
	// handing the image between compute and display.
	AcquireLatency time.Duration
	ReleaseLatency time.Duration

	// Name is reported in the probe log (default "memory").
	Name string
}

// Memory is an in-process Device.
//
// Lifecycle:
//  1. Setup: probe log, allocate display-side image, register with compute
//  2. Loops run; barrier hooks model acquire/release latency
//  3. Teardown: compute registration released first, then the display image
//
// Setup and Teardown are each effective once per Setup.
type Memory struct {
	opts Options

	mu         sync.Mutex
	res        *internal.Resource
	barrier    *internal.ExclusiveBarrier
	computeReg bool
	displayReg bool
	steps      []string
}

// NewMemory creates an unallocated memory device.
func NewMemory(opts Options) *Memory {
	if opts.Name == "" {
		opts.Name = "memory"
	}
	return &Memory{opts: opts}
}

// Setup implements internal.Device.
func (m *Memory) Setup(ctx context.Context) (*internal.Resource, internal.Barrier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.res != nil {
		return nil, nil, fmt.Errorf("device %s: already set up", m.opts.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("device %s: %w", m.opts.Name, err)
	}

	id := fmt.Sprintf("img-%s", uuid.NewString()[:8])
	res, err := internal.NewResource(id, m.opts.Width, m.opts.Height)
	if err != nil {
		return nil, nil, fmt.Errorf("device %s: %w", m.opts.Name, err)
	}

	slog.Info("device probed",
		"device", m.opts.Name,
		"renderer", "software",
		"format", "RGBA8",
		"image", id,
		"size", fmt.Sprintf("%dx%d", res.Width, res.Height),
		"memory", units.HumanSize(float64(res.SizeBytes())),
	)

	m.displayReg = true
	m.step("display image allocated")
	m.computeReg = true
	m.step("compute registration created")

	m.res = res
	m.barrier = &internal.ExclusiveBarrier{
		OnAcquire: m.latencyHook(m.opts.AcquireLatency),
		OnRelease: m.latencyHook(m.opts.ReleaseLatency),
	}
	return res, m.barrier, nil
}

// Teardown implements internal.Device. Fails with
// internal.ErrTeardownWhileAcquired if the producer still owns the image;
// callers join the producer first.
func (m *Memory) Teardown(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.res == nil {
		return nil
	}
	if m.res.Owner() != internal.RoleConsumer {
		return fmt.Errorf("device %s: %w", m.opts.Name, internal.ErrTeardownWhileAcquired)
	}

	// Compute side first: its registration references the display image.
	if m.computeReg {
		m.computeReg = false
		m.step("compute registration released")
	}
	if m.displayReg {
		m.displayReg = false
		m.step("display image released")
	}

	acquires, releases := m.barrier.Counts()
	slog.Info("device torn down",
		"device", m.opts.Name,
		"image", m.res.ID,
		"acquires", acquires,
		"releases", releases,
	)
	m.res = nil
	return nil
}

// Steps returns the setup/teardown steps performed so far, in order.
func (m *Memory) Steps() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.steps...)
}

func (m *Memory) step(s string) {
	m.steps = append(m.steps, s)
}

// latencyHook sleeps d, returning early with ctx's error if ctx is done.
func (m *Memory) latencyHook(d time.Duration) internal.DeviceHook {
	if d <= 0 {
		return nil
	}
	return func(ctx context.Context, _ *internal.Resource) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
