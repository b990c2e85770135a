package internal

import "math"

// DefaultAnimationStep is the per-cycle increment of the animation scalar.
const DefaultAnimationStep = 0.01

// MinAnimationStep is the smallest accepted step; smaller steps are raised
// to it.
const MinAnimationStep = 1e-9

// Animation is the producer-local scalar fed to the compute step.
//
// The value walks step, 2*step, ... up to 1.0 and wraps to 0. It is kept as
// an integer tick so it never overflows and never accumulates float drift;
// the sequence is identical on every run.
//
// Owned by the producer goroutine only. Not safe for concurrent use.
type Animation struct {
	step  float64
	ticks uint64 // ticks per wrap
	tick  uint64
}

// NewAnimation creates an animation advancing by step per cycle. Steps
// outside (0, 1] fall back to DefaultAnimationStep; positive steps below
// MinAnimationStep are raised to it.
func NewAnimation(step float64) Animation {
	if step <= 0 || step > 1 || math.IsNaN(step) {
		step = DefaultAnimationStep
	}
	step = math.Max(step, MinAnimationStep)
	return Animation{
		step:  step,
		ticks: uint64(math.Round(1 / step)),
	}
}

// Advance moves one step and returns the new value in [0, 1].
func (a *Animation) Advance() float64 {
	a.tick++
	if a.tick > a.ticks {
		a.tick = 0
	}
	return a.Value()
}

// Value returns the current value without advancing.
func (a *Animation) Value() float64 {
	return math.Min(float64(a.tick)*a.step, 1)
}
