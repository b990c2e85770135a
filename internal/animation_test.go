package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAnimation_Wraps verifies the scalar walks step..1.0 then wraps to 0,
// deterministically.
func TestAnimation_Wraps(t *testing.T) {
	a := NewAnimation(0.25)

	got := make([]float64, 0, 7)
	for i := 0; i < 7; i++ {
		got = append(got, a.Advance())
	}
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1, 0, 0.25, 0.5}, got)
}

// TestAnimation_TinyStep verifies very small steps keep the full [0, 1]
// range instead of wrapping early.
func TestAnimation_TinyStep(t *testing.T) {
	a := NewAnimation(1e-10)
	assert.Equal(t, uint64(1e9), a.ticks, "raised to MinAnimationStep")

	a.tick = a.ticks - 1
	assert.InDelta(t, 1.0, a.Advance(), 1e-9)
	assert.Zero(t, a.Advance())

	b := NewAnimation(1e-8)
	assert.Equal(t, uint64(1e8), b.ticks)
}

func TestAnimation_DefaultStep(t *testing.T) {
	for _, step := range []float64{0, -1, 2} {
		a := NewAnimation(step)
		assert.InDelta(t, DefaultAnimationStep, a.Advance(), 1e-12, "step=%v", step)
	}

	a := NewAnimation(DefaultAnimationStep)
	var last float64
	for i := 0; i < 100; i++ {
		last = a.Advance()
	}
	assert.InDelta(t, 1.0, last, 1e-12)
	assert.Zero(t, a.Advance(), "value above 1.0 wraps to 0")
}
