package display

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evenlySpaced(n int, interval time.Duration) []time.Time {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, n)
	for i := range times {
		times[i] = base.Add(time.Duration(i) * interval)
	}
	return times
}

func TestCalculateCadence_Steady(t *testing.T) {
	st := CalculateCadence(evenlySpaced(61, 16*time.Millisecond))

	assert.Equal(t, 61, st.Frames)
	assert.Equal(t, 960*time.Millisecond, st.Span)
	assert.InDelta(t, 62.5, st.FPSMean, 1e-6)
	assert.InDelta(t, 0, st.FPSStdDev, 1e-6)
	assert.InDelta(t, 62.5, st.FPSMin, 1e-6)
	assert.InDelta(t, 62.5, st.FPSMax, 1e-6)
	assert.LessOrEqual(t, st.JitterMax, time.Microsecond)
	assert.True(t, st.Steady)
}

func TestCalculateCadence_Irregular(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var times []time.Time
	at := base
	for i := 0; i < 20; i++ {
		times = append(times, at)
		if i%2 == 0 {
			at = at.Add(5 * time.Millisecond)
		} else {
			at = at.Add(45 * time.Millisecond)
		}
	}

	st := CalculateCadence(times)
	assert.InDelta(t, 200, st.FPSMax, 1e-6)
	assert.InDelta(t, 1000.0/45, st.FPSMin, 1e-6)
	assert.Greater(t, st.JitterMean, 10*time.Millisecond)
	assert.False(t, st.Steady)
}

func TestCalculateCadence_TooFewFrames(t *testing.T) {
	assert.Equal(t, CadenceStats{}, CalculateCadence(nil))
	assert.Equal(t, CadenceStats{Frames: 1}, CalculateCadence(evenlySpaced(1, time.Second)))
}

func TestCadence_KeepsLastWindow(t *testing.T) {
	c := NewCadence(4)
	times := evenlySpaced(10, 10*time.Millisecond)
	for i, ts := range times {
		f := testFrame(uint64(i + 1))
		f.Timestamp = ts
		require.NoError(t, c.Present(context.Background(), f))
	}

	st := c.Stats()
	assert.Equal(t, 4, st.Frames)
	assert.Equal(t, 30*time.Millisecond, st.Span)
	assert.InDelta(t, 100, st.FPSMean, 1e-6)
}
