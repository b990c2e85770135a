package display

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framehandoff/internal"
)

const (
	// Presentation is steady when the stddev of the instantaneous rate is
	// under 15% of the mean rate and the mean jitter is under 20% of the
	// expected interval.
	rateStabilityThreshold   = 0.15
	jitterStabilityThreshold = 0.20

	defaultCadenceWindow = 256
)

// CadenceStats describes the timing of recent presents.
type CadenceStats struct {
	Frames       int           `json:"frames"`
	Span         time.Duration `json:"span_ns"`
	FPSMean      float64       `json:"fps_mean"`
	FPSStdDev    float64       `json:"fps_stddev"`
	FPSMin       float64       `json:"fps_min"`
	FPSMax       float64       `json:"fps_max"`
	JitterMean   time.Duration `json:"jitter_mean_ns"`
	JitterStdDev time.Duration `json:"jitter_stddev_ns"`
	JitterMax    time.Duration `json:"jitter_max_ns"`
	Steady       bool          `json:"steady"`
}

// Cadence is a Presenter that keeps the timestamps of the last N presented
// frames and summarizes their spacing.
type Cadence struct {
	mu    sync.Mutex
	times []time.Time
	next  int
	full  bool
}

// NewCadence keeps the last window timestamps (default 256).
func NewCadence(window int) *Cadence {
	if window < 2 {
		window = defaultCadenceWindow
	}
	return &Cadence{times: make([]time.Time, window)}
}

// Present implements internal.Presenter.
func (c *Cadence) Present(_ context.Context, frame internal.Frame) error {
	ts := frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	c.mu.Lock()
	c.times[c.next] = ts
	c.next = (c.next + 1) % len(c.times)
	if c.next == 0 {
		c.full = true
	}
	c.mu.Unlock()
	return nil
}

// Stats summarizes the current window.
func (c *Cadence) Stats() CadenceStats {
	c.mu.Lock()
	var ordered []time.Time
	if c.full {
		ordered = append(ordered, c.times[c.next:]...)
		ordered = append(ordered, c.times[:c.next]...)
	} else {
		ordered = append(ordered, c.times[:c.next]...)
	}
	c.mu.Unlock()
	return CalculateCadence(ordered)
}

// CalculateCadence computes rate and jitter statistics from ordered
// present timestamps.
func CalculateCadence(times []time.Time) CadenceStats {
	n := len(times)
	stats := CadenceStats{Frames: n}
	if n < 2 {
		return stats
	}

	stats.Span = times[n-1].Sub(times[0])
	if stats.Span <= 0 {
		return stats
	}
	stats.FPSMean = float64(n-1) / stats.Span.Seconds()

	intervals := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if d := times[i].Sub(times[i-1]).Seconds(); d > 0 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return stats
	}

	stats.FPSMin = math.Inf(1)
	var sumSquares float64
	for _, d := range intervals {
		fps := 1.0 / d
		stats.FPSMin = math.Min(stats.FPSMin, fps)
		stats.FPSMax = math.Max(stats.FPSMax, fps)
		diff := fps - stats.FPSMean
		sumSquares += diff * diff
	}
	stats.FPSStdDev = math.Sqrt(sumSquares / float64(len(intervals)))

	// Jitter is the distance of each interval from the mean interval.
	expected := 1.0 / stats.FPSMean
	var jitterSum, jitterMax float64
	jitters := make([]float64, len(intervals))
	for i, d := range intervals {
		j := math.Abs(d - expected)
		jitters[i] = j
		jitterSum += j
		jitterMax = math.Max(jitterMax, j)
	}
	jitterMean := jitterSum / float64(len(jitters))

	var jitterSquares float64
	for _, j := range jitters {
		diff := j - jitterMean
		jitterSquares += diff * diff
	}

	stats.JitterMean = seconds(jitterMean)
	stats.JitterStdDev = seconds(math.Sqrt(jitterSquares / float64(len(jitters))))
	stats.JitterMax = seconds(jitterMax)
	stats.Steady = stats.FPSStdDev < stats.FPSMean*rateStabilityThreshold &&
		jitterMean < expected*jitterStabilityThreshold
	return stats
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
