package internal

import (
	"math"
	"time"
)

// Stats is a point-in-time snapshot of a session.
//
// Consistency: fields are read independently (atomics), so counters may be
// skewed by one cycle relative to each other. Acceptable for monitoring.
type Stats struct {
	SessionID     string
	ResourceID    string
	ProducerState string
	Running       bool

	// Producer side
	Cycles          uint64
	ComputeFailures uint64
	AcquireFailures uint64
	ReleaseFailures uint64
	Generation      uint64
	Period          time.Duration

	// Handoff
	Signals   uint64
	Coalesced uint64

	// Consumer side
	Presented       uint64
	PresentFailures uint64
	Timeouts        uint64
	Reports         uint64
	LastPresented   uint64
	LastFPS         float64

	ShutdownReason string
	Uptime         time.Duration
}

// CoalesceRate returns the share of signals overwritten before being
// consumed, in percent. Expected > 0 whenever the producer outpaces the
// consumer; it is not an error.
func (s Stats) CoalesceRate() float64 {
	if s.Signals == 0 {
		return 0
	}
	return float64(s.Coalesced) / float64(s.Signals) * 100.0
}

func (c *Consumer) storeFPS(fps float64) {
	c.lastFPS.Store(math.Float64bits(fps))
}

func (c *Consumer) loadFPS() float64 {
	return math.Float64frombits(c.lastFPS.Load())
}
